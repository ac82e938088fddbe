package main

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	calendarx "github.com/tecshine/agenda-middleware/agent/calendar"
	classifierx "github.com/tecshine/agenda-middleware/agent/classifier"
	contractx "github.com/tecshine/agenda-middleware/agent/contract"
	runx "github.com/tecshine/agenda-middleware/agent/run"
	schedulex "github.com/tecshine/agenda-middleware/agent/schedule"
	statex "github.com/tecshine/agenda-middleware/agent/state"
	toolx "github.com/tecshine/agenda-middleware/agent/tool"
	configx "github.com/tecshine/agenda-middleware/pkg/config"
	logx "github.com/tecshine/agenda-middleware/pkg/logger"
)

type AppConfig struct {
	PhoneRegion     string   `envconfig:"PHONE_REGION" split_words:"true" default:"BR"`
	FallbackMessage string   `envconfig:"FALLBACK_MESSAGE" split_words:"true"`
	ThreadStore     string   `envconfig:"THREAD_STORE" split_words:"true" default:"memory"`
	ClassifierRules []string `envconfig:"CLASSIFIER_RULES" split_words:"true"`
}

func main() {
	logx.Init(*configx.MustNew[logx.Config]("LOG"))

	ctx := context.Background()
	appCfg := configx.MustNew[AppConfig]("APP")

	calendarCfg := configx.MustNew[calendarx.Config]("GOOGLE_CALENDAR")
	gateway, err := calendarx.New(ctx, *calendarCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize calendar gateway")
	}

	rules, err := classifierx.ParseRules(appCfg.ClassifierRules)
	if err != nil {
		log.Fatal().Err(err).Msg("parse classifier rules")
	}

	normalizer := schedulex.NewNormalizer(gateway.Location())
	builder := schedulex.NewBookingBuilder(normalizer, classifierx.NewKeywordClassifier(rules), appCfg.PhoneRegion)
	scheduler, err := schedulex.NewScheduler(gateway, builder)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize scheduler")
	}

	threads := newThreadStore(ctx, appCfg.ThreadStore)

	driver, err := runx.NewDriver(runx.NewGateway(*configx.MustNew[runx.Config]("OPENAI")), threads)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize run driver")
	}

	newTools := func(fb contractx.WebhookContext) contractx.ToolDispatcher {
		return toolx.ForContact(scheduler, gateway, normalizer, fb)
	}
	if _, err := runx.NewService(driver, newTools, appCfg.FallbackMessage); err != nil {
		log.Fatal().Err(err).Msg("initialize conversation service")
	}

	// The webhook ingress owns the HTTP surface and calls Service.Reply per
	// delivery; wiring ends here.
	log.Info().Str("thread_store", appCfg.ThreadStore).Msg("agenda middleware components initialized")
}

func newThreadStore(ctx context.Context, backend string) contractx.ThreadStore {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "redis":
		store, err := statex.NewUpstashRedisStore(*configx.MustNew[statex.UpstashRedisConfig]("UPSTASH_REDIS"))
		if err != nil {
			log.Fatal().Err(err).Msg("initialize redis thread store")
		}
		return store
	case "postgres":
		store := statex.NewPostgresStore(*configx.MustNew[statex.PostgresConfig]("POSTGRES"))
		if err := store.Init(ctx); err != nil {
			log.Fatal().Err(err).Msg("initialize postgres thread store")
		}
		return store
	default:
		return statex.NewMemoryStore()
	}
}

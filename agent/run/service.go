package run

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"

	contractx "github.com/tecshine/agenda-middleware/agent/contract"
)

// DefaultFallbackMessage is sent when the conversation cannot produce an
// answer. Kept generic on purpose: the customer should never see raw errors.
const DefaultFallbackMessage = "Tive um problema técnico agora, mas já podemos tentar de novo em instantes, tudo bem?"

// ToolsFactory builds the per-request tool dispatcher. The webhook context
// changes with every delivery, so the registry cannot be shared.
type ToolsFactory func(fb contractx.WebhookContext) contractx.ToolDispatcher

// Service is the surface the webhook ingress calls. It always returns a
// message to deliver: run failures and errors outside the tool-call path are
// logged and replaced with the fallback copy.
type Service struct {
	driver   *Driver
	newTools ToolsFactory
	fallback string
}

func NewService(driver *Driver, newTools ToolsFactory, fallback string) (*Service, error) {
	if driver == nil {
		return nil, errors.New("driver is required")
	}
	if newTools == nil {
		return nil, errors.New("tools factory is required")
	}
	if strings.TrimSpace(fallback) == "" {
		fallback = DefaultFallbackMessage
	}
	return &Service{
		driver:   driver,
		newTools: newTools,
		fallback: fallback,
	}, nil
}

func (s *Service) Reply(ctx context.Context, fb contractx.WebhookContext, message string) string {
	reply, err := s.driver.Converse(ctx, fb.ContactID, message, s.newTools(fb))
	if err != nil {
		event := log.Error()
		if errors.Is(err, contractx.ErrRunNotCompleted) {
			event = log.Warn()
		}
		event.Err(err).Str("contact_id", fb.ContactID).Msg("conversation failed, sending fallback")
		return s.fallback
	}
	if strings.TrimSpace(reply) == "" {
		return s.fallback
	}
	return reply
}

package run

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	contractx "github.com/tecshine/agenda-middleware/agent/contract"
)

type Config struct {
	APIKey      string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	AssistantID string        `envconfig:"ASSISTANT_ID" split_words:"true" required:"true"`
	BaseURL     string        `split_words:"true"`
	Timeout     time.Duration `split_words:"true" default:"60s"`
}

// Gateway implements contract.AssistantGateway over the OpenAI Assistants
// beta API.
type Gateway struct {
	client      *openai.Client
	assistantID string
}

var _ contractx.AssistantGateway = (*Gateway)(nil)

func NewGateway(cfg Config) *Gateway {
	opts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(cfg.APIKey)),
	}
	if trimmed := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); trimmed != "" {
		opts = append(opts, option.WithBaseURL(trimmed))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	client := openai.NewClient(opts...)
	return &Gateway{
		client:      &client,
		assistantID: strings.TrimSpace(cfg.AssistantID),
	}
}

func (g *Gateway) CreateThread(ctx context.Context) (string, error) {
	thread, err := g.client.Beta.Threads.New(ctx, openai.BetaThreadNewParams{})
	if err != nil {
		return "", fmt.Errorf("create thread: %w", err)
	}
	return thread.ID, nil
}

func (g *Gateway) AddMessage(ctx context.Context, threadID, text string) error {
	_, err := g.client.Beta.Threads.Messages.New(ctx, threadID, openai.BetaThreadMessageNewParams{
		Role: openai.BetaThreadMessageNewParamsRoleUser,
		Content: openai.BetaThreadMessageNewParamsContentUnion{
			OfString: openai.String(text),
		},
	})
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

func (g *Gateway) CreateRun(ctx context.Context, threadID string) (contractx.Run, error) {
	created, err := g.client.Beta.Threads.Runs.New(ctx, threadID, openai.BetaThreadRunNewParams{
		AssistantID: g.assistantID,
	})
	if err != nil {
		return contractx.Run{}, fmt.Errorf("create run: %w", err)
	}
	return mapRun(created), nil
}

func (g *Gateway) GetRun(ctx context.Context, threadID, runID string) (contractx.Run, error) {
	fetched, err := g.client.Beta.Threads.Runs.Get(ctx, threadID, runID)
	if err != nil {
		return contractx.Run{}, fmt.Errorf("retrieve run: %w", err)
	}
	return mapRun(fetched), nil
}

func (g *Gateway) SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []contractx.ToolOutput) error {
	params := openai.BetaThreadRunSubmitToolOutputsParams{
		ToolOutputs: make([]openai.BetaThreadRunSubmitToolOutputsParamsToolOutput, 0, len(outputs)),
	}
	for _, out := range outputs {
		params.ToolOutputs = append(params.ToolOutputs, openai.BetaThreadRunSubmitToolOutputsParamsToolOutput{
			ToolCallID: openai.String(out.CallID),
			Output:     openai.String(out.Output),
		})
	}

	_, err := g.client.Beta.Threads.Runs.SubmitToolOutputs(ctx, threadID, runID, params)
	if err != nil {
		return fmt.Errorf("submit tool outputs: %w", err)
	}
	return nil
}

func (g *Gateway) LatestAssistantText(ctx context.Context, threadID string) (string, error) {
	page, err := g.client.Beta.Threads.Messages.List(ctx, threadID, openai.BetaThreadMessageListParams{
		Order: openai.BetaThreadMessageListParamsOrderDesc,
		Limit: openai.Int(10),
	})
	if err != nil {
		return "", fmt.Errorf("list messages: %w", err)
	}

	for _, message := range page.Data {
		if string(message.Role) != "assistant" {
			continue
		}
		parts := make([]string, 0, len(message.Content))
		for _, content := range message.Content {
			if string(content.Type) == "text" {
				parts = append(parts, content.Text.Value)
			}
		}
		if text := strings.TrimSpace(strings.Join(parts, "\n")); text != "" {
			return text, nil
		}
	}
	return "", contractx.ErrNoAssistantReply
}

func mapRun(run *openai.Run) contractx.Run {
	out := contractx.Run{
		ID:       run.ID,
		ThreadID: run.ThreadID,
		Status:   mapStatus(run.Status),
	}
	if out.Status != contractx.RunRequiresAction {
		return out
	}

	calls := run.RequiredAction.SubmitToolOutputs.ToolCalls
	out.ToolCalls = make([]contractx.ToolCall, 0, len(calls))
	for _, call := range calls {
		args := map[string]any{}
		if raw := call.Function.Arguments; raw != "" {
			// Malformed argument JSON reaches the handler as an empty map;
			// the handler's own validation reports the missing fields.
			_ = json.Unmarshal([]byte(raw), &args)
		}
		out.ToolCalls = append(out.ToolCalls, contractx.ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: args,
		})
	}
	return out
}

func mapStatus(status openai.RunStatus) contractx.RunStatus {
	switch status {
	case openai.RunStatusQueued:
		return contractx.RunQueued
	case openai.RunStatusInProgress, openai.RunStatusCancelling:
		return contractx.RunInProgress
	case openai.RunStatusRequiresAction:
		return contractx.RunRequiresAction
	case openai.RunStatusCompleted:
		return contractx.RunCompleted
	case openai.RunStatusCancelled:
		return contractx.RunCancelled
	case openai.RunStatusExpired:
		return contractx.RunExpired
	default:
		// failed, incomplete, and anything the API adds later.
		return contractx.RunFailed
	}
}

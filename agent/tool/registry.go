// Package tool dispatches assistant tool calls to registered handlers. The
// registry guarantees that every call in a batch receives exactly one output:
// handler errors, panics, and unknown tool names all become structured error
// outputs so the run can continue instead of stalling.
package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	contractx "github.com/tecshine/agenda-middleware/agent/contract"
)

// Handler executes one tool call. The returned value is serialized to JSON
// before being fed back into the run.
type Handler func(ctx context.Context, args map[string]any) (any, error)

type Registry struct {
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler, 4)}
}

func (r *Registry) Register(name string, handler Handler) {
	if name == "" || handler == nil {
		return
	}
	r.handlers[name] = handler
}

// Dispatch answers every call in the batch, in order. A failure in one call
// never aborts the others.
func (r *Registry) Dispatch(ctx context.Context, calls []contractx.ToolCall) []contractx.ToolOutput {
	outputs := make([]contractx.ToolOutput, 0, len(calls))
	for _, call := range calls {
		outputs = append(outputs, contractx.ToolOutput{
			CallID: call.ID,
			Output: r.dispatchOne(ctx, call),
		})
	}
	return outputs
}

func (r *Registry) dispatchOne(ctx context.Context, call contractx.ToolCall) (out string) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().
				Str("tool", call.Name).
				Str("call_id", call.ID).
				Interface("panic", rec).
				Msg("tool handler panicked")
			out = errorOutput(fmt.Sprintf("tool %s failed: %v", call.Name, rec))
		}
	}()

	handler, ok := r.handlers[call.Name]
	if !ok {
		log.Warn().Str("tool", call.Name).Msg("assistant requested unknown tool")
		return errorOutput(fmt.Sprintf("unknown tool %q", call.Name))
	}

	result, err := handler(ctx, call.Arguments)
	if err != nil {
		log.Warn().Err(err).Str("tool", call.Name).Msg("tool handler failed")
		return errorOutput(err.Error())
	}

	raw, err := json.Marshal(result)
	if err != nil {
		return errorOutput(fmt.Sprintf("tool %s produced unserializable result: %v", call.Name, err))
	}
	return string(raw)
}

func errorOutput(message string) string {
	raw, _ := json.Marshal(map[string]string{"error": message})
	return string(raw)
}

package tool

import (
	"context"
	"fmt"
	"strings"

	contractx "github.com/tecshine/agenda-middleware/agent/contract"
	schedulex "github.com/tecshine/agenda-middleware/agent/schedule"
)

const (
	ToolCreateCalendarEvent = "create_calendar_event"
	ToolCheckAvailability   = "check_availability"
)

// BookingScheduler is the slice of the scheduler the booking tool needs.
type BookingScheduler interface {
	Schedule(ctx context.Context, args map[string]any, fb contractx.WebhookContext) (contractx.SchedulingResult, error)
}

// ForContact builds the registry served to one webhook invocation. fb carries
// the payload-derived fallback fields, so the registry is per-request.
func ForContact(
	scheduler BookingScheduler,
	calendar contractx.CalendarGateway,
	normalizer *schedulex.Normalizer,
	fb contractx.WebhookContext,
) *Registry {
	registry := NewRegistry()
	registry.Register(ToolCreateCalendarEvent, NewCreateEventHandler(scheduler, fb))
	registry.Register(ToolCheckAvailability, NewAvailabilityHandler(calendar, normalizer))
	return registry
}

// NewCreateEventHandler adapts the idempotent scheduler into a tool handler.
func NewCreateEventHandler(scheduler BookingScheduler, fb contractx.WebhookContext) Handler {
	return func(ctx context.Context, args map[string]any) (any, error) {
		return scheduler.Schedule(ctx, args, fb)
	}
}

type availabilityResult struct {
	Available bool   `json:"available"`
	Start     string `json:"start"`
	End       string `json:"end"`
}

// NewAvailabilityHandler exposes a read-only window lookup so the assistant
// can answer "is that slot free" without booking anything.
func NewAvailabilityHandler(calendar contractx.CalendarGateway, normalizer *schedulex.Normalizer) Handler {
	return func(ctx context.Context, args map[string]any) (any, error) {
		category := strings.ToLower(stringArg(args, "service_category", "category", "service_type"))
		if category == "" {
			return nil, fmt.Errorf("%w: service_category", contractx.ErrMissingField)
		}

		calendarID, err := calendar.ResolveCalendarID(category)
		if err != nil {
			return nil, err
		}

		start, end, err := normalizer.Normalize(
			stringArg(args, "date", "data"),
			stringArg(args, "start_time", "time", "hora_inicio"),
			intArg(args, "duration_minutes", "duration"),
		)
		if err != nil {
			return nil, err
		}

		available, err := calendar.IsTimeAvailable(ctx, calendarID, start, end)
		if err != nil {
			return nil, err
		}
		return availabilityResult{
			Available: available,
			Start:     start.Format("2006-01-02 15:04"),
			End:       end.Format("2006-01-02 15:04"),
		}, nil
	}
}

func stringArg(args map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := args[key].(string); ok {
			if trimmed := strings.TrimSpace(v); trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}

func intArg(args map[string]any, keys ...string) int {
	for _, key := range keys {
		switch v := args[key].(type) {
		case float64:
			return int(v)
		case int:
			return v
		}
	}
	return 0
}

package tool

import (
	"context"
	"errors"
	"testing"
	"time"

	contractx "github.com/tecshine/agenda-middleware/agent/contract"
	schedulex "github.com/tecshine/agenda-middleware/agent/schedule"
)

type windowCalendar struct {
	available bool
}

func (windowCalendar) ResolveCalendarID(category string) (string, error) {
	if category == "unmapped" {
		return "", contractx.ErrUnknownCategory
	}
	return "cal-" + category, nil
}

func (windowCalendar) FindByHash(context.Context, string, string, time.Time) (*contractx.CalendarEvent, error) {
	return nil, nil
}

func (windowCalendar) Insert(context.Context, string, contractx.BookingRequest, string) (*contractx.CalendarEvent, error) {
	return nil, errors.New("not implemented")
}

func (c windowCalendar) IsTimeAvailable(context.Context, string, time.Time, time.Time) (bool, error) {
	return c.available, nil
}

func testNormalizer(t *testing.T) *schedulex.Normalizer {
	t.Helper()
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return schedulex.NewNormalizer(loc)
}

func TestAvailabilityHandlerReportsBusySlot(t *testing.T) {
	t.Parallel()

	handler := NewAvailabilityHandler(windowCalendar{available: false}, testNormalizer(t))
	result, err := handler(context.Background(), map[string]any{
		"service_category": "polimentos",
		"date":             "2025-01-10",
		"start_time":       "09:00",
	})
	if err != nil {
		t.Fatalf("handler error = %v", err)
	}
	report, ok := result.(availabilityResult)
	if !ok {
		t.Fatalf("unexpected result type: %T", result)
	}
	if report.Available {
		t.Fatal("expected busy slot")
	}
	if report.Start != "2025-01-10 09:00" || report.End != "2025-01-10 10:00" {
		t.Fatalf("unexpected window: %+v", report)
	}
}

func TestAvailabilityHandlerMissingCategory(t *testing.T) {
	t.Parallel()

	handler := NewAvailabilityHandler(windowCalendar{available: true}, testNormalizer(t))
	_, err := handler(context.Background(), map[string]any{
		"date":       "2025-01-10",
		"start_time": "09:00",
	})
	if !errors.Is(err, contractx.ErrMissingField) {
		t.Fatalf("handler error = %v, want ErrMissingField", err)
	}
}

func TestAvailabilityHandlerMalformedTime(t *testing.T) {
	t.Parallel()

	handler := NewAvailabilityHandler(windowCalendar{available: true}, testNormalizer(t))
	_, err := handler(context.Background(), map[string]any{
		"service_category": "polimentos",
		"date":             "2025-01-10",
		"start_time":       "soonish",
	})
	if !errors.Is(err, contractx.ErrMalformedTime) {
		t.Fatalf("handler error = %v, want ErrMalformedTime", err)
	}
}

func TestForContactRegistersBothTools(t *testing.T) {
	t.Parallel()

	registry := ForContact(
		&fixedScheduler{result: contractx.SchedulingResult{EventID: "ev-1"}},
		windowCalendar{available: true},
		testNormalizer(t),
		contractx.WebhookContext{ContactID: "c-1"},
	)

	outputs := registry.Dispatch(context.Background(), []contractx.ToolCall{
		{ID: "call-1", Name: ToolCreateCalendarEvent, Arguments: map[string]any{}},
		{ID: "call-2", Name: ToolCheckAvailability, Arguments: map[string]any{
			"service_category": "polimentos",
			"date":             "2025-01-10",
			"start_time":       "09:00",
		}},
	})
	if len(outputs) != 2 {
		t.Fatalf("outputs = %d, want 2", len(outputs))
	}
}

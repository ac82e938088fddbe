// Package calendar wraps Google Calendar for the scheduling subsystem. The
// gateway performs single network calls and classifies provider failures;
// retry policy lives with the scheduler.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	contractx "github.com/tecshine/agenda-middleware/agent/contract"
)

// hashProperty is the private extended-property key carrying the booking
// hash. The provider is the durability layer for dedup, so this key must
// stay stable across deployments.
const hashProperty = "bookingHash"

type Config struct {
	CredentialsJSON string            `envconfig:"CREDENTIALS_JSON" split_words:"true" required:"true"`
	Timezone        string            `split_words:"true" default:"America/Sao_Paulo"`
	Calendars       map[string]string `split_words:"true" required:"true"`
}

// eventsAPI is the slice of the Google client the gateway needs; tests swap
// in a fake.
type eventsAPI interface {
	List(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]*gcal.Event, error)
	Insert(ctx context.Context, calendarID string, event *gcal.Event) (*gcal.Event, error)
}

type Gateway struct {
	api       eventsAPI
	calendars map[string]string
	loc       *time.Location
	tzName    string
}

func New(ctx context.Context, cfg Config) (*Gateway, error) {
	if strings.TrimSpace(cfg.CredentialsJSON) == "" {
		return nil, errors.New("google calendar credentials are required")
	}
	if len(cfg.Calendars) == 0 {
		return nil, errors.New("category to calendar mapping is required")
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}

	svc, err := gcal.NewService(ctx,
		option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)),
		option.WithScopes(gcal.CalendarScope),
	)
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}

	calendars := make(map[string]string, len(cfg.Calendars))
	for category, id := range cfg.Calendars {
		calendars[strings.ToLower(strings.TrimSpace(category))] = strings.TrimSpace(id)
	}

	return &Gateway{
		api:       &googleEvents{svc: svc},
		calendars: calendars,
		loc:       loc,
		tzName:    cfg.Timezone,
	}, nil
}

// Location exposes the business timezone so schedule parsing agrees with
// the calendars it writes to.
func (g *Gateway) Location() *time.Location {
	return g.loc
}

func (g *Gateway) ResolveCalendarID(category string) (string, error) {
	id, ok := g.calendars[strings.ToLower(strings.TrimSpace(category))]
	if !ok || id == "" {
		return "", fmt.Errorf("%w: %q", contractx.ErrUnknownCategory, category)
	}
	return id, nil
}

// FindByHash scans the calendar day containing day for an event whose private
// metadata carries hash. The provider returns events ordered by start time,
// so the scan is deterministic for a given provider state.
func (g *Gateway) FindByHash(ctx context.Context, calendarID, hash string, day time.Time) (*contractx.CalendarEvent, error) {
	local := day.In(g.loc)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, g.loc)
	dayEnd := dayStart.AddDate(0, 0, 1)

	items, err := g.api.List(ctx, calendarID, dayStart, dayEnd)
	if err != nil {
		return nil, classify("list events", err)
	}

	for _, item := range items {
		if item.ExtendedProperties == nil {
			continue
		}
		if item.ExtendedProperties.Private[hashProperty] != hash {
			continue
		}
		return fromGoogleEvent(item), nil
	}
	return nil, nil
}

func (g *Gateway) Insert(ctx context.Context, calendarID string, req contractx.BookingRequest, hash string) (*contractx.CalendarEvent, error) {
	event := &gcal.Event{
		Summary:     fmt.Sprintf("%s - %s", req.ServiceCategory, req.ClientName),
		Description: buildDescription(req),
		Start: &gcal.EventDateTime{
			DateTime: req.Start.Format(time.RFC3339),
			TimeZone: g.tzName,
		},
		End: &gcal.EventDateTime{
			DateTime: req.End.Format(time.RFC3339),
			TimeZone: g.tzName,
		},
		ExtendedProperties: &gcal.EventExtendedProperties{
			Private: map[string]string{hashProperty: hash},
		},
	}

	created, err := g.api.Insert(ctx, calendarID, event)
	if err != nil {
		return nil, classify("insert event", err)
	}
	return fromGoogleEvent(created), nil
}

func (g *Gateway) IsTimeAvailable(ctx context.Context, calendarID string, start, end time.Time) (bool, error) {
	items, err := g.api.List(ctx, calendarID, start, end)
	if err != nil {
		return false, classify("list events", err)
	}
	return len(items) == 0, nil
}

func buildDescription(req contractx.BookingRequest) string {
	lines := make([]string, 0, 4)
	if req.Description != "" {
		lines = append(lines, req.Description, "")
	}
	lines = append(lines,
		"Cliente: "+req.ClientName,
		"Telefone: "+req.Phone,
	)
	return strings.Join(lines, "\n")
}

func fromGoogleEvent(event *gcal.Event) *contractx.CalendarEvent {
	out := &contractx.CalendarEvent{
		ID:       event.Id,
		HTMLLink: event.HtmlLink,
		Summary:  event.Summary,
	}
	if event.Start != nil {
		out.Start, _ = time.Parse(time.RFC3339, event.Start.DateTime)
	}
	if event.End != nil {
		out.End, _ = time.Parse(time.RFC3339, event.End.DateTime)
	}
	return out
}

// classify splits provider failures into transient (retryable) and permanent.
// Rate limits, 5xx, and network timeouts are transient; auth and bad-request
// responses are not.
func classify(op string, err error) error {
	transient := true

	var gerr *googleapi.Error
	switch {
	case errors.As(err, &gerr):
		transient = gerr.Code == 429 || gerr.Code >= 500
	case errors.Is(err, context.Canceled):
		transient = false
	}

	return &contractx.ProviderError{Op: op, Transient: transient, Err: err}
}

// googleEvents adapts the generated client to eventsAPI.
type googleEvents struct {
	svc *gcal.Service
}

func (g *googleEvents) List(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]*gcal.Event, error) {
	result, err := g.svc.Events.List(calendarID).
		TimeMin(timeMin.Format(time.RFC3339)).
		TimeMax(timeMax.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}
	return result.Items, nil
}

func (g *googleEvents) Insert(ctx context.Context, calendarID string, event *gcal.Event) (*gcal.Event, error) {
	return g.svc.Events.Insert(calendarID, event).Context(ctx).Do()
}

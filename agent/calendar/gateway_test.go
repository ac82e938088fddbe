package calendar

import (
	"context"
	"errors"
	"testing"
	"time"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"

	contractx "github.com/tecshine/agenda-middleware/agent/contract"
)

type fakeEventsAPI struct {
	items     []*gcal.Event
	listErr   error
	insertErr error

	lastTimeMin time.Time
	lastTimeMax time.Time
	inserted    *gcal.Event
}

func (f *fakeEventsAPI) List(_ context.Context, _ string, timeMin, timeMax time.Time) ([]*gcal.Event, error) {
	f.lastTimeMin = timeMin
	f.lastTimeMax = timeMax
	return f.items, f.listErr
}

func (f *fakeEventsAPI) Insert(_ context.Context, _ string, event *gcal.Event) (*gcal.Event, error) {
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	f.inserted = event
	created := *event
	created.Id = "ev-created"
	created.HtmlLink = "https://calendar.example/ev-created"
	return &created, nil
}

func testGateway(t *testing.T, api eventsAPI) *Gateway {
	t.Helper()
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return &Gateway{
		api:       api,
		calendars: map[string]string{"polimentos": "cal-pol", "lavagens": "cal-lav"},
		loc:       loc,
		tzName:    "America/Sao_Paulo",
	}
}

func TestResolveCalendarID(t *testing.T) {
	t.Parallel()

	g := testGateway(t, &fakeEventsAPI{})
	id, err := g.ResolveCalendarID("POLIMENTOS")
	if err != nil {
		t.Fatalf("ResolveCalendarID() error = %v", err)
	}
	if id != "cal-pol" {
		t.Fatalf("id = %q, want cal-pol", id)
	}

	if _, err := g.ResolveCalendarID("martelinho"); !errors.Is(err, contractx.ErrUnknownCategory) {
		t.Fatalf("error = %v, want ErrUnknownCategory", err)
	}
}

func TestFindByHashScansPrivateProperties(t *testing.T) {
	t.Parallel()

	api := &fakeEventsAPI{items: []*gcal.Event{
		{Id: "ev-other"},
		{
			Id:       "ev-match",
			HtmlLink: "https://calendar.example/ev-match",
			ExtendedProperties: &gcal.EventExtendedProperties{
				Private: map[string]string{hashProperty: "abc123"},
			},
		},
	}}
	g := testGateway(t, api)

	day := time.Date(2025, 1, 10, 9, 0, 0, 0, g.loc)
	event, err := g.FindByHash(context.Background(), "cal-pol", "abc123", day)
	if err != nil {
		t.Fatalf("FindByHash() error = %v", err)
	}
	if event == nil || event.ID != "ev-match" {
		t.Fatalf("unexpected event: %+v", event)
	}

	wantMin := time.Date(2025, 1, 10, 0, 0, 0, 0, g.loc)
	if !api.lastTimeMin.Equal(wantMin) || !api.lastTimeMax.Equal(wantMin.AddDate(0, 0, 1)) {
		t.Fatalf("window = [%v, %v), want one calendar day", api.lastTimeMin, api.lastTimeMax)
	}
}

func TestFindByHashNoMatch(t *testing.T) {
	t.Parallel()

	g := testGateway(t, &fakeEventsAPI{items: []*gcal.Event{{Id: "ev-1"}}})
	event, err := g.FindByHash(context.Background(), "cal-pol", "missing", time.Now())
	if err != nil {
		t.Fatalf("FindByHash() error = %v", err)
	}
	if event != nil {
		t.Fatalf("expected nil, got %+v", event)
	}
}

func TestInsertEmbedsHash(t *testing.T) {
	t.Parallel()

	api := &fakeEventsAPI{}
	g := testGateway(t, api)

	req := contractx.BookingRequest{
		ClientName:      "Lucas",
		Phone:           "+5511999990000",
		ServiceCategory: "polimentos",
		Start:           time.Date(2025, 1, 10, 9, 0, 0, 0, g.loc),
		End:             time.Date(2025, 1, 10, 10, 0, 0, 0, g.loc),
		Description:     "Sedan preto",
	}
	event, err := g.Insert(context.Background(), "cal-pol", req, "abc123")
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if event.ID != "ev-created" {
		t.Fatalf("unexpected event: %+v", event)
	}
	if api.inserted.ExtendedProperties.Private[hashProperty] != "abc123" {
		t.Fatal("booking hash not embedded in private properties")
	}
	if api.inserted.Start.TimeZone != "America/Sao_Paulo" {
		t.Fatalf("timezone = %q", api.inserted.Start.TimeZone)
	}
}

func TestClassifyProviderErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		err       error
		transient bool
	}{
		{"rate limit", &googleapi.Error{Code: 429}, true},
		{"backend", &googleapi.Error{Code: 503}, true},
		{"auth", &googleapi.Error{Code: 401}, false},
		{"bad request", &googleapi.Error{Code: 400}, false},
		{"network", errors.New("connection reset"), true},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			g := testGateway(t, &fakeEventsAPI{insertErr: tc.err})
			_, err := g.Insert(context.Background(), "cal-pol", contractx.BookingRequest{}, "h")
			if got := contractx.IsTransient(err); got != tc.transient {
				t.Fatalf("IsTransient(%v) = %v, want %v", err, got, tc.transient)
			}
		})
	}
}

func TestIsTimeAvailable(t *testing.T) {
	t.Parallel()

	busy := testGateway(t, &fakeEventsAPI{items: []*gcal.Event{{Id: "ev-1"}}})
	available, err := busy.IsTimeAvailable(context.Background(), "cal-pol", time.Now(), time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("IsTimeAvailable() error = %v", err)
	}
	if available {
		t.Fatal("expected busy window")
	}

	free := testGateway(t, &fakeEventsAPI{})
	available, err = free.IsTimeAvailable(context.Background(), "cal-pol", time.Now(), time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("IsTimeAvailable() error = %v", err)
	}
	if !available {
		t.Fatal("expected free window")
	}
}

package schedule

import (
	"errors"
	"testing"
	"time"

	contractx "github.com/tecshine/agenda-middleware/agent/contract"
)

type stubClassifier struct {
	category string
	ok       bool
}

func (s stubClassifier) Classify(string) (string, bool) {
	return s.category, s.ok
}

func testBuilder(t *testing.T, classifier contractx.Classifier) *BookingBuilder {
	t.Helper()
	return NewBookingBuilder(NewNormalizer(saoPaulo(t)), classifier, "BR")
}

func TestBuildAliasFormsHashIdentically(t *testing.T) {
	t.Parallel()

	b := testBuilder(t, nil)
	fb := contractx.WebhookContext{ContactID: "c-1"}

	splitForm := map[string]any{
		"client_name":      "Lucas",
		"phone":            "+55 11 99999-0000",
		"service_category": "polimentos",
		"date":             "2025-01-10",
		"start_time":       "9h",
		"duration_minutes": float64(60),
	}
	isoForm := map[string]any{
		"name":         "Lucas",
		"client_phone": "5511999990000",
		"service_type": "POLIMENTOS",
		"start_iso":    "2025-01-10T09:00:00",
		"duration":     "60",
	}

	first, err := b.Build(splitForm, fb)
	if err != nil {
		t.Fatalf("Build(split) error = %v", err)
	}
	second, err := b.Build(isoForm, fb)
	if err != nil {
		t.Fatalf("Build(iso) error = %v", err)
	}

	if HashOf(first) != HashOf(second) {
		t.Fatalf("alias forms diverged:\n%+v\n%+v", first, second)
	}
	if first.Phone != "+5511999990000" {
		t.Fatalf("phone not canonicalized: %q", first.Phone)
	}
}

func TestBuildFallsBackToWebhookContext(t *testing.T) {
	t.Parallel()

	b := testBuilder(t, nil)
	fb := contractx.WebhookContext{
		ContactID:  "c-2",
		Phone:      "+5511988887777",
		ClientName: "Marina",
	}

	req, err := b.Build(map[string]any{
		"service_category": "lavagens",
		"date":             "2025-02-01",
		"start_time":       "10:30",
	}, fb)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if req.ClientName != "Marina" || req.Phone != "+5511988887777" {
		t.Fatalf("fallback not applied: %+v", req)
	}
}

func TestBuildMissingFieldsAfterFallback(t *testing.T) {
	t.Parallel()

	b := testBuilder(t, stubClassifier{})
	_, err := b.Build(map[string]any{
		"service_category": "lavagens",
		"date":             "2025-02-01",
		"start_time":       "10:30",
	}, contractx.WebhookContext{ContactID: "c-3"})
	if !errors.Is(err, contractx.ErrMissingField) {
		t.Fatalf("Build() error = %v, want ErrMissingField", err)
	}
}

func TestBuildClassifierFillsCategory(t *testing.T) {
	t.Parallel()

	b := testBuilder(t, stubClassifier{category: "higienizacao", ok: true})
	req, err := b.Build(map[string]any{
		"client_name": "Lucas",
		"phone":       "+5511999990000",
		"title":       "Higienização interna completa",
		"date":        "2025-02-01",
		"start_time":  "08:00",
	}, contractx.WebhookContext{ContactID: "c-4"})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if req.ServiceCategory != "higienizacao" {
		t.Fatalf("category = %q, want higienizacao", req.ServiceCategory)
	}
}

func TestBuildExplicitEndWins(t *testing.T) {
	t.Parallel()

	b := testBuilder(t, nil)
	req, err := b.Build(map[string]any{
		"client_name":      "Lucas",
		"phone":            "+5511999990000",
		"service_category": "peliculas",
		"start":            "2025-01-10T09:00:00",
		"end":              "2025-01-10T11:30:00",
	}, contractx.WebhookContext{ContactID: "c-5"})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if got := req.End.Sub(req.Start); got != 150*time.Minute {
		t.Fatalf("window = %v, want 2h30m", got)
	}
}

func TestBuildDefaultDurationScenario(t *testing.T) {
	t.Parallel()

	b := testBuilder(t, nil)
	req, err := b.Build(map[string]any{
		"client_name":      "Lucas",
		"phone":            "+5511999990000",
		"service_category": "polimentos",
		"start":            "2025-01-10T09:00:00",
	}, contractx.WebhookContext{ContactID: "c-6"})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	want := time.Date(2025, 1, 10, 10, 0, 0, 0, req.Start.Location())
	if !req.End.Equal(want) {
		t.Fatalf("end = %v, want %v", req.End, want)
	}
}

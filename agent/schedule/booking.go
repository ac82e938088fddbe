package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nyaruka/phonenumbers"

	contractx "github.com/tecshine/agenda-middleware/agent/contract"
)

// Argument aliases observed across assistant call sites. The first key with a
// usable value wins.
var (
	nameKeys        = []string{"client_name", "name", "cliente_nome", "nome_cliente"}
	phoneKeys       = []string{"phone", "client_phone", "telefone"}
	categoryKeys    = []string{"service_category", "category", "service_type", "categoria"}
	serviceTextKeys = []string{"service", "title", "summary", "servico"}
	dateKeys        = []string{"date", "data"}
	clockKeys       = []string{"start_time", "time", "hora_inicio", "time_start"}
	startISOKeys    = []string{"start", "start_iso", "start_datetime"}
	endISOKeys      = []string{"end", "end_iso", "end_datetime"}
	durationKeys    = []string{"duration_minutes", "duration", "duracao_minutos"}
	descriptionKeys = []string{"description", "note", "resumo_conversa", "notes"}
)

var isoLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// BookingBuilder assembles a BookingRequest from raw tool-call arguments plus
// webhook fallback values.
type BookingBuilder struct {
	normalizer  *Normalizer
	classifier  contractx.Classifier
	phoneRegion string
}

func NewBookingBuilder(normalizer *Normalizer, classifier contractx.Classifier, phoneRegion string) *BookingBuilder {
	return &BookingBuilder{
		normalizer:  normalizer,
		classifier:  classifier,
		phoneRegion: strings.ToUpper(strings.TrimSpace(phoneRegion)),
	}
}

// Build resolves aliases, fills gaps from fb, and normalizes the time window.
// Fields missing from both the arguments and fb are a hard error; Build never
// invents a value.
func (b *BookingBuilder) Build(args map[string]any, fb contractx.WebhookContext) (contractx.BookingRequest, error) {
	var req contractx.BookingRequest

	req.ClientName = firstString(args, nameKeys)
	if req.ClientName == "" {
		req.ClientName = strings.TrimSpace(fb.ClientName)
	}
	if req.ClientName == "" {
		return req, fmt.Errorf("%w: client_name", contractx.ErrMissingField)
	}

	phone := firstString(args, phoneKeys)
	if phone == "" {
		phone = strings.TrimSpace(fb.Phone)
	}
	if phone == "" {
		return req, fmt.Errorf("%w: phone", contractx.ErrMissingField)
	}
	req.Phone = b.canonicalPhone(phone)

	req.ServiceCategory = strings.ToLower(firstString(args, categoryKeys))
	if req.ServiceCategory == "" && b.classifier != nil {
		freeText := strings.TrimSpace(firstString(args, serviceTextKeys) + " " + firstString(args, descriptionKeys))
		if category, ok := b.classifier.Classify(freeText); ok {
			req.ServiceCategory = category
		}
	}
	if req.ServiceCategory == "" {
		return req, fmt.Errorf("%w: service_category", contractx.ErrMissingField)
	}

	start, end, err := b.window(args)
	if err != nil {
		return req, err
	}
	req.Start = start
	req.End = end

	req.Description = firstString(args, descriptionKeys)
	return req, nil
}

// window prefers an explicit ISO start over a split date + time pair. The end
// is taken from an explicit ISO end when present, otherwise start + duration.
func (b *BookingBuilder) window(args map[string]any) (time.Time, time.Time, error) {
	duration := durationMinutes(args)

	if iso := firstString(args, startISOKeys); iso != "" {
		start, err := b.parseISO(iso)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		if endISO := firstString(args, endISOKeys); endISO != "" {
			end, err := b.parseISO(endISO)
			if err == nil && end.After(start) {
				return start, end, nil
			}
			// A bad end is recoverable: fall through to the duration.
		}
		return start, start.Add(time.Duration(duration) * time.Minute), nil
	}

	dateStr := firstString(args, dateKeys)
	clockStr := firstString(args, clockKeys)
	if dateStr == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: empty date", contractx.ErrMalformedDate)
	}
	if clockStr == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: empty time", contractx.ErrMalformedTime)
	}
	return b.normalizer.Normalize(dateStr, clockStr, duration)
}

func (b *BookingBuilder) parseISO(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	for _, layout := range isoLayouts {
		if ts, err := time.ParseInLocation(layout, trimmed, b.normalizer.Location()); err == nil {
			return ts.In(b.normalizer.Location()), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", contractx.ErrMalformedDate, value)
}

// canonicalPhone formats parseable numbers as E.164 so formatting noise never
// defeats the dedup hash. Unparseable input passes through trimmed.
func (b *BookingBuilder) canonicalPhone(raw string) string {
	trimmed := strings.TrimSpace(raw)
	num, err := phonenumbers.Parse(trimmed, b.phoneRegion)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return trimmed
	}
	return phonenumbers.Format(num, phonenumbers.E164)
}

func firstString(args map[string]any, keys []string) string {
	for _, key := range keys {
		raw, ok := args[key]
		if !ok {
			continue
		}
		switch v := raw.(type) {
		case string:
			if trimmed := strings.TrimSpace(v); trimmed != "" {
				return trimmed
			}
		case fmt.Stringer:
			if trimmed := strings.TrimSpace(v.String()); trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}

// durationMinutes tolerates numbers, numeric strings, and garbage; anything
// unusable becomes the default instead of an error.
func durationMinutes(args map[string]any) int {
	for _, key := range durationKeys {
		switch v := args[key].(type) {
		case float64:
			if v > 0 {
				return int(v)
			}
		case int:
			if v > 0 {
				return v
			}
		case string:
			if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && parsed > 0 {
				return parsed
			}
		}
	}
	return DefaultDurationMinutes
}

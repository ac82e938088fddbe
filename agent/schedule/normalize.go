package schedule

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	contractx "github.com/tecshine/agenda-middleware/agent/contract"
)

// DefaultDurationMinutes is applied when a booking arrives without a usable
// duration. A missing duration is never fatal, unlike a missing date or time.
const DefaultDurationMinutes = 60

var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"2-1-2006",
}

// Normalizer turns loosely formatted date/time/duration fields into a
// canonical start/end pair anchored to the service time zone.
type Normalizer struct {
	loc *time.Location
}

func NewNormalizer(loc *time.Location) *Normalizer {
	if loc == nil {
		loc = time.UTC
	}
	return &Normalizer{loc: loc}
}

func (n *Normalizer) Location() *time.Location {
	return n.loc
}

// Normalize parses dateStr and timeStr and returns the booking window.
// durationMinutes <= 0 falls back to DefaultDurationMinutes.
func (n *Normalizer) Normalize(dateStr, timeStr string, durationMinutes int) (time.Time, time.Time, error) {
	day, err := n.parseDate(dateStr)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	hour, minute, err := parseClock(timeStr)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	if durationMinutes <= 0 {
		durationMinutes = DefaultDurationMinutes
	}

	start := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, n.loc)
	end := start.Add(time.Duration(durationMinutes) * time.Minute)
	return start, end, nil
}

func (n *Normalizer) parseDate(dateStr string) (time.Time, error) {
	trimmed := strings.TrimSpace(dateStr)
	if trimmed == "" {
		return time.Time{}, fmt.Errorf("%w: empty date", contractx.ErrMalformedDate)
	}
	for _, layout := range dateLayouts {
		if day, err := time.ParseInLocation(layout, trimmed, n.loc); err == nil {
			return day, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", contractx.ErrMalformedDate, dateStr)
}

// parseClock accepts HH:MM, H:MM, HHh, HHhMM, a 4-digit HHMM, and a bare
// hour. The "h" separator is normalized to ":" and a missing minute part
// defaults to 00.
func parseClock(timeStr string) (int, int, error) {
	trimmed := strings.TrimSpace(timeStr)
	if trimmed == "" {
		return 0, 0, fmt.Errorf("%w: empty time", contractx.ErrMalformedTime)
	}

	normalized := strings.NewReplacer("h", ":", "H", ":").Replace(trimmed)
	normalized = strings.TrimSuffix(normalized, ":")

	var hourPart, minutePart string
	switch {
	case strings.Contains(normalized, ":"):
		pieces := strings.Split(normalized, ":")
		if len(pieces) != 2 {
			return 0, 0, fmt.Errorf("%w: %q", contractx.ErrMalformedTime, timeStr)
		}
		hourPart, minutePart = pieces[0], pieces[1]
	case len(normalized) == 4:
		// No separator: split a 4-digit clock 2/2.
		hourPart, minutePart = normalized[:2], normalized[2:]
	case len(normalized) <= 2:
		hourPart, minutePart = normalized, "00"
	default:
		return 0, 0, fmt.Errorf("%w: %q", contractx.ErrMalformedTime, timeStr)
	}

	hour, err := strconv.Atoi(hourPart)
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("%w: %q", contractx.ErrMalformedTime, timeStr)
	}
	minute, err := strconv.Atoi(minutePart)
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("%w: %q", contractx.ErrMalformedTime, timeStr)
	}
	return hour, minute, nil
}

// ComputeHash derives the stable identifier of one logical booking request.
// Inputs are joined in a fixed order so two semantically identical requests
// hash the same regardless of how the caller assembled them.
func ComputeHash(clientName, phone, serviceCategory string, start, end time.Time) string {
	payload := strings.Join([]string{
		strings.TrimSpace(clientName),
		strings.TrimSpace(phone),
		strings.TrimSpace(serviceCategory),
		start.Format(time.RFC3339),
		end.Format(time.RFC3339),
	}, "|")
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// HashOf is a convenience over ComputeHash for an assembled request.
func HashOf(req contractx.BookingRequest) string {
	return ComputeHash(req.ClientName, req.Phone, req.ServiceCategory, req.Start, req.End)
}

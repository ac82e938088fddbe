package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sethvargo/go-retry"

	contractx "github.com/tecshine/agenda-middleware/agent/contract"
)

const (
	defaultMaxInsertAttempts = 3
	defaultRetryInterval     = 200 * time.Millisecond
)

// Scheduler turns raw tool-call arguments into at most one calendar event per
// logical booking. Duplicate intents are detected through the booking hash
// stored on the provider side, so the guarantee survives process restarts.
type Scheduler struct {
	calendar contractx.CalendarGateway
	builder  *BookingBuilder

	maxAttempts   uint64
	retryInterval time.Duration
}

type SchedulerOption func(*Scheduler)

func WithMaxInsertAttempts(attempts int) SchedulerOption {
	return func(s *Scheduler) {
		if attempts > 0 {
			s.maxAttempts = uint64(attempts)
		}
	}
}

func WithRetryInterval(interval time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if interval > 0 {
			s.retryInterval = interval
		}
	}
}

func NewScheduler(calendar contractx.CalendarGateway, builder *BookingBuilder, opts ...SchedulerOption) (*Scheduler, error) {
	if calendar == nil {
		return nil, errors.New("calendar gateway is required")
	}
	if builder == nil {
		return nil, errors.New("booking builder is required")
	}

	s := &Scheduler{
		calendar:      calendar,
		builder:       builder,
		maxAttempts:   defaultMaxInsertAttempts,
		retryInterval: defaultRetryInterval,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Schedule builds the booking, short-circuits on a duplicate, and otherwise
// inserts under a bounded retry. Every outcome comes back as a result or an
// error value; nothing panics across this boundary because the run driver is
// obligated to answer every tool call.
func (s *Scheduler) Schedule(ctx context.Context, args map[string]any, fb contractx.WebhookContext) (contractx.SchedulingResult, error) {
	req, err := s.builder.Build(args, fb)
	if err != nil {
		return contractx.SchedulingResult{}, err
	}

	calendarID, err := s.calendar.ResolveCalendarID(req.ServiceCategory)
	if err != nil {
		return contractx.SchedulingResult{}, err
	}

	hash := HashOf(req)

	existing, err := s.calendar.FindByHash(ctx, calendarID, hash, req.Start)
	if err != nil {
		// A failed lookup must not block the booking; worst case the insert
		// below creates the event the lookup would have found.
		log.Warn().Err(err).Str("calendar_id", calendarID).Msg("dedup lookup failed, proceeding to insert")
	}
	if existing != nil {
		log.Info().
			Str("event_id", existing.ID).
			Str("booking_hash", hash).
			Msg("duplicate booking intent, returning existing event")
		return contractx.SchedulingResult{
			EventID:      existing.ID,
			HTMLLink:     existing.HTMLLink,
			Deduplicated: true,
		}, nil
	}

	var created *contractx.CalendarEvent
	backoff := retry.WithMaxRetries(s.maxAttempts-1, retry.NewConstant(s.retryInterval))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		event, insertErr := s.calendar.Insert(ctx, calendarID, req, hash)
		if insertErr != nil {
			if contractx.IsTransient(insertErr) {
				return retry.RetryableError(insertErr)
			}
			return insertErr
		}
		created = event
		return nil
	})
	if err != nil {
		return contractx.SchedulingResult{}, fmt.Errorf("insert calendar event: %w", err)
	}

	log.Info().
		Str("event_id", created.ID).
		Str("calendar_id", calendarID).
		Time("start", req.Start).
		Msg("calendar event created")

	return contractx.SchedulingResult{
		EventID:  created.ID,
		HTMLLink: created.HTMLLink,
	}, nil
}

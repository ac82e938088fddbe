// Package run drives one assistant run to a terminal state. The control flow
// is an explicit poll-dispatch-submit loop: poll the run status, dispatch the
// tool-call batch whenever the run requires action, submit the outputs, and
// repeat until the run finishes.
package run

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/tecshine/agenda-middleware/agent/contract"
)

const (
	defaultPollInterval    = 500 * time.Millisecond
	defaultMaxPollInterval = 4 * time.Second
)

type Driver struct {
	gateway contractx.AssistantGateway
	threads contractx.ThreadStore

	pollInterval    time.Duration
	maxPollInterval time.Duration
}

type DriverOption func(*Driver)

func WithPollInterval(initial, max time.Duration) DriverOption {
	return func(d *Driver) {
		if initial > 0 {
			d.pollInterval = initial
		}
		if max >= d.pollInterval {
			d.maxPollInterval = max
		}
	}
}

func NewDriver(gateway contractx.AssistantGateway, threads contractx.ThreadStore, opts ...DriverOption) (*Driver, error) {
	if gateway == nil {
		return nil, errors.New("assistant gateway is required")
	}
	if threads == nil {
		return nil, errors.New("thread store is required")
	}

	d := &Driver{
		gateway:         gateway,
		threads:         threads,
		pollInterval:    defaultPollInterval,
		maxPollInterval: defaultMaxPollInterval,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d, nil
}

// Converse appends message to the contact's thread, runs the assistant to a
// terminal state, and returns the final assistant text. Tool calls raised by
// the run are answered through tools; every call in a batch receives exactly
// one output even when its handler fails.
//
// A run that ends in failed, cancelled, or expired returns
// contract.ErrRunNotCompleted. No hard timeout is enforced here; callers
// bound the whole conversation through ctx.
func (d *Driver) Converse(ctx context.Context, contactID, message string, tools contractx.ToolDispatcher) (string, error) {
	threadID, err := d.ensureThread(ctx, contactID)
	if err != nil {
		return "", fmt.Errorf("ensure thread: %w", err)
	}

	if err := d.gateway.AddMessage(ctx, threadID, message); err != nil {
		return "", err
	}

	current, err := d.gateway.CreateRun(ctx, threadID)
	if err != nil {
		return "", err
	}

	log.Debug().
		Str("contact_id", contactID).
		Str("thread_id", threadID).
		Str("run_id", current.ID).
		Msg("run created")

	current, err = d.drive(ctx, current, tools)
	if err != nil {
		return "", err
	}
	if current.Status != contractx.RunCompleted {
		return "", fmt.Errorf("%w: status=%s", contractx.ErrRunNotCompleted, current.Status)
	}

	return d.gateway.LatestAssistantText(ctx, threadID)
}

func (d *Driver) drive(ctx context.Context, current contractx.Run, tools contractx.ToolDispatcher) (contractx.Run, error) {
	interval := d.pollInterval

	for {
		switch {
		case current.Status.Terminal():
			return current, nil
		case current.Status == contractx.RunRequiresAction:
			log.Debug().
				Str("run_id", current.ID).
				Int("tool_calls", len(current.ToolCalls)).
				Msg("run requires action")

			outputs := tools.Dispatch(ctx, current.ToolCalls)
			if err := d.gateway.SubmitToolOutputs(ctx, current.ThreadID, current.ID, outputs); err != nil {
				return current, err
			}
			// The run made progress; poll eagerly again.
			interval = d.pollInterval
		}

		select {
		case <-ctx.Done():
			return current, ctx.Err()
		case <-time.After(interval):
		}

		next, err := d.gateway.GetRun(ctx, current.ThreadID, current.ID)
		if err != nil {
			return current, err
		}
		current = next

		if interval < d.maxPollInterval {
			interval *= 2
			if interval > d.maxPollInterval {
				interval = d.maxPollInterval
			}
		}
	}
}

// ensureThread loads the contact's thread or creates one. Creation races with
// concurrent webhook deliveries for the same contact, so the store arbitrates
// and the loser adopts the winner's thread.
func (d *Driver) ensureThread(ctx context.Context, contactID string) (string, error) {
	threadID, err := d.threads.Get(ctx, contactID)
	if err == nil {
		return threadID, nil
	}
	if !errors.Is(err, contractx.ErrThreadNotFound) {
		return "", err
	}

	created, err := d.gateway.CreateThread(ctx)
	if err != nil {
		return "", err
	}

	winner, err := d.threads.Claim(ctx, contactID, created)
	if err != nil {
		return "", err
	}
	if winner != created {
		log.Debug().
			Str("contact_id", contactID).
			Str("thread_id", winner).
			Msg("lost thread creation race, adopting existing thread")
	}
	return winner, nil
}

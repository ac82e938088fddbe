package contract

import (
	"context"
	"time"
)

// AssistantGateway wraps the external conversational AI service's run
// lifecycle: threads, messages, runs, and batched tool outputs.
type AssistantGateway interface {
	CreateThread(ctx context.Context) (string, error)
	AddMessage(ctx context.Context, threadID, text string) error
	CreateRun(ctx context.Context, threadID string) (Run, error)
	GetRun(ctx context.Context, threadID, runID string) (Run, error)
	SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []ToolOutput) error
	LatestAssistantText(ctx context.Context, threadID string) (string, error)
}

// CalendarGateway wraps the calendar provider. Implementations perform single
// network calls and never retry; retry policy belongs to the scheduler.
type CalendarGateway interface {
	// ResolveCalendarID maps a service category to its calendar. An unknown
	// category is a configuration error and is never retryable.
	ResolveCalendarID(category string) (string, error)

	// FindByHash scans the events of the calendar day containing day for one
	// whose private metadata carries the given booking hash. Returns nil when
	// no event matches.
	FindByHash(ctx context.Context, calendarID, hash string, day time.Time) (*CalendarEvent, error)

	// Insert creates the event with the booking hash embedded in its private
	// metadata.
	Insert(ctx context.Context, calendarID string, req BookingRequest, hash string) (*CalendarEvent, error)

	// IsTimeAvailable reports whether no event overlaps [start, end).
	IsTimeAvailable(ctx context.Context, calendarID string, start, end time.Time) (bool, error)
}

// ThreadStore maps a contact to its live assistant thread.
type ThreadStore interface {
	// Get returns the thread for the contact, or ErrThreadNotFound.
	Get(ctx context.Context, contactID string) (string, error)

	// Claim records threadID for the contact unless another claim won first.
	// It returns the thread that ended up owned by the contact, which callers
	// must adopt even when it is not the one they proposed.
	Claim(ctx context.Context, contactID, threadID string) (string, error)
}

// Classifier infers a service category from free text. Implementations are
// explicitly configured; ok is false when no rule applies.
type Classifier interface {
	Classify(text string) (category string, ok bool)
}

// ToolDispatcher answers a batch of tool calls. Implementations must produce
// exactly one output per call, converting handler failures into structured
// error outputs instead of dropping the call.
type ToolDispatcher interface {
	Dispatch(ctx context.Context, calls []ToolCall) []ToolOutput
}

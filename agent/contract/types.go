package contract

import "time"

// RunStatus mirrors the lifecycle the assistant service reports for one run.
type RunStatus string

const (
	RunQueued         RunStatus = "queued"
	RunInProgress     RunStatus = "in_progress"
	RunRequiresAction RunStatus = "requires_action"
	RunCompleted      RunStatus = "completed"
	RunFailed         RunStatus = "failed"
	RunCancelled      RunStatus = "cancelled"
	RunExpired        RunStatus = "expired"
)

// Terminal reports whether the run can no longer make progress.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunCompleted, RunFailed, RunCancelled, RunExpired:
		return true
	}
	return false
}

// Run is a snapshot of one assistant run. ToolCalls is populated only while
// Status is RunRequiresAction.
type Run struct {
	ID        string
	ThreadID  string
	Status    RunStatus
	ToolCalls []ToolCall
}

// ToolCall is one action request emitted by the assistant during a run.
// Arguments is the decoded function-call payload; the assistant does not
// guarantee it is well formed, so handlers must validate every field.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// ToolOutput answers one ToolCall. CallID must echo ToolCall.ID exactly or
// the assistant service rejects the whole submission.
type ToolOutput struct {
	CallID string
	Output string
}

// BookingRequest is the normalized shape the scheduler consumes.
// End is always Start plus the requested duration.
type BookingRequest struct {
	ClientName      string
	Phone           string
	ServiceCategory string
	Start           time.Time
	End             time.Time
	Description     string
}

// SchedulingResult reports the outcome of one scheduling attempt.
// Deduplicated is true when an event with the same booking hash already
// existed and no new event was inserted.
type SchedulingResult struct {
	EventID      string `json:"event_id"`
	HTMLLink     string `json:"html_link,omitempty"`
	Deduplicated bool   `json:"deduplicated"`
}

// CalendarEvent is the provider-owned event as seen by this middleware.
type CalendarEvent struct {
	ID       string
	HTMLLink string
	Summary  string
	Start    time.Time
	End      time.Time
}

// WebhookContext carries the fields the ingress already extracted from the
// inbound payload. Tool handlers fall back to these when the assistant omits
// a field; they never invent values absent from both sources.
type WebhookContext struct {
	ContactID  string
	Phone      string
	ClientName string
}

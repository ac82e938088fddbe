package contract

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedDate    = errors.New("malformed date")
	ErrMalformedTime    = errors.New("malformed time")
	ErrMissingField     = errors.New("missing required booking field")
	ErrUnknownCategory  = errors.New("unknown service category")
	ErrRunNotCompleted  = errors.New("run ended without completing")
	ErrNoAssistantReply = errors.New("no assistant reply in thread")
	ErrThreadNotFound   = errors.New("no thread for contact")
)

// ProviderError wraps a failure from an external provider call and records
// whether the scheduler may retry it.
type ProviderError struct {
	Op        string
	Transient bool
	Err       error
}

func (e *ProviderError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("%s: %s provider error: %v", e.Op, kind, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is a provider error worth retrying.
// Anything that is not a ProviderError is treated as permanent.
func IsTransient(err error) bool {
	var perr *ProviderError
	return errors.As(err, &perr) && perr.Transient
}

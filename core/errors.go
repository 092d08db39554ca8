package core

import (
	"errors"
	"fmt"
)

// Sentinel errors. Typed errors below match them through errors.Is.
var (
	ErrValidation        = errors.New("validation error")
	ErrSessionNotFound   = errors.New("session not found")
	ErrSessionEnded      = errors.New("session ended")
	ErrCapability        = errors.New("capability error")
	ErrCapabilityTimeout = errors.New("capability timeout")
	ErrFilterBlocked     = errors.New("blocked by filter")
	ErrConcurrentWrite   = errors.New("conversation modified concurrently")
	ErrLimitExceeded     = errors.New("limit exceeded")
)

// ValidationError reports a rejected input before any state was touched.
type ValidationError struct {
	Field   string `json:"field"`
	Value   any    `json:"value,omitempty"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation error: " + e.Message
	}

	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// Is matches ErrValidation.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// UnhandledEventError is returned when the current process step has no
// transition for an event. State is left unchanged.
type UnhandledEventError struct {
	Step  string
	Event EventID
}

// Error implements the error interface.
func (e *UnhandledEventError) Error() string {
	return fmt.Sprintf("step %q does not handle event %q", e.Step, e.Event)
}

// Is matches ErrValidation.
func (e *UnhandledEventError) Is(target error) bool { return target == ErrValidation }

// CapabilityError wraps the final failure of an external model or tool call
// after retries were exhausted.
type CapabilityError struct {
	Op       string
	Attempts int
	Timeout  bool
	Err      error
}

// Error implements the error interface.
func (e *CapabilityError) Error() string {
	kind := "failed"
	if e.Timeout {
		kind = "timed out"
	}

	return fmt.Sprintf("%s %s after %d attempt(s): %v", e.Op, kind, e.Attempts, e.Err)
}

// Unwrap returns the underlying cause.
func (e *CapabilityError) Unwrap() error { return e.Err }

// Is matches ErrCapability, and ErrCapabilityTimeout when the last attempt timed out.
func (e *CapabilityError) Is(target error) bool {
	switch target {
	case ErrCapability:
		return true
	case ErrCapabilityTimeout:
		return e.Timeout
	}

	return false
}

type transientError struct{ err error }

func (t *transientError) Error() string { return t.err.Error() }
func (t *transientError) Unwrap() error { return t.err }

// Transient marks err as retryable by Retry.
func Transient(err error) error {
	if err == nil {
		return nil
	}

	return &transientError{err: err}
}

// IsTransient reports whether err is worth retrying: explicit Transient
// marks, deadline expiry and network timeouts.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *transientError
	if errors.As(err, &te) {
		return true
	}

	if errors.Is(err, ErrCapabilityTimeout) {
		return true
	}

	var timeout interface{ Timeout() bool }
	if errors.As(err, &timeout) && timeout.Timeout() {
		return true
	}

	return false
}

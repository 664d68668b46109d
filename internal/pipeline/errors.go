package pipeline

import (
	"errors"
	"fmt"
)

// Error tags a stage failure with its retry class at the point of
// origin, so the consumer never has to infer it from message text.
type Error struct {
	Stage     string
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	class := "terminal"
	if e.Retryable {
		class = "recoverable"
	}
	return fmt.Sprintf("pipeline: stage %s (%s): %v", e.Stage, class, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Terminal wraps a failure that must never be retried (malformed
// intake, logically impossible constraints).
func Terminal(stage string, err error) *Error {
	return &Error{Stage: stage, Retryable: false, Err: err}
}

// Transient wraps a failure the queue's backoff policy should retry
// (external-service timeout, renderer disconnect, compile misses).
func Transient(stage string, err error) *Error {
	return &Error{Stage: stage, Retryable: true, Err: err}
}

// IsRetryable classifies an error for the queue consumer. Untagged
// errors default to retryable: they come from I/O boundaries that were
// never classified, and a wasted retry is cheaper than dropping work.
func IsRetryable(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return true
}

// StageOf returns the stage name carried by a tagged error, or "".
func StageOf(err error) string {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Stage
	}
	return ""
}

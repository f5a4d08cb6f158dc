package flowpipe

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Structural errors (§7): returned by the pipeline's mutation API, never
// logged by the engine itself, compared with errors.Is.
var (
	// ErrDuplicateID is returned by AddProcessor/RegisterInput/RegisterOutput
	// when a node with the same ID is already attached.
	ErrDuplicateID = errors.New("flowpipe: duplicate node id")
	// ErrNotFound is returned when removing or looking up a node by an ID
	// that is not attached to the pipeline.
	ErrNotFound = errors.New("flowpipe: node not found")
	// ErrPriorityOutOfRange is returned when a caller requests a priority
	// outside the reserved 0..100 user range.
	ErrPriorityOutOfRange = errors.New("flowpipe: priority out of range")
	// ErrClosed is returned by any mutating or dispatching call made after
	// the pipeline has been closed.
	ErrClosed = errors.New("flowpipe: pipeline closed")
	// ErrProcessorPanicked wraps a recovered panic raised by a processor or
	// output transformer during dispatch. An input transformer's mapper runs
	// before dispatch starts and a panic in it is not recovered.
	ErrProcessorPanicked = errors.New("flowpipe: processor panicked")
	// ErrRetryExhausted is the cause recorded when a Retry error policy's
	// single retry attempt also fails.
	ErrRetryExhausted = errors.New("flowpipe: retry exhausted")
)

// Severity classifies a ProcessingError for the event subsystem (§4.7).
type Severity int

const (
	// SeverityInfo marks an error a listener may want to observe but that
	// did not affect dispatch (e.g. a suppressed error).
	SeverityInfo Severity = iota
	// SeverityWarning marks a retried error.
	SeverityWarning
	// SeverityError marks a propagated error.
	SeverityError
	// SeverityFatal marks a panic or a terminate-policy error.
	SeverityFatal
)

// String implements fmt.Stringer.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// ProcessingError is the runtime error wrapper for this package, modeled on
// pipz.Error[T]: it carries everything needed to diagnose a single failed
// dispatch through one node without forcing callers to parse a string.
type ProcessingError[F any] struct {
	Cause     error
	Processor Name
	Payload   F
	Severity  Severity
	Timestamp time.Time
	Duration  time.Duration
}

// Error implements the error interface.
func (e *ProcessingError[F]) Error() string {
	if e == nil {
		return "<nil>"
	}
	who := e.Processor
	if who == "" {
		who = "unknown"
	}
	return fmt.Sprintf("%s (%s) failed after %v: %v", who, e.Severity, e.Duration, e.Cause)
}

// Unwrap returns the underlying cause, supporting errors.Is/errors.As.
func (e *ProcessingError[F]) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// IsFatal reports whether this error's severity is SeverityFatal, i.e. it
// came from a panic or a Terminate error policy.
func (e *ProcessingError[F]) IsFatal() bool {
	return e != nil && e.Severity == SeverityFatal
}

// IsRetryExhausted reports whether this error's cause is ErrRetryExhausted,
// i.e. a Retry error policy's single retry attempt also failed.
func (e *ProcessingError[F]) IsRetryExhausted() bool {
	return e != nil && errors.Is(e.Cause, ErrRetryExhausted)
}

// IsTimeout reports whether this error's cause is a context deadline.
func (e *ProcessingError[F]) IsTimeout() bool {
	return e != nil && errors.Is(e.Cause, context.DeadlineExceeded)
}

// IsCanceled reports whether this error's cause is context cancellation.
func (e *ProcessingError[F]) IsCanceled() bool {
	return e != nil && errors.Is(e.Cause, context.Canceled)
}

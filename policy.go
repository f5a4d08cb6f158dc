package flowpipe

import "fmt"

// ErrorPolicy selects how a node reacts to a failing transform (§4.7):
// retry and circuit-breaker state machines collapsed to four outcomes.
type ErrorPolicy int

const (
	// Propagate returns the error to the caller immediately. This is the
	// engine-wide default.
	Propagate ErrorPolicy = iota
	// Suppress discards the error and forwards the frame unchanged.
	Suppress
	// Retry attempts the transform exactly once more before falling back
	// to Propagate if the retry also fails.
	Retry
	// Terminate disables the node (as if Enable(false) had been called)
	// and then propagates the error.
	Terminate
)

// String implements fmt.Stringer.
func (p ErrorPolicy) String() string {
	switch p {
	case Propagate:
		return "propagate"
	case Suppress:
		return "suppress"
	case Retry:
		return "retry"
	case Terminate:
		return "terminate"
	default:
		return "unknown"
	}
}

// applyErrorPolicy runs attempt once, then reacts to a failure per policy.
// attempt performs one real invocation of the processor's transform; under
// Retry it is invoked a second time. onTerminate is called (synchronously,
// under the caller's already-held write lock) only when policy is
// Terminate and the first attempt failed.
func applyErrorPolicy[F any](policy ErrorPolicy, attempt func() (F, error), original F, onTerminate func()) (F, error) {
	out, err := attempt()
	if err == nil {
		return out, nil
	}
	switch policy {
	case Suppress:
		return original, nil
	case Retry:
		if out2, err2 := attempt(); err2 == nil {
			return out2, nil
		} else { //nolint:revive
			var zero F
			return zero, &ProcessingError[F]{
				Cause:    fmt.Errorf("%w: %w", ErrRetryExhausted, err2),
				Payload:  original,
				Severity: SeverityError,
			}
		}
	case Terminate:
		if onTerminate != nil {
			onTerminate()
		}
		var zero F
		return zero, err
	case Propagate:
		fallthrough
	default:
		var zero F
		return zero, err
	}
}

package flowpipe

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"
	"github.com/zoobzio/metricz"
	"github.com/zoobzio/tracez"
)

// WithTimeout wraps inner so it is canceled if it runs longer than
// duration, modeled on a Timeout connector pattern but expressed as a
// plain Transform[F] decorator rather than a standalone Chainable type —
// this package's resilience primitives are things a Processor's
// Transform is built from, not separate chain links. The wrapped inner
// runs on its own goroutine so a non-context-aware inner that never
// returns still yields a timeout error at the deadline, at the cost of
// that goroutine persisting until inner eventually returns.
func WithTimeout[F any](name Name, duration time.Duration, clock clockz.Clock, inner Transform[F]) Transform[F] {
	if clock == nil {
		clock = clockz.RealClock
	}
	metrics := metricz.New()
	metrics.Counter(timeoutProcessedTotal)
	metrics.Counter(timeoutTimeoutsTotal)
	tracer := tracez.New()

	return func(ctx context.Context, f F) (F, error) {
		metrics.Counter(timeoutProcessedTotal).Inc()
		ctx, span := tracer.StartSpan(ctx, timeoutProcessSpan)
		span.SetTag(timeoutTagDuration, duration.String())
		defer span.Finish()

		ctx, cancel := clock.WithTimeout(ctx, duration)
		defer cancel()

		type outcome struct {
			out F
			err error
		}
		ch := make(chan outcome, 1)
		go func() {
			out, err := inner(ctx, f)
			select {
			case ch <- outcome{out, err}:
			case <-ctx.Done():
			}
		}()

		select {
		case res := <-ch:
			if res.err != nil {
				span.SetTag(timeoutTagSuccess, "false")
			} else {
				span.SetTag(timeoutTagSuccess, "true")
			}
			return res.out, res.err
		case <-ctx.Done():
			metrics.Counter(timeoutTimeoutsTotal).Inc()
			span.SetTag(timeoutTagSuccess, "false")
			span.SetTag(timeoutTagTimedOut, "true")
			var zero F
			return zero, ctx.Err()
		}
	}
}

const (
	timeoutProcessedTotal = metricz.Key("flowpipe.timeout.processed.total")
	timeoutTimeoutsTotal  = metricz.Key("flowpipe.timeout.timeouts.total")
	timeoutProcessSpan    = tracez.Key("flowpipe.timeout.process")
	timeoutTagDuration    = tracez.Tag("duration")
	timeoutTagSuccess     = tracez.Tag("success")
	timeoutTagTimedOut    = tracez.Tag("timed_out")
)

// circuitState is the CircuitBreaker's current posture, mirroring the
// teacher's three-state circuit breaker.
type circuitState string

const (
	circuitClosed   circuitState = "closed"
	circuitOpen     circuitState = "open"
	circuitHalfOpen circuitState = "half-open"
)

// ErrCircuitOpen is returned by CircuitBreaker.Transform when the circuit
// is open and the wrapped Transform is not invoked at all.
var ErrCircuitOpen = errors.New("flowpipe: circuit breaker is open")

// CircuitBreaker stops calling a failing Transform once its consecutive
// failures reach failureThreshold, resuming a single trial call after
// resetTimeout elapses (half-open), closing again on a success or
// reopening on another failure. It is stateful across calls, matching
// a typical circuit breaker: build one per protected Transform and
// reuse its Transform() method, never a fresh CircuitBreaker per call.
type CircuitBreaker[F any] struct {
	mu               sync.Mutex
	name             Name
	clock            clockz.Clock
	state            circuitState
	lastFailure      time.Time
	resetTimeout     time.Duration
	generation       int
	failureThreshold int
	successThreshold int
	failures         int
	successes        int
}

// NewCircuitBreaker constructs a CircuitBreaker in the closed state.
func NewCircuitBreaker[F any](name Name, failureThreshold int, resetTimeout time.Duration) *CircuitBreaker[F] {
	if failureThreshold < 1 {
		failureThreshold = 1
	}
	return &CircuitBreaker[F]{
		name:             name,
		clock:            clockz.RealClock,
		state:            circuitClosed,
		failureThreshold: failureThreshold,
		successThreshold: 1,
		resetTimeout:     resetTimeout,
	}
}

// Transform adapts the breaker to a Transform[F] decorator around inner.
func (cb *CircuitBreaker[F]) Transform(inner Transform[F]) Transform[F] {
	return func(ctx context.Context, f F) (F, error) {
		cb.mu.Lock()
		if cb.state == circuitOpen && cb.clock.Since(cb.lastFailure) >= cb.resetTimeout {
			cb.state = circuitHalfOpen
			cb.failures = 0
			cb.successes = 0
			cb.generation++
			capitan.Info(ctx, SignalCircuitBreakerHalfOpen, FieldName.Field(cb.name), FieldState.Field(string(cb.state)), FieldGeneration.Field(cb.generation))
		}
		state := cb.state
		generation := cb.generation
		if state == circuitOpen {
			cb.mu.Unlock()
			capitan.Error(ctx, SignalCircuitBreakerRejected, FieldName.Field(cb.name), FieldState.Field(string(state)))
			var zero F
			return zero, fmt.Errorf("%w: %s", ErrCircuitOpen, cb.name)
		}
		cb.mu.Unlock()

		out, err := inner(ctx, f)

		cb.mu.Lock()
		defer cb.mu.Unlock()
		if cb.generation != generation {
			return out, err
		}
		if err != nil {
			cb.onFailure(ctx)
			return out, err
		}
		cb.onSuccess(ctx)
		return out, nil
	}
}

func (cb *CircuitBreaker[F]) onSuccess(ctx context.Context) {
	switch cb.state {
	case circuitClosed:
		cb.failures = 0
	case circuitHalfOpen:
		cb.successes++
		if cb.successes >= cb.successThreshold {
			cb.state = circuitClosed
			cb.failures = 0
			cb.successes = 0
			capitan.Info(ctx, SignalCircuitBreakerClosed, FieldName.Field(cb.name), FieldState.Field(string(cb.state)))
		}
	}
}

func (cb *CircuitBreaker[F]) onFailure(ctx context.Context) {
	cb.lastFailure = cb.clock.Now()
	switch cb.state {
	case circuitClosed:
		cb.failures++
		if cb.failures >= cb.failureThreshold {
			cb.state = circuitOpen
			capitan.Error(ctx, SignalCircuitBreakerOpened, FieldName.Field(cb.name), FieldState.Field(string(cb.state)), FieldFailures.Field(cb.failures), FieldFailureThreshold.Field(cb.failureThreshold))
		}
	case circuitHalfOpen:
		cb.state = circuitOpen
		cb.failures = 0
		cb.successes = 0
		capitan.Error(ctx, SignalCircuitBreakerOpened, FieldName.Field(cb.name), FieldState.Field(string(cb.state)), FieldFailures.Field(cb.failures), FieldFailureThreshold.Field(cb.failureThreshold))
	}
}

// State returns the breaker's current state, resolving an expired open
// window to half-open the same way Transform resolves an expired window.
func (cb *CircuitBreaker[F]) State() string {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == circuitOpen && cb.clock.Since(cb.lastFailure) >= cb.resetTimeout {
		return string(circuitHalfOpen)
	}
	return string(cb.state)
}

// WithClock overrides the breaker's clock, for deterministic tests.
func (cb *CircuitBreaker[F]) WithClock(clock clockz.Clock) *CircuitBreaker[F] {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.clock = clock
	return cb
}

// Reset forces the breaker back to closed.
func (cb *CircuitBreaker[F]) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = circuitClosed
	cb.failures = 0
	cb.successes = 0
	cb.generation++
}

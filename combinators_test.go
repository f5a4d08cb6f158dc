package flowpipe

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/zoobzio/clockz"
)

func TestWithTimeoutSucceedsWithinDuration(t *testing.T) {
	inner := func(_ context.Context, n int) (int, error) { return n * 2, nil }
	wrapped := WithTimeout[int]("double", time.Second, nil, inner)

	out, err := wrapped(context.Background(), 21)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != 42 {
		t.Fatalf("got %d, want 42", out)
	}
}

func TestWithTimeoutDeterministicWithFakeClock(t *testing.T) {
	clock := clockz.NewFakeClock()
	inner := func(ctx context.Context, n int) (int, error) {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(time.Second):
			return n, nil
		}
	}
	wrapped := WithTimeout[int]("slow", 100*time.Millisecond, clock, inner)

	done := make(chan struct{})
	var err error
	go func() {
		defer close(done)
		_, err = wrapped(context.Background(), 1)
	}()

	time.Sleep(10 * time.Millisecond)
	clock.Advance(100 * time.Millisecond)
	clock.BlockUntilReady()
	<-done

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context.DeadlineExceeded, got %v", err)
	}
}

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker[int]("flaky", 2, time.Minute)
	boom := errors.New("boom")
	failing := cb.Transform(func(context.Context, int) (int, error) { return 0, boom })

	for i := 0; i < 2; i++ {
		if _, err := failing(context.Background(), 0); !errors.Is(err, boom) {
			t.Fatalf("attempt %d: expected boom, got %v", i, err)
		}
	}
	if cb.State() != string(circuitOpen) {
		t.Fatalf("expected circuit to be open after reaching the failure threshold, got %s", cb.State())
	}

	if _, err := failing(context.Background(), 0); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen while open, got %v", err)
	}
}

func TestCircuitBreakerHalfOpenRecoversOnSuccess(t *testing.T) {
	clock := clockz.NewFakeClock()
	cb := NewCircuitBreaker[int]("flaky", 1, 50*time.Millisecond).WithClock(clock)
	boom := errors.New("boom")

	failing := cb.Transform(func(context.Context, int) (int, error) { return 0, boom })
	if _, err := failing(context.Background(), 0); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if cb.State() != string(circuitOpen) {
		t.Fatalf("expected open after first failure, got %s", cb.State())
	}

	clock.Advance(50 * time.Millisecond)
	clock.BlockUntilReady()

	succeeding := cb.Transform(func(context.Context, int) (int, error) { return 99, nil })
	out, err := succeeding(context.Background(), 0)
	if err != nil {
		t.Fatalf("expected the half-open trial call to succeed, got %v", err)
	}
	if out != 99 {
		t.Fatalf("got %d, want 99", out)
	}
	if cb.State() != string(circuitClosed) {
		t.Fatalf("expected closed after a successful half-open trial, got %s", cb.State())
	}
}

func TestCircuitBreakerHalfOpenReopensOnFailure(t *testing.T) {
	clock := clockz.NewFakeClock()
	cb := NewCircuitBreaker[int]("flaky", 1, 50*time.Millisecond).WithClock(clock)
	boom := errors.New("boom")
	failing := cb.Transform(func(context.Context, int) (int, error) { return 0, boom })

	if _, err := failing(context.Background(), 0); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	clock.Advance(50 * time.Millisecond)
	clock.BlockUntilReady()

	if _, err := failing(context.Background(), 0); !errors.Is(err, boom) {
		t.Fatalf("expected the half-open trial to fail with boom, got %v", err)
	}
	if cb.State() != string(circuitOpen) {
		t.Fatalf("expected a failed half-open trial to reopen the circuit, got %s", cb.State())
	}
}

func TestCircuitBreakerResetForcesClosed(t *testing.T) {
	cb := NewCircuitBreaker[int]("flaky", 1, time.Minute)
	boom := errors.New("boom")
	failing := cb.Transform(func(context.Context, int) (int, error) { return 0, boom })
	_, _ = failing(context.Background(), 0)
	if cb.State() != string(circuitOpen) {
		t.Fatalf("expected open, got %s", cb.State())
	}
	cb.Reset()
	if cb.State() != string(circuitClosed) {
		t.Fatalf("expected Reset to force closed, got %s", cb.State())
	}
}

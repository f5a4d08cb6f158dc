package flowpipe

import (
	"errors"
	"testing"
)

func TestApplyErrorPolicy(t *testing.T) {
	boom := errors.New("boom")

	t.Run("Propagate returns the error unchanged", func(t *testing.T) {
		_, err := applyErrorPolicy(Propagate, func() (int, error) { return 0, boom }, 7, nil)
		if !errors.Is(err, boom) {
			t.Fatalf("got %v, want %v", err, boom)
		}
	})

	t.Run("Suppress returns the original value with no error", func(t *testing.T) {
		v, err := applyErrorPolicy(Suppress, func() (int, error) { return 0, boom }, 7, nil)
		if err != nil || v != 7 {
			t.Fatalf("got (%d, %v), want (7, nil)", v, err)
		}
	})

	t.Run("Retry re-invokes attempt and can succeed on the second try", func(t *testing.T) {
		calls := 0
		attempt := func() (int, error) {
			calls++
			if calls < 2 {
				return 0, boom
			}
			return 99, nil
		}
		v, err := applyErrorPolicy(Retry, attempt, 7, nil)
		if err != nil || v != 99 {
			t.Fatalf("got (%d, %v), want (99, nil)", v, err)
		}
		if calls != 2 {
			t.Fatalf("expected exactly 2 attempts, got %d", calls)
		}
	})

	t.Run("Retry exhausted wraps the second error", func(t *testing.T) {
		attempt := func() (int, error) { return 0, boom }
		_, err := applyErrorPolicy(Retry, attempt, 7, nil)
		if !errors.Is(err, ErrRetryExhausted) {
			t.Fatalf("expected ErrRetryExhausted, got %v", err)
		}
		if !errors.Is(err, boom) {
			t.Fatalf("expected wrapped boom, got %v", err)
		}
	})

	t.Run("Terminate calls onTerminate exactly once and propagates", func(t *testing.T) {
		calls := 0
		_, err := applyErrorPolicy(Terminate, func() (int, error) { return 0, boom }, 7, func() { calls++ })
		if !errors.Is(err, boom) {
			t.Fatalf("got %v, want %v", err, boom)
		}
		if calls != 1 {
			t.Fatalf("expected onTerminate called once, got %d", calls)
		}
	})

	t.Run("success short-circuits every policy", func(t *testing.T) {
		for _, p := range []ErrorPolicy{Propagate, Suppress, Retry, Terminate} {
			calls := 0
			v, err := applyErrorPolicy(p, func() (int, error) { calls++; return 5, nil }, 0, func() { t.Fatal("onTerminate should not fire on success") })
			if err != nil || v != 5 || calls != 1 {
				t.Fatalf("policy %v: got (%d, %v, calls=%d)", p, v, err, calls)
			}
		}
	})
}

func TestErrorPolicyString(t *testing.T) {
	cases := map[ErrorPolicy]string{
		Propagate: "propagate",
		Suppress:  "suppress",
		Retry:     "retry",
		Terminate: "terminate",
	}
	for policy, want := range cases {
		if got := policy.String(); got != want {
			t.Errorf("%v.String() = %q, want %q", int(policy), got, want)
		}
	}
}

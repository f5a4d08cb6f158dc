package flowpipe

import (
	"context"
	"errors"
	"strconv"
	"testing"
)

var errNumericMapper = errors.New("numeric mapper failed")

func TestInputTransformerWithMapperConverts(t *testing.T) {
	p := newTestPipeline(t)
	var got packet
	out := NewOutputTransformer[packet]("capture", 0, func(_ context.Context, pkt packet) error {
		got = pkt
		return nil
	})
	if err := p.RegisterOutput(out); err != nil {
		t.Fatalf("RegisterOutput: %v", err)
	}

	in := NewInputTransformerWithMapper[packet, int]("numeric", func(_ context.Context, n int) (packet, error) {
		return packet{Name: strconv.Itoa(n)}, nil
	})
	if err := RegisterInput(p, in); err != nil {
		t.Fatalf("RegisterInput: %v", err)
	}
	if err := in.Push(context.Background(), 42); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if got.Name != "42" {
		t.Fatalf("expected mapper to convert 42 to \"42\", got %q", got.Name)
	}
}

func TestInputTransformerMapperErrorAbortsDispatch(t *testing.T) {
	p := newTestPipeline(t)
	var called bool
	out := NewOutputTransformer[packet]("capture", 0, func(_ context.Context, pkt packet) error {
		called = true
		return nil
	})
	if err := p.RegisterOutput(out); err != nil {
		t.Fatalf("RegisterOutput: %v", err)
	}

	boom := errNumericMapper
	in := NewInputTransformerWithMapper[packet, int]("numeric", func(_ context.Context, n int) (packet, error) {
		return packet{}, boom
	})
	if err := RegisterInput(p, in); err != nil {
		t.Fatalf("RegisterInput: %v", err)
	}
	if err := in.Push(context.Background(), 1); err != boom {
		t.Fatalf("expected mapper error to surface unchanged, got %v", err)
	}
	if called {
		t.Fatal("dispatch should never reach the output when the mapper fails")
	}
}

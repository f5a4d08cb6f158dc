package flowpipe

import (
	"context"
	"testing"
)

func TestPipelineOnProcessorAddedAndRemoved(t *testing.T) {
	p := newTestPipeline(t)
	var added, removed []ID
	if err := p.On(EventKindProcessorAdded, func(_ context.Context, ev Event) error {
		added = append(added, ev.ProcessorID)
		return nil
	}); err != nil {
		t.Fatalf("On(added): %v", err)
	}
	if err := p.On(EventKindProcessorRemoved, func(_ context.Context, ev Event) error {
		removed = append(removed, ev.ProcessorID)
		return nil
	}); err != nil {
		t.Fatalf("On(removed): %v", err)
	}

	proc := NewProcessor[packet]("p", 10, func(_ context.Context, pkt packet) (packet, error) { return pkt, nil })
	if err := p.AddProcessor(proc); err != nil {
		t.Fatalf("AddProcessor: %v", err)
	}
	if err := p.RemoveProcessor(proc.ID()); err != nil {
		t.Fatalf("RemoveProcessor: %v", err)
	}

	if len(added) != 1 || added[0] != proc.ID() {
		t.Fatalf("expected ProcessorAdded with id %v, got %v", proc.ID(), added)
	}
	if len(removed) != 1 || removed[0] != proc.ID() {
		t.Fatalf("expected ProcessorRemoved with id %v, got %v", proc.ID(), removed)
	}
}

func TestPipelineOnProcessorEnabled(t *testing.T) {
	p := newTestPipeline(t)
	proc := NewProcessor[packet]("p", 10, func(_ context.Context, pkt packet) (packet, error) { return pkt, nil })
	if err := p.AddProcessor(proc); err != nil {
		t.Fatalf("AddProcessor: %v", err)
	}

	var states []bool
	if err := p.On(EventKindProcessorEnabled, func(_ context.Context, ev Event) error {
		states = append(states, ev.Enabled)
		return nil
	}); err != nil {
		t.Fatalf("On: %v", err)
	}

	if err := proc.Enable(false); err != nil {
		t.Fatalf("Enable(false): %v", err)
	}
	if err := proc.Enable(true); err != nil {
		t.Fatalf("Enable(true): %v", err)
	}
	if len(states) != 2 || states[0] != false || states[1] != true {
		t.Fatalf("expected [false true], got %v", states)
	}
}

func TestPipelineRelinkEventFiresOnStructuralChange(t *testing.T) {
	p := newTestPipeline(t)
	var relinks int
	if err := p.On(EventKindRelink, func(_ context.Context, ev Event) error {
		relinks++
		return nil
	}); err != nil {
		t.Fatalf("On: %v", err)
	}
	proc := NewProcessor[packet]("p", 10, func(_ context.Context, pkt packet) (packet, error) { return pkt, nil })
	if err := p.AddProcessor(proc); err != nil {
		t.Fatalf("AddProcessor: %v", err)
	}
	if relinks == 0 {
		t.Fatal("expected AddProcessor to trigger at least one relink event")
	}
}

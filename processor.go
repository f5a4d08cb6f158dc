package flowpipe

import (
	"context"

	"github.com/zoobzio/clockz"
)

// Transform is the work a Processor performs on each frame: it may mutate
// the frame and/or fail. Unlike Handler[F], which never changes its
// argument, Transform is what application code actually writes; the
// pipeline adapts it to Handler[F] internally when wiring peeks and
// forwarding.
type Transform[F any] func(ctx context.Context, f F) (F, error)

// Processor is a single priority-ordered stage in the chain (§4.3). It is
// the direct analogue of pipz's fluent Processor[T], generalized with an
// explicit priority, enable flag, per-node error policy, and peek taps.
type Processor[F any] struct {
	nodeState[F]
	transform Transform[F]
	clock     clockz.Clock
	pipeline  *Pipeline[F]
	policySet bool
}

// NewProcessor constructs a Processor with the default id "name:priority"
// and the Propagate error policy. Priority must be in [PriorityMin,
// PriorityMax]; NewProcessor does not check it, AddProcessor rejects an
// out-of-range priority, since a Processor can be built long before it is
// attached.
func NewProcessor[F any](name Name, priority int, fn Transform[F]) *Processor[F] {
	return &Processor[F]{
		nodeState: nodeState[F]{
			id:       defaultNodeID(name, priority),
			name:     name,
			priority: priority,
			enabled:  true,
			policy:   Propagate,
		},
		transform: fn,
	}
}

// ID returns the processor's identifier.
func (p *Processor[F]) ID() ID { return p.id }

// Name returns the processor's name.
func (p *Processor[F]) Name() Name { return p.name }

// Priority returns the processor's current priority.
func (p *Processor[F]) Priority() int {
	if p.guard == nil {
		return p.priority
	}
	v, _ := ReadResult(p.guard, func() (int, error) { return p.priority, nil })
	return v
}

// Enabled reports whether the processor currently participates in
// dispatch.
func (p *Processor[F]) Enabled() bool {
	if p.guard == nil {
		return p.enabled
	}
	v, _ := ReadResult(p.guard, func() (bool, error) { return p.enabled, nil })
	return v
}

// Enable toggles the processor in or out of the chain and relinks. It is a
// structural mutation (§4.3): a disabled processor is bypassed entirely,
// as if it were spliced out.
func (p *Processor[F]) Enable(on bool) error {
	if p.pipeline == nil {
		p.enabled = on
		return nil
	}
	return p.pipeline.mutate(func() error {
		if p.enabled == on {
			return nil
		}
		p.enabled = on
		p.pipeline.relinkLocked()
		p.pipeline.emitProcessorEnabled(p.id, on)
		return nil
	})
}

// SetPriority moves the processor to a new priority within
// [PriorityMin, PriorityMax] and relinks.
func (p *Processor[F]) SetPriority(priority int) error {
	if priority < PriorityMin || priority > PriorityMax {
		return ErrPriorityOutOfRange
	}
	if p.pipeline == nil {
		p.priority = priority
		return nil
	}
	return p.pipeline.mutate(func() error {
		p.priority = priority
		p.pipeline.resortLocked()
		p.pipeline.relinkLocked()
		return nil
	})
}

// SetErrorPolicy sets this processor's own error policy, overriding the
// pipeline's DefaultErrorPolicy for this node only.
func (p *Processor[F]) SetErrorPolicy(policy ErrorPolicy) error {
	if p.pipeline == nil {
		p.policy = policy
		p.policySet = true
		return nil
	}
	return p.pipeline.mutate(func() error {
		p.policy = policy
		p.policySet = true
		return nil
	})
}

// Peek attaches a non-mutating observer that sees every frame reaching
// this processor, post-transform, alongside normal forwarding.
func (p *Processor[F]) Peek(h Handler[F]) error {
	if p.pipeline == nil {
		p.peekers = append(p.peekers, h)
		return nil
	}
	return p.pipeline.mutate(func() error {
		p.peekers = append(p.peekers, h)
		p.pipeline.relinkLocked()
		return nil
	})
}

// stageDispatch shadows nodeState's default: run the transform, apply the
// effective error policy, then hand the (possibly mutated) frame to the
// proxy for peek + forward fan-out.
func (p *Processor[F]) stageDispatch(ctx context.Context, f F) error {
	clock := p.clock
	if clock == nil {
		clock = clockz.RealClock
	}
	start := clock.Now()
	out, err := applyErrorPolicy(p.policy, func() (F, error) { return p.transform(ctx, f) }, f, func() {
		p.enabled = false
		if p.pipeline != nil {
			p.pipeline.relinkLocked()
			p.pipeline.emitProcessorEnabled(p.id, false)
		}
	})
	if err != nil {
		var pe *ProcessingError[F]
		if existing, ok := err.(*ProcessingError[F]); ok {
			existing.Processor = p.name
			existing.Timestamp = start
			existing.Duration = clock.Now().Sub(start)
			pe = existing
		} else {
			pe = &ProcessingError[F]{
				Cause:     err,
				Processor: p.name,
				Payload:   f,
				Severity:  severityForPolicy(p.policy),
				Timestamp: start,
				Duration:  clock.Now().Sub(start),
			}
		}
		if p.pipeline != nil {
			p.pipeline.emitPipelineError(pe)
		}
		return pe
	}
	return p.proxy.dispatchLocked(ctx, p.name, out)
}

func severityForPolicy(policy ErrorPolicy) Severity {
	switch policy {
	case Terminate:
		return SeverityFatal
	case Retry:
		return SeverityWarning
	default:
		return SeverityError
	}
}

package flowpipe

import (
	"context"
	"fmt"
)

// dispatchProxy is the lockable dispatch proxy of §4.2: it holds a node's
// current Handler[F]-shaped forwarding target, swapped atomically under
// the write lock by relink, and converts a panicking target into a
// ProcessingError[F] instead of crashing the dispatch goroutine.
//
// A single end-to-end dispatch walks many proxies (head, zero or more
// processors, tail) while holding exactly one read-lock acquisition —
// taken once at the public entry point (Head.Push / Pipeline.Push).
// sync.RWMutex's RLock is not safely reentrant against a pending writer,
// so dispatchLocked (used for every hop after the first) never locks
// again; only the outermost Push call does.
type dispatchProxy[F any] struct {
	guard  *Guard
	target Handler[F]
}

func newDispatchProxy[F any](g *Guard, initial Handler[F]) *dispatchProxy[F] {
	return &dispatchProxy[F]{guard: g, target: initial}
}

// setTarget replaces the forwarding target. Callers must already hold the
// write lock on guard; this is structural state, not a dispatch-path value.
func (p *dispatchProxy[F]) setTarget(h Handler[F]) {
	p.target = h
}

// dispatchLocked invokes the current target, recovering any panic raised
// by it into a ProcessingError[F] tagged with who. The caller must already
// hold the guard's read (or write) lock for the duration of the call.
func (p *dispatchProxy[F]) dispatchLocked(ctx context.Context, who Name, frame F) (err error) {
	target := p.target
	defer recoverDispatchPanic(&err, who, frame)
	if target == nil {
		return nil
	}
	return target(ctx, frame)
}

// recoverDispatchPanic turns a panicking handler into a ProcessingError so
// one misbehaving processor cannot take down the pipeline's call stack.
func recoverDispatchPanic[F any](err *error, who Name, frame F) {
	if r := recover(); r != nil {
		*err = &ProcessingError[F]{
			Cause:     fmt.Errorf("%w: %v", ErrProcessorPanicked, r),
			Processor: who,
			Payload:   frame,
			Severity:  SeverityFatal,
		}
	}
}

package flowpipe

import "context"

// Head is the sentinel entry node of the chain (§4.4): every registered
// InputTransformer pushes into it, and it forwards straight into the
// first enabled processor (or the tail, if none are enabled), same as any
// other stage's relinked proxy target.
type Head[F any] struct {
	nodeState[F]
	closed *bool
}

func newHead[F any](guard *Guard, closed *bool) *Head[F] {
	return &Head[F]{
		nodeState: nodeState[F]{
			id:       defaultNodeID("head", PriorityHead),
			name:     "head",
			priority: PriorityHead,
			guard:    guard,
			enabled:  true,
			policy:   Propagate,
			proxy:    newDispatchProxy[F](guard, nil),
		},
		closed: closed,
	}
}

// Push is the engine's single dispatch entry point: it acquires the
// pipeline's read lock once for the whole head-to-tail walk, runs head's
// peekers and the forward-to-first-enabled-processor target, and recovers
// any downstream panic into a ProcessingError[F]. Every hop after this one
// (processor-to-processor, tail-to-outputs) reuses this same lock instead
// of acquiring its own, since sync.RWMutex's RLock is not safely reentrant
// against a pending writer.
func (h *Head[F]) Push(ctx context.Context, f F) error {
	return h.guard.ReadVoided(func() error {
		if h.closed != nil && *h.closed {
			return ErrClosed
		}
		return h.proxy.dispatchLocked(ctx, h.name, f)
	})
}

// InputMapper converts an external producer's value of type IN into the
// pipeline's frame type F. Most callers use the identity mapper via
// NewInputTransformer.
type InputMapper[IN, F any] func(context.Context, IN) (F, error)

// InputTransformer is a boundary node that bridges an external producer's
// type IN to the pipeline's frame type F (§4.4). It is not part of the
// priority chain; once registered on a Pipeline it holds a direct
// reference to the chain's Head and every Push call dispatches straight
// into it.
type InputTransformer[F, IN any] struct {
	id      ID
	name    Name
	enabled bool
	mapper  InputMapper[IN, F]
	push    func(context.Context, F) error
}

// NewInputTransformer builds an InputTransformer with the identity
// mapper: Push accepts frames directly.
func NewInputTransformer[F any](name Name, _ int) *InputTransformer[F, F] {
	return NewInputTransformerWithMapper[F, F](name, func(_ context.Context, f F) (F, error) { return f, nil })
}

// NewInputTransformerWithMapper builds an InputTransformer that converts
// IN to F via mapper before pushing into the pipeline.
func NewInputTransformerWithMapper[F, IN any](name Name, mapper InputMapper[IN, F]) *InputTransformer[F, IN] {
	return &InputTransformer[F, IN]{
		id:      NewTransformerID(),
		name:    name,
		enabled: true,
		mapper:  mapper,
	}
}

// ID returns the transformer's identifier.
func (in *InputTransformer[F, IN]) ID() ID { return in.id }

// Name returns the transformer's name.
func (in *InputTransformer[F, IN]) Name() Name { return in.name }

// setPush wires this transformer's dispatch entry point to the owning
// Pipeline's Head. Called only by RegisterInput.
func (in *InputTransformer[F, IN]) setPush(push func(context.Context, F) error) {
	in.push = push
}

// Push converts value through the mapper and dispatches the resulting
// frame into the chain. It returns ErrNotFound if the transformer has not
// yet been registered with a Pipeline via RegisterInput.
func (in *InputTransformer[F, IN]) Push(ctx context.Context, value IN) error {
	if in.push == nil {
		return ErrNotFound
	}
	f, err := in.mapper(ctx, value)
	if err != nil {
		return err
	}
	return in.push(ctx, f)
}

package flowpipe

import "context"

// Reserved priorities placing Head and Tail outside the user-assignable
// 0..100 range (§4.3/§9: tail priority orientation is low-to-high).
const (
	PriorityHead = -1
	PriorityTail = 101

	// PriorityMin and PriorityMax bound the range a Processor may occupy.
	PriorityMin = 0
	PriorityMax = 100
)

// stage is the common shape every link in the processor chain presents to
// relink: something with an id, a priority, an enabled flag, a set of
// peek taps, and a dispatch entry point. Head, Processor, and Tail all
// implement it via an embedded nodeState; Processor adds its own
// stageDispatch.
type stage[F any] interface {
	stageID() ID
	stageName() Name
	stagePriority() int
	stageEnabled() bool
	stagePeekers() []Handler[F]
	setProxyTarget(Handler[F])
	stageDispatch(ctx context.Context, f F) error
}

// nodeState is the field set shared by every chain link. It is embedded,
// never used standalone, and provides the default stage plumbing; Processor
// overrides stageDispatch to run its transform and error policy first.
type nodeState[F any] struct {
	id       ID
	name     Name
	priority int
	guard    *Guard
	enabled  bool
	policy   ErrorPolicy
	peekers  []Handler[F]
	proxy    *dispatchProxy[F]
}

func newNodeState[F any](name Name, id ID, priority int, guard *Guard) nodeState[F] {
	return nodeState[F]{
		id:       id,
		name:     name,
		priority: priority,
		guard:    guard,
		enabled:  true,
		policy:   Propagate,
		proxy:    newDispatchProxy[F](guard, nil),
	}
}

func (n *nodeState[F]) stageID() ID                { return n.id }
func (n *nodeState[F]) stageName() Name            { return n.name }
func (n *nodeState[F]) stagePriority() int         { return n.priority }
func (n *nodeState[F]) stagePeekers() []Handler[F] { return n.peekers }
func (n *nodeState[F]) setProxyTarget(h Handler[F]) {
	n.proxy.setTarget(h)
}

// stageEnabled reads enabled without a lock: callers already hold the
// pipeline's guard (read, for dispatch; write, for relink) by the time they
// reach this. There is no lock-free path to this method.
func (n *nodeState[F]) stageEnabled() bool { return n.enabled }

// stageDispatch is the default: forward straight to the proxy. Head and
// Tail use this unmodified; Processor shadows it with its own method. The
// caller must already hold the pipeline's read (or write) lock.
func (n *nodeState[F]) stageDispatch(ctx context.Context, f F) error {
	return n.proxy.dispatchLocked(ctx, n.name, f)
}

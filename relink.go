package flowpipe

import "context"

// relink recomputes every stage's dispatch proxy target from scratch. It is
// the heart of §4.3: the chain is not a physical linked list callers walk
// at dispatch time (that would need a lock per hop); instead, each node's
// proxy is pre-wired to call straight into the next *enabled* stage,
// computed once per structural mutation under the write lock. Dispatch
// itself never searches the chain.
//
// stages must already be sorted by ascending priority, with head first and
// tail last (PriorityHead < any processor priority < PriorityTail).
//
// This composition step has no direct teacher analogue: pipz's Sequence
// re-copies its processor slice on every Process call instead of
// pre-wiring targets, because pipz nodes are stateless functions without
// individual enable/disable or peek taps. Wiring next-enabled lazily, once
// per mutation, is this package's own answer to a requirement pipz's
// design does not have to satisfy.
func relink[F any](dt DataType[Handler[F]], stages []stage[F]) {
	n := len(stages)
	for i, s := range stages {
		var forward Handler[F]
		for j := i + 1; j < n; j++ {
			if stages[j].stageEnabled() {
				next := stages[j]
				forward = func(ctx context.Context, f F) error {
					return next.stageDispatch(ctx, f)
				}
				break
			}
		}

		peekers := s.stagePeekers()
		combined := make([]Handler[F], 0, len(peekers)+1)
		combined = append(combined, peekers...)
		if forward != nil {
			combined = append(combined, forward)
		}

		target, err := dt.OptimizeArray(combined)
		if err != nil {
			// Wrap can only fail for a caller-supplied DataType whose Wrap
			// rejects a combination it doesn't expect; for the built-in
			// HandlerDataType, Wrap never errors. There is nothing
			// structural to report here, so the node is left forwarding
			// nowhere rather than panicking mid-mutation.
			target = dt.Empty()
		}
		s.setProxyTarget(target)
	}
}

// nextEnabled returns the first enabled stage strictly after index i in
// stages, or nil if none remain. Only tests call it; relink above inlines
// the same search to avoid an extra closure
// allocation per stage.
func nextEnabled[F any](stages []stage[F], i int) stage[F] {
	for j := i + 1; j < len(stages); j++ {
		if stages[j].stageEnabled() {
			return stages[j]
		}
	}
	return nil
}

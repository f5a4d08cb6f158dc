package flowpipe

import "context"

// Handler is the canonical pipeline-wide dispatch capability: a function
// that processes one frame of type F and can fail. Most DataType[T]
// instances in this package are built from Handler[F] via HandlerDataType.
//
// Handler is to flowpipe what Chainable is to pipz: the single shape every
// node's forwarding target takes.
type Handler[F any] func(context.Context, F) error

// DataType bundles the operations the pipeline engine needs to treat T as
// its polymorphic dispatch capability, without ever inspecting T itself.
//
//   - Empty returns a no-op value of T. Invoking it is always safe.
//   - Alloc allocates a slice of exactly n zero-value T slots.
//   - IsEmpty reports whether a T slot is "null" and should be compacted
//     out of a fan-out before Wrap is called.
//   - Wrap takes a compacted, non-empty slice (length >= 2) and returns a
//     single T that invokes every element in order. Implementations that
//     cannot express void fan-out for their T should return an error.
type DataType[T any] struct {
	Name    string
	Empty   func() T
	Alloc   func(n int) []T
	IsEmpty func(T) bool
	Wrap    func(active []T) (T, error)
}

// OptimizeArray implements the load-bearing array-optimization rule shared
// by every relink in the engine: Empty() for a null/empty/single-null
// array, the lone element for length 1 after compaction, else Wrap of the
// compacted array. A one-output pipeline never pays the fan-out cost.
func (dt DataType[T]) OptimizeArray(arr []T) (T, error) {
	compacted := make([]T, 0, len(arr))
	for _, v := range arr {
		if dt.IsEmpty == nil || !dt.IsEmpty(v) {
			compacted = append(compacted, v)
		}
	}
	switch len(compacted) {
	case 0:
		return dt.Empty(), nil
	case 1:
		return compacted[0], nil
	default:
		return dt.Wrap(compacted)
	}
}

// HandlerDataType returns the built-in DataType for Handler[F], the
// canonical fan-out capability used throughout this package. Frames reach
// every non-nil handler in registration order; the first error aborts the
// fan-out and is returned to the caller.
func HandlerDataType[F any]() DataType[Handler[F]] {
	return DataType[Handler[F]]{
		Name:  "handler",
		Empty: func() Handler[F] { return func(context.Context, F) error { return nil } },
		Alloc: func(n int) []Handler[F] { return make([]Handler[F], n) },
		IsEmpty: func(h Handler[F]) bool {
			return h == nil
		},
		Wrap: func(active []Handler[F]) (Handler[F], error) {
			fanout := make([]Handler[F], len(active))
			copy(fanout, active)
			return func(ctx context.Context, f F) error {
				for _, h := range fanout {
					if h == nil {
						continue
					}
					if err := h(ctx, f); err != nil {
						return err
					}
				}
				return nil
			}, nil
		},
	}
}

package flowpipe

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/zoobzio/hookz"
	"github.com/zoobzio/metricz"
	"github.com/zoobzio/tracez"
)

// OutputMapper converts a pipeline frame into the shape an external sink
// expects. Most callers use the identity mapper via NewOutputTransformer;
// OutputMapper exists for sinks whose natural type differs from F.
type OutputMapper[F, OUT any] func(context.Context, F) (OUT, error)

// OutputTransformer is a boundary node that bridges the pipeline's frame
// type F to an external sink of type OUT (§4.5). It is not itself part of
// the priority chain; it is registered on a Pipeline's Tail and invoked
// whenever a frame reaches the end of the chain.
type OutputTransformer[F, OUT any] struct {
	id       ID
	name     Name
	priority int
	mu       sync.RWMutex
	enabled  bool
	mapper   OutputMapper[F, OUT]
	sink     func(context.Context, OUT) error
}

// NewOutputTransformer builds an OutputTransformer with the identity
// mapper: the sink receives frames unchanged. priority orders this output
// relative to its siblings within the tail's broadcast fan-out.
func NewOutputTransformer[F any](name Name, priority int, sink func(context.Context, F) error) *OutputTransformer[F, F] {
	return NewOutputTransformerWithMapper(name, priority, func(_ context.Context, f F) (F, error) { return f, nil }, sink)
}

// NewOutputTransformerWithMapper builds an OutputTransformer that first
// converts F to OUT via mapper before invoking sink.
func NewOutputTransformerWithMapper[F, OUT any](name Name, priority int, mapper OutputMapper[F, OUT], sink func(context.Context, OUT) error) *OutputTransformer[F, OUT] {
	return &OutputTransformer[F, OUT]{
		id:       NewTransformerID(),
		name:     name,
		priority: priority,
		enabled:  true,
		mapper:   mapper,
		sink:     sink,
	}
}

// ID returns the transformer's identifier.
func (o *OutputTransformer[F, OUT]) ID() ID { return o.id }

// Name returns the transformer's name.
func (o *OutputTransformer[F, OUT]) Name() Name { return o.name }

// Priority returns the transformer's fan-out ordering priority.
func (o *OutputTransformer[F, OUT]) Priority() int { return o.priority }

// Enabled reports this transformer's own enabled flag. Pipeline.EnableOutput
// does not change this flag: whether a registered output takes part in the
// tail's fan-out is tracked by the tail's own record of it.
func (o *OutputTransformer[F, OUT]) Enabled() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.enabled
}

// setEnabled toggles this transformer's own enabled flag and does not
// relink. Pipeline.EnableOutput, the supported entry point, toggles the
// tail's record of the output and relinks; it does not call setEnabled.
func (o *OutputTransformer[F, OUT]) setEnabled(on bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.enabled = on
}

// handler adapts this transformer to Handler[F] for inclusion in a tail's
// broadcast set.
func (o *OutputTransformer[F, OUT]) handler() Handler[F] {
	return func(ctx context.Context, f F) error {
		out, err := o.mapper(ctx, f)
		if err != nil {
			return err
		}
		return o.sink(ctx, out)
	}
}

// outputEntry is the type-erased record a Tail keeps per registered
// output: a Handler[F] closure plus enough bookkeeping to support
// EnableOutput/RemoveOutput/Schema without needing OUT as a type parameter
// on Tail itself.
type outputEntry[F any] struct {
	id       ID
	name     Name
	priority int
	enabled  bool
	handler  Handler[F]
}

// Tail is the sentinel terminal node of the chain (§4.5): every frame that
// survives the last enabled processor reaches it. Its live delivery set is
// one of three mutually exclusive shapes, in precedence order: the stack's
// top entry (if anything has been pushed), else the switch's current
// selection (if one has been made), else a plain broadcast to every
// enabled registered output. Whichever shape applies, delivery is
// compacted the same way any other fan-out in this package is
// (dt.OptimizeArray).
type Tail[F any] struct {
	nodeState[F]
	dataType DataType[Handler[F]]
	outputs  []*outputEntry[F]

	switchOutputs  []*outputEntry[F]
	switchSelected int

	stack []*outputEntry[F]
}

func newTail[F any](dataType DataType[Handler[F]], guard *Guard) *Tail[F] {
	return &Tail[F]{
		nodeState: nodeState[F]{
			id:       defaultNodeID("tail", PriorityTail),
			name:     "tail",
			priority: PriorityTail,
			guard:    guard,
			enabled:  true,
			policy:   Propagate,
			proxy:    newDispatchProxy[F](guard, nil),
		},
		dataType:       dataType,
		switchSelected: -1,
	}
}

// recomputeOutputs rebuilds the proxy target from peekers plus the tail's
// current live delivery set. Callers must hold the write lock.
func (t *Tail[F]) recomputeOutputs() {
	sorted := make([]*outputEntry[F], len(t.outputs))
	copy(sorted, t.outputs)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j-1].priority > sorted[j].priority; j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}

	var active []Handler[F]
	switch {
	case len(t.stack) > 0:
		active = []Handler[F]{t.stack[len(t.stack)-1].handler}
	case t.switchSelected >= 0 && t.switchSelected < len(t.switchOutputs):
		active = []Handler[F]{t.switchOutputs[t.switchSelected].handler}
	default:
		active = make([]Handler[F], 0, len(sorted))
		for _, e := range sorted {
			if e.enabled {
				active = append(active, e.handler)
			}
		}
	}

	combined := make([]Handler[F], 0, len(t.peekers)+len(active))
	combined = append(combined, t.peekers...)
	combined = append(combined, active...)
	target, err := t.dataType.OptimizeArray(combined)
	if err != nil {
		target = t.dataType.Empty()
	}
	t.setProxyTarget(target)
}

// addSwitchCandidate registers out as a selectable candidate under the
// tail's switch, a pool distinct from the plain broadcast set in
// t.outputs. Callers must hold the write lock.
func (t *Tail[F]) addSwitchCandidate(e *outputEntry[F]) error {
	for _, c := range t.switchOutputs {
		if c.id == e.id {
			return ErrDuplicateID
		}
	}
	t.switchOutputs = append(t.switchOutputs, e)
	return nil
}

// selectSwitchByID makes the candidate with the given id the switch's
// current selection. Callers must hold the write lock.
func (t *Tail[F]) selectSwitchByID(id ID) error {
	for i, c := range t.switchOutputs {
		if c.id == id {
			t.switchSelected = i
			return nil
		}
	}
	return ErrNotFound
}

// selectSwitchByIndex makes the candidate at index i the switch's current
// selection. Callers must hold the write lock.
func (t *Tail[F]) selectSwitchByIndex(i int) error {
	if i < 0 || i >= len(t.switchOutputs) {
		return ErrNotFound
	}
	t.switchSelected = i
	return nil
}

// switchIsEmpty reports whether the switch currently has no selection,
// either because no candidates are registered or none has been chosen.
func (t *Tail[F]) switchIsEmpty() bool {
	return t.switchSelected < 0 || t.switchSelected >= len(t.switchOutputs)
}

// switchCurrent returns the id of the switch's current selection, if any.
func (t *Tail[F]) switchCurrent() (ID, bool) {
	if t.switchIsEmpty() {
		return "", false
	}
	return t.switchOutputs[t.switchSelected].id, true
}

// switchCandidates returns the ids of every candidate registered under
// the switch, in registration order.
func (t *Tail[F]) switchCandidates() []ID {
	out := make([]ID, len(t.switchOutputs))
	for i, c := range t.switchOutputs {
		out[i] = c.id
	}
	return out
}

// pushStack makes e the stack's new top, and therefore the tail's sole
// active sink until it is popped. Callers must hold the write lock.
func (t *Tail[F]) pushStack(e *outputEntry[F]) error {
	for _, c := range t.stack {
		if c.id == e.id {
			return ErrDuplicateID
		}
	}
	t.stack = append(t.stack, e)
	return nil
}

// popStack removes and returns the stack's current top, restoring
// whichever entry was pushed before it (or normal fan-out, if the stack
// becomes empty). Callers must hold the write lock.
func (t *Tail[F]) popStack() (*outputEntry[F], error) {
	if len(t.stack) == 0 {
		return nil, ErrNotFound
	}
	top := t.stack[len(t.stack)-1]
	t.stack = t.stack[:len(t.stack)-1]
	return top, nil
}

// stackIsEmpty reports whether nothing is currently pushed, i.e. normal
// fan-out (or the switch's selection) applies.
func (t *Tail[F]) stackIsEmpty() bool {
	return len(t.stack) == 0
}

// SwitchCondition picks a route key from a frame, exactly like the
// teacher's Condition[T, K].
type SwitchCondition[F any, K comparable] func(context.Context, F) K

// Switch is an output-side routing combinator (§4.5): it is itself a
// single output handler that, given a frame, evaluates its condition and
// delegates to at most one of its registered branches. Unmatched frames
// are dropped (not an error), a pass-through-on-no-route behavior adapted
// to a void-returning fan-out capability.
type Switch[F any, K comparable] struct {
	name      Name
	condition SwitchCondition[F, K]
	mu        sync.RWMutex
	routes    map[K]Handler[F]
	metrics   *metricz.Registry
	tracer    *tracez.Tracer
	hooks     *hookz.Hooks[SwitchEvent[K]]
}

// SwitchEvent reports a single routing decision.
type SwitchEvent[K comparable] struct {
	Name      Name
	RouteKey  K
	Routed    bool
	Success   bool
	Error     error
	Duration  time.Duration
	Timestamp time.Time
}

const (
	switchEventRouted   = hookz.Key("flowpipe.switch.routed")
	switchEventUnrouted = hookz.Key("flowpipe.switch.unrouted")

	switchProcessedTotal = metricz.Key("flowpipe.switch.processed.total")
	switchRoutedTotal    = metricz.Key("flowpipe.switch.routed.total")
	switchUnroutedTotal  = metricz.Key("flowpipe.switch.unrouted.total")

	switchProcessSpan = tracez.Key("flowpipe.switch.process")
	switchTagRouteKey = tracez.Tag("route_key")
	switchTagRouted   = tracez.Tag("routed")
)

// NewSwitch constructs a Switch with no routes. Use AddRoute to populate
// it, then register it on a Tail by passing its Handler as the sink of an
// OutputTransformer.
func NewSwitch[F any, K comparable](name Name, condition SwitchCondition[F, K]) *Switch[F, K] {
	metrics := metricz.New()
	metrics.Counter(switchProcessedTotal)
	metrics.Counter(switchRoutedTotal)
	metrics.Counter(switchUnroutedTotal)
	return &Switch[F, K]{
		name:      name,
		condition: condition,
		routes:    make(map[K]Handler[F]),
		metrics:   metrics,
		tracer:    tracez.New(),
		hooks:     hookz.New[SwitchEvent[K]](),
	}
}

// AddRoute registers the handler invoked when the condition yields key.
func (s *Switch[F, K]) AddRoute(key K, h Handler[F]) *Switch[F, K] {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[key] = h
	return s
}

// OnRouted registers a listener invoked after a matched route completes.
func (s *Switch[F, K]) OnRouted(fn func(context.Context, SwitchEvent[K]) error) error {
	_, err := s.hooks.Hook(switchEventRouted, fn)
	return err
}

// OnUnrouted registers a listener invoked when no route matches.
func (s *Switch[F, K]) OnUnrouted(fn func(context.Context, SwitchEvent[K]) error) error {
	_, err := s.hooks.Hook(switchEventUnrouted, fn)
	return err
}

// Handler adapts this Switch to a plain Handler[F] so it can be passed as
// an OutputTransformer's sink.
func (s *Switch[F, K]) Handler() Handler[F] {
	return func(ctx context.Context, f F) error {
		s.metrics.Counter(switchProcessedTotal).Inc()
		ctx, span := s.tracer.StartSpan(ctx, switchProcessSpan)
		defer span.Finish()

		key := s.condition(ctx, f)
		span.SetTag(switchTagRouteKey, fmt.Sprintf("%v", key))

		s.mu.RLock()
		route, ok := s.routes[key]
		s.mu.RUnlock()

		if !ok {
			span.SetTag(switchTagRouted, "false")
			s.metrics.Counter(switchUnroutedTotal).Inc()
			_ = s.hooks.Emit(ctx, switchEventUnrouted, SwitchEvent[K]{
				Name:      s.name,
				RouteKey:  key,
				Routed:    false,
				Timestamp: time.Now(),
			})
			return nil
		}

		span.SetTag(switchTagRouted, "true")
		s.metrics.Counter(switchRoutedTotal).Inc()
		start := time.Now()
		err := route(ctx, f)
		_ = s.hooks.Emit(ctx, switchEventRouted, SwitchEvent[K]{
			Name:      s.name,
			RouteKey:  key,
			Routed:    true,
			Success:   err == nil,
			Error:     err,
			Duration:  time.Since(start),
			Timestamp: time.Now(),
		})
		return err
	}
}

// Close releases the Switch's tracer and hook bus.
func (s *Switch[F, K]) Close() {
	s.tracer.Close()
	s.hooks.Close()
}

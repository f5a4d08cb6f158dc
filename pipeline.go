package flowpipe

import (
	"context"
	"strconv"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/hookz"
)

// outputRegistrar is the interface RegisterOutput uses to wire an
// OutputTransformer[F, OUT] for any OUT without Pipeline itself taking an
// OUT type parameter (methods cannot introduce type parameters beyond the
// receiver's). RegisterInput instead uses a free function since it also
// needs to call back into the transformer's own setPush.
type outputRegistrar[F any] interface {
	ID() ID
	Name() Name
	Priority() int
	handler() Handler[F]
}

// Pipeline is the container of §4.6: it owns the Head, the ordered
// Processor chain, the Tail, the set of registered inputs and outputs,
// the attribute map, and the event/observability subsystem. It is the
// direct generalization of pipz.Pipeline/Sequence to a dynamically
// reconfigurable, priority-ordered, multi-input/multi-output graph.
type Pipeline[F any] struct {
	guard      *Guard
	dataType   DataType[Handler[F]]
	config     *Config
	head       *Head[F]
	tail       *Tail[F]
	processors []*Processor[F]
	inputIDs   map[ID]Name
	attributes map[string]any
	events     *eventBus
	closed     bool
}

// NewPipeline constructs an empty Pipeline dispatching frames of type F,
// wired head-to-tail with no processors or registered boundary
// transformers.
func NewPipeline[F any](dataType DataType[Handler[F]], opts ...Option[F]) *Pipeline[F] {
	cfg := NewConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	guard := &Guard{}
	p := &Pipeline[F]{
		guard:      guard,
		dataType:   dataType,
		config:     cfg,
		tail:       newTail[F](dataType, guard),
		inputIDs:   make(map[ID]Name),
		attributes: make(map[string]any),
		events:     newEventBus(cfg.Logger),
	}
	p.head = newHead[F](guard, &p.closed)
	p.relinkLocked()
	return p
}

// stages returns every link in the chain, head first and tail last,
// sorted by ascending priority. Callers must hold at least the read lock.
func (p *Pipeline[F]) stages() []stage[F] {
	out := make([]stage[F], 0, len(p.processors)+2)
	out = append(out, p.head)
	for _, proc := range p.processors {
		out = append(out, proc)
	}
	out = append(out, p.tail)
	return out
}

// relinkLocked recomputes every stage's dispatch proxy target. Callers
// must already hold the write lock.
func (p *Pipeline[F]) relinkLocked() {
	relink(p.dataType, p.stages())
	p.tail.recomputeOutputs()
	p.events.emit(context.Background(), EventRelink, Event{Kind: EventKindRelink, Timestamp: p.now()})
	capitan.Info(context.Background(), SignalRelink, FieldCount.Field(len(p.processors)))
}

// resortLocked re-sorts the processor slice by ascending priority,
// breaking ties by registration order (stable sort). Callers must hold
// the write lock.
func (p *Pipeline[F]) resortLocked() {
	for i := 1; i < len(p.processors); i++ {
		for j := i; j > 0 && p.processors[j-1].priority > p.processors[j].priority; j-- {
			p.processors[j-1], p.processors[j] = p.processors[j], p.processors[j-1]
		}
	}
}

// mutate runs fn holding the write lock, rejecting the call outright if
// the pipeline is closed.
func (p *Pipeline[F]) mutate(fn func() error) error {
	return p.guard.WriteVoided(func() error {
		if p.closed {
			return ErrClosed
		}
		return fn()
	})
}

func (p *Pipeline[F]) now() time.Time {
	if p.config.Clock != nil {
		return p.config.Clock.Now()
	}
	return time.Now()
}

// AddProcessor attaches proc to the chain at its current priority and
// relinks. Returns ErrDuplicateID if a node with the same ID is already
// attached, or ErrPriorityOutOfRange if proc's priority is outside
// [PriorityMin, PriorityMax].
func (p *Pipeline[F]) AddProcessor(proc *Processor[F]) error {
	if proc.priority < PriorityMin || proc.priority > PriorityMax {
		return ErrPriorityOutOfRange
	}
	return p.mutate(func() error {
		for _, existing := range p.processors {
			if existing.id == proc.id {
				return ErrDuplicateID
			}
		}
		proc.guard = p.guard
		proc.proxy = newDispatchProxy[F](p.guard, nil)
		proc.pipeline = p
		if proc.clock == nil {
			proc.clock = p.config.Clock
		}
		if !proc.policySet {
			proc.policy = p.config.DefaultErrorPolicy
		}
		p.processors = append(p.processors, proc)
		p.resortLocked()
		p.relinkLocked()
		p.events.emit(context.Background(), EventProcessorAdded, Event{
			Kind: EventKindProcessorAdded, Timestamp: p.now(), ProcessorID: proc.id,
		})
		capitan.Info(context.Background(), SignalProcessorAdded, FieldID.Field(string(proc.id)))
		return nil
	})
}

// RemoveProcessor detaches the processor with the given ID and relinks.
// Returns ErrNotFound if no such processor is attached.
func (p *Pipeline[F]) RemoveProcessor(id ID) error {
	return p.mutate(func() error {
		for i, proc := range p.processors {
			if proc.id != id {
				continue
			}
			p.processors = append(p.processors[:i], p.processors[i+1:]...)
			proc.pipeline = nil
			p.relinkLocked()
			p.events.emit(context.Background(), EventProcessorRemoved, Event{
				Kind: EventKindProcessorRemoved, Timestamp: p.now(), ProcessorID: id,
			})
			capitan.Info(context.Background(), SignalProcessorRemoved, FieldID.Field(string(id)))
			return nil
		}
		return ErrNotFound
	})
}

func (p *Pipeline[F]) emitProcessorEnabled(id ID, on bool) {
	p.events.emit(context.Background(), EventProcessorEnabled, Event{
		Kind: EventKindProcessorEnabled, Timestamp: p.now(), ProcessorID: id, Enabled: on,
	})
	capitan.Info(context.Background(), SignalProcessorEnabled, FieldID.Field(string(id)), FieldEnabled.Field(strconv.FormatBool(on)))
}

// emitPipelineError fires EventPipelineError/SignalPipelineError for a
// processor's Propagate, Terminate, or retry-exhausted outcome (§4.7,
// §7). Suppress never reaches here since applyErrorPolicy returns a nil
// error for it.
func (p *Pipeline[F]) emitPipelineError(err *ProcessingError[F]) {
	p.events.emit(context.Background(), EventPipelineError, Event{
		Kind: EventKindPipelineError, Timestamp: p.now(), Err: err, Severity: err.Severity,
	})
	capitan.Error(context.Background(), SignalPipelineError, FieldError.Field(err.Error()), FieldSeverity.Field(err.Severity.String()))
}

// RegisterInput attaches in to this pipeline's Head, so that every
// in.Push call dispatches into the chain. RegisterInput is a free
// function, not a method, because Go methods cannot introduce a type
// parameter (IN) beyond the receiver's.
func RegisterInput[F, IN any](p *Pipeline[F], in *InputTransformer[F, IN]) error {
	return p.mutate(func() error {
		if _, exists := p.inputIDs[in.ID()]; exists {
			return ErrDuplicateID
		}
		p.inputIDs[in.ID()] = in.Name()
		in.setPush(p.head.Push)
		return nil
	})
}

// RegisterOutput attaches out to this pipeline's Tail broadcast set and
// relinks. Like RegisterInput, this takes the transformer through a
// narrow interface so OUT need not appear on Pipeline itself.
func (p *Pipeline[F]) RegisterOutput(out outputRegistrar[F]) error {
	return p.mutate(func() error {
		for _, e := range p.tail.outputs {
			if e.id == out.ID() {
				return ErrDuplicateID
			}
		}
		p.tail.outputs = append(p.tail.outputs, &outputEntry[F]{
			id:       out.ID(),
			name:     out.Name(),
			priority: out.Priority(),
			enabled:  true,
			handler:  out.handler(),
		})
		p.tail.recomputeOutputs()
		return nil
	})
}

// RemoveOutput detaches the output with the given ID and relinks.
func (p *Pipeline[F]) RemoveOutput(id ID) error {
	return p.mutate(func() error {
		for i, e := range p.tail.outputs {
			if e.id != id {
				continue
			}
			p.tail.outputs = append(p.tail.outputs[:i], p.tail.outputs[i+1:]...)
			p.tail.recomputeOutputs()
			return nil
		}
		return ErrNotFound
	})
}

// EnableOutput toggles whether a registered output participates in the
// tail's broadcast fan-out, without removing it.
func (p *Pipeline[F]) EnableOutput(id ID, on bool) error {
	return p.mutate(func() error {
		for _, e := range p.tail.outputs {
			if e.id == id {
				e.enabled = on
				p.tail.recomputeOutputs()
				return nil
			}
		}
		return ErrNotFound
	})
}

// RegisterSwitchOutput registers out as a candidate under the tail's
// switch (§4.5): a pool of outputs distinct from the plain broadcast set,
// from which exactly one (or none) is ever live at a time. Registering a
// candidate does not itself make it live — call SelectOutput or
// SelectOutputIndex to do that.
func (p *Pipeline[F]) RegisterSwitchOutput(out outputRegistrar[F]) error {
	return p.mutate(func() error {
		if err := p.tail.addSwitchCandidate(&outputEntry[F]{
			id:       out.ID(),
			name:     out.Name(),
			priority: out.Priority(),
			enabled:  true,
			handler:  out.handler(),
		}); err != nil {
			return err
		}
		p.tail.recomputeOutputs()
		return nil
	})
}

// SelectOutput makes the switch candidate with the given id the tail's
// sole live output (unless the stack is non-empty, which takes
// precedence). Returns ErrNotFound if id is not a registered candidate.
func (p *Pipeline[F]) SelectOutput(id ID) error {
	return p.mutate(func() error {
		if err := p.tail.selectSwitchByID(id); err != nil {
			return err
		}
		p.tail.recomputeOutputs()
		return nil
	})
}

// SelectOutputIndex is SelectOutput by candidate position instead of id,
// matching scenarios that pick a branch by index (§4.5 scenario 5).
func (p *Pipeline[F]) SelectOutputIndex(i int) error {
	return p.mutate(func() error {
		if err := p.tail.selectSwitchByIndex(i); err != nil {
			return err
		}
		p.tail.recomputeOutputs()
		return nil
	})
}

// SwitchIsEmpty reports whether the tail's switch currently has no
// selection, either because no candidates are registered or none has
// been chosen.
func (p *Pipeline[F]) SwitchIsEmpty() bool {
	v, _ := ReadResult(p.guard, func() (bool, error) { return p.tail.switchIsEmpty(), nil })
	return v
}

// SwitchCurrent returns the id of the switch's current selection, if any.
func (p *Pipeline[F]) SwitchCurrent() (ID, bool) {
	v, ok := ReadResult(p.guard, func() (ID, error) {
		id, found := p.tail.switchCurrent()
		if !found {
			return "", ErrNotFound
		}
		return id, nil
	})
	return v, ok == nil
}

// SwitchCandidates returns the ids of every output registered under the
// tail's switch, in registration order.
func (p *Pipeline[F]) SwitchCandidates() []ID {
	v, _ := ReadResult(p.guard, func() ([]ID, error) { return p.tail.switchCandidates(), nil })
	return v
}

// PushOutput makes out the tail's sole active sink until it is popped,
// overriding both the switch's selection and the plain broadcast set
// (§4.5's Stack). Returns ErrDuplicateID if out's id is already on the
// stack.
func (p *Pipeline[F]) PushOutput(out outputRegistrar[F]) error {
	return p.mutate(func() error {
		if err := p.tail.pushStack(&outputEntry[F]{
			id:       out.ID(),
			name:     out.Name(),
			priority: out.Priority(),
			enabled:  true,
			handler:  out.handler(),
		}); err != nil {
			return err
		}
		p.tail.recomputeOutputs()
		return nil
	})
}

// PopOutput removes the stack's current top, returning its id. With the
// stack now empty (or not), relink falls back to the switch's selection
// or to normal fan-out per the usual precedence. Returns ErrNotFound if
// the stack is empty.
func (p *Pipeline[F]) PopOutput() (ID, error) {
	return WriteResult(p.guard, func() (ID, error) {
		if p.closed {
			return "", ErrClosed
		}
		top, err := p.tail.popStack()
		if err != nil {
			return "", err
		}
		p.tail.recomputeOutputs()
		return top.id, nil
	})
}

// StackIsEmpty reports whether nothing is currently pushed onto the
// tail's stack, i.e. the switch's selection (or normal fan-out) applies.
func (p *Pipeline[F]) StackIsEmpty() bool {
	v, _ := ReadResult(p.guard, func() (bool, error) { return p.tail.stackIsEmpty(), nil })
	return v
}

// SetAttribute stores an opaque, pipeline-wide setting and always fires
// EventAttributeChanged, even if newValue equals the previous value —
// this is a deliberate literal reading of the event's contract, not an
// optimization target.
func (p *Pipeline[F]) SetAttribute(key string, value any) error {
	return p.mutate(func() error {
		old := p.attributes[key]
		p.attributes[key] = value
		p.events.emit(context.Background(), EventAttributeChanged, Event{
			Kind: EventKindAttributeChanged, Timestamp: p.now(),
			Key: key, OldValue: old, NewValue: value,
		})
		capitan.Info(context.Background(), SignalAttributeChanged, FieldKey.Field(key))
		return nil
	})
}

// GetAttribute returns the current value of key and whether it was set.
func (p *Pipeline[F]) GetAttribute(key string) (any, bool) {
	v, err := ReadResult(p.guard, func() (any, error) {
		val, ok := p.attributes[key]
		if !ok {
			return nil, ErrNotFound
		}
		return val, nil
	})
	return v, err == nil
}

// Names returns the names of every attached processor, in priority order.
func (p *Pipeline[F]) Names() []Name {
	v, _ := ReadResult(p.guard, func() ([]Name, error) {
		names := make([]Name, len(p.processors))
		for i, proc := range p.processors {
			names[i] = proc.name
		}
		return names, nil
	})
	return v
}

// Find returns the processor with the given ID, or ErrNotFound.
func (p *Pipeline[F]) Find(id ID) (*Processor[F], error) {
	return ReadResult(p.guard, func() (*Processor[F], error) {
		for _, proc := range p.processors {
			if proc.id == id {
				return proc, nil
			}
		}
		return nil, ErrNotFound
	})
}

// On registers a listener for the given event kind. Listener failures are
// logged by the event bus, never recursively re-emitted.
func (p *Pipeline[F]) On(kind EventKind, fn func(context.Context, Event) error) error {
	return p.events.on(eventKeyFor(kind), fn)
}

func eventKeyFor(kind EventKind) hookz.Key {
	switch kind {
	case EventKindProcessorAdded:
		return EventProcessorAdded
	case EventKindProcessorRemoved:
		return EventProcessorRemoved
	case EventKindProcessorEnabled:
		return EventProcessorEnabled
	case EventKindAttributeChanged:
		return EventAttributeChanged
	case EventKindPipelineError:
		return EventPipelineError
	case EventKindRelink:
		return EventRelink
	default:
		return EventRelink
	}
}

// Close releases the pipeline's event bus and marks it closed; subsequent
// mutating or dispatching calls return ErrClosed.
func (p *Pipeline[F]) Close() error {
	return p.guard.WriteVoided(func() error {
		if p.closed {
			return nil
		}
		p.closed = true
		p.events.close()
		return nil
	})
}

// Push dispatches a frame into the chain via Head. It is equivalent to
// calling Push on an identity InputTransformer but avoids the need to
// register one for programmatic callers.
func (p *Pipeline[F]) Push(ctx context.Context, f F) error {
	return p.head.Push(ctx, f)
}

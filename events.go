package flowpipe

import (
	"context"
	"time"

	"github.com/zoobzio/hookz"
)

// Event keys for the pipeline's hookz bus (§4.7). Mirrors a
// switch.go naming convention (<subject>.<verb>).
const (
	EventProcessorAdded     = hookz.Key("flowpipe.processor.added")
	EventProcessorRemoved   = hookz.Key("flowpipe.processor.removed")
	EventProcessorEnabled   = hookz.Key("flowpipe.processor.enabled")
	EventAttributeChanged   = hookz.Key("flowpipe.attribute.changed")
	EventPipelineError      = hookz.Key("flowpipe.error")
	EventRelink             = hookz.Key("flowpipe.relink")
)

// Event is the payload delivered to every listener registered through
// Pipeline.On*. A single struct covers all event kinds; Kind discriminates
// which fields are meaningful, the way a discriminated SwitchEvent does for
// routed/unrouted.
type Event struct {
	Kind      EventKind
	Timestamp time.Time

	// ProcessorAdded / ProcessorRemoved / ProcessorEnabled
	ProcessorID ID
	Enabled     bool

	// AttributeChanged
	Key      string
	OldValue any
	NewValue any

	// PipelineError
	Err error

	Severity Severity
}

// EventKind discriminates Event.
type EventKind int

const (
	EventKindProcessorAdded EventKind = iota
	EventKindProcessorRemoved
	EventKindProcessorEnabled
	EventKindAttributeChanged
	EventKindPipelineError
	EventKindRelink
)

// listener is the handler shape every On* subscription takes.
type listener func(context.Context, Event) error

// eventBus wraps hookz.Hooks[Event] and is embedded in Pipeline. Listener
// failures are logged, never propagated and never fanned back out as a
// new event — hookz already serializes this per the invariant in §4.7
// that a listener must not be able to recursively trigger itself.
type eventBus struct {
	hooks  *hookz.Hooks[Event]
	logger Logger
}

func newEventBus(logger Logger) *eventBus {
	return &eventBus{hooks: hookz.New[Event](), logger: logger}
}

func (b *eventBus) emit(ctx context.Context, key hookz.Key, ev Event) {
	if err := b.hooks.Emit(ctx, key, ev); err != nil {
		b.logger.Info("flowpipe: listener error", "kind", ev.Kind, "error", err)
	}
}

func (b *eventBus) on(key hookz.Key, fn listener) error {
	_, err := b.hooks.Hook(key, fn)
	return err
}

func (b *eventBus) close() {
	b.hooks.Close()
}

package flowpipe

import (
	"fmt"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
)

// Property is a typed, opaque pipeline setting (§6): a consumer-facing
// bridge over a value that can be read, written, and persisted as bytes
// without the holder needing to know the host's config format. The
// external settings store/hash table §6 describes as out of scope; this
// is only the consumer-side typed accessor over it.
type Property[T any] struct {
	mu        sync.RWMutex
	value     T
	serialize func(T) ([]byte, error)
	parse     func([]byte) (T, error)
	onChange  []func(old, new T)
}

// NewProperty constructs a Property with an initial value and the default
// msgpack-based serialize/parse pair.
func NewProperty[T any](initial T) *Property[T] {
	return &Property[T]{
		value: initial,
		serialize: func(v T) ([]byte, error) {
			return msgpack.Marshal(v)
		},
		parse: func(b []byte) (T, error) {
			var v T
			err := msgpack.Unmarshal(b, &v)
			return v, err
		},
	}
}

// Get returns the current value.
func (p *Property[T]) Get() T {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.value
}

// Set stores a new value and notifies every OnChange listener, even when
// new equals the previous value — listeners decide for themselves whether
// a no-op change matters, matching this package's other "always fire"
// attribute semantics (see Pipeline.SetAttribute).
func (p *Property[T]) Set(newValue T) {
	p.mu.Lock()
	old := p.value
	p.value = newValue
	listeners := make([]func(T, T), len(p.onChange))
	copy(listeners, p.onChange)
	p.mu.Unlock()

	for _, fn := range listeners {
		fn(old, newValue)
	}
}

// OnChange registers a listener invoked after every Set call.
func (p *Property[T]) OnChange(fn func(old, new T)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onChange = append(p.onChange, fn)
}

// Serialize encodes the current value to its wire form.
func (p *Property[T]) Serialize() ([]byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.serialize(p.value)
}

// Parse decodes b and applies it via Set, returning any decode error
// without touching the current value.
func (p *Property[T]) Parse(b []byte) error {
	p.mu.RLock()
	parse := p.parse
	p.mu.RUnlock()

	v, err := parse(b)
	if err != nil {
		return fmt.Errorf("flowpipe: parsing property: %w", err)
	}
	p.Set(v)
	return nil
}

// SetCodec overrides the serialize/parse pair, for properties whose wire
// representation should not be the default msgpack encoding (e.g. an
// INI-style "key=value" text format written by an external settings
// writer).
func (p *Property[T]) SetCodec(serialize func(T) ([]byte, error), parse func([]byte) (T, error)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.serialize = serialize
	p.parse = parse
}

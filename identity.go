package flowpipe

import (
	"fmt"

	"github.com/bassosimone/runtimex"
	"github.com/google/uuid"
)

// Name is a type alias for node and transformer names. Using this type
// encourages storing names as constants rather than using inline strings
// throughout application code.
type Name = string

// ID is the opaque identifier of a node or transformer. It defaults to
// "name:priority" for nodes in the processor chain, and to a generated
// UUIDv7 for boundary transformers that have no natural priority-derived
// default.
type ID string

// defaultNodeID returns the conventional default ID for a processor-chain
// node: "name:priority".
func defaultNodeID(name Name, priority int) ID {
	return ID(fmt.Sprintf("%s:%d", name, priority))
}

// NewTransformerID returns a new opaque identifier for an input or output
// transformer, a UUIDv7 modeled on bassosimone/nop's span-id convention.
//
// This panics if the system random number generator fails, which should
// only happen under extraordinary circumstances.
func NewTransformerID() ID {
	return ID(runtimex.PanicOnError1(uuid.NewV7()).String())
}

// String implements fmt.Stringer.
func (id ID) String() string {
	return string(id)
}

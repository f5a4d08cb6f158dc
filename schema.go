package flowpipe

// NodeKind discriminates the entries in a Schema, flattened to the three
// concrete node shapes this package's chain actually has: there is no
// open set of implementations to discriminate across, so a single enum
// plus a single Node struct covers every case instead of a discriminated-
// union Flow interface plus per-variant FlowKey.
type NodeKind string

const (
	NodeKindHead      NodeKind = "head"
	NodeKindProcessor NodeKind = "processor"
	NodeKindTail      NodeKind = "tail"
)

// Node is one entry in a Schema: the JSON-serializable description of a
// single stage in the chain at the moment Schema was taken.
type Node struct {
	Kind     NodeKind `json:"kind"`
	ID       ID       `json:"id"`
	Name     Name     `json:"name"`
	Priority int      `json:"priority"`
	Enabled  bool     `json:"enabled"`
	Peekers  int      `json:"peekers"`
	Policy   string   `json:"policy,omitempty"`
}

// OutputNode is one entry in a Schema's Outputs list: a registered output
// transformer, independent of the priority chain proper.
type OutputNode struct {
	ID       ID   `json:"id"`
	Name     Name `json:"name"`
	Priority int  `json:"priority"`
	Enabled  bool `json:"enabled"`
}

// Schema is a point-in-time, JSON-serializable snapshot of a Pipeline's
// topology: the head, every processor in dispatch order, the tail, and
// the tail's registered outputs. It carries no live references back into
// the pipeline, so mutating the pipeline after Schema returns never
// invalidates or changes an already-taken Schema.
type Schema struct {
	Nodes   []Node       `json:"nodes"`
	Outputs []OutputNode `json:"outputs"`
}

// Count returns the number of chain nodes (head + processors + tail).
func (s Schema) Count() int { return len(s.Nodes) }

// Find returns the node with the given ID, if present.
func (s Schema) Find(id ID) (Node, bool) {
	for _, n := range s.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// FindByName returns every node with the given name; names need not be
// unique across head/processors/tail, though processor names usually are.
func (s Schema) FindByName(name Name) []Node {
	var out []Node
	for _, n := range s.Nodes {
		if n.Name == name {
			out = append(out, n)
		}
	}
	return out
}

// FindByKind returns every node of the given kind, preserving chain order.
func (s Schema) FindByKind(kind NodeKind) []Node {
	var out []Node
	for _, n := range s.Nodes {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

// Schema returns a read-locked, JSON-serializable snapshot of the current
// head/processors/tail topology: node identities, priorities, enabled
// state, and peek-tap counts, plus the tail's registered outputs. This is
// a read-only operation — it never mutates the pipeline and never blocks
// a concurrent dispatch beyond the ordinary read-lock window.
func (p *Pipeline[F]) Schema() Schema {
	v, _ := ReadResult(p.guard, func() (Schema, error) {
		nodes := make([]Node, 0, len(p.processors)+2)
		nodes = append(nodes, Node{
			Kind:     NodeKindHead,
			ID:       p.head.id,
			Name:     p.head.name,
			Priority: p.head.priority,
			Enabled:  p.head.enabled,
			Peekers:  len(p.head.peekers),
		})
		for _, proc := range p.processors {
			nodes = append(nodes, Node{
				Kind:     NodeKindProcessor,
				ID:       proc.id,
				Name:     proc.name,
				Priority: proc.priority,
				Enabled:  proc.enabled,
				Peekers:  len(proc.peekers),
				Policy:   proc.policy.String(),
			})
		}
		nodes = append(nodes, Node{
			Kind:     NodeKindTail,
			ID:       p.tail.id,
			Name:     p.tail.name,
			Priority: p.tail.priority,
			Enabled:  p.tail.enabled,
			Peekers:  len(p.tail.peekers),
		})

		outputs := make([]OutputNode, 0, len(p.tail.outputs))
		for _, e := range p.tail.outputs {
			outputs = append(outputs, OutputNode{
				ID:       e.id,
				Name:     e.name,
				Priority: e.priority,
				Enabled:  e.enabled,
			})
		}

		return Schema{Nodes: nodes, Outputs: outputs}, nil
	})
	return v
}

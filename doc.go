// Package flowpipe provides a lightweight, type-safe engine for building
// reconfigurable packet and frame processing pipelines in Go.
//
// # Overview
//
// flowpipe wires a single head, an ordered chain of processors, and a
// single tail into a dataflow graph that moves frames of a user-defined
// type F from inputs to outputs. Unlike a static composition of functions,
// the chain can be rewired while frames are actively flowing through it:
// processors can be added, removed, enabled, disabled, re-prioritized, and
// tapped with peeks, all while concurrent producers keep dispatching.
//
// # Core Concepts
//
//   - DataType[T]: describes how the pipeline-wide dispatch capability T
//     fans out to N targets, renders empty, and allocates as an array.
//   - Handler[F]: the canonical capability used to build a DataType —
//     a function that processes one frame and can fail.
//   - Head / Tail: built-in terminal nodes that aggregate inputs and fan
//     out to outputs.
//   - Processor: a priority-ordered node between head and tail.
//   - InputTransformer / OutputTransformer: boundary nodes bridging an
//     external type to and from the frame type.
//
// # Concurrency model
//
// The engine is data-path parallel, structure serial: every end-to-end
// dispatch holds the pipeline's shared read lock; every structural mutation
// (add/remove processor, enable/disable, peek, priority change, output
// switch/stack mutation, attribute change) holds the exclusive write lock
// for the whole operation, including event fan-out. See Guard.
//
// # Usage Example
//
//	type Frame struct {
//	    Name string
//	    ID   int
//	}
//
//	dt := flowpipe.HandlerDataType[Frame]()
//	p := flowpipe.NewPipeline(dt)
//
//	proc := flowpipe.NewProcessor("concat-x", 10, func(_ context.Context, f Frame) (Frame, error) {
//	    f.Name += "X"
//	    return f, nil
//	})
//	p.AddProcessor(proc)
//
//	out := flowpipe.NewOutputTransformer[Frame]("recorder", 0, func(_ context.Context, f Frame) error {
//	    fmt.Println(f)
//	    return nil
//	})
//	p.RegisterOutput(out)
//
//	in := flowpipe.NewInputTransformer[Frame]("source", 0)
//	flowpipe.RegisterInput(p, in)
//
//	_ = in.Push(context.Background(), Frame{Name: "A", ID: 1})
//
// For a runnable program, see cmd/flowpipe-demo.
package flowpipe

package flowpipe

import "github.com/zoobzio/capitan"

// Signal constants for pipeline lifecycle and error events.
// Signals follow the pattern: <subject>.<event>.
const (
	SignalProcessorAdded   capitan.Signal = "processor.added"
	SignalProcessorRemoved capitan.Signal = "processor.removed"
	SignalProcessorEnabled capitan.Signal = "processor.enabled"
	SignalAttributeChanged capitan.Signal = "attribute.changed"
	SignalPipelineError    capitan.Signal = "pipeline.error"
	SignalRelink           capitan.Signal = "pipeline.relink"

	SignalCircuitBreakerOpened   capitan.Signal = "circuitbreaker.opened"
	SignalCircuitBreakerClosed   capitan.Signal = "circuitbreaker.closed"
	SignalCircuitBreakerHalfOpen capitan.Signal = "circuitbreaker.half_open"
	SignalCircuitBreakerRejected capitan.Signal = "circuitbreaker.rejected"
)

// Common field keys using capitan's primitive types, so no custom struct
// serialization is required.
var (
	FieldID       = capitan.NewStringKey("id")
	FieldName     = capitan.NewStringKey("name")
	FieldEnabled  = capitan.NewStringKey("enabled")
	FieldKey      = capitan.NewStringKey("key")
	FieldError    = capitan.NewStringKey("error")
	FieldSeverity = capitan.NewStringKey("severity")
	FieldCount    = capitan.NewIntKey("count")

	FieldState            = capitan.NewStringKey("state")
	FieldGeneration       = capitan.NewIntKey("generation")
	FieldFailures         = capitan.NewIntKey("failures")
	FieldFailureThreshold = capitan.NewIntKey("failure_threshold")
	FieldSuccesses        = capitan.NewIntKey("successes")
	FieldSuccessThreshold = capitan.NewIntKey("success_threshold")
)

// Package tracing records the lifecycle events of a runtime, its entities and
// the components attached to them.
package tracing

// A TraceWriter stores records.
type TraceWriter interface {
	// Init prepares the storage. It panics if the storage cannot be created.
	Init()

	// Write buffers a record.
	Write(r Record)

	// Flush makes the buffered records durable.
	Flush()
}

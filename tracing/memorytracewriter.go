package tracing

import "sync"

// MemoryTraceWriter keeps the most recent records in memory. It is safe for
// concurrent use, so a monitoring server can read while the runtime writes.
type MemoryTraceWriter struct {
	mu       sync.Mutex
	capacity int
	records  []Record
}

// NewMemoryTraceWriter creates a writer that keeps at most capacity records.
// A capacity of 0 keeps everything.
func NewMemoryTraceWriter(capacity int) *MemoryTraceWriter {
	return &MemoryTraceWriter{capacity: capacity}
}

// Init does nothing.
func (w *MemoryTraceWriter) Init() {}

// Write stores a record, evicting the oldest one when full.
func (w *MemoryTraceWriter) Write(r Record) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.records = append(w.records, r)
	if w.capacity > 0 && len(w.records) > w.capacity {
		w.records = w.records[len(w.records)-w.capacity:]
	}
}

// Flush does nothing.
func (w *MemoryTraceWriter) Flush() {}

// Records returns a copy of the stored records, oldest first.
func (w *MemoryTraceWriter) Records() []Record {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]Record, len(w.records))
	copy(out, w.records)

	return out
}

package hitmerge

import "sync/atomic"

// MetricsCollector receives operational counters from worker and master
// nodes. Implement it to integrate with a monitoring system, or use
// NewAtomicMetrics for a process-local collector.
//
// Implementations must be safe for concurrent use.
type MetricsCollector interface {
	// ChunkInserted is called after a chunk of hits hits the shared list.
	ChunkInserted(hits int)
	// OverlapRejected is called when an insert fails the overlap check.
	OverlapRejected()
	// MessageSent is called per finalized wire message on the worker.
	MessageSent(bytes int)
	// MessageReceived is called per decoded wire message on the master.
	MessageReceived(hits int, bytes int)
	// DuplicateDetected is called when the master sees a repeated object ID.
	DuplicateDetected()
}

// NoopMetrics discards all metrics. It is the default collector.
type NoopMetrics struct{}

var _ MetricsCollector = NoopMetrics{}

// ChunkInserted implements MetricsCollector.
func (NoopMetrics) ChunkInserted(int) {}

// OverlapRejected implements MetricsCollector.
func (NoopMetrics) OverlapRejected() {}

// MessageSent implements MetricsCollector.
func (NoopMetrics) MessageSent(int) {}

// MessageReceived implements MetricsCollector.
func (NoopMetrics) MessageReceived(int, int) {}

// DuplicateDetected implements MetricsCollector.
func (NoopMetrics) DuplicateDetected() {}

// MetricsSnapshot is a point-in-time copy of AtomicMetrics counters.
type MetricsSnapshot struct {
	ChunksInserted     uint64
	HitsInserted       uint64
	OverlapsRejected   uint64
	MessagesSent       uint64
	BytesSent          uint64
	MessagesReceived   uint64
	HitsReceived       uint64
	BytesReceived      uint64
	DuplicatesDetected uint64
}

// AtomicMetrics is a lock-free in-process MetricsCollector.
type AtomicMetrics struct {
	chunksInserted     atomic.Uint64
	hitsInserted       atomic.Uint64
	overlapsRejected   atomic.Uint64
	messagesSent       atomic.Uint64
	bytesSent          atomic.Uint64
	messagesReceived   atomic.Uint64
	hitsReceived       atomic.Uint64
	bytesReceived      atomic.Uint64
	duplicatesDetected atomic.Uint64
}

var _ MetricsCollector = (*AtomicMetrics)(nil)

// NewAtomicMetrics creates a zeroed collector.
func NewAtomicMetrics() *AtomicMetrics {
	return &AtomicMetrics{}
}

// ChunkInserted implements MetricsCollector.
func (m *AtomicMetrics) ChunkInserted(hits int) {
	m.chunksInserted.Add(1)
	m.hitsInserted.Add(uint64(hits)) //nolint:gosec // hits >= 0
}

// OverlapRejected implements MetricsCollector.
func (m *AtomicMetrics) OverlapRejected() {
	m.overlapsRejected.Add(1)
}

// MessageSent implements MetricsCollector.
func (m *AtomicMetrics) MessageSent(bytes int) {
	m.messagesSent.Add(1)
	m.bytesSent.Add(uint64(bytes)) //nolint:gosec // bytes >= 0
}

// MessageReceived implements MetricsCollector.
func (m *AtomicMetrics) MessageReceived(hits, bytes int) {
	m.messagesReceived.Add(1)
	m.hitsReceived.Add(uint64(hits))   //nolint:gosec // hits >= 0
	m.bytesReceived.Add(uint64(bytes)) //nolint:gosec // bytes >= 0
}

// DuplicateDetected implements MetricsCollector.
func (m *AtomicMetrics) DuplicateDetected() {
	m.duplicatesDetected.Add(1)
}

// Snapshot returns a copy of the current counter values.
func (m *AtomicMetrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		ChunksInserted:     m.chunksInserted.Load(),
		HitsInserted:       m.hitsInserted.Load(),
		OverlapsRejected:   m.overlapsRejected.Load(),
		MessagesSent:       m.messagesSent.Load(),
		BytesSent:          m.bytesSent.Load(),
		MessagesReceived:   m.messagesReceived.Load(),
		HitsReceived:       m.hitsReceived.Load(),
		BytesReceived:      m.bytesReceived.Load(),
		DuplicatesDetected: m.duplicatesDetected.Load(),
	}
}

package infra

import (
	"sync/atomic"
	"time"
)

// Metrics provides lightweight observability without external dependencies.
// Uses atomic operations for thread-safety.
type Metrics struct {
	// Counters
	snapshotsIngested atomic.Uint64
	deltasApplied     atomic.Uint64
	gapsDetected      atomic.Uint64
	decodeErrors      atomic.Uint64
	droppedEvents     atomic.Uint64
	unknownActions    atomic.Uint64

	// Latency tracking (delta apply)
	latencySumNs atomic.Int64
	latencyCount atomic.Uint64

	// Gauges
	activeConnections atomic.Int32
	awaitingSnapshot  atomic.Int32 // 1 = book invalid until next snapshot
}

// GlobalMetrics is the singleton metrics instance.
var GlobalMetrics = &Metrics{}

// RecordSnapshot records an ingested snapshot.
func (m *Metrics) RecordSnapshot() {
	m.snapshotsIngested.Add(1)
}

// RecordDelta records an applied delta with its apply latency.
func (m *Metrics) RecordDelta(latencyNs int64) {
	m.deltasApplied.Add(1)
	m.latencySumNs.Add(latencyNs)
	m.latencyCount.Add(1)
}

// RecordGap records a sequencing gap.
func (m *Metrics) RecordGap() {
	m.gapsDetected.Add(1)
}

// RecordDecodeError records a frame that failed to decode.
func (m *Metrics) RecordDecodeError() {
	m.decodeErrors.Add(1)
}

// RecordDropped records an event discarded while waiting for a snapshot.
func (m *Metrics) RecordDropped() {
	m.droppedEvents.Add(1)
}

// RecordUnknownActions records entries with an action outside the known vocabulary.
func (m *Metrics) RecordUnknownActions(n int) {
	if n > 0 {
		m.unknownActions.Add(uint64(n))
	}
}

// IncrementConnections increments active connections by 1.
func (m *Metrics) IncrementConnections() {
	m.activeConnections.Add(1)
}

// DecrementConnections decrements active connections by 1.
func (m *Metrics) DecrementConnections() {
	m.activeConnections.Add(-1)
}

// SetAwaitingSnapshot sets whether the book is waiting for a fresh snapshot.
func (m *Metrics) SetAwaitingSnapshot(awaiting bool) {
	if awaiting {
		m.awaitingSnapshot.Store(1)
	} else {
		m.awaitingSnapshot.Store(0)
	}
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	SnapshotsIngested uint64
	DeltasApplied     uint64
	GapsDetected      uint64
	DecodeErrors      uint64
	DroppedEvents     uint64
	UnknownActions    uint64
	AvgLatencyNs      int64
	ActiveConnections int32
	AwaitingSnapshot  bool
	Timestamp         time.Time
}

// Snapshot returns current metrics as a snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	var avgLatency int64
	count := m.latencyCount.Load()
	if count > 0 {
		avgLatency = m.latencySumNs.Load() / int64(count)
	}

	return MetricsSnapshot{
		SnapshotsIngested: m.snapshotsIngested.Load(),
		DeltasApplied:     m.deltasApplied.Load(),
		GapsDetected:      m.gapsDetected.Load(),
		DecodeErrors:      m.decodeErrors.Load(),
		DroppedEvents:     m.droppedEvents.Load(),
		UnknownActions:    m.unknownActions.Load(),
		AvgLatencyNs:      avgLatency,
		ActiveConnections: m.activeConnections.Load(),
		AwaitingSnapshot:  m.awaitingSnapshot.Load() == 1,
		Timestamp:         time.Now(),
	}
}

// Reset clears all metrics (for testing).
func (m *Metrics) Reset() {
	m.snapshotsIngested.Store(0)
	m.deltasApplied.Store(0)
	m.gapsDetected.Store(0)
	m.decodeErrors.Store(0)
	m.droppedEvents.Store(0)
	m.unknownActions.Store(0)
	m.latencySumNs.Store(0)
	m.latencyCount.Store(0)
	m.activeConnections.Store(0)
	m.awaitingSnapshot.Store(0)
}

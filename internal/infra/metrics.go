package infra

import (
	"sync/atomic"
	"time"
)

// Metrics provides lightweight observability without external dependencies.
// Uses atomic operations for thread-safety.
type Metrics struct {
	// Counters
	ticksProcessed atomic.Uint64
	agentUpdates   atomic.Uint64
	liquidations   atomic.Uint64
	recordsWritten atomic.Uint64
	errorsTotal    atomic.Uint64

	// Latency tracking
	latencySumNs atomic.Int64
	latencyCount atomic.Uint64

	// Gauges
	activeAgents  atomic.Int32
	streamClients atomic.Int32
}

// GlobalMetrics is the singleton metrics instance.
var GlobalMetrics = &Metrics{}

// RecordTick records one committed tick with its latency, the number of agents
// whose state changed and the number newly liquidated.
func (m *Metrics) RecordTick(latencyNs int64, updates, liquidations uint64) {
	m.ticksProcessed.Add(1)
	m.agentUpdates.Add(updates)
	m.liquidations.Add(liquidations)
	m.latencySumNs.Add(latencyNs)
	m.latencyCount.Add(1)
}

// RecordRecords records order-book records handed to sinks.
func (m *Metrics) RecordRecords(n int) {
	m.recordsWritten.Add(uint64(n))
}

// RecordError records an error occurrence.
func (m *Metrics) RecordError() {
	m.errorsTotal.Add(1)
}

// SetActiveAgents sets the number of agents not yet liquidated.
func (m *Metrics) SetActiveAgents(count int32) {
	m.activeAgents.Store(count)
}

// IncrementClients increments connected stream clients by 1.
func (m *Metrics) IncrementClients() {
	m.streamClients.Add(1)
}

// DecrementClients decrements connected stream clients by 1.
func (m *Metrics) DecrementClients() {
	m.streamClients.Add(-1)
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	TicksProcessed uint64
	AgentUpdates   uint64
	Liquidations   uint64
	RecordsWritten uint64
	ErrorsTotal    uint64
	AvgTickNs      int64
	ActiveAgents   int32
	StreamClients  int32
	Timestamp      time.Time
}

// Snapshot returns current metrics as a snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	var avgLatency int64
	count := m.latencyCount.Load()
	if count > 0 {
		avgLatency = m.latencySumNs.Load() / int64(count)
	}

	return MetricsSnapshot{
		TicksProcessed: m.ticksProcessed.Load(),
		AgentUpdates:   m.agentUpdates.Load(),
		Liquidations:   m.liquidations.Load(),
		RecordsWritten: m.recordsWritten.Load(),
		ErrorsTotal:    m.errorsTotal.Load(),
		AvgTickNs:      avgLatency,
		ActiveAgents:   m.activeAgents.Load(),
		StreamClients:  m.streamClients.Load(),
		Timestamp:      time.Now(),
	}
}

// Reset clears all metrics (for testing).
func (m *Metrics) Reset() {
	m.ticksProcessed.Store(0)
	m.agentUpdates.Store(0)
	m.liquidations.Store(0)
	m.recordsWritten.Store(0)
	m.errorsTotal.Store(0)
	m.latencySumNs.Store(0)
	m.latencyCount.Store(0)
	m.activeAgents.Store(0)
	m.streamClients.Store(0)
}

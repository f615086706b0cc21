package telemetry

import (
	"encoding/json"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

const maxLatencySamples = 1000

// Metrics aggregates simulation counters and recent latencies.
type Metrics struct {
	simulations       atomic.Int64
	baselineHits      atomic.Int64
	degraded          atomic.Int64
	computationErrors atomic.Int64
	rejected          atomic.Int64
	unknownActivities atomic.Int64

	mu        sync.Mutex
	latencies []time.Duration
}

// NewMetrics creates a new metrics collector.
func NewMetrics() *Metrics {
	return &Metrics{
		latencies: make([]time.Duration, 0, maxLatencySamples),
	}
}

// Outcome describes one finished simulation.
type Outcome struct {
	Latency          time.Duration
	Baseline         bool
	Degraded         bool
	ComputationError bool
	Unknown          int
}

// Record adds one completed simulation.
func (m *Metrics) Record(o Outcome) {
	m.simulations.Add(1)
	if o.Baseline {
		m.baselineHits.Add(1)
	}
	if o.Degraded {
		m.degraded.Add(1)
	}
	if o.ComputationError {
		m.computationErrors.Add(1)
	}
	m.unknownActivities.Add(int64(o.Unknown))
	m.recordLatency(o.Latency)
}

// RecordRejected counts a request that failed validation.
func (m *Metrics) RecordRejected() {
	m.rejected.Add(1)
}

func (m *Metrics) recordLatency(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Keep the most recent samples.
	if len(m.latencies) >= maxLatencySamples {
		m.latencies = m.latencies[1:]
	}
	m.latencies = append(m.latencies, d)
}

// Percentile returns the p-th percentile (0..1) of recent latencies.
func (m *Metrics) Percentile(p float64) time.Duration {
	m.mu.Lock()
	sorted := append([]time.Duration(nil), m.latencies...)
	m.mu.Unlock()

	if len(sorted) == 0 {
		return 0
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	idx := int(float64(len(sorted)) * p)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// Summary returns a snapshot.
func (m *Metrics) Summary() MetricsSummary {
	return MetricsSummary{
		Simulations:       m.simulations.Load(),
		BaselineHits:      m.baselineHits.Load(),
		Degraded:          m.degraded.Load(),
		ComputationErrors: m.computationErrors.Load(),
		Rejected:          m.rejected.Load(),
		UnknownActivities: m.unknownActivities.Load(),
		P50Latency:        m.Percentile(0.50),
		P95Latency:        m.Percentile(0.95),
		P99Latency:        m.Percentile(0.99),
	}
}

// MetricsSummary is a snapshot of metrics.
type MetricsSummary struct {
	Simulations       int64         `json:"simulations"`
	BaselineHits      int64         `json:"baseline_hits"`
	Degraded          int64         `json:"degraded"`
	ComputationErrors int64         `json:"computation_errors"`
	Rejected          int64         `json:"rejected"`
	UnknownActivities int64         `json:"unknown_activities"`
	P50Latency        time.Duration `json:"p50_latency_ns"`
	P95Latency        time.Duration `json:"p95_latency_ns"`
	P99Latency        time.Duration `json:"p99_latency_ns"`
}

// ToJSON serializes the summary to JSON.
func (s MetricsSummary) ToJSON() ([]byte, error) {
	return json.Marshal(s)
}

package websocket

import (
	"log/slog"
	"sync"
	"time"
)

// DispatchMetric records one fan-out.
type DispatchMetric struct {
	Event     EventType     `json:"event"`
	Targets   int           `json:"targets"`
	Delivered int           `json:"delivered"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration"`
	Timestamp time.Time     `json:"timestamp"`
}

// MetricsSnapshot is the aggregated view reported by the health endpoint.
type MetricsSnapshot struct {
	Dispatches      int64         `json:"dispatches"`
	Delivered       int64         `json:"delivered"`
	Failed          int64         `json:"failed"`
	PeakAudience    int           `json:"peakAudience"`
	PeakDuration    time.Duration `json:"peakDuration"`
	Persisted       int64         `json:"persisted"`
	PersistFailures int64         `json:"persistFailures"`
}

// Metrics tracks delivery and persistence outcomes
type Metrics struct {
	// circular buffer of recent dispatches
	history     []DispatchMetric
	historySize int
	historyPos  int
	historyLen  int

	totals MetricsSnapshot
	mu     sync.RWMutex

	slowDispatchThreshold time.Duration
}

func NewMetrics(historySize int) *Metrics {
	if historySize <= 0 {
		historySize = 100
	}
	return &Metrics{
		history:               make([]DispatchMetric, historySize),
		historySize:           historySize,
		slowDispatchThreshold: 500 * time.Millisecond,
	}
}

func (m *Metrics) RecordDispatch(metric DispatchMetric) {
	m.mu.Lock()
	m.history[m.historyPos] = metric
	m.historyPos = (m.historyPos + 1) % m.historySize
	if m.historyLen < m.historySize {
		m.historyLen++
	}

	m.totals.Dispatches++
	m.totals.Delivered += int64(metric.Delivered)
	m.totals.Failed += int64(metric.Failed)
	if metric.Targets > m.totals.PeakAudience {
		m.totals.PeakAudience = metric.Targets
	}
	if metric.Duration > m.totals.PeakDuration {
		m.totals.PeakDuration = metric.Duration
	}
	m.mu.Unlock()

	if metric.Duration > m.slowDispatchThreshold {
		slog.Warn("Slow dispatch", "event", metric.Event, "targets", metric.Targets, "duration", metric.Duration)
	}
}

func (m *Metrics) RecordPersist(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.totals.PersistFailures++
		return
	}
	m.totals.Persisted++
}

// Recent returns up to n dispatches, newest first.
func (m *Metrics) Recent(n int) []DispatchMetric {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if n > m.historyLen {
		n = m.historyLen
	}
	out := make([]DispatchMetric, 0, n)
	for i := 1; i <= n; i++ {
		idx := (m.historyPos - i + m.historySize) % m.historySize
		out = append(out, m.history[idx])
	}
	return out
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.totals
}

package orchestrator

import (
	"sync"
	"time"
)

// Metrics tracks batch progress from completed-task timestamps. The
// rate window is the whole run; good enough for ETA on long batches.
type Metrics struct {
	mu        sync.Mutex
	startedAt time.Time
	total     int
	success   int
	failed    int
	skipped   int
}

func NewMetrics(total int) *Metrics {
	return &Metrics{startedAt: time.Now(), total: total}
}

func (m *Metrics) RecordSuccess() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.success++
}

func (m *Metrics) RecordError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed++
}

func (m *Metrics) RecordSkipped() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.skipped++
}

// Snapshot is a point-in-time view for progress logging.
type Snapshot struct {
	Total     int
	Completed int
	Success   int
	Failed    int
	Skipped   int
	Remaining int
	PerMinute float64
	ETA       time.Duration
	Elapsed   time.Duration
}

func (m *Metrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	completed := m.success + m.failed
	elapsed := time.Since(m.startedAt)
	snap := Snapshot{
		Total:     m.total,
		Completed: completed,
		Success:   m.success,
		Failed:    m.failed,
		Skipped:   m.skipped,
		Remaining: m.total - completed - m.skipped,
		Elapsed:   elapsed,
	}
	if completed > 0 && elapsed > 0 {
		snap.PerMinute = float64(completed) / elapsed.Minutes()
		perTask := elapsed / time.Duration(completed)
		snap.ETA = perTask * time.Duration(snap.Remaining)
	}
	return snap
}

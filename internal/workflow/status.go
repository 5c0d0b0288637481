package workflow

import (
	"time"

	"recipebot/internal/pipeline"
)

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running       bool
	Workers       int
	QueueDepth    int
	QueueCapacity int
	Processed     int64
	Failed        int64
	LastKind      pipeline.Kind
	LastError     string
	Uptime        time.Duration
}

// Status returns the latest workflow information.
func (m *Manager) Status() StatusSummary {
	m.mu.RLock()
	defer m.mu.RUnlock()
	summary := StatusSummary{
		Running:       m.running,
		Workers:       m.workers,
		QueueDepth:    len(m.queue),
		QueueCapacity: cap(m.queue),
		Processed:     m.processed,
		Failed:        m.failed,
		LastKind:      m.lastKind,
	}
	if m.lastErr != nil {
		summary.LastError = m.lastErr.Error()
	}
	if m.running {
		summary.Uptime = time.Since(m.startedAt)
	}
	return summary
}

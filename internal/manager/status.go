package manager

import (
	"prewarmd/internal/metrics"
	"prewarmd/internal/services/scheduler"
)

// Status is the manager's full snapshot, shaped for JSON so an external
// monitoring surface can serialize it as-is.
type Status struct {
	Running bool                `json:"running"`
	Jobs    []scheduler.JobInfo `json:"jobs"`
	Metrics metrics.AllMetrics  `json:"metrics"`
}

// GetStatus reports running state, scheduled jobs, and metrics. Jobs is
// empty unless the manager is running; metrics survive a stop so operators
// can still read the last run's numbers.
func (m *Manager) GetStatus() Status {
	m.mu.Lock()
	running := m.running
	sched := m.sched
	m.mu.Unlock()

	st := Status{
		Running: running,
		Jobs:    []scheduler.JobInfo{},
		Metrics: m.collector.GetAllMetrics(),
	}
	if running && sched != nil {
		st.Jobs = sched.Jobs()
	}
	return st
}

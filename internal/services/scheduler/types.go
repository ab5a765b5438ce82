package scheduler

import (
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"prewarmd/internal/config"
	"prewarmd/internal/warmer"
)

// JobIDPrefix derives a job id from a source name. Re-adding a source with
// the same name replaces its job.
const JobIDPrefix = "warm_"

const (
	// DefaultWorkers bounds how many warm jobs may run at once across all
	// sources.
	DefaultWorkers = 10

	// MisfireGrace is how late a firing may start (e.g. after waiting for a
	// worker slot) before it is skipped instead of run.
	MisfireGrace = 5 * time.Minute
)

// WarmFunc is the synchronous warm entrypoint a job body invokes.
type WarmFunc func(config.SourceConfig) warmer.WarmResult

// Config controls the scheduler service.
type Config struct {
	// Workers is the shared pool size; 0 means DefaultWorkers.
	Workers int

	// MisfireGrace overrides how late a firing may start before it is
	// skipped; 0 means the MisfireGrace default.
	MisfireGrace time.Duration
}

// runState caps concurrent instances of one job at 1; an overlapping fire
// that fails tryAcquire is coalesced into the in-flight run.
type runState struct {
	mu      sync.Mutex
	running bool
}

func (s *runState) tryAcquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false
	}
	s.running = true
	return true
}

func (s *runState) release() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// jobDef is one scheduled recurring job bound to a source.
type jobDef struct {
	src     config.SourceConfig
	entryID cron.EntryID
	state   *runState
}

// JobID returns the derived job id for a source name.
func JobID(sourceName string) string { return JobIDPrefix + sourceName }

// Package scheduler drives periodic cache warming: one recurring job per
// enabled source on a shared bounded worker pool.
//
// Per-job policy: overlapping fires of the same job coalesce into the run
// already in flight, at most one instance of a job runs at a time, and a
// fire that could not start within the misfire grace window is skipped
// rather than run late.
package scheduler

import (
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"prewarmd/internal/config"
	logx "prewarmd/pkg/logx"
)

type Service struct {
	log  logx.Logger
	warm WarmFunc

	workers int
	grace   time.Duration
	// permits bounds cross-job concurrency; each job body holds one permit
	// while its warm call runs.
	permits chan struct{}

	mu      sync.Mutex
	c       *cron.Cron
	jobs    map[string]*jobDef // keyed by source name
	running bool
	stopCh  chan struct{}
}

func New(cfg Config, warm WarmFunc, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	grace := cfg.MisfireGrace
	if grace <= 0 {
		grace = MisfireGrace
	}
	s := &Service{
		log:     log,
		warm:    warm,
		workers: workers,
		grace:   grace,
		permits: make(chan struct{}, workers),
		c:       cron.New(),
		jobs:    make(map[string]*jobDef),
	}
	log.Info("task scheduler initialized", logx.Int("workers", workers))
	return s
}

// AddJob schedules a recurring warm job for the source. If a job for the
// same source name exists it is replaced (idempotent upsert), keeping the
// most recently added configuration. Safe to call before Start; the trigger
// only starts firing once the engine runs.
func (s *Service) AddJob(src config.SourceConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.jobs[src.Name]; ok {
		s.log.Warn("job already exists, replacing", logx.String("job", JobID(src.Name)))
		s.c.Remove(old.entryID)
		delete(s.jobs, src.Name)
	}

	d := &jobDef{src: src, state: &runState{}}
	interval := time.Duration(src.IntervalMinutes) * time.Minute
	d.entryID = s.c.Schedule(cron.Every(interval), cron.FuncJob(func() { s.runJob(d, time.Now()) }))
	s.jobs[src.Name] = d

	s.log.Info("job added",
		logx.String("job", JobID(src.Name)), logx.Int("interval_minutes", src.IntervalMinutes))
}

// RemoveJob unschedules the source's job. Removing a job that does not exist
// is a warning, not an error.
func (s *Service) RemoveJob(sourceName string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.jobs[sourceName]
	if !ok {
		s.log.Warn("no job to remove", logx.String("job", JobID(sourceName)))
		return
	}
	s.c.Remove(d.entryID)
	delete(s.jobs, sourceName)
	s.log.Info("job removed", logx.String("job", JobID(sourceName)))
}

// Start begins firing triggers. Calling Start while running is a no-op with
// a warning.
func (s *Service) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.log.Warn("scheduler is already running")
		return
	}
	s.stopCh = make(chan struct{})
	s.c.Start()
	s.running = true
	s.log.Info("scheduler started", logx.Int("jobs", len(s.jobs)))
}

// Shutdown stops the trigger engine. With wait=true it blocks until
// in-flight jobs finish; with wait=false it returns immediately and jobs
// drain in the background. Calling Shutdown while stopped is a no-op with a
// warning.
func (s *Service) Shutdown(wait bool) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		s.log.Warn("scheduler is not running")
		return
	}
	s.running = false
	close(s.stopCh)
	c := s.c
	s.mu.Unlock()

	// cron's stop context completes when all running jobs have returned.
	done := c.Stop()
	if wait {
		<-done.Done()
	}
	s.log.Info("scheduler shut down", logx.Bool("waited", wait))
}

// Running reports whether the trigger engine is firing.
func (s *Service) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// runJob is the body of every scheduled job; fired is when the trigger
// went off. It never lets a failure escape: warm errors are already
// converted to results, and anything else (including panics) is caught and
// logged so the engine keeps running.
func (s *Service) runJob(d *jobDef, fired time.Time) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("job wrapper error",
				logx.String("source", d.src.Name), logx.Any("panic", r),
				logx.String("stack", string(debug.Stack())))
		}
	}()

	// Coalesce: a fire while the previous run is still going is dropped.
	if !d.state.tryAcquire() {
		s.log.Debug("job skipped: previous run still in flight", logx.String("job", JobID(d.src.Name)))
		return
	}
	defer d.state.release()

	s.mu.Lock()
	stopCh := s.stopCh
	s.mu.Unlock()
	if stopCh == nil {
		return
	}

	// Wait for a shared worker slot, bailing out on shutdown.
	select {
	case s.permits <- struct{}{}:
	case <-stopCh:
		s.log.Debug("job skipped: scheduler stopping", logx.String("job", JobID(d.src.Name)))
		return
	}
	defer func() { <-s.permits }()

	// Misfire: if the pool was saturated past the grace window, skip this
	// firing rather than run it late.
	if late := time.Since(fired); late > s.grace {
		s.log.Warn("job skipped: missed grace window",
			logx.String("job", JobID(d.src.Name)), logx.Duration("late", late))
		return
	}

	result := s.warm(d.src)
	if result.Success {
		s.log.Info("scheduled job completed", logx.String("result", result.String()))
	} else {
		s.log.Error("scheduled job failed", logx.String("result", result.String()))
	}
}

// triggerDescription renders a human-readable trigger for introspection.
func triggerDescription(intervalMinutes int) string {
	return fmt.Sprintf("every %d minutes", intervalMinutes)
}

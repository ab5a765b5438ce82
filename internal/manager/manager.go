// Package manager owns the scheduler lifecycle: it loads config, builds the
// warmer, scheduler, and metrics collector, runs the initial warm pass, and
// exposes status, reload, and stop.
//
// Start, Stop, and ReloadConfig serialize on an internal control mutex, so
// a config watcher and a shutdown path may invoke them from different
// goroutines. GetStatus may be called from anywhere.
package manager

import (
	"strings"
	"sync"

	"prewarmd/internal/cache"
	"prewarmd/internal/config"
	"prewarmd/internal/metrics"
	"prewarmd/internal/services/scheduler"
	"prewarmd/internal/tools"
	"prewarmd/internal/warmer"
	logx "prewarmd/pkg/logx"
)

// RegistryResolver supplies the tool registry when none was injected.
type RegistryResolver func() ([]tools.Tool, error)

// ResultObserver sees every warm result after it has been recorded. It must
// not block; the scheduler worker is waiting.
type ResultObserver func(warmer.WarmResult)

type Manager struct {
	configPath string
	log        logx.Logger

	registry   []tools.Tool
	resolver   RegistryResolver
	warmerOpts []warmer.Option
	observers  []ResultObserver
	schedCfg   scheduler.Config

	collector *metrics.Collector

	// ctl serializes Start, Stop, and ReloadConfig against each other.
	ctl sync.Mutex

	// mu guards the fields below for GetStatus.
	mu      sync.Mutex
	sched   *scheduler.Service
	running bool
}

type Option func(*Manager)

// WithRegistry injects the tool registry. The registry is borrowed, not
// owned; it must outlive the manager.
func WithRegistry(reg []tools.Tool) Option {
	return func(m *Manager) { m.registry = reg }
}

// WithRegistryResolver overrides how the default registry is built when none
// was injected.
func WithRegistryResolver(fn RegistryResolver) Option {
	return func(m *Manager) { m.resolver = fn }
}

// WithWarmerOptions forwards options to the CacheWarmer built on Start.
func WithWarmerOptions(opts ...warmer.Option) Option {
	return func(m *Manager) { m.warmerOpts = append(m.warmerOpts, opts...) }
}

// WithResultObserver registers an observer for every warm result.
func WithResultObserver(fn ResultObserver) Option {
	return func(m *Manager) {
		if fn != nil {
			m.observers = append(m.observers, fn)
		}
	}
}

// WithSchedulerConfig overrides scheduler tuning (worker pool size).
func WithSchedulerConfig(cfg scheduler.Config) Option {
	return func(m *Manager) { m.schedCfg = cfg }
}

func New(configPath string, log logx.Logger, opts ...Option) *Manager {
	if log.IsZero() {
		log = logx.Nop()
	}
	m := &Manager{
		configPath: configPath,
		log:        log,
		collector:  metrics.NewCollector(),
	}
	for _, opt := range opts {
		opt(m)
	}
	log.Info("scheduler manager initialized")
	return m
}

// Metrics exposes the collector (status queries, tests).
func (m *Manager) Metrics() *metrics.Collector { return m.collector }

func (m *Manager) resolveRegistry() ([]tools.Tool, error) {
	if m.registry != nil {
		return m.registry, nil
	}
	if m.resolver != nil {
		return m.resolver()
	}
	// Default: builtin tools over a throwaway in-memory store. Deployments
	// that want a durable cache inject a registry built over it.
	store, err := cache.Open(cache.Config{}, m.log)
	if err != nil {
		return nil, err
	}
	return tools.Builtin(store, m.log), nil
}

// Start loads config and brings the scheduler up. Initialization failure is
// logged, never returned: the manager simply stays stopped.
func (m *Manager) Start() {
	m.ctl.Lock()
	defer m.ctl.Unlock()

	if m.isRunning() {
		m.log.Warn("scheduler is already running")
		return
	}

	m.log.Info("starting scheduler")
	if !m.initializeComponents() {
		m.log.Error("failed to initialize scheduler, will not start")
		return
	}

	m.setRunning(true)
	m.log.Info("scheduler started successfully")
}

// initializeComponents builds config/warmer/scheduler, registers jobs,
// starts the engine, and runs the initial warm pass. Any failure leaves the
// manager stopped.
func (m *Manager) initializeComponents() bool {
	loader := config.NewLoader(m.configPath, m.log)
	sources, err := loader.Load()
	if err != nil {
		m.log.Error("config load failed", logx.Err(err))
		return false
	}
	if len(sources) == 0 {
		m.log.Warn("no sources configured, scheduler will not schedule any jobs")
		return false
	}
	enabled := loader.GetEnabledSources()
	if len(enabled) == 0 {
		m.log.Warn("no enabled sources configured, scheduler will not start")
		return false
	}

	registry, err := m.resolveRegistry()
	if err != nil {
		m.log.Error("failed to resolve tool registry", logx.Err(err))
		return false
	}

	w := warmer.New(registry, m.log, m.warmerOpts...)
	if w.Tools() == 0 {
		m.log.Error("no tools available, cannot initialize scheduler")
		return false
	}

	// Wrap the sync warm entrypoint so every result flows into metrics (and
	// observers) without being altered.
	warm := func(src config.SourceConfig) warmer.WarmResult {
		result := w.WarmSourceSync(src)
		m.collector.RecordWarmResult(result)
		for _, obs := range m.observers {
			obs(result)
		}
		return result
	}

	sched := scheduler.New(m.schedCfg, warm, m.log)

	m.log.Info("scheduling enabled sources", logx.Int("count", len(enabled)))
	for _, src := range enabled {
		sched.AddJob(src)
	}

	// Start the engine first; the initial warm pass is a distinct step so a
	// slow pass never delays the periodic triggers from being armed.
	sched.Start()

	m.log.Info("running initial cache warming for all sources")
	for _, src := range enabled {
		m.log.Info("starting initial warm", logx.String("source", src.Name))
		result := warm(src)
		if result.Success {
			m.log.Info("initial warm completed", logx.String("result", result.String()))
		} else {
			m.log.Error("initial warm failed", logx.String("result", result.String()))
		}
	}

	m.mu.Lock()
	m.sched = sched
	m.mu.Unlock()
	return true
}

// Stop shuts the engine down, waiting for in-flight jobs. Errors are logged,
// not raised; stopping a stopped manager only warns.
func (m *Manager) Stop() {
	m.ctl.Lock()
	defer m.ctl.Unlock()

	if !m.isRunning() {
		m.log.Warn("scheduler is not running")
		return
	}

	m.log.Info("stopping scheduler")
	m.mu.Lock()
	sched := m.sched
	m.mu.Unlock()
	if sched != nil {
		sched.Shutdown(true)
	}
	m.setRunning(false)
	m.log.Info("scheduler stopped successfully")
}

// ReloadConfig loads a fresh config generation and reschedules in place:
// jobs for sources that disappeared or were disabled are removed, jobs for
// the new enabled set are added or replaced, then the new config becomes
// current. The engine is never left with stale jobs.
func (m *Manager) ReloadConfig() {
	m.ctl.Lock()
	defer m.ctl.Unlock()

	if !m.isRunning() {
		m.log.Warn("scheduler is not running, cannot reload config")
		return
	}

	m.log.Info("reloading scheduler configuration")

	newLoader := config.NewLoader(m.configPath, m.log)
	if _, err := newLoader.Load(); err != nil {
		m.log.Error("failed to reload configuration", logx.Err(err))
		return
	}

	m.mu.Lock()
	sched := m.sched
	m.mu.Unlock()
	if sched == nil {
		m.log.Error("task scheduler not initialized")
		return
	}

	currentIDs := make(map[string]struct{})
	for _, j := range sched.Jobs() {
		currentIDs[j.ID] = struct{}{}
	}

	newEnabled := newLoader.GetEnabledSources()
	newIDs := make(map[string]struct{}, len(newEnabled))
	for _, src := range newEnabled {
		newIDs[scheduler.JobID(src.Name)] = struct{}{}
	}

	for id := range currentIDs {
		if _, keep := newIDs[id]; !keep {
			sched.RemoveJob(strings.TrimPrefix(id, scheduler.JobIDPrefix))
		}
	}
	for _, src := range newEnabled {
		sched.AddJob(src)
	}

	m.log.Info("configuration reloaded", logx.Int("sources_scheduled", len(newEnabled)))
}

func (m *Manager) isRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Manager) setRunning(v bool) {
	m.mu.Lock()
	m.running = v
	m.mu.Unlock()
}

package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	logx "prewarmd/pkg/logx"
)

// DefaultConfigLocations are tried in order when neither an explicit path nor
// the environment variable resolves to a file.
var DefaultConfigLocations = []string{
	"prewarm_config.json",
	"config/prewarm_config.json",
	"~/.config/prewarmd/prewarm_config.json",
}

// Loader reads and holds one generation of scheduler configuration.
//
// The manager builds a fresh Loader per load so a failed reload can never
// corrupt the active generation.
type Loader struct {
	path string // explicit path; empty means "discover"
	log  logx.Logger

	mu              sync.RWMutex
	sources         []SourceConfig
	daemon          DaemonConfig
	defaultInterval int
	resolved        string
}

func NewLoader(path string, log logx.Logger) *Loader {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Loader{path: path, log: log, defaultInterval: DefaultIntervalMinutes}
}

// findConfigFile resolves a config file when no explicit path was given:
// environment variable first, then the default locations. Returns "" when
// nothing exists.
func (l *Loader) findConfigFile() string {
	if env := os.Getenv(EnvConfigPath); env != "" {
		if fileExists(env) {
			return env
		}
		l.log.Warn("config path from env var not found", logx.String("path", env))
	}
	for _, loc := range DefaultConfigLocations {
		p := expandHome(loc)
		if fileExists(p) {
			return p
		}
	}
	return ""
}

// Load reads, validates, and commits the source list.
//
// An explicitly-given path that does not exist, or a file that does not
// parse, fails the whole load: running on unknown config is unsafe. An
// invalid source entry only skips that entry.
func (l *Loader) Load() ([]SourceConfig, error) {
	var file string
	if l.path != "" {
		if !fileExists(l.path) {
			l.log.Error("specified config file not found", logx.String("path", l.path))
			return nil, fmt.Errorf("config file not found: %s", l.path)
		}
		file = l.path
	} else {
		file = l.findConfigFile()
	}

	if file == "" {
		l.log.Info("no config file found, using empty default configuration")
		l.commit(nil, DaemonConfig{}, DefaultIntervalMinutes, "")
		return nil, nil
	}

	l.log.Info("loading scheduler config", logx.String("path", file))
	sources, daemon, defIv, err := l.loadFromFile(file)
	if err != nil {
		return nil, err
	}
	l.commit(sources, daemon, defIv, file)
	return sources, nil
}

func (l *Loader) loadFromFile(path string) ([]SourceConfig, DaemonConfig, int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, DaemonConfig{}, 0, fmt.Errorf("read config: %w", err)
	}
	jb, _, err := coerceToJSONBytes(path, b)
	if err != nil {
		return nil, DaemonConfig{}, 0, err
	}

	var fc fileConfig
	dec := json.NewDecoder(bytes.NewReader(jb))
	if err := dec.Decode(&fc); err != nil {
		return nil, DaemonConfig{}, 0, fmt.Errorf("invalid config JSON: %w", err)
	}
	// reject trailing tokens (e.g. concatenated JSON)
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return nil, DaemonConfig{}, 0, fmt.Errorf("invalid config: trailing data")
		}
		return nil, DaemonConfig{}, 0, err
	}

	defIv := fc.DefaultIntervalMinutes
	if defIv <= 0 {
		defIv = DefaultIntervalMinutes
	}

	sources := make([]SourceConfig, 0, len(fc.Sources))
	for _, e := range fc.Sources {
		src := SourceConfig{
			Name:            e.Name,
			ToolName:        e.ToolName,
			Enabled:         true,
			IntervalMinutes: defIv,
			ToolParams:      e.ToolParams,
		}
		if e.Enabled != nil {
			src.Enabled = *e.Enabled
		}
		if e.IntervalMinutes != nil {
			src.IntervalMinutes = *e.IntervalMinutes
		}
		if err := src.Validate(); err != nil {
			l.log.Error("invalid source configuration; skipping",
				logx.String("source", e.Name), logx.Err(err))
			continue
		}
		if src.IntervalMinutes > longIntervalMinutes {
			l.log.Warn("source has very long interval",
				logx.String("source", src.Name), logx.Int("interval_minutes", src.IntervalMinutes))
		}
		sources = append(sources, src)
	}

	var daemon DaemonConfig
	if fc.Daemon != nil {
		daemon = *fc.Daemon
	}

	l.log.Info("loaded source configurations", logx.Int("count", len(sources)))
	return sources, daemon, defIv, nil
}

func (l *Loader) commit(sources []SourceConfig, daemon DaemonConfig, defIv int, resolved string) {
	l.mu.Lock()
	l.sources = sources
	l.daemon = daemon
	l.defaultInterval = defIv
	l.resolved = resolved
	l.mu.Unlock()
}

// ResolvedPath returns the file the last Load actually read, or "" when the
// empty default was used. Watchers use this to observe the right file.
func (l *Loader) ResolvedPath() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.resolved
}

// GetEnabledSources returns the enabled subset of the loaded list, in input order.
func (l *Loader) GetEnabledSources() []SourceConfig {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]SourceConfig, 0, len(l.sources))
	for _, s := range l.sources {
		if s.Enabled {
			out = append(out, s)
		}
	}
	return out
}

// GetAllSources returns a copy of the loaded list (enabled and disabled).
func (l *Loader) GetAllSources() []SourceConfig {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]SourceConfig, len(l.sources))
	copy(out, l.sources)
	return out
}

// Daemon returns the daemon block from the last successful Load.
func (l *Loader) Daemon() DaemonConfig {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.daemon
}

func fileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}

func expandHome(path string) string {
	if path == "~" {
		home, _ := os.UserHomeDir()
		return home
	}
	if len(path) > 1 && path[0] == '~' && path[1] == '/' {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

package config

import (
	"errors"
	"fmt"
)

// DefaultIntervalMinutes is used when a source (and the file) omit the interval.
const DefaultIntervalMinutes = 25

// EnvConfigPath names a config file location; checked after an explicit path
// and before the default locations.
const EnvConfigPath = "PREWARMD_CONFIG_PATH"

// longIntervalMinutes marks intervals worth flagging (longer than a day).
const longIntervalMinutes = 1440

// SourceConfig describes one data source to keep warm.
//
// A source is immutable for the life of a scheduler run; reloads replace the
// whole list.
type SourceConfig struct {
	Name            string         `json:"name"`
	ToolName        string         `json:"tool_name"`
	Enabled         bool           `json:"enabled"`
	IntervalMinutes int            `json:"interval_minutes"`
	ToolParams      map[string]any `json:"tool_params,omitempty"`
}

// Validate rejects sources that must never be scheduled. Loaders call this
// before accepting an entry so bad sources cannot be built.
func (s SourceConfig) Validate() error {
	if s.Name == "" {
		return errors.New("source name cannot be empty")
	}
	if s.ToolName == "" {
		return errors.New("tool name cannot be empty")
	}
	if s.IntervalMinutes < 1 {
		return fmt.Errorf("interval must be at least 1 minute, got %d", s.IntervalMinutes)
	}
	return nil
}

// DaemonConfig is the optional "daemon" block of the config file. It tunes
// the process around the scheduler (logging, cache store, alerting, pprof)
// and never affects which sources are scheduled.
type DaemonConfig struct {
	Logging LoggingConfig `json:"logging"`
	Cache   CacheConfig   `json:"cache"`
	Warmer  WarmerConfig  `json:"warmer"`
	Alert   AlertConfig   `json:"alert"`
	Pprof   PprofConfig   `json:"pprof"`
}

type LoggingConfig struct {
	Level   string        `json:"level,omitempty"`
	Console *bool         `json:"console,omitempty"`
	File    LogFileConfig `json:"file"`
}

type LogFileConfig struct {
	Enabled bool   `json:"enabled,omitempty"`
	Path    string `json:"path,omitempty"`
}

// ConsoleEnabled defaults to true when the field is omitted.
func (l LoggingConfig) ConsoleEnabled() bool {
	if l.Console == nil {
		return true
	}
	return *l.Console
}

// CacheConfig selects the store builtin tools write into.
//
// Driver values:
//   - "" or "memory": in-process map (data is lost on restart)
//   - "sqlite": SQLite database file
type CacheConfig struct {
	Driver string `json:"driver,omitempty"`
	Path   string `json:"path,omitempty"`
}

// WarmerConfig caps how fast warm runs may invoke tools, shared across all
// sources. Useful when many sources hit the same upstream.
type WarmerConfig struct {
	// RatePerSec is the sustained invocation rate; 0 disables the limit.
	RatePerSec float64 `json:"rate_per_sec,omitempty"`
	// Burst is the limiter burst size; 0 means 1.
	Burst int `json:"burst,omitempty"`
}

type AlertConfig struct {
	Enabled bool   `json:"enabled,omitempty"`
	Token   string `json:"token,omitempty"`
	ChatID  int64  `json:"chat_id,omitempty"`

	// ConsecutiveFailures is how many warm failures in a row trigger an
	// alert for a source. 0 means the default of 3.
	ConsecutiveFailures int `json:"consecutive_failures,omitempty"`

	// RatePerMin caps outgoing alert messages. 0 means the default of 6.
	RatePerMin int `json:"rate_per_min,omitempty"`
}

type PprofConfig struct {
	Enabled bool   `json:"enabled,omitempty"`
	Addr    string `json:"addr,omitempty"`
}

// fileConfig is the on-disk shape of the whole config file.
type fileConfig struct {
	DefaultIntervalMinutes int           `json:"default_interval_minutes"`
	Sources                []sourceEntry `json:"sources"`
	Daemon                 *DaemonConfig `json:"daemon,omitempty"`
}

// sourceEntry is a raw source row before defaulting and validation.
// Pointer fields distinguish "omitted" from explicit zero values.
type sourceEntry struct {
	Name            string         `json:"name"`
	ToolName        string         `json:"tool_name"`
	Enabled         *bool          `json:"enabled,omitempty"`
	IntervalMinutes *int           `json:"interval_minutes,omitempty"`
	ToolParams      map[string]any `json:"tool_params,omitempty"`
}

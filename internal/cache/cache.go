package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	logx "prewarmd/pkg/logx"
)

var ErrClosed = errors.New("cache closed")

// Config configures the cache store.
//
// Driver values:
//   - "" or "memory": in-process map, lost on restart
//   - "sqlite", "sqlite3": SQLite database file
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Entry is one cached payload for a source.
type Entry struct {
	Key       string
	Payload   []byte
	Items     int
	FetchedAt time.Time
}

// Store is the key-value surface the builtin tools populate. Keys are
// "source/<name>"; payloads are whatever the tool marshaled.
type Store interface {
	Put(ctx context.Context, e Entry) error
	Get(ctx context.Context, key string) (Entry, bool, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", "memory":
		return newMemoryStore(), nil
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown cache driver: " + driver)
	}
}

// Key returns the canonical cache key for a source name.
func Key(sourceName string) string { return "source/" + sourceName }

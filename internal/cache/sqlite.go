package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	logx "prewarmd/pkg/logx"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS cache_entries (
    key        TEXT PRIMARY KEY,
    payload    BLOB NOT NULL,
    items      INTEGER NOT NULL DEFAULT 0,
    fetched_at TEXT NOT NULL
);
`

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite cache path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if _, err := db.ExecContext(context.Background(), sqliteSchema); err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Debug("sqlite cache opened", logx.String("path", path))
	return &sqliteStore{db: db, log: log}, nil
}

func (s *sqliteStore) Put(ctx context.Context, e Entry) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	if e.FetchedAt.IsZero() {
		e.FetchedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cache_entries(key, payload, items, fetched_at) VALUES(?,?,?,?)
		 ON CONFLICT(key) DO UPDATE SET payload=excluded.payload, items=excluded.items, fetched_at=excluded.fetched_at`,
		e.Key, e.Payload, e.Items, e.FetchedAt.Format(time.RFC3339Nano),
	)
	return err
}

func (s *sqliteStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	if s == nil || s.db == nil {
		return Entry{}, false, ErrClosed
	}
	var (
		e  Entry
		at string
	)
	e.Key = key
	err := s.db.QueryRowContext(ctx,
		`SELECT payload, items, fetched_at FROM cache_entries WHERE key = ?`, key,
	).Scan(&e.Payload, &e.Items, &at)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	if t, perr := time.Parse(time.RFC3339Nano, at); perr == nil {
		e.FetchedAt = t
	}
	return e, true, nil
}

func (s *sqliteStore) Count(ctx context.Context) (int, error) {
	if s == nil || s.db == nil {
		return 0, ErrClosed
	}
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cache_entries`).Scan(&n)
	return n, err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

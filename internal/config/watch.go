package config

import (
	"context"
	"hash/fnv"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	logx "prewarmd/pkg/logx"
)

// Watcher observes one config file and invokes a callback after changes
// settle. The callback runs on the watcher goroutine; keep it quick or hand
// off to another goroutine.
type Watcher struct {
	path string
	log  logx.Logger

	onChange func()

	mu       sync.Mutex
	lastHash uint64
}

func NewWatcher(path string, log logx.Logger, onChange func()) *Watcher {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Watcher{path: path, log: log, onChange: onChange}
}

// Watch blocks until ctx is done. It watches the file's directory (editors
// replace files rather than writing in place), debounces bursts of events,
// and skips callbacks when the content hash is unchanged.
//
// When fsnotify gets into a bad state the watcher is recreated with a small
// jittered exponential backoff.
func (w *Watcher) Watch(ctx context.Context) error {
	dir := filepath.Dir(w.path)
	file := filepath.Base(w.path)

	const (
		restartBackoffBase = 250 * time.Millisecond
		restartBackoffMax  = 5 * time.Second
	)
	backoff := restartBackoffBase
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	// debounce to avoid reacting to partial writes
	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	debounce := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		w.log.Debug("config change detected; scheduling reload", logx.String("path", w.path))
		timer = time.AfterFunc(250*time.Millisecond, func() {
			b, err := os.ReadFile(w.path)
			if err != nil {
				w.log.Warn("config read failed", logx.String("path", w.path), logx.Err(err))
				return
			}
			h := hashBytes(b)
			w.mu.Lock()
			unchanged := h != 0 && h == w.lastHash
			if !unchanged {
				w.lastHash = h
			}
			w.mu.Unlock()
			if unchanged {
				w.log.Debug("config unchanged; skipping reload", logx.String("path", w.path))
				return
			}
			if w.onChange != nil {
				w.onChange()
			}
		})
	}

	sleep := func(wait time.Duration) bool {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(wait):
			return true
		}
	}
	nextBackoff := func() time.Duration {
		wait := backoff + time.Duration(rng.Int63n(int64(backoff/2)+1))
		if backoff < restartBackoffMax {
			backoff *= 2
			if backoff > restartBackoffMax {
				backoff = restartBackoffMax
			}
		}
		return wait
	}

	for {
		if ctx.Err() != nil {
			return nil
		}

		fw, err := fsnotify.NewWatcher()
		if err != nil {
			w.log.Warn("config watch init failed", logx.Err(err), logx.String("dir", dir))
			if !sleep(nextBackoff()) {
				return nil
			}
			continue
		}
		if err := fw.Add(dir); err != nil {
			_ = fw.Close()
			w.log.Warn("config watch add failed", logx.Err(err), logx.String("dir", dir))
			if !sleep(nextBackoff()) {
				return nil
			}
			continue
		}

		// success; reset backoff so transient issues don't cause long restart delays
		backoff = restartBackoffBase
		w.log.Debug("config watcher started", logx.String("dir", dir), logx.String("file", file))

		broken := false
		for !broken {
			select {
			case <-ctx.Done():
				_ = fw.Close()
				return nil
			case ev, ok := <-fw.Events:
				if !ok {
					broken = true
					break
				}
				// Compare by basename (robust across absolute/relative paths and OS quirks).
				if strings.EqualFold(filepath.Base(ev.Name), file) {
					if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove|fsnotify.Chmod) != 0 {
						debounce()
					}
				}
			case err, ok := <-fw.Errors:
				if !ok {
					broken = true
					break
				}
				if err == nil {
					continue
				}
				// Overflow means we may have missed events; reload once and keep going.
				if strings.Contains(strings.ToLower(err.Error()), "overflow") {
					w.log.Warn("config watch overflow; forcing reload", logx.Err(err))
					debounce()
					continue
				}
				w.log.Warn("config watch error", logx.Err(err), logx.String("dir", dir))
				if strings.Contains(strings.ToLower(err.Error()), "closed") {
					broken = true
					break
				}
			}
		}

		_ = fw.Close()
		if ctx.Err() != nil {
			return nil
		}
		wait := nextBackoff()
		w.log.Warn("config watcher stopped; restarting",
			logx.String("dir", dir), logx.Duration("backoff", wait))
		if !sleep(wait) {
			return nil
		}
	}
}

func hashBytes(b []byte) uint64 {
	h := fnv.New64a()
	_, _ = h.Write(b)
	return h.Sum64()
}

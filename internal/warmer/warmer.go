// Package warmer executes fetch tools ahead of demand and reports structured
// results. Invocation failures never propagate out of a warm call; they come
// back as failed WarmResults so one bad source cannot take down the scheduler.
package warmer

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"golang.org/x/time/rate"

	"prewarmd/internal/config"
	"prewarmd/internal/tools"
	logx "prewarmd/pkg/logx"
)

// CacheWarmer resolves tools by name and runs timed warm attempts.
type CacheWarmer struct {
	toolMap map[string]tools.Tool

	// limiter smooths fetch bursts (mostly the initial warm pass); nil
	// means unlimited.
	limiter *rate.Limiter

	log logx.Logger
}

type Option func(*CacheWarmer)

// WithRateLimit caps tool invocations at perSec with the given burst.
func WithRateLimit(perSec float64, burst int) Option {
	return func(w *CacheWarmer) {
		if perSec > 0 {
			if burst < 1 {
				burst = 1
			}
			w.limiter = rate.NewLimiter(rate.Limit(perSec), burst)
		}
	}
}

// New builds a warmer over the given registry. Later tools win on name
// collision, matching map semantics a registry caller would expect.
func New(registry []tools.Tool, log logx.Logger, opts ...Option) *CacheWarmer {
	if log.IsZero() {
		log = logx.Nop()
	}
	w := &CacheWarmer{
		toolMap: make(map[string]tools.Tool, len(registry)),
		log:     log,
	}
	for _, t := range registry {
		if t != nil {
			w.toolMap[t.Name()] = t
		}
	}
	for _, opt := range opts {
		opt(w)
	}
	log.Info("cache warmer initialized", logx.Int("tools", len(w.toolMap)))
	return w
}

// Tools returns the number of registered tools.
func (w *CacheWarmer) Tools() int { return len(w.toolMap) }

// WarmSource fetches data for a single source. It never returns an error:
// tool-not-found, invocation failures, and tool panics all come back as a
// failed WarmResult with the message preserved for diagnostics.
func (w *CacheWarmer) WarmSource(ctx context.Context, src config.SourceConfig) WarmResult {
	start := time.Now()
	ts := start

	tool, ok := w.toolMap[src.ToolName]
	if !ok {
		errMsg := fmt.Sprintf("tool not found: %s", src.ToolName)
		w.log.Error("warm failed", logx.String("source", src.Name), logx.String("reason", errMsg))
		return WarmResult{
			SourceName:      src.Name,
			Success:         false,
			Timestamp:       ts,
			DurationSeconds: time.Since(start).Seconds(),
			ErrorMessage:    errMsg,
		}
	}

	if w.limiter != nil {
		if err := w.limiter.Wait(ctx); err != nil {
			return WarmResult{
				SourceName:      src.Name,
				Success:         false,
				Timestamp:       ts,
				DurationSeconds: time.Since(start).Seconds(),
				ErrorMessage:    err.Error(),
			}
		}
	}

	w.log.Info("warming cache", logx.String("source", src.Name), logx.String("tool", src.ToolName))

	value, err := invoke(ctx, tool, src.ToolParams)
	duration := time.Since(start)
	if err != nil {
		w.log.Error("failed to warm cache",
			logx.String("source", src.Name), logx.Err(err), logx.Duration("took", duration))
		return WarmResult{
			SourceName:      src.Name,
			Success:         false,
			Timestamp:       ts,
			DurationSeconds: duration.Seconds(),
			ErrorMessage:    err.Error(),
		}
	}

	items := countItems(value)
	w.log.Info("cache warmed",
		logx.String("source", src.Name), logx.Int("items", items), logx.Duration("took", duration))
	return WarmResult{
		SourceName:      src.Name,
		Success:         true,
		Timestamp:       ts,
		DurationSeconds: duration.Seconds(),
		ItemsCached:     items,
	}
}

// WarmSourceSync runs a warm attempt to completion on a fresh background
// context, so it is safe to call from any scheduler worker without sharing
// state with concurrently running warms. It adds one more catch level: a
// panic escaping even the setup path becomes a failed WarmResult.
func (w *CacheWarmer) WarmSourceSync(src config.SourceConfig) (res WarmResult) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("sync wrapper error", logx.String("source", src.Name), logx.Any("panic", r))
			res = WarmResult{
				SourceName:   src.Name,
				Success:      false,
				Timestamp:    time.Now(),
				ErrorMessage: fmt.Sprintf("sync wrapper error: %v", r),
			}
		}
	}()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	return w.WarmSource(ctx, src)
}

// invoke calls the tool and converts a panic into an error so a misbehaving
// fetcher cannot kill a worker.
func invoke(ctx context.Context, tool tools.Tool, params map[string]any) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tool panic: %v", r)
		}
	}()
	if params == nil {
		params = map[string]any{}
	}
	return tool.Fetch(ctx, params)
}

// countItems mirrors the warm contract: list-like values count per element,
// anything else counts as one cached value.
func countItems(v any) int {
	if v == nil {
		return 1
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return rv.Len()
	default:
		return 1
	}
}

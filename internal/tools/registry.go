package tools

import (
	"net/http"
	"time"

	"prewarmd/internal/cache"
	logx "prewarmd/pkg/logx"
)

// Builtin returns the default tool registry: the fetchers shipped with the
// daemon, all writing into the given cache store. This is what the manager
// falls back to when no registry is injected.
func Builtin(store cache.Store, log logx.Logger) []Tool {
	client := &http.Client{Timeout: 30 * time.Second}
	return []Tool{
		NewFeedTool(store, client, log),
		NewHackerNewsTool(store, client, log),
	}
}

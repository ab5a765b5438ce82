package tools

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"prewarmd/internal/cache"
	logx "prewarmd/pkg/logx"
)

// FeedItem is the cached shape of one RSS/Atom entry.
type FeedItem struct {
	Title     string    `json:"title"`
	Link      string    `json:"link"`
	Published time.Time `json:"published,omitempty"`
	Summary   string    `json:"summary,omitempty"`
}

// FeedTool fetches an RSS/Atom feed and caches its entries.
//
// Params:
//   - url (string, required): feed URL
//   - limit (int, optional): max entries to keep, default 50
//   - cache_key (string, optional): override for the cache key; defaults to
//     "source/<url>"
type FeedTool struct {
	store  cache.Store
	parser *gofeed.Parser
	log    logx.Logger
}

func NewFeedTool(store cache.Store, client *http.Client, log logx.Logger) *FeedTool {
	p := gofeed.NewParser()
	if client != nil {
		p.Client = client
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &FeedTool{store: store, parser: p, log: log.With(logx.String("tool", "feeds"))}
}

func (t *FeedTool) Name() string { return "feeds" }

func (t *FeedTool) Fetch(ctx context.Context, params map[string]any) (any, error) {
	url, err := StringParam(params, "url", "")
	if err != nil {
		return nil, err
	}
	if url == "" {
		return nil, errors.New("feeds: url param is required")
	}
	limit, err := IntParam(params, "limit", 50)
	if err != nil {
		return nil, err
	}
	key, err := StringParam(params, "cache_key", cache.Key(url))
	if err != nil {
		return nil, err
	}

	feed, err := t.parser.ParseURLWithContext(url, ctx)
	if err != nil {
		return nil, err
	}

	items := make([]FeedItem, 0, len(feed.Items))
	for _, it := range feed.Items {
		if limit > 0 && len(items) >= limit {
			break
		}
		fi := FeedItem{Title: it.Title, Link: it.Link, Summary: it.Description}
		if it.PublishedParsed != nil {
			fi.Published = *it.PublishedParsed
		}
		items = append(items, fi)
	}

	if t.store != nil {
		payload, merr := json.Marshal(items)
		if merr != nil {
			return nil, merr
		}
		e := cache.Entry{Key: key, Payload: payload, Items: len(items), FetchedAt: time.Now()}
		if perr := t.store.Put(ctx, e); perr != nil {
			return nil, perr
		}
	}

	t.log.Debug("feed fetched", logx.String("url", url), logx.Int("items", len(items)))
	return items, nil
}

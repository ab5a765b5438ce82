package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"prewarmd/internal/cache"
	logx "prewarmd/pkg/logx"
)

const (
	hnBaseURL       = "https://hacker-news.firebaseio.com/v0"
	hnMaxConcurrent = 10
)

// HNStory is one Hacker News story from the Firebase API.
type HNStory struct {
	ID    int    `json:"id"`
	Type  string `json:"type"`
	Title string `json:"title"`
	URL   string `json:"url"`
	By    string `json:"by"`
	Time  int64  `json:"time"`
	Score int    `json:"score"`
}

// HackerNewsTool fetches a Hacker News story list and caches it.
//
// Params:
//   - endpoint (string, optional): "topstories" (default), "beststories",
//     or "newstories"
//   - limit (int, optional): max stories, default 30
type HackerNewsTool struct {
	store   cache.Store
	client  *http.Client
	log     logx.Logger
	baseURL string
}

func NewHackerNewsTool(store cache.Store, client *http.Client, log logx.Logger) *HackerNewsTool {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &HackerNewsTool{
		store:   store,
		client:  client,
		log:     log.With(logx.String("tool", "hackernews")),
		baseURL: hnBaseURL,
	}
}

func (t *HackerNewsTool) Name() string { return "hackernews" }

func (t *HackerNewsTool) Fetch(ctx context.Context, params map[string]any) (any, error) {
	endpoint, err := StringParam(params, "endpoint", "topstories")
	if err != nil {
		return nil, err
	}
	switch endpoint {
	case "topstories", "beststories", "newstories":
	default:
		return nil, fmt.Errorf("hackernews: unknown endpoint %q", endpoint)
	}
	limit, err := IntParam(params, "limit", 30)
	if err != nil {
		return nil, err
	}

	ids, err := t.fetchIDs(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}

	stories := t.fetchStories(ctx, ids)

	if t.store != nil {
		payload, merr := json.Marshal(stories)
		if merr != nil {
			return nil, merr
		}
		e := cache.Entry{Key: cache.Key("hackernews/" + endpoint), Payload: payload, Items: len(stories), FetchedAt: time.Now()}
		if perr := t.store.Put(ctx, e); perr != nil {
			return nil, perr
		}
	}

	t.log.Debug("stories fetched", logx.String("endpoint", endpoint), logx.Int("items", len(stories)))
	return stories, nil
}

func (t *HackerNewsTool) fetchIDs(ctx context.Context, endpoint string) ([]int, error) {
	var ids []int
	if err := t.getJSON(ctx, fmt.Sprintf("%s/%s.json", t.baseURL, endpoint), &ids); err != nil {
		return nil, fmt.Errorf("hackernews: fetch %s: %w", endpoint, err)
	}
	return ids, nil
}

// fetchStories fetches stories in parallel with a fixed concurrency cap.
// Individual story failures are dropped, not fatal; order follows the id list.
func (t *HackerNewsTool) fetchStories(ctx context.Context, ids []int) []HNStory {
	results := make([]*HNStory, len(ids))
	sem := make(chan struct{}, hnMaxConcurrent)
	var wg sync.WaitGroup

	for i, id := range ids {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		go func(slot, id int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			var s HNStory
			if err := t.getJSON(ctx, fmt.Sprintf("%s/item/%d.json", t.baseURL, id), &s); err != nil {
				t.log.Debug("story fetch failed", logx.Int("id", id), logx.Err(err))
				return
			}
			if s.Type == "story" && s.Title != "" {
				results[slot] = &s
			}
		}(i, id)
	}
	wg.Wait()

	out := make([]HNStory, 0, len(ids))
	for _, s := range results {
		if s != nil {
			out = append(out, *s)
		}
	}
	return out
}

func (t *HackerNewsTool) getJSON(ctx context.Context, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

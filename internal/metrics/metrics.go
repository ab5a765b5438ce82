// Package metrics tracks per-source warm outcomes. The collector's table is
// the one structure shared across scheduler workers, so every read-modify-
// write goes through a single mutex.
package metrics

import (
	"sync"
	"time"

	"prewarmd/internal/warmer"
)

// record is the mutable aggregate for one source. Derived rates live only in
// snapshots.
type record struct {
	totalRuns      int
	successfulRuns int
	failedRuns     int
	totalDuration  float64
	totalItems     int

	lastSuccessTime time.Time
	lastFailureTime time.Time
	lastError       string
	lastDuration    float64
	lastItems       int
}

// Collector aggregates WarmResults.
type Collector struct {
	mu      sync.Mutex
	records map[string]*record
}

func NewCollector() *Collector {
	return &Collector{records: make(map[string]*record)}
}

// RecordWarmResult folds one result into the named source's aggregate.
// Safe for concurrent use.
func (c *Collector) RecordWarmResult(result warmer.WarmResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	r := c.records[result.SourceName]
	if r == nil {
		r = &record{}
		c.records[result.SourceName] = r
	}

	r.totalRuns++
	if result.Success {
		r.successfulRuns++
		r.lastSuccessTime = result.Timestamp
		r.totalItems += result.ItemsCached
		r.lastItems = result.ItemsCached
	} else {
		r.failedRuns++
		r.lastFailureTime = result.Timestamp
		r.lastError = result.ErrorMessage
	}
	r.totalDuration += result.DurationSeconds
	r.lastDuration = result.DurationSeconds
}

// GetSourceMetrics returns a snapshot for one source. ok is false when the
// source has never reported.
func (c *Collector) GetSourceMetrics(sourceName string) (SourceMetrics, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.records[sourceName]
	if !ok {
		return SourceMetrics{}, false
	}
	return r.snapshot(), true
}

// GetAllMetrics returns per-source snapshots plus the global summary.
// Division is guarded; an empty collector reports a 0.0 rate.
func (c *Collector) GetAllMetrics() AllMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := AllMetrics{Sources: make(map[string]SourceMetrics, len(c.records))}
	for name, r := range c.records {
		s := r.snapshot()
		out.Sources[name] = s

		out.Summary.TotalRuns += s.TotalRuns
		out.Summary.TotalSuccessful += s.SuccessfulRuns
		out.Summary.TotalFailed += s.FailedRuns
		out.Summary.TotalItemsCached += s.TotalItems
	}
	out.Summary.TotalSources = len(c.records)
	if out.Summary.TotalRuns > 0 {
		out.Summary.OverallSuccessRate = float64(out.Summary.TotalSuccessful) / float64(out.Summary.TotalRuns)
	}
	return out
}

// Reset clears one source's record, or everything when sourceName is empty.
func (c *Collector) Reset(sourceName string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if sourceName == "" {
		c.records = make(map[string]*record)
		return
	}
	delete(c.records, sourceName)
}

func (r *record) snapshot() SourceMetrics {
	s := SourceMetrics{
		TotalRuns:       r.totalRuns,
		SuccessfulRuns:  r.successfulRuns,
		FailedRuns:      r.failedRuns,
		TotalDuration:   r.totalDuration,
		TotalItems:      r.totalItems,
		LastSuccessTime: r.lastSuccessTime,
		LastFailureTime: r.lastFailureTime,
		LastError:       r.lastError,
		LastDuration:    r.lastDuration,
		LastItems:       r.lastItems,
	}
	if r.totalRuns > 0 {
		s.SuccessRate = float64(r.successfulRuns) / float64(r.totalRuns)
		s.AverageDuration = r.totalDuration / float64(r.totalRuns)
	}
	if r.successfulRuns > 0 {
		s.AverageItems = float64(r.totalItems) / float64(r.successfulRuns)
	}
	return s
}

package metrics

import "time"

// SourceMetrics is a point-in-time snapshot of one source's aggregates,
// including derived rates. Derived fields are computed on read and never
// stored.
type SourceMetrics struct {
	TotalRuns      int     `json:"total_runs"`
	SuccessfulRuns int     `json:"successful_runs"`
	FailedRuns     int     `json:"failed_runs"`
	TotalDuration  float64 `json:"total_duration"`
	TotalItems     int     `json:"total_items"`

	LastSuccessTime time.Time `json:"last_success_time,omitzero"`
	LastFailureTime time.Time `json:"last_failure_time,omitzero"`
	LastError       string    `json:"last_error,omitempty"`
	LastDuration    float64   `json:"last_duration"`
	LastItems       int       `json:"last_items"`

	SuccessRate     float64 `json:"success_rate"`
	AverageDuration float64 `json:"average_duration"`
	AverageItems    float64 `json:"average_items"`
}

// Summary aggregates across all sources.
type Summary struct {
	TotalSources       int     `json:"total_sources"`
	TotalRuns          int     `json:"total_runs"`
	TotalSuccessful    int     `json:"total_successful"`
	TotalFailed        int     `json:"total_failed"`
	TotalItemsCached   int     `json:"total_items_cached"`
	OverallSuccessRate float64 `json:"overall_success_rate"`
}

// AllMetrics is the full metrics snapshot returned by GetAllMetrics.
type AllMetrics struct {
	Sources map[string]SourceMetrics `json:"sources"`
	Summary Summary                  `json:"summary"`
}

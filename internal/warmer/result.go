package warmer

import (
	"fmt"
	"time"
)

// WarmResult is the outcome of one warm attempt. It is created fresh per
// invocation, handed to the metrics collector, and discarded.
//
// Exactly one of items/error is meaningful, gated by Success.
type WarmResult struct {
	SourceName      string    `json:"source_name"`
	Success         bool      `json:"success"`
	Timestamp       time.Time `json:"timestamp"`
	DurationSeconds float64   `json:"duration_seconds"`
	ErrorMessage    string    `json:"error_message,omitempty"`
	ItemsCached     int       `json:"items_cached"`
}

func (r WarmResult) String() string {
	status := "SUCCESS"
	if !r.Success {
		status = "FAILED"
	}
	msg := fmt.Sprintf("[%s] %s (%.2fs)", status, r.SourceName, r.DurationSeconds)
	if r.Success {
		return fmt.Sprintf("%s - %d items", msg, r.ItemsCached)
	}
	return fmt.Sprintf("%s - %s", msg, r.ErrorMessage)
}

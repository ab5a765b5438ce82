package scheduler

import (
	"fmt"
	"sort"
	"time"
)

// JobInfo describes one currently scheduled job.
type JobInfo struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	NextRunTime time.Time `json:"next_run_time,omitzero"`
	Trigger     string    `json:"trigger"`
}

// Jobs returns every currently scheduled job, sorted by id for stable
// output. NextRunTime is zero until the engine has started.
func (s *Service) Jobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]JobInfo, 0, len(s.jobs))
	for name, d := range s.jobs {
		info := JobInfo{
			ID:      JobID(name),
			Name:    fmt.Sprintf("Warm cache for %s", name),
			Trigger: triggerDescription(d.src.IntervalMinutes),
		}
		e := s.c.Entry(d.entryID)
		if e.ID == d.entryID {
			info.NextRunTime = e.Next
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

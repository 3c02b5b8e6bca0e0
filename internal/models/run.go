package models

import "time"

// RunRecord is the history entry written for every acquisition run.
type RunRecord struct {
	ID          string    `json:"id" badgerhold:"key"`
	Market      string    `json:"market" badgerholdIndex:"Market"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Version     string    `json:"version"`
	Targets     int       `json:"targets"`    // retryable targets handed to the pool
	Dispatched  int       `json:"dispatched"` // targets actually started
	Completed   int       `json:"completed"`  // results recorded in the ledger
	Cached      int       `json:"cached"`     // short-circuited by the cache gate
	Interrupted bool      `json:"interrupted"`
	Error       string    `json:"error,omitempty"`
	Stats       RunStats  `json:"stats"`
}

// Duration returns how long the run took.
func (r *RunRecord) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

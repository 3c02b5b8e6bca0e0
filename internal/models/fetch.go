package models

import "time"

// Bar is one trading day of price history; one row of a target artifact.
type Bar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// FetchOutcome classifies the result of acquiring one target.
type FetchOutcome string

// Outcomes reported by the fetch boundary, plus the coordinator-only cached/aborted outcomes.
const (
	OutcomeSuccess     FetchOutcome = "success"
	OutcomeEmpty       FetchOutcome = "empty"
	OutcomeTransient   FetchOutcome = "transient-failure"
	OutcomeRateLimited FetchOutcome = "rate-limited"
	OutcomePermanent   FetchOutcome = "permanent-failure"
	OutcomeCached      FetchOutcome = "cached"  // artifact already fresh, no network work
	OutcomeAborted     FetchOutcome = "aborted" // cancelled mid-flight, left untouched in the ledger
)

// Status maps a final outcome to the ledger status it records.
func (o FetchOutcome) Status() EntryStatus {
	switch o {
	case OutcomeSuccess, OutcomeCached:
		return StatusDone
	case OutcomeEmpty:
		return StatusEmpty
	case OutcomeAborted:
		return StatusPending
	default:
		return StatusFailed
	}
}

// FetchResult is what a worker hands back to the coordinator for one target.
type FetchResult struct {
	Code     string        `json:"code"`
	Outcome  FetchOutcome  `json:"outcome"`
	Artifact string        `json:"artifact,omitempty"` // artifact path on success
	Attempts int           `json:"attempts"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

package models

import "time"

// EntryStatus is the per-target state held in the manifest ledger.
type EntryStatus string

// Entry status constants. Done is the only terminal status.
const (
	StatusPending EntryStatus = "pending"
	StatusDone    EntryStatus = "done"
	StatusEmpty   EntryStatus = "empty"
	StatusFailed  EntryStatus = "failed"
)

// Valid reports whether s is a known status.
func (s EntryStatus) Valid() bool {
	switch s {
	case StatusPending, StatusDone, StatusEmpty, StatusFailed:
		return true
	}
	return false
}

// Retryable reports whether an entry in this status is dispatched again on the next run.
func (s EntryStatus) Retryable() bool {
	return s == StatusPending || s == StatusFailed || s == StatusEmpty
}

// ManifestEntry is one row of the per-market status ledger.
type ManifestEntry struct {
	Code        string      `json:"code"`
	Name        string      `json:"name"`
	Suffix      string      `json:"suffix,omitempty"`
	Status      EntryStatus `json:"status"`
	LastAttempt time.Time   `json:"last_attempt,omitempty"`
	Attempts    int         `json:"attempts"`
	EmptyStreak int         `json:"empty_streak,omitempty"` // consecutive empty outcomes
}

// Target returns the fetchable target described by the entry.
func (e ManifestEntry) Target() Target {
	return Target{Code: e.Code, Name: e.Name, Suffix: e.Suffix}
}

// ManifestLedger is the persisted form of a market's manifest.
type ManifestLedger struct {
	Market    string          `json:"market"`
	UpdatedAt time.Time       `json:"updated_at"`
	Entries   []ManifestEntry `json:"entries"`
}

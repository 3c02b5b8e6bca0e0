// Package stats folds manifest entries into run statistics.
package stats

import "github.com/bobmcallan/dayk/internal/models"

// Summarize counts entries by status. Success is the number of done entries and
// Fail is everything else, so Success+Fail always equals Total.
func Summarize(entries []models.ManifestEntry) models.RunStats {
	var s models.RunStats
	s.Total = len(entries)
	for _, e := range entries {
		switch e.Status {
		case models.StatusDone:
			s.Success++
		case models.StatusEmpty:
			s.Empty++
		case models.StatusFailed:
			s.Failed++
		default:
			s.Pending++
		}
	}
	s.Fail = s.Total - s.Success
	return s
}

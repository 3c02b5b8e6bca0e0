package models

// RunStats summarizes a market's ledger for reporting collaborators.
// Success counts done entries; Fail is everything else.
type RunStats struct {
	Total   int `json:"total"`
	Success int `json:"success"`
	Fail    int `json:"fail"`

	Pending int `json:"pending"`
	Empty   int `json:"empty"`
	Failed  int `json:"failed"`
}

// SuccessRate returns Success/Total as a percentage, or 0 for an empty ledger.
func (s RunStats) SuccessRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Success) / float64(s.Total) * 100
}

package models

import "strings"

// Listing is a raw instrument row returned by a listing source, before normalization.
type Listing struct {
	Code  string `json:"code"`
	Name  string `json:"name"`
	Venue string `json:"venue,omitempty"` // exchange the row was listed under, e.g. "SHG"
	Type  string `json:"type,omitempty"`  // security type, e.g. "Common Stock"
}

// Target is a unique market instrument subject to data acquisition.
// Code is the sole equality key within a market.
type Target struct {
	Code   string `json:"code"`             // Normalized instrument code: "7203", "600519", "BRK-B"
	Name   string `json:"name"`             // Display name
	Suffix string `json:"suffix,omitempty"` // Provider venue tag: ".TSE", ".SHG", ".US"
}

// Symbol returns the provider symbol used for history requests (code + suffix).
func (t Target) Symbol() string {
	return t.Code + t.Suffix
}

// CatalogSnapshot is the resolved universe of targets for a market on a given day.
type CatalogSnapshot struct {
	Market  string   `json:"market"`
	Date    string   `json:"date"`   // YYYY-MM-DD in the market's time zone
	Source  string   `json:"source"` // listing source that produced it
	Targets []Target `json:"targets"`
}

// IsFresh reports whether the snapshot was resolved on the given date key.
func (s *CatalogSnapshot) IsFresh(today string) bool {
	return s != nil && s.Date == today
}

// Codes returns the target codes in snapshot order.
func (s *CatalogSnapshot) Codes() []string {
	codes := make([]string, len(s.Targets))
	for i, t := range s.Targets {
		codes[i] = t.Code
	}
	return codes
}

// NormalizeCode trims and upper-cases an instrument code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

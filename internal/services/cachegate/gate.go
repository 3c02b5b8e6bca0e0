// Package cachegate decides whether a target's artifact is fresh enough to skip fetching.
package cachegate

import (
	"time"

	"github.com/bobmcallan/dayk/internal/common"
	"github.com/bobmcallan/dayk/internal/interfaces"
	"github.com/bobmcallan/dayk/internal/models"
)

// Gate checks artifact freshness against size and age thresholds.
type Gate struct {
	artifacts  interfaces.ArtifactStore
	minBytes   int64
	maxAgeDays int
	loc        *time.Location
	now        func() time.Time
}

// Option configures a Gate
type Option func(*Gate)

// WithClock overrides the current time source
func WithClock(now func() time.Time) Option {
	return func(g *Gate) {
		g.now = now
	}
}

// WithLocation sets the market time zone used to decide "today"
func WithLocation(loc *time.Location) Option {
	return func(g *Gate) {
		g.loc = loc
	}
}

// NewGate creates a gate from the cache configuration.
func NewGate(artifacts interfaces.ArtifactStore, cfg common.CacheConfig, opts ...Option) *Gate {
	g := &Gate{
		artifacts:  artifacts,
		minBytes:   cfg.MinBytes,
		maxAgeDays: cfg.MaxAgeDays,
		loc:        time.Local,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// IsFresh reports whether the target's artifact exists, was modified today (or within
// max_age_days calendar days) and is larger than min_bytes.
// Any stat failure counts as not fresh.
func (g *Gate) IsFresh(market string, target models.Target) bool {
	info, err := g.artifacts.StatArtifact(market, target.Symbol())
	if err != nil || info.IsDir() {
		return false
	}
	if info.Size() <= g.minBytes {
		return false
	}
	age := common.DaysBetween(info.ModTime(), g.now(), g.loc)
	return age >= 0 && age <= g.maxAgeDays
}

// Package interfaces defines service contracts for dayk
package interfaces

import (
	"context"
	"time"

	"github.com/bobmcallan/dayk/internal/common"
	"github.com/bobmcallan/dayk/internal/models"
)

// ListingSource returns the raw instrument listing for a market, or fails.
type ListingSource interface {
	// Name identifies the source in snapshots and logs
	Name() string

	// ListTargets returns identity and display-name rows for the market
	ListTargets(ctx context.Context, market common.MarketConfig) ([]models.Listing, error)
}

// HistoryFetcher retrieves daily bars for one symbol.
// Errors should be (or wrap) a *models.FetchError so the caller can classify them.
// A nil error with zero bars means the provider has no data for the window.
type HistoryFetcher interface {
	FetchHistory(ctx context.Context, symbol string, lookback time.Duration) ([]models.Bar, error)
}

// Notifier receives the end-of-run summary for a market. Delivery is up to the implementation.
type Notifier interface {
	Notify(ctx context.Context, market string, stats models.RunStats) error
}

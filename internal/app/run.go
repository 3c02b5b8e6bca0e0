package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/bobmcallan/dayk/internal/common"
	"github.com/bobmcallan/dayk/internal/models"
	"github.com/bobmcallan/dayk/internal/services/cachegate"
	"github.com/bobmcallan/dayk/internal/services/fetcher"
	"github.com/bobmcallan/dayk/internal/services/manifest"
	"github.com/bobmcallan/dayk/internal/services/stats"
)

// RunMarket performs one acquisition run for a market: resolve the catalog, merge it
// into the manifest, drain retryable targets through the pool, then summarize, record
// the run and notify.
//
// A catalog failure records a failed run and returns the error without touching the
// manifest. An interrupted run is still summarized and recorded.
func (a *App) RunMarket(ctx context.Context, market string) (*models.RunRecord, error) {
	market = strings.ToLower(market)
	mcfg, err := a.Config.Market(market)
	if err != nil {
		return nil, err
	}
	loc := mcfg.Location()

	run := &models.RunRecord{
		ID:        uuid.New().String(),
		Market:    market,
		StartedAt: a.now(),
		Version:   common.Version,
	}

	logger := a.Logger
	logger.Info().Str("market", market).Str("run_id", run.ID).Msg("Run starting")

	snap, err := a.Catalog.Resolve(ctx, market, mcfg)
	if err != nil {
		run.Error = err.Error()
		run.Interrupted = ctx.Err() != nil
		a.finish(ctx, run)
		return run, fmt.Errorf("resolve catalog: %w", err)
	}

	m, err := manifest.Load(ctx, a.Storage.ManifestStore(), market, logger, manifest.Options{
		EmptyRetryCap: a.Config.Fetch.EmptyRetryCap,
		RefreshDone:   a.Config.Fetch.RefreshDone,
		Location:      loc,
		Now:           a.now,
	})
	if err != nil {
		run.Error = err.Error()
		a.finish(ctx, run)
		return run, err
	}

	added := m.Merge(snap.Targets)
	if err := m.Persist(ctx); err != nil {
		logger.Error().Err(err).Str("market", market).Msg("Manifest persist after merge failed, continuing")
	}

	targets := m.Retryable()
	run.Targets = len(targets)
	logger.Info().
		Str("market", market).
		Str("catalog_date", snap.Date).
		Int("catalog", len(snap.Targets)).
		Int("new", added).
		Int("ledger", m.Len()).
		Int("retryable", len(targets)).
		Msg("Manifest ready")

	artifacts := a.Storage.ArtifactStore()
	gate := cachegate.NewGate(artifacts, a.Config.Cache, cachegate.WithLocation(loc), cachegate.WithClock(a.now))
	pool := fetcher.NewPool(
		fetcher.ConfigFromCommon(a.Config.Fetch, a.Config.ConcurrencyFor(mcfg)),
		a.Fetcher,
		artifacts,
		logger,
		fetcher.WithGate(gate),
		fetcher.WithMetrics(a.Metrics),
	)

	summary, runErr := pool.Run(ctx, m, targets)
	run.Dispatched = summary.Dispatched
	run.Completed = summary.Completed
	run.Cached = summary.Cached
	run.Interrupted = summary.Interrupted
	if runErr != nil {
		run.Error = runErr.Error()
	}

	run.Stats = stats.Summarize(m.Entries())
	a.finish(ctx, run)

	if err := a.Notifier.Notify(context.WithoutCancel(ctx), market, run.Stats); err != nil {
		logger.Warn().Err(err).Str("market", market).Msg("Notifier failed")
	}

	return run, runErr
}

// finish stamps and records the run. History failures are logged only.
func (a *App) finish(ctx context.Context, run *models.RunRecord) {
	run.FinishedAt = a.now()
	a.Metrics.ObserveRun(run.Market, run.Stats, run.FinishedAt)

	history := a.Storage.RunHistoryStore()
	if err := history.SaveRun(context.WithoutCancel(ctx), run); err != nil {
		a.Logger.Error().Err(err).Str("run_id", run.ID).Msg("Failed to save run record")
	}

	if days := a.Config.Storage.HistoryRetentionDays; days > 0 {
		cutoff := run.FinishedAt.AddDate(0, 0, -days)
		if n, err := history.PurgeRuns(context.WithoutCancel(ctx), cutoff); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to purge old run records")
		} else if n > 0 {
			a.Logger.Debug().Int("removed", n).Time("cutoff", cutoff).Msg("Old run records purged")
		}
	}

	a.Logger.Info().
		Str("market", run.Market).
		Str("run_id", run.ID).
		Int("total", run.Stats.Total).
		Int("success", run.Stats.Success).
		Int("fail", run.Stats.Fail).
		Str("completeness", formatRate(run.Stats.SuccessRate())).
		Bool("interrupted", run.Interrupted).
		Dur("duration", run.Duration()).
		Msg("Run finished")
}

// RunMarkets runs each market in turn. It stops at the first cancellation and returns
// the joined errors of the markets that failed.
func (a *App) RunMarkets(ctx context.Context, markets []string) error {
	var errs []error
	for _, market := range markets {
		if ctx.Err() != nil {
			break
		}
		if _, err := a.RunMarket(ctx, market); err != nil {
			a.Logger.Error().Err(err).Str("market", market).Msg("Run failed")
			errs = append(errs, fmt.Errorf("%s: %w", market, err))
		}
	}
	return errors.Join(errs...)
}

// Status summarizes the persisted manifest of a market without fetching.
func (a *App) Status(ctx context.Context, market string) (models.RunStats, error) {
	if _, err := a.Config.Market(market); err != nil {
		return models.RunStats{}, err
	}
	ledger, err := a.Storage.ManifestStore().LoadManifest(ctx, strings.ToLower(market))
	if err != nil {
		return models.RunStats{}, err
	}
	if ledger == nil {
		return models.RunStats{}, nil
	}
	return stats.Summarize(ledger.Entries), nil
}

// Purge deletes a market's artifacts and reopens every manifest entry, so the next run
// fetches the whole catalog again. It returns the artifact and entry counts.
func (a *App) Purge(ctx context.Context, market string) (int, int, error) {
	market = strings.ToLower(market)
	mcfg, err := a.Config.Market(market)
	if err != nil {
		return 0, 0, err
	}

	m, err := manifest.Load(ctx, a.Storage.ManifestStore(), market, a.Logger, manifest.Options{
		Location: mcfg.Location(),
		Now:      a.now,
	})
	if err != nil {
		return 0, 0, err
	}

	artifacts := a.Storage.PurgeArtifacts(market)
	entries := m.Reset()
	if err := m.Persist(ctx); err != nil {
		return artifacts, 0, fmt.Errorf("persist reset manifest: %w", err)
	}

	a.Logger.Info().
		Str("market", market).
		Int("artifacts", artifacts).
		Int("entries", entries).
		Msg("Market purged")
	return artifacts, entries, nil
}

// History returns the most recent runs of a market.
func (a *App) History(ctx context.Context, market string, limit int) ([]*models.RunRecord, error) {
	return a.Storage.RunHistoryStore().ListRuns(ctx, market, limit)
}

func formatRate(pct float64) string {
	return strconv.FormatFloat(pct, 'f', 2, 64) + "%"
}

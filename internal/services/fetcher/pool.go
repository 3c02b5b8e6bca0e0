// Package fetcher drains retryable targets through a bounded pool of workers.
//
// One coordinator goroutine dispatches targets, workers fetch and write artifacts, and a
// single collector goroutine is the only writer of the manifest ledger.
package fetcher

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bobmcallan/dayk/internal/common"
	"github.com/bobmcallan/dayk/internal/interfaces"
	"github.com/bobmcallan/dayk/internal/metrics"
	"github.com/bobmcallan/dayk/internal/models"
)

// MaxConcurrency is the ceiling on workers per run.
const MaxConcurrency = 5

// Ledger is the subset of the manifest the pool writes to.
type Ledger interface {
	Market() string
	Record(code string, outcome models.FetchOutcome) bool
	Persist(ctx context.Context) error
}

// FreshnessChecker reports whether a target's artifact can be reused without fetching.
type FreshnessChecker interface {
	IsFresh(market string, target models.Target) bool
}

// Config is the pool's retry and backpressure policy.
type Config struct {
	Concurrency   int
	MaxAttempts   int
	Timeout       time.Duration
	Lookback      time.Duration
	PersistEvery  int
	ProgressEvery int

	JitterMin           time.Duration
	JitterMax           time.Duration
	BackoffInitial      time.Duration
	BackoffMax          time.Duration
	RateLimitBackoffMin time.Duration
	RateLimitBackoffMax time.Duration

	CooldownEvery int
	CooldownMin   time.Duration
	CooldownMax   time.Duration
}

// ConfigFromCommon builds a pool configuration from the fetch section with the
// market's effective concurrency.
func ConfigFromCommon(fc common.FetchConfig, concurrency int) Config {
	cfg := Config{
		Concurrency:   concurrency,
		MaxAttempts:   fc.MaxAttempts,
		Timeout:       fc.GetTimeout(),
		Lookback:      fc.GetLookback(),
		PersistEvery:  fc.PersistEvery,
		ProgressEvery: fc.ProgressEvery,
		CooldownEvery: fc.CooldownEvery,
	}
	cfg.JitterMin, cfg.JitterMax = fc.GetJitter()
	cfg.BackoffInitial, cfg.BackoffMax = fc.GetBackoff()
	cfg.RateLimitBackoffMin, cfg.RateLimitBackoffMax = fc.GetRateLimitBackoff()
	cfg.CooldownMin, cfg.CooldownMax = fc.GetCooldown()
	return cfg
}

func (c *Config) normalize() {
	if c.Concurrency < 1 {
		c.Concurrency = 1
	}
	if c.Concurrency > MaxConcurrency {
		c.Concurrency = MaxConcurrency
	}
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 1
	}
	if c.Timeout <= 0 {
		c.Timeout = 20 * time.Second
	}
	if c.PersistEvery < 1 {
		c.PersistEvery = 100
	}
}

// Summary describes what one Run did.
type Summary struct {
	Targets     int
	Dispatched  int
	Completed   int // results recorded in the ledger
	Cached      int
	Interrupted bool
	Outcomes    map[models.FetchOutcome]int
	Elapsed     time.Duration
}

// Pool runs fetches for one market at a time.
type Pool struct {
	cfg       Config
	fetcher   interfaces.HistoryFetcher
	gate      FreshnessChecker
	artifacts interfaces.ArtifactStore
	metrics   *metrics.Metrics
	logger    *common.Logger
}

// Option configures a Pool
type Option func(*Pool)

// WithMetrics attaches Prometheus instrumentation
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pool) {
		p.metrics = m
	}
}

// WithGate sets the cache gate consulted before each fetch
func WithGate(g FreshnessChecker) Option {
	return func(p *Pool) {
		p.gate = g
	}
}

// NewPool creates a fetch pool.
func NewPool(cfg Config, fetcher interfaces.HistoryFetcher, artifacts interfaces.ArtifactStore, logger *common.Logger, opts ...Option) *Pool {
	cfg.normalize()
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	p := &Pool{
		cfg:       cfg,
		fetcher:   fetcher,
		artifacts: artifacts,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run processes targets until all are done or ctx is cancelled.
//
// On cancellation no new targets are dispatched; in-flight workers finish or abort, and
// aborted targets are left untouched in the ledger. The ledger is persisted every
// PersistEvery recorded results and exactly once more before Run returns. The returned
// error reports only a failed final persist.
func (p *Pool) Run(ctx context.Context, ledger Ledger, targets []models.Target) (Summary, error) {
	start := time.Now()
	market := ledger.Market()
	summary := Summary{Targets: len(targets), Outcomes: make(map[models.FetchOutcome]int)}

	p.logger.Info().
		Str("market", market).
		Int("targets", len(targets)).
		Int("concurrency", p.cfg.Concurrency).
		Msg("Fetch run starting")

	cooldown := NewCooldown(p.cfg.CooldownEvery, p.cfg.CooldownMin, p.cfg.CooldownMax)
	results := make(chan models.FetchResult, p.cfg.Concurrency)
	collected := make(chan struct{})

	go func() {
		defer close(collected)
		p.collect(ctx, ledger, results, &summary)
	}()

	// A worker slot is taken before the cooldown check, and workers count their
	// completion before releasing the slot, so a pause always blocks the next dispatch.
	var g errgroup.Group
	slots := make(chan struct{}, p.cfg.Concurrency)

dispatch:
	for _, target := range targets {
		select {
		case slots <- struct{}{}:
		case <-ctx.Done():
			break dispatch
		}
		if err := cooldown.Wait(ctx); err != nil {
			<-slots
			break
		}
		target := target
		g.Go(func() error {
			defer func() { <-slots }()
			res := p.process(ctx, market, target)
			if res.Outcome != models.OutcomeCached && res.Outcome != models.OutcomeAborted {
				if pause := cooldown.Complete(); pause > 0 {
					p.metrics.ObserveCooldown(market)
					p.logger.Info().Str("market", market).Dur("pause", pause).Msg("Batch cooldown")
				}
			}
			results <- res
			return nil
		})
		summary.Dispatched++
	}

	g.Wait()
	close(results)
	<-collected

	summary.Interrupted = ctx.Err() != nil
	summary.Elapsed = time.Since(start)

	err := ledger.Persist(context.WithoutCancel(ctx))
	p.metrics.ObservePersist(market, err)
	if err != nil {
		p.logger.Error().Err(err).Str("market", market).Msg("Final manifest persist failed")
		err = fmt.Errorf("final manifest persist: %w", err)
	}

	event := p.logger.Info()
	if summary.Interrupted {
		event = p.logger.Warn()
	}
	event.
		Str("market", market).
		Int("dispatched", summary.Dispatched).
		Int("completed", summary.Completed).
		Int("cached", summary.Cached).
		Int("success", summary.Outcomes[models.OutcomeSuccess]).
		Int("empty", summary.Outcomes[models.OutcomeEmpty]).
		Bool("interrupted", summary.Interrupted).
		Dur("elapsed", summary.Elapsed).
		Msg("Fetch run finished")

	return summary, err
}

// collect is the only goroutine that writes to the ledger.
func (p *Pool) collect(ctx context.Context, ledger Ledger, results <-chan models.FetchResult, summary *Summary) {
	market := ledger.Market()
	sincePersist := 0

	for res := range results {
		summary.Outcomes[res.Outcome]++
		p.metrics.ObserveResult(market, res.Outcome, res.Duration)

		if res.Outcome == models.OutcomeAborted {
			continue
		}
		if !ledger.Record(res.Code, res.Outcome) {
			p.logger.Warn().Str("market", market).Str("code", res.Code).Msg("Result for code not in ledger")
			continue
		}
		summary.Completed++
		sincePersist++

		if res.Outcome == models.OutcomeCached {
			summary.Cached++
		}

		if sincePersist >= p.cfg.PersistEvery {
			err := ledger.Persist(context.WithoutCancel(ctx))
			p.metrics.ObservePersist(market, err)
			if err != nil {
				p.logger.Error().Err(err).Str("market", market).Msg("Manifest persist failed, continuing")
			} else {
				sincePersist = 0
			}
		}

		if p.cfg.ProgressEvery > 0 && summary.Completed%p.cfg.ProgressEvery == 0 {
			p.logger.Info().
				Str("market", market).
				Int("completed", summary.Completed).
				Int("total", summary.Targets).
				Int("success", summary.Outcomes[models.OutcomeSuccess]).
				Int("cached", summary.Cached).
				Msg("Fetch progress")
		}
	}
}

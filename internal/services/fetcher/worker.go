package fetcher

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/bobmcallan/dayk/internal/models"
)

// process acquires one target. It never panics and never returns without an outcome.
func (p *Pool) process(ctx context.Context, market string, target models.Target) (res models.FetchResult) {
	start := time.Now()
	res = models.FetchResult{Code: target.Code}

	p.metrics.InflightAdd(market, 1)
	defer func() {
		p.metrics.InflightAdd(market, -1)
		if r := recover(); r != nil {
			p.logger.Error().
				Str("market", market).
				Str("symbol", target.Symbol()).
				Str("panic", fmt.Sprintf("%v", r)).
				Str("stack", string(debug.Stack())).
				Msg("Recovered from panic in fetch worker")
			res.Outcome = models.OutcomePermanent
			res.Err = fmt.Errorf("panic: %v", r)
		}
		res.Duration = time.Since(start)
	}()

	if ctx.Err() != nil {
		res.Outcome = models.OutcomeAborted
		return res
	}

	if p.gate != nil && p.gate.IsFresh(market, target) {
		res.Outcome = models.OutcomeCached
		res.Artifact = p.artifacts.ArtifactPath(market, target.Symbol())
		return res
	}

	if err := sleep(ctx, randBetween(p.cfg.JitterMin, p.cfg.JitterMax)); err != nil {
		res.Outcome = models.OutcomeAborted
		return res
	}

	bo := p.newBackoff()
	symbol := target.Symbol()
	lastKind := models.FetchTransient

	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		res.Attempts = attempt

		bars, err := p.fetchOnce(ctx, symbol)
		if err != nil && ctx.Err() != nil {
			res.Outcome = models.OutcomeAborted
			return res
		}

		if err == nil {
			p.metrics.ObserveAttempt(market, "")
			if len(bars) == 0 {
				res.Outcome = models.OutcomeEmpty
				return res
			}
			path, werr := p.artifacts.WriteArtifact(context.WithoutCancel(ctx), market, symbol, bars)
			if werr != nil {
				p.logger.Error().Err(werr).Str("market", market).Str("symbol", symbol).Msg("Artifact write failed")
				res.Outcome = models.OutcomePermanent
				res.Err = werr
				return res
			}
			res.Outcome = models.OutcomeSuccess
			res.Artifact = path
			res.Err = nil
			return res
		}

		fe := classify(symbol, err)
		p.metrics.ObserveAttempt(market, fe.Kind)
		res.Err = fe
		lastKind = fe.Kind

		switch fe.Kind {
		case models.FetchEmpty:
			res.Outcome = models.OutcomeEmpty
			return res
		case models.FetchPermanent:
			p.logger.Debug().Err(fe).Str("symbol", symbol).Msg("Permanent fetch failure")
			res.Outcome = models.OutcomePermanent
			return res
		}

		if attempt == p.cfg.MaxAttempts {
			break
		}

		var wait time.Duration
		if fe.Kind == models.FetchRateLimited {
			wait = randBetween(p.cfg.RateLimitBackoffMin, p.cfg.RateLimitBackoffMax)
			p.logger.Warn().Str("symbol", symbol).Int("attempt", attempt).Dur("wait", wait).Msg("Rate limited, backing off")
		} else {
			wait = bo.NextBackOff()
			p.logger.Debug().Err(fe).Str("symbol", symbol).Int("attempt", attempt).Dur("wait", wait).Msg("Transient fetch failure, retrying")
		}
		if err := sleep(ctx, wait); err != nil {
			res.Outcome = models.OutcomeAborted
			return res
		}
	}

	if lastKind == models.FetchRateLimited {
		res.Outcome = models.OutcomeRateLimited
	} else {
		res.Outcome = models.OutcomeTransient
	}
	return res
}

type fetchReply struct {
	bars []models.Bar
	err  error
}

// fetchOnce runs a single attempt bounded by the per-attempt timeout, even if the
// underlying fetcher ignores its context.
func (p *Pool) fetchOnce(ctx context.Context, symbol string) ([]models.Bar, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	reply := make(chan fetchReply, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				reply <- fetchReply{err: models.NewFetchError(models.FetchPermanent, symbol, 0, fmt.Errorf("panic: %v", r))}
			}
		}()
		bars, err := p.fetcher.FetchHistory(attemptCtx, symbol, p.cfg.Lookback)
		reply <- fetchReply{bars: bars, err: err}
	}()

	select {
	case r := <-reply:
		return r.bars, r.err
	case <-attemptCtx.Done():
		return nil, models.NewFetchError(models.FetchTransient, symbol, 0, fmt.Errorf("attempt timed out after %s: %w", p.cfg.Timeout, attemptCtx.Err()))
	}
}

func (p *Pool) newBackoff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.cfg.BackoffInitial
	bo.MaxInterval = p.cfg.BackoffMax
	bo.MaxElapsedTime = 0
	bo.Reset()
	return bo
}

// classify maps any fetch error to a kind. Structured errors win; the message is a fallback.
func classify(symbol string, err error) *models.FetchError {
	var fe *models.FetchError
	if errors.As(err, &fe) {
		return fe
	}
	if models.IsRateLimitMessage(err.Error()) {
		return models.NewFetchError(models.FetchRateLimited, symbol, 0, err)
	}
	return models.NewFetchError(models.FetchTransient, symbol, 0, err)
}

package app

import (
	"context"
	"time"
)

// RunScheduled runs the markets immediately and then again on every tick of interval
// until ctx is done. Failures of a single pass are logged and do not stop the schedule.
func (a *App) RunScheduled(ctx context.Context, markets []string, interval time.Duration) {
	a.runPass(ctx, markets)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.Logger.Info().Msg("Scheduler: stopped")
			return
		case <-ticker.C:
			a.runPass(ctx, markets)
		}
	}
}

func (a *App) runPass(ctx context.Context, markets []string) {
	start := time.Now()
	if err := a.RunMarkets(ctx, markets); err != nil {
		a.Logger.Warn().Err(err).Msg("Scheduler: pass finished with errors")
		return
	}
	a.Logger.Info().
		Strs("markets", markets).
		Dur("elapsed", time.Since(start)).
		Msg("Scheduler: pass complete")
}

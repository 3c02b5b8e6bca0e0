package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bobmcallan/dayk/internal/common"
)

func runFetch(cmd *cobra.Command, _ []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	selected := selectedMarkets(a)
	for _, m := range selected {
		if _, err := a.Config.Market(m); err != nil {
			return err
		}
	}

	var every time.Duration
	if interval != "" {
		every, err = time.ParseDuration(interval)
		if err != nil || every <= 0 {
			return fmt.Errorf("invalid --interval %q", interval)
		}
	}

	common.PrintBanner(cmd.OutOrStdout(), a.Config, selected, a.Logger)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Interrupt stops dispatch; in-flight targets finish and the manifest is persisted.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			a.Logger.Info().Msg("Shutdown signal received, draining in-flight fetches")
			cancel()
		case <-ctx.Done():
		}
	}()

	addr := a.Config.Metrics.Address
	if metricsAddr != "" {
		addr = metricsAddr
	}
	if addr != "" {
		srv := startMetricsServer(a, addr)
		defer shutdownServer(a, srv)
	}

	if every > 0 {
		a.RunScheduled(ctx, selected, every)
		err = nil
	} else {
		err = a.RunMarkets(ctx, selected)
	}

	common.PrintShutdownBanner(cmd.OutOrStdout(), a.Logger)
	return err
}

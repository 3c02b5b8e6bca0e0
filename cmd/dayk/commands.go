package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bobmcallan/dayk/internal/app"
)

// --- Global Command Variables ---
var (
	configPath   string
	markets      []string
	interval     string
	metricsAddr  string
	historyLimit int

	rootCmd = &cobra.Command{
		Use:   "dayk",
		Short: "Resumable daily bar acquisition for equity markets",
		Long: `dayk resolves each market's listing into a target catalog, then fetches
daily bars for every target with a bounded worker pool, recording progress in a
per-market manifest so interrupted runs resume where they stopped.`,
		SilenceUsage: true,
	}

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Fetch daily bars for one or more markets",
		RunE:  runFetch, // Defined in cmd_run.go
	}

	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Summarize the manifest of each market without fetching",
		RunE:  runStatus, // Defined in cmd_status.go
	}

	historyCmd = &cobra.Command{
		Use:   "history",
		Short: "List recent runs",
		RunE:  runHistory, // Defined in cmd_history.go
	}

	purgeCmd = &cobra.Command{
		Use:   "purge",
		Short: "Delete a market's artifacts and reopen its manifest for a full re-fetch",
		RunE:  runPurge, // Defined in cmd_purge.go
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run:   runVersion, // Defined in cmd_version.go
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default: $DAYK_CONFIG, dayk.toml next to the binary, config/dayk.toml)")

	runCmd.Flags().StringSliceVarP(&markets, "market", "m", nil, "market to fetch (repeatable; default: all configured markets)")
	runCmd.Flags().StringVar(&interval, "interval", "", "repeat the run on this interval (e.g. 24h) until interrupted")
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve /metrics on this address (overrides metrics.address)")

	statusCmd.Flags().StringSliceVarP(&markets, "market", "m", nil, "market to summarize (default: all configured markets)")

	historyCmd.Flags().StringSliceVarP(&markets, "market", "m", nil, "market to list (default: all markets)")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "maximum runs to list")

	purgeCmd.Flags().StringSliceVarP(&markets, "market", "m", nil, "market to purge (required, repeatable)")
	purgeCmd.MarkFlagRequired("market")

	rootCmd.AddCommand(runCmd, statusCmd, historyCmd, purgeCmd, versionCmd)
}

// openApp initializes the App from the --config flag.
func openApp() (*app.App, error) {
	a, err := app.NewApp(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize app: %w", err)
	}
	return a, nil
}

// selectedMarkets returns the --market values, or every configured market.
func selectedMarkets(a *app.App) []string {
	if len(markets) > 0 {
		return markets
	}
	return a.Config.MarketNames()
}

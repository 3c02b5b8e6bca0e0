package common

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ternarybob/banner"
)

// PrintBanner writes the startup banner for a run over the given markets.
func PrintBanner(w io.Writer, config *Config, markets []string, logger *Logger) {
	lineColor := banner.ColorCyan
	textColor := banner.ColorBold + banner.ColorWhite
	width := 60
	hr := lineColor + strings.Repeat("═", width) + banner.ColorReset

	art := []string{
		`  ____    _ __   __ _  __`,
		` |  _ \  / \\ \ / /| |/ /`,
		` | | | |/ _ \\ V / | ' / `,
		` | |_| / ___ \| |  | . \ `,
		` |____/_/   \_\_|  |_|\_\`,
	}

	fmt.Fprintf(w, "\n%s\n\n", hr)
	for _, line := range art {
		fmt.Fprintf(w, "%s%s%s\n", textColor, line, banner.ColorReset)
	}
	fmt.Fprintf(w, "\n%s  Daily bar acquisition%s\n\n%s\n\n", textColor, banner.ColorReset, hr)

	kvPad := 14
	kvLines := [][2]string{
		{"Version", Version},
		{"Commit", GitCommit},
		{"Environment", config.Environment},
		{"Markets", strings.Join(markets, ", ")},
		{"Concurrency", strconv.Itoa(config.Fetch.Concurrency)},
		{"Data", config.Storage.DataPath},
	}
	for _, kv := range kvLines {
		fmt.Fprintf(w, "%s  %-*s %s%s\n", textColor, kvPad, kv[0], kv[1], banner.ColorReset)
	}
	fmt.Fprintf(w, "\n%s\n\n", hr)

	logger.Info().
		Str("version", Version).
		Str("commit", GitCommit).
		Str("environment", config.Environment).
		Strs("markets", markets).
		Int("concurrency", config.Fetch.Concurrency).
		Msg("dayk started")
}

// PrintShutdownBanner writes the shutdown banner.
func PrintShutdownBanner(w io.Writer, logger *Logger) {
	hr := banner.ColorCyan + strings.Repeat("═", 42) + banner.ColorReset
	fmt.Fprintf(w, "\n%s\n%s  DAYK - SHUTTING DOWN%s\n%s\n\n", hr, banner.ColorBold+banner.ColorWhite, banner.ColorReset, hr)
	logger.Info().Msg("dayk shutting down")
}

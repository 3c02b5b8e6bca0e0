package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/bobmcallan/dayk/internal/app"
	"github.com/bobmcallan/dayk/internal/common"
	"github.com/bobmcallan/dayk/internal/metrics"
)

// buildMux exposes Prometheus metrics alongside health and version endpoints.
func buildMux(a *app.App) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(a.Registry))
	mux.HandleFunc("/api/health", healthHandler)
	mux.HandleFunc("/api/version", versionHandler)
	return mux
}

func startMetricsServer(a *app.App, addr string) *http.Server {
	srv := &http.Server{
		Addr:         addr,
		Handler:      buildMux(a),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		a.Logger.Info().Str("addr", addr).Msg("Starting metrics server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.Error().Err(err).Msg("Metrics server failed")
		}
	}()
	return srv
}

func shutdownServer(a *app.App, srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		a.Logger.Error().Err(err).Msg("Metrics server shutdown failed")
	}
}

// healthHandler responds to GET/HEAD /api/health with {"status":"ok"}.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// versionHandler responds to GET/HEAD /api/version with version info.
func versionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(common.GetVersionInfo())
}

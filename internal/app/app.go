package app

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bobmcallan/dayk/internal/clients/eodhd"
	"github.com/bobmcallan/dayk/internal/clients/listing"
	"github.com/bobmcallan/dayk/internal/common"
	"github.com/bobmcallan/dayk/internal/interfaces"
	"github.com/bobmcallan/dayk/internal/metrics"
	"github.com/bobmcallan/dayk/internal/services/catalog"
	"github.com/bobmcallan/dayk/internal/storage"
)

// App holds the initialized configuration, storage, provider clients and services.
// It is the shared core behind every cmd/dayk command.
type App struct {
	Config   *common.Config
	Logger   *common.Logger
	Storage  interfaces.StorageManager
	Listing  interfaces.ListingSource
	Fetcher  interfaces.HistoryFetcher
	Catalog  *catalog.Service
	Notifier interfaces.Notifier
	Metrics  *metrics.Metrics
	Registry *prometheus.Registry

	StartupTime time.Time

	now func() time.Time
}

// Deps are the collaborators used to assemble an App without NewApp's config and
// client resolution.
type Deps struct {
	Config   *common.Config
	Logger   *common.Logger
	Storage  interfaces.StorageManager
	Listing  interfaces.ListingSource
	Fetcher  interfaces.HistoryFetcher
	Notifier interfaces.Notifier
	Now      func() time.Time

	// Secondary listing sources keyed by market
	Secondary map[string]interfaces.ListingSource
}

// New assembles an App from explicit collaborators.
func New(d Deps) *App {
	if d.Logger == nil {
		d.Logger = common.NewSilentLogger()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Notifier == nil {
		d.Notifier = NewLogNotifier(d.Logger)
	}

	opts := []catalog.Option{catalog.WithClock(d.Now)}
	for market, src := range d.Secondary {
		opts = append(opts, catalog.WithSecondary(market, src))
	}

	registry := prometheus.NewRegistry()
	return &App{
		Config:      d.Config,
		Logger:      d.Logger,
		Storage:     d.Storage,
		Listing:     d.Listing,
		Fetcher:     d.Fetcher,
		Catalog:     catalog.NewService(d.Storage.CatalogStore(), d.Listing, d.Logger, opts...),
		Notifier:    d.Notifier,
		Metrics:     metrics.New(registry),
		Registry:    registry,
		StartupTime: time.Now(),
		now:         d.Now,
	}
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// ResolveConfigPath picks the config file: explicit path, DAYK_CONFIG, dayk.toml next
// to the binary, then config/dayk.toml.
func ResolveConfigPath(configPath string) string {
	if configPath == "" {
		configPath = os.Getenv("DAYK_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(getBinaryDir(), "dayk.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/dayk.toml" // fallback for development
		}
	}
	return configPath
}

// NewApp loads configuration and initializes logging, storage and provider clients.
// configPath may be empty, in which case the default resolution logic is used.
func NewApp(configPath string) (*App, error) {
	startupStart := time.Now()

	// Load version from .version file (fallback if ldflags not set)
	common.LoadVersionFromFile()

	config, err := common.LoadConfig(ResolveConfigPath(configPath))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := common.NewLoggerFromConfig(config.Logging)

	storageManager, err := storage.NewManager(logger, config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	if config.Clients.EODHD.APIKey == "" {
		logger.Warn().Msg("EODHD API key not configured - listing and history requests will be rejected")
	}
	eodhdClient := eodhd.NewClient(config.Clients.EODHD.APIKey,
		eodhd.WithBaseURL(config.Clients.EODHD.BaseURL),
		eodhd.WithLogger(logger),
		eodhd.WithRateLimit(config.Clients.EODHD.RateLimit),
		eodhd.WithTimeout(config.Clients.EODHD.GetTimeout()),
	)

	secondary := make(map[string]interfaces.ListingSource)
	for name, m := range config.Markets {
		if m.Secondary != nil {
			secondary[name] = listing.NewClient(*m.Secondary, logger)
		}
	}

	a := New(Deps{
		Config:    config,
		Logger:    logger,
		Storage:   storageManager,
		Listing:   eodhdClient,
		Fetcher:   eodhdClient,
		Secondary: secondary,
	})
	a.StartupTime = startupStart

	logger.Info().Dur("startup", time.Since(startupStart)).Msg("App initialized")

	return a, nil
}

// Close releases all resources held by the App.
func (a *App) Close() {
	if a.Storage != nil {
		if err := a.Storage.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close storage")
		}
		a.Storage = nil
	}
}

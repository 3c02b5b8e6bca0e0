// Package catalog resolves the daily universe of targets for a market.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bobmcallan/dayk/internal/common"
	"github.com/bobmcallan/dayk/internal/interfaces"
	"github.com/bobmcallan/dayk/internal/models"
)

// Service resolves catalogs from a primary and optional secondary listing source,
// falling back to persisted snapshots.
type Service struct {
	store     interfaces.CatalogStore
	primary   interfaces.ListingSource
	secondary map[string]interfaces.ListingSource
	logger    *common.Logger
	now       func() time.Time
}

// Option configures the Service
type Option func(*Service)

// WithSecondary registers a secondary listing source for one market.
func WithSecondary(market string, source interfaces.ListingSource) Option {
	return func(s *Service) {
		if source != nil {
			s.secondary[strings.ToLower(market)] = source
		}
	}
}

// WithClock overrides the current time source
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a catalog service.
func NewService(store interfaces.CatalogStore, primary interfaces.ListingSource, logger *common.Logger, opts ...Option) *Service {
	s := &Service{
		store:     store,
		primary:   primary,
		secondary: make(map[string]interfaces.ListingSource),
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Resolve returns today's catalog for the market.
//
// A same-day snapshot is returned as is. Otherwise the primary and then the secondary
// source are queried; a listing that fails or normalizes to fewer than the market's
// minimum targets is rejected. A valid listing is persisted as today's snapshot. When
// no source is valid the most recent snapshot of any age is used, and with none the
// result is ErrCatalogUnavailable.
func (s *Service) Resolve(ctx context.Context, market string, cfg common.MarketConfig) (*models.CatalogSnapshot, error) {
	market = strings.ToLower(market)
	today := common.DateKey(s.now(), cfg.Location())

	if snap, err := s.store.GetSnapshot(ctx, market, today); err == nil {
		s.logger.Info().Str("market", market).Str("date", today).Int("targets", len(snap.Targets)).Msg("Using today's catalog snapshot")
		return snap, nil
	} else if !errors.Is(err, models.ErrNotFound) {
		s.logger.Warn().Err(err).Str("market", market).Msg("Failed to read today's catalog snapshot")
	}

	normalizer := NewNormalizer(cfg)
	sources := []interfaces.ListingSource{s.primary}
	if sec, ok := s.secondary[market]; ok {
		sources = append(sources, sec)
	}

	for _, src := range sources {
		if src == nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		targets, err := s.query(ctx, src, market, cfg, normalizer)
		if err != nil {
			s.logger.Warn().Err(err).Str("market", market).Str("source", src.Name()).Msg("Listing source rejected")
			continue
		}

		snap := &models.CatalogSnapshot{Market: market, Date: today, Source: src.Name(), Targets: targets}
		s.persist(ctx, snap, cfg.SnapshotRetention)
		s.logger.Info().Str("market", market).Str("source", src.Name()).Int("targets", len(targets)).Msg("Catalog resolved")
		return snap, nil
	}

	snap, err := s.store.LatestSnapshot(ctx, market)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", market, models.ErrCatalogUnavailable)
	}
	s.logger.Warn().Str("market", market).Str("date", snap.Date).Int("targets", len(snap.Targets)).Msg("All listing sources failed, using last snapshot")
	return snap, nil
}

func (s *Service) query(ctx context.Context, src interfaces.ListingSource, market string, cfg common.MarketConfig, n *Normalizer) ([]models.Target, error) {
	listings, err := src.ListTargets(ctx, cfg)
	if err != nil {
		return nil, err
	}
	targets := n.Normalize(listings)
	if len(targets) < cfg.MinTargets {
		return nil, fmt.Errorf("listing for %s has %d targets, below minimum %d", market, len(targets), cfg.MinTargets)
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("listing for %s is empty", market)
	}
	return targets, nil
}

// persist saves the snapshot and prunes old ones. Failures are logged only; the
// resolved catalog is still usable for this run.
func (s *Service) persist(ctx context.Context, snap *models.CatalogSnapshot, retention int) {
	if err := s.store.SaveSnapshot(ctx, snap); err != nil {
		s.logger.Error().Err(err).Str("market", snap.Market).Msg("Failed to persist catalog snapshot")
		return
	}
	removed, err := s.store.PruneSnapshots(ctx, snap.Market, retention)
	if err != nil {
		s.logger.Warn().Err(err).Str("market", snap.Market).Msg("Failed to prune catalog snapshots")
		return
	}
	if removed > 0 {
		s.logger.Debug().Str("market", snap.Market).Int("removed", removed).Msg("Pruned catalog snapshots")
	}
}

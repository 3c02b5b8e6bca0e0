package marketfs

import (
	"context"
	"fmt"
	"strings"

	"github.com/bobmcallan/dayk/internal/models"
)

const snapshotPrefix = "catalog-"

type catalogStorage struct {
	store *Store
}

func snapshotKey(date string) string {
	return snapshotPrefix + date
}

func (c *catalogStorage) GetSnapshot(_ context.Context, market, date string) (*models.CatalogSnapshot, error) {
	var snap models.CatalogSnapshot
	if err := readJSON(c.store.listsDir(market), snapshotKey(date), &snap); err != nil {
		return nil, fmt.Errorf("catalog snapshot %s/%s: %w", market, date, err)
	}
	return &snap, nil
}

func (c *catalogStorage) LatestSnapshot(ctx context.Context, market string) (*models.CatalogSnapshot, error) {
	keys, err := listKeys(c.store.listsDir(market), snapshotPrefix)
	if err != nil {
		return nil, err
	}
	// Date keys sort lexically; walk newest first and skip unreadable files.
	for i := len(keys) - 1; i >= 0; i-- {
		date := strings.TrimPrefix(keys[i], snapshotPrefix)
		snap, err := c.GetSnapshot(ctx, market, date)
		if err != nil {
			c.store.logger.Warn().Err(err).Str("market", market).Str("date", date).Msg("Skipping unreadable catalog snapshot")
			continue
		}
		return snap, nil
	}
	return nil, fmt.Errorf("catalog snapshot for %s: %w", market, models.ErrNotFound)
}

func (c *catalogStorage) SaveSnapshot(_ context.Context, snap *models.CatalogSnapshot) error {
	if snap.Date == "" {
		return fmt.Errorf("catalog snapshot for %s has no date", snap.Market)
	}
	if err := writeJSON(c.store.listsDir(snap.Market), snapshotKey(snap.Date), snap); err != nil {
		return fmt.Errorf("failed to save catalog snapshot: %w", err)
	}
	c.store.logger.Debug().Str("market", snap.Market).Str("date", snap.Date).Int("targets", len(snap.Targets)).Msg("Catalog snapshot saved")
	return nil
}

func (c *catalogStorage) PruneSnapshots(_ context.Context, market string, keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}
	dir := c.store.listsDir(market)
	keys, err := listKeys(dir, snapshotPrefix)
	if err != nil {
		return 0, err
	}
	if len(keys) <= keep {
		return 0, nil
	}

	removed := 0
	for _, key := range keys[:len(keys)-keep] {
		if err := deleteJSON(dir, key); err != nil {
			return removed, fmt.Errorf("failed to remove snapshot %s: %w", key, err)
		}
		removed++
	}
	return removed, nil
}

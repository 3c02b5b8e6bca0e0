package marketfs

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bobmcallan/dayk/internal/models"
)

const manifestKey = "manifest"

type manifestStorage struct {
	store *Store
}

func (m *manifestStorage) LoadManifest(_ context.Context, market string) (*models.ManifestLedger, error) {
	var ledger models.ManifestLedger
	if err := readJSON(m.store.listsDir(market), manifestKey, &ledger); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load manifest for %s: %w", market, err)
	}
	if ledger.Market == "" {
		ledger.Market = strings.ToLower(market)
	}
	return &ledger, nil
}

func (m *manifestStorage) SaveManifest(_ context.Context, ledger *models.ManifestLedger) error {
	if err := writeJSON(m.store.listsDir(ledger.Market), manifestKey, ledger); err != nil {
		return fmt.Errorf("%w: manifest for %s: %v", models.ErrPersistence, ledger.Market, err)
	}
	return nil
}

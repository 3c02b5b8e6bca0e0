// Package storage provides the top-level StorageManager that coordinates
// the 2 storage areas: marketfs (artifacts, ledgers, snapshots) and badger (run history).
package storage

import (
	"fmt"

	"github.com/bobmcallan/dayk/internal/common"
	"github.com/bobmcallan/dayk/internal/interfaces"
	"github.com/bobmcallan/dayk/internal/storage/badger"
	"github.com/bobmcallan/dayk/internal/storage/marketfs"
)

// Manager implements interfaces.StorageManager using 2 storage areas.
type Manager struct {
	market  *marketfs.Store
	history *badger.Store
	runs    interfaces.RunHistoryStore
	logger  *common.Logger
}

// NewManager creates a new StorageManager with the 2 storage areas.
func NewManager(logger *common.Logger, config *common.Config) (*Manager, error) {
	marketStore, err := marketfs.NewStore(logger, config.Storage.DataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create market store: %w", err)
	}

	historyStore, err := badger.NewStore(logger, config.Storage.HistoryPath)
	if err != nil {
		marketStore.Close()
		return nil, fmt.Errorf("failed to create history store: %w", err)
	}

	logger.Info().
		Str("data", config.Storage.DataPath).
		Str("history", config.Storage.HistoryPath).
		Msg("Storage manager initialized (2 areas)")

	return &Manager{
		market:  marketStore,
		history: historyStore,
		runs:    badger.NewRunStorage(historyStore, logger),
		logger:  logger,
	}, nil
}

func (m *Manager) CatalogStore() interfaces.CatalogStore {
	return m.market.CatalogStore()
}

func (m *Manager) ManifestStore() interfaces.ManifestStore {
	return m.market.ManifestStore()
}

func (m *Manager) ArtifactStore() interfaces.ArtifactStore {
	return m.market.ArtifactStore()
}

func (m *Manager) RunHistoryStore() interfaces.RunHistoryStore {
	return m.runs
}

func (m *Manager) DataPath() string {
	return m.market.DataPath()
}

// PurgeArtifacts removes a market's artifacts, forcing a full re-fetch on the next run.
func (m *Manager) PurgeArtifacts(market string) int {
	count := m.market.PurgeArtifacts(market)
	m.logger.Info().Str("market", market).Int("count", count).Msg("Artifacts purged")
	return count
}

func (m *Manager) Close() error {
	var firstErr error
	if err := m.history.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := m.market.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Compile-time check
var _ interfaces.StorageManager = (*Manager)(nil)

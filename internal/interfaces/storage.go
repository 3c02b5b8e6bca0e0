package interfaces

import (
	"context"
	"io/fs"
	"time"

	"github.com/bobmcallan/dayk/internal/models"
)

// StorageManager coordinates the storage backends
type StorageManager interface {
	// CatalogStore returns the catalog snapshot store
	CatalogStore() CatalogStore

	// ManifestStore returns the manifest ledger store
	ManifestStore() ManifestStore

	// ArtifactStore returns the per-target artifact store
	ArtifactStore() ArtifactStore

	// RunHistoryStore returns the run history store
	RunHistoryStore() RunHistoryStore

	// DataPath returns the root directory of the file-based stores
	DataPath() string

	// PurgeArtifacts removes a market's artifacts and returns how many were removed
	PurgeArtifacts(market string) int

	// Close closes all storage backends
	Close() error
}

// CatalogStore persists dated catalog snapshots per market.
type CatalogStore interface {
	// GetSnapshot returns the snapshot for a date key (YYYY-MM-DD), or an error if none
	GetSnapshot(ctx context.Context, market, date string) (*models.CatalogSnapshot, error)

	// LatestSnapshot returns the most recent snapshot of any age, or an error if none
	LatestSnapshot(ctx context.Context, market string) (*models.CatalogSnapshot, error)

	// SaveSnapshot persists a snapshot keyed by its date
	SaveSnapshot(ctx context.Context, snapshot *models.CatalogSnapshot) error

	// PruneSnapshots removes all but the newest keep snapshots and returns how many were removed
	PruneSnapshots(ctx context.Context, market string, keep int) (int, error)
}

// ManifestStore loads and atomically replaces a market's manifest ledger.
type ManifestStore interface {
	// LoadManifest returns the persisted ledger, or nil with no error if none exists
	LoadManifest(ctx context.Context, market string) (*models.ManifestLedger, error)

	// SaveManifest atomically replaces the persisted ledger
	SaveManifest(ctx context.Context, ledger *models.ManifestLedger) error
}

// ArtifactStore holds the per-target price history artifacts.
type ArtifactStore interface {
	// StatArtifact returns file info for a target's artifact
	StatArtifact(market, symbol string) (fs.FileInfo, error)

	// WriteArtifact atomically writes bars and returns the artifact path
	WriteArtifact(ctx context.Context, market, symbol string, bars []models.Bar) (string, error)

	// ReadArtifact reads bars back from a target's artifact
	ReadArtifact(ctx context.Context, market, symbol string) ([]models.Bar, error)

	// ArtifactPath returns where a target's artifact lives
	ArtifactPath(market, symbol string) string
}

// RunHistoryStore records one RunRecord per acquisition run.
type RunHistoryStore interface {
	SaveRun(ctx context.Context, run *models.RunRecord) error
	GetRun(ctx context.Context, id string) (*models.RunRecord, error)
	ListRuns(ctx context.Context, market string, limit int) ([]*models.RunRecord, error)
	PurgeRuns(ctx context.Context, olderThan time.Time) (int, error)
}

package marketfs

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/dayk/internal/common"
	"github.com/bobmcallan/dayk/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(common.NewSilentLogger(), t.TempDir())
	require.NoError(t, err)
	return s
}

func TestArtifact_WriteReadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	as := s.ArtifactStore()

	bars := []models.Bar{
		{Date: time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC), Open: 10, High: 10.5, Low: 9.75, Close: 10.25, Volume: 1000},
		{Date: time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC), Open: 10.25, High: 11, Low: 10, Close: 10.9, Volume: 2500},
	}
	path, err := as.WriteArtifact(ctx, "JP", "7203.TSE", bars)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(s.DataPath(), "jp", "dayK", "7203.TSE.csv"), path)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "date,open,high,low,close,volume", lines[0])
	assert.Equal(t, "2026-10-15,10,10.5,9.75,10.25,1000", lines[1])

	got, err := as.ReadArtifact(ctx, "jp", "7203.TSE")
	require.NoError(t, err)
	assert.Equal(t, bars, got)

	info, err := as.StatArtifact("jp", "7203.TSE")
	require.NoError(t, err)
	assert.Equal(t, int64(len(raw)), info.Size())
}

func TestArtifact_NoTempFilesLeft(t *testing.T) {
	s := newTestStore(t)
	_, err := s.ArtifactStore().WriteArtifact(context.Background(), "us", "AAPL.US", nil)
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Join(s.DataPath(), "us", "dayK"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "AAPL.US.csv", entries[0].Name())
}

func TestArtifact_ReadMissing(t *testing.T) {
	s := newTestStore(t)
	_, err := s.ArtifactStore().ReadArtifact(context.Background(), "us", "NOPE.US")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestArtifact_WriteFailureIsPersistenceError(t *testing.T) {
	s := newTestStore(t)
	// A regular file where the market directory should be makes MkdirAll fail.
	require.NoError(t, os.WriteFile(filepath.Join(s.DataPath(), "cn"), []byte("x"), 0644))

	_, err := s.ArtifactStore().WriteArtifact(context.Background(), "cn", "600519.SHG", nil)
	assert.ErrorIs(t, err, models.ErrPersistence)
}

func TestManifest_LoadMissingReturnsNil(t *testing.T) {
	s := newTestStore(t)
	ledger, err := s.ManifestStore().LoadManifest(context.Background(), "jp")
	require.NoError(t, err)
	assert.Nil(t, ledger)
}

func TestManifest_SaveLoad(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ms := s.ManifestStore()

	at := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	ledger := &models.ManifestLedger{
		Market:    "jp",
		UpdatedAt: at,
		Entries: []models.ManifestEntry{
			{Code: "7203", Name: "Toyota", Suffix: ".TSE", Status: models.StatusDone, LastAttempt: at, Attempts: 1},
			{Code: "6758", Name: "Sony", Suffix: ".TSE", Status: models.StatusPending},
		},
	}
	require.NoError(t, ms.SaveManifest(ctx, ledger))
	assert.FileExists(t, filepath.Join(s.DataPath(), "jp", "lists", "manifest.json"))

	got, err := ms.LoadManifest(ctx, "jp")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, ledger.Entries[0].Code, got.Entries[0].Code)
	assert.True(t, got.Entries[0].LastAttempt.Equal(at))
	assert.Equal(t, models.StatusPending, got.Entries[1].Status)
}

func TestManifest_CorruptLedgerIsError(t *testing.T) {
	s := newTestStore(t)
	dir := filepath.Join(s.DataPath(), "jp", "lists")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "manifest.json"), []byte("{trunc"), 0644))

	_, err := s.ManifestStore().LoadManifest(context.Background(), "jp")
	require.Error(t, err)
}

func TestCatalog_LatestAndPrune(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	cs := s.CatalogStore()

	for _, date := range []string{"2026-10-13", "2026-10-15", "2026-10-14", "2026-10-16"} {
		require.NoError(t, cs.SaveSnapshot(ctx, &models.CatalogSnapshot{
			Market:  "cn",
			Date:    date,
			Source:  "eodhd",
			Targets: []models.Target{{Code: "600519", Suffix: ".SHG"}},
		}))
	}

	latest, err := cs.LatestSnapshot(ctx, "cn")
	require.NoError(t, err)
	assert.Equal(t, "2026-10-16", latest.Date)

	snap, err := cs.GetSnapshot(ctx, "cn", "2026-10-14")
	require.NoError(t, err)
	assert.Equal(t, "600519", snap.Targets[0].Code)

	removed, err := cs.PruneSnapshots(ctx, "cn", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	_, err = cs.GetSnapshot(ctx, "cn", "2026-10-13")
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = cs.GetSnapshot(ctx, "cn", "2026-10-15")
	assert.NoError(t, err)
}

func TestCatalog_LatestSkipsCorruptAndReportsMissing(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	cs := s.CatalogStore()

	_, err := cs.LatestSnapshot(ctx, "us")
	assert.ErrorIs(t, err, models.ErrNotFound)

	require.NoError(t, cs.SaveSnapshot(ctx, &models.CatalogSnapshot{Market: "us", Date: "2026-10-10"}))
	require.NoError(t, os.WriteFile(filepath.Join(s.DataPath(), "us", "lists", "catalog-2026-10-11.json"), []byte("nope"), 0644))

	latest, err := cs.LatestSnapshot(ctx, "us")
	require.NoError(t, err)
	assert.Equal(t, "2026-10-10", latest.Date)
}

func TestPurgeArtifacts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for _, sym := range []string{"A.US", "B.US"} {
		_, err := s.ArtifactStore().WriteArtifact(ctx, "us", sym, nil)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, s.PurgeArtifacts("us"))
}

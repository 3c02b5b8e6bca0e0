package catalog

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/dayk/internal/common"
	"github.com/bobmcallan/dayk/internal/interfaces"
	"github.com/bobmcallan/dayk/internal/models"
	"github.com/bobmcallan/dayk/internal/storage/marketfs"
)

var today = time.Date(2026, 10, 17, 8, 0, 0, 0, time.UTC)

type fakeSource struct {
	name     string
	listings []models.Listing
	err      error
	calls    int
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) ListTargets(context.Context, common.MarketConfig) ([]models.Listing, error) {
	f.calls++
	return f.listings, f.err
}

func listingsN(n int) []models.Listing {
	out := make([]models.Listing, n)
	for i := range out {
		out[i] = models.Listing{Code: fmt.Sprintf("%04d", 1000+i), Name: fmt.Sprintf("Co %d", i)}
	}
	return out
}

func testMarket(min int) common.MarketConfig {
	return common.MarketConfig{
		Name:              "test",
		Exchanges:         []string{"TSE"},
		MinTargets:        min,
		Timezone:          "UTC",
		DefaultSuffix:     ".TSE",
		SnapshotRetention: 3,
	}
}

func newCatalogStore(t *testing.T) interfaces.CatalogStore {
	t.Helper()
	s, err := marketfs.NewStore(common.NewSilentLogger(), t.TempDir())
	require.NoError(t, err)
	return s.CatalogStore()
}

func clock() time.Time { return today }

func TestResolve_PrimaryValidIsPersisted(t *testing.T) {
	store := newCatalogStore(t)
	primary := &fakeSource{name: "eodhd", listings: listingsN(20)}
	svc := NewService(store, primary, common.NewSilentLogger(), WithClock(clock))

	snap, err := svc.Resolve(context.Background(), "JP", testMarket(10))
	require.NoError(t, err)
	assert.Equal(t, "jp", snap.Market)
	assert.Equal(t, "2026-10-17", snap.Date)
	assert.Equal(t, "eodhd", snap.Source)
	assert.Len(t, snap.Targets, 20)

	saved, err := store.GetSnapshot(context.Background(), "jp", "2026-10-17")
	require.NoError(t, err)
	assert.Len(t, saved.Targets, 20)
}

func TestResolve_SameDaySnapshotSkipsSources(t *testing.T) {
	store := newCatalogStore(t)
	require.NoError(t, store.SaveSnapshot(context.Background(), &models.CatalogSnapshot{
		Market: "jp", Date: "2026-10-17", Source: "eodhd",
		Targets: []models.Target{{Code: "7203", Suffix: ".TSE"}},
	}))
	primary := &fakeSource{name: "eodhd", listings: listingsN(20)}
	svc := NewService(store, primary, common.NewSilentLogger(), WithClock(clock))

	snap, err := svc.Resolve(context.Background(), "jp", testMarket(1))
	require.NoError(t, err)
	assert.Len(t, snap.Targets, 1)
	assert.Zero(t, primary.calls)
}

func TestResolve_BelowMinimumFallsBackToLastSnapshot(t *testing.T) {
	store := newCatalogStore(t)
	prior := &models.CatalogSnapshot{Market: "jp", Date: "2026-10-10", Source: "eodhd", Targets: make([]models.Target, 1200)}
	for i := range prior.Targets {
		prior.Targets[i] = models.Target{Code: fmt.Sprintf("%04d", i), Suffix: ".TSE"}
	}
	require.NoError(t, store.SaveSnapshot(context.Background(), prior))

	primary := &fakeSource{name: "eodhd", listings: listingsN(50)}
	svc := NewService(store, primary, common.NewSilentLogger(), WithClock(clock))

	snap, err := svc.Resolve(context.Background(), "jp", testMarket(1000))
	require.NoError(t, err)
	assert.Equal(t, "2026-10-10", snap.Date)
	assert.Len(t, snap.Targets, 1200)

	// The rejected listing must not become today's snapshot.
	_, err = store.GetSnapshot(context.Background(), "jp", "2026-10-17")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestResolve_SecondaryUsedWhenPrimaryFails(t *testing.T) {
	store := newCatalogStore(t)
	primary := &fakeSource{name: "eodhd", err: errors.New("connection reset")}
	secondary := &fakeSource{name: "listing", listings: listingsN(15)}
	svc := NewService(store, primary, common.NewSilentLogger(), WithClock(clock), WithSecondary("JP", secondary))

	snap, err := svc.Resolve(context.Background(), "jp", testMarket(10))
	require.NoError(t, err)
	assert.Equal(t, "listing", snap.Source)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, secondary.calls)
}

func TestResolve_SecondaryOnlyForItsMarket(t *testing.T) {
	store := newCatalogStore(t)
	primary := &fakeSource{name: "eodhd", err: errors.New("down")}
	secondary := &fakeSource{name: "listing", listings: listingsN(15)}
	svc := NewService(store, primary, common.NewSilentLogger(), WithClock(clock), WithSecondary("cn", secondary))

	_, err := svc.Resolve(context.Background(), "jp", testMarket(10))
	assert.ErrorIs(t, err, models.ErrCatalogUnavailable)
	assert.Zero(t, secondary.calls)
}

func TestResolve_NothingAvailable(t *testing.T) {
	store := newCatalogStore(t)
	primary := &fakeSource{name: "eodhd", listings: listingsN(5)}
	svc := NewService(store, primary, common.NewSilentLogger(), WithClock(clock))

	_, err := svc.Resolve(context.Background(), "jp", testMarket(10))
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrCatalogUnavailable))
}

func TestResolve_EmptyListingRejectedEvenWithZeroMinimum(t *testing.T) {
	store := newCatalogStore(t)
	primary := &fakeSource{name: "eodhd"}
	svc := NewService(store, primary, common.NewSilentLogger(), WithClock(clock))

	_, err := svc.Resolve(context.Background(), "jp", testMarket(0))
	assert.ErrorIs(t, err, models.ErrCatalogUnavailable)
}

func TestResolve_PrunesOldSnapshots(t *testing.T) {
	store := newCatalogStore(t)
	ctx := context.Background()
	for _, d := range []string{"2026-10-12", "2026-10-13", "2026-10-14", "2026-10-15"} {
		require.NoError(t, store.SaveSnapshot(ctx, &models.CatalogSnapshot{Market: "jp", Date: d}))
	}
	primary := &fakeSource{name: "eodhd", listings: listingsN(3)}
	svc := NewService(store, primary, common.NewSilentLogger(), WithClock(clock))

	_, err := svc.Resolve(ctx, "jp", testMarket(1))
	require.NoError(t, err)

	_, err = store.GetSnapshot(ctx, "jp", "2026-10-13")
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = store.GetSnapshot(ctx, "jp", "2026-10-14")
	assert.NoError(t, err)
}

package badger

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/bobmcallan/dayk/internal/common"
	"github.com/bobmcallan/dayk/internal/models"
)

// --- Test helpers ---

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	store, err := NewStore(testLogger(), filepath.Join(dir, "badger"))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func testLogger() *common.Logger {
	return common.NewLogger("error")
}

// --- Store tests ---

func TestStore_OpenClose(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(testLogger(), filepath.Join(dir, "badger"))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	if store.DB() == nil {
		t.Fatal("expected non-nil DB")
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}

func TestStore_CloseNilDB(t *testing.T) {
	store := &Store{}
	if err := store.Close(); err != nil {
		t.Fatalf("Close on nil DB should not error: %v", err)
	}
}

// --- Run storage tests ---

func TestRunStorage_SaveGet(t *testing.T) {
	rs := NewRunStorage(newTestStore(t), testLogger())
	ctx := context.Background()

	_, err := rs.GetRun(ctx, "missing")
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	run := &models.RunRecord{
		Market:    "JP",
		StartedAt: time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC),
		Stats:     models.RunStats{Total: 3, Success: 2, Fail: 1},
	}
	if err := rs.SaveRun(ctx, run); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}
	if run.ID == "" {
		t.Fatal("expected SaveRun to assign an ID")
	}

	got, err := rs.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got.Market != "jp" {
		t.Errorf("market = %q, want jp", got.Market)
	}
	if got.Stats.Success != 2 {
		t.Errorf("stats.success = %d, want 2", got.Stats.Success)
	}
}

func TestRunStorage_ListByMarketNewestFirst(t *testing.T) {
	rs := NewRunStorage(newTestStore(t), testLogger())
	ctx := context.Background()
	base := time.Date(2026, 10, 10, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		if err := rs.SaveRun(ctx, &models.RunRecord{Market: "us", StartedAt: base.AddDate(0, 0, i)}); err != nil {
			t.Fatalf("SaveRun failed: %v", err)
		}
	}
	if err := rs.SaveRun(ctx, &models.RunRecord{Market: "cn", StartedAt: base}); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	runs, err := rs.ListRuns(ctx, "us", 2)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if !runs[0].StartedAt.Equal(base.AddDate(0, 0, 3)) {
		t.Errorf("first run started %v, want newest", runs[0].StartedAt)
	}

	all, err := rs.ListRuns(ctx, "", 0)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(all) != 5 {
		t.Errorf("expected 5 runs across markets, got %d", len(all))
	}
}

func TestRunStorage_Purge(t *testing.T) {
	rs := NewRunStorage(newTestStore(t), testLogger())
	ctx := context.Background()
	base := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		if err := rs.SaveRun(ctx, &models.RunRecord{Market: "jp", StartedAt: base.AddDate(0, 0, i)}); err != nil {
			t.Fatalf("SaveRun failed: %v", err)
		}
	}

	removed, err := rs.PurgeRuns(ctx, base.AddDate(0, 0, 3))
	if err != nil {
		t.Fatalf("PurgeRuns failed: %v", err)
	}
	if removed != 3 {
		t.Errorf("removed = %d, want 3", removed)
	}

	left, _ := rs.ListRuns(ctx, "jp", 0)
	if len(left) != 2 {
		t.Errorf("expected 2 runs left, got %d", len(left))
	}
}

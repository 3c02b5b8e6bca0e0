package badger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/timshannon/badgerhold/v4"

	"github.com/bobmcallan/dayk/internal/common"
	"github.com/bobmcallan/dayk/internal/interfaces"
	"github.com/bobmcallan/dayk/internal/models"
)

type runStorage struct {
	store  *Store
	logger *common.Logger
}

// NewRunStorage creates a RunHistoryStore backed by BadgerHold.
func NewRunStorage(store *Store, logger *common.Logger) interfaces.RunHistoryStore {
	return &runStorage{store: store, logger: logger}
}

func (s *runStorage) SaveRun(_ context.Context, run *models.RunRecord) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	run.Market = strings.ToLower(run.Market)
	if err := s.store.db.Upsert(run.ID, run); err != nil {
		return fmt.Errorf("failed to save run %s: %w", run.ID, err)
	}
	s.logger.Debug().Str("run_id", run.ID).Str("market", run.Market).Msg("Run record saved")
	return nil
}

func (s *runStorage) GetRun(_ context.Context, id string) (*models.RunRecord, error) {
	var run models.RunRecord
	if err := s.store.db.Get(id, &run); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, fmt.Errorf("run '%s': %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get run '%s': %w", id, err)
	}
	return &run, nil
}

// ListRuns returns a market's runs, most recent first. An empty market lists all markets.
func (s *runStorage) ListRuns(_ context.Context, market string, limit int) ([]*models.RunRecord, error) {
	var query *badgerhold.Query
	if market != "" {
		query = badgerhold.Where("Market").Eq(strings.ToLower(market)).Index("Market")
	} else {
		query = &badgerhold.Query{}
	}
	query = query.SortBy("StartedAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}

	var runs []models.RunRecord
	if err := s.store.db.Find(&runs, query); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	result := make([]*models.RunRecord, len(runs))
	for i := range runs {
		result[i] = &runs[i]
	}
	return result, nil
}

// PurgeRuns deletes runs that started before olderThan and returns how many were removed.
func (s *runStorage) PurgeRuns(_ context.Context, olderThan time.Time) (int, error) {
	query := badgerhold.Where("StartedAt").Lt(olderThan)
	count, err := s.store.db.Count(&models.RunRecord{}, query)
	if err != nil {
		return 0, fmt.Errorf("failed to count runs: %w", err)
	}
	if count == 0 {
		return 0, nil
	}
	if err := s.store.db.DeleteMatching(&models.RunRecord{}, badgerhold.Where("StartedAt").Lt(olderThan)); err != nil {
		return 0, fmt.Errorf("failed to purge runs: %w", err)
	}
	return int(count), nil
}

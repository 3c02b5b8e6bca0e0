// Package manifest holds the persisted per-target status ledger for one market.
//
// The ledger is the resume point of the acquisition pipeline: new catalog targets are
// merged in as pending, fetch outcomes are recorded against them, and the whole ledger
// is atomically replaced on every persist.
package manifest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bobmcallan/dayk/internal/common"
	"github.com/bobmcallan/dayk/internal/interfaces"
	"github.com/bobmcallan/dayk/internal/models"
)

// Options tune which entries are retryable.
type Options struct {
	// EmptyRetryCap stops re-dispatching empty entries once their attempt count
	// reaches the cap. 0 retries empty entries on every run.
	EmptyRetryCap int

	// RefreshDone re-opens done entries last attempted before today.
	RefreshDone bool

	Location *time.Location
	Now      func() time.Time
}

// Manifest is the in-memory ledger for one market. It is safe for concurrent use.
type Manifest struct {
	mu      sync.Mutex
	entries map[string]*models.ManifestEntry
	order   []string

	persistMu sync.Mutex

	market string
	store  interfaces.ManifestStore
	opts   Options
	logger *common.Logger
}

// Load reads the market's ledger from the store, or starts an empty one.
func Load(ctx context.Context, store interfaces.ManifestStore, market string, logger *common.Logger, opts Options) (*Manifest, error) {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		logger = common.NewSilentLogger()
	}

	m := &Manifest{
		entries: make(map[string]*models.ManifestEntry),
		market:  strings.ToLower(market),
		store:   store,
		opts:    opts,
		logger:  logger,
	}

	ledger, err := store.LoadManifest(ctx, m.market)
	if err != nil {
		return nil, fmt.Errorf("failed to load manifest: %w", err)
	}
	if ledger == nil {
		logger.Info().Str("market", m.market).Msg("No manifest found, starting empty ledger")
		return m, nil
	}

	for _, e := range ledger.Entries {
		e.Code = models.NormalizeCode(e.Code)
		if e.Code == "" {
			continue
		}
		if _, dup := m.entries[e.Code]; dup {
			continue
		}
		if !e.Status.Valid() {
			e.Status = models.StatusPending
		}
		entry := e
		m.entries[e.Code] = &entry
		m.order = append(m.order, e.Code)
	}

	logger.Info().Str("market", m.market).Int("entries", len(m.order)).Msg("Manifest loaded")
	return m, nil
}

// Market returns the market this ledger belongs to.
func (m *Manifest) Market() string {
	return m.market
}

// Merge inserts a pending entry for every target whose code is not yet in the ledger.
// Existing entries are left untouched. Returns the number of entries added.
func (m *Manifest) Merge(targets []models.Target) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	added := 0
	for _, t := range targets {
		code := models.NormalizeCode(t.Code)
		if code == "" {
			continue
		}
		if _, ok := m.entries[code]; ok {
			continue
		}
		m.entries[code] = &models.ManifestEntry{
			Code:   code,
			Name:   t.Name,
			Suffix: t.Suffix,
			Status: models.StatusPending,
		}
		m.order = append(m.order, code)
		added++
	}
	return added
}

// Retryable returns the targets that should be dispatched this run, in ledger order.
func (m *Manifest) Retryable() []models.Target {
	m.mu.Lock()
	defer m.mu.Unlock()

	today := common.DateKey(m.opts.Now(), m.opts.Location)
	var targets []models.Target
	for _, code := range m.order {
		e := m.entries[code]
		if m.retryable(e, today) {
			targets = append(targets, e.Target())
		}
	}
	return targets
}

func (m *Manifest) retryable(e *models.ManifestEntry, today string) bool {
	switch e.Status {
	case models.StatusPending, models.StatusFailed:
		return true
	case models.StatusEmpty:
		return m.opts.EmptyRetryCap <= 0 || e.EmptyStreak < m.opts.EmptyRetryCap
	case models.StatusDone:
		if !m.opts.RefreshDone {
			return false
		}
		return e.LastAttempt.IsZero() || common.DateKey(e.LastAttempt, m.opts.Location) < today
	}
	return false
}

// Record applies a fetch outcome to the entry for code. Aborted outcomes and unknown
// codes are ignored. A cached outcome marks the entry done without counting an attempt,
// since no request was made. Returns true if the ledger changed.
func (m *Manifest) Record(code string, outcome models.FetchOutcome) bool {
	if outcome == models.OutcomeAborted {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[models.NormalizeCode(code)]
	if !ok {
		return false
	}
	e.Status = outcome.Status()
	e.LastAttempt = m.opts.Now()
	if outcome != models.OutcomeCached {
		e.Attempts++
	}
	if e.Status == models.StatusEmpty {
		e.EmptyStreak++
	} else {
		e.EmptyStreak = 0
	}
	return true
}

// Persist atomically replaces the stored ledger with the current state.
func (m *Manifest) Persist(ctx context.Context) error {
	m.persistMu.Lock()
	defer m.persistMu.Unlock()

	ledger := &models.ManifestLedger{
		Market:    m.market,
		UpdatedAt: m.opts.Now(),
		Entries:   m.Entries(),
	}
	if err := m.store.SaveManifest(ctx, ledger); err != nil {
		return err
	}
	m.logger.Debug().Str("market", m.market).Int("entries", len(ledger.Entries)).Msg("Manifest persisted")
	return nil
}

// Entries returns a copy of all entries in ledger order.
func (m *Manifest) Entries() []models.ManifestEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.ManifestEntry, len(m.order))
	for i, code := range m.order {
		out[i] = *m.entries[code]
	}
	return out
}

// Entry returns the entry for code.
func (m *Manifest) Entry(code string) (models.ManifestEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[models.NormalizeCode(code)]
	if !ok {
		return models.ManifestEntry{}, false
	}
	return *e, true
}

// Len returns the number of entries.
func (m *Manifest) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.order)
}

// Reset returns every entry to pending with its counters cleared and reports how many
// entries it touched.
func (m *Manifest) Reset() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, code := range m.order {
		e := m.entries[code]
		e.Status = models.StatusPending
		e.Attempts = 0
		e.EmptyStreak = 0
		e.LastAttempt = time.Time{}
	}
	return len(m.order)
}

package cachegate

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
	"github.com/bobmcallan/dayk/internal/interfaces"
	"github.com/bobmcallan/dayk/internal/models"
	"github.com/bobmcallan/dayk/internal/storage/marketfs"
)

var target = models.Target{Code: "7203", Suffix: ".TSE"}

func newArtifacts(t *testing.T) interfaces.ArtifactStore {
	t.Helper()
	s, err := marketfs.NewStore(common.NewSilentLogger(), t.TempDir())
	require.NoError(t, err)
	return s.ArtifactStore()
}

func writeArtifact(t *testing.T, as interfaces.ArtifactStore, size int, modTime time.Time) {
	t.Helper()
	path := as.ArtifactPath("jp", target.Symbol())
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("x", size)), 0644))
	require.NoError(t, os.Chtimes(path, modTime, modTime))
}

func TestIsFresh(t *testing.T) {
	now := time.Date(2026, 10, 17, 15, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	tests := []struct {
		name       string
		size       int
		modTime    time.Time
		maxAgeDays int
		want       bool
	}{
		{"same day and large", 5000, now.Add(-2 * time.Hour), 0, true},
		{"same day but tiny", 1000, now.Add(-time.Hour), 0, false},
		{"yesterday", 5000, now.Add(-24 * time.Hour), 0, false},
		{"yesterday within max age", 5000, now.Add(-24 * time.Hour), 1, true},
		{"older than max age", 5000, now.AddDate(0, 0, -3), 2, false},
		{"future mtime", 5000, now.AddDate(0, 0, 2), 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			as := newArtifacts(t)
			writeArtifact(t, as, tt.size, tt.modTime)

			g := NewGate(as, common.CacheConfig{MinBytes: 1000, MaxAgeDays: tt.maxAgeDays},
				WithClock(clock), WithLocation(time.UTC))
			assert.Equal(t, tt.want, g.IsFresh("jp", target))
		})
	}
}

func TestIsFresh_MissingArtifact(t *testing.T) {
	g := NewGate(newArtifacts(t), common.CacheConfig{MinBytes: 1000})
	assert.False(t, g.IsFresh("jp", target))
}

func TestIsFresh_UsesMarketTimezone(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*3600)
	// 23:30 UTC on the 16th is already the 17th in Tokyo.
	mod := time.Date(2026, 10, 16, 23, 30, 0, 0, time.UTC)
	now := time.Date(2026, 10, 17, 2, 0, 0, 0, time.UTC)

	as := newArtifacts(t)
	writeArtifact(t, as, 2000, mod)

	g := NewGate(as, common.CacheConfig{MinBytes: 1000}, WithClock(func() time.Time { return now }), WithLocation(tokyo))
	assert.True(t, g.IsFresh("jp", target))

	// In New York the write happened the previous day.
	ny := time.FixedZone("EST", -5*3600)
	g = NewGate(as, common.CacheConfig{MinBytes: 1000}, WithClock(func() time.Time { return now.Add(6 * time.Hour) }), WithLocation(ny))
	assert.False(t, g.IsFresh("jp", target))
}

func TestIsFresh_RealArtifactWrite(t *testing.T) {
	as := newArtifacts(t)
	bars := make([]models.Bar, 60)
	start := time.Now().AddDate(0, 0, -60)
	for i := range bars {
		bars[i] = models.Bar{Date: start.AddDate(0, 0, i), Open: 100, High: 101, Low: 99, Close: 100.5, Volume: 123456}
	}
	_, err := as.WriteArtifact(context.Background(), "jp", target.Symbol(), bars)
	require.NoError(t, err)

	g := NewGate(as, common.CacheConfig{MinBytes: 1000})
	assert.True(t, g.IsFresh("jp", target))
}

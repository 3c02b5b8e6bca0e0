package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Defaults(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, 4, cfg.Fetch.Concurrency)
	assert.Equal(t, 3, cfg.Fetch.MaxAttempts)
	assert.Equal(t, 730, cfg.Fetch.LookbackDays)
	assert.Equal(t, int64(1000), cfg.Cache.MinBytes)
	assert.Equal(t, []string{"cn", "jp", "us"}, cfg.MarketNames())
	require.NoError(t, cfg.Validate())
}

func TestConfig_DefaultMarketThresholds(t *testing.T) {
	cfg := NewDefaultConfig()

	jp, err := cfg.Market("JP")
	require.NoError(t, err)
	assert.Equal(t, 3800, jp.MinTargets)
	assert.Equal(t, 4, jp.TruncateCode)

	us, err := cfg.Market("us")
	require.NoError(t, err)
	assert.Equal(t, 3000, us.MinTargets)

	cn, err := cfg.Market("cn")
	require.NoError(t, err)
	assert.Equal(t, 1000, cn.MinTargets)
	assert.Equal(t, ".SHG", cn.SuffixRules["6"])
}

func TestConfig_UnknownMarket(t *testing.T) {
	cfg := NewDefaultConfig()
	_, err := cfg.Market("uk")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown market 'uk'")
}

func TestConfig_DurationAccessors(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, 20*time.Second, cfg.Fetch.GetTimeout())
	assert.Equal(t, 730*24*time.Hour, cfg.Fetch.GetLookback())

	lo, hi := cfg.Fetch.GetRateLimitBackoff()
	assert.Equal(t, 30*time.Second, lo)
	assert.Equal(t, 60*time.Second, hi)

	cfg.Fetch.Timeout = "not-a-duration"
	assert.Equal(t, 20*time.Second, cfg.Fetch.GetTimeout())

	cfg.Fetch.JitterMin = "0s"
	cfg.Fetch.JitterMax = "0s"
	jmin, jmax := cfg.Fetch.GetJitter()
	assert.Zero(t, jmin)
	assert.Zero(t, jmax)
}

func TestConfig_ConcurrencyFor(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Fetch.Concurrency = 4

	assert.Equal(t, 4, cfg.ConcurrencyFor(MarketConfig{Concurrency: 5}))
	assert.Equal(t, 3, cfg.ConcurrencyFor(MarketConfig{Concurrency: 3}))
	assert.Equal(t, 4, cfg.ConcurrencyFor(MarketConfig{}))
}

func TestConfig_ValidateRejectsConcurrencyAboveCeiling(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Fetch.Concurrency = 16

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Concurrency")
}

func TestConfig_ValidateRejectsZeroAttempts(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Fetch.MaxAttempts = 0
	require.Error(t, cfg.Validate())
}

func TestConfig_ValidateRejectsMarketWithoutExchanges(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Markets["kr"] = MarketConfig{Name: "Korea"}
	require.Error(t, cfg.Validate())
}

func TestConfig_EnvOverrides(t *testing.T) {
	t.Setenv("DAYK_ENV", "production")
	t.Setenv("DAYK_CONCURRENCY", "3")
	t.Setenv("DAYK_DATA_PATH", "/srv/dayk")
	t.Setenv("EODHD_API_KEY", "from-env")

	cfg := NewDefaultConfig()
	applyEnvOverrides(cfg)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 3, cfg.Fetch.Concurrency)
	assert.Equal(t, "/srv/dayk", cfg.Storage.DataPath)
	assert.Equal(t, "/srv/dayk/history", cfg.Storage.HistoryPath)
	assert.Equal(t, "from-env", cfg.Clients.EODHD.APIKey)
}

func TestLoadConfig_LayeredFiles(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "base.toml")
	override := filepath.Join(dir, "override.toml")

	require.NoError(t, os.WriteFile(base, []byte(`
environment = "staging"

[fetch]
concurrency = 5
max_attempts = 4
`), 0644))
	require.NoError(t, os.WriteFile(override, []byte(`
[fetch]
concurrency = 3

[markets.hk]
name = "Hong Kong"
exchanges = ["HK"]
min_targets = 2000
default_suffix = ".HK"
`), 0644))

	cfg, err := LoadConfig(base, filepath.Join(dir, "missing.toml"), override)
	require.NoError(t, err)

	assert.Equal(t, "staging", cfg.Environment)
	assert.Equal(t, 3, cfg.Fetch.Concurrency)
	assert.Equal(t, 4, cfg.Fetch.MaxAttempts)

	hk, err := cfg.Market("hk")
	require.NoError(t, err)
	assert.Equal(t, 2000, hk.MinTargets)
	assert.Equal(t, ".HK", hk.DefaultSuffix)
}

func TestLoadConfig_InvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("fetch = [unterminated"), 0644))

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestDateHelpers(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*3600)
	a := time.Date(2026, 10, 16, 16, 0, 0, 0, time.UTC) // 2026-10-17 01:00 JST
	b := time.Date(2026, 10, 17, 3, 0, 0, 0, time.UTC)

	assert.True(t, SameDay(a, b, tokyo))
	assert.False(t, SameDay(a, b, time.UTC))
	assert.Equal(t, "2026-10-17", DateKey(a, tokyo))
	assert.Equal(t, 1, DaysBetween(a, b, time.UTC))
	assert.Equal(t, 0, DaysBetween(a, b, tokyo))
}

func TestLoadVersionFile(t *testing.T) {
	oldVersion, oldBuild, oldCommit := Version, Build, GitCommit
	t.Cleanup(func() { Version, Build, GitCommit = oldVersion, oldBuild, oldCommit })

	Version, Build, GitCommit = "dev", "unknown", "v-from-ldflags"
	path := filepath.Join(t.TempDir(), ".version")
	require.NoError(t, os.WriteFile(path, []byte("# build info\nversion: 1.2.0\nbuild: 2026-10-17\ncommit: abc123\n"), 0644))

	loadVersionFile(path)

	assert.Equal(t, "1.2.0", Version)
	assert.Equal(t, "2026-10-17", Build)
	assert.Equal(t, "v-from-ldflags", GitCommit)
}

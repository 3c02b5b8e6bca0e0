// Package marketfs implements file-based storage for per-market acquisition data:
// price artifacts, the manifest ledger and dated catalog snapshots.
//
// Layout under the data path:
//
//	<market>/dayK/<symbol>.csv
//	<market>/lists/manifest.json
//	<market>/lists/catalog-<YYYY-MM-DD>.json
package marketfs

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bobmcallan/dayk/internal/common"
	"github.com/bobmcallan/dayk/internal/interfaces"
	"github.com/bobmcallan/dayk/internal/models"
)

const (
	artifactSubdir = "dayK"
	listsSubdir    = "lists"
)

// Store provides file-based storage rooted at a data path.
type Store struct {
	basePath string
	logger   *common.Logger
}

// NewStore creates a new market file store.
func NewStore(logger *common.Logger, path string) (*Store, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create market store path %s: %w", path, err)
	}

	logger.Info().Str("path", path).Msg("MarketFS store opened")
	return &Store{
		basePath: path,
		logger:   logger,
	}, nil
}

// DataPath returns the base data path.
func (s *Store) DataPath() string {
	return s.basePath
}

// CatalogStore returns the catalog snapshot storage.
func (s *Store) CatalogStore() interfaces.CatalogStore {
	return &catalogStorage{store: s}
}

// ManifestStore returns the manifest ledger storage.
func (s *Store) ManifestStore() interfaces.ManifestStore {
	return &manifestStorage{store: s}
}

// ArtifactStore returns the artifact storage.
func (s *Store) ArtifactStore() interfaces.ArtifactStore {
	return &artifactStorage{store: s}
}

// PurgeArtifacts removes all artifacts for a market and returns the count.
func (s *Store) PurgeArtifacts(market string) int {
	return purgeAllFiles(s.artifactDir(market))
}

// Close is a no-op for file-based storage.
func (s *Store) Close() error {
	return nil
}

func (s *Store) marketDir(market string) string {
	return filepath.Join(s.basePath, sanitizeKey(strings.ToLower(market)))
}

func (s *Store) listsDir(market string) string {
	return filepath.Join(s.marketDir(market), listsSubdir)
}

func (s *Store) artifactDir(market string) string {
	return filepath.Join(s.marketDir(market), artifactSubdir)
}

// --- helpers ---

func sanitizeKey(key string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", ":", "_", "..", "_")
	return r.Replace(key)
}

func filePath(dir, key string) string {
	return filepath.Join(dir, sanitizeKey(key)+".json")
}

func readJSON(dir, key string, dest interface{}) error {
	path := filePath(dir, key)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("'%s': %w", key, models.ErrNotFound)
		}
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(data) == 0 {
		return fmt.Errorf("'%s' is empty", key)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

func writeJSON(dir, key string, data interface{}) error {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	jsonData = append(jsonData, '\n')
	return writeAtomic(dir, sanitizeKey(key)+".json", jsonData)
}

// writeAtomic writes data to dir/name through a temp file and rename, so readers
// only ever see the previous or the new complete file.
func writeAtomic(dir, name string, data []byte) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	target := filepath.Join(dir, name)

	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// listKeys returns the keys of .json files in dir starting with prefix, sorted.
func listKeys(dir, prefix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}
	var keys []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".tmp-") {
			continue
		}
		if strings.HasSuffix(name, ".json") && strings.HasPrefix(name, prefix) {
			keys = append(keys, strings.TrimSuffix(name, ".json"))
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func deleteJSON(dir, key string) error {
	err := os.Remove(filePath(dir, key))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func purgeAllFiles(dir string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	count := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if os.Remove(filepath.Join(dir, e.Name())) == nil {
			count++
		}
	}
	return count
}

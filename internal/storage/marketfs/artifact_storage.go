package marketfs

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/bobmcallan/dayk/internal/models"
)

const artifactExt = ".csv"

var artifactHeader = []string{"date", "open", "high", "low", "close", "volume"}

type artifactStorage struct {
	store *Store
}

func (a *artifactStorage) ArtifactPath(market, symbol string) string {
	return filepath.Join(a.store.artifactDir(market), sanitizeKey(symbol)+artifactExt)
}

func (a *artifactStorage) StatArtifact(market, symbol string) (fs.FileInfo, error) {
	return os.Stat(a.ArtifactPath(market, symbol))
}

// WriteArtifact replaces the artifact for symbol with bars, oldest first.
func (a *artifactStorage) WriteArtifact(_ context.Context, market, symbol string, bars []models.Bar) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(artifactHeader); err != nil {
		return "", err
	}
	for _, b := range bars {
		row := []string{
			b.Date.Format("2006-01-02"),
			strconv.FormatFloat(b.Open, 'f', -1, 64),
			strconv.FormatFloat(b.High, 'f', -1, 64),
			strconv.FormatFloat(b.Low, 'f', -1, 64),
			strconv.FormatFloat(b.Close, 'f', -1, 64),
			strconv.FormatInt(b.Volume, 10),
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("%w: encode %s: %v", models.ErrPersistence, symbol, err)
	}

	path := a.ArtifactPath(market, symbol)
	if err := writeAtomic(filepath.Dir(path), filepath.Base(path), buf.Bytes()); err != nil {
		return "", fmt.Errorf("%w: artifact %s: %v", models.ErrPersistence, symbol, err)
	}
	return path, nil
}

func (a *artifactStorage) ReadArtifact(_ context.Context, market, symbol string) ([]models.Bar, error) {
	f, err := os.Open(a.ArtifactPath(market, symbol))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("artifact %s: %w", symbol, models.ErrNotFound)
		}
		return nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse artifact %s: %w", symbol, err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	bars := make([]models.Bar, 0, len(records)-1)
	for i, rec := range records[1:] {
		bar, err := parseBar(rec)
		if err != nil {
			return nil, fmt.Errorf("artifact %s row %d: %w", symbol, i+2, err)
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

func parseBar(rec []string) (models.Bar, error) {
	if len(rec) != len(artifactHeader) {
		return models.Bar{}, fmt.Errorf("expected %d fields, got %d", len(artifactHeader), len(rec))
	}
	date, err := time.Parse("2006-01-02", rec[0])
	if err != nil {
		return models.Bar{}, err
	}
	var vals [4]float64
	for i := range vals {
		if vals[i], err = strconv.ParseFloat(rec[i+1], 64); err != nil {
			return models.Bar{}, err
		}
	}
	vol, err := strconv.ParseInt(rec[5], 10, 64)
	if err != nil {
		return models.Bar{}, err
	}
	return models.Bar{Date: date, Open: vals[0], High: vals[1], Low: vals[2], Close: vals[3], Volume: vol}, nil
}

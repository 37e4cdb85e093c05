// Package series persists reduced series between diagnostic runs.
package series

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/apex/log"

	"go.ngs.io/climate-diag/internal/domain"
)

// Record is one persisted series and the source files folded into it.
type Record struct {
	Key     domain.SeriesKey
	Series  domain.TimeSeries
	Sources []string
}

// Store is a durable SeriesKey -> TimeSeries store.
type Store interface {
	// Load returns every stored record. A store that was never written
	// loads empty.
	Load() ([]Record, error)
	// Save inserts or replaces the given records.
	Save(records []Record) error
	// Path is the directory backing the store.
	Path() string
}

// Dir resolves the base cache directory.
// Precedence:
//  1. DIAG_CACHE_DIR, if set and non-empty
//  2. <workDir>/cache, if workDir is non-empty
//  3. os.UserCacheDir()/climate-diag
func Dir(workDir string) (string, error) {
	if c, ok := os.LookupEnv("DIAG_CACHE_DIR"); ok && c != "" {
		return c, nil
	}
	if workDir != "" {
		return filepath.Join(workDir, "cache"), nil
	}
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve cache directory: %w", err)
	}
	return filepath.Join(dir, "climate-diag"), nil
}

// StorePath returns the store directory for a variable.
func StorePath(base, shortName string) string {
	return filepath.Join(base, shortName)
}

// Purge removes the store of one variable. It is the only way stored series
// are ever deleted.
func Purge(base, shortName string) error {
	if shortName == "" || shortName != filepath.Base(shortName) || shortName == ".." {
		return fmt.Errorf("invalid short name %q", shortName)
	}
	dir := StorePath(base, shortName)
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		log.Debugf("no cache at %s", dir)
		return nil
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to purge cache %s: %w", dir, err)
	}
	log.Infof("removed cache %s", dir)
	return nil
}

// encodeKey hashes k with MD5 and returns the hex string.
func encodeKey(k domain.SeriesKey) string {
	h := md5.New()
	_, _ = h.Write([]byte(k.String()))
	return hex.EncodeToString(h.Sum(nil))
}

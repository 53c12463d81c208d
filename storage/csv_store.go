package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"price-tracker/models"
	"price-tracker/utils"
)

var _ PriceStore = (*CSVStore)(nil)

// csvHeader is the persisted column layout, one row per (plu, date).
var csvHeader = []string{
	"plu", "name", "brand", "raw_category", "principal_category",
	"price_current", "price_regular", "date",
}

// CSVStore persists the price history as a single flat CSV table.
// The whole table is held in memory; every Upsert rewrites the file through
// a temp file and an atomic rename, under an exclusive lock file.
type CSVStore struct {
	path        string
	lockTimeout time.Duration
	logger      *utils.Logger

	mu sync.RWMutex
	t  *table
}

// NewCSVStore opens (or creates) the table at path and loads it.
// A row that cannot be parsed fails with ErrCorrupt.
func NewCSVStore(path string, lockTimeout time.Duration, logger *utils.Logger) (*CSVStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create store dir: %w", err)
	}

	t, err := readCSVTable(path)
	if err != nil {
		return nil, err
	}

	s := &CSVStore{path: path, lockTimeout: lockTimeout, logger: logger, t: t}
	logger.Debug("[csv] Loaded %s: %d dates", path, len(t.days))
	return s, nil
}

// Upsert replaces the records of date and persists the table.
// The file on disk is re-read under the lock so a concurrent writer's days are kept.
func (s *CSVStore) Upsert(date string, records []*models.ProductPriceRecord) error {
	if err := checkUpsert(date, records); err != nil {
		return fmt.Errorf("csv: upsert: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	unlock, err := acquireFileLock(s.path+".lock", s.lockTimeout)
	if err != nil {
		return fmt.Errorf("csv: %w", err)
	}
	defer unlock()

	current, err := readCSVTable(s.path)
	if err != nil {
		return err
	}
	next := current.clone()
	next.replace(date, records)

	if err := writeCSVTable(s.path, next); err != nil {
		return err
	}
	s.t = next
	s.logger.Debug("[csv] Upserted %d records for %s", len(records), date)
	return nil
}

// RecordsFor returns the records of date.
func (s *CSVStore) RecordsFor(date string) ([]*models.ProductPriceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.t.recordsFor(date), nil
}

// Dates returns the stored dates, ascending.
func (s *CSVStore) Dates() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.t.dates(), nil
}

func (s *CSVStore) Close() error { return nil }

func readCSVTable(path string) (*table, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return newTable(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("csv: open %q: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(csvHeader)

	header, err := r.Read()
	if err == io.EOF {
		return newTable(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("csv: %w: header: %v", ErrCorrupt, err)
	}
	for i, col := range csvHeader {
		if header[i] != col {
			return nil, fmt.Errorf("csv: %w: column %d is %q, want %q", ErrCorrupt, i, header[i], col)
		}
	}

	l := newLoader()
	for line := 2; ; line++ {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv: %w: %v", ErrCorrupt, err)
		}
		rec, err := parseCSVRow(row)
		if err != nil {
			return nil, fmt.Errorf("csv: line %d: %w", line, err)
		}
		if err := l.add(rec); err != nil {
			return nil, fmt.Errorf("csv: line %d: %w", line, err)
		}
	}
	return l.done(), nil
}

func parseCSVRow(row []string) (*models.ProductPriceRecord, error) {
	rec := &models.ProductPriceRecord{
		PLU:               row[0],
		Name:              row[1],
		Brand:             row[2],
		RawCategory:       row[3],
		PrincipalCategory: row[4],
		Date:              row[7],
	}

	regular, err := strconv.ParseFloat(row[6], 64)
	if err != nil {
		return nil, fmt.Errorf("%w: price_regular %q", ErrCorrupt, row[6])
	}
	rec.PriceRegular = regular

	if row[5] != "" {
		current, err := strconv.ParseFloat(row[5], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: price_current %q", ErrCorrupt, row[5])
		}
		rec.PriceCurrent = &current
	}
	return rec, nil
}

func formatCSVRow(r *models.ProductPriceRecord) []string {
	current := ""
	if r.PriceCurrent != nil {
		current = strconv.FormatFloat(*r.PriceCurrent, 'f', -1, 64)
	}
	return []string{
		r.PLU, r.Name, r.Brand, r.RawCategory, r.PrincipalCategory,
		current, strconv.FormatFloat(r.PriceRegular, 'f', -1, 64), r.Date,
	}
}

// writeCSVTable writes t next to path and renames it into place, so readers
// see either the old or the new table, never a partial one.
func writeCSVTable(path string, t *table) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("csv: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	w := csv.NewWriter(tmp)
	if err := w.Write(csvHeader); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("csv: write header: %w", err)
	}
	for _, r := range t.rows() {
		if err := w.Write(formatCSVRow(r)); err != nil {
			_ = tmp.Close()
			return fmt.Errorf("csv: write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("csv: flush: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("csv: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("csv: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("csv: rename into place: %w", err)
	}
	return nil
}

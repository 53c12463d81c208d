package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"price-tracker/models"
)

var _ PriceStore = (*BadgerStore)(nil)

// recordPrefix starts every record key: rec/<date>/<plu>.
// Keys sort by date then plu, so one prefix scan yields a whole day in order.
const recordPrefix = "rec/"

// BadgerConfig holds BadgerDB configuration
type BadgerConfig struct {
	// Path to store database files
	Path string

	// InMemory mode (for testing)
	InMemory bool
}

// BadgerStore persists the price history in BadgerDB (LSM tree).
type BadgerStore struct {
	db *badger.DB
	mu sync.Mutex // single writer
}

// NewBadgerStore opens a BadgerDB-backed store.
func NewBadgerStore(cfg BadgerConfig) (*BadgerStore, error) {
	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = opts.WithInMemory(true)
	}

	// one day is written in a single txn; the memtable bounds the txn size
	opts = opts.
		WithCompression(options.Snappy).
		WithNumVersionsToKeep(1).
		WithMemTableSize(64 << 20).
		WithBlockCacheSize(8 << 20).
		WithIndexCacheSize(4 << 20).
		WithValueLogFileSize(64 << 20).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger: open: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// Upsert deletes every key of date and writes records, in one transaction.
func (s *BadgerStore) Upsert(date string, records []*models.ProductPriceRecord) error {
	if err := checkUpsert(date, records); err != nil {
		return fmt.Errorf("badger: upsert: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(txn *badger.Txn) error {
		prefix := dayPrefix(date)
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		var stale [][]byte
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			stale = append(stale, it.Item().KeyCopy(nil))
		}
		it.Close()

		for _, key := range stale {
			if err := txn.Delete(key); err != nil {
				return fmt.Errorf("delete %s: %w", key, err)
			}
		}

		for _, r := range records {
			val, err := json.Marshal(r)
			if err != nil {
				return fmt.Errorf("encode %s: %w", r.PLU, err)
			}
			if err := txn.Set(recordKey(r.Date, r.PLU), val); err != nil {
				return fmt.Errorf("set %s: %w", r.PLU, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("badger: upsert %s: %w", date, err)
	}
	return nil
}

// RecordsFor returns the records of date ordered by PLU.
func (s *BadgerStore) RecordsFor(date string) ([]*models.ProductPriceRecord, error) {
	records := make([]*models.ProductPriceRecord, 0)
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := dayPrefix(date)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := string(item.Key())
			err := item.Value(func(val []byte) error {
				r := &models.ProductPriceRecord{}
				if err := json.Unmarshal(val, r); err != nil {
					return fmt.Errorf("%w: decode %s: %v", ErrCorrupt, key, err)
				}
				if string(recordKey(r.Date, r.PLU)) != key {
					return fmt.Errorf("%w: key %s holds record (%s, %s)", ErrCorrupt, key, r.PLU, r.Date)
				}
				if err := checkLoaded(r); err != nil {
					return err
				}
				records = append(records, r)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badger: records for %s: %w", date, err)
	}
	return records, nil
}

// Dates returns every distinct date, ascending.
func (s *BadgerStore) Dates() ([]string, error) {
	var dates []string
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte(recordPrefix)
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			date, ok := dateFromKey(it.Item().Key())
			if !ok {
				return fmt.Errorf("%w: malformed key %q", ErrCorrupt, it.Item().Key())
			}
			if err := ValidateDate(date); err != nil {
				return fmt.Errorf("%w: %v", ErrCorrupt, err)
			}
			if n := len(dates); n == 0 || dates[n-1] != date {
				dates = append(dates, date)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badger: dates: %w", err)
	}
	return dates, nil
}

// RunGC reclaims value log space left by replaced days.
// Nothing to reclaim is not an error.
func (s *BadgerStore) RunGC(discardRatio float64) error {
	err := s.db.RunValueLogGC(discardRatio)
	if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrGCInMemoryMode) {
		return nil
	}
	return err
}

// Close shuts down BadgerDB cleanly
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func dayPrefix(date string) []byte {
	return []byte(recordPrefix + date + "/")
}

func recordKey(date, plu string) []byte {
	return []byte(recordPrefix + date + "/" + plu)
}

func dateFromKey(key []byte) (string, bool) {
	rest := bytes.TrimPrefix(key, []byte(recordPrefix))
	date, plu, ok := strings.Cut(string(rest), "/")
	if !ok || plu == "" {
		return "", false
	}
	return date, true
}

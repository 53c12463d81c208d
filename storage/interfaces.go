package storage

import (
	"errors"

	"price-tracker/models"
)

// ErrCorrupt marks persisted data that cannot be trusted. A run that hits it
// must stop; every horizon depends on the whole history.
var ErrCorrupt = errors.New("store corrupt")

// PriceStore is the compact, date-keyed price history.
// Implementations: memory (tests), csv (default), sqlite, postgres, badger.
type PriceStore interface {
	// Upsert replaces every record of date with records.
	// Running it twice with the same input leaves the same state as once.
	Upsert(date string, records []*models.ProductPriceRecord) error

	// RecordsFor returns the records of date ordered by PLU; empty if the date is absent.
	RecordsFor(date string) ([]*models.ProductPriceRecord, error)

	// Dates returns every distinct date present, ascending.
	Dates() ([]string, error)

	Close() error
}

// ReportWriter is the interface for persisting run outputs for the renderer.
type ReportWriter interface {
	WriteReport(report *models.Report) error
}

package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"price-tracker/models"
	"price-tracker/storage"
	"price-tracker/utils"
)

// ErrEmptyBatch means every row of the day's batch was dropped during preparation.
var ErrEmptyBatch = errors.New("batch has no valid rows")

// BatchSource supplies the fetcher's raw rows for a date.
type BatchSource interface {
	Read(date string) ([]*models.RawProduct, error)
}

// Pipeline runs one daily ingestion: read, prepare, upsert, analyse, publish.
type Pipeline struct {
	source   BatchSource
	preparer *Preparer
	store    storage.PriceStore
	analyzer *Analyzer
	writer   storage.ReportWriter
	logger   *utils.Logger
}

// NewPipeline wires a Pipeline. writer may be nil to skip publishing.
func NewPipeline(source BatchSource, preparer *Preparer, store storage.PriceStore,
	analyzer *Analyzer, writer storage.ReportWriter, logger *utils.Logger) *Pipeline {
	return &Pipeline{
		source:   source,
		preparer: preparer,
		store:    store,
		analyzer: analyzer,
		writer:   writer,
		logger:   logger,
	}
}

// valueLogCollector is implemented by stores that reclaim space from replaced days.
type valueLogCollector interface {
	RunGC(discardRatio float64) error
}

func (p *Pipeline) collectGarbage() {
	gc, ok := p.store.(valueLogCollector)
	if !ok {
		return
	}
	if err := gc.RunGC(0.5); err != nil {
		p.logger.Warn("[store] Value log GC: %v", err)
	}
}

// Ingest stores the batch for date and returns the resulting report.
// Re-running it for the same date replaces that day; history is untouched.
// A batch identical to the stored day is not written again.
func (p *Pipeline) Ingest(ctx context.Context, date string, now time.Time) (*models.Report, error) {
	if err := storage.ValidateDate(date); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	p.logger.Info("[pipeline] [1/4] Reading batch for %s ...", date)
	raw, err := p.source.Read(date)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	p.logger.Info("[pipeline] [2/4] Preparing %d rows ...", len(raw))
	records, _ := p.preparer.Prepare(raw, date)
	if len(records) == 0 {
		return nil, fmt.Errorf("pipeline: %s: %w", date, ErrEmptyBatch)
	}

	p.logger.Info("[pipeline] [3/4] Storing snapshot ...")
	existing, err := p.store.RecordsFor(date)
	if err != nil {
		return nil, fmt.Errorf("pipeline: read existing %s: %w", date, err)
	}
	newPrint := storage.Fingerprint(records)
	switch {
	case len(existing) == 0:
		p.logger.Info("[pipeline] %s: new snapshot, %d records (fingerprint %016x)", date, len(records), newPrint)
		if err := p.store.Upsert(date, records); err != nil {
			return nil, fmt.Errorf("pipeline: upsert %s: %w", date, err)
		}
	case storage.Fingerprint(existing) == newPrint:
		p.logger.Info("[pipeline] %s: re-run with identical data, snapshot left as is", date)
	default:
		p.logger.Warn("[pipeline] %s: replacing %d stored records with %d", date, len(existing), len(records))
		if err := p.store.Upsert(date, records); err != nil {
			return nil, fmt.Errorf("pipeline: upsert %s: %w", date, err)
		}
		p.collectGarbage()
	}

	p.logger.Info("[pipeline] [4/4] Analysing ...")
	report, err := p.analyzer.Run(ctx, date, now)
	if err != nil {
		return nil, err
	}
	if p.writer != nil {
		if err := p.writer.WriteReport(report); err != nil {
			return nil, fmt.Errorf("pipeline: write report: %w", err)
		}
	}
	return report, nil
}

package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"price-tracker/models"
	"price-tracker/storage"
	"price-tracker/utils"
)

// ErrNoSnapshot means the store holds nothing for the date being analysed.
var ErrNoSnapshot = errors.New("no snapshot for date")

// AnalyzerOptions sets the ranking sizes and index parallelism.
type AnalyzerOptions struct {
	TopUpN           int
	TopDownN         int
	IndexConcurrency int
}

// Analyzer computes a run's report from the store: comparisons of the date's
// snapshot against each horizon, category aggregates, rankings and charts.
type Analyzer struct {
	resolver *Resolver
	insights *InsightService
	index    *IndexBuilder
	logger   *utils.Logger
	opts     AnalyzerOptions
}

// NewAnalyzer wires an Analyzer over store.
func NewAnalyzer(store storage.PriceStore, taxonomy *Taxonomy, logger *utils.Logger, opts AnalyzerOptions) *Analyzer {
	return &Analyzer{
		resolver: NewResolver(store),
		insights: NewInsightService(taxonomy),
		index:    NewIndexBuilder(store, taxonomy, logger, opts.IndexConcurrency),
		logger:   logger,
		opts:     opts,
	}
}

// horizon is a comparison against the snapshot nearest to Days before the run date.
type horizon struct {
	name string
	days int
	set  func(r *models.Report, h *models.HorizonResult, vars []models.VariationRecord, topN int)
}

var horizons = []horizon{
	{name: "7d", days: 7, set: func(r *models.Report, h *models.HorizonResult, _ []models.VariationRecord, _ int) {
		r.Week = h
	}},
	{name: "30d", days: 30, set: func(r *models.Report, h *models.HorizonResult, vars []models.VariationRecord, n int) {
		r.Month = h
		r.TopUpMonth = Top(vars, n, Descending)
	}},
	{name: "180d", days: 180, set: func(r *models.Report, h *models.HorizonResult, _ []models.VariationRecord, _ int) {
		r.HalfYear = h
	}},
	{name: "365d", days: 365, set: func(r *models.Report, h *models.HorizonResult, vars []models.VariationRecord, n int) {
		r.Year = h
		r.TopUpYear = Top(vars, n, Descending)
	}},
}

// Run builds the report for date. now anchors the chart windows.
// Missing horizons stay nil; only store failures are errors.
func (a *Analyzer) Run(ctx context.Context, date string, now time.Time) (*models.Report, error) {
	today, err := a.resolver.Exact(date)
	if err != nil {
		return nil, err
	}
	if today == nil {
		return nil, fmt.Errorf("analyzer: %w %s", ErrNoSnapshot, date)
	}

	report := &models.Report{
		RunID:            uuid.NewString(),
		Date:             date,
		TotalProducts:    len(today.Records),
		MeanPriceRegular: meanRegular(today.Records),
		CategoriesDay:    []models.CategoryAggregate{},
		TopUpDay:         []models.VariationRecord{},
		TopDownDay:       []models.VariationRecord{},
		TopUpMonth:       []models.VariationRecord{},
		TopUpYear:        []models.VariationRecord{},
	}

	prev, err := a.resolver.Previous(date)
	if err != nil {
		return nil, err
	}
	if prev == nil {
		a.logger.Info("[analyzer] %s: no earlier snapshot, day comparison unavailable", date)
	} else if vars := Compare(today.Records, prev.Records); len(vars) > 0 {
		report.Day = a.insights.Horizon("1d", prev.Date, vars)
		report.CategoriesDay = a.insights.Aggregate(vars)
		report.TopUpDay = Top(vars, a.opts.TopUpN, Descending)
		report.TopDownDay = Top(vars, a.opts.TopDownN, Ascending)
		a.logger.Info("[analyzer] 1d vs %s: %d matched, mean %+.2f%%", prev.Date, len(vars), report.Day.MeanDiffPct)
	}

	for _, h := range horizons {
		snap, err := a.resolver.DaysBefore(date, h.days)
		if err != nil {
			return nil, err
		}
		if snap == nil {
			a.logger.Info("[analyzer] %s: no snapshot %d days back, horizon unavailable", h.name, h.days)
			continue
		}
		vars := Compare(today.Records, snap.Records)
		if len(vars) == 0 {
			a.logger.Warn("[analyzer] %s vs %s: no products in common", h.name, snap.Date)
			continue
		}
		res := a.insights.Horizon(h.name, snap.Date, vars)
		h.set(report, res, vars, a.opts.TopUpN)
		a.logger.Info("[analyzer] %s vs %s: %d matched, mean %+.2f%%", h.name, snap.Date, len(vars), res.MeanDiffPct)
	}

	charts, err := a.index.BuildAll(ctx, Window{Now: now, Until: date})
	if err != nil {
		return nil, err
	}
	report.Charts = charts
	return report, nil
}

// Variations compares two stored dates. Either snapshot missing is ErrNoSnapshot.
func (a *Analyzer) Variations(after, before string) ([]models.VariationRecord, error) {
	snapAfter, err := a.resolver.Exact(after)
	if err != nil {
		return nil, err
	}
	snapBefore, err := a.resolver.Exact(before)
	if err != nil {
		return nil, err
	}
	if snapAfter == nil {
		return nil, fmt.Errorf("%w %s", ErrNoSnapshot, after)
	}
	if snapBefore == nil {
		return nil, fmt.Errorf("%w %s", ErrNoSnapshot, before)
	}
	return Compare(snapAfter.Records, snapBefore.Records), nil
}

// Insights exposes the category aggregation used in reports.
func (a *Analyzer) Insights() *InsightService { return a.insights }

// Index exposes the index builder used in reports.
func (a *Analyzer) Index() *IndexBuilder { return a.index }

// Resolver exposes the snapshot resolver used in reports.
func (a *Analyzer) Resolver() *Resolver { return a.resolver }

func meanRegular(records []*models.ProductPriceRecord) float64 {
	prices := make([]float64, len(records))
	for i, r := range records {
		prices[i] = r.PriceRegular
	}
	return utils.Round2(utils.Mean(prices))
}

// ReferenceTime is the clock reading used for a report on date: now itself
// when date is today (in now's location), otherwise the last second of date.
func ReferenceTime(date string, now time.Time) (time.Time, error) {
	day, err := time.ParseInLocation(models.DateLayout, date, now.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("analyzer: bad date %q: %w", date, err)
	}
	if day.Format(models.DateLayout) == now.Format(models.DateLayout) {
		return now, nil
	}
	return day.Add(24*time.Hour - time.Second), nil
}

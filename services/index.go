package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"price-tracker/models"
	"price-tracker/storage"
	"price-tracker/utils"
)

// ScopeTotal is the index scope covering every product.
const ScopeTotal = "total"

// Period is a chart window reaching back Days from the reference time.
type Period struct {
	Name string
	Days int
}

// Periods are the chart windows, shortest first.
var Periods = []Period{
	{Name: "7d", Days: 7},
	{Name: "30d", Days: 30},
	{Name: "6m", Days: 180},
	{Name: "1y", Days: 365},
}

// IndexBuilder folds day-over-day variations into cumulative percentage series.
//
// Each step is the rounded mean DiffPct between two consecutive stored dates,
// added to the running total and rounded again. Rounding error accumulates
// along the chain; historical series depend on exactly this arithmetic.
// A step spans however many calendar days separate the two snapshots.
type IndexBuilder struct {
	store       storage.PriceStore
	taxonomy    *Taxonomy
	logger      *utils.Logger
	concurrency int
}

// NewIndexBuilder creates an IndexBuilder. concurrency bounds how many
// periods are built at once; values below 1 mean sequential.
func NewIndexBuilder(store storage.PriceStore, taxonomy *Taxonomy, logger *utils.Logger, concurrency int) *IndexBuilder {
	if concurrency < 1 {
		concurrency = 1
	}
	return &IndexBuilder{store: store, taxonomy: taxonomy, logger: logger, concurrency: concurrency}
}

// Window selects the stored dates of a period: those whose midnight is not
// before now minus the period, and not after until (when set).
type Window struct {
	Now   time.Time
	Until string
}

// Build returns the series of one period and scope (ScopeTotal or a principal category).
func (b *IndexBuilder) Build(p Period, scope string, w Window) ([]models.IndexPoint, error) {
	days, err := b.load(p.Days, w)
	if err != nil {
		return nil, err
	}
	return fold(days, scope), nil
}

// BuildPeriod returns the total series and one series per category present in the period.
func (b *IndexBuilder) BuildPeriod(p Period, w Window) (models.PeriodSeries, error) {
	days, err := b.load(p.Days, w)
	if err != nil {
		return models.PeriodSeries{}, err
	}
	return b.series(p, days), nil
}

// BuildAll builds every period, in parallel up to the configured concurrency.
// The longest window is read from the store once and shared by all periods.
// Results keep the order of Periods.
func (b *IndexBuilder) BuildAll(ctx context.Context, w Window) ([]models.PeriodSeries, error) {
	longest := 0
	for _, p := range Periods {
		if p.Days > longest {
			longest = p.Days
		}
	}
	all, err := b.load(longest, w)
	if err != nil {
		return nil, fmt.Errorf("index: %w", err)
	}

	out := make([]models.PeriodSeries, len(Periods))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for i, p := range Periods {
		i, p := i, p
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = b.series(p, since(all, periodStart(p.Days, w)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (b *IndexBuilder) series(p Period, days []Snapshot) models.PeriodSeries {
	series := models.PeriodSeries{
		Period:     p.Name,
		Total:      fold(days, ScopeTotal),
		Categories: []models.CategorySeries{},
	}
	for _, cat := range b.categories(days) {
		series.Categories = append(series.Categories, models.CategorySeries{
			Category: cat,
			Points:   fold(days, cat),
		})
	}
	b.logger.Debug("[index] %s: %d dates, %d categories", p.Name, len(days), len(series.Categories))
	return series
}

func periodStart(days int, w Window) time.Time {
	return w.Now.Add(-time.Duration(days) * 24 * time.Hour)
}

// load reads the snapshots of the last days days of w.
func (b *IndexBuilder) load(days int, w Window) ([]Snapshot, error) {
	dates, err := b.store.Dates()
	if err != nil {
		return nil, err
	}

	start := periodStart(days, w)
	var out []Snapshot
	for _, d := range dates {
		t, err := time.ParseInLocation(models.DateLayout, d, w.Now.Location())
		if err != nil {
			return nil, fmt.Errorf("index: %w: date %q: %v", storage.ErrCorrupt, d, err)
		}
		if t.Before(start) || (w.Until != "" && d > w.Until) {
			continue
		}
		recs, err := b.store.RecordsFor(d)
		if err != nil {
			return nil, err
		}
		out = append(out, Snapshot{Date: d, Records: recs})
	}
	return out, nil
}

// since returns the snapshots whose midnight is not before start. days is
// ascending by date and was validated by load.
func since(days []Snapshot, start time.Time) []Snapshot {
	i := sort.Search(len(days), func(i int) bool {
		t, _ := time.ParseInLocation(models.DateLayout, days[i].Date, start.Location())
		return !t.Before(start)
	})
	return days[i:]
}

func (b *IndexBuilder) categories(days []Snapshot) []string {
	var seen []string
	for _, day := range days {
		for _, r := range day.Records {
			seen = append(seen, r.PrincipalCategory)
		}
	}
	return b.taxonomy.SortCategories(seen)
}

// fold anchors the series at 0 on the first day and adds one rounded step per
// following day. A day with no matched products adds 0.
func fold(days []Snapshot, scope string) []models.IndexPoint {
	points := make([]models.IndexPoint, 0, len(days))
	if len(days) == 0 {
		return points
	}

	scoped := func(s Snapshot) []*models.ProductPriceRecord {
		if scope == ScopeTotal {
			return s.Records
		}
		return FilterCategory(s.Records, scope)
	}

	points = append(points, models.IndexPoint{Date: days[0].Date, CumulativePct: 0})
	total := 0.0
	prev := scoped(days[0])
	for _, day := range days[1:] {
		cur := scoped(day)
		step := 0.0
		if vars := Compare(cur, prev); len(vars) > 0 {
			step = MeanDiffPct(vars)
		}
		total = utils.Round2(total + step)
		points = append(points, models.IndexPoint{Date: day.Date, CumulativePct: total})
		prev = cur
	}
	return points
}

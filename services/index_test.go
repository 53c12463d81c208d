package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"price-tracker/models"
	"price-tracker/storage"
	"price-tracker/utils"
)

func cumulative(points []models.IndexPoint) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.CumulativePct
	}
	return out
}

func newTestIndex(store storage.PriceStore) *IndexBuilder {
	return NewIndexBuilder(store, DefaultTaxonomy(), utils.NewNopLogger(), 2)
}

// indexStore holds four consecutive days of category X: +5%, -2%, then a day
// whose only product has no earlier price.
func indexStore(t *testing.T) storage.PriceStore {
	store := storage.NewMemoryStore()
	seed(t, store, "1", "X", map[string]float64{
		"20260101": 100,
		"20260102": 105,
		"20260103": 102.9,
	})
	seed(t, store, "2", "X", map[string]float64{"20260104": 40})
	return store
}

func TestIndexCumulativeSeries(t *testing.T) {
	b := newTestIndex(indexStore(t))
	w := Window{Now: time.Date(2026, 1, 4, 12, 0, 0, 0, time.UTC)}

	points, err := b.Build(Period{Name: "7d", Days: 7}, "X", w)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 5, 3, 3}, cumulative(points))
	assert.Equal(t, "20260101", points[0].Date)
	assert.Equal(t, "20260104", points[3].Date)

	total, err := b.Build(Period{Name: "7d", Days: 7}, ScopeTotal, w)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 5, 3, 3}, cumulative(total))
}

func TestIndexOtherCategoryIsFlat(t *testing.T) {
	store := indexStore(t)
	seed(t, store, "9", "Y", map[string]float64{"20260102": 10, "20260103": 10})

	b := newTestIndex(store)
	w := Window{Now: time.Date(2026, 1, 4, 12, 0, 0, 0, time.UTC)}

	points, err := b.Build(Period{Name: "7d", Days: 7}, "Y", w)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0, 0}, cumulative(points), "days without the category add nothing")
}

func TestIndexWindowBounds(t *testing.T) {
	store := storage.NewMemoryStore()
	seed(t, store, "1", "X", map[string]float64{
		"20260102": 100,
		"20260103": 110,
		"20260105": 121,
		"20260106": 100,
	})
	b := newTestIndex(store)

	w := Window{Now: time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC), Until: "20260105"}
	points, err := b.Build(Period{Name: "7d", Days: 7}, ScopeTotal, w)
	require.NoError(t, err)

	require.Len(t, points, 2, "20260102 is before the window, 20260106 after until")
	assert.Equal(t, "20260103", points[0].Date)
	assert.Equal(t, []float64{0, 10}, cumulative(points))
}

func TestIndexEmptyPeriod(t *testing.T) {
	b := newTestIndex(storage.NewMemoryStore())
	series, err := b.BuildPeriod(Periods[0], Window{Now: time.Now()})
	require.NoError(t, err)
	assert.Empty(t, series.Total)
	assert.NotNil(t, series.Total)
	assert.Empty(t, series.Categories)
}

func TestIndexBuildAllKeepsPeriodOrder(t *testing.T) {
	store := indexStore(t)
	seed(t, store, "5", "Frescos", map[string]float64{"20260103": 10, "20260104": 11})
	seed(t, store, "6", "Almacén", map[string]float64{"20260103": 20, "20260104": 20})

	b := newTestIndex(store)
	all, err := b.BuildAll(context.Background(), Window{Now: time.Date(2026, 1, 4, 12, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	require.Len(t, all, len(Periods))
	for i, p := range Periods {
		assert.Equal(t, p.Name, all[i].Period)
	}

	var cats []string
	for _, c := range all[0].Categories {
		cats = append(cats, c.Category)
	}
	assert.Equal(t, []string{"Almacén", "Frescos", "X"}, cats, "known categories first, in display order")
}

func TestIndexBuildAllCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestIndex(indexStore(t)).BuildAll(ctx, Window{Now: time.Now()})
	assert.ErrorIs(t, err, context.Canceled)
}

type readCountingStore struct {
	storage.PriceStore
	reads int
}

func (r *readCountingStore) RecordsFor(date string) ([]*models.ProductPriceRecord, error) {
	r.reads++
	return r.PriceStore.RecordsFor(date)
}

func TestIndexBuildAllReadsEachDayOnce(t *testing.T) {
	mem := storage.NewMemoryStore()
	seed(t, mem, "1", "X", map[string]float64{
		"20240101": 90,
		"20250110": 100,
		"20251201": 104,
		"20251220": 103,
		"20260102": 106,
		"20260103": 110,
	})
	store := &readCountingStore{PriceStore: mem}
	b := newTestIndex(store)
	w := Window{Now: time.Date(2026, 1, 4, 12, 0, 0, 0, time.UTC)}

	all, err := b.BuildAll(context.Background(), w)
	require.NoError(t, err)
	assert.Equal(t, 5, store.reads, "the 1y window is loaded once; 20240101 is outside it")

	for i, p := range Periods {
		single, err := b.BuildPeriod(p, w)
		require.NoError(t, err)
		assert.Equal(t, single, all[i], p.Name)
	}
	assert.Len(t, all[0].Total, 2)
	assert.Len(t, all[1].Total, 3)
	assert.Len(t, all[2].Total, 4)
	assert.Len(t, all[3].Total, 5)
}

package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"price-tracker/models"
	"price-tracker/storage"
)

// seed stores one product per date, priced at the given regular prices.
func seed(t *testing.T, s storage.PriceStore, plu, category string, days map[string]float64) {
	t.Helper()
	for date, price := range days {
		existing, err := s.RecordsFor(date)
		require.NoError(t, err)
		require.NoError(t, s.Upsert(date, append(existing, priced(plu, date, category, price))))
	}
}

func TestPreviousDate(t *testing.T) {
	dates := []string{"20260101", "20260103", "20260110"}

	tests := []struct {
		ref    string
		want   string
		wantOK bool
	}{
		{"20260110", "20260103", true},
		{"20260105", "20260103", true},
		{"20260103", "20260101", true},
		{"20260101", "", false},
		{"20251231", "", false},
		{"20270101", "20260110", true},
	}
	for _, tt := range tests {
		got, ok := PreviousDate(dates, tt.ref)
		assert.Equal(t, tt.wantOK, ok, tt.ref)
		assert.Equal(t, tt.want, got, tt.ref)
	}
}

func TestNearestAtOrBefore(t *testing.T) {
	dates := []string{"20260101", "20260103", "20260110"}

	got, ok := NearestAtOrBefore(dates, "20260103")
	assert.True(t, ok)
	assert.Equal(t, "20260103", got, "an exact match wins")

	got, ok = NearestAtOrBefore(dates, "20260109")
	assert.True(t, ok)
	assert.Equal(t, "20260103", got, "a gap falls back to the previous snapshot")

	_, ok = NearestAtOrBefore(dates, "20251231")
	assert.False(t, ok)

	_, ok = NearestAtOrBefore(nil, "20260101")
	assert.False(t, ok)
}

func TestShiftDate(t *testing.T) {
	got, err := ShiftDate("20260301", -1)
	require.NoError(t, err)
	assert.Equal(t, "20260228", got)

	got, err = ShiftDate("20250105", -365)
	require.NoError(t, err)
	assert.Equal(t, "20240106", got, "leap day is counted")

	_, err = ShiftDate("2026-03-01", 1)
	assert.Error(t, err)
}

func TestResolverHorizonWithoutHistory(t *testing.T) {
	store := storage.NewMemoryStore()
	seed(t, store, "1", "X", map[string]float64{"20260101": 100, "20260111": 110})
	r := NewResolver(store)

	snap, err := r.DaysBefore("20260111", 30)
	require.NoError(t, err)
	assert.Nil(t, snap, "no snapshot 30 days back")

	snap, err = r.DaysBefore("20260111", 7)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, "20260101", snap.Date)
}

func TestResolverPreviousAndExact(t *testing.T) {
	store := storage.NewMemoryStore()
	seed(t, store, "1", "X", map[string]float64{"20260101": 100, "20260104": 110})
	r := NewResolver(store)

	prev, err := r.Previous("20260104")
	require.NoError(t, err)
	require.NotNil(t, prev)
	assert.Equal(t, "20260101", prev.Date)
	assert.Len(t, prev.Records, 1)

	prev, err = r.Previous("20260101")
	require.NoError(t, err)
	assert.Nil(t, prev)

	exact, err := r.Exact("20260102")
	require.NoError(t, err)
	assert.Nil(t, exact)

	exact, err = r.Exact("20260104")
	require.NoError(t, err)
	require.NotNil(t, exact)
	assert.Equal(t, []*models.ProductPriceRecord{priced("1", "20260104", "X", 110)}, exact.Records)
}

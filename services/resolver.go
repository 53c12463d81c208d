package services

import (
	"fmt"
	"sort"
	"time"

	"price-tracker/models"
	"price-tracker/storage"
)

// Snapshot is every record ingested for one date.
type Snapshot struct {
	Date    string
	Records []*models.ProductPriceRecord
}

// Resolver finds the snapshot that answers a horizon, tolerating missing days.
type Resolver struct {
	store storage.PriceStore
}

// NewResolver creates a Resolver over store.
func NewResolver(store storage.PriceStore) *Resolver {
	return &Resolver{store: store}
}

// Previous returns the latest snapshot strictly before ref.
// A nil snapshot with a nil error means there is none.
func (r *Resolver) Previous(ref string) (*Snapshot, error) {
	dates, err := r.store.Dates()
	if err != nil {
		return nil, err
	}
	date, ok := PreviousDate(dates, ref)
	if !ok {
		return nil, nil
	}
	return r.load(date)
}

// AtOrBefore returns the latest snapshot dated target or earlier.
// A nil snapshot with a nil error means there is none.
func (r *Resolver) AtOrBefore(target string) (*Snapshot, error) {
	dates, err := r.store.Dates()
	if err != nil {
		return nil, err
	}
	date, ok := NearestAtOrBefore(dates, target)
	if !ok {
		return nil, nil
	}
	return r.load(date)
}

// DaysBefore resolves the snapshot nearest to, and not after, ref minus days.
func (r *Resolver) DaysBefore(ref string, days int) (*Snapshot, error) {
	target, err := ShiftDate(ref, -days)
	if err != nil {
		return nil, err
	}
	return r.AtOrBefore(target)
}

// Exact returns the snapshot of date, or nil if the store has none.
func (r *Resolver) Exact(date string) (*Snapshot, error) {
	recs, err := r.store.RecordsFor(date)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return &Snapshot{Date: date, Records: recs}, nil
}

func (r *Resolver) load(date string) (*Snapshot, error) {
	recs, err := r.store.RecordsFor(date)
	if err != nil {
		return nil, err
	}
	return &Snapshot{Date: date, Records: recs}, nil
}

// PreviousDate is the largest of the ascending dates strictly below ref.
func PreviousDate(dates []string, ref string) (string, bool) {
	i := sort.SearchStrings(dates, ref)
	if i == 0 {
		return "", false
	}
	return dates[i-1], true
}

// NearestAtOrBefore is the largest of the ascending dates not above target.
func NearestAtOrBefore(dates []string, target string) (string, bool) {
	i := sort.Search(len(dates), func(i int) bool { return dates[i] > target })
	if i == 0 {
		return "", false
	}
	return dates[i-1], true
}

// ShiftDate moves a YYYYMMDD date by days calendar days.
func ShiftDate(date string, days int) (string, error) {
	t, err := time.Parse(models.DateLayout, date)
	if err != nil {
		return "", fmt.Errorf("resolver: bad date %q: %w", date, err)
	}
	return t.AddDate(0, 0, days).Format(models.DateLayout), nil
}

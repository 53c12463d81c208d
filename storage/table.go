package storage

import (
	"fmt"
	"sort"

	"price-tracker/models"
)

// table is the in-memory form of the store: date -> records ordered by PLU.
// Callers synchronise access.
type table struct {
	days map[string][]*models.ProductPriceRecord
}

func newTable() *table {
	return &table{days: make(map[string][]*models.ProductPriceRecord)}
}

// replace drops every record of date and inserts records in their place.
func (t *table) replace(date string, records []*models.ProductPriceRecord) {
	delete(t.days, date)
	if len(records) == 0 {
		return
	}
	day := cloneRecords(records)
	sortByPLU(day)
	t.days[date] = day
}

// loader fills a table from persisted rows, rejecting a repeated (plu, date) key.
type loader struct {
	t    *table
	seen map[string]struct{}
}

func newLoader() *loader {
	return &loader{t: newTable(), seen: make(map[string]struct{})}
}

func (l *loader) add(r *models.ProductPriceRecord) error {
	if err := checkLoaded(r); err != nil {
		return err
	}
	key := r.Date + "\x00" + r.PLU
	if _, dup := l.seen[key]; dup {
		return fmt.Errorf("%w: duplicate key (%s, %s)", ErrCorrupt, r.PLU, r.Date)
	}
	l.seen[key] = struct{}{}
	l.t.days[r.Date] = append(l.t.days[r.Date], r)
	return nil
}

// done sorts every day and hands back the table.
func (l *loader) done() *table {
	for _, day := range l.t.days {
		sortByPLU(day)
	}
	return l.t
}

func (t *table) recordsFor(date string) []*models.ProductPriceRecord {
	return cloneRecords(t.days[date])
}

func (t *table) dates() []string {
	out := make([]string, 0, len(t.days))
	for d := range t.days {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// rows returns every record ordered by date, then plu.
func (t *table) rows() []*models.ProductPriceRecord {
	var out []*models.ProductPriceRecord
	for _, d := range t.dates() {
		out = append(out, t.days[d]...)
	}
	return out
}

func (t *table) clone() *table {
	c := newTable()
	for d, day := range t.days {
		c.days[d] = cloneRecords(day)
	}
	return c
}

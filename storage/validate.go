package storage

import (
	"fmt"
	"math"
	"sort"
	"time"

	"price-tracker/models"
)

// ValidateDate checks that date is a real calendar day in YYYYMMDD form.
func ValidateDate(date string) error {
	if len(date) != len(models.DateLayout) {
		return fmt.Errorf("invalid date %q: want YYYYMMDD", date)
	}
	if _, err := time.Parse(models.DateLayout, date); err != nil {
		return fmt.Errorf("invalid date %q: %w", date, err)
	}
	return nil
}

// checkUpsert guards the store invariants before anything is written.
func checkUpsert(date string, records []*models.ProductPriceRecord) error {
	if err := ValidateDate(date); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		if r == nil {
			return fmt.Errorf("nil record for %s", date)
		}
		if r.Date != date {
			return fmt.Errorf("record %s is dated %q, upserting %q", r.PLU, r.Date, date)
		}
		if r.PLU == "" {
			return fmt.Errorf("record without plu for %s", date)
		}
		if _, dup := seen[r.PLU]; dup {
			return fmt.Errorf("duplicate plu %s for %s", r.PLU, date)
		}
		seen[r.PLU] = struct{}{}
		if !validPrice(r.PriceRegular) {
			return fmt.Errorf("record %s has invalid regular price %v", r.PLU, r.PriceRegular)
		}
	}
	return nil
}

// checkLoaded validates a record read back from durable storage.
func checkLoaded(r *models.ProductPriceRecord) error {
	if err := ValidateDate(r.Date); err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if r.PLU == "" {
		return fmt.Errorf("%w: record without plu on %s", ErrCorrupt, r.Date)
	}
	if !validPrice(r.PriceRegular) {
		return fmt.Errorf("%w: plu %s on %s has regular price %v", ErrCorrupt, r.PLU, r.Date, r.PriceRegular)
	}
	return nil
}

func validPrice(f float64) bool {
	return f > 0 && !math.IsInf(f, 0) && !math.IsNaN(f)
}

func sortByPLU(records []*models.ProductPriceRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].PLU < records[j].PLU
	})
}

func cloneRecord(r *models.ProductPriceRecord) *models.ProductPriceRecord {
	c := *r
	if r.PriceCurrent != nil {
		v := *r.PriceCurrent
		c.PriceCurrent = &v
	}
	return &c
}

func cloneRecords(records []*models.ProductPriceRecord) []*models.ProductPriceRecord {
	out := make([]*models.ProductPriceRecord, len(records))
	for i, r := range records {
		out[i] = cloneRecord(r)
	}
	return out
}

package services

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"price-tracker/models"
	"price-tracker/utils"
)

// priceRegexp keeps digits and the two separator characters
var priceRegexp = regexp.MustCompile(`[^\d,.]`)

// PrepareStats reports what happened to a raw batch.
type PrepareStats struct {
	Input        int
	Kept         int
	InvalidPrice int
	MissingPLU   int
	Duplicates   int
}

// Dropped is the number of rows that did not survive preparation.
func (s PrepareStats) Dropped() int {
	return s.Input - s.Kept
}

// Preparer turns a raw fetcher batch into the canonical day-record set.
type Preparer struct {
	logger   *utils.Logger
	taxonomy *Taxonomy
}

// NewPreparer creates a Preparer with the given logger and taxonomy.
func NewPreparer(logger *utils.Logger, taxonomy *Taxonomy) *Preparer {
	return &Preparer{logger: logger, taxonomy: taxonomy}
}

// Prepare validates, deduplicates and stamps raw rows for date.
// Invalid rows are dropped and counted, never returned as errors.
func (p *Preparer) Prepare(raw []*models.RawProduct, date string) ([]*models.ProductPriceRecord, PrepareStats) {
	stats := PrepareStats{Input: len(raw)}
	seen := make(map[string]struct{}, len(raw))
	result := make([]*models.ProductPriceRecord, 0, len(raw))

	for _, r := range raw {
		if r == nil {
			stats.MissingPLU++
			continue
		}
		plu := strings.TrimSpace(r.PLU)
		if plu == "" {
			stats.MissingPLU++
			continue
		}

		regular, ok := ParsePrice(r.PriceRegular)
		if !ok || regular <= 0 {
			stats.InvalidPrice++
			continue
		}

		if _, dup := seen[plu]; dup {
			p.logger.Debug("[preparer] Duplicate PLU skipped: %s", plu)
			stats.Duplicates++
			continue
		}
		seen[plu] = struct{}{}

		rec := &models.ProductPriceRecord{
			PLU:          plu,
			Name:         normaliseText(r.Name),
			Brand:        normaliseText(r.Brand),
			RawCategory:  normaliseText(r.Category),
			PriceRegular: regular,
			Date:         date,
		}
		if current, ok := ParsePrice(r.PriceCurrent); ok {
			rec.PriceCurrent = &current
		}
		rec.PrincipalCategory = p.taxonomy.Map(rec.RawCategory)

		result = append(result, rec)
	}

	stats.Kept = len(result)
	p.logger.Info("[preparer] %s: prepared %d → %d records (dropped %d: %d invalid price, %d missing plu, %d duplicates)",
		date, stats.Input, stats.Kept, stats.Dropped(), stats.InvalidPrice, stats.MissingPLU, stats.Duplicates)
	return result, stats
}

// ParsePrice extracts a number from price text. Plain numeric text
// (including exponent form from JSON) is taken as is; anything else goes
// through the locale cleanup.
// Examples:
//
//	"1310.05"   → 1310.05
//	"1.5e3"     → 1500
//	"$1.310,05" → 1310.05
//	"1,5"       → 1.5
//	"-3"        → -3
//	"n/a"       → absent
func ParsePrice(raw string) (float64, bool) {
	raw = strings.TrimSpace(raw)
	if val, err := strconv.ParseFloat(raw, 64); err == nil {
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return 0, false
		}
		return val, true
	}

	negative := strings.HasPrefix(raw, "-")
	clean := priceRegexp.ReplaceAllString(raw, "")
	if clean == "" {
		return 0, false
	}

	switch {
	case strings.Contains(clean, ",") && strings.Contains(clean, "."):
		clean = strings.ReplaceAll(clean, ".", "")
		clean = strings.ReplaceAll(clean, ",", ".")
	case strings.Contains(clean, ","):
		clean = strings.ReplaceAll(clean, ",", ".")
	}

	val, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0, false
	}
	if negative {
		val = -val
	}
	return val, true
}

// normaliseText strips leading/trailing whitespace and collapses internal whitespace.
func normaliseText(s string) string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r)
	})
	return strings.Join(fields, " ")
}

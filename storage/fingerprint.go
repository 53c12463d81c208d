package storage

import (
	"sort"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"price-tracker/models"
)

// Fingerprint hashes a day-record set independent of record order.
// Two sets with the same fingerprint persist identically.
func Fingerprint(records []*models.ProductPriceRecord) uint64 {
	sorted := make([]*models.ProductPriceRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].PLU < sorted[j].PLU })

	h := xxhash.New()
	for _, r := range sorted {
		current := ""
		if r.PriceCurrent != nil {
			current = strconv.FormatFloat(*r.PriceCurrent, 'g', -1, 64)
		}
		for _, field := range []string{
			r.PLU, r.Date, r.Name, r.Brand, r.RawCategory, r.PrincipalCategory,
			current, strconv.FormatFloat(r.PriceRegular, 'g', -1, 64),
		} {
			_, _ = h.WriteString(field)
			_, _ = h.Write([]byte{0})
		}
		_, _ = h.Write([]byte{'\n'})
	}
	return h.Sum64()
}

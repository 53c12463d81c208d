package services

import (
	"price-tracker/models"
	"price-tracker/utils"
)

// Compare joins two snapshots on PLU and computes each matched product's
// movement of regular price. Products present in only one snapshot are left
// out, as are products whose earlier price is not positive. Output follows
// the order of after.
func Compare(after, before []*models.ProductPriceRecord) []models.VariationRecord {
	prev := make(map[string]*models.ProductPriceRecord, len(before))
	for _, r := range before {
		if _, dup := prev[r.PLU]; !dup {
			prev[r.PLU] = r
		}
	}

	out := make([]models.VariationRecord, 0, len(after))
	for _, a := range after {
		b, ok := prev[a.PLU]
		if !ok {
			continue
		}
		if b.PriceRegular <= 0 || a.PriceRegular <= 0 {
			continue
		}

		diff := utils.Round2(a.PriceRegular - b.PriceRegular)
		out = append(out, models.VariationRecord{
			PLU:               a.PLU,
			Name:              a.Name,
			Brand:             a.Brand,
			RawCategory:       a.RawCategory,
			PrincipalCategory: a.PrincipalCategory,
			PriceBefore:       b.PriceRegular,
			PriceAfter:        a.PriceRegular,
			DiffAbs:           diff,
			DiffPct:           utils.Round2(diff / b.PriceRegular * 100),
		})
	}
	return out
}

// FilterCategory keeps the records whose principal category is category.
func FilterCategory(records []*models.ProductPriceRecord, category string) []*models.ProductPriceRecord {
	out := make([]*models.ProductPriceRecord, 0, len(records))
	for _, r := range records {
		if r.PrincipalCategory == category {
			out = append(out, r)
		}
	}
	return out
}

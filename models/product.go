package models

// RawProduct holds one unprocessed row from the catalog fetcher.
// Prices are kept as text; the preparer coerces them.
type RawProduct struct {
	PLU          string
	Name         string
	Brand        string
	Category     string
	PriceCurrent string
	PriceRegular string
}

// ProductPriceRecord is the canonical day-record for one product, keyed by (PLU, Date).
// PriceRegular is the list price used for every cross-day comparison.
type ProductPriceRecord struct {
	PLU               string   `json:"plu"`
	Name              string   `json:"name"`
	Brand             string   `json:"brand"`
	RawCategory       string   `json:"raw_category"`
	PrincipalCategory string   `json:"principal_category"`
	PriceCurrent      *float64 `json:"price_current"`
	PriceRegular      float64  `json:"price_regular"`
	Date              string   `json:"date"`
}

// DateLayout is the persisted calendar-day format.
const DateLayout = "20060102"

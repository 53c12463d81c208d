package models

// VariationRecord is the price movement of one product between two snapshots.
type VariationRecord struct {
	PLU               string  `json:"plu"`
	Name              string  `json:"name"`
	Brand             string  `json:"brand"`
	RawCategory       string  `json:"raw_category"`
	PrincipalCategory string  `json:"principal_category"`
	PriceBefore       float64 `json:"price_before"`
	PriceAfter        float64 `json:"price_after"`
	DiffAbs           float64 `json:"diff_abs"`
	DiffPct           float64 `json:"diff_pct"`
}

// CategoryAggregate summarizes the variations of one principal category.
type CategoryAggregate struct {
	Category       string  `json:"category"`
	CountUp        int     `json:"count_up"`
	CountDown      int     `json:"count_down"`
	CountUnchanged int     `json:"count_unchanged"`
	TotalCount     int     `json:"total_count"`
	MeanDiffPct    float64 `json:"mean_diff_pct"`
}

// IndexPoint is one point of a cumulative percentage series.
type IndexPoint struct {
	Date          string  `json:"date"`
	CumulativePct float64 `json:"cumulative_pct"`
}

// PeriodSeries holds the total and per-category index series of one period.
// Categories preserves display order.
type PeriodSeries struct {
	Period     string           `json:"period"`
	Total      []IndexPoint     `json:"total"`
	Categories []CategorySeries `json:"categories"`
}

// CategorySeries is the index series of one principal category.
type CategorySeries struct {
	Category string       `json:"category"`
	Points   []IndexPoint `json:"points"`
}

// HorizonResult is the comparison of today's snapshot against one horizon.
type HorizonResult struct {
	Horizon        string  `json:"horizon"`
	ComparedDate   string  `json:"compared_date"`
	MatchedCount   int     `json:"matched_count"`
	MeanDiffPct    float64 `json:"mean_diff_pct"`
	CountUp        int     `json:"count_up"`
	CountDown      int     `json:"count_down"`
	CountUnchanged int     `json:"count_unchanged"`
}

// Report is everything one run exposes to the renderer and the publisher.
// A nil horizon means no snapshot was available for it.
type Report struct {
	RunID            string  `json:"run_id"`
	Date             string  `json:"date"`
	TotalProducts    int     `json:"total_products"`
	MeanPriceRegular float64 `json:"mean_price_regular"`

	Day      *HorizonResult `json:"day"`
	Week     *HorizonResult `json:"week"`
	Month    *HorizonResult `json:"month"`
	HalfYear *HorizonResult `json:"half_year"`
	Year     *HorizonResult `json:"year"`

	CategoriesDay []CategoryAggregate `json:"categories_day"`

	TopUpDay   []VariationRecord `json:"top_up_day"`
	TopDownDay []VariationRecord `json:"top_down_day"`
	TopUpMonth []VariationRecord `json:"top_up_month"`
	TopUpYear  []VariationRecord `json:"top_up_year"`

	Charts []PeriodSeries `json:"charts"`
}

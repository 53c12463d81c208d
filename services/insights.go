package services

import (
	"sort"

	"price-tracker/models"
	"price-tracker/utils"
)

// Direction selects which end of a ranking comes first.
type Direction int

const (
	// Descending puts the biggest increases first.
	Descending Direction = iota
	// Ascending puts the biggest decreases first.
	Ascending
)

// InsightService aggregates variation records for reporting.
type InsightService struct {
	taxonomy *Taxonomy
}

// NewInsightService creates an InsightService ordering categories by taxonomy.
func NewInsightService(taxonomy *Taxonomy) *InsightService {
	return &InsightService{taxonomy: taxonomy}
}

// Aggregate groups variations by principal category. The mean is taken over
// the already rounded per-product percentages and rounded again.
// Known categories come first in display order, the rest in order of appearance.
func (s *InsightService) Aggregate(variations []models.VariationRecord) []models.CategoryAggregate {
	groups := make(map[string][]float64)
	var seen []string
	for _, v := range variations {
		cat := v.PrincipalCategory
		if _, ok := groups[cat]; !ok {
			seen = append(seen, cat)
		}
		groups[cat] = append(groups[cat], v.DiffPct)
	}

	out := make([]models.CategoryAggregate, 0, len(groups))
	for _, cat := range s.taxonomy.SortCategories(seen) {
		agg := models.CategoryAggregate{Category: cat}
		up, down, same := countMoves(groups[cat])
		agg.CountUp, agg.CountDown, agg.CountUnchanged = up, down, same
		agg.TotalCount = len(groups[cat])
		agg.MeanDiffPct = utils.Round2(utils.Mean(groups[cat]))
		out = append(out, agg)
	}
	return out
}

// Horizon summarises a whole comparison against the snapshot of comparedDate.
func (s *InsightService) Horizon(name, comparedDate string, variations []models.VariationRecord) *models.HorizonResult {
	pcts := diffPcts(variations)
	up, down, same := countMoves(pcts)
	return &models.HorizonResult{
		Horizon:        name,
		ComparedDate:   comparedDate,
		MatchedCount:   len(variations),
		MeanDiffPct:    utils.Round2(utils.Mean(pcts)),
		CountUp:        up,
		CountDown:      down,
		CountUnchanged: same,
	}
}

// Top returns at most n variations ordered by DiffPct in direction.
// Ties keep their input order.
func Top(variations []models.VariationRecord, n int, dir Direction) []models.VariationRecord {
	if n <= 0 || len(variations) == 0 {
		return []models.VariationRecord{}
	}

	sorted := make([]models.VariationRecord, len(variations))
	copy(sorted, variations)
	sort.SliceStable(sorted, func(i, j int) bool {
		if dir == Ascending {
			return sorted[i].DiffPct < sorted[j].DiffPct
		}
		return sorted[i].DiffPct > sorted[j].DiffPct
	})

	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// MeanDiffPct is the rounded mean percentage change of variations, 0 when empty.
func MeanDiffPct(variations []models.VariationRecord) float64 {
	return utils.Round2(utils.Mean(diffPcts(variations)))
}

func diffPcts(variations []models.VariationRecord) []float64 {
	out := make([]float64, len(variations))
	for i, v := range variations {
		out[i] = v.DiffPct
	}
	return out
}

func countMoves(pcts []float64) (up, down, same int) {
	for _, p := range pcts {
		switch {
		case p > 0:
			up++
		case p < 0:
			down++
		default:
			same++
		}
	}
	return up, down, same
}

package services

import (
	"testing"

	"price-tracker/models"
)

func variation(plu, category string, pct float64) models.VariationRecord {
	return models.VariationRecord{PLU: plu, PrincipalCategory: category, DiffPct: pct}
}

func TestAggregateOrderAndCounts(t *testing.T) {
	svc := NewInsightService(NewTaxonomy(nil, []string{"Frescos", "Almacén"}))
	vars := []models.VariationRecord{
		variation("1", "Otros", 1),
		variation("2", "Almacén", 2),
		variation("3", "Frescos", -4),
		variation("4", "Almacén", 0),
		variation("5", "Almacén", -1),
	}

	aggs := svc.Aggregate(vars)
	if len(aggs) != 3 {
		t.Fatalf("expected 3 categories, got %d", len(aggs))
	}
	for i, want := range []string{"Frescos", "Almacén", "Otros"} {
		if aggs[i].Category != want {
			t.Errorf("position %d: got %q, want %q", i, aggs[i].Category, want)
		}
	}

	a := aggs[1]
	if a.CountUp != 1 || a.CountDown != 1 || a.CountUnchanged != 1 || a.TotalCount != 3 {
		t.Errorf("Almacén counts: %+v", a)
	}
	if a.MeanDiffPct != 0.33 {
		t.Errorf("Almacén mean: got %v, want 0.33", a.MeanDiffPct)
	}
}

func TestAggregateMeansRoundedPercentages(t *testing.T) {
	svc := NewInsightService(DefaultTaxonomy())
	// 1/3 and 2/3 of a percent are stored as 0.33 and 0.67; their mean is 0.5.
	before := []*models.ProductPriceRecord{
		priced("1", "20260101", "X", 300),
		priced("2", "20260101", "X", 300),
	}
	after := []*models.ProductPriceRecord{
		priced("1", "20260102", "X", 301),
		priced("2", "20260102", "X", 302),
	}

	aggs := svc.Aggregate(Compare(after, before))
	if len(aggs) != 1 || aggs[0].MeanDiffPct != 0.5 {
		t.Errorf("expected mean 0.5 over rounded pcts, got %+v", aggs)
	}
}

func TestHorizon(t *testing.T) {
	svc := NewInsightService(DefaultTaxonomy())
	h := svc.Horizon("7d", "20260101", []models.VariationRecord{
		variation("1", "X", 10),
		variation("2", "X", -5),
		variation("3", "X", 0),
		variation("4", "X", 0),
	})
	if h.Horizon != "7d" || h.ComparedDate != "20260101" || h.MatchedCount != 4 {
		t.Errorf("header fields: %+v", h)
	}
	if h.MeanDiffPct != 1.25 {
		t.Errorf("MeanDiffPct: got %v, want 1.25", h.MeanDiffPct)
	}
	if h.CountUp != 1 || h.CountDown != 1 || h.CountUnchanged != 2 {
		t.Errorf("counts: %+v", h)
	}
}

func TestTopDirectionsAndTies(t *testing.T) {
	vars := []models.VariationRecord{
		variation("a", "X", 5),
		variation("b", "X", -3),
		variation("c", "X", 5),
		variation("d", "X", 12),
		variation("e", "X", -3),
	}

	up := Top(vars, 3, Descending)
	if got := joinPLUs(up); got != "d,a,c" {
		t.Errorf("Top up: got %s, want d,a,c", got)
	}

	down := Top(vars, 2, Ascending)
	if got := joinPLUs(down); got != "b,e" {
		t.Errorf("Top down: got %s, want b,e", got)
	}

	if all := Top(vars, 10, Descending); len(all) != 5 {
		t.Errorf("n above length should return everything, got %d", len(all))
	}
	if none := Top(vars, 0, Descending); none == nil || len(none) != 0 {
		t.Errorf("n=0 should return an empty slice, got %v", none)
	}
	if vars[0].PLU != "a" || vars[3].PLU != "d" {
		t.Error("Top must not reorder its input")
	}
}

func joinPLUs(vars []models.VariationRecord) string {
	s := ""
	for i, v := range vars {
		if i > 0 {
			s += ","
		}
		s += v.PLU
	}
	return s
}

func TestMeanDiffPctEmpty(t *testing.T) {
	if got := MeanDiffPct(nil); got != 0 {
		t.Errorf("MeanDiffPct(nil) = %v; want 0", got)
	}
}

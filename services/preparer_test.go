package services

import (
	"testing"

	"price-tracker/models"
	"price-tracker/utils"
)

func newTestPreparer() *Preparer {
	return NewPreparer(utils.NewNopLogger(), DefaultTaxonomy())
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		raw    string
		want   float64
		wantOK bool
	}{
		{"1310.05", 1310.05, true},
		{"$1.310,05", 1310.05, true},
		{"1,5", 1.5, true},
		{" 99 ", 99, true},
		{"-3", -3, true},
		{"0", 0, true},
		{"", 0, false},
		{"n/a", 0, false},
		{"1.2.3", 0, false},
		{"1.5e3", 1500, true},
		{"2E-1", 0.2, true},
		{"NaN", 0, false},
		{"Inf", 0, false},
	}

	for _, tt := range tests {
		got, ok := ParsePrice(tt.raw)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("ParsePrice(%q) = %.2f, %v; want %.2f, %v", tt.raw, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestPrepareDropsInvalidRegularPrice(t *testing.T) {
	p := newTestPreparer()
	raw := []*models.RawProduct{
		{PLU: "1", Name: "Absent", PriceRegular: ""},
		{PLU: "2", Name: "Zero", PriceRegular: "0"},
		{PLU: "3", Name: "Negative", PriceRegular: "-10"},
		{PLU: "4", Name: "Garbage", PriceRegular: "abc"},
		{PLU: "5", Name: "Valid", PriceRegular: "100"},
	}

	recs, stats := p.Prepare(raw, "20260101")
	if len(recs) != 1 || recs[0].PLU != "5" {
		t.Fatalf("expected only plu 5 to survive, got %d records", len(recs))
	}
	if stats.InvalidPrice != 4 || stats.Dropped() != 4 || stats.Kept != 1 {
		t.Errorf("stats: %+v", stats)
	}
}

func TestPrepareDeduplicatesKeepingFirst(t *testing.T) {
	p := newTestPreparer()
	raw := []*models.RawProduct{
		{PLU: "00123", Name: "First", PriceRegular: "10"},
		{PLU: "00123", Name: "Second", PriceRegular: "20"},
		{PLU: "123", Name: "Other", PriceRegular: "30"},
	}

	recs, stats := p.Prepare(raw, "20260101")
	if len(recs) != 2 {
		t.Fatalf("expected 2 records after deduplication, got %d", len(recs))
	}
	if recs[0].Name != "First" || recs[0].PriceRegular != 10 {
		t.Errorf("first occurrence should win, got %+v", recs[0])
	}
	if recs[1].PLU != "123" {
		t.Errorf("leading zeros must keep PLUs distinct, got %q", recs[1].PLU)
	}
	if stats.Duplicates != 1 {
		t.Errorf("Duplicates: got %d, want 1", stats.Duplicates)
	}
}

func TestPrepareDuplicateOfInvalidRowDoesNotShadow(t *testing.T) {
	p := newTestPreparer()
	raw := []*models.RawProduct{
		{PLU: "7", Name: "Broken", PriceRegular: ""},
		{PLU: "7", Name: "Fine", PriceRegular: "15"},
	}

	recs, _ := p.Prepare(raw, "20260101")
	if len(recs) != 1 || recs[0].Name != "Fine" {
		t.Fatalf("valid row after an invalid duplicate should be kept, got %+v", recs)
	}
}

func TestPrepareStampsDateAndCategory(t *testing.T) {
	p := newTestPreparer()
	raw := []*models.RawProduct{
		{PLU: "1", Name: "  Alfajor   triple ", Brand: "Havanna", Category: "Golosinas",
			PriceCurrent: "$1.000,50", PriceRegular: "1200"},
		{PLU: "2", Name: "Mouse", Category: "Electro", PriceCurrent: "promo", PriceRegular: "50"},
	}

	recs, _ := p.Prepare(raw, "20260315")
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}

	r := recs[0]
	if r.Date != "20260315" {
		t.Errorf("Date: got %q", r.Date)
	}
	if r.Name != "Alfajor triple" {
		t.Errorf("Name not normalised: %q", r.Name)
	}
	if r.PrincipalCategory != "Almacén" || r.RawCategory != "Golosinas" {
		t.Errorf("categories: raw %q principal %q", r.RawCategory, r.PrincipalCategory)
	}
	if r.PriceCurrent == nil || *r.PriceCurrent != 1000.50 {
		t.Errorf("PriceCurrent: got %v", r.PriceCurrent)
	}

	if recs[1].PriceCurrent != nil {
		t.Errorf("unparsable current price should be absent, got %v", *recs[1].PriceCurrent)
	}
	if recs[1].PrincipalCategory != "Electro" {
		t.Errorf("unknown category should map to itself, got %q", recs[1].PrincipalCategory)
	}
}

func TestPrepareEmptyInput(t *testing.T) {
	p := newTestPreparer()
	recs, stats := p.Prepare(nil, "20260101")
	if len(recs) != 0 || stats.Input != 0 {
		t.Errorf("expected empty result for empty input")
	}
}

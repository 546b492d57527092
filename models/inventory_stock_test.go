package models

import "testing"

func TestNormalizeWholeSlice_Invariant(t *testing.T) {
	cases := []struct {
		whole, slices, factor int
	}{
		{2, 5, 10},
		{0, 25, 10},
		{3, -4, 10},
		{0, -18, 10},
		{-1, 13, 6},
		{5, 0, 8},
		{0, 0, 10},
	}
	for _, c := range cases {
		w, s := NormalizeWholeSlice(c.whole, c.slices, c.factor)
		if s < 0 || s >= c.factor {
			t.Errorf("NormalizeWholeSlice(%d,%d,%d) = (%d,%d): slices out of [0,%d)", c.whole, c.slices, c.factor, w, s, c.factor)
		}
		if CombinedSlices(w, s, c.factor) != CombinedSlices(c.whole, c.slices, c.factor) {
			t.Errorf("NormalizeWholeSlice(%d,%d,%d) = (%d,%d): combined total changed", c.whole, c.slices, c.factor, w, s)
		}
	}
}

func TestNormalizeWholeSlice_BadFactor(t *testing.T) {
	w, s := NormalizeWholeSlice(3, -4, 0)
	if w != 3 || s != -4 {
		t.Errorf("factor 0 should be a no-op, got (%d,%d)", w, s)
	}
}

// Deducting 23 slices from whole=2, slices=5 at factor 10 must land on
// whole=0, slices=2 (combined 25-23=2).
func TestApplyProductionDelta_BorrowAcrossWholes(t *testing.T) {
	stock := InventoryStock{ProductionWhole: 2, ProductionSlices: 5}
	out := stock.ApplyProductionDelta(0, -23, 10)
	if out.ProductionWhole != 0 || out.ProductionSlices != 2 {
		t.Fatalf("got whole=%d slices=%d, want whole=0 slices=2", out.ProductionWhole, out.ProductionSlices)
	}
	// Receiver must be untouched.
	if stock.ProductionWhole != 2 || stock.ProductionSlices != 5 {
		t.Fatalf("original record mutated: %+v", stock)
	}
}

func TestApplyProductionDelta_RoundTrip(t *testing.T) {
	start := InventoryStock{ProductionWhole: 4, ProductionSlices: 7}
	credited := start.ApplyProductionDelta(2, 9, 12)
	back := credited.ApplyProductionDelta(-2, -9, 12)
	if back.ProductionWhole != start.ProductionWhole || back.ProductionSlices != start.ProductionSlices {
		t.Fatalf("credit then debit did not round-trip: %+v", back)
	}
}

func TestWithOutletStock_CreatesEntryWhenAbsent(t *testing.T) {
	stock := InventoryStock{ID: 7}
	out := stock.WithOutletStock("Downtown", -1, -3, 10)
	if len(out.OutletStocks) != 1 {
		t.Fatalf("expected 1 outlet stock, got %d", len(out.OutletStocks))
	}
	entry := out.OutletStocks[0]
	if entry.OutletName != "Downtown" || entry.InventoryStockId != 7 {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	// 0 whole, 0 slices minus (1 whole, 3 slices) = -13 combined = -2 whole, 7 slices.
	if entry.Whole != -2 || entry.Slices != 7 {
		t.Fatalf("got whole=%d slices=%d, want whole=-2 slices=7", entry.Whole, entry.Slices)
	}
	if len(stock.OutletStocks) != 0 {
		t.Fatal("original record grew an outlet entry")
	}
}

func TestWithOutletStock_UpdatesExistingEntry(t *testing.T) {
	stock := InventoryStock{
		OutletStocks: []OutletStock{{OutletName: "Downtown", Whole: 3, Slices: 2}},
	}
	out := stock.WithOutletStock("Downtown", 0, 9, 10)
	if len(out.OutletStocks) != 1 {
		t.Fatalf("expected entry reuse, got %d entries", len(out.OutletStocks))
	}
	if out.OutletStocks[0].Whole != 4 || out.OutletStocks[0].Slices != 1 {
		t.Fatalf("got whole=%d slices=%d, want whole=4 slices=1", out.OutletStocks[0].Whole, out.OutletStocks[0].Slices)
	}
}

func TestApplyProdsReqDelta_CarriesOverflow(t *testing.T) {
	stock := InventoryStock{ProdsReqWhole: 1, ProdsReqSlices: 8}
	out := stock.ApplyProdsReqDelta(0, 5, 10)
	if out.ProdsReqWhole != 2 || out.ProdsReqSlices != 3 {
		t.Fatalf("got whole=%d slices=%d, want whole=2 slices=3", out.ProdsReqWhole, out.ProdsReqSlices)
	}
}

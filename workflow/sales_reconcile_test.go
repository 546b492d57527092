package workflow

import (
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/bakestock_backend/models"
	"github.com/shopspring/decimal"
)

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func downtownFixture() ([]models.Outlet, []models.Product, []models.ProductConversion) {
	outlets := []models.Outlet{
		{ID: 1, Name: "Downtown", OutletType: models.OutletTypeSales},
		{ID: 2, Name: "Main Kitchen", OutletType: models.OutletTypeProduction},
	}
	products := []models.Product{
		{ID: 10, Name: "Cake (Whole)", Unit: "pcs", ProductType: models.ProductTypeKitchen},
		{ID: 11, Name: "Cake (Slice)", Unit: "slice", ProductType: models.ProductTypeMenu},
		{ID: 20, Name: "Flour", Unit: "kg", ProductType: models.ProductTypeRaw},
	}
	conversions := []models.ProductConversion{
		{WholeProductId: 10, SliceProductId: 11, ConversionFactor: 10},
	}
	return outlets, products, conversions
}

func downtownCheck(counts ...models.StockCount) []models.StockCheck {
	return []models.StockCheck{{
		ID:         1,
		OutletName: "Downtown",
		CheckDate:  "2024-03-01",
		Timestamp:  time.Date(2024, 3, 1, 21, 0, 0, 0, time.UTC),
		Counts:     counts,
	}}
}

// Opening 5, received 10, wastage 1, sold 6 => expected closing 8. With the
// counted closing also 8, the discrepancy is zero.
func TestReconcileSalesRows_ZeroDiscrepancy(t *testing.T) {
	outlets, products, conversions := downtownFixture()
	checks := downtownCheck(models.StockCount{
		ProductId: 10, Quantity: dec(8), OpeningStock: dec(5), ReceivedStock: dec(10), Wastage: dec(1),
	})
	sheet := &ParsedSalesSheet{
		OutletName: "Downtown",
		Date:       "2024-03-01",
		Lines:      []SalesLine{{Name: "Cake (Whole)", Unit: "pcs", Sold: dec(6)}},
	}

	result := ReconcileSalesRows(sheet, outlets, checks, products, conversions, ReconcileOptions{})

	if !result.OutletMatched || !result.DateMatched {
		t.Fatalf("expected full match, got %+v", result)
	}
	if len(result.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(result.Rows))
	}
	row := result.Rows[0]
	if row.ExpectedClosing == nil || !row.ExpectedClosing.Equal(dec(8)) {
		t.Fatalf("expected closing 8, got %v", row.ExpectedClosing)
	}
	if row.Discrepancy == nil || !row.Discrepancy.IsZero() {
		t.Fatalf("expected zero discrepancy, got %v", row.Discrepancy)
	}
}

// Same inputs but closing counted at 5: shortage of 3 must be flagged.
func TestReconcileSalesRows_ShortageFlagged(t *testing.T) {
	outlets, products, conversions := downtownFixture()
	checks := downtownCheck(models.StockCount{
		ProductId: 10, Quantity: dec(5), OpeningStock: dec(5), ReceivedStock: dec(10), Wastage: dec(1),
	})
	sheet := &ParsedSalesSheet{
		OutletName: "Downtown",
		Date:       "2024-03-01",
		Lines:      []SalesLine{{Name: "Cake (Whole)", Unit: "pcs", Sold: dec(6)}},
	}

	result := ReconcileSalesRows(sheet, outlets, checks, products, conversions, ReconcileOptions{})
	row := result.Rows[0]
	if row.Discrepancy == nil || !row.Discrepancy.Equal(dec(-3)) {
		t.Fatalf("expected discrepancy -3, got %v", row.Discrepancy)
	}
}

// Every reconciled row must satisfy the identity
// expectedClosing == opening + received - wastage - sold exactly.
func TestReconcileSalesRows_ExpectedClosingIdentity(t *testing.T) {
	outlets, products, conversions := downtownFixture()
	checks := downtownCheck(
		models.StockCount{ProductId: 10, Quantity: dec(8), OpeningStock: dec(5), ReceivedStock: dec(10), Wastage: dec(1)},
		models.StockCount{ProductId: 20, Quantity: dec(12), OpeningStock: dec(40), ReceivedStock: dec(2), Wastage: dec(0)},
	)
	sheet := &ParsedSalesSheet{
		OutletName: "Downtown",
		Date:       "2024-03-01",
		Lines: []SalesLine{
			{Name: "Cake (Whole)", Unit: "pcs", Sold: dec(6)},
			{Name: "Flour", Unit: "kg", Sold: dec(30)},
		},
	}

	result := ReconcileSalesRows(sheet, outlets, checks, products, conversions, ReconcileOptions{})
	for _, row := range result.Rows {
		want := row.Opening.Add(*row.Received).Sub(*row.Wastage).Sub(row.Sold)
		if !row.ExpectedClosing.Equal(want) {
			t.Errorf("%s: expectedClosing %v != identity %v", row.Name, row.ExpectedClosing, want)
		}
		wantDisc := row.Closing.Sub(*row.ExpectedClosing)
		if !row.Discrepancy.Equal(wantDisc) {
			t.Errorf("%s: discrepancy %v != closing-expected %v", row.Name, row.Discrepancy, wantDisc)
		}
	}
}

// No stock check on the sheet date: sold-only rows, no reconciliation math.
func TestReconcileSalesRows_DateMismatchGuard(t *testing.T) {
	outlets, products, conversions := downtownFixture()
	checks := downtownCheck(models.StockCount{ProductId: 10, Quantity: dec(8)})
	sheet := &ParsedSalesSheet{
		OutletName: "Downtown",
		Date:       "2024-03-02",
		Lines:      []SalesLine{{Name: "Cake (Whole)", Unit: "pcs", Sold: dec(6)}},
	}

	result := ReconcileSalesRows(sheet, outlets, checks, products, conversions, ReconcileOptions{})
	if result.DateMatched {
		t.Fatal("date should not have matched")
	}
	row := result.Rows[0]
	if row.Opening != nil || row.ExpectedClosing != nil || row.Discrepancy != nil {
		t.Fatalf("reconciliation fields must stay unset without a matched check: %+v", row)
	}
	if !row.Sold.Equal(dec(6)) {
		t.Fatalf("sold must still be carried, got %v", row.Sold)
	}
}

func TestReconcileSalesRows_UnknownOutletFailsOpen(t *testing.T) {
	outlets, products, conversions := downtownFixture()
	sheet := &ParsedSalesSheet{
		OutletName: "Uptown",
		Date:       "2024-03-01",
		Lines:      []SalesLine{{Name: "Cake (Whole)", Unit: "pcs", Sold: dec(2)}},
	}

	result := ReconcileSalesRows(sheet, outlets, nil, products, conversions, ReconcileOptions{})
	if result.OutletMatched {
		t.Fatal("outlet should not have matched")
	}
	if len(result.Rows) != 1 {
		t.Fatal("parsing must continue after an outlet mismatch")
	}
	if len(result.Errors) == 0 {
		t.Fatal("outlet mismatch must be reported")
	}
}

func TestReconcileSalesRows_UnknownProductAccumulatesError(t *testing.T) {
	outlets, products, conversions := downtownFixture()
	checks := downtownCheck(models.StockCount{ProductId: 10, Quantity: dec(8), OpeningStock: dec(5)})
	sheet := &ParsedSalesSheet{
		OutletName: "Downtown",
		Date:       "2024-03-01",
		Lines: []SalesLine{
			{Name: "Mystery Pie", Unit: "pcs", Sold: dec(1)},
			{Name: "Cake (Whole)", Unit: "pcs", Sold: dec(2)},
		},
	}

	result := ReconcileSalesRows(sheet, outlets, checks, products, conversions, ReconcileOptions{})
	if len(result.Rows) != 2 {
		t.Fatalf("bad row must not abort the batch, got %d rows", len(result.Rows))
	}
	if result.Rows[0].ProductId != nil {
		t.Fatal("unknown product row should have nil product id")
	}
	if result.Rows[1].ProductId == nil {
		t.Fatal("known product row lost its id")
	}
	if len(result.Errors) == 0 {
		t.Fatal("unknown product must be reported")
	}
}

func TestReconcileSalesRows_ReceivedOverride(t *testing.T) {
	outlets, products, conversions := downtownFixture()
	checks := downtownCheck(models.StockCount{
		ProductId: 10, Quantity: dec(8), OpeningStock: dec(5), ReceivedStock: dec(10), Wastage: dec(1),
	})
	sheet := &ParsedSalesSheet{
		OutletName: "Downtown",
		Date:       "2024-03-01",
		Lines:      []SalesLine{{Name: "Cake (Whole)", Unit: "pcs", Sold: dec(6)}},
	}
	opts := ReconcileOptions{RequestsReceivedByProductId: map[int]decimal.Decimal{10: dec(12)}}

	result := ReconcileSalesRows(sheet, outlets, checks, products, conversions, opts)
	row := result.Rows[0]
	if !row.Received.Equal(dec(12)) {
		t.Fatalf("override not applied, received=%v", row.Received)
	}
	// 5 + 12 - 1 - 6 = 10
	if !row.ExpectedClosing.Equal(dec(10)) {
		t.Fatalf("expected closing 10 with override, got %v", row.ExpectedClosing)
	}
}

func TestReconcileSalesRows_SplitUnits(t *testing.T) {
	outlets, products, conversions := downtownFixture()
	// Combined values in slice units: opening 25 (=2 whole + 5 slices).
	checks := downtownCheck(models.StockCount{
		ProductId: 10, Quantity: dec(2), OpeningStock: dec(25), ReceivedStock: dec(0), Wastage: dec(0),
	})
	wholeSold := dec(2)
	sliceSold := dec(3)
	sheet := &ParsedSalesSheet{
		OutletName: "Downtown",
		Date:       "2024-03-01",
		Lines: []SalesLine{{
			Name: "Cake (Whole)", Unit: "pcs", Sold: dec(23),
			WholeSold: &wholeSold, SliceSold: &sliceSold,
		}},
	}

	result := ReconcileSalesRows(sheet, outlets, checks, products, conversions, ReconcileOptions{})
	row := result.Rows[0]
	if len(row.SplitUnits) != 2 {
		t.Fatalf("expected whole+slice breakdown, got %d sub-rows", len(row.SplitUnits))
	}
	whole, slice := row.SplitUnits[0], row.SplitUnits[1]
	if whole.UnitKind != "whole" || slice.UnitKind != "slice" {
		t.Fatalf("unexpected unit kinds: %s/%s", whole.UnitKind, slice.UnitKind)
	}
	if !whole.Opening.Equal(dec(2)) || !slice.Opening.Equal(dec(5)) {
		t.Fatalf("opening split wrong: whole=%v slice=%v", whole.Opening, slice.Opening)
	}
	if !whole.Sold.Equal(dec(2)) || !slice.Sold.Equal(dec(3)) {
		t.Fatalf("sold split wrong: whole=%v slice=%v", whole.Sold, slice.Sold)
	}
	// Parent row keeps the combined totals.
	if !row.Sold.Equal(dec(23)) {
		t.Fatalf("parent sold changed: %v", row.Sold)
	}
}

func TestSplitValue_Recombines(t *testing.T) {
	for _, v := range []int64{0, 7, 10, 23, 25, 101} {
		whole, slices := SplitValue(dec(v), 10)
		back := whole.Mul(dec(10)).Add(slices)
		if !back.Equal(dec(v)) {
			t.Errorf("SplitValue(%d,10) = (%v,%v) does not recombine", v, whole, slices)
		}
		if slices.IsNegative() || slices.GreaterThanOrEqual(dec(10)) {
			t.Errorf("SplitValue(%d,10): slice part %v out of range", v, slices)
		}
	}
}

// Two checks for the same outlet/date: the newer timestamp wins.
func TestReconcileSalesRows_PicksLatestCheck(t *testing.T) {
	outlets, products, conversions := downtownFixture()
	checks := []models.StockCheck{
		{
			ID: 1, OutletName: "Downtown", CheckDate: "2024-03-01",
			Timestamp: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
			Counts:    []models.StockCount{{ProductId: 10, Quantity: dec(99)}},
		},
		{
			ID: 2, OutletName: "Downtown", CheckDate: "2024-03-01",
			Timestamp: time.Date(2024, 3, 1, 21, 0, 0, 0, time.UTC),
			Counts:    []models.StockCount{{ProductId: 10, Quantity: dec(8), OpeningStock: dec(5), ReceivedStock: dec(10), Wastage: dec(1)}},
		},
	}
	sheet := &ParsedSalesSheet{
		OutletName: "Downtown",
		Date:       "2024-03-01",
		Lines:      []SalesLine{{Name: "Cake (Whole)", Unit: "pcs", Sold: dec(6)}},
	}

	result := ReconcileSalesRows(sheet, outlets, checks, products, conversions, ReconcileOptions{})
	if !result.Rows[0].Closing.Equal(dec(8)) {
		t.Fatalf("expected the 21:00 check's closing 8, got %v", result.Rows[0].Closing)
	}
}

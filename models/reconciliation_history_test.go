package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dptr(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func sampleRows() []SalesRow {
	return []SalesRow{
		{Name: "Cake (Whole)", Sold: decimal.NewFromInt(6), Opening: dptr(5), Received: dptr(10), Closing: dptr(8)},
		{Name: "Flour", Sold: decimal.NewFromInt(30), Opening: dptr(35), Received: dptr(0), Closing: dptr(5)},
	}
}

func TestRowsEquivalent_Identical(t *testing.T) {
	if !RowsEquivalent(sampleRows(), sampleRows()) {
		t.Fatal("identical rows reported as different")
	}
}

func TestRowsEquivalent_DetectsChanges(t *testing.T) {
	base := sampleRows()

	changedSold := sampleRows()
	changedSold[0].Sold = decimal.NewFromInt(7)
	if RowsEquivalent(base, changedSold) {
		t.Fatal("sold change not detected")
	}

	changedClosing := sampleRows()
	changedClosing[1].Closing = dptr(4)
	if RowsEquivalent(base, changedClosing) {
		t.Fatal("closing change not detected")
	}

	nilOpening := sampleRows()
	nilOpening[0].Opening = nil
	if RowsEquivalent(base, nilOpening) {
		t.Fatal("nil vs set opening not detected")
	}

	if RowsEquivalent(base, base[:1]) {
		t.Fatal("length change not detected")
	}
}

func TestRowsEquivalent_IgnoresNonCompareFields(t *testing.T) {
	a := sampleRows()
	b := sampleRows()
	// Discrepancy/wastage/notes are derived or cosmetic; they are not part of
	// the change-detection key.
	b[0].Discrepancy = dptr(99)
	b[0].Wastage = dptr(3)
	note := "recount"
	b[0].Notes = &note
	if !RowsEquivalent(a, b) {
		t.Fatal("non-compared field flagged a change")
	}
}

package workflow

import (
	"fmt"

	"bitbucket.org/mmdatafocus/bakestock_backend/models"
	"bitbucket.org/mmdatafocus/bakestock_backend/utils"
	"github.com/shopspring/decimal"
)

// ReconcileOptions carries the optional override inputs of one pass.
type ReconcileOptions struct {
	// RequestsReceivedByProductId overrides the stock check's receivedStock
	// per product, e.g. from approved product-request totals.
	RequestsReceivedByProductId map[int]decimal.Decimal
}

// ReconcileSalesRows is the DB-free reconciliation core: matches the parsed
// sheet against outlets and stock checks and computes per-row discrepancy
// math. A single bad row never aborts the batch; its message is appended to
// Errors and processing continues.
func ReconcileSalesRows(
	sheet *ParsedSalesSheet,
	outlets []models.Outlet,
	stockChecks []models.StockCheck,
	products []models.Product,
	conversions []models.ProductConversion,
	opts ReconcileOptions,
) models.SalesReconcileResult {

	result := models.SalesReconcileResult{
		OutletFromSheet: sheet.OutletName,
		SheetDate:       sheet.Date,
	}

	outlet, outletMatched := models.MatchOutletName(outlets, sheet.OutletName)
	result.OutletMatched = outletMatched
	if outletMatched {
		name := outlet.Name
		result.MatchedOutletName = &name
	} else {
		result.Errors = append(result.Errors, fmt.Sprintf("outlet %q not found", sheet.OutletName))
	}

	var check *models.StockCheck
	if outletMatched {
		check = models.LatestStockCheckFor(stockChecks, outlet.Name, sheet.Date)
	}
	if check != nil {
		result.DateMatched = true
		result.StockCheckDate = &check.CheckDate
	} else if outletMatched {
		result.Errors = append(result.Errors, fmt.Sprintf("no stock check for outlet %q on %s", outlet.Name, sheet.Date))
	}

	catalog := models.NewProductCatalog(products)
	convIndex := models.NewConversionIndex(conversions)

	for _, line := range sheet.Lines {
		row := models.SalesRow{
			Name: line.Name,
			Unit: line.Unit,
			Sold: line.Sold,
		}

		lookup := catalog.GetByName(line.Name)
		if !lookup.Found {
			result.Errors = append(result.Errors, fmt.Sprintf("product %q not found", line.Name))
			result.Rows = append(result.Rows, row)
			continue
		}
		pid := lookup.Product.ID
		row.ProductId = &pid

		// Without a matched check the expected-closing math is meaningless;
		// the row carries sold only.
		if check == nil {
			result.Rows = append(result.Rows, row)
			continue
		}

		opening := decimal.Zero
		received := decimal.Zero
		wastage := decimal.Zero
		closing := decimal.Zero
		if count := check.CountFor(pid); count != nil {
			opening = count.OpeningStock
			received = count.ReceivedStock
			wastage = count.Wastage
			closing = count.Quantity
			row.Notes = count.Notes
		}
		if override, ok := opts.RequestsReceivedByProductId[pid]; ok {
			received = override
		}

		expected := opening.Add(received).Sub(wastage).Sub(line.Sold)
		discrepancy := closing.Sub(expected)

		row.Opening = &opening
		row.Received = &received
		row.Wastage = &wastage
		row.Closing = &closing
		row.ExpectedClosing = &expected
		row.Discrepancy = &discrepancy

		if pair := convIndex.Resolve(pid); pair != nil && line.WholeSold != nil && line.SliceSold != nil {
			row.SplitUnits = buildSplitUnits(row, *line.WholeSold, *line.SliceSold, pair.Factor)
		}

		result.Rows = append(result.Rows, row)
	}
	return result
}

// SplitValue decomposes a combined slice-unit value into (whole, slices):
// whole units are floored, the remainder stays in slices. The two parts
// always recombine to the input.
func SplitValue(combined decimal.Decimal, factor int) (decimal.Decimal, decimal.Decimal) {
	if factor <= 0 {
		return decimal.Zero, combined
	}
	f := decimal.NewFromInt(int64(factor))
	whole := combined.Div(f).Floor()
	slices := combined.Sub(whole.Mul(f))
	return whole, slices
}

// buildSplitUnits derives the per-unit breakdown of a convertible row. The
// sheet supplies the sold split directly; the remaining fields are split from
// the parent's combined totals.
func buildSplitUnits(row models.SalesRow, wholeSold, sliceSold decimal.Decimal, factor int) []models.SplitUnitRow {
	openW, openS := SplitValue(utils.DereferencePtr(row.Opening), factor)
	recvW, recvS := SplitValue(utils.DereferencePtr(row.Received), factor)
	wastW, wastS := SplitValue(utils.DereferencePtr(row.Wastage), factor)
	closW, closS := SplitValue(utils.DereferencePtr(row.Closing), factor)

	expectedW := openW.Add(recvW).Sub(wastW).Sub(wholeSold)
	expectedS := openS.Add(recvS).Sub(wastS).Sub(sliceSold)

	return []models.SplitUnitRow{
		{
			UnitKind:        "whole",
			Sold:            wholeSold,
			Opening:         openW,
			Received:        recvW,
			Wastage:         wastW,
			Closing:         closW,
			ExpectedClosing: expectedW,
			Discrepancy:     closW.Sub(expectedW),
		},
		{
			UnitKind:        "slice",
			Sold:            sliceSold,
			Opening:         openS,
			Received:        recvS,
			Wastage:         wastS,
			Closing:         closS,
			ExpectedClosing: expectedS,
			Discrepancy:     closS.Sub(expectedS),
		},
	}
}

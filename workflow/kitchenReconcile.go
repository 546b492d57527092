package workflow

import (
	"fmt"

	"bitbucket.org/mmdatafocus/bakestock_backend/models"
	"github.com/shopspring/decimal"
)

type KitchenOptions struct {
	// ManualStockByProductId replaces the stock check's receivedStock per
	// product when a supplementary manual-count sheet is the better source.
	ManualStockByProductId map[int]decimal.Decimal
}

// ReconcileKitchenRows matches a kitchen-production sheet against the stock
// check for the parsed outlet/date. Unlike the sales reconciler this fails
// closed: without a matching check no discrepancies are computed at all.
func ReconcileKitchenRows(
	sheet *ParsedKitchenSheet,
	outlets []models.Outlet,
	stockChecks []models.StockCheck,
	products []models.Product,
	opts KitchenOptions,
) models.KitchenStockCheckResult {

	result := models.KitchenStockCheckResult{
		ProductionDate: &sheet.ProductionDate,
	}

	outlet, outletMatched := models.MatchOutletName(outlets, sheet.OutletName)
	if !outletMatched {
		result.Errors = append(result.Errors, fmt.Sprintf("outlet %q not found", sheet.OutletName))
		return result
	}
	name := outlet.Name
	result.OutletName = &name

	check := models.LatestStockCheckFor(stockChecks, outlet.Name, sheet.ProductionDate)
	if check == nil {
		result.Errors = append(result.Errors, fmt.Sprintf("no stock check for outlet %q on %s", outlet.Name, sheet.ProductionDate))
		return result
	}
	result.Matched = true
	result.StockCheckDate = &check.CheckDate

	catalog := models.NewProductCatalog(products)
	for _, line := range sheet.Lines {
		lookup := catalog.GetByName(line.Name)
		if !lookup.Found {
			result.Errors = append(result.Errors, fmt.Sprintf("product %q not found", line.Name))
			continue
		}
		pid := lookup.Product.ID

		opening := decimal.Zero
		received := decimal.Zero
		if count := check.CountFor(pid); count != nil {
			opening = count.OpeningStock
			received = count.ReceivedStock
		}
		if override, ok := opts.ManualStockByProductId[pid]; ok {
			received = override
		}

		result.Discrepancies = append(result.Discrepancies, models.KitchenDiscrepancy{
			ProductName:          lookup.Product.Name,
			Unit:                 line.Unit,
			OpeningStock:         opening,
			ReceivedInStockCheck: received,
			KitchenProduction:    line.Production,
			Discrepancy:          line.Production.Sub(received),
		})
	}
	return result
}

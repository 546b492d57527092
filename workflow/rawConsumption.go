package workflow

import (
	"sort"

	"bitbucket.org/mmdatafocus/bakestock_backend/models"
	"github.com/shopspring/decimal"
)

// ComputeRawConsumption derives raw-ingredient usage from the reconciled sold
// rows via recipe bills of materials. Usage is summed, never overwritten,
// when multiple sold items share a raw ingredient. TotalStock/ExpectedClosing
// are filled only when production stock checks are supplied.
func ComputeRawConsumption(
	rows []models.SalesRow,
	recipes []models.Recipe,
	products []models.Product,
	productionChecks []models.StockCheck,
) models.RawConsumptionResult {

	catalog := models.NewProductCatalog(products)
	consumed := make(map[int]decimal.Decimal)

	for _, row := range rows {
		if row.ProductId == nil || row.Sold.IsZero() {
			continue
		}
		recipe := models.RecipeFor(recipes, *row.ProductId)
		if recipe == nil {
			continue
		}
		for _, item := range recipe.Items {
			usage := item.QuantityPerUnit.Mul(row.Sold)
			consumed[item.RawProductId] = consumed[item.RawProductId].Add(usage)
		}
	}

	var available map[int]decimal.Decimal
	if len(productionChecks) > 0 {
		available = make(map[int]decimal.Decimal)
		for _, check := range productionChecks {
			for _, count := range check.Counts {
				available[count.ProductId] = available[count.ProductId].Add(count.NetStock())
			}
		}
	}

	rawIds := make([]int, 0, len(consumed))
	for id := range consumed {
		rawIds = append(rawIds, id)
	}
	sort.Ints(rawIds)

	var result models.RawConsumptionResult
	for _, rawId := range rawIds {
		row := models.RawConsumptionRow{
			RawProductId: rawId,
			Consumed:     consumed[rawId],
		}
		if lookup := catalog.Get(rawId); lookup.Found {
			row.RawName = lookup.Product.Name
			row.RawUnit = lookup.Product.Unit
		}
		if available != nil {
			if total, ok := available[rawId]; ok {
				expected := total.Sub(consumed[rawId])
				row.TotalStock = &total
				row.ExpectedClosing = &expected
			}
		}
		result.Rows = append(result.Rows, row)
	}
	return result
}

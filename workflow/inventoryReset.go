package workflow

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/bakestock_backend/config"
	"bitbucket.org/mmdatafocus/bakestock_backend/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// applyInventoryReset overwrites the ledger from an authoritative stock check
// (ReplaceAllInventory set): each convertible product's section is set to the
// check's counted closing quantity instead of keeping the incrementally
// deducted value. Runs after deduction so the counted numbers win.
func applyInventoryReset(
	ctx context.Context,
	tx *gorm.DB,
	logger *logrus.Logger,
	businessId string,
	outlet models.Outlet,
	check *models.StockCheck,
	conversions []models.ProductConversion,
) error {

	convIndex := models.NewConversionIndex(conversions)
	now := time.Now().UTC()

	for _, count := range check.Counts {
		pair := convIndex.Resolve(count.ProductId)
		if pair == nil {
			continue
		}
		whole, slices := SplitValue(count.Quantity, pair.Factor)

		stock, err := models.GetOrCreateInventoryStock(tx, businessId, pair.WholeProductId)
		if err != nil {
			config.LogError(logger, "inventoryReset.go", "applyInventoryReset", "Loading inventory stock", count.ProductId, err)
			return err
		}

		w, s := int(whole.IntPart()), int(slices.IntPart())
		if outlet.OutletType == models.OutletTypeProduction {
			stock.ProductionWhole = w
			stock.ProductionSlices = s
		} else {
			// Replace by delta so the counted value lands through the normal
			// carry/borrow path.
			cur := stock.OutletEntry(outlet.Name)
			stock = stock.WithOutletStock(outlet.Name, w-cur.Whole, s-cur.Slices, pair.Factor)
		}
		if err := models.SaveInventoryStock(tx, &stock); err != nil {
			config.LogError(logger, "inventoryReset.go", "applyInventoryReset", "Saving inventory stock", stock, err)
			return err
		}
		if err := models.PublishToSync(ctx, tx, businessId, now, stock.ID, models.SyncReferenceTypeInventoryStock, stock, nil, models.SyncActionUpdate); err != nil {
			return err
		}
	}

	logger.WithFields(logrus.Fields{
		"event":       "inventory_reset_applied",
		"business_id": businessId,
		"outlet":      outlet.Name,
		"check_date":  check.CheckDate,
	}).Info("authoritative stock check replaced ledger values")
	return nil
}

package workflow

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/bakestock_backend/config"
	"bitbucket.org/mmdatafocus/bakestock_backend/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// RestoreReconciliationDate undoes everything a date's reconciliations did:
// FIFO takes are re-credited to the exact stock counts they came from, ledger
// deductions are added back at their outlet, ProdsReq credits are backed out,
// and the markers plus history entries are removed. This is the one place in
// the engine that performs compensating writes instead of forward application.
func RestoreReconciliationDate(ctx context.Context, tx *gorm.DB, logger *logrus.Logger, businessId, date string) error {
	deductions, err := models.LoadSalesDeductionsForDate(tx, businessId, date)
	if err != nil {
		config.LogError(logger, "deductionReversal.go", "RestoreReconciliationDate", "Loading sales deductions", date, err)
		return err
	}

	var conversions []models.ProductConversion
	if err := tx.Where("business_id = ?", businessId).Find(&conversions).Error; err != nil {
		return err
	}
	convIndex := models.NewConversionIndex(conversions)

	outletTypes := make(map[string]models.OutletType)
	var outlets []models.Outlet
	if err := tx.Where("business_id = ?", businessId).Find(&outlets).Error; err != nil {
		return err
	}
	for _, o := range outlets {
		outletTypes[o.Name] = o.OutletType
	}

	now := time.Now().UTC()
	for _, d := range deductions {
		// FIFO takes: give each stock count back exactly what was taken.
		for _, detail := range d.Details {
			if err := tx.Model(&models.StockCount{}).
				Where("id = ?", detail.StockCountId).
				Update("received_stock", gorm.Expr("received_stock + ?", detail.Quantity)).Error; err != nil {
				config.LogError(logger, "deductionReversal.go", "RestoreReconciliationDate", "Re-crediting stock count", detail, err)
				return err
			}
		}

		// Ledger deductions: add back what the convertible path subtracted.
		if d.WholeDeducted != 0 || d.SlicesDeducted != 0 || d.ReqWholeCredited != 0 || d.ReqSlicesCredited != 0 {
			pair := convIndex.Resolve(d.ProductId)
			if pair != nil {
				stock, err := models.GetOrCreateInventoryStock(tx, businessId, pair.WholeProductId)
				if err != nil {
					return err
				}
				if outletTypes[d.OutletName] == models.OutletTypeProduction {
					stock = stock.ApplyProductionDelta(d.WholeDeducted, d.SlicesDeducted, pair.Factor)
				} else {
					stock = stock.WithOutletStock(d.OutletName, d.WholeDeducted, d.SlicesDeducted, pair.Factor)
				}
				stock = stock.ApplyProdsReqDelta(-d.ReqWholeCredited, -d.ReqSlicesCredited, pair.Factor)
				if err := models.SaveInventoryStock(tx, &stock); err != nil {
					return err
				}
				if err := models.PublishToSync(ctx, tx, businessId, now, stock.ID, models.SyncReferenceTypeInventoryStock, stock, nil, models.SyncActionUpdate); err != nil {
					return err
				}
			} else {
				logger.WithFields(logrus.Fields{
					"event":      "restore_missing_conversion",
					"outlet":     d.OutletName,
					"product_id": d.ProductId,
					"sales_date": d.SalesDate,
				}).Warn("conversion no longer exists, ledger restore skipped for product")
			}
		}

		if err := tx.Where("sales_deduction_id = ?", d.ID).Delete(&models.SalesDeductionDetail{}).Error; err != nil {
			return err
		}
		if err := models.PublishToSync(ctx, tx, businessId, now, d.ID, models.SyncReferenceTypeSalesDeduction, nil, d, models.SyncActionDelete); err != nil {
			return err
		}
		if err := tx.Delete(&models.SalesDeduction{}, d.ID).Error; err != nil {
			return err
		}
	}

	var histories []models.ReconciliationHistory
	if err := tx.Where("business_id = ? AND date = ?", businessId, date).Find(&histories).Error; err != nil {
		return err
	}
	for _, h := range histories {
		if err := models.PublishToSync(ctx, tx, businessId, now, h.ID, models.SyncReferenceTypeReconciliationHistory, nil, h, models.SyncActionDelete); err != nil {
			return err
		}
		if err := models.DeleteReconciliationHistory(tx, businessId, h.Date, h.OutletName); err != nil {
			return err
		}
	}

	logger.WithFields(logrus.Fields{
		"event":       "reconciliation_restored",
		"business_id": businessId,
		"date":        date,
		"deductions":  len(deductions),
	}).Info("reconciliation date restored")
	return nil
}

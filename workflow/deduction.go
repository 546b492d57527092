package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/bakestock_backend/config"
	"bitbucket.org/mmdatafocus/bakestock_backend/models"
	"bitbucket.org/mmdatafocus/bakestock_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// FifoStep is one planned take from a production stock count.
type FifoStep struct {
	StockCheckId int
	StockCountId int
	Take         decimal.Decimal
}

type FifoPlan struct {
	Steps     []FifoStep
	Available decimal.Decimal
}

// PlanFifoDeduction walks production stock checks newest-first and plans
// takes of net stock (receivedStock - wastage, floored at 0) until required
// is covered. All-or-nothing: when the pool cannot cover the requirement it
// returns ErrInsufficientStock and an empty plan, so no check is ever
// partially deducted.
func PlanFifoDeduction(checksNewestFirst []models.StockCheck, productId int, required decimal.Decimal) (FifoPlan, error) {
	plan := FifoPlan{}
	if required.LessThanOrEqual(decimal.Zero) {
		return plan, nil
	}

	for _, check := range checksNewestFirst {
		for _, count := range check.Counts {
			if count.ProductId != productId {
				continue
			}
			plan.Available = plan.Available.Add(count.NetStock())
		}
	}
	if plan.Available.LessThan(required) {
		return FifoPlan{Available: plan.Available}, utils.ErrInsufficientStock
	}

	remaining := required
	for _, check := range checksNewestFirst {
		if remaining.LessThanOrEqual(decimal.Zero) {
			break
		}
		for _, count := range check.Counts {
			if count.ProductId != productId || remaining.LessThanOrEqual(decimal.Zero) {
				continue
			}
			net := count.NetStock()
			if net.LessThanOrEqual(decimal.Zero) {
				continue
			}
			take := net
			if take.GreaterThan(remaining) {
				take = remaining
			}
			plan.Steps = append(plan.Steps, FifoStep{
				StockCheckId: check.ID,
				StockCountId: count.ID,
				Take:         take,
			})
			remaining = remaining.Sub(take)
		}
	}
	return plan, nil
}

// AppliedReport surfaces partial application: writes are sequential and not
// rolled back, so the caller must know exactly what committed before any
// failure.
type AppliedReport struct {
	Applied                []string `json:"applied"`
	SkippedAlreadyDeducted []string `json:"skipped_already_deducted"`
	SkippedInsufficient    []string `json:"skipped_insufficient"`
	FailedAt               *string  `json:"failed_at"`
}

func (r *AppliedReport) fail(step string) {
	r.FailedAt = &step
}

func logDeductionApplied(ctx context.Context, logger *logrus.Logger, outletName string, productId int, salesDate string, whole, slices int, raw decimal.Decimal) {
	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)
	businessId, _ := utils.GetBusinessIdFromContext(ctx)
	logger.WithFields(logrus.Fields{
		"event":          "deduction_applied",
		"business_id":    businessId,
		"outlet":         outletName,
		"product_id":     productId,
		"sales_date":     salesDate,
		"whole":          whole,
		"slices":         slices,
		"raw":            raw.String(),
		"correlation_id": correlationId,
	}).Info("sales deduction applied")
}

// ApplySalesDeductions mutates the ledger and the production FIFO pool from a
// reconciled result. Convertible products hit the per-outlet ledger with
// carry/borrow normalization (negatives allowed); non-convertible products
// walk the FIFO pool all-or-nothing. Each (outlet, product, date) is guarded
// by a SalesDeduction marker so a re-upload never double-deducts.
func ApplySalesDeductions(
	ctx context.Context,
	tx *gorm.DB,
	logger *logrus.Logger,
	businessId string,
	result models.SalesReconcileResult,
	consumption models.RawConsumptionResult,
	conversions []models.ProductConversion,
	productionChecks []models.StockCheck,
) (AppliedReport, error) {

	report := AppliedReport{}
	if !result.DateMatched || result.MatchedOutletName == nil {
		return report, errors.New("cannot apply deductions without a matched stock check date")
	}
	outletName := *result.MatchedOutletName
	salesDate := result.SheetDate

	var outlet models.Outlet
	if err := tx.Where("business_id = ? AND name = ?", businessId, outletName).First(&outlet).Error; err != nil {
		config.LogError(logger, "deduction.go", "ApplySalesDeductions", "Loading outlet", outletName, err)
		return report, err
	}

	convIndex := models.NewConversionIndex(conversions)
	now := time.Now().UTC()

	for _, row := range result.Rows {
		if row.ProductId == nil {
			continue
		}
		pid := *row.ProductId
		pair := convIndex.Resolve(pid)
		if pair == nil {
			// FIFO products are handled below, combined with recipe usage.
			continue
		}
		step := fmt.Sprintf("%s/%d", outletName, pid)

		already, err := models.HasSalesDeduction(tx, businessId, outletName, pid, salesDate)
		if err != nil {
			report.fail(step)
			return report, err
		}
		if already {
			report.SkippedAlreadyDeducted = append(report.SkippedAlreadyDeducted, step)
			continue
		}

		if err := applyConvertibleDeduction(ctx, tx, logger, businessId, outlet, pid, pair, row, salesDate, now); err != nil {
			if errors.Is(err, utils.ErrInsufficientStock) {
				report.SkippedInsufficient = append(report.SkippedInsufficient, step)
				continue
			}
			report.fail(step)
			return report, err
		}
		report.Applied = append(report.Applied, step)
	}

	// One combined requirement and one marker per FIFO product: a product
	// sold directly AND consumed via recipes is deducted once for the total.
	for _, req := range fifoRequirements(result.Rows, consumption, convIndex) {
		step := fmt.Sprintf("%s/%d", outletName, req.ProductId)
		if !req.FromSheet {
			step = fmt.Sprintf("%s/raw/%d", outletName, req.ProductId)
		}

		already, err := models.HasSalesDeduction(tx, businessId, outletName, req.ProductId, salesDate)
		if err != nil {
			report.fail(step)
			return report, err
		}
		if already {
			report.SkippedAlreadyDeducted = append(report.SkippedAlreadyDeducted, step)
			continue
		}

		if err := applyFifoDeduction(ctx, tx, logger, businessId, outletName, req.ProductId, salesDate, req.Required, productionChecks, now); err != nil {
			if errors.Is(err, utils.ErrInsufficientStock) {
				report.SkippedInsufficient = append(report.SkippedInsufficient, step)
				continue
			}
			report.fail(step)
			return report, err
		}
		report.Applied = append(report.Applied, step)
	}

	return report, nil
}

// fifoRequirement is one product's total demand against the production pool
// for a sales date.
type fifoRequirement struct {
	ProductId int
	Required  decimal.Decimal
	FromSheet bool
}

// fifoRequirements merges the two demand sources on the FIFO pool: direct
// sheet sales of non-convertible products and recipe-derived raw consumption.
// A product appearing in both gets a single summed requirement, so the one
// (outlet, product, date) marker covers everything that was taken.
func fifoRequirements(rows []models.SalesRow, consumption models.RawConsumptionResult, convIndex *models.ConversionIndex) []fifoRequirement {
	var reqs []fifoRequirement
	index := make(map[int]int)

	for _, row := range rows {
		if row.ProductId == nil {
			continue
		}
		pid := *row.ProductId
		if convIndex.Resolve(pid) != nil {
			continue
		}
		if i, ok := index[pid]; ok {
			reqs[i].Required = reqs[i].Required.Add(row.Sold)
			continue
		}
		index[pid] = len(reqs)
		reqs = append(reqs, fifoRequirement{ProductId: pid, Required: row.Sold, FromSheet: true})
	}

	for _, raw := range consumption.Rows {
		if i, ok := index[raw.RawProductId]; ok {
			reqs[i].Required = reqs[i].Required.Add(raw.Consumed)
			continue
		}
		index[raw.RawProductId] = len(reqs)
		reqs = append(reqs, fifoRequirement{ProductId: raw.RawProductId, Required: raw.Consumed})
	}
	return reqs
}

// applyConvertibleDeduction subtracts the sold quantity from the matched
// outlet's ledger section and credits reconciled received quantities into the
// ProdsReq counters, all recorded on one SalesDeduction marker.
func applyConvertibleDeduction(
	ctx context.Context,
	tx *gorm.DB,
	logger *logrus.Logger,
	businessId string,
	outlet models.Outlet,
	productId int,
	pair *models.ConversionPair,
	row models.SalesRow,
	salesDate string,
	now time.Time,
) error {

	dWhole, dSlices := soldAsWholeSlice(row, productId, pair)

	stock, err := models.GetOrCreateInventoryStock(tx, businessId, pair.WholeProductId)
	if err != nil {
		config.LogError(logger, "deduction.go", "applyConvertibleDeduction", "Loading inventory stock", productId, err)
		return err
	}

	if outlet.OutletType == models.OutletTypeProduction {
		stock = stock.ApplyProductionDelta(-dWhole, -dSlices, pair.Factor)
	} else {
		stock = stock.WithOutletStock(outlet.Name, -dWhole, -dSlices, pair.Factor)
	}

	reqWhole, reqSlices := 0, 0
	if row.Received != nil && row.Received.IsPositive() {
		recvW, recvS := SplitValue(*row.Received, pair.Factor)
		reqWhole = int(recvW.IntPart())
		reqSlices = int(recvS.IntPart())
		stock = stock.ApplyProdsReqDelta(reqWhole, reqSlices, pair.Factor)
	}

	if err := models.SaveInventoryStock(tx, &stock); err != nil {
		config.LogError(logger, "deduction.go", "applyConvertibleDeduction", "Saving inventory stock", stock, err)
		return err
	}

	deduction := models.SalesDeduction{
		BusinessId:        businessId,
		OutletName:        outlet.Name,
		ProductId:         productId,
		SalesDate:         salesDate,
		WholeDeducted:     dWhole,
		SlicesDeducted:    dSlices,
		ReqWholeCredited:  reqWhole,
		ReqSlicesCredited: reqSlices,
	}
	if err := models.RecordSalesDeduction(tx, &deduction); err != nil {
		return err
	}
	if err := models.PublishToSync(ctx, tx, businessId, now, stock.ID, models.SyncReferenceTypeInventoryStock, stock, nil, models.SyncActionUpdate); err != nil {
		return err
	}

	logDeductionApplied(ctx, logger, outlet.Name, productId, salesDate, dWhole, dSlices, decimal.Zero)
	return nil
}

// soldAsWholeSlice expresses the row's sold quantity as a (whole, slices)
// delta. The sheet's explicit split wins; otherwise the quantity is counted
// in the unit the sold product is tracked in.
func soldAsWholeSlice(row models.SalesRow, productId int, pair *models.ConversionPair) (int, int) {
	if len(row.SplitUnits) == 2 {
		return int(row.SplitUnits[0].Sold.IntPart()), int(row.SplitUnits[1].Sold.IntPart())
	}
	if productId == pair.WholeProductId {
		return int(row.Sold.IntPart()), 0
	}
	return 0, int(row.Sold.IntPart())
}

// applyFifoDeduction plans and persists a newest-first walk over the
// production pool, then records the marker with per-count details so the
// restore path can re-credit the exact rows.
func applyFifoDeduction(
	ctx context.Context,
	tx *gorm.DB,
	logger *logrus.Logger,
	businessId string,
	outletName string,
	productId int,
	salesDate string,
	required decimal.Decimal,
	productionChecks []models.StockCheck,
	now time.Time,
) error {

	plan, err := PlanFifoDeduction(productionChecks, productId, required)
	if err != nil {
		if errors.Is(err, utils.ErrInsufficientStock) {
			logger.WithFields(logrus.Fields{
				"event":      "fifo_insufficient",
				"outlet":     outletName,
				"product_id": productId,
				"sales_date": salesDate,
				"required":   required.String(),
				"available":  plan.Available.String(),
			}).Warn("insufficient production stock, deduction skipped")
		}
		return err
	}
	if len(plan.Steps) == 0 {
		return nil
	}

	details := make([]models.SalesDeductionDetail, 0, len(plan.Steps))
	for _, step := range plan.Steps {
		if err := tx.Model(&models.StockCount{}).
			Where("id = ?", step.StockCountId).
			Update("received_stock", gorm.Expr("received_stock - ?", step.Take)).Error; err != nil {
			config.LogError(logger, "deduction.go", "applyFifoDeduction", "Deducting stock count", step, err)
			return err
		}
		details = append(details, models.SalesDeductionDetail{
			StockCountId: step.StockCountId,
			Quantity:     step.Take,
		})
	}

	deduction := models.SalesDeduction{
		BusinessId:  businessId,
		OutletName:  outletName,
		ProductId:   productId,
		SalesDate:   salesDate,
		RawDeducted: required,
		Details:     details,
	}
	if err := models.RecordSalesDeduction(tx, &deduction); err != nil {
		return err
	}
	if err := models.PublishToSync(ctx, tx, businessId, now, deduction.ID, models.SyncReferenceTypeSalesDeduction, deduction, nil, models.SyncActionCreate); err != nil {
		return err
	}
	logDeductionApplied(ctx, logger, outletName, productId, salesDate, 0, 0, required)
	return nil
}

package workflow

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/bakestock_backend/config"
	"bitbucket.org/mmdatafocus/bakestock_backend/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// SalesUploadMessage is one uploaded sales spreadsheet to reconcile and post.
type SalesUploadMessage struct {
	BusinessId string
	FileBytes  []byte
	UploadedBy string
}

// SalesUploadOutcome is what the caller gets back: the reconciliation result,
// derived raw consumption, and the exact application report. Partial
// application is possible, so the report always accompanies an error.
type SalesUploadOutcome struct {
	Result      models.SalesReconcileResult `json:"result"`
	Consumption models.RawConsumptionResult `json:"consumption"`
	Report      AppliedReport               `json:"report"`
	Deducted    bool                        `json:"deducted"`
}

func uploadMessageId(fileBytes []byte, date, outlet string) string {
	sum := sha256.Sum256(fileBytes)
	return fmt.Sprintf("%s:%s:%s", date, outlet, hex.EncodeToString(sum[:8]))
}

// ProcessSalesUploadWorkflow runs the full pipeline for one upload: parse,
// reconcile, derive raw consumption, apply deductions, persist history, write
// outbox records. Posting is serialized per business via an advisory lock and
// guarded by a durable idempotency key on the file content.
func ProcessSalesUploadWorkflow(ctx context.Context, db *gorm.DB, logger *logrus.Logger, msg SalesUploadMessage) (*SalesUploadOutcome, error) {
	sheet, warnings, err := ParseSalesSheet(msg.FileBytes)
	if err != nil {
		config.LogError(logger, "reconcileWorkflow.go", "ProcessSalesUploadWorkflow", "Parsing sales sheet", msg.UploadedBy, err)
		return nil, err
	}

	outcome := &SalesUploadOutcome{}
	messageId := uploadMessageId(msg.FileBytes, sheet.Date, sheet.OutletName)

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := AcquireReconcilePostingLock(tx, msg.BusinessId); err != nil {
			return err
		}
		defer ReleaseReconcilePostingLock(tx, msg.BusinessId)

		skip, err := BeginIdempotency(tx, msg.BusinessId, "SalesUpload", messageId)
		if err != nil {
			return err
		}
		if skip {
			outcome.Result = models.SalesReconcileResult{
				OutletFromSheet: sheet.OutletName,
				SheetDate:       sheet.Date,
				Errors:          []string{"upload already processed"},
			}
			return nil
		}

		if err := runSalesReconciliation(ctx, tx, logger, msg.BusinessId, sheet, warnings, outcome); err != nil {
			_ = MarkIdempotencyFailed(tx, msg.BusinessId, "SalesUpload", messageId, err)
			return err
		}
		return MarkIdempotencySucceeded(tx, msg.BusinessId, "SalesUpload", messageId)
	})
	if err != nil {
		return outcome, err
	}
	return outcome, nil
}

func runSalesReconciliation(ctx context.Context, tx *gorm.DB, logger *logrus.Logger, businessId string, sheet *ParsedSalesSheet, warnings []string, outcome *SalesUploadOutcome) error {
	outlets, err := models.LoadOutlets(ctx, businessId)
	if err != nil {
		return err
	}
	var products []models.Product
	if err := tx.Where("business_id = ?", businessId).Find(&products).Error; err != nil {
		return err
	}
	var conversions []models.ProductConversion
	if err := tx.Where("business_id = ?", businessId).Find(&conversions).Error; err != nil {
		return err
	}
	var recipes []models.Recipe
	if err := tx.Preload("Items").Where("business_id = ?", businessId).Find(&recipes).Error; err != nil {
		return err
	}
	checks, err := models.LoadStockChecksForDate(tx, businessId, sheet.Date)
	if err != nil {
		return err
	}

	// Requests are stored under the canonical outlet name; resolve the sheet
	// cell first so whitespace/case drift cannot miss the override.
	opts := ReconcileOptions{}
	if outlet, ok := models.MatchOutletName(outlets, sheet.OutletName); ok {
		requests, err := models.LoadApprovedRequests(tx, businessId, outlet.Name, sheet.Date)
		if err != nil {
			return err
		}
		if len(requests) > 0 {
			opts.RequestsReceivedByProductId = models.ApprovedRequestTotals(requests, outlet.Name, sheet.Date)
		}
	}

	result := ReconcileSalesRows(sheet, outlets, checks, products, conversions, opts)
	result.Errors = append(result.Errors, warnings...)
	outcome.Result = result

	productionChecks, err := models.LoadProductionStockChecks(tx, businessId)
	if err != nil {
		return err
	}
	outcome.Consumption = ComputeRawConsumption(result.Rows, recipes, products, productionChecks)

	// Expected-closing math is meaningless without a matched check, so the
	// applier never runs in that case; the sold-only result is still returned.
	if result.DateMatched {
		report, err := ApplySalesDeductions(ctx, tx, logger, businessId, result, outcome.Consumption, conversions, productionChecks)
		outcome.Report = report
		if err != nil {
			return err
		}
		outcome.Deducted = true

		// An authoritative check overrides the deducted values afterwards: its
		// counted closing quantities replace the ledger sections outright.
		if check := models.LatestStockCheckFor(checks, *result.MatchedOutletName, sheet.Date); check != nil &&
			check.ReplaceAllInventory != nil && *check.ReplaceAllInventory {
			outlet, ok := models.MatchOutletName(outlets, *result.MatchedOutletName)
			if ok {
				if err := applyInventoryReset(ctx, tx, logger, businessId, *outlet, check, conversions); err != nil {
					return err
				}
			}
		}
	}

	if result.OutletMatched {
		now := time.Now().UTC()
		changed, entry, err := models.UpsertReconciliationHistory(tx, businessId, result.SheetDate, *result.MatchedOutletName, result.Rows, now)
		if err != nil {
			return err
		}
		// Unchanged results skip the write and the downstream sync traffic.
		if changed && entry != nil {
			if err := models.PublishToSync(ctx, tx, businessId, now, entry.ID, models.SyncReferenceTypeReconciliationHistory, entry, nil, models.SyncActionUpdate); err != nil {
				return err
			}
		}
	}
	return nil
}

// KitchenUploadMessage is one uploaded kitchen-production spreadsheet.
type KitchenUploadMessage struct {
	BusinessId string
	FileBytes  []byte
	// ManualStock optionally replaces recorded received stock per product,
	// fed from a supplementary manual-count upload.
	ManualStock map[int]decimal.Decimal
}

// ProcessKitchenUploadWorkflow reconciles a kitchen sheet. Read-only: kitchen
// discrepancies are reported, never posted to the ledger.
func ProcessKitchenUploadWorkflow(ctx context.Context, db *gorm.DB, logger *logrus.Logger, msg KitchenUploadMessage) (*models.KitchenStockCheckResult, error) {
	sheet, warnings, err := ParseKitchenSheet(msg.FileBytes)
	if err != nil {
		config.LogError(logger, "reconcileWorkflow.go", "ProcessKitchenUploadWorkflow", "Parsing kitchen sheet", nil, err)
		return nil, err
	}

	outlets, err := models.LoadOutlets(ctx, msg.BusinessId)
	if err != nil {
		return nil, err
	}
	var products []models.Product
	if err := db.WithContext(ctx).Where("business_id = ?", msg.BusinessId).Find(&products).Error; err != nil {
		return nil, err
	}
	checks, err := models.LoadStockChecksForDate(db.WithContext(ctx), msg.BusinessId, sheet.ProductionDate)
	if err != nil {
		return nil, err
	}

	opts := KitchenOptions{ManualStockByProductId: msg.ManualStock}

	result := ReconcileKitchenRows(sheet, outlets, checks, products, opts)
	result.Errors = append(result.Errors, warnings...)
	return &result, nil
}

// ResultFromHistory rebuilds a reconciliation result from its stored history
// entry, for report downloads after the fact.
func ResultFromHistory(entry models.ReconciliationHistory) (models.SalesReconcileResult, error) {
	var rows []models.SalesRow
	if err := json.Unmarshal(entry.Rows, &rows); err != nil {
		return models.SalesReconcileResult{}, err
	}
	return models.SalesReconcileResult{
		OutletFromSheet:   entry.OutletName,
		MatchedOutletName: &entry.OutletName,
		OutletMatched:     true,
		SheetDate:         entry.Date,
		StockCheckDate:    &entry.Date,
		DateMatched:       true,
		Rows:              rows,
	}, nil
}

package workflow_test

import (
	"context"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/bakestock_backend/config"
	"bitbucket.org/mmdatafocus/bakestock_backend/models"
	"bitbucket.org/mmdatafocus/bakestock_backend/utils"
	"bitbucket.org/mmdatafocus/bakestock_backend/workflow"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

var integrationOnce sync.Once

func connectIntegrationDB(t *testing.T) *gorm.DB {
	t.Helper()
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run (requires MySQL via DB_* env)")
	}
	integrationOnce.Do(func() {
		config.ConnectDatabaseWithRetry()
		models.MigrateTable()
	})
	db := config.GetDB()
	if db == nil {
		t.Fatal("database not connected")
	}
	return db
}

type rerunFixture struct {
	businessId string
	croissant  models.Product
	salesCheck models.StockCheck
	prodCheck  models.StockCheck
}

func seedRerunFixture(t *testing.T, db *gorm.DB, date string) rerunFixture {
	t.Helper()
	fx := rerunFixture{businessId: uuid.NewString()}

	outlets := []models.Outlet{
		{BusinessId: fx.businessId, Name: "Main Kitchen", OutletType: models.OutletTypeProduction},
		{BusinessId: fx.businessId, Name: "Downtown", OutletType: models.OutletTypeSales},
	}
	if err := db.Create(&outlets).Error; err != nil {
		t.Fatal(err)
	}

	fx.croissant = models.Product{
		BusinessId: fx.businessId, Name: "Croissant", Unit: "pcs",
		ProductType: models.ProductTypeMenu, TrackInStock: utils.NewTrue(),
	}
	if err := db.Create(&fx.croissant).Error; err != nil {
		t.Fatal(err)
	}

	fx.prodCheck = models.StockCheck{
		BusinessId: fx.businessId, OutletName: "Main Kitchen", CheckDate: "2024-02-29",
		Timestamp:           time.Date(2024, 2, 29, 18, 0, 0, 0, time.UTC),
		ReplaceAllInventory: utils.NewFalse(),
		Counts: []models.StockCount{
			{ProductId: fx.croissant.ID, ReceivedStock: decimal.NewFromInt(40)},
		},
	}
	if err := db.Create(&fx.prodCheck).Error; err != nil {
		t.Fatal(err)
	}

	// Authoritative check: the upload pipeline runs the inventory reset after
	// deductions (a no-op here, no conversions exist for the product).
	fx.salesCheck = models.StockCheck{
		BusinessId: fx.businessId, OutletName: "Downtown", CheckDate: date,
		Timestamp:           time.Date(2024, 3, 1, 21, 0, 0, 0, time.UTC),
		ReplaceAllInventory: utils.NewTrue(),
		Counts: []models.StockCount{
			{
				ProductId: fx.croissant.ID, OpeningStock: decimal.NewFromInt(5),
				ReceivedStock: decimal.NewFromInt(20), Quantity: decimal.NewFromInt(10),
			},
		},
	}
	if err := db.Create(&fx.salesCheck).Error; err != nil {
		t.Fatal(err)
	}
	return fx
}

func productionReceived(t *testing.T, db *gorm.DB, fx rerunFixture) decimal.Decimal {
	t.Helper()
	var count models.StockCount
	if err := db.Where("stock_check_id = ? AND product_id = ?", fx.prodCheck.ID, fx.croissant.ID).
		First(&count).Error; err != nil {
		t.Fatal(err)
	}
	return count.ReceivedStock
}

// Re-applying the same reconciled day must hit the deduction marker and leave
// the production pool untouched; restoring the day credits the pool back.
func TestApplySalesDeductions_RerunAndRestore(t *testing.T) {
	db := connectIntegrationDB(t)
	logger := logrus.New()
	date := "2024-03-01"
	fx := seedRerunFixture(t, db, date)

	downtown := "Downtown"
	result := models.SalesReconcileResult{
		OutletFromSheet:   downtown,
		MatchedOutletName: &downtown,
		OutletMatched:     true,
		SheetDate:         date,
		StockCheckDate:    &date,
		DateMatched:       true,
		Rows: []models.SalesRow{
			{ProductId: &fx.croissant.ID, Name: "Croissant", Sold: decimal.NewFromInt(15)},
		},
	}

	ctx := utils.SetBusinessIdInContext(context.Background(), fx.businessId)
	run := func() workflow.AppliedReport {
		var report workflow.AppliedReport
		err := db.Transaction(func(tx *gorm.DB) error {
			checks, err := models.LoadProductionStockChecks(tx, fx.businessId)
			if err != nil {
				return err
			}
			report, err = workflow.ApplySalesDeductions(ctx, tx, logger, fx.businessId,
				result, models.RawConsumptionResult{}, nil, checks)
			return err
		})
		if err != nil {
			t.Fatal(err)
		}
		return report
	}

	first := run()
	if len(first.Applied) != 1 || len(first.SkippedAlreadyDeducted) != 0 {
		t.Fatalf("first run: %+v", first)
	}
	if got := productionReceived(t, db, fx); !got.Equal(decimal.NewFromInt(25)) {
		t.Fatalf("after first run received = %v, want 25", got)
	}

	second := run()
	if len(second.Applied) != 0 || len(second.SkippedAlreadyDeducted) != 1 {
		t.Fatalf("second run: %+v", second)
	}
	if got := productionReceived(t, db, fx); !got.Equal(decimal.NewFromInt(25)) {
		t.Fatalf("rerun moved the pool, received = %v, want 25", got)
	}

	if err := db.Transaction(func(tx *gorm.DB) error {
		return workflow.RestoreReconciliationDate(ctx, tx, logger, fx.businessId, date)
	}); err != nil {
		t.Fatal(err)
	}
	if got := productionReceived(t, db, fx); !got.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("after restore received = %v, want 40", got)
	}
	deductions, err := models.LoadSalesDeductionsForDate(db, fx.businessId, date)
	if err != nil {
		t.Fatal(err)
	}
	if len(deductions) != 0 {
		t.Fatalf("markers must be cleared on restore, got %+v", deductions)
	}
}

func buildSalesUpload(t *testing.T, outlet, date string, rows [][]string) []byte {
	t.Helper()
	f := excelize.NewFile()
	if _, err := f.NewSheet("Sales"); err != nil {
		t.Fatal(err)
	}
	f.DeleteSheet("Sheet1")
	f.SetCellValue("Sales", "A1", "Outlet")
	f.SetCellValue("Sales", "B1", outlet)
	f.SetCellValue("Sales", "A2", "Date")
	f.SetCellValue("Sales", "B2", date)
	f.SetCellValue("Sales", "A3", "Name")
	for i, row := range rows {
		for j, v := range row {
			cell, err := excelize.CoordinatesToCellName(j+1, i+4)
			if err != nil {
				t.Fatal(err)
			}
			f.SetCellValue("Sales", cell, v)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// End to end through the upload pipeline: a whitespace/case-drifted outlet
// cell must still pick up the outlet's approved request override, and
// re-uploading the same file must short-circuit on the idempotency key.
func TestSalesUploadWorkflow_OutletDriftAndReupload(t *testing.T) {
	db := connectIntegrationDB(t)
	logger := logrus.New()
	date := "2024-03-01"
	fx := seedRerunFixture(t, db, date)

	request := models.ProductRequest{
		BusinessId: fx.businessId, ProductId: fx.croissant.ID,
		Quantity: decimal.NewFromInt(12), FromOutlet: "Main Kitchen", ToOutlet: "Downtown",
		Status: models.RequestStatusApproved, RequestDate: date,
	}
	if err := db.Create(&request).Error; err != nil {
		t.Fatal(err)
	}

	fileBytes := buildSalesUpload(t, "  DOWNTOWN ", date, [][]string{
		{"Croissant", "pcs", "6"},
	})
	ctx := utils.SetBusinessIdInContext(context.Background(), fx.businessId)
	msg := workflow.SalesUploadMessage{BusinessId: fx.businessId, FileBytes: fileBytes, UploadedBy: "tester"}

	outcome, err := workflow.ProcessSalesUploadWorkflow(ctx, db, logger, msg)
	if err != nil {
		t.Fatal(err)
	}
	if !outcome.Result.OutletMatched || !outcome.Result.DateMatched {
		t.Fatalf("drifted outlet cell not matched: %+v", outcome.Result)
	}
	if len(outcome.Result.Rows) != 1 || outcome.Result.Rows[0].Received == nil ||
		!outcome.Result.Rows[0].Received.Equal(decimal.NewFromInt(12)) {
		t.Fatalf("approved request override missed: %+v", outcome.Result.Rows)
	}
	if !outcome.Deducted || len(outcome.Report.Applied) != 1 {
		t.Fatalf("deduction not applied: %+v", outcome.Report)
	}
	if got := productionReceived(t, db, fx); !got.Equal(decimal.NewFromInt(34)) {
		t.Fatalf("after upload received = %v, want 34", got)
	}

	again, err := workflow.ProcessSalesUploadWorkflow(ctx, db, logger, msg)
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, e := range again.Result.Errors {
		if strings.Contains(e, "already processed") {
			found = true
		}
	}
	if !found || again.Deducted {
		t.Fatalf("re-upload must short-circuit: %+v", again)
	}
	if got := productionReceived(t, db, fx); !got.Equal(decimal.NewFromInt(34)) {
		t.Fatalf("re-upload moved the pool, received = %v, want 34", got)
	}
}

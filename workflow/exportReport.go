package workflow

import (
	"fmt"

	"bitbucket.org/mmdatafocus/bakestock_backend/models"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const (
	reportSheetName    = "Discrepancies"
	rawReportSheetName = "Raw Consumption"
)

// BuildDiscrepancyReportXlsx renders the reconciled result as a downloadable
// workbook: one row per product on the first sheet, raw-material consumption
// on a second sheet when present.
func BuildDiscrepancyReportXlsx(result models.SalesReconcileResult, consumption models.RawConsumptionResult) (*excelize.File, error) {
	f := excelize.NewFile()

	idx, err := f.NewSheet(reportSheetName)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	// Add headers
	f.SetCellValue(reportSheetName, "A1", "Name")
	f.SetCellValue(reportSheetName, "B1", "Unit")
	f.SetCellValue(reportSheetName, "C1", "Sold")
	f.SetCellValue(reportSheetName, "D1", "Opening")
	f.SetCellValue(reportSheetName, "E1", "Received")
	f.SetCellValue(reportSheetName, "F1", "Wastage")
	f.SetCellValue(reportSheetName, "G1", "Closing")
	f.SetCellValue(reportSheetName, "H1", "Expected Closing")
	f.SetCellValue(reportSheetName, "I1", "Discrepancy")

	// Add data
	for i, row := range result.Rows {
		r := fmt.Sprint(i + 2)
		f.SetCellValue(reportSheetName, "A"+r, row.Name)
		f.SetCellValue(reportSheetName, "B"+r, row.Unit)
		f.SetCellValue(reportSheetName, "C"+r, decimalCell(&row.Sold))
		f.SetCellValue(reportSheetName, "D"+r, decimalCell(row.Opening))
		f.SetCellValue(reportSheetName, "E"+r, decimalCell(row.Received))
		f.SetCellValue(reportSheetName, "F"+r, decimalCell(row.Wastage))
		f.SetCellValue(reportSheetName, "G"+r, decimalCell(row.Closing))
		f.SetCellValue(reportSheetName, "H"+r, decimalCell(row.ExpectedClosing))
		f.SetCellValue(reportSheetName, "I"+r, decimalCell(row.Discrepancy))
	}

	if len(consumption.Rows) > 0 {
		if _, err := f.NewSheet(rawReportSheetName); err != nil {
			return nil, err
		}
		f.SetCellValue(rawReportSheetName, "A1", "Name")
		f.SetCellValue(rawReportSheetName, "B1", "Unit")
		f.SetCellValue(rawReportSheetName, "C1", "Consumed")
		f.SetCellValue(rawReportSheetName, "D1", "Total Stock")
		f.SetCellValue(rawReportSheetName, "E1", "Expected Closing")

		for i, row := range consumption.Rows {
			r := fmt.Sprint(i + 2)
			f.SetCellValue(rawReportSheetName, "A"+r, row.RawName)
			f.SetCellValue(rawReportSheetName, "B"+r, row.RawUnit)
			f.SetCellValue(rawReportSheetName, "C"+r, decimalCell(&row.Consumed))
			f.SetCellValue(rawReportSheetName, "D"+r, decimalCell(row.TotalStock))
			f.SetCellValue(rawReportSheetName, "E"+r, decimalCell(row.ExpectedClosing))
		}
	}

	return f, nil
}

// decimalCell writes optional quantities as plain numbers, leaving unmatched
// fields blank instead of writing zeroes.
func decimalCell(d *decimal.Decimal) interface{} {
	if d == nil {
		return ""
	}
	v, _ := d.Float64()
	return v
}

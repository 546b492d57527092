package workflow

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/bakestock_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// Fixed semantic cells of the upload templates. Row data starts below the
// header row.
const (
	salesSheetName   = "Sales"
	kitchenSheetName = "Production"

	outletNameCell = "B1"
	sheetDateCell  = "B2"
	dataStartRow   = 4
)

// SalesLine is one raw spreadsheet row before any matching.
type SalesLine struct {
	Name   string
	Unit   string
	Sold   decimal.Decimal
	// Optional mixed whole/slice breakdown columns.
	WholeSold *decimal.Decimal
	SliceSold *decimal.Decimal
}

type ParsedSalesSheet struct {
	OutletName string
	Date       string // YYYY-MM-DD
	Lines      []SalesLine
}

type KitchenLine struct {
	Name       string
	Unit       string
	Production decimal.Decimal
}

type ParsedKitchenSheet struct {
	OutletName     string
	ProductionDate string // YYYY-MM-DD
	Lines          []KitchenLine
}

// parseSheetDate accepts the date cell as YYYY-MM-DD or any excelize-rendered
// date string.
func parseSheetDate(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if utils.ValidDateString(raw) {
		return raw, nil
	}
	for _, layout := range []string{"01-02-06", "1/2/06", "01/02/2006", "2006/01/02", "02-Jan-06"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("2006-01-02"), nil
		}
	}
	return "", fmt.Errorf("unrecognized date cell value %q", raw)
}

// ParseSalesSheet decodes the uploaded xlsx blob. A missing required sheet or
// header cell is fatal for the upload; individual bad rows are not.
func ParseSalesSheet(fileBytes []byte) (*ParsedSalesSheet, []string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(fileBytes))
	if err != nil {
		return nil, nil, fmt.Errorf("open spreadsheet: %w", err)
	}
	defer f.Close()

	sheet := salesSheetName
	if idx, _ := f.GetSheetIndex(sheet); idx < 0 {
		// Single-sheet exports from POS tools use the default sheet name.
		sheet = f.GetSheetName(0)
		if sheet == "" {
			return nil, nil, fmt.Errorf("spreadsheet has no %q sheet", salesSheetName)
		}
	}

	outletName, err := f.GetCellValue(sheet, outletNameCell)
	if err != nil {
		return nil, nil, err
	}
	outletName = strings.TrimSpace(outletName)
	if outletName == "" {
		return nil, nil, fmt.Errorf("outlet name cell %s is empty", outletNameCell)
	}

	rawDate, err := f.GetCellValue(sheet, sheetDateCell)
	if err != nil {
		return nil, nil, err
	}
	date, err := parseSheetDate(rawDate)
	if err != nil {
		return nil, nil, fmt.Errorf("date cell %s: %w", sheetDateCell, err)
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, nil, err
	}

	parsed := &ParsedSalesSheet{OutletName: outletName, Date: date}
	var warnings []string
	for i := dataStartRow - 1; i < len(rows); i++ {
		row := rows[i]
		if len(row) == 0 || strings.TrimSpace(cellAt(row, 0)) == "" {
			continue
		}
		line := SalesLine{
			Name: strings.TrimSpace(cellAt(row, 0)),
			Unit: strings.TrimSpace(cellAt(row, 1)),
		}
		sold, err := utils.ParseDecimal(cellAt(row, 2))
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("row %d (%s): bad sold quantity %q", i+1, line.Name, cellAt(row, 2)))
			continue
		}
		line.Sold = sold

		if v := strings.TrimSpace(cellAt(row, 3)); v != "" {
			if whole, err := utils.ParseDecimal(v); err == nil {
				line.WholeSold = &whole
			} else {
				warnings = append(warnings, fmt.Sprintf("row %d (%s): bad whole quantity %q", i+1, line.Name, v))
			}
		}
		if v := strings.TrimSpace(cellAt(row, 4)); v != "" {
			if slices, err := utils.ParseDecimal(v); err == nil {
				line.SliceSold = &slices
			} else {
				warnings = append(warnings, fmt.Sprintf("row %d (%s): bad slice quantity %q", i+1, line.Name, v))
			}
		}
		parsed.Lines = append(parsed.Lines, line)
	}
	return parsed, warnings, nil
}

// ParseKitchenSheet decodes a kitchen-production upload. Layout mirrors the
// sales template: outlet and production date in the header cells, rows of
// (name, unit, produced quantity).
func ParseKitchenSheet(fileBytes []byte) (*ParsedKitchenSheet, []string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(fileBytes))
	if err != nil {
		return nil, nil, fmt.Errorf("open spreadsheet: %w", err)
	}
	defer f.Close()

	sheet := kitchenSheetName
	if idx, _ := f.GetSheetIndex(sheet); idx < 0 {
		sheet = f.GetSheetName(0)
		if sheet == "" {
			return nil, nil, fmt.Errorf("spreadsheet has no %q sheet", kitchenSheetName)
		}
	}

	outletName, err := f.GetCellValue(sheet, outletNameCell)
	if err != nil {
		return nil, nil, err
	}
	outletName = strings.TrimSpace(outletName)
	if outletName == "" {
		return nil, nil, fmt.Errorf("outlet name cell %s is empty", outletNameCell)
	}

	rawDate, err := f.GetCellValue(sheet, sheetDateCell)
	if err != nil {
		return nil, nil, err
	}
	date, err := parseSheetDate(rawDate)
	if err != nil {
		return nil, nil, fmt.Errorf("date cell %s: %w", sheetDateCell, err)
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, nil, err
	}

	parsed := &ParsedKitchenSheet{OutletName: outletName, ProductionDate: date}
	var warnings []string
	for i := dataStartRow - 1; i < len(rows); i++ {
		row := rows[i]
		if len(row) == 0 || strings.TrimSpace(cellAt(row, 0)) == "" {
			continue
		}
		line := KitchenLine{
			Name: strings.TrimSpace(cellAt(row, 0)),
			Unit: strings.TrimSpace(cellAt(row, 1)),
		}
		produced, err := utils.ParseDecimal(cellAt(row, 2))
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("row %d (%s): bad production quantity %q", i+1, line.Name, cellAt(row, 2)))
			continue
		}
		line.Production = produced
		parsed.Lines = append(parsed.Lines, line)
	}
	return parsed, warnings, nil
}

func cellAt(row []string, col int) string {
	if col < len(row) {
		return row[col]
	}
	return ""
}

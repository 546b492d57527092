package models

import "github.com/shopspring/decimal"

// SalesRow is one reconciled product line. Reconciliation fields are pointers:
// they stay nil when no stock check matched the sheet date and only sold
// quantities are known.
type SalesRow struct {
	ProductId       *int             `json:"product_id"`
	Name            string           `json:"name"`
	Unit            string           `json:"unit"`
	Sold            decimal.Decimal  `json:"sold"`
	Opening         *decimal.Decimal `json:"opening"`
	Received        *decimal.Decimal `json:"received"`
	Wastage         *decimal.Decimal `json:"wastage"`
	Closing         *decimal.Decimal `json:"closing"`
	ExpectedClosing *decimal.Decimal `json:"expected_closing"`
	Discrepancy     *decimal.Decimal `json:"discrepancy"`
	Notes           *string          `json:"notes"`
	SplitUnits      []SplitUnitRow   `json:"split_units,omitempty"`
}

// SplitUnitRow is the per-physical-unit breakdown of a convertible row. The
// parent row keeps the combined totals; these are a convenience view.
type SplitUnitRow struct {
	UnitKind        string          `json:"unit_kind"` // "whole" or "slice"
	Sold            decimal.Decimal `json:"sold"`
	Opening         decimal.Decimal `json:"opening"`
	Received        decimal.Decimal `json:"received"`
	Wastage         decimal.Decimal `json:"wastage"`
	Closing         decimal.Decimal `json:"closing"`
	ExpectedClosing decimal.Decimal `json:"expected_closing"`
	Discrepancy     decimal.Decimal `json:"discrepancy"`
}

// SalesReconcileResult is the per-upload output of the sales reconciler.
type SalesReconcileResult struct {
	OutletFromSheet   string     `json:"outlet_from_sheet"`
	MatchedOutletName *string    `json:"matched_outlet_name"`
	OutletMatched     bool       `json:"outlet_matched"`
	SheetDate         string     `json:"sheet_date"`
	StockCheckDate    *string    `json:"stock_check_date"`
	DateMatched       bool       `json:"date_matched"`
	Rows              []SalesRow `json:"rows"`
	Errors            []string   `json:"errors"`
}

// KitchenDiscrepancy compares declared kitchen output against the stock
// check's recorded received quantity for one product.
type KitchenDiscrepancy struct {
	ProductName          string          `json:"product_name"`
	Unit                 string          `json:"unit"`
	OpeningStock         decimal.Decimal `json:"opening_stock"`
	ReceivedInStockCheck decimal.Decimal `json:"received_in_stock_check"`
	KitchenProduction    decimal.Decimal `json:"kitchen_production"`
	Discrepancy          decimal.Decimal `json:"discrepancy"`
}

type KitchenStockCheckResult struct {
	Matched        bool                 `json:"matched"`
	OutletName     *string              `json:"outlet_name"`
	ProductionDate *string              `json:"production_date"`
	StockCheckDate *string              `json:"stock_check_date"`
	Discrepancies  []KitchenDiscrepancy `json:"discrepancies"`
	Errors         []string             `json:"errors"`
}

// RawConsumptionRow is one raw ingredient's aggregated usage across all sold
// menu/kitchen items.
type RawConsumptionRow struct {
	RawProductId    int              `json:"raw_product_id"`
	RawName         string           `json:"raw_name"`
	RawUnit         string           `json:"raw_unit"`
	Consumed        decimal.Decimal  `json:"consumed"`
	TotalStock      *decimal.Decimal `json:"total_stock"`
	ExpectedClosing *decimal.Decimal `json:"expected_closing"`
}

type RawConsumptionResult struct {
	Rows []RawConsumptionRow `json:"rows"`
}

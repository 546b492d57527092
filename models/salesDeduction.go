package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SalesDeduction marks one (outlet, product, date) as already deducted from
// the production FIFO pool. Its existence is the idempotence check that stops
// a re-uploaded spreadsheet from double-deducting.
type SalesDeduction struct {
	ID             int                    `gorm:"primary_key" json:"id"`
	BusinessId     string                 `gorm:"size:64;not null;index;index:uniq_sales_deduction,unique" json:"business_id"`
	OutletName     string                 `gorm:"size:255;not null;index:uniq_sales_deduction,unique" json:"outlet_name"`
	ProductId      int                    `gorm:"not null;index:uniq_sales_deduction,unique" json:"product_id"`
	SalesDate      string                 `gorm:"size:10;not null;index;index:uniq_sales_deduction,unique" json:"sales_date"` // YYYY-MM-DD
	WholeDeducted  int                    `gorm:"not null;default:0" json:"whole_deducted"`
	SlicesDeducted int                    `gorm:"not null;default:0" json:"slices_deducted"`
	RawDeducted    decimal.Decimal        `gorm:"type:decimal(20,4);default:0" json:"raw_deducted"`
	// Received-credit applied to ProdsReqWhole/Slices in the same pass; kept
	// on the marker so the restore path can back it out exactly.
	ReqWholeCredited  int                 `gorm:"not null;default:0" json:"req_whole_credited"`
	ReqSlicesCredited int                 `gorm:"not null;default:0" json:"req_slices_credited"`
	Details        []SalesDeductionDetail `gorm:"foreignKey:SalesDeductionId" json:"details"`
	CreatedAt      time.Time              `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time              `gorm:"autoUpdateTime" json:"updated_at"`
}

// SalesDeductionDetail records how much was taken from which StockCount during
// the FIFO walk, so a restore can re-credit the exact rows it debited.
type SalesDeductionDetail struct {
	ID               int             `gorm:"primary_key" json:"id"`
	SalesDeductionId int             `gorm:"not null;index" json:"sales_deduction_id"`
	StockCountId     int             `gorm:"not null;index" json:"stock_count_id"`
	Quantity         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"quantity"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// HasSalesDeduction reports whether the (outlet, product, date) triple has
// already been applied.
func HasSalesDeduction(tx *gorm.DB, businessId, outletName string, productId int, salesDate string) (bool, error) {
	var count int64
	err := tx.Model(&SalesDeduction{}).
		Where("business_id = ? AND outlet_name = ? AND product_id = ? AND sales_date = ?",
			businessId, outletName, productId, salesDate).
		Count(&count).Error
	return count > 0, err
}

// RecordSalesDeduction writes the marker and its per-count detail rows.
func RecordSalesDeduction(tx *gorm.DB, deduction *SalesDeduction) error {
	return tx.Create(deduction).Error
}

// LoadSalesDeductionsForDate fetches every marker for one date with details,
// the input the restore path walks.
func LoadSalesDeductionsForDate(tx *gorm.DB, businessId, salesDate string) ([]SalesDeduction, error) {
	var deductions []SalesDeduction
	err := tx.Preload("Details").
		Where("business_id = ? AND sales_date = ?", businessId, salesDate).
		Find(&deductions).Error
	return deductions, err
}

package models

import (
	"encoding/json"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/bakestock_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ReconciliationHistory holds the last reconciliation result per (date,
// outlet). Overwritten in place only when the row values actually changed.
type ReconciliationHistory struct {
	ID         int       `gorm:"primary_key" json:"id"`
	BusinessId string    `gorm:"size:64;not null;index;index:uniq_recon_history,unique" json:"business_id"`
	Date       string    `gorm:"size:10;not null;index;index:uniq_recon_history,unique" json:"date"` // YYYY-MM-DD
	OutletName string    `gorm:"size:255;not null;index:uniq_recon_history,unique" json:"outlet_name"`
	Timestamp  time.Time `gorm:"not null" json:"timestamp"`
	Rows       []byte    `gorm:"type:blob" json:"rows"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func decimalPtrEqual(a, b *decimal.Decimal) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

// RowsEquivalent compares two row sets on the change-detected fields
// (sold/opening/received/closing). Order matters: rows come from the same
// spreadsheet layout, so a reorder is a real change.
func RowsEquivalent(a, b []SalesRow) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Name != b[i].Name {
			return false
		}
		if !a[i].Sold.Equal(b[i].Sold) {
			return false
		}
		if !decimalPtrEqual(a[i].Opening, b[i].Opening) {
			return false
		}
		if !decimalPtrEqual(a[i].Received, b[i].Received) {
			return false
		}
		if !decimalPtrEqual(a[i].Closing, b[i].Closing) {
			return false
		}
	}
	return true
}

// UpsertReconciliationHistory inserts or replaces the entry for (date,
// outlet). Returns changed=false when the stored rows are equivalent, in
// which case nothing is written and the timestamp is untouched.
func UpsertReconciliationHistory(tx *gorm.DB, businessId, date, outletName string, rows []SalesRow, now time.Time) (changed bool, entry *ReconciliationHistory, err error) {
	rowsInByte, err := json.Marshal(rows)
	if err != nil {
		return false, nil, err
	}

	var existing ReconciliationHistory
	err = tx.Where("business_id = ? AND date = ? AND outlet_name = ?", businessId, date, outletName).
		First(&existing).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil, err
	}

	if err == nil {
		var storedRows []SalesRow
		if jsonErr := json.Unmarshal(existing.Rows, &storedRows); jsonErr == nil {
			if RowsEquivalent(storedRows, rows) {
				return false, &existing, nil
			}
		}
		existing.Rows = rowsInByte
		existing.Timestamp = now
		if err := tx.Save(&existing).Error; err != nil {
			return false, nil, err
		}
		return true, &existing, nil
	}

	record := ReconciliationHistory{
		BusinessId: businessId,
		Date:       date,
		OutletName: outletName,
		Timestamp:  now,
		Rows:       rowsInByte,
	}
	if err := tx.Create(&record).Error; err != nil {
		return false, nil, err
	}
	return true, &record, nil
}

// GetReconciliationHistory loads one (date, outlet) entry, mapping a missing
// row to utils.ErrorRecordNotFound for the serving layer.
func GetReconciliationHistory(tx *gorm.DB, businessId, date, outletName string) (*ReconciliationHistory, error) {
	var entry ReconciliationHistory
	err := tx.Where("business_id = ? AND date = ? AND outlet_name = ?", businessId, date, outletName).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrorRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// DeleteReconciliationHistory removes one (date, outlet) entry. Compensating
// ledger restoration is the workflow layer's job; this only clears the row.
func DeleteReconciliationHistory(tx *gorm.DB, businessId, date, outletName string) error {
	return tx.Where("business_id = ? AND date = ? AND outlet_name = ?", businessId, date, outletName).
		Delete(&ReconciliationHistory{}).Error
}

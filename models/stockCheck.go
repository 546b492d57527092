package models

import (
	"time"

	"bitbucket.org/mmdatafocus/bakestock_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// StockCheck is one outlet's stock count for one calendar date. One check per
// (outlet, date) is the common case; when multiple exist the reconciler picks
// the most recent by timestamp.
type StockCheck struct {
	ID          int          `gorm:"primary_key" json:"id"`
	BusinessId  string       `gorm:"size:64;not null;index;index:idx_check_outlet_date,priority:1" json:"business_id"`
	OutletName  string       `gorm:"size:255;not null;index:idx_check_outlet_date,priority:2" json:"outlet_name" binding:"required"`
	CheckDate   string       `gorm:"size:10;not null;index:idx_check_outlet_date,priority:3" json:"check_date" binding:"required"` // YYYY-MM-DD
	Timestamp   time.Time    `gorm:"index;not null" json:"timestamp"`
	Counts      []StockCount `gorm:"foreignKey:StockCheckId" json:"counts"`
	CompletedBy *string      `gorm:"size:255" json:"completed_by"`
	DoneDate    *time.Time   `json:"done_date"`
	// ReplaceAllInventory marks the check's opening stock as an authoritative
	// reset for that date rather than an increment.
	ReplaceAllInventory *bool     `gorm:"not null;default:false" json:"replace_all_inventory"`
	CreatedAt           time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type StockCount struct {
	ID            int             `gorm:"primary_key" json:"id"`
	StockCheckId  int             `gorm:"not null;index" json:"stock_check_id"`
	ProductId     int             `gorm:"not null;index" json:"product_id" binding:"required"`
	Quantity      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"quantity"`
	OpeningStock  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"opening_stock"`
	ReceivedStock decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"received_stock"`
	Wastage       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"wastage"`
	Notes         *string         `gorm:"type:text" json:"notes"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// CountFor returns the count row for a product, or nil.
func (c *StockCheck) CountFor(productId int) *StockCount {
	for i := range c.Counts {
		if c.Counts[i].ProductId == productId {
			return &c.Counts[i]
		}
	}
	return nil
}

// NetStock is receivedStock - wastage floored at zero, the amount the FIFO
// pool considers available from this count.
func (c StockCount) NetStock() decimal.Decimal {
	net := c.ReceivedStock.Sub(c.Wastage)
	if net.IsNegative() {
		return decimal.Zero
	}
	return net
}

// LatestStockCheckFor picks the most recent check (by timestamp) among the
// in-memory collection for the given outlet and date. DB-free so the
// reconciler cores stay testable.
func LatestStockCheckFor(checks []StockCheck, outletName, date string) *StockCheck {
	var latest *StockCheck
	for i := range checks {
		c := &checks[i]
		if c.OutletName != outletName || c.CheckDate != date {
			continue
		}
		if latest == nil || c.Timestamp.After(latest.Timestamp) {
			latest = c
		}
	}
	return latest
}

// LoadStockChecksForDate fetches all checks for one date with counts preloaded.
func LoadStockChecksForDate(tx *gorm.DB, businessId, date string) ([]StockCheck, error) {
	var checks []StockCheck
	err := tx.Preload("Counts").
		Where("business_id = ? AND check_date = ?", businessId, date).
		Order("timestamp DESC").
		Find(&checks).Error
	return checks, err
}

// LoadProductionStockChecks fetches every check belonging to a production
// outlet, newest first: the order the FIFO walk consumes them in.
func LoadProductionStockChecks(tx *gorm.DB, businessId string) ([]StockCheck, error) {
	var productionOutlets []string
	if err := tx.Model(&Outlet{}).
		Where("business_id = ? AND outlet_type = ?", businessId, OutletTypeProduction).
		Pluck("name", &productionOutlets).Error; err != nil {
		return nil, err
	}
	productionOutlets = utils.UniqueSlice(productionOutlets)
	if len(productionOutlets) == 0 {
		return nil, nil
	}
	var checks []StockCheck
	err := tx.Preload("Counts").
		Where("business_id = ? AND outlet_name IN ?", businessId, productionOutlets).
		Order("timestamp DESC").
		Find(&checks).Error
	return checks, err
}

// UpdateStockCount persists one mutated count row.
func UpdateStockCount(tx *gorm.DB, count *StockCount) error {
	return tx.Model(&StockCount{}).Where("id = ?", count.ID).
		Updates(map[string]interface{}{
			"quantity":       count.Quantity,
			"opening_stock":  count.OpeningStock,
			"received_stock": count.ReceivedStock,
			"wastage":        count.Wastage,
		}).Error
}

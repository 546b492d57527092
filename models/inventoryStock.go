package models

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// InventoryStock is the per-whole-product ledger row: production counts,
// requested-but-not-received counters, and one OutletStock per sales outlet.
// Created lazily on first edit; removed only by the bulk clear operation.
type InventoryStock struct {
	ID               int           `gorm:"primary_key" json:"id"`
	BusinessId       string        `gorm:"size:64;not null;index;index:uniq_inv_product,unique" json:"business_id"`
	ProductId        int           `gorm:"not null;index:uniq_inv_product,unique" json:"product_id" binding:"required"`
	ProductionWhole  int           `gorm:"not null;default:0" json:"production_whole"`
	ProductionSlices int           `gorm:"not null;default:0" json:"production_slices"`
	ProdsReqWhole    int           `gorm:"not null;default:0" json:"prods_req_whole"`
	ProdsReqSlices   int           `gorm:"not null;default:0" json:"prods_req_slices"`
	OutletStocks     []OutletStock `gorm:"foreignKey:InventoryStockId" json:"outlet_stocks"`
	CreatedAt        time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
}

type OutletStock struct {
	ID               int       `gorm:"primary_key" json:"id"`
	InventoryStockId int       `gorm:"not null;index;index:uniq_outlet_stock,unique" json:"inventory_stock_id"`
	OutletName       string    `gorm:"size:255;not null;index:uniq_outlet_stock,unique" json:"outlet_name"`
	Whole            int       `gorm:"not null;default:0" json:"whole"`
	Slices           int       `gorm:"not null;default:0" json:"slices"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// NormalizeWholeSlice borrows/carries until 0 <= slices < factor.
// The combined total whole*factor+slices is preserved; whole may go negative.
// Panic-free for factor <= 0: returns inputs unchanged.
func NormalizeWholeSlice(whole, slices, factor int) (int, int) {
	if factor <= 0 {
		return whole, slices
	}
	// Euclidean-style: one division handles arbitrarily large over/underflow.
	q := slices / factor
	r := slices % factor
	if r < 0 {
		q--
		r += factor
	}
	return whole + q, r
}

// CombinedSlices is the ledger total expressed in slice units.
func CombinedSlices(whole, slices, factor int) int {
	return whole*factor + slices
}

// ApplyProductionDelta returns the record with the production counters moved
// by (dWhole, dSlices) and renormalized. Negative results are allowed;
// physical corrections happen via reconciliation re-runs.
func (s InventoryStock) ApplyProductionDelta(dWhole, dSlices, factor int) InventoryStock {
	s.ProductionWhole, s.ProductionSlices = NormalizeWholeSlice(s.ProductionWhole+dWhole, s.ProductionSlices+dSlices, factor)
	return s
}

// ApplyProdsReqDelta moves the requested-not-yet-received counters.
func (s InventoryStock) ApplyProdsReqDelta(dWhole, dSlices, factor int) InventoryStock {
	s.ProdsReqWhole, s.ProdsReqSlices = NormalizeWholeSlice(s.ProdsReqWhole+dWhole, s.ProdsReqSlices+dSlices, factor)
	return s
}

// WithOutletStock returns the record with the named outlet's entry moved by
// (dWhole, dSlices) and renormalized, creating a zeroed entry first if absent.
// Mutation stays explicit: callers persist the returned record.
func (s InventoryStock) WithOutletStock(outletName string, dWhole, dSlices, factor int) InventoryStock {
	stocks := make([]OutletStock, len(s.OutletStocks))
	copy(stocks, s.OutletStocks)

	idx := -1
	for i := range stocks {
		if stocks[i].OutletName == outletName {
			idx = i
			break
		}
	}
	if idx == -1 {
		stocks = append(stocks, OutletStock{InventoryStockId: s.ID, OutletName: outletName})
		idx = len(stocks) - 1
	}
	stocks[idx].Whole, stocks[idx].Slices = NormalizeWholeSlice(stocks[idx].Whole+dWhole, stocks[idx].Slices+dSlices, factor)
	s.OutletStocks = stocks
	return s
}

// OutletEntry returns the named outlet's current counters, zero-valued when
// no entry exists yet.
func (s InventoryStock) OutletEntry(outletName string) OutletStock {
	for i := range s.OutletStocks {
		if s.OutletStocks[i].OutletName == outletName {
			return s.OutletStocks[i]
		}
	}
	return OutletStock{InventoryStockId: s.ID, OutletName: outletName}
}

// GetOrCreateInventoryStock loads the ledger row for a whole product,
// creating a zeroed one lazily.
func GetOrCreateInventoryStock(tx *gorm.DB, businessId string, productId int) (InventoryStock, error) {
	var stock InventoryStock
	err := tx.Preload("OutletStocks").
		Where("business_id = ? AND product_id = ?", businessId, productId).
		First(&stock).Error
	if err == nil {
		return stock, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return stock, err
	}
	stock = InventoryStock{BusinessId: businessId, ProductId: productId}
	if err := tx.Create(&stock).Error; err != nil {
		return stock, err
	}
	return stock, nil
}

// SaveInventoryStock persists the record and its outlet entries.
func SaveInventoryStock(tx *gorm.DB, stock *InventoryStock) error {
	if err := tx.Save(stock).Error; err != nil {
		return err
	}
	for i := range stock.OutletStocks {
		stock.OutletStocks[i].InventoryStockId = stock.ID
		if err := tx.Save(&stock.OutletStocks[i]).Error; err != nil {
			return err
		}
	}
	return nil
}

// ClearAllInventory removes every ledger row for the business. This is the
// only physical delete the ledger supports.
func ClearAllInventory(ctx context.Context, tx *gorm.DB, businessId string) (int64, error) {
	var ids []int
	if err := tx.WithContext(ctx).Model(&InventoryStock{}).
		Where("business_id = ?", businessId).Pluck("id", &ids).Error; err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	if err := tx.WithContext(ctx).Where("inventory_stock_id IN ?", ids).Delete(&OutletStock{}).Error; err != nil {
		return 0, err
	}
	res := tx.WithContext(ctx).Where("business_id = ?", businessId).Delete(&InventoryStock{})
	return res.RowsAffected, res.Error
}

package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ProductRequest is an inter-outlet transfer request. Approved requests to a
// sales outlet count as stock received at that outlet for raw products.
type ProductRequest struct {
	ID          int             `gorm:"primary_key" json:"id"`
	BusinessId  string          `gorm:"size:64;not null;index" json:"business_id"`
	ProductId   int             `gorm:"not null;index" json:"product_id" binding:"required"`
	Quantity    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"quantity"`
	FromOutlet  string          `gorm:"size:255;not null" json:"from_outlet"`
	ToOutlet    string          `gorm:"size:255;not null;index" json:"to_outlet"`
	Status      RequestStatus   `gorm:"type:enum('pending','approved');not null;default:'pending';index" json:"status"`
	RequestDate string          `gorm:"size:10;not null;index" json:"request_date"` // YYYY-MM-DD
	Priority    int             `gorm:"not null;default:0" json:"priority"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// ApprovedRequestTotals sums approved request quantities per product for one
// outlet and date. The result feeds the reconciler's received-override map.
func ApprovedRequestTotals(requests []ProductRequest, toOutlet, date string) map[int]decimal.Decimal {
	totals := make(map[int]decimal.Decimal)
	for _, r := range requests {
		if r.Status != RequestStatusApproved || r.ToOutlet != toOutlet || r.RequestDate != date {
			continue
		}
		totals[r.ProductId] = totals[r.ProductId].Add(r.Quantity)
	}
	return totals
}

// LoadApprovedRequests fetches approved requests targeting one outlet/date.
func LoadApprovedRequests(tx *gorm.DB, businessId, toOutlet, date string) ([]ProductRequest, error) {
	var requests []ProductRequest
	err := tx.Where("business_id = ? AND to_outlet = ? AND request_date = ? AND status = ?",
		businessId, toOutlet, date, RequestStatusApproved).
		Find(&requests).Error
	return requests, err
}

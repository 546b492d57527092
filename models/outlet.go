package models

import (
	"context"
	"fmt"
	"sort"
	"time"

	"bitbucket.org/mmdatafocus/bakestock_backend/config"
	"bitbucket.org/mmdatafocus/bakestock_backend/utils"
)

type Outlet struct {
	ID         int        `gorm:"primary_key" json:"id"`
	BusinessId string     `gorm:"size:64;not null;index;index:uniq_outlet_name,unique" json:"business_id"`
	Name       string     `gorm:"size:255;not null;index:uniq_outlet_name,unique" json:"name" binding:"required"`
	Location   string     `gorm:"size:255" json:"location"`
	OutletType OutletType `gorm:"type:enum('production','sales');not null" json:"outlet_type"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// MatchOutletName matches a spreadsheet outlet cell against known outlets,
// case/whitespace-insensitively. Fails open: (nil, false) when nothing matches.
func MatchOutletName(outlets []Outlet, sheetOutletName string) (*Outlet, bool) {
	want := utils.NormalizeName(sheetOutletName)
	for i := range outlets {
		if utils.NormalizeName(outlets[i].Name) == want {
			return &outlets[i], true
		}
	}
	return nil, false
}

// get outletName => outlet map of the business, redis or db
func GetOutletNameMap(ctx context.Context, businessId string) (map[string]Outlet, error) {
	outletMap := make(map[string]Outlet)
	redisKey := "outletNameMap:" + businessId
	exists, err := config.GetRedisObject(redisKey, &outletMap)
	if err != nil {
		return nil, err
	}
	if !exists {
		db := config.GetDB()
		var outlets []Outlet
		if err := db.WithContext(ctx).Where("business_id = ?", businessId).Find(&outlets).Error; err != nil {
			return nil, err
		}
		for _, o := range outlets {
			outletMap[utils.NormalizeName(o.Name)] = o
		}
		if err := config.SetRedisObject(redisKey, &outletMap, 0); err != nil {
			return nil, err
		}
	}
	return outletMap, nil
}

// LoadOutlets returns the business's outlets, served from the cached name map.
// Ordered by id so reconciliation passes see a stable sequence.
func LoadOutlets(ctx context.Context, businessId string) ([]Outlet, error) {
	outletMap, err := GetOutletNameMap(ctx, businessId)
	if err != nil {
		return nil, err
	}
	outlets := make([]Outlet, 0, len(outletMap))
	for _, o := range outletMap {
		outlets = append(outlets, o)
	}
	sort.Slice(outlets, func(i, j int) bool { return outlets[i].ID < outlets[j].ID })
	return outlets, nil
}

// InvalidateOutletCache must be called after any outlet create/update/delete.
func InvalidateOutletCache(businessId string) error {
	return config.RemoveRedisKey(fmt.Sprintf("outletNameMap:%s", businessId))
}

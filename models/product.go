package models

import (
	"time"

	"bitbucket.org/mmdatafocus/bakestock_backend/utils"
)

type Product struct {
	ID           int         `gorm:"primary_key" json:"id"`
	BusinessId   string      `gorm:"size:64;not null;index;index:uniq_product_name,unique" json:"business_id"`
	Name         string      `gorm:"size:255;not null;index:uniq_product_name,unique" json:"name" binding:"required"`
	Unit         string      `gorm:"size:50" json:"unit"`
	ProductType  ProductType `gorm:"type:enum('menu','kitchen','raw');not null" json:"product_type"`
	Category     string      `gorm:"size:100;index" json:"category"`
	TrackInStock *bool       `gorm:"not null;default:true" json:"track_in_stock"`
	CreatedAt    time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

// ProductConversion links a whole product to its slice product.
// ConversionFactor is slices per whole. At most one conversion per pair.
type ProductConversion struct {
	ID               int       `gorm:"primary_key" json:"id"`
	BusinessId       string    `gorm:"size:64;not null;index;index:uniq_conversion,unique" json:"business_id"`
	WholeProductId   int       `gorm:"not null;index:uniq_conversion,unique" json:"whole_product_id" binding:"required"`
	SliceProductId   int       `gorm:"not null;index:uniq_conversion,unique" json:"slice_product_id" binding:"required"`
	ConversionFactor int       `gorm:"not null" json:"conversion_factor" binding:"required,gt=0"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// ConversionPair is the resolved whole/slice pairing for a product.
type ConversionPair struct {
	WholeProductId int
	SliceProductId int
	Factor         int
}

// ResolveConversion finds the pairing a product participates in, whether it is
// the whole side or the slice side. Returns nil when the product has no
// conversion entry, meaning it is tracked in raw units only.
func ResolveConversion(conversions []ProductConversion, productId int) *ConversionPair {
	for _, c := range conversions {
		if c.WholeProductId == productId || c.SliceProductId == productId {
			return &ConversionPair{
				WholeProductId: c.WholeProductId,
				SliceProductId: c.SliceProductId,
				Factor:         c.ConversionFactor,
			}
		}
	}
	return nil
}

// ConversionIndex memoizes ResolveConversion for one reconciliation pass.
// Not safe for concurrent use; build one per pass.
type ConversionIndex struct {
	conversions []ProductConversion
	cache       map[int]*ConversionPair
}

func NewConversionIndex(conversions []ProductConversion) *ConversionIndex {
	return &ConversionIndex{
		conversions: conversions,
		cache:       make(map[int]*ConversionPair),
	}
}

func (idx *ConversionIndex) Resolve(productId int) *ConversionPair {
	if pair, ok := idx.cache[productId]; ok {
		return pair
	}
	pair := ResolveConversion(idx.conversions, productId)
	idx.cache[productId] = pair
	return pair
}

// ProductLookup is a tagged lookup result so deduction logic never touches a
// half-initialized Product.
type ProductLookup struct {
	Product Product
	Found   bool
}

// ProductCatalog indexes products by id and by normalized name for one pass.
type ProductCatalog struct {
	byId   map[int]Product
	byName map[string]Product
}

func NewProductCatalog(products []Product) *ProductCatalog {
	c := &ProductCatalog{
		byId:   make(map[int]Product, len(products)),
		byName: make(map[string]Product, len(products)),
	}
	for _, p := range products {
		c.byId[p.ID] = p
		c.byName[utils.NormalizeName(p.Name)] = p
	}
	return c
}

func (c *ProductCatalog) Get(productId int) ProductLookup {
	p, ok := c.byId[productId]
	return ProductLookup{Product: p, Found: ok}
}

// GetByName matches case/whitespace-insensitively, the tolerance spreadsheet
// product columns need.
func (c *ProductCatalog) GetByName(name string) ProductLookup {
	p, ok := c.byName[utils.NormalizeName(name)]
	return ProductLookup{Product: p, Found: ok}
}

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Recipe is the bill of materials for a menu/kitchen product.
type Recipe struct {
	ID         int          `gorm:"primary_key" json:"id"`
	BusinessId string       `gorm:"size:64;not null;index;index:uniq_recipe_product,unique" json:"business_id"`
	ProductId  int          `gorm:"not null;index:uniq_recipe_product,unique" json:"product_id" binding:"required"`
	Items      []RecipeItem `gorm:"foreignKey:RecipeId" json:"items"`
	CreatedAt  time.Time    `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time    `gorm:"autoUpdateTime" json:"updated_at"`
}

type RecipeItem struct {
	ID              int             `gorm:"primary_key" json:"id"`
	RecipeId        int             `gorm:"not null;index" json:"recipe_id"`
	RawProductId    int             `gorm:"not null;index" json:"raw_product_id" binding:"required"`
	QuantityPerUnit decimal.Decimal `gorm:"type:decimal(20,6);default:0" json:"quantity_per_unit"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// RecipeFor returns the recipe for a product, or nil.
func RecipeFor(recipes []Recipe, productId int) *Recipe {
	for i := range recipes {
		if recipes[i].ProductId == productId {
			return &recipes[i]
		}
	}
	return nil
}

package workflow

import (
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/bakestock_backend/models"
	"github.com/shopspring/decimal"
)

func intPtr(v int) *int { return &v }

func bakeryRecipes() ([]models.Recipe, []models.Product) {
	recipes := []models.Recipe{
		{ID: 1, ProductId: 10, Items: []models.RecipeItem{
			{RawProductId: 20, QuantityPerUnit: decimal.RequireFromString("0.5")},
			{RawProductId: 21, QuantityPerUnit: decimal.RequireFromString("0.2")},
		}},
		{ID: 2, ProductId: 11, Items: []models.RecipeItem{
			{RawProductId: 20, QuantityPerUnit: decimal.RequireFromString("0.25")},
		}},
	}
	products := []models.Product{
		{ID: 10, Name: "Cake (Whole)", Unit: "pcs", ProductType: models.ProductTypeKitchen},
		{ID: 11, Name: "Croissant", Unit: "pcs", ProductType: models.ProductTypeMenu},
		{ID: 20, Name: "Flour", Unit: "kg", ProductType: models.ProductTypeRaw},
		{ID: 21, Name: "Butter", Unit: "kg", ProductType: models.ProductTypeRaw},
	}
	return recipes, products
}

// Two sold products sharing flour: usage must accumulate, not overwrite.
func TestComputeRawConsumption_SharedIngredientAggregates(t *testing.T) {
	recipes, products := bakeryRecipes()
	rows := []models.SalesRow{
		{ProductId: intPtr(10), Sold: dec(6)},
		{ProductId: intPtr(11), Sold: dec(8)},
	}

	result := ComputeRawConsumption(rows, recipes, products, nil)
	if len(result.Rows) != 2 {
		t.Fatalf("expected flour and butter rows, got %d", len(result.Rows))
	}
	// Sorted by raw product id: flour (20) then butter (21).
	flour, butter := result.Rows[0], result.Rows[1]
	if flour.RawProductId != 20 || butter.RawProductId != 21 {
		t.Fatalf("unexpected order: %+v", result.Rows)
	}
	// 6*0.5 + 8*0.25 = 5
	if !flour.Consumed.Equal(dec(5)) {
		t.Fatalf("flour consumed = %v, want 5", flour.Consumed)
	}
	// 6*0.2 = 1.2
	if !butter.Consumed.Equal(decimal.RequireFromString("1.2")) {
		t.Fatalf("butter consumed = %v, want 1.2", butter.Consumed)
	}
	if flour.RawName != "Flour" || flour.RawUnit != "kg" {
		t.Fatalf("catalog fields missing: %+v", flour)
	}
	if flour.TotalStock != nil || flour.ExpectedClosing != nil {
		t.Fatal("stock fields must stay nil without production checks")
	}
}

func TestComputeRawConsumption_WithProductionStock(t *testing.T) {
	recipes, products := bakeryRecipes()
	rows := []models.SalesRow{{ProductId: intPtr(10), Sold: dec(6)}}
	checks := []models.StockCheck{{
		ID: 1, OutletName: "Main Kitchen", CheckDate: "2024-03-01",
		Timestamp: time.Date(2024, 3, 1, 18, 0, 0, 0, time.UTC),
		Counts: []models.StockCount{
			{ProductId: 20, ReceivedStock: dec(10), Wastage: dec(1)},
		},
	}}

	result := ComputeRawConsumption(rows, recipes, products, checks)
	flour := result.Rows[0]
	if flour.TotalStock == nil || !flour.TotalStock.Equal(dec(9)) {
		t.Fatalf("total stock = %v, want 9", flour.TotalStock)
	}
	// 9 - 3 = 6
	if flour.ExpectedClosing == nil || !flour.ExpectedClosing.Equal(dec(6)) {
		t.Fatalf("expected closing = %v, want 6", flour.ExpectedClosing)
	}
	// Butter has no count in the checks; its stock fields stay nil.
	butter := result.Rows[1]
	if butter.TotalStock != nil {
		t.Fatalf("butter total stock should be nil, got %v", butter.TotalStock)
	}
}

func TestComputeRawConsumption_SkipsUnmatchedAndZeroRows(t *testing.T) {
	recipes, products := bakeryRecipes()
	rows := []models.SalesRow{
		{ProductId: nil, Sold: dec(4)},
		{ProductId: intPtr(10), Sold: decimal.Zero},
		{ProductId: intPtr(99), Sold: dec(3)}, // no recipe
	}

	result := ComputeRawConsumption(rows, recipes, products, nil)
	if len(result.Rows) != 0 {
		t.Fatalf("expected no consumption, got %+v", result.Rows)
	}
}

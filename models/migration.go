package models

import (
	"log"

	"bitbucket.org/mmdatafocus/bakestock_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Product{}, &ProductConversion{},
		&Outlet{},
		&InventoryStock{}, &OutletStock{},
		&StockCheck{}, &StockCount{},
		&ProductRequest{},
		&Recipe{}, &RecipeItem{},
		&SalesDeduction{}, &SalesDeductionDetail{},
		&ReconciliationHistory{},
		&SyncMessageRecord{},
		&IdempotencyKey{},
	)
	if err != nil {
		log.Fatal(err)
	}
}

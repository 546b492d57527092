package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"bitbucket.org/mmdatafocus/bakestock_backend/config"
	"bitbucket.org/mmdatafocus/bakestock_backend/models"
	"gorm.io/gorm"
)

func main() {
	businessID := flag.String("business-id", "", "Required: business id")
	dryRun := flag.Bool("dry-run", true, "Print what would be removed without deleting")
	flag.Parse()

	if strings.TrimSpace(*businessID) == "" {
		fmt.Fprintln(os.Stderr, "--business-id is required")
		os.Exit(1)
	}

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}

	if *dryRun {
		var count int64
		if err := db.WithContext(ctx).Model(&models.InventoryStock{}).
			Where("business_id = ?", *businessID).Count(&count).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to count inventory stocks: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("dry-run: would remove %d inventory stock records for business %s\n", count, *businessID)
		return
	}

	var removed int64
	err := db.Transaction(func(tx *gorm.DB) error {
		n, err := models.ClearAllInventory(ctx, tx, *businessID)
		removed = n
		return err
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "clear failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("removed %d inventory stock records for business %s\n", removed, *businessID)
}

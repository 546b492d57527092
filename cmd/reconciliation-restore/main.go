package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"bitbucket.org/mmdatafocus/bakestock_backend/config"
	"bitbucket.org/mmdatafocus/bakestock_backend/utils"
	"bitbucket.org/mmdatafocus/bakestock_backend/workflow"
	"gorm.io/gorm"
)

// Restores one reconciliation date from the command line: re-credits the
// stock counts the FIFO walk debited, reverses ledger deductions, and removes
// the deduction markers and history entries. Safe to re-run; a restored date
// simply has nothing left to reverse.
func main() {
	businessID := flag.String("business-id", "", "Required: business id")
	date := flag.String("date", "", "Required: reconciliation date (YYYY-MM-DD)")
	flag.Parse()

	if strings.TrimSpace(*businessID) == "" {
		fmt.Fprintln(os.Stderr, "--business-id is required")
		os.Exit(1)
	}
	if !utils.ValidDateString(strings.TrimSpace(*date)) {
		fmt.Fprintln(os.Stderr, "--date must be YYYY-MM-DD")
		os.Exit(1)
	}

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}
	logger := config.GetLogger()

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := workflow.AcquireReconcilePostingLock(tx, *businessID); err != nil {
			return err
		}
		defer workflow.ReleaseReconcilePostingLock(tx, *businessID)
		return workflow.RestoreReconciliationDate(ctx, tx, logger, *businessID, strings.TrimSpace(*date))
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "restore failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("restored reconciliation date %s for business %s\n", *date, *businessID)
}

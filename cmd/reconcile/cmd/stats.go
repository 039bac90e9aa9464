package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/pigeonworks-llc/beancount-reconcile/pkg/config"
	"github.com/pigeonworks-llc/beancount-reconcile/pkg/db"
)

// statsCmd represents the stats command.
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Display save history statistics",
	Long: `Display statistics about saved edit batches.

Shows:
- Total number of save batches
- Total number of edited transactions
- Last save timestamp
- The most recent batches

Example:
  reconcile stats`,
	Run: runStats,
}

func runStats(cmd *cobra.Command, args []string) {
	// Load configuration
	cfg, err := config.Load(getConfigFile())
	exitOnError(err, "failed to load configuration")

	if err := cfg.Validate([]string{"ledger", "file"}); err != nil {
		exitOnError(err, "invalid configuration")
	}

	pathResolver := newResolver(cfg)

	dbPath := pathResolver.GetHistoryDBPath()
	slog.Debug("Opening history database", "path", dbPath)

	conn, err := db.Open(dbPath)
	exitOnError(err, "failed to open history database")
	defer conn.Close()

	history := db.NewHistory(conn)

	stats, err := history.GetStats()
	exitOnError(err, "failed to get statistics")

	ledgerFile, err := history.GetMetadata(db.MetaLedgerFile)
	exitOnError(err, "failed to get metadata")

	// Display statistics
	fmt.Println("\n=== Save History ===")
	if ledgerFile != "" {
		fmt.Printf("Ledger file:        %s\n", ledgerFile)
	} else {
		fmt.Printf("Ledger file:        (unknown)\n")
	}
	fmt.Printf("Total save batches: %d\n", stats.TotalBatches)
	fmt.Printf("Total edits:        %d\n", stats.TotalEdits)

	if stats.LastSave.Valid {
		fmt.Printf("Last save:          %s\n", stats.LastSave.String)
	} else {
		fmt.Printf("Last save:          (never)\n")
	}

	batches, err := history.RecentBatches(5)
	exitOnError(err, "failed to get recent batches")

	if len(batches) > 0 {
		fmt.Println("\nRecent batches:")
		for _, batch := range batches {
			fmt.Printf("  %s  %2d edits  %s\n", batch.BatchID, batch.Edits, batch.SavedAt)
		}
	}

	fmt.Println()
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pigeonworks-llc/beancount-reconcile/pkg/config"
	"github.com/pigeonworks-llc/beancount-reconcile/pkg/service"
)

var (
	listUnclassified bool
	listTime         string
)

// listCmd represents the list command.
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List ledger transactions",
	Long: `List the transactions of the ledger file with their postings.

Transactions with an amount still on the placeholder account are marked
with "!"; postings the engine may rewrite are marked with "*".

Example:
  reconcile list
  reconcile list --unclassified
  reconcile list --time 2024-01`,
	Run: runList,
}

func init() {
	// Flags
	listCmd.Flags().BoolVar(&listUnclassified, "unclassified", false, "only transactions with an unclassified posting")
	listCmd.Flags().StringVar(&listTime, "time", "", "restrict to a date range (YYYY, YYYY-MM or YYYY-MM-DD)")
}

func runList(cmd *cobra.Command, args []string) {
	// Load configuration
	cfg, err := config.Load(getConfigFile())
	exitOnError(err, "failed to load configuration")

	if err := cfg.Validate([]string{"ledger", "file"}); err != nil {
		exitOnError(err, "invalid configuration")
	}

	pathResolver := newResolver(cfg)

	rules, err := loadRules(pathResolver)
	exitOnError(err, "failed to load classification rules")

	svc := service.New(pathResolver.GetLedgerFile(), rules, nil)

	result, err := svc.List(service.Filter{
		OnlyUnclassified: listUnclassified,
		Time:             listTime,
	})
	exitOnError(err, "failed to list transactions")

	fmt.Printf("\n=== Transactions (%d) ===\n\n", len(result.Transactions))

	unclassified := 0
	for _, txn := range result.Transactions {
		flag := " "
		if txn.Unclassified {
			flag = "!"
			unclassified++
		}

		header := fmt.Sprintf("%s %5d  %s  %s", flag, txn.Lineno, txn.Date, txn.Payee)
		if txn.Narration != "" {
			header += fmt.Sprintf("  %q", txn.Narration)
		}
		fmt.Println(header)

		for _, posting := range txn.Postings {
			marker := " "
			if posting.Editable {
				marker = "*"
			}
			if posting.Amount == "" {
				fmt.Printf("      %s %s\n", marker, posting.Account)
			} else {
				fmt.Printf("      %s %-40s %s\n", marker, posting.Account, posting.Amount)
			}
		}
		for _, e := range txn.Errors {
			fmt.Printf("        ^ %s\n", e)
		}
		fmt.Println()
	}

	fmt.Printf("%d transactions, %d unclassified\n", len(result.Transactions), unclassified)
}

// Package cmd provides CLI commands for reconcile.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/pigeonworks-llc/beancount-reconcile/pkg/classify"
	"github.com/pigeonworks-llc/beancount-reconcile/pkg/config"
	"github.com/pigeonworks-llc/beancount-reconcile/pkg/pathutil"
)

var (
	cfgFile string
	debug   bool
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile and categorize Beancount ledger transactions",
	Long: `reconcile keeps a plain-text Beancount ledger tidy: it lists
transactions whose amounts still sit on a placeholder account and
rewrites them in place once they are categorized.

It supports:
- Serving a transaction listing and save API over HTTP
- Categorizing postings without disturbing untouched lines
- Optimistic concurrency via content signatures
- Recording saved batches in a SQLite history database

Example:
  reconcile serve
  reconcile list --unclassified
  reconcile stats`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Setup logging
		logLevel := slog.LevelInfo
		if debug {
			logLevel = slog.LevelDebug
		}

		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: logLevel,
		}))
		slog.SetDefault(logger)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	// Add subcommands
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(statsCmd)
}

// Helper function to get config file path.
func getConfigFile() string {
	if cfgFile != "" {
		return cfgFile
	}
	return "" // Will use default .env loading
}

// newResolver builds the path resolver from loaded configuration.
func newResolver(cfg *config.Config) *pathutil.PathResolver {
	return pathutil.New(pathutil.Config{
		LedgerFile:    cfg.Ledger.File,
		HistoryDBPath: cfg.History.DBPath,
		RulesFile:     cfg.Ledger.RulesFile,
	})
}

// loadRules reads the classification rules file when it exists and falls
// back to the built-in defaults otherwise.
func loadRules(resolver *pathutil.PathResolver) (*classify.Rules, error) {
	rulesFile := resolver.GetRulesFile()
	if resolver.FileExists(rulesFile) {
		slog.Debug("Loading classification rules", "path", rulesFile)
		return classify.LoadRules(rulesFile)
	}

	slog.Debug("Using default classification rules")
	return classify.DefaultRules(), nil
}

// Helper function to handle errors and exit.
func exitOnError(err error, msg string) {
	if err != nil {
		slog.Error(msg, "error", err)
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
		os.Exit(1)
	}
}

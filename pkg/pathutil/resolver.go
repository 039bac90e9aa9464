// Package pathutil provides centralized path management for the ledger
// file and its companion files.
package pathutil

import (
	"fmt"
	"os"
	"path/filepath"
)

// PathResolver manages paths for the ledger file, the save history
// database, and the classification rules file.
type PathResolver struct {
	ledgerFile    string
	historyDBPath string
	rulesFile     string
}

// Config represents the configuration for PathResolver.
type Config struct {
	// LedgerFile is the beancount ledger file the engine operates on
	LedgerFile string
	// HistoryDBPath is the path to the SQLite database file for save history
	HistoryDBPath string
	// RulesFile is the classification rules YAML file
	RulesFile string
}

// New creates a new PathResolver with the given configuration.
// If HistoryDBPath is empty, it defaults to {ledger dir}/.reconcile/history.db
// If RulesFile is empty, it defaults to {ledger dir}/reconcile-rules.yaml
func New(config Config) *PathResolver {
	ledgerDir := filepath.Dir(config.LedgerFile)

	dbPath := config.HistoryDBPath
	if dbPath == "" {
		dbPath = filepath.Join(ledgerDir, ".reconcile", "history.db")
	}

	rulesFile := config.RulesFile
	if rulesFile == "" {
		rulesFile = filepath.Join(ledgerDir, "reconcile-rules.yaml")
	}

	return &PathResolver{
		ledgerFile:    config.LedgerFile,
		historyDBPath: dbPath,
		rulesFile:     rulesFile,
	}
}

// FromEnv creates a PathResolver from environment variables.
// Expected environment variables:
//   - RECONCILE_LEDGER_FILE: Ledger file path (required)
//   - RECONCILE_HISTORY_DB: Save history database path (optional)
//   - RECONCILE_RULES_FILE: Classification rules file (optional)
func FromEnv() (*PathResolver, error) {
	ledgerFile := os.Getenv("RECONCILE_LEDGER_FILE")
	if ledgerFile == "" {
		return nil, fmt.Errorf("RECONCILE_LEDGER_FILE environment variable is required")
	}

	return New(Config{
		LedgerFile:    ledgerFile,
		HistoryDBPath: os.Getenv("RECONCILE_HISTORY_DB"),
		RulesFile:     os.Getenv("RECONCILE_RULES_FILE"),
	}), nil
}

// GetLedgerFile returns the ledger file path.
func (p *PathResolver) GetLedgerFile() string {
	return p.ledgerFile
}

// GetHistoryDBPath returns the save history database path.
func (p *PathResolver) GetHistoryDBPath() string {
	return p.historyDBPath
}

// GetRulesFile returns the classification rules file path.
func (p *PathResolver) GetRulesFile() string {
	return p.rulesFile
}

// EnsureDir creates a directory if it doesn't exist.
// It creates all parent directories as needed (like mkdir -p).
func (p *PathResolver) EnsureDir(dirPath string) error {
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dirPath, err)
	}
	return nil
}

// EnsureParentDir ensures the parent directory of a file exists.
func (p *PathResolver) EnsureParentDir(filePath string) error {
	dir := filepath.Dir(filePath)
	return p.EnsureDir(dir)
}

// FileExists checks if a file exists.
func (p *PathResolver) FileExists(filePath string) bool {
	_, err := os.Stat(filePath)
	return err == nil
}

// IsDir checks if a path is a directory.
func (p *PathResolver) IsDir(dirPath string) bool {
	info, err := os.Stat(dirPath)
	if err != nil {
		return false
	}
	return info.IsDir()
}

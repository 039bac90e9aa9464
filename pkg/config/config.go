// Package config provides configuration management for the reconciliation
// engine. It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config represents the application configuration.
type Config struct {
	Ledger  LedgerConfig
	Server  ServerConfig
	History HistoryConfig
	Debug   bool
}

// LedgerConfig represents ledger file configuration.
type LedgerConfig struct {
	File      string // Path to the beancount ledger file
	RulesFile string // Path to the classification rules YAML (optional)
}

// ServerConfig represents HTTP server configuration.
type ServerConfig struct {
	Host string
	Port int
}

// HistoryConfig represents the save history database configuration.
type HistoryConfig struct {
	DBPath string // Path to the SQLite audit database (optional)
}

// Load loads configuration from environment variables.
// It automatically loads .env file from the current directory if available.
// You can optionally specify a custom .env file path.
func Load(envPath ...string) (*Config, error) {
	// Load .env file
	if len(envPath) > 0 && envPath[0] != "" {
		if err := godotenv.Load(envPath[0]); err != nil {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
	} else {
		// Try to load .env from current directory (ignore error if not found)
		_ = godotenv.Load()
	}

	port, err := parseIntEnv("RECONCILE_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid RECONCILE_PORT: %w", err)
	}

	config := &Config{
		Ledger: LedgerConfig{
			File:      os.Getenv("RECONCILE_LEDGER_FILE"),
			RulesFile: os.Getenv("RECONCILE_RULES_FILE"),
		},
		Server: ServerConfig{
			Host: getEnvOrDefault("RECONCILE_HOST", "127.0.0.1"),
			Port: port,
		},
		History: HistoryConfig{
			DBPath: os.Getenv("RECONCILE_HISTORY_DB"),
		},
		Debug: os.Getenv("DEBUG") == "true",
	}

	return config, nil
}

// Validate validates the configuration.
// It checks if all required fields are set.
func (c *Config) Validate(required ...[]string) error {
	var missing []string

	for _, path := range required {
		if len(path) == 0 {
			continue
		}

		var value string
		switch path[0] {
		case "ledger":
			if len(path) < 2 {
				continue
			}
			switch path[1] {
			case "file":
				value = c.Ledger.File
			case "rulesFile":
				value = c.Ledger.RulesFile
			}
		case "server":
			if len(path) < 2 {
				continue
			}
			switch path[1] {
			case "host":
				value = c.Server.Host
			case "port":
				if c.Server.Port == 0 {
					value = ""
				} else {
					value = "set"
				}
			}
		case "history":
			if len(path) < 2 {
				continue
			}
			switch path[1] {
			case "dbPath":
				value = c.History.DBPath
			}
		}

		if value == "" {
			missing = append(missing, joinPath(path))
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %v\nPlease check your .env file or environment variables", missing)
	}

	return nil
}

// Addr returns the listen address of the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// getEnvOrDefault returns the value of the environment variable or a default value if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseIntEnv parses an int from an environment variable.
// Returns defaultValue if the environment variable is not set.
func parseIntEnv(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid integer value for %s: %s", key, value)
	}

	return parsed, nil
}

// joinPath joins a path slice into a dot-separated string.
func joinPath(path []string) string {
	result := ""
	for i, p := range path {
		if i > 0 {
			result += "."
		}
		result += p
	}
	return result
}

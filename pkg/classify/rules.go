// Package classify decides which postings of a ledger the reconciliation
// UI may edit and builds the transaction view it serves.
package classify

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rules configures how transactions are classified.
type Rules struct {
	UnclassifiedAccount string   `yaml:"unclassified_account"` // Placeholder account marking uncategorized amounts
	UnclassifiedLeaf    string   `yaml:"unclassified_leaf"`    // Optional leaf name treated as a placeholder under any parent
	EditablePrefixes    []string `yaml:"editable_prefixes"`    // Additional account prefixes the UI may rewrite
	SuggestPrefixes     []string `yaml:"suggest_prefixes"`     // Prefixes of accounts offered as categorization targets
	DefaultCurrency     string   `yaml:"default_currency"`     // Currency assumed when an amount names none
}

// DefaultRules returns the built-in classification rules.
func DefaultRules() *Rules {
	return &Rules{
		UnclassifiedAccount: "Expenses:Unclassified",
		SuggestPrefixes:     []string{"Expenses:", "Income:"},
		DefaultCurrency:     "CHF",
	}
}

// LoadRules reads classification rules from a YAML file. Fields the file
// does not set keep their built-in defaults.
func LoadRules(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	rules := DefaultRules()
	if err := yaml.Unmarshal(data, rules); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	rules.normalize()

	return rules, nil
}

func (r *Rules) normalize() {
	if r.UnclassifiedAccount == "" {
		r.UnclassifiedAccount = "Expenses:Unclassified"
	}
	if r.DefaultCurrency == "" {
		r.DefaultCurrency = "CHF"
	}
	r.DefaultCurrency = strings.ToUpper(r.DefaultCurrency)
}

// Editable reports whether the reconciliation UI may rewrite a posting
// booked against the given account. The placeholder account and its
// descendants are always editable; the leaf name and extra prefixes come
// from configuration.
func (r *Rules) Editable(account string) bool {
	if account == r.UnclassifiedAccount || strings.HasPrefix(account, r.UnclassifiedAccount+":") {
		return true
	}
	if r.UnclassifiedLeaf != "" {
		if account == r.UnclassifiedLeaf || strings.HasSuffix(account, ":"+r.UnclassifiedLeaf) {
			return true
		}
	}
	for _, prefix := range r.EditablePrefixes {
		if strings.HasPrefix(account, prefix) {
			return true
		}
	}
	return false
}

// Suggestable reports whether an account belongs in the suggestion list
// offered for categorization. The placeholder subtree is never suggested.
func (r *Rules) Suggestable(account string) bool {
	if account == r.UnclassifiedAccount || strings.HasPrefix(account, r.UnclassifiedAccount+":") {
		return false
	}
	for _, prefix := range r.SuggestPrefixes {
		if strings.HasPrefix(account, prefix) {
			return true
		}
	}
	return false
}

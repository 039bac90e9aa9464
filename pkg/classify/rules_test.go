package classify

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRulesEditable(t *testing.T) {
	tests := []struct {
		name     string
		rules    *Rules
		account  string
		expected bool
	}{
		{
			name:     "placeholder account",
			rules:    DefaultRules(),
			account:  "Expenses:Unclassified",
			expected: true,
		},
		{
			name:     "placeholder descendant",
			rules:    DefaultRules(),
			account:  "Expenses:Unclassified:Food",
			expected: true,
		},
		{
			name:     "sibling with placeholder prefix string",
			rules:    DefaultRules(),
			account:  "Expenses:UnclassifiedExtra",
			expected: false,
		},
		{
			name:     "categorized expense",
			rules:    DefaultRules(),
			account:  "Expenses:Groceries",
			expected: false,
		},
		{
			name:     "asset account",
			rules:    DefaultRules(),
			account:  "Assets:Checking",
			expected: false,
		},
		{
			name: "configured leaf under any parent",
			rules: &Rules{
				UnclassifiedAccount: "Expenses:Unclassified",
				UnclassifiedLeaf:    "Unclassified",
			},
			account:  "Expenses:Family:Unclassified",
			expected: true,
		},
		{
			name: "configured editable prefix",
			rules: &Rules{
				UnclassifiedAccount: "Expenses:Unclassified",
				EditablePrefixes:    []string{"Expenses:", "Income:"},
			},
			account:  "Income:Salary",
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rules.Editable(tt.account); got != tt.expected {
				t.Errorf("Editable(%q) = %v, expected %v", tt.account, got, tt.expected)
			}
		})
	}
}

func TestRulesSuggestable(t *testing.T) {
	rules := DefaultRules()

	tests := []struct {
		account  string
		expected bool
	}{
		{"Expenses:Groceries", true},
		{"Income:Salary", true},
		{"Expenses:Unclassified", false},
		{"Expenses:Unclassified:Food", false},
		{"Assets:Checking", false},
		{"Liabilities:CreditCard", false},
	}

	for _, tt := range tests {
		if got := rules.Suggestable(tt.account); got != tt.expected {
			t.Errorf("Suggestable(%q) = %v, expected %v", tt.account, got, tt.expected)
		}
	}
}

func TestLoadRules(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	content := `unclassified_account: Expenses:Family:Unclassified
unclassified_leaf: Unclassified
editable_prefixes:
  - "Expenses:"
  - "Income:"
default_currency: eur
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write rules file: %v", err)
	}

	rules, err := LoadRules(path)
	if err != nil {
		t.Fatalf("LoadRules() error = %v", err)
	}

	if rules.UnclassifiedAccount != "Expenses:Family:Unclassified" {
		t.Errorf("UnclassifiedAccount = %q", rules.UnclassifiedAccount)
	}
	if rules.UnclassifiedLeaf != "Unclassified" {
		t.Errorf("UnclassifiedLeaf = %q", rules.UnclassifiedLeaf)
	}
	if len(rules.EditablePrefixes) != 2 {
		t.Errorf("len(EditablePrefixes) = %d, expected 2", len(rules.EditablePrefixes))
	}
	if rules.DefaultCurrency != "EUR" {
		t.Errorf("DefaultCurrency = %q, expected %q", rules.DefaultCurrency, "EUR")
	}
	// Fields the file does not set keep their defaults.
	if len(rules.SuggestPrefixes) != 2 {
		t.Errorf("len(SuggestPrefixes) = %d, expected 2", len(rules.SuggestPrefixes))
	}

	if _, err := LoadRules(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("LoadRules() of missing file should return an error")
	}
}

package rewrite

import (
	"strings"
	"testing"

	"github.com/pigeonworks-llc/beancount-reconcile/pkg/ledger"
	"github.com/pigeonworks-llc/beancount-reconcile/pkg/validate"
)

func TestRenderPosting(t *testing.T) {
	tests := []struct {
		name     string
		indent   string
		posting  validate.Posting
		expected string
	}{
		{
			name:     "amount aligned at column 60",
			indent:   "  ",
			posting:  validate.Posting{Account: "Expenses:Groceries", NumberText: "100.00", Currency: "CHF"},
			expected: "  Expenses:Groceries" + strings.Repeat(" ", 40) + "100.00 CHF",
		},
		{
			name:     "four space indent",
			indent:   "    ",
			posting:  validate.Posting{Account: "Expenses:Groceries", NumberText: "100.00", Currency: "CHF"},
			expected: "    Expenses:Groceries" + strings.Repeat(" ", 38) + "100.00 CHF",
		},
		{
			name:   "long account keeps two spaces minimum",
			indent: "  ",
			posting: validate.Posting{
				Account:    "Expenses:Household:Maintenance:Appliances:Replacement:Kitchen",
				NumberText: "1299.00",
				Currency:   "CHF",
			},
			expected: "  Expenses:Household:Maintenance:Appliances:Replacement:Kitchen  1299.00 CHF",
		},
		{
			name:     "elided posting is the bare account",
			indent:   "  ",
			posting:  validate.Posting{Account: "Expenses:Groceries", Elided: true},
			expected: "  Expenses:Groceries",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := renderPosting(tt.indent, tt.posting); got != tt.expected {
				t.Errorf("renderPosting() = %q, expected %q", got, tt.expected)
			}
		})
	}
}

func TestEntryIndent(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		expected string
	}{
		{
			name: "two spaces",
			src: "2024-01-05 * \"Shop\"\n" +
				"  Assets:Checking  -10.00 CHF\n" +
				"  Expenses:Unclassified  10.00 CHF\n",
			expected: "  ",
		},
		{
			name: "four spaces",
			src: "2024-01-05 * \"Shop\"\n" +
				"    Assets:Checking  -10.00 CHF\n" +
				"    Expenses:Unclassified  10.00 CHF\n",
			expected: "    ",
		},
		{
			name: "shortest indent wins",
			src: "2024-01-05 * \"Shop\"\n" +
				"  Assets:Checking  -10.00 CHF\n" +
				"      note: \"deep metadata\"\n",
			expected: "  ",
		},
		{
			name: "tab indent",
			src: "2024-01-05 * \"Shop\"\n" +
				"\tAssets:Checking  -10.00 CHF\n",
			expected: "\t",
		},
		{
			name:     "no body falls back to two spaces",
			src:      "2024-01-05 * \"Shop\"\n",
			expected: "  ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := ledger.Parse(tt.src)
			if len(f.Transactions) != 1 {
				t.Fatalf("len(Transactions) = %d, expected 1", len(f.Transactions))
			}
			if got := entryIndent(f.Lines, f.Transactions[0]); got != tt.expected {
				t.Errorf("entryIndent() = %q, expected %q", got, tt.expected)
			}
		})
	}
}

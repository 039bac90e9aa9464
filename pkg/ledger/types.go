// Package ledger reads beancount ledger files as line-addressable
// documents.
//
// The reader is deliberately not a full beancount compiler: it recognizes
// transaction entries, their postings and open directives, and keeps every
// other line as opaque text, so a rewrite touches only the lines it means
// to touch and reproduces everything else byte for byte.
package ledger

import (
	"strings"

	"github.com/shopspring/decimal"
)

// File is a parsed ledger file.
type File struct {
	Path         string         // Source path (empty when parsed from memory)
	Lines        []string       // Raw lines; joining with "\n" reproduces the source
	Transactions []*Transaction // Transaction entries in file order
	Accounts     []string       // Accounts from open directives, sorted
	Errors       []Diagnostic   // Parse and balance diagnostics

	byLine map[int]*Transaction
}

// Transaction is a transaction entry.
type Transaction struct {
	Line      int       // 1-based line number of the header
	EndLine   int       // Last line of the entry block
	Date      string    // YYYY-MM-DD
	Flag      string    // "*", "!" or "txn"
	Payee     string    // Payee (optional)
	Narration string    // Narration
	Postings  []Posting // Parsed postings in file order
}

// Posting is a single posting line inside a transaction.
type Posting struct {
	Line       int             // 1-based line number
	Account    string          // Account name (e.g., "Expenses:Groceries")
	Number     decimal.Decimal // Parsed amount (zero when elided)
	NumberText string          // Amount as written, thousands separators removed
	Currency   string          // Currency code (e.g., "CHF")
	Elided     bool            // Amount left for the ledger tooling to infer
	CostText   string          // Raw cost or price annotation, empty when absent
}

// Diagnostic is a non-fatal problem found while reading a file.
// Line is the header line of the transaction the problem belongs to,
// or 0 when it has no usable location.
type Diagnostic struct {
	Line    int
	Message string
}

// Amount renders the posting amount as "150.00 CHF", or "" when elided.
func (p Posting) Amount() string {
	if p.Elided {
		return ""
	}
	return p.NumberText + " " + p.Currency
}

// Source reassembles the file content from the line arena.
func (f *File) Source() string {
	return strings.Join(f.Lines, "\n")
}

// TransactionAt returns the transaction whose header sits at the given
// 1-based line number, or nil when no transaction starts there.
func (f *File) TransactionAt(line int) *Transaction {
	return f.byLine[line]
}

// DiagnosticsFor returns the diagnostic messages attached to the
// transaction headed at the given line. Diagnostics without a location
// are never attributed to a transaction.
func (f *File) DiagnosticsFor(line int) []string {
	if line <= 0 {
		return nil
	}
	var msgs []string
	for _, d := range f.Errors {
		if d.Line == line {
			msgs = append(msgs, d.Message)
		}
	}
	return msgs
}

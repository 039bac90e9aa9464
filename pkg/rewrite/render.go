package rewrite

import (
	"strings"

	"github.com/pigeonworks-llc/beancount-reconcile/pkg/ledger"
	"github.com/pigeonworks-llc/beancount-reconcile/pkg/validate"
)

// amountColumn is the column where amounts start, matching the alignment
// used by the tooling that generates these files.
const amountColumn = 60

// entryIndent returns the indentation of an entry block: the shortest
// leading whitespace among its indented lines, or two spaces when the
// entry body is empty.
func entryIndent(lines []string, txn *ledger.Transaction) string {
	indent := ""
	for idx := txn.Line; idx < txn.EndLine && idx < len(lines); idx++ {
		line := lines[idx]
		if strings.TrimSpace(line) == "" {
			continue
		}
		ws := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
		if ws == "" {
			continue
		}
		if indent == "" || len(ws) < len(indent) {
			indent = ws
		}
	}
	if indent == "" {
		indent = "  "
	}
	return indent
}

// renderPosting writes one posting line with the entry's indentation.
// Elided postings are the bare account.
func renderPosting(indent string, p validate.Posting) string {
	if p.Elided {
		return indent + p.Account
	}
	pad := amountColumn - len(indent) - len(p.Account)
	if pad < 2 {
		pad = 2
	}
	return indent + p.Account + strings.Repeat(" ", pad) + p.Amount()
}

// Package rewrite patches ledger files line by line. Edits replace only
// the editable posting lines of the transactions they target; every other
// byte of the file survives untouched.
package rewrite

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pigeonworks-llc/beancount-reconcile/pkg/classify"
	"github.com/pigeonworks-llc/beancount-reconcile/pkg/ledger"
	"github.com/pigeonworks-llc/beancount-reconcile/pkg/validate"
)

// Edit error kinds.
const (
	KindTransactionNotFound = "transaction_not_found"
	KindStaleEdit           = "stale_edit"
	KindValidationRejected  = "validation_rejected"
)

// Edit is one transaction's worth of changes, keyed to the line number and
// content signature the client loaded. A nil Narration leaves the header
// unchanged.
type Edit struct {
	Lineno    int
	Signature string
	Postings  []validate.Posting
	Narration *string
}

// EditError describes why one edit of a batch was refused. Row and Field
// are set for validation errors only.
type EditError struct {
	Lineno  int    `json:"lineno"`
	Kind    string `json:"kind"`
	Row     int    `json:"row,omitempty"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (e *EditError) Error() string {
	return fmt.Sprintf("line %d: %s: %s", e.Lineno, e.Kind, e.Message)
}

type plannedEdit struct {
	start int // 0-based index of the header line
	end   int // 0-based exclusive index past the entry block
	block []string
}

// Apply rewrites ledger source according to a batch of edits. The batch is
// atomic: every edit is planned against the same parse of src, and if any
// edit fails the original content comes back together with every error
// found, so the caller never sees a half-applied batch.
func Apply(src string, edits []Edit, rules *classify.Rules) (string, []*EditError) {
	f := ledger.Parse(src)

	var plans []plannedEdit
	var errs []*EditError
	seen := make(map[int]bool)

	for _, edit := range edits {
		if seen[edit.Lineno] {
			errs = append(errs, &EditError{
				Lineno:  edit.Lineno,
				Kind:    KindValidationRejected,
				Message: "duplicate edit for this transaction",
			})
			continue
		}
		seen[edit.Lineno] = true

		txn := f.TransactionAt(edit.Lineno)
		if txn == nil {
			errs = append(errs, &EditError{
				Lineno:  edit.Lineno,
				Kind:    KindTransactionNotFound,
				Message: fmt.Sprintf("no transaction starts at line %d", edit.Lineno),
			})
			continue
		}

		if sig := classify.Signature(txn, rules); sig != edit.Signature {
			errs = append(errs, &EditError{
				Lineno:  edit.Lineno,
				Kind:    KindStaleEdit,
				Message: "transaction changed since it was loaded",
			})
			continue
		}

		plans = append(plans, plannedEdit{
			start: txn.Line - 1,
			end:   txn.EndLine,
			block: rebuildEntry(f, txn, edit, rules),
		})
	}

	if len(errs) > 0 {
		return src, errs
	}

	// Splice top to bottom, shifting later blocks by the growth of
	// earlier ones.
	sort.Slice(plans, func(i, j int) bool { return plans[i].start < plans[j].start })

	lines := f.Lines
	offset := 0
	for _, pl := range plans {
		start := pl.start + offset
		end := pl.end + offset

		rebuilt := make([]string, 0, len(lines)+len(pl.block)-(end-start))
		rebuilt = append(rebuilt, lines[:start]...)
		rebuilt = append(rebuilt, pl.block...)
		rebuilt = append(rebuilt, lines[end:]...)
		lines = rebuilt

		offset += len(pl.block) - (end - start)
	}

	return strings.Join(lines, "\n"), nil
}

// rebuildEntry reassembles one entry block: the header (with the narration
// swapped in when requested), every non-editable line kept verbatim, and
// the validated postings rendered where the first editable line stood. An
// edit without postings leaves the body as it was.
func rebuildEntry(f *ledger.File, txn *ledger.Transaction, edit Edit, rules *classify.Rules) []string {
	header := f.Lines[txn.Line-1]
	if edit.Narration != nil {
		header = replaceNarration(header, *edit.Narration)
	}

	block := []string{header}
	if len(edit.Postings) == 0 {
		for lineno := txn.Line + 1; lineno <= txn.EndLine; lineno++ {
			block = append(block, f.Lines[lineno-1])
		}
		return block
	}

	editable := make(map[int]bool)
	for _, p := range txn.Postings {
		if rules.Editable(p.Account) {
			editable[p.Line] = true
		}
	}

	indent := entryIndent(f.Lines, txn)
	rendered := make([]string, 0, len(edit.Postings))
	for _, p := range edit.Postings {
		rendered = append(rendered, renderPosting(indent, p))
	}

	inserted := false
	for lineno := txn.Line + 1; lineno <= txn.EndLine; lineno++ {
		if editable[lineno] {
			if !inserted {
				block = append(block, rendered...)
				inserted = true
			}
			continue
		}
		block = append(block, f.Lines[lineno-1])
	}
	if !inserted {
		block = append(block, rendered...)
	}

	return block
}

// replaceNarration swaps the narration (the second quoted string) of a
// transaction header. Quotes inside the new narration are dropped so the
// header stays parseable, and a header with unbalanced quotes is returned
// unchanged rather than made worse.
func replaceNarration(header, narration string) string {
	narration = strings.ReplaceAll(strings.TrimSpace(narration), `"`, "")

	parts := strings.Split(header, `"`)
	if len(parts)%2 == 0 {
		return header
	}

	switch {
	case len(parts) >= 4:
		if narration == "" {
			return strings.TrimRight(strings.Join(parts[:3], `"`), " \t")
		}
		parts[3] = narration
		return strings.Join(parts, `"`)
	case len(parts) >= 3:
		if narration == "" {
			return header
		}
		return strings.Join(parts[:3], `"`) + ` "` + narration + `"`
	default:
		return header
	}
}

package classify

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/pigeonworks-llc/beancount-reconcile/pkg/ledger"
)

// Signature computes the content signature of a transaction: a sha256 hex
// digest over its immutable content. Editable postings are excluded, so
// saving a categorization leaves the signature of everything the client
// did not touch verifiable, while any outside change to the fixed content
// (date, payee, narration, the other postings) reads as drift.
func Signature(txn *ledger.Transaction, rules *Rules) string {
	var b strings.Builder
	b.WriteString(txn.Date)
	b.WriteByte('\n')
	b.WriteString(txn.Payee)
	b.WriteByte('\n')
	b.WriteString(txn.Narration)
	b.WriteByte('\n')
	for _, p := range txn.Postings {
		if rules.Editable(p.Account) {
			continue
		}
		b.WriteString(p.Account)
		b.WriteByte(' ')
		b.WriteString(p.Amount())
		b.WriteByte('\n')
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

package classify

import (
	"github.com/pigeonworks-llc/beancount-reconcile/pkg/ledger"
)

// ViewPosting is one posting row of a transaction as the UI sees it.
type ViewPosting struct {
	Account  string `json:"account"`
	Amount   string `json:"amount"`
	Editable bool   `json:"editable"`
}

// ViewTransaction is a transaction as served to the reconciliation UI.
// Hash is the content signature the client must echo back when saving.
type ViewTransaction struct {
	Lineno       int           `json:"lineno"`
	Hash         string        `json:"hash"`
	Date         string        `json:"date"`
	Payee        string        `json:"payee"`
	Narration    string        `json:"narration"`
	Postings     []ViewPosting `json:"postings"`
	Unclassified bool          `json:"unclassified"`
	Errors       []string      `json:"errors"`
}

// Classifier builds the reconciliation view of a parsed ledger.
type Classifier struct {
	rules *Rules
}

// NewClassifier creates a Classifier with the given rules.
func NewClassifier(rules *Rules) *Classifier {
	return &Classifier{rules: rules}
}

// Classify maps every transaction of a file to its view form, in file
// order. A transaction is unclassified when at least one of its postings
// is editable.
func (c *Classifier) Classify(f *ledger.File) []ViewTransaction {
	views := make([]ViewTransaction, 0, len(f.Transactions))
	for _, txn := range f.Transactions {
		views = append(views, c.classifyOne(f, txn))
	}
	return views
}

func (c *Classifier) classifyOne(f *ledger.File, txn *ledger.Transaction) ViewTransaction {
	view := ViewTransaction{
		Lineno:    txn.Line,
		Hash:      Signature(txn, c.rules),
		Date:      txn.Date,
		Payee:     txn.Payee,
		Narration: txn.Narration,
		Postings:  make([]ViewPosting, 0, len(txn.Postings)),
		Errors:    f.DiagnosticsFor(txn.Line),
	}
	if view.Errors == nil {
		view.Errors = []string{}
	}

	// The narration doubles as the display name when no payee is set.
	if view.Payee == "" {
		view.Payee = txn.Narration
		view.Narration = ""
	}

	for _, p := range txn.Postings {
		editable := c.rules.Editable(p.Account)
		if editable {
			view.Unclassified = true
		}
		view.Postings = append(view.Postings, ViewPosting{
			Account:  p.Account,
			Amount:   p.Amount(),
			Editable: editable,
		})
	}

	return view
}

// SuggestAccounts filters opened accounts down to the list offered as
// categorization targets. The input order (sorted by the parser) is kept.
func (c *Classifier) SuggestAccounts(accounts []string) []string {
	suggested := make([]string, 0, len(accounts))
	for _, account := range accounts {
		if c.rules.Suggestable(account) {
			suggested = append(suggested, account)
		}
	}
	return suggested
}

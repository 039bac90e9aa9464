// Package validate normalizes and checks posting edits before they are
// written back to a ledger.
package validate

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/pigeonworks-llc/beancount-reconcile/pkg/classify"
	"github.com/pigeonworks-llc/beancount-reconcile/pkg/ledger"
)

// amountRe accepts a signed number with optional thousands separators and
// interior spaces, followed by an optional three-letter currency code.
var amountRe = regexp.MustCompile(`^(-?[\d,\s]+(?:\.\d+)?)\s*([A-Za-z]{3})?$`)

// PostingInput is one editable posting row as submitted by the client.
type PostingInput struct {
	Account string `json:"account"`
	Amount  string `json:"amount"`
}

// Posting is a validated posting ready to be rendered into the ledger.
// NumberText keeps the digits exactly as the client typed them (separators
// removed), so "100.00" is written back as "100.00" and not "100".
type Posting struct {
	Account    string
	NumberText string
	Currency   string
	Number     decimal.Decimal
	Elided     bool
}

// Amount renders the posting amount as "150.00 CHF", or "" when elided.
func (p Posting) Amount() string {
	if p.Elided {
		return ""
	}
	return p.NumberText + " " + p.Currency
}

// FieldError locates a rejected field of one submitted posting row.
type FieldError struct {
	Row     int    `json:"row"`   // 0-based index into the submitted postings
	Field   string `json:"field"` // "account" or "amount"
	Message string `json:"message"`
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("posting %d: %s: %s", e.Row, e.Field, e.Message)
}

// Validator normalizes and checks batches of posting edits.
type Validator struct {
	rules *classify.Rules
}

// New creates a Validator using the given classification rules.
func New(rules *classify.Rules) *Validator {
	return &Validator{rules: rules}
}

// Postings validates one set of submitted rows. Rows that are entirely
// blank are dropped. Within a row the first problem wins, but every row is
// checked, so the caller gets the full picture in one round trip. The
// returned postings are only meaningful when the error list is empty.
func (v *Validator) Postings(inputs []PostingInput) ([]Posting, []FieldError) {
	postings := make([]Posting, 0, len(inputs))
	var errs []FieldError
	elided := 0

	for row, in := range inputs {
		account := strings.TrimSpace(in.Account)
		amount := strings.TrimSpace(in.Amount)

		if account == "" && amount == "" {
			continue
		}

		if msg := checkAccount(account); msg != "" {
			errs = append(errs, FieldError{Row: row, Field: "account", Message: msg})
			continue
		}

		if amount == "" {
			elided++
			if elided > 1 {
				errs = append(errs, FieldError{
					Row:     row,
					Field:   "amount",
					Message: "ambiguous balance: more than one posting without an amount",
				})
				continue
			}
			postings = append(postings, Posting{Account: account, Elided: true})
			continue
		}

		p, msg := v.normalizeAmount(amount)
		if msg != "" {
			errs = append(errs, FieldError{Row: row, Field: "amount", Message: msg})
			continue
		}
		p.Account = account
		postings = append(postings, p)
	}

	return postings, errs
}

// CheckBalance sums the fixed postings of a transaction with the revised
// editable postings and returns a warning for every currency that misses
// zero by more than the tolerance. An elided posting absorbs any residual
// and a cost or price annotation puts the weights out of reach, so either
// suppresses the check.
func (v *Validator) CheckBalance(txn *ledger.Transaction, revised []Posting) []string {
	sums := make(map[string]decimal.Decimal)

	for _, p := range txn.Postings {
		if v.rules.Editable(p.Account) {
			continue
		}
		if p.CostText != "" || p.Elided {
			return nil
		}
		sums[p.Currency] = sums[p.Currency].Add(p.Number)
	}
	for _, p := range revised {
		if p.Elided {
			return nil
		}
		sums[p.Currency] = sums[p.Currency].Add(p.Number)
	}

	currencies := make([]string, 0, len(sums))
	for c := range sums {
		currencies = append(currencies, c)
	}
	sort.Strings(currencies)

	var warnings []string
	for _, c := range currencies {
		if sums[c].Abs().GreaterThan(ledger.BalanceTolerance) {
			warnings = append(warnings, fmt.Sprintf("transaction does not balance: %s %s", sums[c].StringFixed(2), c))
		}
	}
	return warnings
}

func checkAccount(account string) string {
	if account == "" {
		return "account is required"
	}
	if strings.ContainsAny(account, " \t") {
		return "account must not contain whitespace"
	}
	for _, segment := range strings.Split(account, ":") {
		if segment == "" {
			return "account has an empty segment"
		}
	}
	return ""
}

// normalizeAmount turns user input like "1,500.00 chf" or "- 100" into a
// canonical number and an uppercase currency, applying the configured
// default currency when none is given.
func (v *Validator) normalizeAmount(amount string) (Posting, string) {
	m := amountRe.FindStringSubmatch(amount)
	if m == nil {
		return Posting{}, fmt.Sprintf("invalid amount %q", amount)
	}

	numText := strings.NewReplacer(",", "", " ", "", "\t", "").Replace(m[1])
	num, err := decimal.NewFromString(numText)
	if err != nil {
		return Posting{}, fmt.Sprintf("invalid amount %q", amount)
	}

	currency := strings.ToUpper(m[2])
	if currency == "" {
		currency = v.rules.DefaultCurrency
	}

	return Posting{NumberText: numText, Currency: currency, Number: num}, ""
}

package ledger

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	headerRe  = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})\s+(txn|[*!])(?:\s+(.*))?$`)
	openRe    = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})\s+open\s+(\S+)`)
	quotedRe  = regexp.MustCompile(`"([^"]*)"`)
	accountRe = regexp.MustCompile(`^[A-Z][A-Za-z0-9\-]*(?::[A-Za-z0-9\-]+)*$`)
	amountRe  = regexp.MustCompile(`^(-?[\d,]+(?:\.\d+)?)\s+([A-Z][A-Z0-9'._\-]*)$`)
	metaRe    = regexp.MustCompile(`^[a-z][A-Za-z0-9_\-]*:(\s|$)`)
)

// BalanceTolerance is the largest per-currency residual a transaction may
// carry before it is reported as unbalanced.
var BalanceTolerance = decimal.New(5, -3)

// Load reads and parses the ledger file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger file: %w", err)
	}

	f := Parse(string(data))
	f.Path = path
	return f, nil
}

// Parse reads ledger source into a File. Parsing never fails: lines the
// reader does not understand stay in the arena as opaque text, and
// problems inside transactions become Diagnostics.
func Parse(src string) *File {
	f := &File{
		Lines:  strings.Split(src, "\n"),
		byLine: make(map[int]*Transaction),
	}

	accounts := make(map[string]struct{})

	for i := 0; i < len(f.Lines); i++ {
		line := f.Lines[i]

		if m := openRe.FindStringSubmatch(line); m != nil {
			accounts[m[2]] = struct{}{}
			continue
		}

		m := headerRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		txn := &Transaction{
			Line:    i + 1,
			EndLine: i + 1,
			Date:    m[1],
			Flag:    m[2],
		}
		txn.Payee, txn.Narration = splitHeaderStrings(m[3])

		// Consume the indented entry block. A blank or non-indented
		// line ends the entry.
		for i+1 < len(f.Lines) {
			next := f.Lines[i+1]
			if strings.TrimSpace(next) == "" || !isIndented(next) {
				break
			}
			i++
			txn.EndLine = i + 1
			f.parseEntryLine(txn, next, i+1)
		}

		f.checkBalance(txn)
		f.Transactions = append(f.Transactions, txn)
		f.byLine[txn.Line] = txn
	}

	f.Accounts = make([]string, 0, len(accounts))
	for a := range accounts {
		f.Accounts = append(f.Accounts, a)
	}
	sort.Strings(f.Accounts)

	return f
}

func isIndented(line string) bool {
	return strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t")
}

// splitHeaderStrings extracts the quoted payee and narration from the text
// after the transaction flag. A single quoted string is the narration;
// two quoted strings are payee then narration.
func splitHeaderStrings(rest string) (payee, narration string) {
	quoted := quotedRe.FindAllStringSubmatch(rest, -1)
	switch len(quoted) {
	case 0:
		return "", ""
	case 1:
		return "", quoted[0][1]
	default:
		return quoted[0][1], quoted[1][1]
	}
}

// parseEntryLine classifies one indented line of an entry block. Comments,
// metadata, tag and link continuations are kept as opaque text. Lines that
// look like postings but cannot be read produce a diagnostic on the
// transaction and are likewise left untouched in the arena.
func (f *File) parseEntryLine(txn *Transaction, line string, lineno int) {
	rest := strings.TrimSpace(line)
	if rest == "" || strings.HasPrefix(rest, ";") {
		return
	}
	if strings.HasPrefix(rest, "* ") || strings.HasPrefix(rest, "! ") {
		rest = strings.TrimSpace(rest[2:])
	}
	if metaRe.MatchString(rest) || strings.HasPrefix(rest, "#") || strings.HasPrefix(rest, "^") {
		return
	}

	account, amountText, _ := strings.Cut(rest, " ")
	amountText = strings.TrimSpace(amountText)
	if !accountRe.MatchString(account) {
		f.Errors = append(f.Errors, Diagnostic{
			Line:    txn.Line,
			Message: fmt.Sprintf("line %d: cannot parse posting %q", lineno, rest),
		})
		return
	}

	p := Posting{Line: lineno, Account: account}

	// Split off cost and price annotations, then inline comments.
	if idx := strings.IndexAny(amountText, "{@"); idx >= 0 {
		p.CostText = strings.TrimSpace(amountText[idx:])
		amountText = strings.TrimSpace(amountText[:idx])
	}
	if idx := strings.Index(amountText, ";"); idx >= 0 {
		amountText = strings.TrimSpace(amountText[:idx])
	}

	if amountText == "" {
		p.Elided = true
		txn.Postings = append(txn.Postings, p)
		return
	}

	m := amountRe.FindStringSubmatch(amountText)
	if m == nil {
		f.Errors = append(f.Errors, Diagnostic{
			Line:    txn.Line,
			Message: fmt.Sprintf("line %d: cannot parse amount %q", lineno, amountText),
		})
		return
	}

	numText := strings.ReplaceAll(m[1], ",", "")
	num, err := decimal.NewFromString(numText)
	if err != nil {
		f.Errors = append(f.Errors, Diagnostic{
			Line:    txn.Line,
			Message: fmt.Sprintf("line %d: cannot parse amount %q", lineno, amountText),
		})
		return
	}

	p.Number = num
	p.NumberText = numText
	p.Currency = m[2]
	txn.Postings = append(txn.Postings, p)
}

// checkBalance records balance diagnostics for a transaction. Entries with
// cost or price annotations are left to the full language tooling, and a
// single elided posting absorbs any residual.
func (f *File) checkBalance(txn *Transaction) {
	elided := 0
	for _, p := range txn.Postings {
		if p.CostText != "" {
			return
		}
		if p.Elided {
			elided++
		}
	}

	if elided > 1 {
		f.Errors = append(f.Errors, Diagnostic{
			Line:    txn.Line,
			Message: "transaction has multiple postings without amounts",
		})
		return
	}
	if elided == 1 || len(txn.Postings) == 0 {
		return
	}

	sums := make(map[string]decimal.Decimal)
	for _, p := range txn.Postings {
		sums[p.Currency] = sums[p.Currency].Add(p.Number)
	}

	currencies := make([]string, 0, len(sums))
	for c := range sums {
		currencies = append(currencies, c)
	}
	sort.Strings(currencies)

	for _, c := range currencies {
		if sums[c].Abs().GreaterThan(BalanceTolerance) {
			f.Errors = append(f.Errors, Diagnostic{
				Line:    txn.Line,
				Message: fmt.Sprintf("transaction does not balance: %s %s", sums[c].StringFixed(2), c),
			})
		}
	}
}

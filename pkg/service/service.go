// Package service ties parsing, classification, validation and rewriting
// together behind the two operations the HTTP and CLI surfaces expose:
// listing transactions and saving edit batches.
package service

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/pigeonworks-llc/beancount-reconcile/pkg/classify"
	"github.com/pigeonworks-llc/beancount-reconcile/pkg/ledger"
	"github.com/pigeonworks-llc/beancount-reconcile/pkg/rewrite"
	"github.com/pigeonworks-llc/beancount-reconcile/pkg/validate"
)

// Filter narrows the transaction listing.
type Filter struct {
	OnlyUnclassified bool
	Time             string // "", YYYY, YYYY-MM or YYYY-MM-DD
}

// ListResult is the payload of one listing.
type ListResult struct {
	Transactions []classify.ViewTransaction
	Accounts     []string
}

// EditRequest is one transaction edit as submitted by a client. Hash is
// the content signature the client received from the listing. A nil
// Narration leaves the header untouched.
type EditRequest struct {
	Lineno    int                     `json:"lineno"`
	Hash      string                  `json:"hash"`
	Postings  []validate.PostingInput `json:"postings"`
	Narration *string                 `json:"narration,omitempty"`
}

// SaveResult reports the outcome of one save batch. Errors and a non-zero
// Saved count never appear together: a batch either applies in full or
// not at all.
type SaveResult struct {
	Saved    int
	Warnings []string
	Errors   []*rewrite.EditError
}

// Recorder observes successfully saved batches, e.g. for an audit log.
// Recorder failures are logged and never fail the save.
type Recorder func(edits []rewrite.Edit) error

// Service exposes the listing and saving operations over one ledger file.
// It holds no transaction state between calls: every operation reads the
// ledger fresh, which keeps the file the only source of truth.
type Service struct {
	path       string
	rules      *classify.Rules
	classifier *classify.Classifier
	validator  *validate.Validator
	rewriter   *rewrite.Rewriter
	logger     *slog.Logger

	// Recorder, when set, is called after every successful save.
	Recorder Recorder
}

// New creates a Service over the ledger file at path.
func New(path string, rules *classify.Rules, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		path:       path,
		rules:      rules,
		classifier: classify.NewClassifier(rules),
		validator:  validate.New(rules),
		rewriter:   rewrite.NewRewriter(path, rules),
		logger:     logger,
	}
}

// Path returns the ledger file the service operates on.
func (s *Service) Path() string {
	return s.path
}

// List loads the ledger and returns its transactions in file order,
// narrowed by the filter, together with the accounts offered as
// categorization targets.
func (s *Service) List(filter Filter) (*ListResult, error) {
	f, err := ledger.Load(s.path)
	if err != nil {
		return nil, err
	}

	views := s.classifier.Classify(f)
	from, to, bounded := parseTimeFilter(filter.Time)

	filtered := make([]classify.ViewTransaction, 0, len(views))
	for _, v := range views {
		if filter.OnlyUnclassified && !v.Unclassified {
			continue
		}
		if bounded && (v.Date < from || v.Date > to) {
			continue
		}
		filtered = append(filtered, v)
	}

	return &ListResult{
		Transactions: filtered,
		Accounts:     s.classifier.SuggestAccounts(f.Accounts),
	}, nil
}

// Save validates and applies a batch of edits. Every edit is checked and
// every problem reported in one round trip; a batch with any problem at
// all leaves the ledger untouched. Warnings report imbalances that were
// saved anyway. A non-nil error means the ledger could not be read or
// replaced.
func (s *Service) Save(requests []EditRequest) (*SaveResult, error) {
	if len(requests) == 0 {
		return &SaveResult{}, nil
	}

	f, err := ledger.Load(s.path)
	if err != nil {
		return nil, err
	}

	var (
		edits    []rewrite.Edit
		editErrs []*rewrite.EditError
		warnings []string
	)
	seen := make(map[int]bool)

	for _, req := range requests {
		if seen[req.Lineno] {
			editErrs = append(editErrs, &rewrite.EditError{
				Lineno:  req.Lineno,
				Kind:    rewrite.KindValidationRejected,
				Message: "duplicate edit for this transaction",
			})
			continue
		}
		seen[req.Lineno] = true

		postings, fieldErrs := s.validator.Postings(req.Postings)
		if len(fieldErrs) > 0 {
			for _, fe := range fieldErrs {
				editErrs = append(editErrs, &rewrite.EditError{
					Lineno:  req.Lineno,
					Kind:    rewrite.KindValidationRejected,
					Row:     fe.Row,
					Field:   fe.Field,
					Message: fe.Message,
				})
			}
			continue
		}

		txn := f.TransactionAt(req.Lineno)
		if txn == nil {
			editErrs = append(editErrs, &rewrite.EditError{
				Lineno:  req.Lineno,
				Kind:    rewrite.KindTransactionNotFound,
				Message: fmt.Sprintf("no transaction starts at line %d", req.Lineno),
			})
			continue
		}
		if classify.Signature(txn, s.rules) != req.Hash {
			editErrs = append(editErrs, &rewrite.EditError{
				Lineno:  req.Lineno,
				Kind:    rewrite.KindStaleEdit,
				Message: "transaction changed since it was loaded",
			})
			continue
		}

		if len(postings) > 0 {
			for _, w := range s.validator.CheckBalance(txn, postings) {
				warnings = append(warnings, fmt.Sprintf("line %d: %s", req.Lineno, w))
			}
		}

		edits = append(edits, rewrite.Edit{
			Lineno:    req.Lineno,
			Signature: req.Hash,
			Postings:  postings,
			Narration: req.Narration,
		})
	}

	if len(editErrs) > 0 {
		return &SaveResult{Errors: editErrs}, nil
	}

	// The rewriter re-reads and re-checks under its own lock, so a write
	// that slips in between our load and the rewrite is still caught.
	rewriteErrs, err := s.rewriter.Rewrite(edits)
	if err != nil {
		return nil, fmt.Errorf("failed to save edits: %w", err)
	}
	if len(rewriteErrs) > 0 {
		return &SaveResult{Errors: rewriteErrs}, nil
	}

	if s.Recorder != nil {
		if err := s.Recorder(edits); err != nil {
			s.logger.Warn("failed to record save batch", "error", err)
		}
	}

	s.logger.Info("saved edit batch", "ledger", s.path, "edits", len(edits), "warnings", len(warnings))

	return &SaveResult{Saved: len(edits), Warnings: warnings}, nil
}

var (
	yearRe  = regexp.MustCompile(`^\d{4}$`)
	monthRe = regexp.MustCompile(`^\d{4}-\d{2}$`)
	dayRe   = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// parseTimeFilter expands a time filter value into an inclusive date
// range. Values it does not understand leave the listing unfiltered.
func parseTimeFilter(value string) (from, to string, ok bool) {
	value = strings.TrimSpace(value)
	switch {
	case value == "":
		return "", "", false
	case yearRe.MatchString(value):
		return value + "-01-01", value + "-12-31", true
	case monthRe.MatchString(value):
		t, err := time.Parse("2006-01", value)
		if err != nil {
			return "", "", false
		}
		return value + "-01", t.AddDate(0, 1, -1).Format("2006-01-02"), true
	case dayRe.MatchString(value):
		if _, err := time.Parse("2006-01-02", value); err != nil {
			return "", "", false
		}
		return value, value, true
	default:
		return "", "", false
	}
}

package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pigeonworks-llc/beancount-reconcile/pkg/classify"
	"github.com/pigeonworks-llc/beancount-reconcile/pkg/rewrite"
	"github.com/pigeonworks-llc/beancount-reconcile/pkg/service"
)

// TransactionsHandler handles transaction listing and save endpoints.
type TransactionsHandler struct {
	service *service.Service
}

// NewTransactionsHandler creates a new TransactionsHandler.
func NewTransactionsHandler(svc *service.Service) *TransactionsHandler {
	return &TransactionsHandler{service: svc}
}

// ListResponse represents the response for GET /api/v1/transactions.
type ListResponse struct {
	Success      bool                       `json:"success"`
	Transactions []classify.ViewTransaction `json:"transactions"`
	Accounts     []string                   `json:"accounts"`
}

// List handles GET /api/v1/transactions.
// Optional query parameters: unclassified=true limits the listing to
// transactions with an unclassified posting, time=YYYY[-MM[-DD]] limits
// it to a date range.
func (h *TransactionsHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := service.Filter{
		OnlyUnclassified: r.URL.Query().Get("unclassified") == "true",
		Time:             r.URL.Query().Get("time"),
	}

	result, err := h.service.List(filter)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to read ledger", nil)
		return
	}

	transactions := result.Transactions
	if transactions == nil {
		transactions = []classify.ViewTransaction{}
	}
	accounts := result.Accounts
	if accounts == nil {
		accounts = []string{}
	}

	writeJSON(w, http.StatusOK, ListResponse{
		Success:      true,
		Transactions: transactions,
		Accounts:     accounts,
	})
}

// SaveRequest represents the request body for POST /api/v1/transactions.
type SaveRequest struct {
	Transactions []service.EditRequest `json:"transactions"`
}

// SaveResponse represents the response for a successful save.
type SaveResponse struct {
	Success  bool     `json:"success"`
	Saved    int      `json:"saved"`
	Warnings []string `json:"warnings"`
}

// Save handles POST /api/v1/transactions.
// The batch applies atomically: any rejected edit leaves the ledger file
// untouched and reports every failure at once.
func (h *TransactionsHandler) Save(w http.ResponseWriter, r *http.Request) {
	var req SaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "failed to parse request body", nil)
		return
	}

	result, err := h.service.Save(req.Transactions)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to write ledger", nil)
		return
	}

	if len(result.Errors) > 0 {
		writeJSONError(w, saveErrorStatus(result.Errors), summarizeErrors(result.Errors), result.Errors)
		return
	}

	warnings := result.Warnings
	if warnings == nil {
		warnings = []string{}
	}

	writeJSON(w, http.StatusOK, SaveResponse{
		Success:  true,
		Saved:    result.Saved,
		Warnings: warnings,
	})
}

// saveErrorStatus picks the response status for a rejected batch. Drift
// failures win over validation failures: the client has to reload the
// listing before it can retry.
func saveErrorStatus(errs []*rewrite.EditError) int {
	for _, e := range errs {
		if e.Kind == rewrite.KindStaleEdit || e.Kind == rewrite.KindTransactionNotFound {
			return http.StatusConflict
		}
	}
	return http.StatusUnprocessableEntity
}

// summarizeErrors builds the top-level error message for a rejected batch.
func summarizeErrors(errs []*rewrite.EditError) string {
	if len(errs) == 1 {
		return errs[0].Message
	}
	return fmt.Sprintf("save rejected with %d errors", len(errs))
}

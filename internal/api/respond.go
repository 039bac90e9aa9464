// Package api exposes the reconciliation service over HTTP.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/pigeonworks-llc/beancount-reconcile/pkg/rewrite"
)

// ErrorResponse represents a failed API response. Errors carries the
// per-edit failures of a rejected save batch.
type ErrorResponse struct {
	Success bool                 `json:"success"`
	Error   string               `json:"error"`
	Errors  []*rewrite.EditError `json:"errors,omitempty"`
}

// writeJSON writes v as a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONError writes a JSON error response.
func writeJSONError(w http.ResponseWriter, status int, message string, errs []*rewrite.EditError) {
	writeJSON(w, status, ErrorResponse{
		Success: false,
		Error:   message,
		Errors:  errs,
	})
}

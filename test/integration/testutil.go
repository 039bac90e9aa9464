package integration

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/pigeonworks-llc/beancount-reconcile/internal/api"
	"github.com/pigeonworks-llc/beancount-reconcile/pkg/classify"
	"github.com/pigeonworks-llc/beancount-reconcile/pkg/db"
	"github.com/pigeonworks-llc/beancount-reconcile/pkg/rewrite"
	"github.com/pigeonworks-llc/beancount-reconcile/pkg/service"
)

// testLedger is the ledger every integration test starts from. Three
// transactions carry an unclassified posting, the salary does not.
const testLedger = `option "operating_currency" "CHF"

2024-01-01 open Assets:Checking
2024-01-01 open Income:Salary
2024-01-01 open Expenses:Groceries
2024-01-01 open Expenses:Dining
2024-01-01 open Expenses:Fuel
2024-01-01 open Expenses:Unclassified

2024-01-05 * "Grocery Store" "Weekly shopping"
  Assets:Checking  -150.00 CHF
  Expenses:Unclassified  150.00 CHF

2024-01-12 * "Restaurant"
  Assets:Checking  -80.00 CHF
  Expenses:Unclassified  80.00 CHF

2024-01-25 * "Employer" "January salary"
  Assets:Checking  6500.00 CHF
  Income:Salary

2024-02-02 * "Gas Station"
  Assets:Checking  -60.00 CHF
  Expenses:Unclassified  60.00 CHF
`

type testClient struct {
	server     *httptest.Server
	ledgerPath string
	history    *db.History
}

func setupTestServer(t *testing.T) *testClient {
	t.Helper()

	dir := t.TempDir()

	ledgerPath := filepath.Join(dir, "main.beancount")
	if err := os.WriteFile(ledgerPath, []byte(testLedger), 0644); err != nil {
		t.Fatalf("Failed to write ledger: %v", err)
	}

	conn, err := db.Open(filepath.Join(dir, "history.db"))
	if err != nil {
		t.Fatalf("Failed to open history database: %v", err)
	}
	t.Cleanup(func() {
		_ = conn.Close()
	})
	history := db.NewHistory(conn)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.New(ledgerPath, classify.DefaultRules(), logger)
	svc.Recorder = func(edits []rewrite.Edit) error {
		_, err := history.RecordBatch(edits)
		return err
	}

	server := httptest.NewServer(api.NewRouter(svc))
	t.Cleanup(server.Close)

	return &testClient{
		server:     server,
		ledgerPath: ledgerPath,
		history:    history,
	}
}

func (c *testClient) request(t *testing.T, method, path string, body interface{}) *http.Response {
	t.Helper()

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequest(method, c.server.URL+path, reqBody)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Failed to send request: %v", err)
	}

	return resp
}

// list fetches the transaction listing, failing the test on anything but
// a 200 response.
func (c *testClient) list(t *testing.T, query string) api.ListResponse {
	t.Helper()

	resp := c.request(t, "GET", "/api/v1/transactions"+query, nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("Expected status 200, got %d: %s", resp.StatusCode, string(body))
	}

	var listResp api.ListResponse
	if err := json.NewDecoder(resp.Body).Decode(&listResp); err != nil {
		t.Fatalf("Failed to decode list response: %v", err)
	}

	return listResp
}

// save submits an edit batch and returns the raw response for the caller
// to inspect.
func (c *testClient) save(t *testing.T, edits ...service.EditRequest) *http.Response {
	t.Helper()

	return c.request(t, "POST", "/api/v1/transactions", api.SaveRequest{Transactions: edits})
}

// hashAt returns the content signature the listing reported for the
// transaction starting at lineno.
func hashAt(t *testing.T, listing api.ListResponse, lineno int) string {
	t.Helper()

	for _, txn := range listing.Transactions {
		if txn.Lineno == lineno {
			return txn.Hash
		}
	}
	t.Fatalf("No transaction at line %d in listing", lineno)
	return ""
}

func (c *testClient) ledgerContent(t *testing.T) string {
	t.Helper()

	content, err := os.ReadFile(c.ledgerPath)
	if err != nil {
		t.Fatalf("Failed to read ledger: %v", err)
	}
	return string(content)
}

func decodeError(t *testing.T, resp *http.Response) api.ErrorResponse {
	t.Helper()

	var errResp api.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		t.Fatalf("Failed to decode error response: %v", err)
	}
	return errResp
}

func decodeSave(t *testing.T, resp *http.Response) api.SaveResponse {
	t.Helper()

	var saveResp api.SaveResponse
	if err := json.NewDecoder(resp.Body).Decode(&saveResp); err != nil {
		t.Fatalf("Failed to decode save response: %v", err)
	}
	return saveResp
}

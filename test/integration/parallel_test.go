package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pigeonworks-llc/go-portalloc/pkg/ports"

	"github.com/pigeonworks-llc/beancount-reconcile/internal/api"
	"github.com/pigeonworks-llc/beancount-reconcile/pkg/classify"
	"github.com/pigeonworks-llc/beancount-reconcile/pkg/db"
	"github.com/pigeonworks-llc/beancount-reconcile/pkg/rewrite"
	"github.com/pigeonworks-llc/beancount-reconcile/pkg/service"
	"github.com/pigeonworks-llc/beancount-reconcile/pkg/validate"
)

type parallelTestClient struct {
	baseURL    string
	ledgerPath string
}

func setupParallelTestServer(t *testing.T) *parallelTestClient {
	t.Helper()

	// Allocate a free port using go-portalloc
	allocator := ports.NewAllocator(nil)
	port, err := allocator.AllocateRange(1)
	if err != nil {
		t.Fatalf("Failed to allocate port: %v", err)
	}

	dir := t.TempDir()
	ledgerPath := filepath.Join(dir, "main.beancount")
	if err := os.WriteFile(ledgerPath, []byte(testLedger), 0644); err != nil {
		t.Fatalf("Failed to write ledger: %v", err)
	}

	conn, err := db.Open(filepath.Join(dir, "history.db"))
	if err != nil {
		t.Fatalf("Failed to open history database: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.New(ledgerPath, classify.DefaultRules(), logger)
	svc.Recorder = func(edits []rewrite.Edit) error {
		_, err := db.NewHistory(conn).RecordBatch(edits)
		return err
	}

	// Start server in background
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: api.NewRouter(svc),
	}

	go func() {
		_ = server.ListenAndServe()
	}()

	// Wait for server to be ready
	baseURL := fmt.Sprintf("http://localhost:%d", port)
	maxRetries := 10
	for i := 0; i < maxRetries; i++ {
		resp, err := http.Get(baseURL + "/health")
		if err == nil {
			resp.Body.Close()
			break
		}
		if i == maxRetries-1 {
			t.Fatalf("Server did not start: %v", err)
		}
		time.Sleep(50 * time.Millisecond)
	}

	t.Cleanup(func() {
		_ = server.Close()
		_ = conn.Close()
	})

	return &parallelTestClient{baseURL: baseURL, ledgerPath: ledgerPath}
}

func (c *parallelTestClient) request(t *testing.T, method, path string, body interface{}) *http.Response {
	t.Helper()

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reqBody)
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

func (c *parallelTestClient) list(t *testing.T, query string) api.ListResponse {
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

func TestParallelSaves(t *testing.T) {
	t.Parallel()

	client := setupParallelTestServer(t)

	listing := client.list(t, "?unclassified=true")
	if len(listing.Transactions) != 3 {
		t.Fatalf("Expected 3 unclassified transactions, got %d", len(listing.Transactions))
	}

	// One-for-one posting replacements keep every line number stable, so
	// the concurrent edits never invalidate each other
	accounts := map[int]string{10: "Expenses:Groceries", 14: "Expenses:Dining", 22: "Expenses:Fuel"}
	amounts := map[int]string{10: "150.00 CHF", 14: "80.00 CHF", 22: "60.00 CHF"}

	t.Run("Save transactions concurrently", func(t *testing.T) {
		for _, txn := range listing.Transactions {
			txn := txn
			t.Run(fmt.Sprintf("Line_%d", txn.Lineno), func(t *testing.T) {
				t.Parallel()

				resp := client.request(t, "POST", "/api/v1/transactions", api.SaveRequest{
					Transactions: []service.EditRequest{
						{
							Lineno:   txn.Lineno,
							Hash:     txn.Hash,
							Postings: []validate.PostingInput{{Account: accounts[txn.Lineno], Amount: amounts[txn.Lineno]}},
						},
					},
				})
				defer resp.Body.Close()

				if resp.StatusCode != http.StatusOK {
					body, _ := io.ReadAll(resp.Body)
					t.Errorf("Line %d: expected status 200, got %d: %s", txn.Lineno, resp.StatusCode, string(body))
				}
			})
		}
	})

	t.Run("All transactions classified", func(t *testing.T) {
		listing := client.list(t, "?unclassified=true")
		if len(listing.Transactions) != 0 {
			t.Errorf("Expected no unclassified transactions left, got %d", len(listing.Transactions))
		}
	})
}

func TestParallelSameTransaction(t *testing.T) {
	t.Parallel()

	client := setupParallelTestServer(t)

	listing := client.list(t, "?unclassified=true")
	target := listing.Transactions[0]

	// Both edits race for the same transaction: whichever rewrite lands
	// first changes the fixed posting set, so the other must turn stale
	results := make(chan int, 2)
	for _, account := range []string{"Expenses:Groceries", "Expenses:Dining"} {
		account := account
		go func() {
			data, err := json.Marshal(api.SaveRequest{
				Transactions: []service.EditRequest{
					{
						Lineno:   target.Lineno,
						Hash:     target.Hash,
						Postings: []validate.PostingInput{{Account: account, Amount: "150.00 CHF"}},
					},
				},
			})
			if err != nil {
				results <- 0
				return
			}

			resp, err := http.Post(client.baseURL+"/api/v1/transactions", "application/json", bytes.NewReader(data))
			if err != nil {
				results <- 0
				return
			}
			resp.Body.Close()
			results <- resp.StatusCode
		}()
	}

	first, second := <-results, <-results
	ok := (first == http.StatusOK && second == http.StatusConflict) ||
		(first == http.StatusConflict && second == http.StatusOK)
	if !ok {
		t.Errorf("Concurrent saves returned %d and %d, expected one 200 and one 409", first, second)
	}
}

func TestParallelReadsDuringSave(t *testing.T) {
	t.Parallel()

	client := setupParallelTestServer(t)

	listing := client.list(t, "")
	groceryHash := ""
	for _, txn := range listing.Transactions {
		if txn.Lineno == 10 {
			groceryHash = txn.Hash
		}
	}
	if groceryHash == "" {
		t.Fatal("Grocery transaction missing from listing")
	}

	t.Run("Mixed operations", func(t *testing.T) {
		t.Run("Save", func(t *testing.T) {
			t.Parallel()

			resp := client.request(t, "POST", "/api/v1/transactions", api.SaveRequest{
				Transactions: []service.EditRequest{
					{
						Lineno:   10,
						Hash:     groceryHash,
						Postings: []validate.PostingInput{{Account: "Expenses:Groceries", Amount: "150.00 CHF"}},
					},
				},
			})
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				body, _ := io.ReadAll(resp.Body)
				t.Errorf("Expected status 200, got %d: %s", resp.StatusCode, string(body))
			}
		})

		for i := 0; i < 6; i++ {
			i := i
			t.Run(fmt.Sprintf("Listing_%d", i), func(t *testing.T) {
				t.Parallel()

				// The file is replaced atomically, so a reader sees the
				// ledger before or after the save, never in between
				listing := client.list(t, "")
				if len(listing.Transactions) != 4 {
					t.Errorf("Expected 4 transactions, got %d", len(listing.Transactions))
				}
				for _, txn := range listing.Transactions {
					if len(txn.Hash) != 64 {
						t.Errorf("Transaction at line %d has malformed hash %q", txn.Lineno, txn.Hash)
					}
				}
			})
		}
	})
}

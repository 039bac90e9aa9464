package db

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pigeonworks-llc/beancount-reconcile/pkg/rewrite"
)

// MetaLedgerFile is the metadata key under which the server records the
// ledger file this history database belongs to.
const MetaLedgerFile = "ledger_file"

// SaveRecord represents one applied edit in the save history.
type SaveRecord struct {
	ID        int64
	BatchID   string
	Lineno    int
	Signature string
	Narration sql.NullString
	Postings  string
	SavedAt   time.Time
}

// BatchSummary summarizes one save batch.
type BatchSummary struct {
	BatchID string
	Edits   int
	SavedAt string
}

// Stats represents save history statistics.
type Stats struct {
	TotalBatches int
	TotalEdits   int
	LastSave     sql.NullString
}

// History manages save history operations.
type History struct {
	conn *Connection
}

// NewHistory creates a new History instance.
func NewHistory(conn *Connection) *History {
	return &History{conn: conn}
}

// RecordBatch records a batch of applied edits inside a single SQL
// transaction and returns the generated batch ID.
func (h *History) RecordBatch(edits []rewrite.Edit) (string, error) {
	batchID := uuid.New().String()

	query := `
		INSERT INTO save_history (batch_id, lineno, signature, narration, postings)
		VALUES (?, ?, ?, ?, ?)
	`

	err := h.conn.Transaction(func(tx *sql.Tx) error {
		for _, edit := range edits {
			var narration sql.NullString
			if edit.Narration != nil {
				narration = sql.NullString{String: *edit.Narration, Valid: true}
			}

			if _, err := tx.Exec(query,
				batchID,
				edit.Lineno,
				edit.Signature,
				narration,
				renderPostings(edit),
			); err != nil {
				return fmt.Errorf("failed to record edit at line %d: %w", edit.Lineno, err)
			}
		}
		return nil
	})

	if err != nil {
		return "", err
	}

	return batchID, nil
}

// renderPostings flattens an edit's postings into one "account amount"
// line per posting, the same shape they take in the ledger file.
func renderPostings(edit rewrite.Edit) string {
	lines := make([]string, 0, len(edit.Postings))
	for _, p := range edit.Postings {
		line := p.Account
		if amount := p.Amount(); amount != "" {
			line += " " + amount
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// GetBatch retrieves all records for a batch, ordered by line number.
func (h *History) GetBatch(batchID string) ([]SaveRecord, error) {
	query := `
		SELECT id, batch_id, lineno, signature, narration, postings, saved_at
		FROM save_history
		WHERE batch_id = ?
		ORDER BY lineno
	`

	rows, err := h.conn.Query(query, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to get batch: %w", err)
	}
	defer rows.Close()

	var records []SaveRecord
	for rows.Next() {
		var record SaveRecord

		if err := rows.Scan(
			&record.ID,
			&record.BatchID,
			&record.Lineno,
			&record.Signature,
			&record.Narration,
			&record.Postings,
			&record.SavedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan save record: %w", err)
		}

		records = append(records, record)
	}

	return records, rows.Err()
}

// RecentBatches retrieves the most recent save batches, newest first.
func (h *History) RecentBatches(limit int) ([]BatchSummary, error) {
	query := `
		SELECT batch_id, COUNT(*) as edits, MAX(saved_at) as saved_at
		FROM save_history
		GROUP BY batch_id
		ORDER BY saved_at DESC
		LIMIT ?
	`

	rows, err := h.conn.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent batches: %w", err)
	}
	defer rows.Close()

	var batches []BatchSummary
	for rows.Next() {
		var batch BatchSummary

		if err := rows.Scan(&batch.BatchID, &batch.Edits, &batch.SavedAt); err != nil {
			return nil, fmt.Errorf("failed to scan batch summary: %w", err)
		}

		batches = append(batches, batch)
	}

	return batches, rows.Err()
}

// GetStats retrieves save history statistics.
func (h *History) GetStats() (*Stats, error) {
	var stats Stats

	err := h.conn.QueryRow(`SELECT COUNT(DISTINCT batch_id) FROM save_history`).Scan(&stats.TotalBatches)
	if err != nil {
		return nil, fmt.Errorf("failed to get batch count: %w", err)
	}

	err = h.conn.QueryRow(`SELECT COUNT(*) FROM save_history`).Scan(&stats.TotalEdits)
	if err != nil {
		return nil, fmt.Errorf("failed to get edit count: %w", err)
	}

	err = h.conn.QueryRow(`SELECT MAX(saved_at) FROM save_history`).Scan(&stats.LastSave)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to get last save time: %w", err)
	}

	return &stats, nil
}

// GetMetadata retrieves a metadata value.
func (h *History) GetMetadata(key string) (string, error) {
	query := `SELECT value FROM save_metadata WHERE key = ?`

	var value string
	err := h.conn.QueryRow(query, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get metadata: %w", err)
	}

	return value, nil
}

// SetMetadata sets a metadata value.
func (h *History) SetMetadata(key, value string) error {
	query := `
		INSERT INTO save_metadata (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = CURRENT_TIMESTAMP
	`

	_, err := h.conn.Exec(query, key, value)
	if err != nil {
		return fmt.Errorf("failed to set metadata: %w", err)
	}

	return nil
}

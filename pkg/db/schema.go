// Package db provides SQLite database management for save history and metadata.
package db

// Schema defines the SQL statements to create database tables.
const Schema = `
-- Save history table
-- Records every edit applied to the ledger file, grouped into batches
CREATE TABLE IF NOT EXISTS save_history (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    batch_id TEXT NOT NULL,            -- UUID shared by all edits saved together
    lineno INTEGER NOT NULL,           -- First line of the rewritten transaction
    signature TEXT NOT NULL,           -- Content signature the edit was based on
    narration TEXT,                    -- New narration, NULL when left unchanged
    postings TEXT NOT NULL,            -- Replacement postings, one "account amount" per line
    saved_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_save_history_batch
    ON save_history(batch_id);

CREATE INDEX IF NOT EXISTS idx_save_history_lineno
    ON save_history(lineno);

-- Save metadata table
-- Stores key-value metadata about save operations
CREATE TABLE IF NOT EXISTS save_metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
`

// InitializeSchema initializes the database schema.
// It creates all tables if they don't exist.
func InitializeSchema(conn *Connection) error {
	if _, err := conn.Exec(Schema); err != nil {
		return err
	}
	return nil
}

// Package queue provides the durable, insertion-ordered, retryable
// store of deferred AI operations.
package queue

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Omashka/circles-sub001/internal/models"
)

// Store persists queued operations in original enqueue order.
type Store interface {
	Append(op models.QueuedOperation) error
	List() ([]models.QueuedOperation, error)
	SetRetryCount(id string, count int) error
	Remove(id string) error
	Close() error
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS operations (
	seq         INTEGER PRIMARY KEY AUTOINCREMENT,
	id          TEXT    NOT NULL UNIQUE,
	kind        TEXT    NOT NULL,
	payload     TEXT    NOT NULL,
	created_at  INTEGER NOT NULL,
	retry_count INTEGER NOT NULL DEFAULT 0
);
`

// SQLiteStore is the embedded durable queue store. Local durability is
// the point: the queue must survive exactly the outages that make
// remote services unreachable.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens (creating if needed) the queue database with WAL.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create queue dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open queue database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping queue database: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("init queue schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Append persists a queued operation at the tail.
func (s *SQLiteStore) Append(op models.QueuedOperation) error {
	payload, err := json.Marshal(op.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO operations (id, kind, payload, created_at, retry_count)
		VALUES (?, ?, ?, ?, ?)
	`, op.ID, string(op.Kind), string(payload), op.CreatedAt.UnixMilli(), op.RetryCount)
	if err != nil {
		return fmt.Errorf("insert operation: %w", err)
	}
	return nil
}

// List returns all pending operations in original enqueue order.
func (s *SQLiteStore) List() ([]models.QueuedOperation, error) {
	rows, err := s.db.Query(`
		SELECT id, kind, payload, created_at, retry_count
		FROM operations
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query operations: %w", err)
	}
	defer rows.Close()

	var ops []models.QueuedOperation
	for rows.Next() {
		var op models.QueuedOperation
		var kind, payload string
		var createdAt int64
		if err := rows.Scan(&op.ID, &kind, &payload, &createdAt, &op.RetryCount); err != nil {
			return nil, fmt.Errorf("scan operation: %w", err)
		}
		op.Kind = models.OperationKind(kind)
		op.CreatedAt = time.UnixMilli(createdAt)
		if err := json.Unmarshal([]byte(payload), &op.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload for %s: %w", op.ID, err)
		}
		ops = append(ops, op)
	}
	return ops, rows.Err()
}

// SetRetryCount records a new retry count for an operation.
func (s *SQLiteStore) SetRetryCount(id string, count int) error {
	_, err := s.db.Exec(`UPDATE operations SET retry_count = ? WHERE id = ?`, count, id)
	if err != nil {
		return fmt.Errorf("update retry count: %w", err)
	}
	return nil
}

// Remove deletes an operation. Items are removed only after success or
// an explicit discard by policy.
func (s *SQLiteStore) Remove(id string) error {
	_, err := s.db.Exec(`DELETE FROM operations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete operation: %w", err)
	}
	return nil
}

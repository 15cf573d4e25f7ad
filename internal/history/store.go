// Package history keeps the audit trail of order status changes in Postgres.
package history

import (
	"context"
	"fmt"
	"time"

	"food-delivery/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS order_status_history (
	event_id    TEXT PRIMARY KEY,
	order_id    TEXT NOT NULL,
	from_status TEXT NOT NULL DEFAULT '',
	to_status   TEXT NOT NULL,
	changed_by  TEXT NOT NULL DEFAULT '',
	changed_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_order_status_history_order ON order_status_history (order_id, changed_at);`

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureSchema creates the history table if it does not exist
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create history schema: %w", err)
	}
	return nil
}

// Record stores an entry once. It reports false when the event id was
// already recorded, which happens on Kafka redelivery.
func (s *Store) Record(ctx context.Context, entry *models.StatusHistoryEntry) (bool, error) {
	query := `
		INSERT INTO order_status_history (event_id, order_id, from_status, to_status, changed_by, changed_at)
		VALUES (:event_id, :order_id, :from_status, :to_status, :changed_by, :changed_at)
		ON CONFLICT (event_id) DO NOTHING`

	result, err := s.db.NamedExecContext(ctx, query, entry)
	if err != nil {
		return false, fmt.Errorf("failed to record status history: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// ListByOrder returns the history of an order, oldest first
func (s *Store) ListByOrder(ctx context.Context, orderID string) ([]models.StatusHistoryEntry, error) {
	entries := []models.StatusHistoryEntry{}
	err := s.db.SelectContext(ctx, &entries, `
		SELECT event_id, order_id, from_status, to_status, changed_by, changed_at
		FROM order_status_history
		WHERE order_id = $1
		ORDER BY changed_at, event_id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list status history: %w", err)
	}
	return entries, nil
}

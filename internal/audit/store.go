package audit

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Store persists events in the audit_log table.
type Store struct {
	db *sqlx.DB
}

// NewStore creates a store over db.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Append inserts one event.
func (s *Store) Append(ctx context.Context, e Event) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO audit_log (ts, event, detail) VALUES (?, ?, ?)
	`), e.At, e.Kind, e.Detail)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// List returns the most recent events, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var events []Event
	err := s.db.SelectContext(ctx, &events, s.db.Rebind(`
		SELECT id, ts, event, detail FROM audit_log
		ORDER BY id DESC
		LIMIT ?
	`), limit)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	return events, nil
}

// ListKind returns the most recent events of one kind, newest first.
func (s *Store) ListKind(ctx context.Context, kind string, limit int) ([]Event, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var events []Event
	err := s.db.SelectContext(ctx, &events, s.db.Rebind(`
		SELECT id, ts, event, detail FROM audit_log
		WHERE event = ?
		ORDER BY id DESC
		LIMIT ?
	`), kind, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	return events, nil
}

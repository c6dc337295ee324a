package event

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Store is the document-store boundary for the event aggregate.
type Store interface {
	FindByID(ctx context.Context, id string) (*Event, error)
	FindAll(ctx context.Context) ([]*Event, error)
	Save(ctx context.Context, e *Event) error
	DeleteByID(ctx context.Context, id string) error
}

// PostgresStore keeps each event as a JSONB document keyed by id.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a store backed by the given connection.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the events table if it does not exist.
func (r *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS events (
			id         TEXT PRIMARY KEY,
			doc        JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	return err
}

// FindByID loads one event document.
func (r *PostgresStore) FindByID(ctx context.Context, id string) (*Event, error) {
	var raw []byte
	err := r.db.QueryRowContext(ctx, `SELECT doc FROM events WHERE id = $1`, id).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var e Event
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("decode event doc: %w", err)
	}
	return &e, nil
}

// FindAll loads every event document, newest first.
func (r *PostgresStore) FindAll(ctx context.Context) ([]*Event, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT doc FROM events ORDER BY updated_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*Event
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var e Event
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, fmt.Errorf("decode event doc: %w", err)
		}
		res = append(res, &e)
	}
	return res, rows.Err()
}

// Save upserts the whole aggregate document.
func (r *PostgresStore) Save(ctx context.Context, e *Event) error {
	e.UpdatedAt = time.Now().UTC()
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event doc: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO events (id, doc, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc, updated_at = NOW()
	`, e.ID, raw)
	return err
}

// DeleteByID removes an event document.
func (r *PostgresStore) DeleteByID(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

package student

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Store is the document-store boundary for the student aggregate. Save
// persists the whole aggregate; there is no partial update and no
// cross-aggregate transaction.
type Store interface {
	FindByID(ctx context.Context, id string) (*Student, error)
	FindByNumber(ctx context.Context, number string) (*Student, error)
	FindAll(ctx context.Context) ([]*Student, error)
	Save(ctx context.Context, s *Student) error
	DeleteByID(ctx context.Context, id string) error
}

// PostgresStore keeps each student as a JSONB document keyed by id, with
// the student number broken out for the login lookup.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a store backed by the given connection.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the students table if it does not exist.
func (r *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS students (
			id             TEXT PRIMARY KEY,
			student_number TEXT UNIQUE NOT NULL,
			doc            JSONB NOT NULL,
			updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	return err
}

// FindByID loads one student document.
func (r *PostgresStore) FindByID(ctx context.Context, id string) (*Student, error) {
	row := r.db.QueryRowContext(ctx, `SELECT doc FROM students WHERE id = $1`, id)
	return scanStudent(row)
}

// FindByNumber loads one student by the login key.
func (r *PostgresStore) FindByNumber(ctx context.Context, number string) (*Student, error) {
	row := r.db.QueryRowContext(ctx, `SELECT doc FROM students WHERE student_number = $1`, number)
	return scanStudent(row)
}

// FindAll loads every student document. Used by the notification fan-out.
func (r *PostgresStore) FindAll(ctx context.Context) ([]*Student, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT doc FROM students ORDER BY student_number`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*Student
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var s Student
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("decode student doc: %w", err)
		}
		res = append(res, &s)
	}
	return res, rows.Err()
}

// Save upserts the whole aggregate document.
func (r *PostgresStore) Save(ctx context.Context, s *Student) error {
	s.UpdatedAt = time.Now().UTC()
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode student doc: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO students (id, student_number, doc, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (id) DO UPDATE SET
			student_number = EXCLUDED.student_number,
			doc = EXCLUDED.doc,
			updated_at = NOW()
	`, s.ID, s.StudentNumber, raw)
	return err
}

// DeleteByID removes a student document.
func (r *PostgresStore) DeleteByID(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM students WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanStudent(row *sql.Row) (*Student, error) {
	var raw []byte
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var s Student
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode student doc: %w", err)
	}
	return &s, nil
}

package records

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wardbook/wardbook/internal/shared"
)

// RepositoryPort defines data access methods for records.
type RepositoryPort interface {
	Get(ctx context.Context, id uuid.UUID) (*Record, error)
	ListForPatient(ctx context.Context, patientID uuid.UUID) ([]Record, error)
	Create(ctx context.Context, rec *Record) error
	UpdateBody(ctx context.Context, id uuid.UUID, body string) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// Repository is the PostgreSQL implementation of RepositoryPort.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds a Repository backed by the provided pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const recordColumns = "id, patient_id, author_id, body, created_at, updated_at"

// Get fetches a record by ID.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*Record, error) {
	row := r.pool.QueryRow(ctx,
		"SELECT "+recordColumns+" FROM records WHERE id = $1", id)
	var rec Record
	if err := row.Scan(&rec.ID, &rec.PatientID, &rec.AuthorID, &rec.Body, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("records: get: %w", err)
	}
	return &rec, nil
}

// ListForPatient returns the patient's records, newest first.
func (r *Repository) ListForPatient(ctx context.Context, patientID uuid.UUID) ([]Record, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT "+recordColumns+" FROM records WHERE patient_id = $1 ORDER BY created_at DESC",
		patientID)
	if err != nil {
		return nil, fmt.Errorf("records: list: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.PatientID, &rec.AuthorID, &rec.Body, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("records: scan: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("records: list rows: %w", err)
	}
	return out, nil
}

// Create inserts a new record.
func (r *Repository) Create(ctx context.Context, rec *Record) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO records (id, patient_id, author_id, body, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $5)`,
		rec.ID, rec.PatientID, rec.AuthorID, rec.Body, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("records: create: %w", err)
	}
	return nil
}

// UpdateBody persists an edit to the record body.
func (r *Repository) UpdateBody(ctx context.Context, id uuid.UUID, body string) error {
	tag, err := r.pool.Exec(ctx,
		"UPDATE records SET body = $2, updated_at = now() WHERE id = $1", id, body)
	if err != nil {
		return fmt.Errorf("records: update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Delete removes a record.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, "DELETE FROM records WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("records: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

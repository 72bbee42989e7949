package patients

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wardbook/wardbook/internal/authz"
	"github.com/wardbook/wardbook/internal/shared"
)

// RepositoryPort defines data access methods for patients.
type RepositoryPort interface {
	Get(ctx context.Context, id uuid.UUID) (*Patient, error)
	List(ctx context.Context, filter authz.Filter, limit, offset int) ([]Patient, int, error)
	Create(ctx context.Context, p *Patient) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status authz.Status) error
	UpdatePersonalData(ctx context.Context, id uuid.UUID, data PersonalData) error
}

// Repository is the PostgreSQL implementation of RepositoryPort.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds a Repository backed by the provided pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const patientColumns = "id, first_name, last_name, date_of_birth, status, created_at, updated_at"

// Get fetches a patient by ID.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx,
		"SELECT "+patientColumns+" FROM patients WHERE id = $1", id)
	p, err := scanPatient(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("patients: get: %w", err)
	}
	return p, nil
}

// List returns patients matching the authorization filter, newest first.
// The filter condition is the provable equivalent of the per-row access
// rule, so listing never needs per-object checks.
func (r *Repository) List(ctx context.Context, filter authz.Filter, limit, offset int) ([]Patient, int, error) {
	cond, args := filter.SQL("status", 0)

	var total int
	if err := r.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM patients WHERE "+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("patients: count: %w", err)
	}

	query := fmt.Sprintf(
		"SELECT %s FROM patients WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		patientColumns, cond, len(args)+1, len(args)+2)
	rows, err := r.pool.Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("patients: list: %w", err)
	}
	defer rows.Close()

	out := make([]Patient, 0, limit)
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("patients: scan: %w", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("patients: list rows: %w", err)
	}
	return out, total, nil
}

// Create inserts a new patient.
func (r *Repository) Create(ctx context.Context, p *Patient) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO patients (id, first_name, last_name, date_of_birth, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, now(), now())`,
		p.ID, p.FirstName, p.LastName, p.DateOfBirth, p.Status.String())
	if err != nil {
		return fmt.Errorf("patients: create: %w", err)
	}
	return nil
}

// UpdateStatus persists a status transition.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status authz.Status) error {
	tag, err := r.pool.Exec(ctx,
		"UPDATE patients SET status = $2, updated_at = now() WHERE id = $1",
		id, status.String())
	if err != nil {
		return fmt.Errorf("patients: update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// UpdatePersonalData persists identity changes.
func (r *Repository) UpdatePersonalData(ctx context.Context, id uuid.UUID, data PersonalData) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE patients SET first_name = $2, last_name = $3, date_of_birth = $4, updated_at = now()
		 WHERE id = $1`,
		id, data.FirstName, data.LastName, data.DateOfBirth)
	if err != nil {
		return fmt.Errorf("patients: update personal data: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPatient(row rowScanner) (*Patient, error) {
	var p Patient
	var status string
	if err := row.Scan(&p.ID, &p.FirstName, &p.LastName, &p.DateOfBirth, &status, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Status = authz.ParseStatus(status)
	return &p, nil
}

// Directory adapts the repository to the engine's read-only patient lookup.
type Directory struct {
	repo RepositoryPort
}

// NewDirectory builds a Directory over the repository.
func NewDirectory(repo RepositoryPort) *Directory {
	return &Directory{repo: repo}
}

// PatientByID implements authz.Directory.
func (d *Directory) PatientByID(ctx context.Context, id uuid.UUID) (authz.Patient, error) {
	p, err := d.repo.Get(ctx, id)
	if err != nil {
		return authz.Patient{}, err
	}
	return p.Authz(), nil
}

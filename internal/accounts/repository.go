package accounts

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wardbook/wardbook/internal/authz"
	"github.com/wardbook/wardbook/internal/platform/db"
	"github.com/wardbook/wardbook/internal/shared"
)

// ErrEmailTaken indicates a duplicate account email.
var ErrEmailTaken = errors.New("accounts: email already registered")

// RepositoryPort defines data access methods for accounts. It doubles as the
// engine's bundle store: the synced permission bundle lives next to the
// account rows.
type RepositoryPort interface {
	Get(ctx context.Context, id uuid.UUID) (*Account, error)
	FindByEmail(ctx context.Context, email string) (*Account, error)
	List(ctx context.Context) ([]Account, error)
	Create(ctx context.Context, a *Account) error
	UpdateRole(ctx context.Context, id uuid.UUID, role authz.Role) error

	authz.BundleStore
}

// Repository is the PostgreSQL implementation of RepositoryPort.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds a Repository backed by the provided pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const accountColumns = "id, email, name, password_hash, role, is_active, created_at, updated_at"

// Get fetches an account by ID.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*Account, error) {
	return r.scanOne(r.pool.QueryRow(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE id = $1", id))
}

// FindByEmail fetches an account by email.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*Account, error) {
	return r.scanOne(r.pool.QueryRow(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE email = $1", email))
}

// List returns all accounts ordered by creation time. Used by the nightly
// bundle-resync job.
func (r *Repository) List(ctx context.Context) ([]Account, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT "+accountColumns+" FROM accounts ORDER BY created_at")
	if err != nil {
		return nil, fmt.Errorf("accounts: list: %w", err)
	}
	defer rows.Close()

	var out []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("accounts: scan: %w", err)
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("accounts: list rows: %w", err)
	}
	return out, nil
}

// Create inserts a new account.
func (r *Repository) Create(ctx context.Context, a *Account) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO accounts (id, email, name, password_hash, role, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, now(), now())`,
		a.ID, a.Email, a.Name, a.PasswordHash, a.Role.String(), a.IsActive)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrEmailTaken
		}
		return fmt.Errorf("accounts: create: %w", err)
	}
	return nil
}

// UpdateRole persists a role change.
func (r *Repository) UpdateRole(ctx context.Context, id uuid.UUID, role authz.Role) error {
	tag, err := r.pool.Exec(ctx,
		"UPDATE accounts SET role = $2, updated_at = now() WHERE id = $1",
		id, role.String())
	if err != nil {
		return fmt.Errorf("accounts: update role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ActorPermissions implements authz.BundleStore.
func (r *Repository) ActorPermissions(ctx context.Context, actorID uuid.UUID) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT permission FROM account_permissions WHERE account_id = $1 ORDER BY permission",
		actorID)
	if err != nil {
		return nil, fmt.Errorf("accounts: permissions: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("accounts: scan permission: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("accounts: permission rows: %w", err)
	}
	return out, nil
}

// ReplaceActorPermissions implements authz.BundleStore with delete-and-insert
// replace semantics in one transaction.
func (r *Repository) ReplaceActorPermissions(ctx context.Context, actorID uuid.UUID, permissions []string) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			"DELETE FROM account_permissions WHERE account_id = $1", actorID); err != nil {
			return fmt.Errorf("accounts: clear permissions: %w", err)
		}
		for _, p := range permissions {
			if _, err := tx.Exec(ctx,
				"INSERT INTO account_permissions (account_id, permission) VALUES ($1, $2)",
				actorID, p); err != nil {
				return fmt.Errorf("accounts: insert permission: %w", err)
			}
		}
		return nil
	})
}

func (r *Repository) scanOne(row pgx.Row) (*Account, error) {
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("accounts: get: %w", err)
	}
	return a, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*Account, error) {
	var a Account
	var role string
	if err := row.Scan(&a.ID, &a.Email, &a.Name, &a.PasswordHash, &role, &a.IsActive, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.Role = authz.ParseRole(role)
	return &a, nil
}

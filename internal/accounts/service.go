package accounts

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"github.com/wardbook/wardbook/internal/authz"
	"github.com/wardbook/wardbook/internal/shared"
)

// resyncConcurrency bounds parallel bundle syncs during a full resync.
const resyncConcurrency = 8

// Service handles account business logic. Role changes invalidate the
// actor's cached decisions before the call returns.
type Service struct {
	repo     RepositoryPort
	resolver *authz.Resolver
	sync     *authz.Synchronizer
	logger   *slog.Logger
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, resolver *authz.Resolver, sync *authz.Synchronizer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, resolver: resolver, sync: sync, logger: logger}
}

// CreateInput carries the fields required to register an account.
type CreateInput struct {
	Email    string
	Name     string
	Password string
	Role     authz.Role
}

// Create registers an account and syncs its permission bundle.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Account, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	acc := &Account{
		ID:           uuid.New(),
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		Name:         strings.TrimSpace(in.Name),
		PasswordHash: string(hash),
		Role:         in.Role,
		IsActive:     true,
	}
	if err := s.repo.Create(ctx, acc); err != nil {
		return nil, err
	}
	if err := s.sync.Sync(ctx, acc.Actor()); err != nil {
		return nil, err
	}
	return acc, nil
}

// Get fetches an account by ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Account, error) {
	return s.repo.Get(ctx, id)
}

// List returns all accounts.
func (s *Service) List(ctx context.Context) ([]Account, error) {
	return s.repo.List(ctx)
}

// ChangeRole updates the account role, drops the actor's cached decisions
// and replaces the permission bundle, in that order, before returning.
func (s *Service) ChangeRole(ctx context.Context, id uuid.UUID, role authz.Role) (*Account, error) {
	acc, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateRole(ctx, id, role); err != nil {
		return nil, err
	}
	acc.Role = role
	if err := s.resolver.OnActorRoleChanged(ctx, id); err != nil {
		// Persisted; the cache degraded and logged.
		s.logger.Warn("role invalidation failed",
			slog.String("account_id", id.String()), slog.Any("error", err))
	}
	if err := s.sync.Sync(ctx, acc.Actor()); err != nil {
		return nil, err
	}
	return acc, nil
}

// Authenticate verifies email and password and returns the active account.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*Account, error) {
	acc, err := s.repo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !acc.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)) != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return acc, nil
}

// ResyncBundles re-runs the bundle sync for every account. The nightly job
// uses this to repair drift between the role table and stored bundles.
func (s *Service) ResyncBundles(ctx context.Context) (int, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return 0, err
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(resyncConcurrency)
	for _, acc := range all {
		actor := acc.Actor()
		g.Go(func() error {
			return s.sync.Sync(ctx, actor)
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return len(all), nil
}

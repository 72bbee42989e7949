package patients

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/wardbook/wardbook/internal/authz"
	"github.com/wardbook/wardbook/internal/shared"
)

// Service handles patient business logic. Every mutation that affects
// permission outcomes invokes the matching invalidation hook synchronously
// after persisting, before success is returned.
type Service struct {
	repo     RepositoryPort
	resolver *authz.Resolver
	logger   *slog.Logger
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, resolver *authz.Resolver, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, resolver: resolver, logger: logger}
}

// Get returns the patient when the actor may view it.
func (s *Service) Get(ctx context.Context, actor authz.Actor, id uuid.UUID) (*Patient, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.resolver.Check(ctx, actor, shared.PermPatientsView, p.Authz()) != authz.Allow {
		return nil, shared.ErrDenied
	}
	return p, nil
}

// List returns the page of patients visible to the actor. The authorization
// filter is pushed into the query; no per-row checks happen here.
func (s *Service) List(ctx context.Context, actor authz.Actor, page, perPage int) ([]Patient, shared.Pagination, error) {
	pg := shared.NewPagination(page, perPage, 0)
	filter := authz.FilterFor(actor.Role)
	items, total, err := s.repo.List(ctx, filter, pg.PerPage, pg.Offset())
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(pg.Page, pg.PerPage, total), nil
}

// Register admits a new patient at intake. There is no object to check yet,
// so the gate is the model-level status-change grant.
func (s *Service) Register(ctx context.Context, actor authz.Actor, data PersonalData, status authz.Status) (*Patient, error) {
	if s.resolver.Check(ctx, actor, shared.PermPatientsChangeStatus, nil) != authz.Allow {
		return nil, shared.ErrDenied
	}
	if status == authz.StatusUnknown {
		return nil, fmt.Errorf("%w: unknown initial status", shared.ErrInvalidTransition)
	}
	p := &Patient{
		ID:          uuid.New(),
		FirstName:   data.FirstName,
		LastName:    data.LastName,
		DateOfBirth: data.DateOfBirth,
		Status:      status,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// ChangeStatus moves the patient to the next lifecycle status. The concrete
// transition is validated against the role transition table; the cache is
// invalidated before success is reported.
func (s *Service) ChangeStatus(ctx context.Context, actor authz.Actor, id uuid.UUID, next authz.Status) (*Patient, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.resolver.Check(ctx, actor, shared.PermPatientsChangeStatus, p.Authz()) != authz.Allow {
		return nil, shared.ErrDenied
	}
	if !s.resolver.Rules().CanChangeStatus(actor, p.Authz(), next) {
		return nil, fmt.Errorf("%w: %s -> %s as %s", shared.ErrInvalidTransition, p.Status, next, actor.Role)
	}
	if err := s.repo.UpdateStatus(ctx, id, next); err != nil {
		return nil, err
	}
	if err := s.resolver.OnPatientStatusChanged(ctx, id); err != nil {
		// The write is committed; the cache degraded and logged. Do not
		// fail the request over it.
		s.logger.Warn("patient status invalidation failed",
			slog.String("patient_id", id.String()), slog.Any("error", err))
	}
	p.Status = next
	return p, nil
}

// UpdatePersonalData mutates the patient's identity fields, permitted to
// physician-tier and resident-tier actors only.
func (s *Service) UpdatePersonalData(ctx context.Context, actor authz.Actor, id uuid.UUID, data PersonalData) (*Patient, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.resolver.Check(ctx, actor, shared.PermPatientsChangePersonalData, p.Authz()) != authz.Allow {
		return nil, shared.ErrDenied
	}
	if err := s.repo.UpdatePersonalData(ctx, id, data); err != nil {
		return nil, err
	}
	p.FirstName = data.FirstName
	p.LastName = data.LastName
	p.DateOfBirth = data.DateOfBirth
	return p, nil
}

package records

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wardbook/wardbook/internal/authz"
	"github.com/wardbook/wardbook/internal/shared"
)

// ErrBodyRequired indicates an empty record body.
var ErrBodyRequired = errors.New("records: body required")

// Service handles record business logic. Every write invokes the record
// invalidation hook synchronously after persisting, before success is
// returned to the caller.
type Service struct {
	repo      RepositoryPort
	resolver  *authz.Resolver
	directory authz.Directory
	logger    *slog.Logger

	// now supplies record creation timestamps; injected for tests.
	now func() time.Time
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, resolver *authz.Resolver, directory authz.Directory, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, resolver: resolver, directory: directory, logger: logger, now: time.Now}
}

// Get returns the record when the actor may view it.
func (s *Service) Get(ctx context.Context, actor authz.Actor, id uuid.UUID) (*Record, error) {
	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.resolver.Check(ctx, actor, shared.PermRecordsView, rec.Authz()) != authz.Allow {
		return nil, shared.ErrDenied
	}
	return rec, nil
}

// ListForPatient returns the patient's records when the actor may view the
// patient.
func (s *Service) ListForPatient(ctx context.Context, actor authz.Actor, patientID uuid.UUID) ([]Record, error) {
	patient, err := s.directory.PatientByID(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if s.resolver.Check(ctx, actor, shared.PermRecordsView, patient) != authz.Allow {
		return nil, shared.ErrDenied
	}
	return s.repo.ListForPatient(ctx, patientID)
}

// Create adds a record authored by the actor for the patient.
func (s *Service) Create(ctx context.Context, actor authz.Actor, patientID uuid.UUID, body string) (*Record, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, ErrBodyRequired
	}
	patient, err := s.directory.PatientByID(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if s.resolver.Check(ctx, actor, shared.PermRecordsCreate, patient) != authz.Allow {
		return nil, shared.ErrDenied
	}
	rec := &Record{
		ID:        uuid.New(),
		PatientID: patientID,
		AuthorID:  actor.ID,
		Body:      body,
		CreatedAt: s.now().UTC(),
	}
	rec.UpdatedAt = rec.CreatedAt
	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, err
	}
	s.invalidate(ctx, rec.ID)
	return rec, nil
}

// Edit replaces the record body. Only the author may edit, and only within
// the 24h window; the check is evaluated live, never from cache.
func (s *Service) Edit(ctx context.Context, actor authz.Actor, id uuid.UUID, body string) (*Record, error) {
	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.resolver.Check(ctx, actor, shared.PermRecordsEdit, rec.Authz()) != authz.Allow {
		return nil, shared.ErrDenied
	}
	if err := s.repo.UpdateBody(ctx, id, body); err != nil {
		return nil, err
	}
	s.invalidate(ctx, id)
	rec.Body = body
	return rec, nil
}

// Delete removes the record under the same author/time-window rule as Edit.
func (s *Service) Delete(ctx context.Context, actor authz.Actor, id uuid.UUID) error {
	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if s.resolver.Check(ctx, actor, shared.PermRecordsDelete, rec.Authz()) != authz.Allow {
		return shared.ErrDenied
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

func (s *Service) invalidate(ctx context.Context, recordID uuid.UUID) {
	if err := s.resolver.OnRecordWritten(ctx, recordID); err != nil {
		// The write is committed; the cache degraded and logged.
		s.logger.Warn("record invalidation failed",
			slog.String("record_id", recordID.String()), slog.Any("error", err))
	}
}

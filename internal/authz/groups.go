package authz

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/wardbook/wardbook/internal/shared"
)

// BundleStore persists the model-level permission bundle assigned to an
// actor. Implementations replace the whole bundle atomically.
type BundleStore interface {
	ActorPermissions(ctx context.Context, actorID uuid.UUID) ([]string, error)
	ReplaceActorPermissions(ctx context.Context, actorID uuid.UUID, permissions []string) error
}

// bundleTable is the static role → model-level permission mapping. It is
// data, not per-user state; the synchronizer only assigns an actor to the
// bundle matching its current role.
var bundleTable = map[Role][]string{
	RolePhysician: {
		shared.PermPatientsView,
		shared.PermPatientsChangeStatus,
		shared.PermPatientsChangePersonalData,
		shared.PermRecordsView,
		shared.PermRecordsCreate,
		shared.PermRecordsEdit,
		shared.PermRecordsDelete,
		shared.PermAuthzInspect,
	},
	RoleResident: {
		shared.PermPatientsView,
		shared.PermPatientsChangeStatus,
		shared.PermPatientsChangePersonalData,
		shared.PermRecordsView,
		shared.PermRecordsCreate,
		shared.PermRecordsEdit,
		shared.PermRecordsDelete,
	},
	RoleNurse: {
		shared.PermPatientsView,
		shared.PermPatientsChangeStatus,
		shared.PermRecordsView,
		shared.PermRecordsCreate,
		shared.PermRecordsEdit,
		shared.PermRecordsDelete,
	},
	RoleTherapist: {
		shared.PermPatientsView,
		shared.PermPatientsChangeStatus,
		shared.PermRecordsView,
		shared.PermRecordsCreate,
		shared.PermRecordsEdit,
		shared.PermRecordsDelete,
	},
	RoleTrainee: {
		shared.PermPatientsView,
		shared.PermRecordsView,
	},
}

// BundleFor returns the sorted model-level permission codes for the role.
// Unknown roles get an empty bundle.
func BundleFor(role Role) []string {
	perms, ok := bundleTable[role]
	if !ok {
		return nil
	}
	out := make([]string, len(perms))
	copy(out, perms)
	sort.Strings(out)
	return out
}

// KnownPermission reports whether the code is registered anywhere in the
// engine, either as an object-level rule or a model-level grant. Unregistered
// codes resolve to Miss so a composed authorization chain can continue.
func KnownPermission(code string) bool {
	switch code {
	case shared.PermPatientsView,
		shared.PermPatientsChangeStatus,
		shared.PermPatientsChangePersonalData,
		shared.PermRecordsView,
		shared.PermRecordsCreate,
		shared.PermRecordsEdit,
		shared.PermRecordsDelete,
		shared.PermAuthzInspect:
		return true
	default:
		return false
	}
}

// Synchronizer reconciles an actor's persisted bundle with the static table.
// It is pull-based on purpose: re-running it at any time is safe and repairs
// drift after a bundle-table change.
type Synchronizer struct {
	store  BundleStore
	logger *slog.Logger
}

// NewSynchronizer constructs a Synchronizer.
func NewSynchronizer(store BundleStore, logger *slog.Logger) *Synchronizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synchronizer{store: store, logger: logger}
}

// Sync assigns the actor the bundle matching its current role, replacing any
// prior bundle contents. Running it twice with no role change in between
// produces an identical end state.
func (s *Synchronizer) Sync(ctx context.Context, actor Actor) error {
	perms := BundleFor(actor.Role)
	if perms == nil {
		// Fail closed: an unrecognized role gets no grants, but the call
		// still succeeds so callers cannot be wedged by bad data.
		s.logger.Error("bundle sync: unknown role",
			slog.String("actor_id", actor.ID.String()),
			slog.String("role", actor.Role.String()))
		perms = []string{}
	}
	if err := s.store.ReplaceActorPermissions(ctx, actor.ID, perms); err != nil {
		return fmt.Errorf("authz: sync bundle: %w", err)
	}
	return nil
}

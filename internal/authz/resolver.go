package authz

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/wardbook/wardbook/internal/shared"
)

// Directory is the read-only lookup the resolver uses to reach a record's
// owning patient. The engine never writes through it.
type Directory interface {
	PatientByID(ctx context.Context, id uuid.UUID) (Patient, error)
}

// Resolver is the integration point consumed by request handlers: a
// permission-string check against a concrete resource, or against no
// resource for model-level checks.
type Resolver struct {
	rules     *Rules
	cache     *Cache
	bundles   BundleStore
	directory Directory
	logger    *slog.Logger
}

// NewResolver constructs a Resolver. cache may be nil, in which case every
// check evaluates the rules directly.
func NewResolver(rules *Rules, cache *Cache, bundles BundleStore, directory Directory, logger *slog.Logger) *Resolver {
	if rules == nil {
		rules = NewRules()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{rules: rules, cache: cache, bundles: bundles, directory: directory, logger: logger}
}

// Rules exposes the underlying rule engine for callers that need to validate
// a concrete state transition.
func (r *Resolver) Rules() *Rules { return r.rules }

// CacheStats returns the decision-cache counters for the inspection report.
func (r *Resolver) CacheStats() CacheStats { return r.cache.Stats() }

// Check resolves the permission code for the actor. With a nil resource the
// decision comes from the actor's model-level bundle; with a resource it is
// dispatched to the matching rule through the cache. Unrecognized codes
// return Miss, never Deny, so a composed authorization chain can try its
// next backend.
func (r *Resolver) Check(ctx context.Context, actor Actor, permission string, resource Resource) Decision {
	if resource == nil {
		return r.checkModel(ctx, actor, permission)
	}
	switch resource := resource.(type) {
	case Patient:
		return r.checkPatient(ctx, actor, permission, resource)
	case Record:
		return r.checkRecord(ctx, actor, permission, resource)
	default:
		return Miss
	}
}

func (r *Resolver) checkModel(ctx context.Context, actor Actor, permission string) Decision {
	if !KnownPermission(permission) {
		return Miss
	}
	if r.bundles == nil {
		return Deny
	}
	granted, err := r.bundles.ActorPermissions(ctx, actor.ID)
	if err != nil {
		r.logger.Error("authz: bundle lookup failed, denying",
			slog.String("actor_id", actor.ID.String()), slog.Any("error", err))
		return Deny
	}
	for _, p := range granted {
		if p == permission {
			return Allow
		}
	}
	return Deny
}

func (r *Resolver) checkPatient(ctx context.Context, actor Actor, permission string, patient Patient) Decision {
	switch permission {
	case shared.PermPatientsView, shared.PermRecordsView:
		return r.cached(ctx, actor, patient, patient.ID, ActionView, func() bool {
			return r.rules.CanAccessPatient(actor, patient)
		})
	case shared.PermRecordsCreate:
		// Creating a record for a patient requires access to the patient.
		return r.cached(ctx, actor, patient, patient.ID, ActionCreate, func() bool {
			return r.rules.CanAccessPatient(actor, patient)
		})
	case shared.PermPatientsChangeStatus:
		return r.cached(ctx, actor, patient, patient.ID, ActionChangeStatus, func() bool {
			return r.rules.CanTransitionSomewhere(actor, patient)
		})
	case shared.PermPatientsChangePersonalData:
		return r.cached(ctx, actor, patient, patient.ID, ActionChangePersonalData, func() bool {
			return r.rules.CanChangePersonalData(actor)
		})
	default:
		return Miss
	}
}

func (r *Resolver) checkRecord(ctx context.Context, actor Actor, permission string, record Record) Decision {
	switch permission {
	case shared.PermRecordsView:
		status, ok := r.patientStatus(ctx, record.PatientID)
		if !ok {
			return Deny
		}
		// Versioned by the owning patient: a status change must strand
		// this entry, a record write need not.
		return r.cached(ctx, actor, record, record.PatientID, ActionView, func() bool {
			return r.rules.CanAccessRecord(actor, record, status)
		})
	case shared.PermRecordsEdit:
		// Never cached: the 24h window is evaluated live on every check.
		return decisionOf(r.rules.CanEditRecord(record, actor))
	case shared.PermRecordsDelete:
		return decisionOf(r.rules.CanDeleteRecord(record, actor))
	default:
		return Miss
	}
}

// cached consults the decision cache, falling through to direct evaluation
// on any miss or backend failure.
func (r *Resolver) cached(ctx context.Context, actor Actor, resource Resource, versionID uuid.UUID, action Action, evaluate func() bool) Decision {
	key := CacheKey{
		ActorID:      actor.ID,
		ResourceType: resource.AuthzType(),
		ResourceID:   resource.AuthzID(),
		VersionID:    versionID,
		Action:       action,
	}
	if d, ok := r.cache.Get(ctx, key); ok {
		return d
	}
	d := decisionOf(evaluate())
	r.cache.Put(ctx, key, d)
	return d
}

func (r *Resolver) patientStatus(ctx context.Context, patientID uuid.UUID) (Status, bool) {
	if r.directory == nil {
		r.logger.Error("authz: no directory configured, denying record access")
		return StatusUnknown, false
	}
	patient, err := r.directory.PatientByID(ctx, patientID)
	if err != nil {
		r.logger.Error("authz: patient lookup failed, denying",
			slog.String("patient_id", patientID.String()), slog.Any("error", err))
		return StatusUnknown, false
	}
	return patient.Status, true
}

// OnRecordWritten must be called synchronously after a record create, update,
// or delete is persisted and before success is returned to the caller.
func (r *Resolver) OnRecordWritten(ctx context.Context, recordID uuid.UUID) error {
	return r.cache.InvalidateResource(ctx, recordID)
}

// OnPatientStatusChanged must be called synchronously after a patient status
// change is persisted and before success is returned to the caller.
func (r *Resolver) OnPatientStatusChanged(ctx context.Context, patientID uuid.UUID) error {
	return r.cache.InvalidateResource(ctx, patientID)
}

// OnActorRoleChanged must be called synchronously after a role change is
// persisted; the caller then re-runs the group synchronizer for the actor.
func (r *Resolver) OnActorRoleChanged(ctx context.Context, actorID uuid.UUID) error {
	return r.cache.InvalidateActor(ctx, actorID)
}

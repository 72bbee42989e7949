package authz

import (
	"time"

	"github.com/google/uuid"
)

// Role classifies an actor into one of the clinical tiers.
type Role int8

const (
	RoleUnknown Role = iota
	RolePhysician
	RoleResident
	RoleNurse
	RoleTherapist
	RoleTrainee
)

// Roles lists every known role in a stable order.
func Roles() []Role {
	return []Role{RolePhysician, RoleResident, RoleNurse, RoleTherapist, RoleTrainee}
}

// String returns the wire name of the role.
func (r Role) String() string {
	switch r {
	case RolePhysician:
		return "physician"
	case RoleResident:
		return "resident"
	case RoleNurse:
		return "nurse"
	case RoleTherapist:
		return "therapist"
	case RoleTrainee:
		return "trainee"
	default:
		return "unknown"
	}
}

// ParseRole maps a wire name to a Role. Unrecognized input yields RoleUnknown
// so that every downstream predicate fails closed instead of panicking.
func ParseRole(s string) Role {
	switch s {
	case "physician":
		return RolePhysician
	case "resident":
		return RoleResident
	case "nurse":
		return RoleNurse
	case "therapist":
		return RoleTherapist
	case "trainee":
		return RoleTrainee
	default:
		return RoleUnknown
	}
}

// Status is a patient's lifecycle state.
type Status int8

const (
	StatusUnknown Status = iota
	StatusEmergency
	StatusAdmitted
	StatusAmbulatory
	StatusDischarged
	StatusTransferred
)

// Statuses lists every known status in a stable order.
func Statuses() []Status {
	return []Status{StatusEmergency, StatusAdmitted, StatusAmbulatory, StatusDischarged, StatusTransferred}
}

// String returns the wire name of the status.
func (s Status) String() string {
	switch s {
	case StatusEmergency:
		return "emergency"
	case StatusAdmitted:
		return "admitted"
	case StatusAmbulatory:
		return "ambulatory"
	case StatusDischarged:
		return "discharged"
	case StatusTransferred:
		return "transferred"
	default:
		return "unknown"
	}
}

// ParseStatus maps a wire name to a Status, StatusUnknown when unrecognized.
func ParseStatus(s string) Status {
	switch s {
	case "emergency":
		return StatusEmergency
	case "admitted":
		return StatusAdmitted
	case "ambulatory":
		return StatusAmbulatory
	case "discharged":
		return StatusDischarged
	case "transferred":
		return StatusTransferred
	default:
		return StatusUnknown
	}
}

// Terminal reports whether the status is a discharge-type end state.
func (s Status) Terminal() bool {
	return s == StatusDischarged || s == StatusTransferred
}

// Action is an operation an actor may attempt against a resource.
type Action int8

const (
	ActionUnknown Action = iota
	ActionView
	ActionCreate
	ActionEdit
	ActionDelete
	ActionChangeStatus
	ActionChangePersonalData
)

// String returns the wire name of the action.
func (a Action) String() string {
	switch a {
	case ActionView:
		return "view"
	case ActionCreate:
		return "create"
	case ActionEdit:
		return "edit"
	case ActionDelete:
		return "delete"
	case ActionChangeStatus:
		return "change_status"
	case ActionChangePersonalData:
		return "change_personal_data"
	default:
		return "unknown"
	}
}

// Decision is the outcome of a permission check.
type Decision int8

const (
	// Miss means the check is not applicable (unknown permission code or a
	// cache miss); a composed authorization chain may try its next backend.
	Miss Decision = iota
	// Deny is the normal outcome of a failed rule, never an error.
	Deny
	// Allow grants the operation.
	Allow
)

// String returns the wire name of the decision.
func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case Deny:
		return "deny"
	default:
		return "miss"
	}
}

// decisionOf converts a rule predicate result into a Decision.
func decisionOf(allowed bool) Decision {
	if allowed {
		return Allow
	}
	return Deny
}

// ResourceType discriminates the polymorphic resources the engine rules over.
type ResourceType int8

const (
	ResourceNone ResourceType = iota
	ResourcePatient
	ResourceRecord
)

// String returns the wire name of the resource type.
func (t ResourceType) String() string {
	switch t {
	case ResourcePatient:
		return "patient"
	case ResourceRecord:
		return "record"
	default:
		return "none"
	}
}

// Resource is the object side of an object-level permission check.
type Resource interface {
	AuthzType() ResourceType
	AuthzID() uuid.UUID
}

// Actor is the subject of a permission check. Role is immutable within one
// evaluation; role changes arrive as external events via the invalidation
// hooks and the group synchronizer.
type Actor struct {
	ID   uuid.UUID
	Role Role
}

// Patient is the engine's view of a patient resource.
type Patient struct {
	ID     uuid.UUID
	Status Status
}

// AuthzType implements Resource.
func (p Patient) AuthzType() ResourceType { return ResourcePatient }

// AuthzID implements Resource.
func (p Patient) AuthzID() uuid.UUID { return p.ID }

// Record is the engine's view of a clinical record entry.
type Record struct {
	ID        uuid.UUID
	CreatorID uuid.UUID
	PatientID uuid.UUID
	CreatedAt time.Time
}

// AuthzType implements Resource.
func (r Record) AuthzType() ResourceType { return ResourceRecord }

// AuthzID implements Resource.
func (r Record) AuthzID() uuid.UUID { return r.ID }

package authz

import "time"

// EditWindow is how long after creation a record stays editable and deletable
// by its creator. The comparison is a strict less-than with no grace period.
const EditWindow = 24 * time.Hour

// Rules holds the pure decision predicates. Every method is side-effect free
// and evaluates against the supplied inputs only; the only ambient input is
// the injected clock, and only for the time-windowed record checks.
type Rules struct {
	// Now supplies wall-clock time for the record edit/delete window.
	// Defaults to time.Now.
	Now func() time.Time
}

// NewRules constructs a Rules instance with the real clock.
func NewRules() *Rules {
	return &Rules{Now: time.Now}
}

func (r *Rules) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// CanAccessPatient reports whether the actor may view the patient at all.
// The matrix is flat role×status: every known role sees every patient,
// except trainees, who see only ambulatory and discharged patients.
func (r *Rules) CanAccessPatient(actor Actor, patient Patient) bool {
	switch actor.Role {
	case RolePhysician, RoleResident, RoleNurse, RoleTherapist:
		switch patient.Status {
		case StatusEmergency, StatusAdmitted, StatusAmbulatory, StatusDischarged, StatusTransferred:
			return true
		default:
			return false
		}
	case RoleTrainee:
		switch patient.Status {
		case StatusAmbulatory, StatusDischarged:
			return true
		default:
			return false
		}
	default:
		return false
	}
}

// CanAccessRecord applies the patient access matrix to a record through its
// owning patient's current status.
func (r *Rules) CanAccessRecord(actor Actor, record Record, patientStatus Status) bool {
	return r.CanAccessPatient(actor, Patient{ID: record.PatientID, Status: patientStatus})
}

// CanChangeStatus reports whether the actor may move the patient from its
// current status to next. Same-status transitions are not transitions and
// are denied.
//
// Physicians and residents may perform any transition, including the
// terminal discharge and transfer states. Nurses and therapists may only
// move patients between non-terminal states, and moving a patient out of
// emergency is reserved to physicians and residents with one exception:
// a nurse may stabilize emergency into admitted.
func (r *Rules) CanChangeStatus(actor Actor, patient Patient, next Status) bool {
	if next == StatusUnknown || patient.Status == StatusUnknown {
		return false
	}
	if next == patient.Status {
		return false
	}
	switch actor.Role {
	case RolePhysician, RoleResident:
		return true
	case RoleNurse:
		if patient.Status == StatusEmergency {
			return next == StatusAdmitted
		}
		return !next.Terminal()
	case RoleTherapist:
		if patient.Status == StatusEmergency {
			return false
		}
		return !next.Terminal()
	default:
		return false
	}
}

// CanTransitionSomewhere reports whether any status transition at all is open
// to the actor from the patient's current status. This is the object-level
// gate behind the change-status permission code; the concrete target is
// validated by the caller via CanChangeStatus.
func (r *Rules) CanTransitionSomewhere(actor Actor, patient Patient) bool {
	for _, next := range Statuses() {
		if r.CanChangeStatus(actor, patient, next) {
			return true
		}
	}
	return false
}

// CanChangePersonalData reports whether the actor may mutate a patient's
// personal data. Restricted to physicians and residents.
func (r *Rules) CanChangePersonalData(actor Actor) bool {
	switch actor.Role {
	case RolePhysician, RoleResident:
		return true
	default:
		return false
	}
}

// CanEditRecord reports whether the actor may edit the record: creator only,
// and only while the record is younger than EditWindow. Exactly at the
// boundary the right has expired.
func (r *Rules) CanEditRecord(record Record, actor Actor) bool {
	return r.withinEditWindow(record, actor)
}

// CanDeleteRecord mirrors CanEditRecord; the deletion right shares the
// creator-only time window.
func (r *Rules) CanDeleteRecord(record Record, actor Actor) bool {
	return r.withinEditWindow(record, actor)
}

func (r *Rules) withinEditWindow(record Record, actor Actor) bool {
	if actor.Role == RoleUnknown {
		return false
	}
	if actor.ID != record.CreatorID {
		return false
	}
	return r.now().Sub(record.CreatedAt) < EditWindow
}

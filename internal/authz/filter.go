package authz

import (
	"fmt"
	"strings"
)

// Filter is a set-membership restriction over patients, equivalent to
// evaluating CanAccessPatient per row for the given role. It expresses only
// what is a pure function of actor role and patient status; the time-windowed
// record predicates are point-in-time checks and have no filter form.
type Filter struct {
	// Unrestricted means every row matches and no condition is needed.
	Unrestricted bool
	// Statuses is the allowed status set when Unrestricted is false. An
	// empty set matches nothing (the fail-closed filter for unknown roles).
	Statuses []Status
}

// FilterFor returns the listing filter for the role.
func FilterFor(role Role) Filter {
	switch role {
	case RolePhysician, RoleResident, RoleNurse, RoleTherapist:
		return Filter{Unrestricted: true}
	case RoleTrainee:
		return Filter{Statuses: []Status{StatusAmbulatory, StatusDischarged}}
	default:
		return Filter{}
	}
}

// Matches reports whether the patient belongs to the filtered set.
func (f Filter) Matches(patient Patient) bool {
	if f.Unrestricted {
		return true
	}
	for _, s := range f.Statuses {
		if patient.Status == s {
			return true
		}
	}
	return false
}

// SQL renders the filter as a WHERE condition over the given status column
// using numbered pgx placeholders starting at argOffset+1. An unrestricted
// filter renders TRUE; an empty filter renders FALSE.
func (f Filter) SQL(column string, argOffset int) (string, []any) {
	if f.Unrestricted {
		return "TRUE", nil
	}
	if len(f.Statuses) == 0 {
		return "FALSE", nil
	}
	placeholders := make([]string, 0, len(f.Statuses))
	args := make([]any, 0, len(f.Statuses))
	for i, s := range f.Statuses {
		placeholders = append(placeholders, fmt.Sprintf("$%d", argOffset+i+1))
		args = append(args, s.String())
	}
	return fmt.Sprintf("%s IN (%s)", column, strings.Join(placeholders, ", ")), args
}

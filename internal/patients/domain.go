package patients

import (
	"time"

	"github.com/google/uuid"

	"github.com/wardbook/wardbook/internal/authz"
)

// Patient is a patient under care. Status drives object-level authorization;
// the personal data fields are mutable only by physician-tier actors.
type Patient struct {
	ID          uuid.UUID
	FirstName   string
	LastName    string
	DateOfBirth time.Time
	Status      authz.Status
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Authz returns the engine's view of the patient.
func (p Patient) Authz() authz.Patient {
	return authz.Patient{ID: p.ID, Status: p.Status}
}

// PersonalData is the mutable identity subset of a patient.
type PersonalData struct {
	FirstName   string
	LastName    string
	DateOfBirth time.Time
}

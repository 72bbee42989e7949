package records

import (
	"time"

	"github.com/google/uuid"

	"github.com/wardbook/wardbook/internal/authz"
)

// Record is one clinical record entry for a patient. Edit and delete rights
// belong to the author alone and expire 24 hours after creation.
type Record struct {
	ID        uuid.UUID
	PatientID uuid.UUID
	AuthorID  uuid.UUID
	Body      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Authz returns the engine's view of the record.
func (r Record) Authz() authz.Record {
	return authz.Record{
		ID:        r.ID,
		CreatorID: r.AuthorID,
		PatientID: r.PatientID,
		CreatedAt: r.CreatedAt,
	}
}

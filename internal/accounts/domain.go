package accounts

import (
	"time"

	"github.com/google/uuid"

	"github.com/wardbook/wardbook/internal/authz"
)

// Account is a staff account. Its role drives both the model-level bundle
// and every object-level decision made for the actor.
type Account struct {
	ID           uuid.UUID
	Email        string
	Name         string
	PasswordHash string
	Role         authz.Role
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Actor returns the engine's view of the account.
func (a Account) Actor() authz.Actor {
	return authz.Actor{ID: a.ID, Role: a.Role}
}

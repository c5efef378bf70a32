package domain

import (
	"time"

	"github.com/google/uuid"
)

// Identity is the opaque handle the identity provider issues for a signed-in account.
type Identity string

// Account is the credential record owned by the identity provider.
type Account struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Identity returns the handle under which this account's profile is stored.
func (a *Account) Identity() Identity {
	return Identity(a.ID.String())
}

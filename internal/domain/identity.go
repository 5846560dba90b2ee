package domain

import "time"

// Identity is the acting caller as handed over by the identity layer.
type Identity struct {
	ID          string
	DisplayName string
	Email       string
	IsAdmin     bool
}

// Ref returns the identity as a ticket role binding.
func (i Identity) Ref() UserRef {
	return UserRef{ID: i.ID, Name: i.DisplayName}
}

// Account is a local console account used to mint identities. Directory
// users authenticate upstream; accounts exist for admins and service access.
type Account struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	IsAdmin      bool
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identity converts the account into an acting identity.
func (a *Account) Identity() Identity {
	return Identity{
		ID:          a.ID,
		DisplayName: a.DisplayName,
		Email:       a.Email,
		IsAdmin:     a.IsAdmin,
	}
}

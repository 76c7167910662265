package entities

import (
	"errors"
	"time"
)

// Role determines which operations a user may perform
type Role string

const (
	RolePlayer    Role = "player"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// CanManage reports whether the role may run admin roster and fund operations
func (r Role) CanManage() bool {
	return r == RoleAdmin || r == RoleModerator
}

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	switch r {
	case RolePlayer, RoleModerator, RoleAdmin:
		return true
	}
	return false
}

// User represents a player wallet holder
type User struct {
	ID            string    `db:"id"`
	DisplayName   string    `db:"display_name"`
	Balance       int64     `db:"balance"` // Cached sum of the user's transactions
	Role          Role      `db:"role"`
	CredentialRef string    `db:"credential_ref"`
	Active        bool      `db:"active"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

// CanAfford checks whether a debit of amount keeps the balance at or above the floor
func (u *User) CanAfford(amount, minimumBalance int64) bool {
	return u.Balance-amount >= minimumBalance
}

// IsBelow reports whether the balance is strictly below threshold
func (u *User) IsBelow(threshold int64) bool {
	return u.Balance < threshold
}

// Validate checks the fields required to create a user
func (u *User) Validate() error {
	if u.ID == "" {
		return errors.New("user id is required")
	}
	if u.DisplayName == "" {
		return errors.New("display name is required")
	}
	if !u.Role.Valid() {
		return errors.New("unknown role")
	}
	return nil
}

// Credential is what a caller presents to prove who they are. Secret is never stored.
type Credential struct {
	UserID string
	Secret string
}

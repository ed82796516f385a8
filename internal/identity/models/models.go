// Package models holds the identity aggregate and its value objects.
package models

import (
	"time"

	id "idplane/pkg/domain"
	dErrors "idplane/pkg/domain-errors"
)

// Role is a closed enum of account roles.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Valid reports whether the role is a member of the closed enum.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// ParseRole validates a raw role string.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", dErrors.New(dErrors.CodeValidation, "role must be USER or ADMIN")
	}
	return r, nil
}

// User is the identity aggregate. Email is stored normalized (lowercase) so
// case-insensitive uniqueness holds at the store level.
type User struct {
	ID           id.UserID
	Email        string
	PasswordHash string
	Role         Role
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewUser creates a user with the activation rule applied: admins start
// active, regular users start inactive pending explicit activation.
func NewUser(email Email, passwordHash string, role Role, now time.Time) *User {
	return &User{
		ID:           id.NewUserID(),
		Email:        email.String(),
		PasswordHash: passwordHash,
		Role:         role,
		Active:       role == RoleAdmin,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Activate marks the account active.
func (u *User) Activate(now time.Time) {
	u.Active = true
	u.UpdatedAt = now
}

// Deactivate marks the account inactive.
func (u *User) Deactivate(now time.Time) {
	u.Active = false
	u.UpdatedAt = now
}

// ChangeRole updates the role. Demoting an admin is forbidden; the last
// admin must never lock everyone out.
func (u *User) ChangeRole(role Role, now time.Time) error {
	if u.IsAdmin() && role != RoleAdmin {
		return dErrors.New(dErrors.CodeForbidden, "admin role cannot be changed")
	}
	u.Role = role
	u.UpdatedAt = now
	return nil
}

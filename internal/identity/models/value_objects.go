package models

import (
	"net/mail"
	"strings"

	dErrors "idplane/pkg/domain-errors"
)

const (
	// MaxEmailLength bounds stored emails; RFC 5321 path limit.
	MaxEmailLength = 254

	// MinPasswordLength is the minimum accepted password length.
	MinPasswordLength = 8

	// MaxPasswordLength is bcrypt's input limit; longer inputs would be
	// silently truncated by the hash, so they are rejected instead.
	MaxPasswordLength = 72
)

// Email is a validated, normalized (lowercase) email address. Uniqueness
// checks compare the normalized form, which is what makes duplicate
// detection case-insensitive.
type Email struct {
	value string
}

// NewEmail validates and normalizes a raw email address.
func NewEmail(raw string) (Email, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Email{}, dErrors.New(dErrors.CodeValidation, "email is required")
	}
	if len(trimmed) > MaxEmailLength {
		return Email{}, dErrors.New(dErrors.CodeValidation, "email exceeds max length")
	}

	addr, err := mail.ParseAddress(trimmed)
	if err != nil || addr.Address != trimmed {
		return Email{}, dErrors.New(dErrors.CodeValidation, "invalid email format")
	}

	return Email{value: strings.ToLower(trimmed)}, nil
}

func (e Email) String() string {
	return e.value
}

// Password is a validated plaintext password, held only long enough to hash.
type Password struct {
	value string
}

// NewPassword validates a raw password.
func NewPassword(raw string) (Password, error) {
	if len(raw) < MinPasswordLength {
		return Password{}, dErrors.New(dErrors.CodeValidation, "password must be at least 8 characters")
	}
	if len(raw) > MaxPasswordLength {
		return Password{}, dErrors.New(dErrors.CodeValidation, "password exceeds max length")
	}
	return Password{value: raw}, nil
}

func (p Password) String() string {
	return p.value
}

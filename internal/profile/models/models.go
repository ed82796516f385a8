// Package models holds the profile aggregate.
package models

import (
	"strings"
	"time"

	id "idplane/pkg/domain"
	dErrors "idplane/pkg/domain-errors"
)

const (
	// MaxDisplayNameLength bounds display names.
	MaxDisplayNameLength = 100
	// MaxBioLength bounds the bio field.
	MaxBioLength = 1000
	// MaxAvatarURLLength bounds the avatar URL.
	MaxAvatarURLLength = 500
)

// Profile is a user's public profile, keyed one-to-one by user ID.
type Profile struct {
	ID          id.ProfileID `json:"id"`
	UserID      id.UserID    `json:"userId"`
	DisplayName string       `json:"displayName"`
	Bio         string       `json:"bio,omitempty"`
	AvatarURL   string       `json:"avatarUrl,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// ProfileInput carries the mutable profile fields.
type ProfileInput struct {
	DisplayName string `json:"displayName"`
	Bio         string `json:"bio,omitempty"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

// Validate checks field presence and bounds.
func (in *ProfileInput) Validate() error {
	name := strings.TrimSpace(in.DisplayName)
	if name == "" {
		return dErrors.New(dErrors.CodeValidation, "displayName is required")
	}
	if len(name) > MaxDisplayNameLength {
		return dErrors.New(dErrors.CodeValidation, "displayName exceeds max length")
	}
	if len(in.Bio) > MaxBioLength {
		return dErrors.New(dErrors.CodeValidation, "bio exceeds max length")
	}
	if len(in.AvatarURL) > MaxAvatarURLLength {
		return dErrors.New(dErrors.CodeValidation, "avatarUrl exceeds max length")
	}
	return nil
}

// NewProfile creates a profile for the given user.
func NewProfile(userID id.UserID, in ProfileInput, now time.Time) *Profile {
	return &Profile{
		ID:          id.NewProfileID(),
		UserID:      userID,
		DisplayName: strings.TrimSpace(in.DisplayName),
		Bio:         in.Bio,
		AvatarURL:   in.AvatarURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Apply updates the mutable fields.
func (p *Profile) Apply(in ProfileInput, now time.Time) {
	p.DisplayName = strings.TrimSpace(in.DisplayName)
	p.Bio = in.Bio
	p.AvatarURL = in.AvatarURL
	p.UpdatedAt = now
}

// Package models defines the audit domain: the closed action and entity
// enums, the wire-to-record validation, and the immutable audit record.
// Producers use the constants; the sink is the validation boundary and
// drops anything outside the enums.
package models

import (
	"time"

	id "idplane/pkg/domain"
	dErrors "idplane/pkg/domain-errors"
)

// Action is the closed enum of auditable actions.
type Action string

const (
	ActionCreate     = "CREATE"
	ActionUpdate     = "UPDATE"
	ActionDelete     = "DELETE"
	ActionRead       = "READ"
	ActionLogin      = "LOGIN"
	ActionLogout     = "LOGOUT"
	ActionRegister   = "REGISTER"
	ActionActivate   = "ACTIVATE"
	ActionDeactivate = "DEACTIVATE"
)

var validActions = map[Action]struct{}{
	ActionCreate: {}, ActionUpdate: {}, ActionDelete: {},
	ActionRead: {}, ActionLogin: {}, ActionLogout: {},
	ActionRegister: {}, ActionActivate: {}, ActionDeactivate: {},
}

// Valid reports whether the action is a member of the closed enum.
func (a Action) Valid() bool {
	_, ok := validActions[a]
	return ok
}

// EntityType is the closed enum of auditable entity kinds.
type EntityType string

const (
	EntityUser        = "USER"
	EntityUserProfile = "USER_PROFILE"
	EntityAuth        = "AUTH"
	EntitySystem      = "SYSTEM"
	EntityDocument    = "DOCUMENT"
	EntityPrompt      = "PROMPT"
)

var validEntityTypes = map[EntityType]struct{}{
	EntityUser: {}, EntityUserProfile: {}, EntityAuth: {},
	EntitySystem: {}, EntityDocument: {}, EntityPrompt: {},
}

// Valid reports whether the entity type is a member of the closed enum.
func (e EntityType) Valid() bool {
	_, ok := validEntityTypes[e]
	return ok
}

// Record is one persisted audit log entry. Records are append-only; nothing
// in the system updates or deletes them.
type Record struct {
	ID id.RecordID
	// MessageKey is the broker message key the record was ingested under.
	// The store's uniqueness constraint on it makes ingestion idempotent.
	MessageKey string
	UserID     string
	Action     Action
	EntityType EntityType
	EntityID   string
	Details    map[string]string
	IPAddress  string
	UserAgent  string
	// Device is a human-readable summary derived from UserAgent at
	// ingestion time, e.g. "Chrome 120 on Linux".
	Device string
	// OccurredAt is the producer-side event time.
	OccurredAt time.Time
	// IngestedAt is when the sink persisted the record.
	IngestedAt time.Time
}

// Validate checks the closed enums. A failing record is dropped by the
// sink, never retried.
func (r *Record) Validate() error {
	if !r.Action.Valid() {
		return dErrors.New(dErrors.CodeValidation, "unknown audit action")
	}
	if !r.EntityType.Valid() {
		return dErrors.New(dErrors.CodeValidation, "unknown audit entity type")
	}
	return nil
}

// Package models defines the core data types of the retrace audit engine.
package models

import "time"

// Action is the kind of change an audit record captures.
type Action string

// Audit actions.
const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Valid reports whether a is one of the known actions.
func (a Action) Valid() bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete:
		return true
	}

	return false
}

// EntityRef is a weak polymorphic reference to an audited entity.
// It may point to an entity that has since been deleted.
type EntityRef struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// Validate checks that both halves of the reference are present.
func (r EntityRef) Validate() error {
	if r.Type == "" {
		return ErrMissingEntityType
	}

	if r.ID == "" {
		return ErrMissingEntityID
	}

	return nil
}

// ActorRef identifies who made a change. It is a union: either a structured
// reference (Type + ID) or a bare display Name is set, never both. Use
// SetRef/SetName to preserve the invariant.
type ActorRef struct {
	Type string `json:"type,omitempty"`
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

// SetRef assigns the structured form and clears the display form.
func (a *ActorRef) SetRef(actorType, actorID string) {
	a.Type = actorType
	a.ID = actorID
	a.Name = ""
}

// SetName assigns the display form and clears the structured form.
func (a *ActorRef) SetName(name string) {
	a.Type = ""
	a.ID = ""
	a.Name = name
}

// IsZero reports whether no actor is set at all.
func (a ActorRef) IsZero() bool {
	return a.Type == "" && a.ID == "" && a.Name == ""
}

// NewActorRef returns the structured form of an actor reference.
func NewActorRef(actorType, actorID string) ActorRef {
	var a ActorRef
	a.SetRef(actorType, actorID)

	return a
}

// NewActorName returns the display-string form of an actor reference.
func NewActorName(name string) ActorRef {
	var a ActorRef
	a.SetName(name)

	return a
}

// Attribution is the actor and change-group snapshot stamped onto an audit
// record at creation time. Nil fields mean "unattributed".
type Attribution struct {
	Actor        *ActorRef
	GroupTag     *string
	GroupComment *string
}

// AuditRecord is one immutable, versioned diff captured for an entity change.
// Records are insert-only; version is unique and ascending within the
// (Auditable.Type, Auditable.ID) partition, starting at 1.
type AuditRecord struct {
	ID           int64       `json:"id"`
	Auditable    EntityRef   `json:"auditable"`
	Actor        *ActorRef   `json:"actor,omitempty"`
	Action       Action      `json:"action"`
	Version      int         `json:"version"`
	Diff         DiffPayload `json:"diff"`
	GroupTag     *string     `json:"group_tag,omitempty"`
	GroupComment *string     `json:"group_comment,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
}

// Validate checks the invariants a record must satisfy before insertion.
func (r *AuditRecord) Validate() error {
	if err := r.Auditable.Validate(); err != nil {
		return err
	}

	if !r.Action.Valid() {
		return ErrInvalidAction
	}

	if (r.GroupTag == nil) != (r.GroupComment == nil) {
		return ErrPartialGroup
	}

	return nil
}

// Stamp applies an attribution snapshot to the record. Fields already set by
// the caller win over the ambient context.
func (r *AuditRecord) Stamp(at Attribution) {
	if r.Actor == nil && at.Actor != nil {
		actor := *at.Actor
		r.Actor = &actor
	}

	if r.GroupTag == nil && at.GroupTag != nil {
		tag := *at.GroupTag

		var comment string
		if at.GroupComment != nil {
			comment = *at.GroupComment
		}

		r.GroupTag = &tag
		r.GroupComment = &comment
	}
}

// AuditQueryOpts holds filters for querying audit records.
type AuditQueryOpts struct {
	EntityType string
	EntityID   string
	Action     string
	ActorID    string
	GroupTag   string
	Since      *time.Time
	Limit      int
	Offset     int
}

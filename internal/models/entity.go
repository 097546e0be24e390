package models

import (
	"encoding/json"
	"time"
)

// versionAttribute is the reserved attribute name a revision builder uses to
// overlay the target version onto a materialized instance.
const versionAttribute = "version"

// Entity is the generic map-backed tracked entity stored in the
// tracked_entities table. Types that need richer behavior implement the
// registry's Auditable capability themselves.
type Entity struct {
	Type       string                     `json:"type"`
	ID         string                     `json:"id"`
	Attributes map[string]json.RawMessage `json:"attributes"`
	Version    int                        `json:"version"`
	CreatedAt  time.Time                  `json:"created_at,omitzero"`
	UpdatedAt  time.Time                  `json:"updated_at,omitzero"`
}

// NewEntity returns an empty, unsaved entity of the given type.
func NewEntity(entityType string) *Entity {
	return &Entity{
		Type:       entityType,
		Attributes: make(map[string]json.RawMessage),
	}
}

// AuditableRef returns the weak reference identifying this entity.
func (e *Entity) AuditableRef() EntityRef {
	return EntityRef{Type: e.Type, ID: e.ID}
}

// ApplyAttribute sets a reconstructed attribute on the entity. The reserved
// "version" attribute is mapped onto the Version field; everything else lands
// in the attribute map. The map-backed entity accepts any attribute, so this
// never reports false.
func (e *Entity) ApplyAttribute(name string, value json.RawMessage) bool {
	if name == versionAttribute {
		var v int
		if err := json.Unmarshal(value, &v); err == nil {
			e.Version = v

			return true
		}
	}

	if e.Attributes == nil {
		e.Attributes = make(map[string]json.RawMessage)
	}

	e.Attributes[name] = value

	return true
}

// CreateEntityRequest is the API payload for creating a tracked entity.
type CreateEntityRequest struct {
	ID         string                     `json:"id"`
	Attributes map[string]json.RawMessage `json:"attributes"`
}

// Validate checks required fields and length limits.
func (r CreateEntityRequest) Validate() error {
	if r.ID == "" {
		return ErrMissingEntityID
	}

	if len(r.ID) > maxIDLen {
		return ErrFieldTooLong("id", maxIDLen)
	}

	return nil
}

// UpdateEntityRequest is the API payload for replacing a tracked entity's
// attributes.
type UpdateEntityRequest struct {
	Attributes map[string]json.RawMessage `json:"attributes"`
}

// maxIDLen bounds entity and type identifiers.
const maxIDLen = 255

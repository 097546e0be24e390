package client

import (
	"encoding/json"
	"time"
)

// EntityRef identifies an audited entity by type and id.
type EntityRef struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// ActorRef identifies who made a change: either Type+ID or a bare Name.
type ActorRef struct {
	Type string `json:"type,omitempty"`
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

// Change is one field-level change: create records carry only New, delete
// records only Old, updates both.
type Change struct {
	Old *json.RawMessage `json:"old,omitempty"`
	New *json.RawMessage `json:"new,omitempty"`
}

// DiffPayload maps field names to their changes.
type DiffPayload map[string]Change

// AuditRecord is one immutable versioned diff in an entity's history.
type AuditRecord struct {
	ID           int64       `json:"id"`
	Auditable    EntityRef   `json:"auditable"`
	Actor        *ActorRef   `json:"actor,omitempty"`
	Action       string      `json:"action"`
	Version      int         `json:"version"`
	Diff         DiffPayload `json:"diff"`
	GroupTag     *string     `json:"group_tag,omitempty"`
	GroupComment *string     `json:"group_comment,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
}

// Entity is a generic tracked entity.
type Entity struct {
	Type       string                     `json:"type"`
	ID         string                     `json:"id"`
	Attributes map[string]json.RawMessage `json:"attributes"`
	Version    int                        `json:"version"`
	CreatedAt  time.Time                  `json:"created_at"`
	UpdatedAt  time.Time                  `json:"updated_at"`
}

// Snapshot is a materialized point-in-time view of an entity.
type Snapshot struct {
	Entity  Entity `json:"entity"`
	Version int    `json:"version"`
	Deleted bool   `json:"deleted"`
}

// AuditQueryOptions filters an audit record query.
type AuditQueryOptions struct {
	EntityType string
	EntityID   string
	Action     string
	ActorID    string
	GroupTag   string
	Since      *time.Time
	Limit      int
	Offset     int
}

// CreateAuditRequest records a change observed outside the server's own
// entity store. The version is assigned server-side.
type CreateAuditRequest struct {
	Auditable EntityRef   `json:"auditable"`
	Actor     *ActorRef   `json:"actor,omitempty"`
	Action    string      `json:"action"`
	Diff      DiffPayload `json:"diff"`
}

// CreateEntityRequest creates a tracked entity.
type CreateEntityRequest struct {
	ID         string                     `json:"id"`
	Attributes map[string]json.RawMessage `json:"attributes,omitempty"`
}

// UpdateEntityRequest replaces a tracked entity's attributes.
type UpdateEntityRequest struct {
	Attributes map[string]json.RawMessage `json:"attributes"`
}

// EntityChange is an entity mutation response: the entity plus the audit
// record the change produced (nil for a no-op update).
type EntityChange struct {
	Entity *Entity      `json:"entity"`
	Audit  *AuditRecord `json:"audit"`
}

// HealthResponse is the liveness check payload.
type HealthResponse struct {
	Status        string  `json:"status"`
	Version       string  `json:"version"`
	Database      string  `json:"database"`
	Subscribers   int     `json:"subscribers"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// Package domain defines the canonical service interfaces shared across the
// API layer, the service layer, and tests. Consumers should depend on these
// interfaces rather than re-declaring equivalent ones.
package domain

import (
	"context"
	"encoding/json"

	"github.com/retracehq/retrace/internal/models"
	"github.com/retracehq/retrace/internal/registry"
)

// Snapshot is a materialized point-in-time view of an entity. Entity is never
// nil: it is either the live instance repopulated with historical attributes
// or a fresh unsaved instance when no live row exists. Deleted reports
// whether the last folded record was a delete.
type Snapshot struct {
	Entity  registry.Auditable `json:"entity"`
	Version int                `json:"version"`
	Deleted bool               `json:"deleted"`
}

// AuditService defines audit record creation, query, and maintenance.
type AuditService interface {
	CreateAudit(ctx context.Context, ref models.EntityRef, actor *models.ActorRef, action models.Action, diff models.DiffPayload) (*models.AuditRecord, error)
	Ancestors(ctx context.Context, entityType, entityID string, uptoVersion int) ([]models.AuditRecord, error)
	MaxVersion(ctx context.Context, entityType, entityID string) (int, error)
	Query(ctx context.Context, opts models.AuditQueryOpts) ([]models.AuditRecord, bool, error)
	PurgeOldRecords(ctx context.Context, retentionDays int) (int, error)
}

// RevisionService defines point-in-time reconstruction.
type RevisionService interface {
	Materialize(ctx context.Context, entityType, entityID string, targetVersion int) (*Snapshot, error)
}

// EntityService defines audited CRUD on tracked entities.
type EntityService interface {
	Get(ctx context.Context, entityType, entityID string) (*models.Entity, error)
	Create(ctx context.Context, entityType string, req models.CreateEntityRequest) (*models.Entity, *models.AuditRecord, error)
	Update(ctx context.Context, entityType, entityID string, attrs map[string]json.RawMessage) (*models.Entity, *models.AuditRecord, error)
	Delete(ctx context.Context, entityType, entityID string) (*models.AuditRecord, error)
}

// TypeRegistry is the read side of the audited-type registry.
type TypeRegistry interface {
	Lookup(name string) (registry.Config, error)
	Types() []string
}

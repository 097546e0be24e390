package service

import (
	"context"
	"encoding/json"

	"github.com/sirupsen/logrus"

	"github.com/retracehq/retrace/internal/attribution"
	"github.com/retracehq/retrace/internal/models"
)

// TrackedEntityStore is the data-access interface EntityService depends on.
// Mutations receive the resolved attribution snapshot so the store can stamp
// the audit record it appends within the entity transaction.
type TrackedEntityStore interface {
	Get(ctx context.Context, entityType, entityID string) (*models.Entity, error)
	Create(ctx context.Context, entity *models.Entity, at models.Attribution) (*models.AuditRecord, error)
	Update(ctx context.Context, entityType, entityID string, attrs map[string]json.RawMessage, at models.Attribution) (*models.AuditRecord, error)
	Delete(ctx context.Context, entityType, entityID string, at models.Attribution) (*models.AuditRecord, error)
}

// EntityService wraps TrackedEntityStore with attribution resolution and
// audit event publishing.
type EntityService struct {
	store     TrackedEntityStore
	publisher Publisher
	log       *logrus.Logger
}

// NewEntityService creates an EntityService.
func NewEntityService(store TrackedEntityStore, publisher Publisher, log *logrus.Logger) *EntityService {
	return &EntityService{store: store, publisher: publisher, log: log}
}

// Get returns a tracked entity (pass-through).
func (s *EntityService) Get(ctx context.Context, entityType, entityID string) (*models.Entity, error) {
	return s.store.Get(ctx, entityType, entityID)
}

// Create persists a new tracked entity; the attribution context is consulted
// at record-creation time.
func (s *EntityService) Create(ctx context.Context, entityType string, req models.CreateEntityRequest) (*models.Entity, *models.AuditRecord, error) {
	if err := req.Validate(); err != nil {
		return nil, nil, err
	}

	entity := models.NewEntity(entityType)
	entity.ID = req.ID
	if req.Attributes != nil {
		entity.Attributes = req.Attributes
	}

	rec, err := s.store.Create(ctx, entity, attribution.Resolve(ctx))
	if err != nil {
		return nil, nil, err
	}

	// A recreated entity continues its audit partition, so the assigned
	// version may be greater than 1.
	entity.Version = rec.Version

	s.logChange(rec)
	publishAsync(s.publisher, rec)

	return entity, rec, nil
}

// Update replaces a tracked entity's attributes. A no-op update returns the
// current entity and a nil record.
func (s *EntityService) Update(ctx context.Context, entityType, entityID string, attrs map[string]json.RawMessage) (*models.Entity, *models.AuditRecord, error) {
	rec, err := s.store.Update(ctx, entityType, entityID, attrs, attribution.Resolve(ctx))
	if err != nil {
		return nil, nil, err
	}

	entity, err := s.store.Get(ctx, entityType, entityID)
	if err != nil {
		return nil, nil, err
	}

	if rec != nil {
		s.logChange(rec)
		publishAsync(s.publisher, rec)
	}

	return entity, rec, nil
}

// Delete removes a tracked entity, capturing its final state in the audit
// chain.
func (s *EntityService) Delete(ctx context.Context, entityType, entityID string) (*models.AuditRecord, error) {
	rec, err := s.store.Delete(ctx, entityType, entityID, attribution.Resolve(ctx))
	if err != nil {
		return nil, err
	}

	s.logChange(rec)
	publishAsync(s.publisher, rec)

	return rec, nil
}

func (s *EntityService) logChange(rec *models.AuditRecord) {
	s.log.WithFields(logrus.Fields{
		"entity_type": rec.Auditable.Type,
		"entity_id":   rec.Auditable.ID,
		"action":      rec.Action,
		"version":     rec.Version,
	}).Info("entity.change")
}

// Package service provides the business logic of the retrace engine between
// API handlers and data stores.
package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/retracehq/retrace/internal/attribution"
	"github.com/retracehq/retrace/internal/models"
)

// AuditRecordStore is the data-access interface AuditService depends on.
type AuditRecordStore interface {
	Append(ctx context.Context, rec *models.AuditRecord) error
	MaxVersion(ctx context.Context, entityType, entityID string) (int, error)
	Ancestors(ctx context.Context, entityType, entityID string, uptoVersion int) ([]models.AuditRecord, error)
	Query(ctx context.Context, opts models.AuditQueryOpts) ([]models.AuditRecord, bool, error)
	PurgeOldRecords(ctx context.Context, retentionDays int) (int, error)
}

// Publisher fans audit-created events out to subscribers. Nil-safe via the
// publishAsync helper.
type Publisher interface {
	Enqueue(rec *models.AuditRecord)
}

// AuditService creates and queries audit records. Creation consults the
// Attribution Context exactly once, stamping the current actor and
// change-group onto the record before it is sequenced and inserted.
type AuditService struct {
	store     AuditRecordStore
	publisher Publisher
	log       *logrus.Logger
}

// NewAuditService creates an AuditService.
func NewAuditService(store AuditRecordStore, publisher Publisher, log *logrus.Logger) *AuditService {
	return &AuditService{store: store, publisher: publisher, log: log}
}

// CreateAudit records one change. The actor argument wins over the ambient
// Attribution Context; pass nil to inherit the context's actor. The record's
// version is assigned by the store's sequencer. Intended for entity
// frameworks hooking their own save paths into the engine; the in-repo
// tracked-entity store appends within its own transaction instead.
func (s *AuditService) CreateAudit(
	ctx context.Context, ref models.EntityRef, actor *models.ActorRef, action models.Action, diff models.DiffPayload,
) (*models.AuditRecord, error) {
	rec := &models.AuditRecord{
		Auditable: ref,
		Actor:     actor,
		Action:    action,
		Diff:      diff,
	}
	rec.Stamp(attribution.Resolve(ctx))

	if err := s.store.Append(ctx, rec); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"entity_type": ref.Type,
		"entity_id":   ref.ID,
		"action":      action,
		"version":     rec.Version,
	}).Debug("audit.create")

	publishAsync(s.publisher, rec)

	return rec, nil
}

// Ancestors returns an entity's audit chain up to a version (pass-through).
func (s *AuditService) Ancestors(ctx context.Context, entityType, entityID string, uptoVersion int) ([]models.AuditRecord, error) {
	return s.store.Ancestors(ctx, entityType, entityID, uptoVersion)
}

// MaxVersion returns an entity's latest version, 0 if unrecorded (pass-through).
func (s *AuditService) MaxVersion(ctx context.Context, entityType, entityID string) (int, error) {
	return s.store.MaxVersion(ctx, entityType, entityID)
}

// Query returns audit records matching the given filters (pass-through).
func (s *AuditService) Query(ctx context.Context, opts models.AuditQueryOpts) ([]models.AuditRecord, bool, error) {
	return s.store.Query(ctx, opts)
}

// PurgeOldRecords deletes audit records older than retentionDays and logs the result.
func (s *AuditService) PurgeOldRecords(ctx context.Context, retentionDays int) (int, error) {
	deleted, err := s.store.PurgeOldRecords(ctx, retentionDays)
	if err != nil {
		return 0, err
	}

	s.log.WithFields(logrus.Fields{
		"retention_days": retentionDays,
		"deleted":        deleted,
	}).Info("audit.purge")

	return deleted, nil
}

// publishAsync enqueues an audit-created event when a publisher is wired.
func publishAsync(p Publisher, rec *models.AuditRecord) {
	if p != nil && rec != nil {
		p.Enqueue(rec)
	}
}

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/retracehq/retrace/internal/metrics"
	"github.com/retracehq/retrace/internal/models"
)

// EntityStore owns the tracked_entities table. Its save path is the audit
// lifecycle hook: every create, update, and delete computes the field-level
// diff and appends the audit record inside the same transaction, so an entity
// change and its audit record commit or fail together.
type EntityStore struct {
	Base
}

// NewEntityStore creates an EntityStore.
func NewEntityStore(base Base) *EntityStore {
	return &EntityStore{Base: base}
}

// Get returns a tracked entity, or models.ErrEntityNotFound.
func (s *EntityStore) Get(ctx context.Context, entityType, entityID string) (*models.Entity, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	return fetchEntity(ctx, s.Pool, entityType, entityID)
}

// querier is the subset of pool/tx query methods fetchEntity needs.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// fetchEntity loads one tracked entity via the pool or an open transaction.
func fetchEntity(ctx context.Context, q querier, entityType, entityID string) (*models.Entity, error) {
	e := models.Entity{Type: entityType, ID: entityID}

	var attrsJSON []byte

	err := q.QueryRow(ctx,
		`SELECT attributes, version, created_at, updated_at
		 FROM tracked_entities WHERE entity_type = $1 AND entity_id = $2`,
		entityType, entityID,
	).Scan(&attrsJSON, &e.Version, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrEntityNotFound
		}

		return nil, fmt.Errorf("fetching entity: %w", err)
	}

	if err := json.Unmarshal(attrsJSON, &e.Attributes); err != nil {
		return nil, fmt.Errorf("unmarshaling entity attributes: %w", err)
	}

	return &e, nil
}

// Create inserts a tracked entity and its create audit record in one
// transaction. The attribution snapshot is stamped by the service layer.
func (s *EntityStore) Create(ctx context.Context, entity *models.Entity, at models.Attribution) (*models.AuditRecord, error) {
	return s.audited(ctx, entity.Type, entity.ID, models.ActionCreate, at, func(ctx context.Context, tx pgx.Tx) (models.DiffPayload, error) {
		attrsJSON, err := json.Marshal(entity.Attributes)
		if err != nil {
			return nil, fmt.Errorf("marshaling entity attributes: %w", err)
		}

		// The version here is a placeholder; auditedOnce syncs the row to the
		// sequencer-assigned version before commit. A recreated entity
		// continues its audit partition at max+1, not back at 1.
		err = tx.QueryRow(ctx,
			`INSERT INTO tracked_entities (entity_type, entity_id, attributes, version)
			 VALUES ($1, $2, $3, 1)
			 RETURNING created_at, updated_at`,
			entity.Type, entity.ID, attrsJSON,
		).Scan(&entity.CreatedAt, &entity.UpdatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				// The entity row itself already exists; not a version race.
				return nil, models.ErrDuplicateKey
			}

			return nil, fmt.Errorf("inserting entity: %w", err)
		}

		return models.CreatePayload(entity.Attributes), nil
	})
}

// Update replaces a tracked entity's attributes, recording only the fields
// that actually changed. A no-op update (identical attributes) writes no
// audit record and returns nil.
func (s *EntityStore) Update(ctx context.Context, entityType, entityID string, attrs map[string]json.RawMessage, at models.Attribution) (*models.AuditRecord, error) {
	return s.audited(ctx, entityType, entityID, models.ActionUpdate, at, func(ctx context.Context, tx pgx.Tx) (models.DiffPayload, error) {
		current, err := fetchEntity(ctx, tx, entityType, entityID)
		if err != nil {
			return nil, err
		}

		diff := models.DiffAttributes(current.Attributes, attrs)
		if len(diff) == 0 {
			return nil, nil
		}

		attrsJSON, err := json.Marshal(attrs)
		if err != nil {
			return nil, fmt.Errorf("marshaling entity attributes: %w", err)
		}

		// Row version is synced to the appended record's version in
		// auditedOnce, keeping it in lockstep with the audit chain.
		_, err = tx.Exec(ctx,
			`UPDATE tracked_entities
			 SET attributes = $3, updated_at = NOW()
			 WHERE entity_type = $1 AND entity_id = $2`,
			entityType, entityID, attrsJSON,
		)
		if err != nil {
			return nil, fmt.Errorf("updating entity: %w", err)
		}

		return diff, nil
	})
}

// Delete removes a tracked entity, capturing its final attributes as an
// old-only delete payload.
func (s *EntityStore) Delete(ctx context.Context, entityType, entityID string, at models.Attribution) (*models.AuditRecord, error) {
	return s.audited(ctx, entityType, entityID, models.ActionDelete, at, func(ctx context.Context, tx pgx.Tx) (models.DiffPayload, error) {
		current, err := fetchEntity(ctx, tx, entityType, entityID)
		if err != nil {
			return nil, err
		}

		_, err = tx.Exec(ctx,
			`DELETE FROM tracked_entities WHERE entity_type = $1 AND entity_id = $2`,
			entityType, entityID,
		)
		if err != nil {
			return nil, fmt.Errorf("deleting entity: %w", err)
		}

		return models.DeletePayload(current.Attributes), nil
	})
}

// audited runs one entity mutation plus its audit append in a single
// transaction, retrying the whole transaction when concurrent writers race
// on version assignment. mutate returns the diff payload to record, or nil
// to skip the audit record (no-op change).
func (s *EntityStore) audited(
	ctx context.Context,
	entityType, entityID string,
	action models.Action,
	at models.Attribution,
	mutate func(ctx context.Context, tx pgx.Tx) (models.DiffPayload, error),
) (*models.AuditRecord, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	for attempt := 0; attempt < maxVersionRetries; attempt++ {
		rec, err := s.auditedOnce(ctx, entityType, entityID, action, at, mutate)
		if err == nil {
			if rec != nil {
				metrics.AuditRecordsTotal.WithLabelValues(string(action), entityType).Inc()
			}

			return rec, nil
		}

		if !isUniqueViolation(err) {
			return nil, err
		}

		metrics.VersionConflictsTotal.Inc()
		s.Log.WithFields(logrus.Fields{
			"entity_type": entityType,
			"entity_id":   entityID,
			"action":      action,
			"attempt":     attempt + 1,
		}).Warn("version conflict, retrying entity transaction")
	}

	return nil, models.ErrVersionConflict
}

// auditedOnce performs one attempt of the mutate-then-append transaction.
func (s *EntityStore) auditedOnce(
	ctx context.Context,
	entityType, entityID string,
	action models.Action,
	at models.Attribution,
	mutate func(ctx context.Context, tx pgx.Tx) (models.DiffPayload, error),
) (*models.AuditRecord, error) {
	tx, err := s.beginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback on early return.

	diff, err := mutate(ctx, tx)
	if err != nil {
		return nil, err
	}

	if diff == nil {
		return nil, tx.Commit(ctx)
	}

	rec := &models.AuditRecord{
		Auditable: models.EntityRef{Type: entityType, ID: entityID},
		Action:    action,
		Diff:      diff,
	}
	rec.Stamp(at)

	if err := AppendTx(ctx, tx, rec); err != nil {
		return nil, err
	}

	// The live row reports the version the sequencer assigned, so the row and
	// the audit chain cannot disagree, even when external records were
	// appended to the partition between CRUD calls.
	if action != models.ActionDelete {
		if _, err := tx.Exec(ctx,
			`UPDATE tracked_entities SET version = $3
			 WHERE entity_type = $1 AND entity_id = $2`,
			entityType, entityID, rec.Version,
		); err != nil {
			return nil, fmt.Errorf("syncing entity version: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return rec, nil
}

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/retracehq/retrace/internal/metrics"
	"github.com/retracehq/retrace/internal/models"
)

// AuditStore provides data access for the audit_records table. Records are
// insert-only; nothing here updates or deletes individual records (the
// retention purge is the single sanctioned deletion path).
type AuditStore struct {
	Base
}

// NewAuditStore creates an AuditStore.
func NewAuditStore(base Base) *AuditStore {
	return &AuditStore{Base: base}
}

// Append assigns the next version for the record's entity partition and
// inserts it, in one transaction. A concurrent writer racing between the
// max-read and the insert trips the unique constraint; the whole transaction
// is retried with a fresh max-read, bounded by maxVersionRetries.
func (s *AuditStore) Append(ctx context.Context, rec *models.AuditRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	for attempt := 0; attempt < maxVersionRetries; attempt++ {
		err := s.tryAppend(ctx, rec)
		if err == nil {
			metrics.AuditRecordsTotal.WithLabelValues(string(rec.Action), rec.Auditable.Type).Inc()

			return nil
		}

		if !isUniqueViolation(err) {
			return err
		}

		metrics.VersionConflictsTotal.Inc()
		s.Log.WithFields(logrus.Fields{
			"entity_type": rec.Auditable.Type,
			"entity_id":   rec.Auditable.ID,
			"version":     rec.Version,
			"attempt":     attempt + 1,
		}).Warn("version conflict, retrying with fresh max-read")
	}

	return models.ErrVersionConflict
}

// tryAppend performs one read-increment-insert attempt in its own transaction.
func (s *AuditStore) tryAppend(ctx context.Context, rec *models.AuditRecord) error {
	tx, err := s.beginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback on early return.

	if err := AppendTx(ctx, tx, rec); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// AppendTx sequences and inserts an audit record within an existing
// transaction. Package-level so EntityStore can append within its own entity
// transaction; the caller owns commit, rollback, and conflict retries.
func AppendTx(ctx context.Context, tx pgx.Tx, rec *models.AuditRecord) error {
	var maxVersion int

	err := tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM audit_records
		 WHERE auditable_type = $1 AND auditable_id = $2`,
		rec.Auditable.Type, rec.Auditable.ID,
	).Scan(&maxVersion)
	if err != nil {
		return fmt.Errorf("reading max version: %w", err)
	}

	rec.Version = maxVersion + 1

	diffJSON, err := json.Marshal(rec.Diff)
	if err != nil {
		return fmt.Errorf("marshaling diff payload: %w", err)
	}

	var actorType, actorID, actorName *string
	if rec.Actor != nil {
		if rec.Actor.Name != "" {
			actorName = &rec.Actor.Name
		} else {
			actorType = &rec.Actor.Type
			actorID = &rec.Actor.ID
		}
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO audit_records
			(auditable_type, auditable_id, action, version, diff,
			 actor_type, actor_id, actor_name, group_tag, group_comment)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at`,
		rec.Auditable.Type, rec.Auditable.ID, string(rec.Action), rec.Version, diffJSON,
		actorType, actorID, actorName, rec.GroupTag, rec.GroupComment,
	).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting audit record: %w", err)
	}

	return nil
}

// MaxVersion returns the highest version recorded for an entity, or 0 when
// no records exist.
func (s *AuditStore) MaxVersion(ctx context.Context, entityType, entityID string) (int, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var maxVersion int

	err := s.Pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM audit_records
		 WHERE auditable_type = $1 AND auditable_id = $2`,
		entityType, entityID,
	).Scan(&maxVersion)
	if err != nil {
		return 0, fmt.Errorf("reading max version: %w", err)
	}

	return maxVersion, nil
}

// Ancestors returns all audit records for an entity with version <=
// uptoVersion, ascending by version. Unpaginated: the result is bounded by
// one entity's own change count.
func (s *AuditStore) Ancestors(ctx context.Context, entityType, entityID string, uptoVersion int) ([]models.AuditRecord, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := s.Pool.Query(ctx, `
		SELECT id, auditable_type, auditable_id, action, version, diff,
		       actor_type, actor_id, actor_name, group_tag, group_comment, created_at
		FROM audit_records
		WHERE auditable_type = $1 AND auditable_id = $2 AND version <= $3
		ORDER BY version ASC`,
		entityType, entityID, uptoVersion,
	)
	if err != nil {
		return nil, fmt.Errorf("querying ancestors: %w", err)
	}
	defer rows.Close()

	return scanAuditRows(rows)
}

// buildAuditFilter builds a WHERE clause and args from AuditQueryOpts.
func buildAuditFilter(opts models.AuditQueryOpts) (where string, args []any, nextArg int) {
	var conditions []string
	argIdx := 1

	add := func(cond string, val any) {
		conditions = append(conditions, cond+"$"+strconv.Itoa(argIdx))
		args = append(args, val)
		argIdx++
	}

	if opts.EntityType != "" {
		add("auditable_type = ", opts.EntityType)
	}
	if opts.EntityID != "" {
		add("auditable_id = ", opts.EntityID)
	}
	if opts.Action != "" {
		add("action = ", opts.Action)
	}
	if opts.ActorID != "" {
		add("actor_id = ", opts.ActorID)
	}
	if opts.GroupTag != "" {
		add("group_tag = ", opts.GroupTag)
	}
	if opts.Since != nil {
		add("created_at >= ", *opts.Since)
	}

	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	return where, args, argIdx
}

// Query returns audit records matching the given filters, newest first.
// Returns records, a has-more flag, and any error.
func (s *AuditStore) Query(ctx context.Context, opts models.AuditQueryOpts) ([]models.AuditRecord, bool, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	where, args, argIdx := buildAuditFilter(opts)

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	query := fmt.Sprintf(`
		SELECT id, auditable_type, auditable_id, action, version, diff,
		       actor_type, actor_id, actor_name, group_tag, group_comment, created_at
		FROM audit_records %s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d`,
		where, argIdx, argIdx+1,
	)
	args = append(args, limit+1, opts.Offset)

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("querying audit records: %w", err)
	}
	defer rows.Close()

	records, err := scanAuditRows(rows)
	if err != nil {
		return nil, false, err
	}

	hasMore := len(records) > limit
	if hasMore {
		records = records[:limit]
	}

	return records, hasMore, nil
}

// scanAuditRows scans audit records from a query result.
func scanAuditRows(rows pgx.Rows) ([]models.AuditRecord, error) {
	var records []models.AuditRecord

	for rows.Next() {
		var (
			rec       models.AuditRecord
			action    string
			diffJSON  []byte
			actorType *string
			actorID   *string
			actorName *string
		)

		if err := rows.Scan(
			&rec.ID, &rec.Auditable.Type, &rec.Auditable.ID, &action, &rec.Version, &diffJSON,
			&actorType, &actorID, &actorName, &rec.GroupTag, &rec.GroupComment, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning audit record: %w", err)
		}

		rec.Action = models.Action(action)

		switch {
		case actorName != nil:
			actor := models.NewActorName(*actorName)
			rec.Actor = &actor
		case actorID != nil:
			var actorTypeVal string
			if actorType != nil {
				actorTypeVal = *actorType
			}
			actor := models.NewActorRef(actorTypeVal, *actorID)
			rec.Actor = &actor
		}

		if diffJSON != nil {
			if err := json.Unmarshal(diffJSON, &rec.Diff); err != nil {
				return nil, fmt.Errorf("unmarshaling diff payload: %w", err)
			}
		}

		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit records: %w", err)
	}

	return records, nil
}

// purgeBatchSize limits the number of rows deleted per transaction to avoid
// holding long locks on audit_records.
const purgeBatchSize = 5000

// PurgeOldRecords deletes audit records older than retentionDays in batches.
// Returns the number of deleted records. This is the only deletion path for
// audit records.
func (s *AuditStore) PurgeOldRecords(ctx context.Context, retentionDays int) (int, error) {
	var totalDeleted int

	for {
		batchCtx, cancel := withTimeout(ctx)

		deleted, err := s.purgeBatch(batchCtx, retentionDays)
		cancel()

		if err != nil {
			return totalDeleted, err
		}

		totalDeleted += deleted
		if deleted < purgeBatchSize {
			break
		}
	}

	return totalDeleted, nil
}

// purgeBatch deletes a single batch of expired audit records.
func (s *AuditStore) purgeBatch(ctx context.Context, retentionDays int) (int, error) {
	tag, err := s.Pool.Exec(ctx,
		`DELETE FROM audit_records WHERE ctid IN (
			SELECT ctid FROM audit_records
			WHERE created_at < NOW() - make_interval(days => $1)
			LIMIT $2
		)`,
		retentionDays, purgeBatchSize,
	)
	if err != nil {
		return 0, fmt.Errorf("purging audit records: %w", err)
	}

	return int(tag.RowsAffected()), nil
}

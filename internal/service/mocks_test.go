package service

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/retracehq/retrace/internal/models"
)

func newTestLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)

	return log
}

// mockAuditRecordStore records calls and returns configured responses.
type mockAuditRecordStore struct {
	mu    sync.Mutex
	calls []string

	appendFn    func(ctx context.Context, rec *models.AuditRecord) error
	maxVersion  func(ctx context.Context, entityType, entityID string) (int, error)
	ancestors   func(ctx context.Context, entityType, entityID string, uptoVersion int) ([]models.AuditRecord, error)
	query       func(ctx context.Context, opts models.AuditQueryOpts) ([]models.AuditRecord, bool, error)
	purgeOldFn  func(ctx context.Context, retentionDays int) (int, error)
}

func (m *mockAuditRecordStore) record(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, name)
}

func (m *mockAuditRecordStore) Append(ctx context.Context, rec *models.AuditRecord) error {
	m.record("Append")
	return m.appendFn(ctx, rec)
}

func (m *mockAuditRecordStore) MaxVersion(ctx context.Context, entityType, entityID string) (int, error) {
	m.record("MaxVersion")
	return m.maxVersion(ctx, entityType, entityID)
}

func (m *mockAuditRecordStore) Ancestors(ctx context.Context, entityType, entityID string, uptoVersion int) ([]models.AuditRecord, error) {
	m.record("Ancestors")
	return m.ancestors(ctx, entityType, entityID, uptoVersion)
}

func (m *mockAuditRecordStore) Query(ctx context.Context, opts models.AuditQueryOpts) ([]models.AuditRecord, bool, error) {
	m.record("Query")
	return m.query(ctx, opts)
}

func (m *mockAuditRecordStore) PurgeOldRecords(ctx context.Context, retentionDays int) (int, error) {
	m.record("PurgeOldRecords")
	return m.purgeOldFn(ctx, retentionDays)
}

// mockTrackedEntityStore records calls and captures the attribution each
// mutation received.
type mockTrackedEntityStore struct {
	mu           sync.Mutex
	attributions []models.Attribution

	getFn    func(ctx context.Context, entityType, entityID string) (*models.Entity, error)
	createFn func(ctx context.Context, entity *models.Entity, at models.Attribution) (*models.AuditRecord, error)
	updateFn func(ctx context.Context, entityType, entityID string, attrs map[string]json.RawMessage, at models.Attribution) (*models.AuditRecord, error)
	deleteFn func(ctx context.Context, entityType, entityID string, at models.Attribution) (*models.AuditRecord, error)
}

func (m *mockTrackedEntityStore) recordAttribution(at models.Attribution) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attributions = append(m.attributions, at)
}

func (m *mockTrackedEntityStore) Get(ctx context.Context, entityType, entityID string) (*models.Entity, error) {
	return m.getFn(ctx, entityType, entityID)
}

func (m *mockTrackedEntityStore) Create(ctx context.Context, entity *models.Entity, at models.Attribution) (*models.AuditRecord, error) {
	m.recordAttribution(at)
	return m.createFn(ctx, entity, at)
}

func (m *mockTrackedEntityStore) Update(ctx context.Context, entityType, entityID string, attrs map[string]json.RawMessage, at models.Attribution) (*models.AuditRecord, error) {
	m.recordAttribution(at)
	return m.updateFn(ctx, entityType, entityID, attrs, at)
}

func (m *mockTrackedEntityStore) Delete(ctx context.Context, entityType, entityID string, at models.Attribution) (*models.AuditRecord, error) {
	m.recordAttribution(at)
	return m.deleteFn(ctx, entityType, entityID, at)
}

// mockAncestryStore serves a fixed chain.
type mockAncestryStore struct {
	ancestors func(ctx context.Context, entityType, entityID string, uptoVersion int) ([]models.AuditRecord, error)
}

func (m *mockAncestryStore) Ancestors(ctx context.Context, entityType, entityID string, uptoVersion int) ([]models.AuditRecord, error) {
	return m.ancestors(ctx, entityType, entityID, uptoVersion)
}

// mockPublisher captures enqueued records.
type mockPublisher struct {
	mu       sync.Mutex
	enqueued []*models.AuditRecord
}

func (m *mockPublisher) Enqueue(rec *models.AuditRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enqueued = append(m.enqueued, rec)
}

func (m *mockPublisher) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.enqueued)
}

// mockSink captures broadcast events.
type mockSink struct {
	mu     sync.Mutex
	events []json.RawMessage
}

func (m *mockSink) BroadcastEvent(_ string, data json.RawMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, data)
}

func (m *mockSink) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

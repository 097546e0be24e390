package api_test

import (
	"context"
	"encoding/json"

	"github.com/retracehq/retrace/internal/domain"
	"github.com/retracehq/retrace/internal/models"
	"github.com/retracehq/retrace/internal/registry"
)

// mockEntityService implements domain.EntityService for testing.
type mockEntityService struct {
	getFn    func(ctx context.Context, entityType, entityID string) (*models.Entity, error)
	createFn func(ctx context.Context, entityType string, req models.CreateEntityRequest) (*models.Entity, *models.AuditRecord, error)
	updateFn func(ctx context.Context, entityType, entityID string, attrs map[string]json.RawMessage) (*models.Entity, *models.AuditRecord, error)
	deleteFn func(ctx context.Context, entityType, entityID string) (*models.AuditRecord, error)
}

func (m *mockEntityService) Get(ctx context.Context, entityType, entityID string) (*models.Entity, error) {
	return m.getFn(ctx, entityType, entityID)
}

func (m *mockEntityService) Create(ctx context.Context, entityType string, req models.CreateEntityRequest) (*models.Entity, *models.AuditRecord, error) {
	return m.createFn(ctx, entityType, req)
}

func (m *mockEntityService) Update(ctx context.Context, entityType, entityID string, attrs map[string]json.RawMessage) (*models.Entity, *models.AuditRecord, error) {
	return m.updateFn(ctx, entityType, entityID, attrs)
}

func (m *mockEntityService) Delete(ctx context.Context, entityType, entityID string) (*models.AuditRecord, error) {
	return m.deleteFn(ctx, entityType, entityID)
}

// mockAuditService implements domain.AuditService for testing.
type mockAuditService struct {
	createFn     func(ctx context.Context, ref models.EntityRef, actor *models.ActorRef, action models.Action, diff models.DiffPayload) (*models.AuditRecord, error)
	ancestorsFn  func(ctx context.Context, entityType, entityID string, uptoVersion int) ([]models.AuditRecord, error)
	maxVersionFn func(ctx context.Context, entityType, entityID string) (int, error)
	queryFn      func(ctx context.Context, opts models.AuditQueryOpts) ([]models.AuditRecord, bool, error)
	purgeFn      func(ctx context.Context, retentionDays int) (int, error)
}

func (m *mockAuditService) CreateAudit(ctx context.Context, ref models.EntityRef, actor *models.ActorRef, action models.Action, diff models.DiffPayload) (*models.AuditRecord, error) {
	return m.createFn(ctx, ref, actor, action, diff)
}

func (m *mockAuditService) Ancestors(ctx context.Context, entityType, entityID string, uptoVersion int) ([]models.AuditRecord, error) {
	return m.ancestorsFn(ctx, entityType, entityID, uptoVersion)
}

func (m *mockAuditService) MaxVersion(ctx context.Context, entityType, entityID string) (int, error) {
	return m.maxVersionFn(ctx, entityType, entityID)
}

func (m *mockAuditService) Query(ctx context.Context, opts models.AuditQueryOpts) ([]models.AuditRecord, bool, error) {
	return m.queryFn(ctx, opts)
}

func (m *mockAuditService) PurgeOldRecords(ctx context.Context, retentionDays int) (int, error) {
	return m.purgeFn(ctx, retentionDays)
}

// mockRevisionService implements domain.RevisionService for testing.
type mockRevisionService struct {
	materializeFn func(ctx context.Context, entityType, entityID string, targetVersion int) (*domain.Snapshot, error)
}

func (m *mockRevisionService) Materialize(ctx context.Context, entityType, entityID string, targetVersion int) (*domain.Snapshot, error) {
	return m.materializeFn(ctx, entityType, entityID, targetVersion)
}

// testRegistry builds a registry with the given type names registered against
// trivial generic-entity factories.
func testRegistry(names ...string) *registry.Registry {
	reg := registry.New()
	for _, name := range names {
		typeName := name
		_ = reg.Register(typeName, registry.Config{
			New: func() registry.Auditable { return models.NewEntity(typeName) },
			Find: func(_ context.Context, _ string) (registry.Auditable, error) {
				return nil, models.ErrEntityNotFound
			},
		})
	}

	return reg
}

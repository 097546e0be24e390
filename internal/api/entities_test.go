package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/retracehq/retrace/internal/api"
	"github.com/retracehq/retrace/internal/models"
)

func TestEntityCreate_Valid(t *testing.T) {
	t.Parallel()

	svc := &mockEntityService{
		createFn: func(_ context.Context, entityType string, req models.CreateEntityRequest) (*models.Entity, *models.AuditRecord, error) {
			entity := models.NewEntity(entityType)
			entity.ID = req.ID
			entity.Attributes = req.Attributes
			entity.Version = 1

			return entity, &models.AuditRecord{
				Auditable: entity.AuditableRef(),
				Action:    models.ActionCreate,
				Version:   1,
			}, nil
		},
	}

	r := newTestRouter()
	h := api.NewEntityHandler(svc, testRegistry("widget"), testLogger())
	r.POST("/entities/:type", h.Create)

	w := doRequest(r, http.MethodPost, "/entities/widget", `{"id":"w-1","attributes":{"name":"a"}}`)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Entity models.Entity      `json:"entity"`
		Audit  models.AuditRecord `json:"audit"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if resp.Entity.ID != "w-1" || resp.Audit.Version != 1 {
		t.Errorf("got entity %q audit v%d, want w-1 v1", resp.Entity.ID, resp.Audit.Version)
	}
}

func TestEntityCreate_UnknownType(t *testing.T) {
	t.Parallel()

	r := newTestRouter()
	h := api.NewEntityHandler(&mockEntityService{}, testRegistry("widget"), testLogger())
	r.POST("/entities/:type", h.Create)

	w := doRequest(r, http.MethodPost, "/entities/gadget", `{"id":"g-1"}`)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", w.Code, w.Body.String())
	}
}

func TestEntityCreate_Duplicate(t *testing.T) {
	t.Parallel()

	svc := &mockEntityService{
		createFn: func(_ context.Context, _ string, _ models.CreateEntityRequest) (*models.Entity, *models.AuditRecord, error) {
			return nil, nil, models.ErrDuplicateKey
		},
	}

	r := newTestRouter()
	h := api.NewEntityHandler(svc, testRegistry("widget"), testLogger())
	r.POST("/entities/:type", h.Create)

	w := doRequest(r, http.MethodPost, "/entities/widget", `{"id":"w-1"}`)

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", w.Code, w.Body.String())
	}
}

func TestEntityGet_Found(t *testing.T) {
	t.Parallel()

	svc := &mockEntityService{
		getFn: func(_ context.Context, entityType, entityID string) (*models.Entity, error) {
			return &models.Entity{Type: entityType, ID: entityID, Version: 2}, nil
		},
	}

	r := newTestRouter()
	h := api.NewEntityHandler(svc, testRegistry("widget"), testLogger())
	r.GET("/entities/:type/:id", h.Get)

	w := doRequest(r, http.MethodGet, "/entities/widget/w-1", "")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var entity models.Entity
	if err := json.Unmarshal(w.Body.Bytes(), &entity); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if entity.ID != "w-1" || entity.Version != 2 {
		t.Errorf("got %q v%d, want w-1 v2", entity.ID, entity.Version)
	}
}

func TestEntityGet_NotFound(t *testing.T) {
	t.Parallel()

	svc := &mockEntityService{
		getFn: func(_ context.Context, _, _ string) (*models.Entity, error) {
			return nil, models.ErrEntityNotFound
		},
	}

	r := newTestRouter()
	h := api.NewEntityHandler(svc, testRegistry("widget"), testLogger())
	r.GET("/entities/:type/:id", h.Get)

	w := doRequest(r, http.MethodGet, "/entities/widget/missing", "")

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", w.Code, w.Body.String())
	}
}

func TestEntityUpdate_VersionConflict(t *testing.T) {
	t.Parallel()

	svc := &mockEntityService{
		updateFn: func(_ context.Context, _, _ string, _ map[string]json.RawMessage) (*models.Entity, *models.AuditRecord, error) {
			return nil, nil, models.ErrVersionConflict
		},
	}

	r := newTestRouter()
	h := api.NewEntityHandler(svc, testRegistry("widget"), testLogger())
	r.PUT("/entities/:type/:id", h.Update)

	w := doRequest(r, http.MethodPut, "/entities/widget/w-1", `{"attributes":{"name":"b"}}`)

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", w.Code, w.Body.String())
	}
}

func TestEntityDelete(t *testing.T) {
	t.Parallel()

	svc := &mockEntityService{
		deleteFn: func(_ context.Context, entityType, entityID string) (*models.AuditRecord, error) {
			return &models.AuditRecord{
				Auditable: models.EntityRef{Type: entityType, ID: entityID},
				Action:    models.ActionDelete,
				Version:   3,
			}, nil
		},
	}

	r := newTestRouter()
	h := api.NewEntityHandler(svc, testRegistry("widget"), testLogger())
	r.DELETE("/entities/:type/:id", h.Delete)

	w := doRequest(r, http.MethodDelete, "/entities/widget/w-1", "")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Audit models.AuditRecord `json:"audit"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if resp.Audit.Action != models.ActionDelete || resp.Audit.Version != 3 {
		t.Errorf("got %s v%d, want delete v3", resp.Audit.Action, resp.Audit.Version)
	}
}

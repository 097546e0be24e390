package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/retracehq/retrace/internal/api"
	"github.com/retracehq/retrace/internal/models"
)

func TestAuditCreate_Valid(t *testing.T) {
	t.Parallel()

	svc := &mockAuditService{
		createFn: func(_ context.Context, ref models.EntityRef, actor *models.ActorRef, action models.Action, diff models.DiffPayload) (*models.AuditRecord, error) {
			return &models.AuditRecord{
				Auditable: ref,
				Actor:     actor,
				Action:    action,
				Version:   1,
				Diff:      diff,
			}, nil
		},
	}

	r := newTestRouter()
	h := api.NewAuditHandler(svc, testLogger())
	r.POST("/audits", h.Create)

	body := `{"auditable":{"type":"order","id":"o-1"},"action":"create","diff":{"status":{"new":"open"}}}`
	w := doRequest(r, http.MethodPost, "/audits", body)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var rec models.AuditRecord
	if err := json.Unmarshal(w.Body.Bytes(), &rec); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if rec.Auditable.Type != "order" || rec.Version != 1 {
		t.Errorf("got %s v%d, want order v1", rec.Auditable.Type, rec.Version)
	}

	change, ok := rec.Diff["status"]
	if !ok || change.New == nil || string(*change.New) != `"open"` {
		t.Errorf("diff status = %+v, want new \"open\"", change)
	}
}

func TestAuditCreate_Invalid(t *testing.T) {
	t.Parallel()

	svc := &mockAuditService{
		createFn: func(_ context.Context, ref models.EntityRef, _ *models.ActorRef, action models.Action, _ models.DiffPayload) (*models.AuditRecord, error) {
			rec := &models.AuditRecord{Auditable: ref, Action: action}
			if err := rec.Validate(); err != nil {
				return nil, err
			}

			return rec, nil
		},
	}

	tests := []struct {
		name string
		body string
	}{
		{"missing entity type", `{"auditable":{"id":"o-1"},"action":"create"}`},
		{"missing entity id", `{"auditable":{"type":"order"},"action":"create"}`},
		{"bad action", `{"auditable":{"type":"order","id":"o-1"},"action":"rename"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter()
			h := api.NewAuditHandler(svc, testLogger())
			r.POST("/audits", h.Create)

			w := doRequest(r, http.MethodPost, "/audits", tt.body)

			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
			}
		})
	}
}

func TestAuditQuery(t *testing.T) {
	t.Parallel()

	var gotOpts models.AuditQueryOpts

	svc := &mockAuditService{
		queryFn: func(_ context.Context, opts models.AuditQueryOpts) ([]models.AuditRecord, bool, error) {
			gotOpts = opts

			return []models.AuditRecord{
				{Auditable: models.EntityRef{Type: "widget", ID: "w-1"}, Action: models.ActionUpdate, Version: 2},
			}, true, nil
		},
	}

	r := newTestRouter()
	h := api.NewAuditHandler(svc, testLogger())
	r.GET("/audits", h.Query)

	w := doRequest(r, http.MethodGet, "/audits?entity_type=widget&action=update&group_tag=import&limit=10", "")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	if gotOpts.EntityType != "widget" || gotOpts.Action != "update" || gotOpts.GroupTag != "import" || gotOpts.Limit != 10 {
		t.Errorf("opts = %+v, want widget/update/import/10", gotOpts)
	}

	var resp struct {
		Data    []models.AuditRecord `json:"data"`
		HasMore bool                 `json:"has_more"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if len(resp.Data) != 1 || !resp.HasMore {
		t.Errorf("got %d records has_more=%v, want 1/true", len(resp.Data), resp.HasMore)
	}
}

func TestAuditQuery_BadSince(t *testing.T) {
	t.Parallel()

	r := newTestRouter()
	h := api.NewAuditHandler(&mockAuditService{}, testLogger())
	r.GET("/audits", h.Query)

	w := doRequest(r, http.MethodGet, "/audits?since=yesterday", "")

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestAuditHistory(t *testing.T) {
	t.Parallel()

	svc := &mockAuditService{
		maxVersionFn: func(_ context.Context, _, _ string) (int, error) {
			return 3, nil
		},
		ancestorsFn: func(_ context.Context, _, _ string, uptoVersion int) ([]models.AuditRecord, error) {
			records := make([]models.AuditRecord, 0, uptoVersion)
			for v := 1; v <= uptoVersion; v++ {
				records = append(records, models.AuditRecord{
					Auditable: models.EntityRef{Type: "widget", ID: "w-1"},
					Version:   v,
				})
			}

			return records, nil
		},
	}

	r := newTestRouter()
	h := api.NewAuditHandler(svc, testLogger())
	r.GET("/entities/:type/:id/history", h.History)

	w := doRequest(r, http.MethodGet, "/entities/widget/w-1/history", "")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Data          []models.AuditRecord `json:"data"`
		LatestVersion int                  `json:"latest_version"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if len(resp.Data) != 3 || resp.LatestVersion != 3 {
		t.Errorf("got %d records latest=%d, want 3/3", len(resp.Data), resp.LatestVersion)
	}
}

func TestAuditPurge(t *testing.T) {
	t.Parallel()

	svc := &mockAuditService{
		purgeFn: func(_ context.Context, retentionDays int) (int, error) {
			if retentionDays != 30 {
				t.Errorf("retentionDays = %d, want 30", retentionDays)
			}

			return 7, nil
		},
	}

	r := newTestRouter()
	h := api.NewAuditHandler(svc, testLogger())
	r.DELETE("/audits", h.Purge)

	w := doRequest(r, http.MethodDelete, "/audits?retention_days=30", "")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestAuditPurge_BadRetention(t *testing.T) {
	t.Parallel()

	r := newTestRouter()
	h := api.NewAuditHandler(&mockAuditService{}, testLogger())
	r.DELETE("/audits", h.Purge)

	w := doRequest(r, http.MethodDelete, "/audits?retention_days=0", "")

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

package client

import (
	"context"
	"net/url"
	"strconv"
	"time"
)

// AuditService handles audit record operations.
type AuditService struct {
	c *Client
}

// auditQueryResponse wraps the paginated audit query response.
type auditQueryResponse struct {
	Data    []AuditRecord `json:"data"`
	HasMore bool          `json:"has_more"`
}

// Create records an externally observed change. The server assigns the
// version and stamps the client's attribution headers.
func (s *AuditService) Create(ctx context.Context, req *CreateAuditRequest) (*AuditRecord, error) {
	var rec AuditRecord
	if err := s.c.post(ctx, "/api/v1/audits", req, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Query returns audit records matching the given options, newest first.
func (s *AuditService) Query(ctx context.Context, opts *AuditQueryOptions) ([]AuditRecord, bool, error) {
	params := url.Values{}
	if opts != nil {
		if opts.EntityType != "" {
			params.Set("entity_type", opts.EntityType)
		}
		if opts.EntityID != "" {
			params.Set("entity_id", opts.EntityID)
		}
		if opts.Action != "" {
			params.Set("action", opts.Action)
		}
		if opts.ActorID != "" {
			params.Set("actor_id", opts.ActorID)
		}
		if opts.GroupTag != "" {
			params.Set("group_tag", opts.GroupTag)
		}
		if opts.Since != nil {
			params.Set("since", opts.Since.Format(time.RFC3339))
		}
		if opts.Limit > 0 {
			params.Set("limit", strconv.Itoa(opts.Limit))
		}
		if opts.Offset > 0 {
			params.Set("offset", strconv.Itoa(opts.Offset))
		}
	}
	var resp auditQueryResponse
	if err := s.c.get(ctx, "/api/v1/audits", params, &resp); err != nil {
		return nil, false, err
	}
	return resp.Data, resp.HasMore, nil
}

// History returns an entity's audit chain, oldest first. A zero uptoVersion
// means the full chain.
func (s *AuditService) History(ctx context.Context, entityType, entityID string, uptoVersion int) ([]AuditRecord, error) {
	params := url.Values{}
	if uptoVersion > 0 {
		params.Set("upto_version", strconv.Itoa(uptoVersion))
	}
	var resp struct {
		Data []AuditRecord `json:"data"`
	}
	path := "/api/v1/entities/" + url.PathEscape(entityType) + "/" + url.PathEscape(entityID) + "/history"
	if err := s.c.get(ctx, path, params, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// Purge deletes audit records older than retentionDays. Returns count deleted.
func (s *AuditService) Purge(ctx context.Context, retentionDays int) (int, error) {
	params := url.Values{}
	if retentionDays > 0 {
		params.Set("retention_days", strconv.Itoa(retentionDays))
	}
	var resp struct {
		Deleted       int `json:"deleted"`
		RetentionDays int `json:"retention_days"`
	}
	if err := s.c.del(ctx, "/api/v1/audits", params, &resp); err != nil {
		return 0, err
	}
	return resp.Deleted, nil
}

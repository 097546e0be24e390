package client

import (
	"context"
	"encoding/json"
	"net/url"
)

// EntityService handles tracked entity operations.
type EntityService struct {
	c *Client
}

func entityPath(entityType, entityID string) string {
	return "/api/v1/entities/" + url.PathEscape(entityType) + "/" + url.PathEscape(entityID)
}

// Get returns a tracked entity.
func (s *EntityService) Get(ctx context.Context, entityType, entityID string) (*Entity, error) {
	var entity Entity
	if err := s.c.get(ctx, entityPath(entityType, entityID), nil, &entity); err != nil {
		return nil, err
	}
	return &entity, nil
}

// Create creates a tracked entity, producing its version-1 audit record.
func (s *EntityService) Create(ctx context.Context, entityType string, req *CreateEntityRequest) (*EntityChange, error) {
	var change EntityChange
	path := "/api/v1/entities/" + url.PathEscape(entityType)
	if err := s.c.post(ctx, path, req, &change); err != nil {
		return nil, err
	}
	return &change, nil
}

// Update replaces a tracked entity's attributes. A no-op update returns the
// current entity with a nil audit record.
func (s *EntityService) Update(ctx context.Context, entityType, entityID string, attrs map[string]json.RawMessage) (*EntityChange, error) {
	var change EntityChange
	req := UpdateEntityRequest{Attributes: attrs}
	if err := s.c.put(ctx, entityPath(entityType, entityID), req, &change); err != nil {
		return nil, err
	}
	return &change, nil
}

// Delete removes a tracked entity, capturing its final state in the audit
// chain.
func (s *EntityService) Delete(ctx context.Context, entityType, entityID string) (*AuditRecord, error) {
	var resp struct {
		Audit *AuditRecord `json:"audit"`
	}
	if err := s.c.del(ctx, entityPath(entityType, entityID), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Audit, nil
}

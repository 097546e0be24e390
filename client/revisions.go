package client

import (
	"context"
	"strconv"
)

// RevisionService handles point-in-time reconstruction.
type RevisionService struct {
	c *Client
}

// Get materializes an entity as it was at the given version.
func (s *RevisionService) Get(ctx context.Context, entityType, entityID string, version int) (*Snapshot, error) {
	var snap Snapshot
	path := entityPath(entityType, entityID) + "/revisions/" + strconv.Itoa(version)
	if err := s.c.get(ctx, path, nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

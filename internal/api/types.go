package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/retracehq/retrace/internal/domain"
)

// TypesHandler exposes the registered audited types.
type TypesHandler struct {
	reg domain.TypeRegistry
}

// NewTypesHandler creates a TypesHandler.
func NewTypesHandler(reg domain.TypeRegistry) *TypesHandler {
	return &TypesHandler{reg: reg}
}

// List handles GET /api/v1/types.
func (h *TypesHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"types": h.reg.Types()})
}

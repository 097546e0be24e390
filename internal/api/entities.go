package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/retracehq/retrace/internal/domain"
	"github.com/retracehq/retrace/internal/models"
)

// EntityHandler serves audited CRUD endpoints for tracked entities.
type EntityHandler struct {
	svc domain.EntityService
	reg domain.TypeRegistry
	log *logrus.Logger
}

// NewEntityHandler creates an EntityHandler.
func NewEntityHandler(svc domain.EntityService, reg domain.TypeRegistry, log *logrus.Logger) *EntityHandler {
	return &EntityHandler{svc: svc, reg: reg, log: log}
}

// resolveRef validates the :type and :id path parameters, checking the type
// against the registry. Returns ok=false after writing the error response.
func (h *EntityHandler) resolveRef(c *gin.Context) (entityType, entityID string, ok bool) {
	entityType = c.Param("type")
	if _, err := h.reg.Lookup(entityType); err != nil {
		respondError(c, http.StatusNotFound, ErrCodeNotFound, "unknown entity type")

		return "", "", false
	}

	entityID = c.Param("id")
	if err := validatePathID(entityID); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())

		return "", "", false
	}

	return entityType, entityID, true
}

// Get handles GET /api/v1/entities/:type/:id.
func (h *EntityHandler) Get(c *gin.Context) {
	entityType, entityID, ok := h.resolveRef(c)
	if !ok {
		return
	}

	entity, err := h.svc.Get(c.Request.Context(), entityType, entityID)
	if err != nil {
		if errors.Is(err, models.ErrEntityNotFound) {
			respondError(c, http.StatusNotFound, ErrCodeNotFound, "entity not found")

			return
		}

		h.log.WithError(err).Error("getting entity")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")

		return
	}

	c.JSON(http.StatusOK, entity)
}

// Create handles POST /api/v1/entities/:type.
func (h *EntityHandler) Create(c *gin.Context) {
	entityType := c.Param("type")
	if _, err := h.reg.Lookup(entityType); err != nil {
		respondError(c, http.StatusNotFound, ErrCodeNotFound, "unknown entity type")

		return
	}

	var req models.CreateEntityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request body")

		return
	}

	entity, rec, err := h.svc.Create(c.Request.Context(), entityType, req)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrDuplicateKey):
			respondError(c, http.StatusConflict, ErrCodeConflict, "entity already exists")
		case errors.Is(err, models.ErrMissingEntityID):
			respondError(c, http.StatusBadRequest, ErrCodeValidationError, err.Error())
		case errors.Is(err, models.ErrVersionConflict):
			respondError(c, http.StatusConflict, ErrCodeConflict, "version conflict, retry the request")
		default:
			h.log.WithError(err).Error("creating entity")
			respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")
		}

		return
	}

	c.JSON(http.StatusCreated, gin.H{"entity": entity, "audit": rec})
}

// Update handles PUT /api/v1/entities/:type/:id.
func (h *EntityHandler) Update(c *gin.Context) {
	entityType, entityID, ok := h.resolveRef(c)
	if !ok {
		return
	}

	var req models.UpdateEntityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request body")

		return
	}

	entity, rec, err := h.svc.Update(c.Request.Context(), entityType, entityID, req.Attributes)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrEntityNotFound):
			respondError(c, http.StatusNotFound, ErrCodeNotFound, "entity not found")
		case errors.Is(err, models.ErrVersionConflict):
			respondError(c, http.StatusConflict, ErrCodeConflict, "version conflict, retry the request")
		default:
			h.log.WithError(err).Error("updating entity")
			respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")
		}

		return
	}

	c.JSON(http.StatusOK, gin.H{"entity": entity, "audit": rec})
}

// Delete handles DELETE /api/v1/entities/:type/:id.
func (h *EntityHandler) Delete(c *gin.Context) {
	entityType, entityID, ok := h.resolveRef(c)
	if !ok {
		return
	}

	rec, err := h.svc.Delete(c.Request.Context(), entityType, entityID)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrEntityNotFound):
			respondError(c, http.StatusNotFound, ErrCodeNotFound, "entity not found")
		case errors.Is(err, models.ErrVersionConflict):
			respondError(c, http.StatusConflict, ErrCodeConflict, "version conflict, retry the request")
		default:
			h.log.WithError(err).Error("deleting entity")
			respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")
		}

		return
	}

	c.JSON(http.StatusOK, gin.H{"audit": rec})
}

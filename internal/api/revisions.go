package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/retracehq/retrace/internal/domain"
	"github.com/retracehq/retrace/internal/models"
)

// RevisionHandler serves point-in-time reconstruction endpoints.
type RevisionHandler struct {
	svc domain.RevisionService
	log *logrus.Logger
}

// NewRevisionHandler creates a RevisionHandler.
func NewRevisionHandler(svc domain.RevisionService, log *logrus.Logger) *RevisionHandler {
	return &RevisionHandler{svc: svc, log: log}
}

// Get handles GET /api/v1/entities/:type/:id/revisions/:version.
func (h *RevisionHandler) Get(c *gin.Context) {
	entityType := c.Param("type")
	entityID := c.Param("id")

	if err := validatePathID(entityID); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())

		return
	}

	version, err := parseVersion(c.Param("version"))
	if err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())

		return
	}

	snap, err := h.svc.Materialize(c.Request.Context(), entityType, entityID, version)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrUnknownType):
			respondError(c, http.StatusNotFound, ErrCodeNotFound, "unknown entity type")
		case errors.Is(err, models.ErrEntityNotFound):
			respondError(c, http.StatusNotFound, ErrCodeNotFound, "no audit records for the requested revision")
		default:
			h.log.WithError(err).Error("materializing revision")
			respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")
		}

		return
	}

	h.log.WithFields(logrus.Fields{
		"action":      "revision.get",
		"entity_type": entityType,
		"entity_id":   entityID,
		"version":     version,
	}).Debug("audit")

	c.JSON(http.StatusOK, snap)
}

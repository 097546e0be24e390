package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/retracehq/retrace/internal/domain"
	"github.com/retracehq/retrace/internal/models"
)

// AuditHandler serves audit record endpoints.
type AuditHandler struct {
	svc domain.AuditService
	log *logrus.Logger
}

// NewAuditHandler creates an AuditHandler.
func NewAuditHandler(svc domain.AuditService, log *logrus.Logger) *AuditHandler {
	return &AuditHandler{svc: svc, log: log}
}

// createAuditRequest is the payload for recording an externally observed
// change. Attribution headers win over the ambient context; the version is
// always assigned server-side.
type createAuditRequest struct {
	Auditable models.EntityRef   `json:"auditable"`
	Actor     *models.ActorRef   `json:"actor,omitempty"`
	Action    models.Action      `json:"action"`
	Diff      models.DiffPayload `json:"diff"`
}

// Create handles POST /api/v1/audits. Intended for callers auditing entities
// they persist elsewhere; entities stored here are audited by their own
// mutation endpoints.
func (h *AuditHandler) Create(c *gin.Context) {
	var req createAuditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request body")

		return
	}

	rec, err := h.svc.CreateAudit(c.Request.Context(), req.Auditable, req.Actor, req.Action, req.Diff)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrMissingEntityType),
			errors.Is(err, models.ErrMissingEntityID),
			errors.Is(err, models.ErrInvalidAction),
			errors.Is(err, models.ErrPartialGroup):
			respondError(c, http.StatusBadRequest, ErrCodeValidationError, err.Error())
		case errors.Is(err, models.ErrVersionConflict):
			respondError(c, http.StatusConflict, ErrCodeConflict, "version conflict, retry the request")
		default:
			h.log.WithError(err).Error("creating audit record")
			respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")
		}

		return
	}

	c.JSON(http.StatusCreated, rec)
}

// Query handles GET /api/v1/audits.
func (h *AuditHandler) Query(c *gin.Context) {
	opts := models.AuditQueryOpts{
		EntityType: c.Query("entity_type"),
		EntityID:   c.Query("entity_id"),
		Action:     c.Query("action"),
		ActorID:    c.Query("actor_id"),
		GroupTag:   c.Query("group_tag"),
		Limit:      parseInt(c.Query("limit"), 50),
		Offset:     parseOffset(c.Query("offset")),
	}

	if since := c.Query("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid since format, use RFC3339")

			return
		}
		opts.Since = &t
	}

	records, hasMore, err := h.svc.Query(c.Request.Context(), opts)
	if err != nil {
		h.log.WithError(err).Error("querying audit records")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "failed to query audit records")

		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":     records,
		"has_more": hasMore,
	})
}

// History handles GET /api/v1/entities/:type/:id/history — the entity's audit
// chain up to an optional version bound, oldest first.
func (h *AuditHandler) History(c *gin.Context) {
	entityType := c.Param("type")
	entityID := c.Param("id")

	if err := validatePathID(entityID); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())

		return
	}

	uptoVersion := 0
	if upto := c.Query("upto_version"); upto != "" {
		v, err := parseVersion(upto)
		if err != nil {
			respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())

			return
		}
		uptoVersion = v
	}

	if uptoVersion == 0 {
		latest, err := h.svc.MaxVersion(c.Request.Context(), entityType, entityID)
		if err != nil {
			h.log.WithError(err).Error("resolving latest version")
			respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")

			return
		}
		uptoVersion = latest
	}

	records, err := h.svc.Ancestors(c.Request.Context(), entityType, entityID, uptoVersion)
	if err != nil {
		h.log.WithError(err).Error("loading audit history")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")

		return
	}

	h.log.WithFields(logrus.Fields{
		"action":      "audit.history",
		"entity_type": entityType,
		"entity_id":   entityID,
		"count":       len(records),
	}).Debug("audit")

	c.JSON(http.StatusOK, gin.H{"data": records, "latest_version": uptoVersion})
}

// Purge handles DELETE /api/v1/audits.
func (h *AuditHandler) Purge(c *gin.Context) {
	retentionDays := 90
	if rd := c.Query("retention_days"); rd != "" {
		v, err := strconv.Atoi(rd)
		if err != nil || v < 1 {
			respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "retention_days must be a positive integer")

			return
		}
		retentionDays = v
	}

	deleted, err := h.svc.PurgeOldRecords(c.Request.Context(), retentionDays)
	if err != nil {
		h.log.WithError(err).Error("purging audit records")
		respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "failed to purge audit records")

		return
	}

	c.JSON(http.StatusOK, gin.H{
		"deleted":        deleted,
		"retention_days": retentionDays,
	})
}

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/retracehq/retrace/internal/dbpool"
	"github.com/retracehq/retrace/internal/domain"
	"github.com/retracehq/retrace/internal/middleware"
	"github.com/retracehq/retrace/internal/ws"
)

// RouterDeps holds all dependencies needed by the router.
type RouterDeps struct {
	Log         *logrus.Logger
	Pool        *dbpool.Pool
	Hub         *ws.Hub
	Audits      domain.AuditService
	Entities    domain.EntityService
	Revisions   domain.RevisionService
	Registry    domain.TypeRegistry
	APIKey      string
	CORSOrigins []string
	Version     string
}

// Router-level limits.
const (
	maxBodySize = 1 << 20 // 1 MB; audit diffs are field-level, not blobs
	rateLimit   = 100     // requests per second per IP
	rateBurst   = 200     // token bucket burst size
)

// setupMiddleware configures all middleware on the Gin engine.
func setupMiddleware(ctx context.Context, r *gin.Engine, deps *RouterDeps) {
	r.SetTrustedProxies(nil) //nolint:errcheck // nil always succeeds.
	r.Use(middleware.RequestID(deps.Log))
	r.Use(ginLogger(deps.Log))
	r.Use(gin.Recovery())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.MaxBodySize(maxBodySize))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     deps.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{
			"Content-Type", "Authorization",
			middleware.HeaderActorType, middleware.HeaderActorID, middleware.HeaderActorName,
			middleware.HeaderGroupTag, middleware.HeaderGroupComment,
		},
		MaxAge:           1 * time.Hour,
		AllowCredentials: false,
	}))
	r.Use(middleware.NewRateLimiter(ctx, rateLimit, rateBurst).Handler())
	r.Use(middleware.PrometheusMiddleware())

	// Metrics endpoint (unauthenticated, like health).
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// registerRoutes sets up all API route handlers on the given router group.
func registerRoutes(ctx context.Context, api *gin.RouterGroup, deps *RouterDeps) {
	log := deps.Log

	health := NewHealthHandler(deps.Pool, deps.Hub, log, deps.Version)
	entities := NewEntityHandler(deps.Entities, deps.Registry, log)
	audits := NewAuditHandler(deps.Audits, log)
	revisions := NewRevisionHandler(deps.Revisions, log)
	types := NewTypesHandler(deps.Registry)

	// Health and readiness are unauthenticated.
	api.GET("/health", health.Liveness)
	api.GET("/ready", health.Readiness)

	// All other API routes require authentication, and carry the audit
	// attribution headers onto the request context.
	api.Use(middleware.AuthMiddleware(deps.APIKey, log))
	api.Use(middleware.Attribution())

	// Audited types.
	api.GET("/types", types.List)

	// Tracked entities.
	api.POST("/entities/:type", entities.Create)
	api.GET("/entities/:type/:id", entities.Get)
	api.PUT("/entities/:type/:id", entities.Update)
	api.DELETE("/entities/:type/:id", entities.Delete)

	// Audit chains and revisions.
	api.GET("/entities/:type/:id/history", audits.History)
	api.GET("/entities/:type/:id/revisions/:version", revisions.Get)

	// Audit records.
	api.POST("/audits", audits.Create)
	api.GET("/audits", audits.Query)
	api.DELETE("/audits", audits.Purge)

	// WebSocket event stream.
	api.GET("/ws", wsHandler(ctx, log, deps.Hub, deps.CORSOrigins))
}

// NewRouter creates and configures the Gin engine with all middleware and routes.
func NewRouter(ctx context.Context, deps *RouterDeps) http.Handler {
	r := gin.New()
	setupMiddleware(ctx, r, deps)
	registerRoutes(ctx, r.Group("/api/v1"), deps)

	return r
}

// Package leads provides the lead management bounded context module.
package leads

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"outreach_backend/internal/events"
	apphttp "outreach_backend/internal/http"
	"outreach_backend/internal/leads/handler"
	"outreach_backend/internal/leads/repository"
	"outreach_backend/internal/leads/service"
	"outreach_backend/platform/config"
	"outreach_backend/platform/logger"
	"outreach_backend/platform/validator"
)

// Module is the leads bounded context module implementing http.Module.
type Module struct {
	handler   *handler.Handler
	repo      *repository.Repository
	service   *service.Service
	ingestKey string
}

// NewModule creates and initializes the leads module with all its
// dependencies. The outreach viewer is injected afterwards through
// SetOutreachViewer because the outreach module in turn reads leads
// through this module's repository.
func NewModule(pool *pgxpool.Pool, cfg config.WebhookConfig, eventBus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, eventBus, log)

	return &Module{
		handler:   handler.New(svc, val),
		repo:      repo,
		service:   svc,
		ingestKey: cfg.GetIngestAPIKey(),
	}
}

// SetOutreachViewer wires the outreach read side into the lead detail,
// timeline, and call history endpoints (breaks circular dependency).
func (m *Module) SetOutreachViewer(viewer handler.OutreachViewer) {
	m.handler.SetOutreach(viewer)
}

// Repository exposes the lead store for cross-module wiring (the outreach
// engine reads its contact projection through it).
func (m *Module) Repository() *repository.Repository {
	return m.repo
}

// Service exposes lead lifecycle operations for non-HTTP callers.
func (m *Module) Service() *service.Service {
	return m.service
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "leads"
}

// RegisterRoutes mounts the leads API.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.V1.Group("/leads")
	group.Use(apiKeyMiddleware(m.ingestKey))
	group.POST("", m.handler.HandleCreateLead)
	group.GET("", m.handler.HandleListLeads)
	group.GET("/:leadId", m.handler.HandleGetLead)
	group.POST("/:leadId/do-not-call", m.handler.HandleSetDoNotCall)
	group.DELETE("/:leadId", m.handler.HandleDeleteLead)
	group.GET("/:leadId/timeline", m.handler.HandleGetTimeline)
	group.GET("/:leadId/calls", m.handler.HandleGetAttempts)
}

// apiKeyMiddleware gates the leads API behind the shared ingest key.
func apiKeyMiddleware(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key == "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "ingest API not configured"})
			return
		}
		provided := c.GetHeader("X-API-Key")
		if subtle.ConstantTimeCompare([]byte(provided), []byte(key)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid API key"})
			return
		}
		c.Next()
	}
}

// Package webhook receives the voice vendor's callbacks: call delivery
// status and post-call conversation analysis. Every request is verified
// against the shared webhook secret before it reaches a handler.
package webhook

import (
	"outreach_backend/internal/events"
	apphttp "outreach_backend/internal/http"
	"outreach_backend/platform/config"
	"outreach_backend/platform/logger"
	"outreach_backend/platform/validator"
)

// Module is the vendor-callback bounded context implementing http.Module.
type Module struct {
	handler *Handler
	secret  string
	log     *logger.Logger
}

// NewModule wires the webhook surface to the outreach engine.
func NewModule(cfg config.WebhookConfig, outreach OutcomeApplier, bus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	return &Module{
		handler: NewHandler(outreach, bus, val),
		secret:  cfg.GetVoiceWebhookSecret(),
		log:     log,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "webhook"
}

// RegisterRoutes mounts the vendor callback routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	voiceGroup := ctx.Webhooks.Group("/voice")
	voiceGroup.Use(SignatureMiddleware(m.secret, m.log))
	voiceGroup.POST("/call-status", m.handler.HandleCallStatus)
	voiceGroup.POST("/call-analyzed", m.handler.HandleCallAnalyzed)
}

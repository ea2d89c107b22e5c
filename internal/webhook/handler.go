package webhook

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"outreach_backend/internal/events"
	"outreach_backend/internal/outreach/domain"
	"outreach_backend/internal/outreach/service"
	"outreach_backend/platform/httpkit"
	"outreach_backend/platform/validator"
)

const errInvalidRequest = "invalid request body"

// OutcomeApplier is the slice of the outreach engine the webhook surface
// drives.
type OutcomeApplier interface {
	ApplyCallOutcome(ctx context.Context, bus events.Bus, upd service.CallStatusUpdate) error
	ApplyConversationOutcome(ctx context.Context, bus events.Bus, providerCallID string, analysis domain.ConversationAnalysis) error
}

// Handler processes the voice vendor's callbacks.
type Handler struct {
	outreach OutcomeApplier
	bus      events.Bus
	val      *validator.Validator
}

func NewHandler(outreach OutcomeApplier, bus events.Bus, val *validator.Validator) *Handler {
	return &Handler{outreach: outreach, bus: bus, val: val}
}

// CallStatusRequest is the vendor's delivery callback for one placed call.
type CallStatusRequest struct {
	CallID          string     `json:"callId" validate:"required"`
	Status          string     `json:"status" validate:"required"`
	DurationSeconds int        `json:"durationSeconds" validate:"min=0"`
	Timestamp       *time.Time `json:"timestamp,omitempty"`
}

// HandleCallStatus processes a call delivery result.
// POST /webhooks/voice/call-status (HMAC authenticated by middleware)
func (h *Handler) HandleCallStatus(c *gin.Context) {
	var req CallStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, errInvalidRequest, err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, errInvalidRequest, err.Error())
		return
	}

	upd := service.CallStatusUpdate{
		ProviderCallID:  req.CallID,
		Status:          req.Status,
		DurationSeconds: req.DurationSeconds,
	}
	if req.Timestamp != nil {
		upd.Timestamp = *req.Timestamp
	}

	if httpkit.HandleError(c, h.outreach.ApplyCallOutcome(c.Request.Context(), h.bus, upd)) {
		return
	}
	httpkit.OK(c, gin.H{"status": "ok"})
}

// CallAnalyzedRequest is the vendor's post-call conversation analysis.
type CallAnalyzedRequest struct {
	CallID   string `json:"callId" validate:"required"`
	Analysis struct {
		AppointmentTime *time.Time `json:"appointmentTime,omitempty"`
		DoNotCall       bool       `json:"doNotCall"`
		Summary         string     `json:"summary"`
	} `json:"analysis"`
}

// HandleCallAnalyzed processes the conversation analysis for a finished call.
// POST /webhooks/voice/call-analyzed (HMAC authenticated by middleware)
func (h *Handler) HandleCallAnalyzed(c *gin.Context) {
	var req CallAnalyzedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, errInvalidRequest, err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, errInvalidRequest, err.Error())
		return
	}

	analysis := domain.ConversationAnalysis{
		AppointmentAt: req.Analysis.AppointmentTime,
		DoNotCall:     req.Analysis.DoNotCall,
		Summary:       req.Analysis.Summary,
	}

	if httpkit.HandleError(c, h.outreach.ApplyConversationOutcome(c.Request.Context(), h.bus, req.CallID, analysis)) {
		return
	}
	httpkit.OK(c, gin.H{"status": "ok"})
}

// Package handler exposes the leads HTTP API.
package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"outreach_backend/internal/leads/service"
	"outreach_backend/internal/leads/transport"
	"outreach_backend/internal/outreach/domain"
	outreachrepo "outreach_backend/internal/outreach/repository"
	"outreach_backend/platform/httpkit"
	"outreach_backend/platform/validator"
)

const (
	errInvalidRequest  = "invalid request body"
	errInvalidLeadID   = "invalid lead id"
	errOutreachOffline = "outreach history is unavailable"
)

// OutreachViewer is the read-side of the outreach engine the lead API
// surfaces: schedule state, call history, and the timeline.
type OutreachViewer interface {
	ScheduleStatus(ctx context.Context, leadID uuid.UUID) (*domain.Schedule, error)
	AttemptsForLead(ctx context.Context, leadID uuid.UUID, limit int) ([]domain.CallAttempt, error)
	TimelineForLead(ctx context.Context, leadID uuid.UUID, limit int) ([]outreachrepo.TimelineEvent, error)
}

type Handler struct {
	service  *service.Service
	outreach OutreachViewer
	val      *validator.Validator
}

func New(service *service.Service, val *validator.Validator) *Handler {
	return &Handler{service: service, val: val}
}

// SetOutreach injects the outreach read side. Set once during composition,
// before the router starts serving.
func (h *Handler) SetOutreach(viewer OutreachViewer) {
	h.outreach = viewer
}

// HandleCreateLead ingests a new lead.
// POST /api/v1/leads (API-key authenticated)
func (h *Handler) HandleCreateLead(c *gin.Context) {
	var req transport.CreateLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, errInvalidRequest, err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, errInvalidRequest, err.Error())
		return
	}

	lead, err := h.service.CreateLead(c.Request.Context(), service.CreateLeadInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		Email:     req.Email,
		State:     req.State,
		Source:    req.Source,
		DoNotCall: req.DoNotCall,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	c.JSON(http.StatusCreated, transport.ToLeadResponse(lead))
}

// HandleGetLead returns a lead with its outreach schedule.
// GET /api/v1/leads/:leadId
func (h *Handler) HandleGetLead(c *gin.Context) {
	leadID, ok := h.leadID(c)
	if !ok {
		return
	}

	lead, err := h.service.GetLead(c.Request.Context(), leadID)
	if httpkit.HandleError(c, err) {
		return
	}

	resp := transport.LeadDetailResponse{LeadResponse: transport.ToLeadResponse(lead)}
	if h.outreach != nil {
		sch, err := h.outreach.ScheduleStatus(c.Request.Context(), leadID)
		if httpkit.HandleError(c, err) {
			return
		}
		resp.Schedule = transport.ToScheduleResponse(sch)
	}

	httpkit.OK(c, resp)
}

// HandleListLeads lists leads, newest first.
// GET /api/v1/leads?limit=&offset=
func (h *Handler) HandleListLeads(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if offset < 0 {
		offset = 0
	}

	leads, err := h.service.ListLeads(c.Request.Context(), limit, offset)
	if httpkit.HandleError(c, err) {
		return
	}

	resp := make([]transport.LeadResponse, 0, len(leads))
	for _, lead := range leads {
		resp = append(resp, transport.ToLeadResponse(lead))
	}
	httpkit.OK(c, gin.H{"leads": resp})
}

// HandleSetDoNotCall flags a lead as opted out.
// POST /api/v1/leads/:leadId/do-not-call
func (h *Handler) HandleSetDoNotCall(c *gin.Context) {
	leadID, ok := h.leadID(c)
	if !ok {
		return
	}

	if httpkit.HandleError(c, h.service.SetDoNotCall(c.Request.Context(), leadID)) {
		return
	}
	httpkit.OK(c, gin.H{"status": "ok"})
}

// HandleDeleteLead removes a lead and stops its outreach.
// DELETE /api/v1/leads/:leadId
func (h *Handler) HandleDeleteLead(c *gin.Context) {
	leadID, ok := h.leadID(c)
	if !ok {
		return
	}

	if httpkit.HandleError(c, h.service.DeleteLead(c.Request.Context(), leadID)) {
		return
	}
	httpkit.OK(c, gin.H{"status": "ok"})
}

// HandleGetTimeline returns the lead's outreach timeline, newest first.
// GET /api/v1/leads/:leadId/timeline
func (h *Handler) HandleGetTimeline(c *gin.Context) {
	leadID, ok := h.leadID(c)
	if !ok {
		return
	}
	if h.outreach == nil {
		httpkit.Error(c, http.StatusServiceUnavailable, errOutreachOffline, nil)
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	events, err := h.outreach.TimelineForLead(c.Request.Context(), leadID, limit)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"events": events})
}

// HandleGetAttempts returns the lead's call history, newest first.
// GET /api/v1/leads/:leadId/calls
func (h *Handler) HandleGetAttempts(c *gin.Context) {
	leadID, ok := h.leadID(c)
	if !ok {
		return
	}
	if h.outreach == nil {
		httpkit.Error(c, http.StatusServiceUnavailable, errOutreachOffline, nil)
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	attempts, err := h.outreach.AttemptsForLead(c.Request.Context(), leadID, limit)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"calls": attempts})
}

func (h *Handler) leadID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("leadId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, errInvalidLeadID, nil)
		return uuid.Nil, false
	}
	return id, true
}

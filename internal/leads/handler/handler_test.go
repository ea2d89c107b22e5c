package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"outreach_backend/internal/outreach/domain"
	outreachrepo "outreach_backend/internal/outreach/repository"
	"outreach_backend/platform/validator"
)

type fakeViewer struct{}

func (fakeViewer) ScheduleStatus(_ context.Context, _ uuid.UUID) (*domain.Schedule, error) {
	return nil, nil
}

func (fakeViewer) AttemptsForLead(_ context.Context, _ uuid.UUID, _ int) ([]domain.CallAttempt, error) {
	return []domain.CallAttempt{}, nil
}

func (fakeViewer) TimelineForLead(_ context.Context, _ uuid.UUID, _ int) ([]outreachrepo.TimelineEvent, error) {
	return []outreachrepo.TimelineEvent{}, nil
}

func newHistoryRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.GET("/leads/:leadId/timeline", h.HandleGetTimeline)
	engine.GET("/leads/:leadId/calls", h.HandleGetAttempts)
	return engine
}

func TestHistoryEndpointsUnavailableWithoutOutreach(t *testing.T) {
	engine := newHistoryRouter(New(nil, validator.New()))

	for _, path := range []string{
		"/leads/" + uuid.NewString() + "/timeline",
		"/leads/" + uuid.NewString() + "/calls",
	} {
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("%s: status = %d, want %d", path, rec.Code, http.StatusServiceUnavailable)
		}
	}
}

func TestHistoryEndpointsServeOnceOutreachWired(t *testing.T) {
	h := New(nil, validator.New())
	h.SetOutreach(fakeViewer{})
	engine := newHistoryRouter(h)

	for _, path := range []string{
		"/leads/" + uuid.NewString() + "/timeline",
		"/leads/" + uuid.NewString() + "/calls",
	} {
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status = %d, want %d", path, rec.Code, http.StatusOK)
		}
	}
}

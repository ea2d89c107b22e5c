// Package transport defines the wire DTOs for the leads API.
package transport

import (
	"time"

	"github.com/google/uuid"

	"outreach_backend/internal/leads/repository"
	"outreach_backend/internal/outreach/domain"
)

// CreateLeadRequest is the ingest payload for a new lead.
type CreateLeadRequest struct {
	FirstName string  `json:"firstName" validate:"required,min=1,max=100"`
	LastName  string  `json:"lastName" validate:"max=100"`
	Phone     string  `json:"phone" validate:"required,min=7,max=32"`
	Email     *string `json:"email,omitempty" validate:"omitempty,email"`
	State     string  `json:"state" validate:"required,min=2,max=40"`
	Source    *string `json:"source,omitempty" validate:"omitempty,max=100"`
	DoNotCall bool    `json:"doNotCall"`
}

// LeadResponse is the API representation of a lead.
type LeadResponse struct {
	ID        uuid.UUID `json:"id"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Phone     string    `json:"phone"`
	Email     *string   `json:"email,omitempty"`
	State     string    `json:"state"`
	Source    *string   `json:"source,omitempty"`
	DoNotCall bool      `json:"doNotCall"`
	SignupAt  time.Time `json:"signupAt"`
	CreatedAt time.Time `json:"createdAt"`
}

// ScheduleResponse describes a lead's outreach schedule.
type ScheduleResponse struct {
	Active            bool       `json:"active"`
	NextAttemptAt     time.Time  `json:"nextAttemptAt"`
	AttemptsToday     int        `json:"attemptsToday"`
	RetryCountBlock   int        `json:"retryCountBlock"`
	LastAttemptAt     *time.Time `json:"lastAttemptAt,omitempty"`
	DeactivatedReason *string    `json:"deactivatedReason,omitempty"`
}

// LeadDetailResponse is the lead plus its outreach state.
type LeadDetailResponse struct {
	LeadResponse
	Schedule *ScheduleResponse `json:"schedule,omitempty"`
}

func ToLeadResponse(lead repository.Lead) LeadResponse {
	return LeadResponse{
		ID:        lead.ID,
		FirstName: lead.FirstName,
		LastName:  lead.LastName,
		Phone:     lead.Phone,
		Email:     lead.Email,
		State:     lead.State,
		Source:    lead.Source,
		DoNotCall: lead.DoNotCall,
		SignupAt:  lead.SignupAt,
		CreatedAt: lead.CreatedAt,
	}
}

func ToScheduleResponse(sch *domain.Schedule) *ScheduleResponse {
	if sch == nil {
		return nil
	}
	return &ScheduleResponse{
		Active:            sch.Active,
		NextAttemptAt:     sch.NextAttemptAt,
		AttemptsToday:     sch.AttemptsToday,
		RetryCountBlock:   sch.RetryCountBlock,
		LastAttemptAt:     sch.LastAttemptAt,
		DeactivatedReason: sch.DeactivatedReason,
	}
}

// Package service implements lead intake and lifecycle operations, publishing
// domain events so outreach reacts without a direct dependency.
package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"outreach_backend/internal/events"
	"outreach_backend/internal/leads/repository"
	"outreach_backend/internal/outreach/domain"
	"outreach_backend/platform/apperr"
	"outreach_backend/platform/logger"
	"outreach_backend/platform/phone"
)

type Service struct {
	repo *repository.Repository
	bus  events.Bus
	log  *logger.Logger
}

func New(repo *repository.Repository, bus events.Bus, log *logger.Logger) *Service {
	return &Service{repo: repo, bus: bus, log: log}
}

type CreateLeadInput struct {
	FirstName string
	LastName  string
	Phone     string
	Email     *string
	State     string
	Source    *string
	DoNotCall bool
}

// CreateLead ingests a new lead: normalize the phone to E.164, reject
// duplicates by phone, persist, and announce the lead to the rest of the
// system. The LeadCreated event is what pulls the lead into the contact flow.
func (s *Service) CreateLead(ctx context.Context, input CreateLeadInput) (repository.Lead, error) {
	e164, ok := phone.MustE164(input.Phone)
	if !ok {
		return repository.Lead{}, apperr.Validation(fmt.Sprintf("phone %q is not dialable", input.Phone))
	}

	state := domain.NormalizeState(input.State)
	if state == "" {
		state = input.State
	}

	existing, err := s.repo.GetByPhone(ctx, e164)
	if err != nil {
		return repository.Lead{}, fmt.Errorf("create lead: lookup phone: %w", err)
	}
	if existing != nil {
		return repository.Lead{}, apperr.Conflict("a lead with this phone already exists").
			WithDetails(map[string]string{"leadId": existing.ID.String()})
	}

	lead, err := s.repo.Create(ctx, repository.CreateLeadParams{
		FirstName: input.FirstName,
		LastName:  input.LastName,
		Phone:     e164,
		Email:     input.Email,
		State:     state,
		Source:    input.Source,
		DoNotCall: input.DoNotCall,
	})
	if err != nil {
		return repository.Lead{}, fmt.Errorf("create lead: %w", err)
	}

	s.log.Info("lead created", "lead_id", lead.ID, "state", lead.State, "source", stringValue(lead.Source))
	s.bus.Publish(ctx, events.LeadCreated{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    lead.ID,
		Phone:     lead.Phone,
		State:     lead.State,
		Source:    stringValue(lead.Source),
		DoNotCall: lead.DoNotCall,
	})

	return lead, nil
}

func (s *Service) GetLead(ctx context.Context, id uuid.UUID) (repository.Lead, error) {
	lead, err := s.repo.GetByID(ctx, id)
	if err == repository.ErrNotFound {
		return repository.Lead{}, apperr.NotFound("lead not found")
	}
	return lead, err
}

func (s *Service) ListLeads(ctx context.Context, limit, offset int) ([]repository.Lead, error) {
	return s.repo.List(ctx, limit, offset)
}

// SetDoNotCall flags the lead as opted out and tells outreach to stand down.
func (s *Service) SetDoNotCall(ctx context.Context, id uuid.UUID) error {
	changed, err := s.repo.SetDoNotCall(ctx, id)
	if err != nil {
		return fmt.Errorf("set do-not-call: %w", err)
	}
	if !changed {
		return nil
	}

	s.log.Info("lead flagged do-not-call", "lead_id", id)
	// Synchronous so the schedule is stood down before the caller gets a
	// response. The flag itself is already persisted, so a subscriber error
	// is logged rather than surfaced.
	if err := s.bus.PublishSync(ctx, events.LeadDoNotCallSet{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    id,
	}); err != nil {
		s.log.Error("do-not-call propagation failed", "lead_id", id, "error", err)
	}
	return nil
}

// DeleteLead removes the lead; scheduling state cascades away in the
// database and subscribers stop any in-flight work.
func (s *Service) DeleteLead(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if err == repository.ErrNotFound {
			return apperr.NotFound("lead not found")
		}
		return fmt.Errorf("delete lead: %w", err)
	}

	s.log.Info("lead deleted", "lead_id", id)
	if err := s.bus.PublishSync(ctx, events.LeadDeleted{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    id,
	}); err != nil {
		s.log.Error("lead-deleted propagation failed", "lead_id", id, "error", err)
	}
	return nil
}

func stringValue(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

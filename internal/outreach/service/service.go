package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"outreach_backend/internal/outreach/domain"
	"outreach_backend/internal/outreach/repository"
	"outreach_backend/platform/logger"
)

// timeFormat is used for timestamps embedded in timeline metadata.
const timeFormat = time.RFC3339

// Config tunes the engine. Zero values fall back to sane defaults.
type Config struct {
	Policy            domain.Policy
	DefaultTimezone   string
	ExecutionLease    time.Duration
	DispatchBatchSize int
	JobBatchSize      int
}

// Service is the outbound-contact engine. All entry points are idempotent:
// the dispatcher loop, the queue worker, and the webhook handlers may overlap
// freely without double-calling a lead.
type Service struct {
	store  Store
	leads  LeadReader
	writer LeadWriter
	dialer Dialer
	alerts AlertNotifier
	log    *logger.Logger

	policy domain.Policy
	zones  *domain.ZoneResolver
	lease  time.Duration

	dispatchBatch int
	jobBatch      int

	handlers map[domain.JobType]jobHandler

	// now is swapped out by tests.
	now func() time.Time
}

// New wires the engine. dialer may be nil when voice is disabled; execution
// then fails jobs with a typed cause instead of calling out.
func New(store Store, leads LeadReader, writer LeadWriter, dialer Dialer, alerts AlertNotifier, log *logger.Logger, cfg Config) *Service {
	lease := cfg.ExecutionLease
	if lease <= 0 {
		lease = 2 * time.Minute
	}
	dispatchBatch := cfg.DispatchBatchSize
	if dispatchBatch <= 0 {
		dispatchBatch = 20
	}
	jobBatch := cfg.JobBatchSize
	if jobBatch <= 0 {
		jobBatch = 50
	}

	s := &Service{
		store:         store,
		leads:         leads,
		writer:        writer,
		dialer:        dialer,
		alerts:        alerts,
		log:           log,
		policy:        cfg.Policy.Normalize(),
		zones:         domain.NewZoneResolver(cfg.DefaultTimezone),
		lease:         lease,
		dispatchBatch: dispatchBatch,
		jobBatch:      jobBatch,
		now:           func() time.Time { return time.Now().UTC() },
	}
	s.handlers = map[domain.JobType]jobHandler{
		domain.JobTypeInitialCall: s.executeInitialCall,
	}
	return s
}

// StartOutreach activates the contact schedule for a lead entering the flow.
// The first attempt lands immediately when the lead's local clock is inside a
// safe hour, otherwise at the next safe hour, so a 3am signup never produces
// a 3am call. Repeat calls for the same lead are no-ops, including for leads
// whose schedule already ran to a terminal stop.
func (s *Service) StartOutreach(ctx context.Context, leadID uuid.UUID, state string) error {
	now := s.now()

	lead, err := s.leads.GetContactInfo(ctx, leadID)
	if err != nil {
		return fmt.Errorf("start outreach: load lead: %w", err)
	}
	if lead.DoNotCall {
		s.log.Info("outreach not started, lead opted out", "lead_id", leadID)
		return nil
	}
	if state == "" {
		state = lead.State
	}

	loc := s.zones.Resolve(state)
	at := now
	if !s.policy.InWindow(now, loc) {
		at = s.policy.NextWindow(now, loc)
	}

	sch, created, err := s.store.ActivateSchedule(ctx, leadID, at, &repository.TimelineEntry{
		LeadID:    leadID,
		EventType: domain.EventScheduleActivated,
		Title:     "Outreach schedule activated",
		Metadata: map[string]any{
			"next_attempt_at": at.Format(timeFormat),
			"state":           state,
		},
		ActorName: "scheduler",
	})
	if err != nil {
		return fmt.Errorf("start outreach: %w", err)
	}
	if !created {
		s.log.Debug("outreach already scheduled", "lead_id", leadID, "active", sch.Active)
		return nil
	}

	s.log.Info("outreach schedule activated",
		"lead_id", leadID, "next_attempt_at", at, "state", state)
	return nil
}

// DeactivateForLead permanently stops outreach for the lead and cancels any
// queued work. Safe to call repeatedly and for leads without a schedule.
func (s *Service) DeactivateForLead(ctx context.Context, leadID uuid.UUID, reason string) error {
	deactivated, err := s.store.DeactivateSchedule(ctx, leadID, reason, &repository.TimelineEntry{
		LeadID:    leadID,
		EventType: domain.EventScheduleDeactivated,
		Title:     "Outreach schedule deactivated",
		Metadata:  map[string]any{"reason": reason},
		ActorName: "scheduler",
	})
	if err != nil {
		return fmt.Errorf("deactivate outreach: %w", err)
	}
	if deactivated {
		s.log.Info("outreach schedule deactivated", "lead_id", leadID, "reason", reason)
	}
	return nil
}

// ScheduleStatus exposes the schedule for the lead detail API, nil when the
// lead never entered the flow.
func (s *Service) ScheduleStatus(ctx context.Context, leadID uuid.UUID) (*domain.Schedule, error) {
	return s.store.ScheduleByLeadID(ctx, leadID)
}

// AttemptsForLead exposes the lead's call history, newest first.
func (s *Service) AttemptsForLead(ctx context.Context, leadID uuid.UUID, limit int) ([]domain.CallAttempt, error) {
	return s.store.AttemptsForLead(ctx, leadID, limit)
}

// TimelineForLead exposes the lead's timeline, newest first.
func (s *Service) TimelineForLead(ctx context.Context, leadID uuid.UUID, limit int) ([]repository.TimelineEvent, error) {
	return s.store.TimelineForLead(ctx, leadID, limit)
}

// integrity records a state the engine considers impossible and pages the
// operator. Processing of the offending lead stops; the next tick retries.
func (s *Service) integrity(ctx context.Context, leadID uuid.UUID, detail string) {
	s.log.Error("outreach integrity violation", "lead_id", leadID, "detail", detail)
	if err := s.store.AppendTimeline(ctx, repository.TimelineEntry{
		LeadID:    leadID,
		EventType: domain.EventIntegrityViolation,
		Title:     "Outreach integrity violation",
		Summary:   &detail,
		ActorName: "scheduler",
	}); err != nil {
		s.log.Error("failed to record integrity violation", "lead_id", leadID, "error", err)
	}
	if s.alerts != nil {
		s.alerts.IntegrityViolation(ctx, leadID, detail)
	}
}

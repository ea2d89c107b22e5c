package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"outreach_backend/internal/outreach/domain"
	"outreach_backend/internal/outreach/repository"
	"outreach_backend/platform/apperr"
	"outreach_backend/platform/phone"
)

// jobHandler executes one leased job. A returned error fails the job with
// that cause; the schedule is never touched from here, the dispatcher cadence
// owns retries.
type jobHandler func(ctx context.Context, job domain.Job) error

// ExecuteJobByID is the queue worker entry point. Vanished or already
// terminal jobs are silent no-ops, so redeliveries cost nothing.
func (s *Service) ExecuteJobByID(ctx context.Context, jobID uuid.UUID) error {
	job, err := s.store.JobByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("execute job %s: %w", jobID, err)
	}
	if job == nil || job.Status != domain.JobStatusPending {
		return nil
	}
	return s.ExecuteJob(ctx, *job)
}

// ExecuteJob runs a pending job exactly once under concurrent callers. The
// lease claim on the job row is the arbiter: whoever flips started_at first
// executes, everyone else backs off. A worker that dies mid-execution leaves
// the job pending with an expiring lease, so it is retried rather than lost.
func (s *Service) ExecuteJob(ctx context.Context, job domain.Job) error {
	now := s.now()

	leased, err := s.store.LeaseJob(ctx, job.ID, now, s.lease)
	if err != nil {
		return fmt.Errorf("lease job %s: %w", job.ID, err)
	}
	if leased == nil {
		s.log.Debug("job already claimed", "job_id", job.ID, "lead_id", job.LeadID)
		return nil
	}

	handler, ok := s.handlers[leased.Type]
	if !ok {
		cause := fmt.Sprintf("no handler for job type %q", leased.Type)
		s.log.Error("unknown job type", "job_id", leased.ID, "type", leased.Type)
		if err := s.store.FailJob(ctx, leased.ID, cause); err != nil {
			return fmt.Errorf("fail job %s: %w", leased.ID, err)
		}
		return nil
	}

	if err := handler(ctx, *leased); err != nil {
		s.log.Error("job execution failed",
			"job_id", leased.ID, "lead_id", leased.LeadID, "type", leased.Type, "error", err)
		if failErr := s.store.FailJob(ctx, leased.ID, err.Error()); failErr != nil {
			return fmt.Errorf("fail job %s: %w", leased.ID, failErr)
		}
		if tlErr := s.store.AppendTimeline(ctx, repository.TimelineEntry{
			LeadID:    leased.LeadID,
			EventType: domain.EventCallFailed,
			Title:     "Call attempt failed",
			Metadata:  map[string]any{"job_id": leased.ID.String(), "error": err.Error()},
			ActorName: "executor",
		}); tlErr != nil {
			s.log.Error("failed to record call failure", "job_id", leased.ID, "error", tlErr)
		}
		return nil
	}

	if err := s.store.CompleteJob(ctx, leased.ID); err != nil {
		return fmt.Errorf("complete job %s: %w", leased.ID, err)
	}
	return nil
}

// executeInitialCall places the outbound call for a leased initial_call job:
// re-check consent, normalize the number, build the agent's dynamic context,
// hand the call to the vendor, and record the attempt for callback
// correlation.
func (s *Service) executeInitialCall(ctx context.Context, job domain.Job) error {
	log := s.log.WithLeadID(job.LeadID.String())

	lead, err := s.leads.GetContactInfo(ctx, job.LeadID)
	if err != nil {
		return apperr.Wrap(apperr.KindNotFound, fmt.Sprintf("lead %s not found", job.LeadID), err)
	}
	if lead.DoNotCall {
		// Consent revoked between enqueue and execution. Deactivating the
		// schedule cancels this job through the sync pass, so no call is
		// placed and the lease simply expires on a cancelled row.
		if _, err := s.stop(ctx, job.LeadID, domain.ReasonDoNotCall, domain.EventSkippedDNC,
			"Call skipped, lead opted out"); err != nil {
			return fmt.Errorf("stop on do-not-call: %w", err)
		}
		return nil
	}

	e164, ok := phone.MustE164(lead.Phone)
	if !ok {
		return apperr.Validation(fmt.Sprintf("phone %q is not dialable", lead.Phone))
	}

	if s.dialer == nil {
		return apperr.Unavailable("voice dialing is disabled")
	}

	loc := s.zones.Resolve(lead.State)
	result, err := s.dialer.PlaceCall(ctx, CallRequest{
		To: e164,
		DynamicVariables: map[string]string{
			"first_name":  lead.FirstName,
			"state":       domain.StateFullName(lead.State),
			"signup_time": lead.SignupAt.In(loc).Format("Monday, January 2 at 3:04 PM"),
		},
	})
	if err != nil {
		return fmt.Errorf("place call: %w", err)
	}

	attempt := domain.CallAttempt{
		ID:             uuid.New(),
		LeadID:         job.LeadID,
		ProviderCallID: result.ProviderCallID,
		ProviderStatus: result.Status,
		Outcome:        domain.OutcomeInitiated,
		StartedAt:      s.now(),
	}
	if err := s.store.InsertAttempt(ctx, attempt); err != nil {
		// The vendor is already dialing; losing the attempt row would orphan
		// the delivery callback.
		s.integrity(ctx, job.LeadID,
			fmt.Sprintf("call %s placed but attempt not recorded: %v", result.ProviderCallID, err))
		return fmt.Errorf("record attempt: %w", err)
	}

	if err := s.store.AppendTimeline(ctx, repository.TimelineEntry{
		LeadID:    job.LeadID,
		EventType: domain.EventCallPlaced,
		Title:     "Outbound call placed",
		Metadata: map[string]any{
			"provider_call_id": result.ProviderCallID,
			"to":               e164,
		},
		ActorName: "executor",
	}); err != nil {
		log.Error("failed to record call placement", "error", err)
	}

	log.Info("outbound call placed", "provider_call_id", result.ProviderCallID)
	return nil
}

package service

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"outreach_backend/internal/events"
	"outreach_backend/internal/outreach/domain"
	"outreach_backend/internal/outreach/repository"
	"outreach_backend/platform/apperr"
)

// maxSummaryBytes bounds the analysis summary stored on the timeline.
const maxSummaryBytes = 500

// CallStatusUpdate is a vendor delivery callback after signature
// verification: what happened to one placed call.
type CallStatusUpdate struct {
	ProviderCallID  string
	Status          string
	DurationSeconds int
	Timestamp       time.Time
}

// ApplyCallOutcome folds a delivery callback into engine state: normalize the
// raw status, finalize the attempt, then either stop the schedule (answered)
// or plan the follow-up per the retry policy. Duplicate deliveries and
// callbacks for already-terminal attempts change nothing.
func (s *Service) ApplyCallOutcome(ctx context.Context, bus events.Bus, upd CallStatusUpdate) error {
	attempt, err := s.store.AttemptByProviderCallID(ctx, upd.ProviderCallID)
	if err != nil {
		return fmt.Errorf("apply call outcome: load attempt: %w", err)
	}
	if attempt == nil {
		return apperr.NotFound(fmt.Sprintf("unknown provider call id %q", upd.ProviderCallID))
	}

	duration := time.Duration(upd.DurationSeconds) * time.Second
	outcome := s.policy.NormalizeOutcome(upd.Status, duration)

	completedAt := upd.Timestamp
	if completedAt.IsZero() {
		completedAt = s.now()
	}
	updated, recorded, err := s.store.RecordAttemptOutcome(ctx,
		upd.ProviderCallID, upd.Status, outcome, upd.DurationSeconds, completedAt)
	if err != nil {
		return fmt.Errorf("apply call outcome: record: %w", err)
	}
	if !recorded {
		// Attempt already terminal: duplicate or late delivery.
		s.log.Info("duplicate call outcome ignored",
			"provider_call_id", upd.ProviderCallID, "status", upd.Status)
		return nil
	}

	leadID := updated.LeadID
	if err := s.store.AppendTimeline(ctx, repository.TimelineEntry{
		LeadID:    leadID,
		EventType: domain.EventCallOutcome,
		Title:     fmt.Sprintf("Call outcome: %s", outcome),
		Metadata: map[string]any{
			"provider_call_id": upd.ProviderCallID,
			"provider_status":  upd.Status,
			"outcome":          string(outcome),
			"duration_seconds": upd.DurationSeconds,
		},
		ActorName: "call_outcome",
	}); err != nil {
		s.log.Error("failed to record call outcome event", "lead_id", leadID, "error", err)
	}

	if outcome == domain.OutcomeSuccessful {
		if _, err := s.stop(ctx, leadID, domain.ReasonAnswered, domain.EventStoppedAnswered,
			"Outreach stopped, lead answered"); err != nil {
			return err
		}
		if bus != nil {
			bus.Publish(ctx, events.CallAnswered{
				BaseEvent:       events.NewBaseEvent(),
				LeadID:          leadID,
				ProviderCallID:  upd.ProviderCallID,
				DurationSeconds: upd.DurationSeconds,
			})
		}
		return nil
	}

	return s.scheduleRetry(ctx, leadID, outcome)
}

// scheduleRetry plans the next attempt after an unanswered or rejected call.
// A schedule that is gone or already deactivated stays that way: terminal
// stops are never resurrected by stale callbacks.
func (s *Service) scheduleRetry(ctx context.Context, leadID uuid.UUID, outcome domain.CallOutcome) error {
	sch, err := s.store.ScheduleByLeadID(ctx, leadID)
	if err != nil {
		return fmt.Errorf("schedule retry: load schedule: %w", err)
	}
	if sch == nil || !sch.Active {
		return nil
	}

	lead, err := s.leads.GetContactInfo(ctx, leadID)
	if err != nil {
		return fmt.Errorf("schedule retry: load lead: %w", err)
	}
	if lead.DoNotCall {
		_, err := s.stop(ctx, leadID, domain.ReasonDoNotCall, domain.EventSkippedDNC,
			"Retry skipped, lead opted out")
		return err
	}

	now := s.now()
	loc := s.zones.Resolve(lead.State)
	nextAt, retryCount, rolled := s.policy.NextAttempt(now, loc, sch.RetryCountBlock)
	attemptsToday := sch.AttemptsToday
	if rolled {
		attemptsToday = 0
	}

	updated, err := s.store.AdvanceSchedule(ctx, repository.AdvanceParams{
		LeadID:          leadID,
		ExpectedAt:      sch.NextAttemptAt,
		NextAttemptAt:   nextAt,
		RetryCountBlock: retryCount,
		AttemptsToday:   attemptsToday,
		Timeline: &repository.TimelineEntry{
			LeadID:    leadID,
			EventType: domain.EventRetryScheduled,
			Title:     "Retry scheduled after failed contact",
			Metadata: map[string]any{
				"outcome":           string(outcome),
				"next_attempt_at":   nextAt.Format(timeFormat),
				"retry_count_block": retryCount,
			},
			ActorName: "call_outcome",
		},
	})
	if err != nil {
		return fmt.Errorf("schedule retry: advance: %w", err)
	}
	if updated == nil {
		// Another evaluator moved the schedule while we were deciding.
		s.log.Debug("retry superseded by concurrent evaluation", "lead_id", leadID)
		return nil
	}

	s.log.Info("retry scheduled",
		"lead_id", leadID, "outcome", outcome, "next_attempt_at", nextAt, "retry_count_block", retryCount)
	return nil
}

// ApplyConversationOutcome folds the vendor's post-call analysis into lead
// and schedule state. An appointment or a do-not-call request is terminal for
// the schedule; anything else is recorded and leaves the retry plan alone.
func (s *Service) ApplyConversationOutcome(ctx context.Context, bus events.Bus, providerCallID string, analysis domain.ConversationAnalysis) error {
	attempt, err := s.store.AttemptByProviderCallID(ctx, providerCallID)
	if err != nil {
		return fmt.Errorf("apply conversation outcome: load attempt: %w", err)
	}
	if attempt == nil {
		return apperr.NotFound(fmt.Sprintf("unknown provider call id %q", providerCallID))
	}
	leadID := attempt.LeadID

	if analysis.DoNotCall {
		if s.writer != nil {
			if err := s.writer.SetDoNotCall(ctx, leadID); err != nil {
				return fmt.Errorf("apply conversation outcome: flag lead: %w", err)
			}
		}
		if _, err := s.stop(ctx, leadID, domain.ReasonDoNotCall, domain.EventSkippedDNC,
			"Outreach stopped, lead asked not to be called"); err != nil {
			return err
		}
	}

	if analysis.AppointmentAt != nil {
		if _, err := s.stop(ctx, leadID, domain.ReasonAppointmentBooked, domain.EventAppointmentBooked,
			"Appointment booked, outreach complete"); err != nil {
			return err
		}
		if bus != nil {
			bus.Publish(ctx, events.AppointmentBooked{
				BaseEvent:     events.NewBaseEvent(),
				LeadID:        leadID,
				AppointmentAt: *analysis.AppointmentAt,
			})
		}
	}

	summary := analysis.Summary
	if len(summary) > maxSummaryBytes {
		// Cut on a rune boundary so the stored text stays valid UTF-8.
		cut := maxSummaryBytes
		for cut > 0 && !utf8.RuneStart(summary[cut]) {
			cut--
		}
		summary = summary[:cut]
	}
	metadata := map[string]any{
		"provider_call_id": providerCallID,
		"do_not_call":      analysis.DoNotCall,
	}
	if analysis.AppointmentAt != nil {
		metadata["appointment_at"] = analysis.AppointmentAt.Format(timeFormat)
	}
	var summaryPtr *string
	if summary != "" {
		summaryPtr = &summary
	}
	if err := s.store.AppendTimeline(ctx, repository.TimelineEntry{
		LeadID:    leadID,
		EventType: domain.EventConversationAnalyzed,
		Title:     "Conversation analyzed",
		Summary:   summaryPtr,
		Metadata:  metadata,
		ActorName: "conversation_outcome",
	}); err != nil {
		s.log.Error("failed to record conversation analysis", "lead_id", leadID, "error", err)
	}
	return nil
}

package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"outreach_backend/internal/outreach/domain"
	"outreach_backend/internal/outreach/repository"
)

// DispatchDue evaluates every due schedule once: stop conditions first, then
// the safe-hour window, then the attempt itself. A failure on one lead is
// logged and never blocks the rest of the batch. Returns the number of
// schedules that were advanced.
func (s *Service) DispatchDue(ctx context.Context) (int, error) {
	now := s.now()

	leadIDs, err := s.store.DueScheduleLeadIDs(ctx, now, s.dispatchBatch)
	if err != nil {
		return 0, fmt.Errorf("dispatch: list due schedules: %w", err)
	}

	advanced := 0
	for _, leadID := range leadIDs {
		if err := ctx.Err(); err != nil {
			return advanced, err
		}
		ok, err := s.dispatchOne(ctx, leadID)
		if err != nil {
			s.log.BatchItemError("dispatcher", leadID.String(), err)
			continue
		}
		if ok {
			advanced++
		}
	}
	return advanced, nil
}

// dispatchOne processes a single due schedule. Reported as advanced only when
// this evaluator's compare-and-set landed; losing a race to a concurrent
// dispatcher is a silent no-op.
func (s *Service) dispatchOne(ctx context.Context, leadID uuid.UUID) (bool, error) {
	now := s.now()

	sch, err := s.store.ScheduleByLeadID(ctx, leadID)
	if err != nil {
		return false, fmt.Errorf("load schedule: %w", err)
	}
	if sch == nil || !sch.Active || sch.NextAttemptAt.After(now) {
		// Already handled by a concurrent evaluator.
		return false, nil
	}

	lead, err := s.leads.GetContactInfo(ctx, leadID)
	if err != nil {
		s.integrity(ctx, leadID, fmt.Sprintf("due schedule references unloadable lead: %v", err))
		return false, fmt.Errorf("load lead: %w", err)
	}

	// Stop conditions win over everything, including the window check.
	if lead.DoNotCall {
		return s.stop(ctx, leadID, domain.ReasonDoNotCall, domain.EventSkippedDNC,
			"Call skipped, lead opted out")
	}
	answered, err := s.store.HasAnsweredAttempt(ctx, leadID)
	if err != nil {
		return false, fmt.Errorf("check answered attempts: %w", err)
	}
	if answered {
		return s.stop(ctx, leadID, domain.ReasonAnswered, domain.EventStoppedAnswered,
			"Outreach stopped, lead already answered")
	}

	loc := s.zones.Resolve(lead.State)

	if !s.policy.InWindow(now, loc) {
		next := s.policy.NextWindow(now, loc)
		attemptsToday := sch.AttemptsToday
		if nl, cl := next.In(loc), now.In(loc); nl.YearDay() != cl.YearDay() || nl.Year() != cl.Year() {
			// attempts_today counts per local day; rolling past midnight
			// starts a fresh count.
			attemptsToday = 0
		}
		updated, err := s.store.AdvanceSchedule(ctx, repository.AdvanceParams{
			LeadID:          leadID,
			ExpectedAt:      sch.NextAttemptAt,
			NextAttemptAt:   next,
			RetryCountBlock: 0,
			AttemptsToday:   attemptsToday,
			Timeline: &repository.TimelineEntry{
				LeadID:    leadID,
				EventType: domain.EventRescheduledForWindow,
				Title:     "Rescheduled to next safe call hour",
				Metadata: map[string]any{
					"next_attempt_at": next.Format(timeFormat),
					"state":           lead.State,
				},
				ActorName: "dispatcher",
			},
		})
		if err != nil {
			return false, fmt.Errorf("reschedule out of window: %w", err)
		}
		return updated != nil, nil
	}

	// In window: run the due job through the executor, then advance the
	// schedule. The advance re-mirrors the queue, so the completed job is
	// replaced by a fresh pending one at the retry time.
	job, err := s.store.PendingJob(ctx, leadID, domain.JobTypeInitialCall)
	if err != nil {
		return false, fmt.Errorf("load pending job: %w", err)
	}
	if job != nil && !job.ScheduledAt.After(now) {
		if err := s.ExecuteJob(ctx, *job); err != nil {
			s.log.Error("job execution failed during dispatch",
				"lead_id", leadID, "job_id", job.ID, "error", err)
		}
	}

	nextAt, retryCount, rolled := s.policy.NextAttempt(now, loc, sch.RetryCountBlock)
	attemptsToday := sch.AttemptsToday + 1
	if rolled {
		attemptsToday = 0
	}

	updated, err := s.store.AdvanceSchedule(ctx, repository.AdvanceParams{
		LeadID:           leadID,
		ExpectedAt:       sch.NextAttemptAt,
		NextAttemptAt:    nextAt,
		RetryCountBlock:  retryCount,
		AttemptsToday:    attemptsToday,
		TouchLastAttempt: true,
		Timeline: &repository.TimelineEntry{
			LeadID:    leadID,
			EventType: domain.EventCallTriggered,
			Title:     "Outbound call attempt triggered",
			Metadata: map[string]any{
				"next_attempt_at":   nextAt.Format(timeFormat),
				"retry_count_block": retryCount,
				"attempts_today":    attemptsToday,
			},
			ActorName: "dispatcher",
		},
	})
	if err != nil {
		return false, fmt.Errorf("advance schedule: %w", err)
	}
	return updated != nil, nil
}

// stop deactivates the schedule for a terminal stop reason; the sync pass
// inside DeactivateSchedule cancels any pending job for the lead.
func (s *Service) stop(ctx context.Context, leadID uuid.UUID, reason, eventType, title string) (bool, error) {
	deactivated, err := s.store.DeactivateSchedule(ctx, leadID, reason, &repository.TimelineEntry{
		LeadID:    leadID,
		EventType: eventType,
		Title:     title,
		Metadata:  map[string]any{"reason": reason},
		ActorName: "dispatcher",
	})
	if err != nil {
		return false, fmt.Errorf("deactivate (%s): %w", reason, err)
	}
	if deactivated {
		s.log.Info("outreach stopped", "lead_id", leadID, "reason", reason)
	}
	return deactivated, nil
}

package service

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"outreach_backend/internal/outreach/domain"
	"outreach_backend/platform/apperr"
)

// 2026-01-27 15:00 UTC is 09:00 CST, the first safe call hour in Texas.
var inWindowCST = time.Date(2026, 1, 27, 15, 0, 0, 0, time.UTC)

// 2026-01-27 20:19 UTC is 14:19 CST, between the noon and evening blocks.
var outOfWindowCST = time.Date(2026, 1, 27, 20, 19, 0, 0, time.UTC)

func TestStartOutreachInWindowSchedulesImmediately(t *testing.T) {
	h := newTestHarness(inWindowCST)
	leadID := h.addLead("TX")

	if err := h.svc.StartOutreach(context.Background(), leadID, "TX"); err != nil {
		t.Fatalf("start outreach: %v", err)
	}

	sch, _ := h.store.ScheduleByLeadID(context.Background(), leadID)
	if sch == nil || !sch.Active {
		t.Fatal("expected an active schedule")
	}
	if !sch.NextAttemptAt.Equal(inWindowCST) {
		t.Fatalf("next attempt %v, want immediate %v", sch.NextAttemptAt, inWindowCST)
	}

	pending := h.store.pendingJobs(leadID)
	if len(pending) != 1 {
		t.Fatalf("pending jobs = %d, want 1", len(pending))
	}
	if !pending[0].ScheduledAt.Equal(inWindowCST) {
		t.Fatalf("job scheduled at %v, want %v", pending[0].ScheduledAt, inWindowCST)
	}
}

func TestStartOutreachOutsideWindowDefersFirstAttempt(t *testing.T) {
	h := newTestHarness(outOfWindowCST)
	leadID := h.addLead("TX")

	if err := h.svc.StartOutreach(context.Background(), leadID, "TX"); err != nil {
		t.Fatalf("start outreach: %v", err)
	}

	// Next block is 19:00 CST, which is 01:00 UTC the following day.
	want := time.Date(2026, 1, 28, 1, 0, 0, 0, time.UTC)
	sch, _ := h.store.ScheduleByLeadID(context.Background(), leadID)
	if !sch.NextAttemptAt.Equal(want) {
		t.Fatalf("next attempt %v, want %v", sch.NextAttemptAt, want)
	}
}

func TestStartOutreachIsIdempotent(t *testing.T) {
	h := newTestHarness(inWindowCST)
	leadID := h.addLead("TX")

	for i := 0; i < 3; i++ {
		if err := h.svc.StartOutreach(context.Background(), leadID, "TX"); err != nil {
			t.Fatalf("start outreach #%d: %v", i+1, err)
		}
	}

	if n := len(h.store.pendingJobs(leadID)); n != 1 {
		t.Fatalf("pending jobs = %d, want 1", n)
	}
}

func TestDispatchInWindowPlacesCallAndSchedulesRetry(t *testing.T) {
	h := newTestHarness(inWindowCST)
	leadID := h.addLead("TX")
	if err := h.svc.StartOutreach(context.Background(), leadID, "TX"); err != nil {
		t.Fatalf("start outreach: %v", err)
	}

	advanced, err := h.svc.DispatchDue(context.Background())
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if advanced != 1 {
		t.Fatalf("advanced = %d, want 1", advanced)
	}
	if h.dialer.callCount() != 1 {
		t.Fatalf("dialer calls = %d, want 1", h.dialer.callCount())
	}

	sch, _ := h.store.ScheduleByLeadID(context.Background(), leadID)
	wantNext := inWindowCST.Add(5 * time.Minute)
	if !sch.NextAttemptAt.Equal(wantNext) {
		t.Fatalf("next attempt %v, want %v", sch.NextAttemptAt, wantNext)
	}
	if sch.RetryCountBlock != 1 {
		t.Fatalf("retry count = %d, want 1", sch.RetryCountBlock)
	}
	if sch.AttemptsToday != 1 {
		t.Fatalf("attempts today = %d, want 1", sch.AttemptsToday)
	}

	// The executed job completed; the mirror holds a fresh pending job at
	// the retry time.
	pending := h.store.pendingJobs(leadID)
	if len(pending) != 1 {
		t.Fatalf("pending jobs = %d, want 1", len(pending))
	}
	if !pending[0].ScheduledAt.Equal(wantNext) {
		t.Fatalf("replacement job at %v, want %v", pending[0].ScheduledAt, wantNext)
	}
}

func TestDispatchRerunIsNoOp(t *testing.T) {
	h := newTestHarness(inWindowCST)
	leadID := h.addLead("TX")
	if err := h.svc.StartOutreach(context.Background(), leadID, "TX"); err != nil {
		t.Fatalf("start outreach: %v", err)
	}

	if _, err := h.svc.DispatchDue(context.Background()); err != nil {
		t.Fatalf("first dispatch: %v", err)
	}
	advanced, err := h.svc.DispatchDue(context.Background())
	if err != nil {
		t.Fatalf("second dispatch: %v", err)
	}
	if advanced != 0 {
		t.Fatalf("second dispatch advanced = %d, want 0", advanced)
	}
	if h.dialer.callCount() != 1 {
		t.Fatalf("dialer calls = %d, want 1", h.dialer.callCount())
	}
}

func TestDispatchOutOfWindowReschedulesWithoutCalling(t *testing.T) {
	h := newTestHarness(outOfWindowCST)
	leadID := h.addLead("TX")
	if _, _, err := h.store.ActivateSchedule(context.Background(), leadID, outOfWindowCST, nil); err != nil {
		t.Fatalf("activate: %v", err)
	}

	advanced, err := h.svc.DispatchDue(context.Background())
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if advanced != 1 {
		t.Fatalf("advanced = %d, want 1", advanced)
	}
	if h.dialer.callCount() != 0 {
		t.Fatalf("dialer calls = %d, want 0", h.dialer.callCount())
	}

	want := time.Date(2026, 1, 28, 1, 0, 0, 0, time.UTC)
	sch, _ := h.store.ScheduleByLeadID(context.Background(), leadID)
	if !sch.NextAttemptAt.Equal(want) {
		t.Fatalf("next attempt %v, want %v", sch.NextAttemptAt, want)
	}
	if sch.RetryCountBlock != 0 {
		t.Fatalf("retry count = %d, want 0 after window reschedule", sch.RetryCountBlock)
	}

	pending := h.store.pendingJobs(leadID)
	if len(pending) != 1 || !pending[0].ScheduledAt.Equal(want) {
		t.Fatalf("pending job should mirror the rescheduled time %v, got %+v", want, pending)
	}
}

func TestDispatchPastEveningRolloverResetsDailyCount(t *testing.T) {
	// 2026-01-28 02:10 UTC is 20:10 CST Jan 27, past the evening block, so
	// the next safe hour is 09:00 CST on the following local day.
	pastEveningCST := time.Date(2026, 1, 28, 2, 10, 0, 0, time.UTC)
	h := newTestHarness(pastEveningCST)
	leadID := h.addLead("TX")
	if _, _, err := h.store.ActivateSchedule(context.Background(), leadID, pastEveningCST, nil); err != nil {
		t.Fatalf("activate: %v", err)
	}
	h.store.mu.Lock()
	h.store.schedules[leadID].AttemptsToday = 3
	h.store.mu.Unlock()

	if _, err := h.svc.DispatchDue(context.Background()); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	want := time.Date(2026, 1, 28, 15, 0, 0, 0, time.UTC)
	sch, _ := h.store.ScheduleByLeadID(context.Background(), leadID)
	if !sch.NextAttemptAt.Equal(want) {
		t.Fatalf("next attempt %v, want %v", sch.NextAttemptAt, want)
	}
	if sch.AttemptsToday != 0 {
		t.Fatalf("attempts today = %d, want 0 after rolling to a new local day", sch.AttemptsToday)
	}
}

func TestDispatchStopsOnDoNotCall(t *testing.T) {
	h := newTestHarness(inWindowCST)
	leadID := h.addLead("TX")
	if err := h.svc.StartOutreach(context.Background(), leadID, "TX"); err != nil {
		t.Fatalf("start outreach: %v", err)
	}
	h.leads.setDNC(leadID)

	if _, err := h.svc.DispatchDue(context.Background()); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	sch, _ := h.store.ScheduleByLeadID(context.Background(), leadID)
	if sch.Active {
		t.Fatal("schedule should be deactivated for a do-not-call lead")
	}
	if sch.DeactivatedReason == nil || *sch.DeactivatedReason != domain.ReasonDoNotCall {
		t.Fatalf("reason = %v, want %s", sch.DeactivatedReason, domain.ReasonDoNotCall)
	}
	if h.dialer.callCount() != 0 {
		t.Fatal("no call may be placed for a do-not-call lead")
	}
	if n := len(h.store.pendingJobs(leadID)); n != 0 {
		t.Fatalf("pending jobs = %d, want 0 after deactivation", n)
	}
}

func TestDispatchStopsWhenLeadAlreadyAnswered(t *testing.T) {
	h := newTestHarness(inWindowCST)
	leadID := h.addLead("TX")
	if err := h.svc.StartOutreach(context.Background(), leadID, "TX"); err != nil {
		t.Fatalf("start outreach: %v", err)
	}
	if err := h.store.InsertAttempt(context.Background(), domain.CallAttempt{
		ID: uuid.New(), LeadID: leadID, ProviderCallID: "old-call",
		Outcome: domain.OutcomeSuccessful, StartedAt: inWindowCST.Add(-24 * time.Hour),
	}); err != nil {
		t.Fatalf("seed attempt: %v", err)
	}

	if _, err := h.svc.DispatchDue(context.Background()); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	sch, _ := h.store.ScheduleByLeadID(context.Background(), leadID)
	if sch.Active {
		t.Fatal("schedule should stop once the lead has answered")
	}
	if sch.DeactivatedReason == nil || *sch.DeactivatedReason != domain.ReasonAnswered {
		t.Fatalf("reason = %v, want %s", sch.DeactivatedReason, domain.ReasonAnswered)
	}
	if h.dialer.callCount() != 0 {
		t.Fatal("no further calls after an answer")
	}
}

func TestDispatchBlockExhaustionJumpsToNextWindow(t *testing.T) {
	h := newTestHarness(inWindowCST)
	leadID := h.addLead("TX")
	if err := h.svc.StartOutreach(context.Background(), leadID, "TX"); err != nil {
		t.Fatalf("start outreach: %v", err)
	}
	h.store.mu.Lock()
	h.store.schedules[leadID].RetryCountBlock = 2
	h.store.mu.Unlock()

	if _, err := h.svc.DispatchDue(context.Background()); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	// Third attempt of the 9am block exhausted it; next is noon CST, 18:00 UTC.
	want := time.Date(2026, 1, 27, 18, 0, 0, 0, time.UTC)
	sch, _ := h.store.ScheduleByLeadID(context.Background(), leadID)
	if !sch.NextAttemptAt.Equal(want) {
		t.Fatalf("next attempt %v, want %v", sch.NextAttemptAt, want)
	}
	if sch.RetryCountBlock != 0 {
		t.Fatalf("retry count = %d, want 0 after block jump", sch.RetryCountBlock)
	}
	if h.dialer.callCount() != 1 {
		t.Fatalf("dialer calls = %d, want 1", h.dialer.callCount())
	}
}

func TestDispatchVendorFailureFailsJobButKeepsCadence(t *testing.T) {
	h := newTestHarness(inWindowCST)
	leadID := h.addLead("TX")
	if err := h.svc.StartOutreach(context.Background(), leadID, "TX"); err != nil {
		t.Fatalf("start outreach: %v", err)
	}
	h.dialer.err = apperr.Unavailable("vendor 503")

	if _, err := h.svc.DispatchDue(context.Background()); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	sch, _ := h.store.ScheduleByLeadID(context.Background(), leadID)
	if !sch.Active {
		t.Fatal("vendor failure must not deactivate the schedule")
	}
	if !sch.NextAttemptAt.Equal(inWindowCST.Add(5 * time.Minute)) {
		t.Fatalf("next attempt %v, want retry in 5m", sch.NextAttemptAt)
	}

	h.store.mu.Lock()
	var failed int
	for _, job := range h.store.jobs {
		if job.LeadID == leadID && job.Status == domain.JobStatusFailed {
			failed++
			if job.Error == nil {
				t.Error("failed job should carry its cause")
			}
		}
	}
	h.store.mu.Unlock()
	if failed != 1 {
		t.Fatalf("failed jobs = %d, want 1", failed)
	}
}

func TestExecuteJobUnknownTypeFails(t *testing.T) {
	h := newTestHarness(inWindowCST)
	leadID := h.addLead("TX")
	job := domain.Job{
		ID: uuid.New(), LeadID: leadID, Type: domain.JobType("email_followup"),
		Status: domain.JobStatusPending, ScheduledAt: inWindowCST,
	}
	h.store.mu.Lock()
	cp := job
	h.store.jobs[job.ID] = &cp
	h.store.mu.Unlock()

	if err := h.svc.ExecuteJob(context.Background(), job); err != nil {
		t.Fatalf("execute: %v", err)
	}

	stored, _ := h.store.JobByID(context.Background(), job.ID)
	if stored.Status != domain.JobStatusFailed {
		t.Fatalf("status = %s, want failed", stored.Status)
	}
}

func TestExecuteJobLeaseBlocksConcurrentRun(t *testing.T) {
	h := newTestHarness(inWindowCST)
	leadID := h.addLead("TX")
	if err := h.svc.StartOutreach(context.Background(), leadID, "TX"); err != nil {
		t.Fatalf("start outreach: %v", err)
	}
	job := h.store.pendingJobs(leadID)[0]

	// First caller holds the lease.
	if leased, _ := h.store.LeaseJob(context.Background(), job.ID, inWindowCST, 2*time.Minute); leased == nil {
		t.Fatal("expected to win the first lease")
	}

	if err := h.svc.ExecuteJob(context.Background(), job); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if h.dialer.callCount() != 0 {
		t.Fatal("second caller must not place a call while the lease is live")
	}

	// After the lease expires the job is claimable again.
	h.setNow(inWindowCST.Add(3 * time.Minute))
	if err := h.svc.ExecuteJob(context.Background(), job); err != nil {
		t.Fatalf("execute after expiry: %v", err)
	}
	if h.dialer.callCount() != 1 {
		t.Fatalf("dialer calls = %d, want 1 after lease expiry", h.dialer.callCount())
	}
}

func TestExecuteJobCancelsWhenConsentRevoked(t *testing.T) {
	h := newTestHarness(inWindowCST)
	leadID := h.addLead("TX")
	if err := h.svc.StartOutreach(context.Background(), leadID, "TX"); err != nil {
		t.Fatalf("start outreach: %v", err)
	}
	job := h.store.pendingJobs(leadID)[0]
	h.leads.setDNC(leadID)

	if err := h.svc.ExecuteJob(context.Background(), job); err != nil {
		t.Fatalf("execute: %v", err)
	}

	if h.dialer.callCount() != 0 {
		t.Fatal("no call may be placed after consent is revoked")
	}
	stored, _ := h.store.JobByID(context.Background(), job.ID)
	if stored.Status != domain.JobStatusCancelled {
		t.Fatalf("status = %s, want cancelled", stored.Status)
	}
	sch, _ := h.store.ScheduleByLeadID(context.Background(), leadID)
	if sch.Active {
		t.Fatal("schedule should be deactivated on the consent re-check")
	}
}

func TestApplyCallOutcomeAnsweredStopsOutreach(t *testing.T) {
	h := newTestHarness(inWindowCST)
	leadID := h.addLead("TX")
	if err := h.svc.StartOutreach(context.Background(), leadID, "TX"); err != nil {
		t.Fatalf("start outreach: %v", err)
	}
	if _, err := h.svc.DispatchDue(context.Background()); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	err := h.svc.ApplyCallOutcome(context.Background(), nil, CallStatusUpdate{
		ProviderCallID: "call-1", Status: "completed", DurationSeconds: 45,
	})
	if err != nil {
		t.Fatalf("apply outcome: %v", err)
	}

	attempt, _ := h.store.AttemptByProviderCallID(context.Background(), "call-1")
	if attempt.Outcome != domain.OutcomeSuccessful {
		t.Fatalf("outcome = %s, want successful", attempt.Outcome)
	}
	sch, _ := h.store.ScheduleByLeadID(context.Background(), leadID)
	if sch.Active {
		t.Fatal("schedule should stop after an answered call")
	}
	if n := len(h.store.pendingJobs(leadID)); n != 0 {
		t.Fatalf("pending jobs = %d, want 0", n)
	}
}

func TestApplyCallOutcomeShortCompletedCountsAsRejected(t *testing.T) {
	h := newTestHarness(inWindowCST)
	leadID := h.addLead("TX")
	if err := h.svc.StartOutreach(context.Background(), leadID, "TX"); err != nil {
		t.Fatalf("start outreach: %v", err)
	}
	if _, err := h.svc.DispatchDue(context.Background()); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	h.setNow(inWindowCST.Add(1 * time.Minute))
	err := h.svc.ApplyCallOutcome(context.Background(), nil, CallStatusUpdate{
		ProviderCallID: "call-1", Status: "completed", DurationSeconds: 4,
	})
	if err != nil {
		t.Fatalf("apply outcome: %v", err)
	}

	attempt, _ := h.store.AttemptByProviderCallID(context.Background(), "call-1")
	if attempt.Outcome != domain.OutcomeRejected {
		t.Fatalf("outcome = %s, want rejected for a sub-threshold pickup", attempt.Outcome)
	}

	// Rejected keeps retrying: second in-block retry five minutes out.
	sch, _ := h.store.ScheduleByLeadID(context.Background(), leadID)
	if !sch.Active {
		t.Fatal("schedule should stay active")
	}
	want := inWindowCST.Add(6 * time.Minute)
	if !sch.NextAttemptAt.Equal(want) {
		t.Fatalf("next attempt %v, want %v", sch.NextAttemptAt, want)
	}
	if sch.RetryCountBlock != 2 {
		t.Fatalf("retry count = %d, want 2", sch.RetryCountBlock)
	}
}

func TestApplyCallOutcomeDuplicateDeliveryIsIgnored(t *testing.T) {
	h := newTestHarness(inWindowCST)
	leadID := h.addLead("TX")
	if err := h.svc.StartOutreach(context.Background(), leadID, "TX"); err != nil {
		t.Fatalf("start outreach: %v", err)
	}
	if _, err := h.svc.DispatchDue(context.Background()); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	upd := CallStatusUpdate{ProviderCallID: "call-1", Status: "no-answer"}
	if err := h.svc.ApplyCallOutcome(context.Background(), nil, upd); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	schAfterFirst, _ := h.store.ScheduleByLeadID(context.Background(), leadID)

	if err := h.svc.ApplyCallOutcome(context.Background(), nil, upd); err != nil {
		t.Fatalf("second delivery: %v", err)
	}
	schAfterSecond, _ := h.store.ScheduleByLeadID(context.Background(), leadID)

	if !schAfterFirst.NextAttemptAt.Equal(schAfterSecond.NextAttemptAt) ||
		schAfterFirst.RetryCountBlock != schAfterSecond.RetryCountBlock {
		t.Fatal("duplicate delivery must not move the schedule")
	}
}

func TestApplyCallOutcomeUnknownCallID(t *testing.T) {
	h := newTestHarness(inWindowCST)

	err := h.svc.ApplyCallOutcome(context.Background(), nil, CallStatusUpdate{
		ProviderCallID: "never-placed", Status: "completed", DurationSeconds: 30,
	})
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("err = %v, want a not-found kind", err)
	}
}

func TestApplyCallOutcomeNeverResurrectsStoppedSchedule(t *testing.T) {
	h := newTestHarness(inWindowCST)
	leadID := h.addLead("TX")
	if err := h.svc.StartOutreach(context.Background(), leadID, "TX"); err != nil {
		t.Fatalf("start outreach: %v", err)
	}
	if err := h.svc.DeactivateForLead(context.Background(), leadID, domain.ReasonAppointmentBooked); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	// A delivery callback for an earlier call arrives after the stop.
	if err := h.store.InsertAttempt(context.Background(), domain.CallAttempt{
		ID: uuid.New(), LeadID: leadID, ProviderCallID: "stale-call",
		Outcome: domain.OutcomeInitiated, StartedAt: inWindowCST.Add(-time.Hour),
	}); err != nil {
		t.Fatalf("seed attempt: %v", err)
	}
	if err := h.svc.ApplyCallOutcome(context.Background(), nil, CallStatusUpdate{
		ProviderCallID: "stale-call", Status: "no-answer",
	}); err != nil {
		t.Fatalf("apply outcome: %v", err)
	}

	sch, _ := h.store.ScheduleByLeadID(context.Background(), leadID)
	if sch.Active {
		t.Fatal("stale callback must not reactivate a stopped schedule")
	}
	if n := len(h.store.pendingJobs(leadID)); n != 0 {
		t.Fatalf("pending jobs = %d, want 0", n)
	}
}

func TestApplyConversationOutcomeAppointmentIsTerminal(t *testing.T) {
	h := newTestHarness(inWindowCST)
	leadID := h.addLead("TX")
	if err := h.svc.StartOutreach(context.Background(), leadID, "TX"); err != nil {
		t.Fatalf("start outreach: %v", err)
	}
	if _, err := h.svc.DispatchDue(context.Background()); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	appointment := time.Date(2026, 1, 29, 16, 0, 0, 0, time.UTC)
	err := h.svc.ApplyConversationOutcome(context.Background(), nil, "call-1", domain.ConversationAnalysis{
		AppointmentAt: &appointment,
		Summary:       "Booked a Thursday consult.",
	})
	if err != nil {
		t.Fatalf("apply conversation outcome: %v", err)
	}

	sch, _ := h.store.ScheduleByLeadID(context.Background(), leadID)
	if sch.Active {
		t.Fatal("appointment must stop the schedule")
	}
	if sch.DeactivatedReason == nil || *sch.DeactivatedReason != domain.ReasonAppointmentBooked {
		t.Fatalf("reason = %v, want %s", sch.DeactivatedReason, domain.ReasonAppointmentBooked)
	}
	if n := len(h.store.pendingJobs(leadID)); n != 0 {
		t.Fatalf("pending jobs = %d, want 0", n)
	}
}

func TestApplyConversationOutcomeTruncatesSummaryOnRuneBoundary(t *testing.T) {
	h := newTestHarness(inWindowCST)
	leadID := h.addLead("TX")
	if err := h.svc.StartOutreach(context.Background(), leadID, "TX"); err != nil {
		t.Fatalf("start outreach: %v", err)
	}
	if _, err := h.svc.DispatchDue(context.Background()); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	// 200 three-byte runes: 600 bytes, so the cut lands mid-rune.
	long := strings.Repeat("€", 200)
	err := h.svc.ApplyConversationOutcome(context.Background(), nil, "call-1", domain.ConversationAnalysis{
		Summary: long,
	})
	if err != nil {
		t.Fatalf("apply conversation outcome: %v", err)
	}

	var stored *string
	h.store.mu.Lock()
	for _, e := range h.store.timeline {
		if e.EventType == domain.EventConversationAnalyzed {
			stored = e.Summary
		}
	}
	h.store.mu.Unlock()
	if stored == nil {
		t.Fatal("analysis summary should be on the timeline")
	}
	if len(*stored) > 500 {
		t.Fatalf("summary length = %d bytes, want at most 500", len(*stored))
	}
	if !utf8.ValidString(*stored) {
		t.Fatal("truncated summary must remain valid UTF-8")
	}
}

func TestApplyConversationOutcomeDoNotCallFlagsLead(t *testing.T) {
	h := newTestHarness(inWindowCST)
	leadID := h.addLead("TX")
	if err := h.svc.StartOutreach(context.Background(), leadID, "TX"); err != nil {
		t.Fatalf("start outreach: %v", err)
	}
	if _, err := h.svc.DispatchDue(context.Background()); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	err := h.svc.ApplyConversationOutcome(context.Background(), nil, "call-1", domain.ConversationAnalysis{
		DoNotCall: true,
	})
	if err != nil {
		t.Fatalf("apply conversation outcome: %v", err)
	}

	lead, _ := h.leads.GetContactInfo(context.Background(), leadID)
	if !lead.DoNotCall {
		t.Fatal("lead should carry the do-not-call flag")
	}
	sch, _ := h.store.ScheduleByLeadID(context.Background(), leadID)
	if sch.Active {
		t.Fatal("do-not-call must stop the schedule")
	}
}

func TestDispatchRecordsTimeline(t *testing.T) {
	h := newTestHarness(inWindowCST)
	leadID := h.addLead("TX")
	if err := h.svc.StartOutreach(context.Background(), leadID, "TX"); err != nil {
		t.Fatalf("start outreach: %v", err)
	}
	if _, err := h.svc.DispatchDue(context.Background()); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	seen := make(map[string]bool)
	for _, typ := range h.store.timelineTypes() {
		seen[typ] = true
	}
	for _, want := range []string{
		domain.EventScheduleActivated,
		domain.EventCallPlaced,
		domain.EventCallTriggered,
	} {
		if !seen[want] {
			t.Errorf("timeline missing %s event", want)
		}
	}
}

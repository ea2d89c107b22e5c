package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"outreach_backend/internal/outreach/domain"
	"outreach_backend/internal/outreach/repository"
	"outreach_backend/platform/apperr"
	"outreach_backend/platform/logger"
)

// fakeStore is an in-memory Store that mirrors the transactional semantics
// of the pgx repository, including the compare-and-set advance and the job
// mirror maintained through the real synchronizer.
type fakeStore struct {
	mu        sync.Mutex
	schedules map[uuid.UUID]*domain.Schedule
	jobs      map[uuid.UUID]*domain.Job
	attempts  map[string]*domain.CallAttempt
	timeline  []repository.TimelineEntry
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		schedules: make(map[uuid.UUID]*domain.Schedule),
		jobs:      make(map[uuid.UUID]*domain.Job),
		attempts:  make(map[string]*domain.CallAttempt),
	}
}

// fakeStoreJobs adapts the store's job map to the synchronizer's JobStore.
// Callers must hold st.mu.
type fakeStoreJobs struct{ st *fakeStore }

func (f fakeStoreJobs) PendingJob(_ context.Context, leadID uuid.UUID, jobType domain.JobType) (*domain.Job, error) {
	for _, job := range f.st.jobs {
		if job.LeadID == leadID && job.Type == jobType && job.Status == domain.JobStatusPending {
			cp := *job
			return &cp, nil
		}
	}
	return nil, nil
}

func (f fakeStoreJobs) CreateJob(_ context.Context, job domain.Job) error {
	cp := job
	cp.CreatedAt = time.Now()
	f.st.jobs[job.ID] = &cp
	return nil
}

func (f fakeStoreJobs) RescheduleJob(_ context.Context, jobID uuid.UUID, scheduledAt time.Time) error {
	if job, ok := f.st.jobs[jobID]; ok && job.Status == domain.JobStatusPending {
		job.ScheduledAt = scheduledAt
	}
	return nil
}

func (f fakeStoreJobs) CancelJob(_ context.Context, jobID uuid.UUID) error {
	if job, ok := f.st.jobs[jobID]; ok && job.Status == domain.JobStatusPending {
		job.Status = domain.JobStatusCancelled
	}
	return nil
}

func (st *fakeStore) ActivateSchedule(ctx context.Context, leadID uuid.UUID, nextAttemptAt time.Time, timeline *repository.TimelineEntry) (domain.Schedule, bool, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if existing, ok := st.schedules[leadID]; ok {
		return *existing, false, nil
	}
	sch := domain.Schedule{
		ID:            uuid.New(),
		LeadID:        leadID,
		Active:        true,
		NextAttemptAt: nextAttemptAt,
		CreatedAt:     time.Now(),
	}
	st.schedules[leadID] = &sch
	if err := repository.SyncJobs(ctx, fakeStoreJobs{st}, sch); err != nil {
		return domain.Schedule{}, false, err
	}
	if timeline != nil {
		st.timeline = append(st.timeline, *timeline)
	}
	return sch, true, nil
}

func (st *fakeStore) ScheduleByLeadID(_ context.Context, leadID uuid.UUID) (*domain.Schedule, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if sch, ok := st.schedules[leadID]; ok {
		cp := *sch
		return &cp, nil
	}
	return nil, nil
}

func (st *fakeStore) DueScheduleLeadIDs(_ context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	var ids []uuid.UUID
	for leadID, sch := range st.schedules {
		if sch.Active && !sch.NextAttemptAt.After(now) {
			ids = append(ids, leadID)
		}
		if len(ids) == limit {
			break
		}
	}
	return ids, nil
}

func (st *fakeStore) AdvanceSchedule(ctx context.Context, p repository.AdvanceParams) (*domain.Schedule, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	sch, ok := st.schedules[p.LeadID]
	if !ok || !sch.Active || !sch.NextAttemptAt.Equal(p.ExpectedAt) {
		return nil, nil
	}
	sch.NextAttemptAt = p.NextAttemptAt
	sch.RetryCountBlock = p.RetryCountBlock
	sch.AttemptsToday = p.AttemptsToday
	if p.TouchLastAttempt {
		now := time.Now()
		sch.LastAttemptAt = &now
	}
	if err := repository.SyncJobs(ctx, fakeStoreJobs{st}, *sch); err != nil {
		return nil, err
	}
	if p.Timeline != nil {
		st.timeline = append(st.timeline, *p.Timeline)
	}
	cp := *sch
	return &cp, nil
}

func (st *fakeStore) DeactivateSchedule(ctx context.Context, leadID uuid.UUID, reason string, timeline *repository.TimelineEntry) (bool, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	sch, ok := st.schedules[leadID]
	if !ok || !sch.Active {
		return false, nil
	}
	sch.Active = false
	sch.DeactivatedReason = &reason
	if err := repository.SyncJobs(ctx, fakeStoreJobs{st}, *sch); err != nil {
		return false, err
	}
	if timeline != nil {
		st.timeline = append(st.timeline, *timeline)
	}
	return true, nil
}

func (st *fakeStore) PendingJob(ctx context.Context, leadID uuid.UUID, jobType domain.JobType) (*domain.Job, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	return fakeStoreJobs{st}.PendingJob(ctx, leadID, jobType)
}

func (st *fakeStore) JobByID(_ context.Context, id uuid.UUID) (*domain.Job, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if job, ok := st.jobs[id]; ok {
		cp := *job
		return &cp, nil
	}
	return nil, nil
}

func (st *fakeStore) DueJobs(_ context.Context, now time.Time, lease time.Duration, limit int) ([]domain.Job, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	var due []domain.Job
	for _, job := range st.jobs {
		if job.Status != domain.JobStatusPending || job.ScheduledAt.After(now) {
			continue
		}
		if job.StartedAt != nil && job.StartedAt.After(now.Add(-lease)) {
			continue
		}
		due = append(due, *job)
		if len(due) == limit {
			break
		}
	}
	return due, nil
}

func (st *fakeStore) LeaseJob(_ context.Context, id uuid.UUID, now time.Time, lease time.Duration) (*domain.Job, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	job, ok := st.jobs[id]
	if !ok || job.Status != domain.JobStatusPending {
		return nil, nil
	}
	if job.StartedAt != nil && job.StartedAt.After(now.Add(-lease)) {
		return nil, nil
	}
	started := now
	job.StartedAt = &started
	job.Attempts++
	cp := *job
	return &cp, nil
}

func (st *fakeStore) CompleteJob(_ context.Context, id uuid.UUID) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if job, ok := st.jobs[id]; ok && job.Status == domain.JobStatusPending {
		job.Status = domain.JobStatusCompleted
	}
	return nil
}

func (st *fakeStore) FailJob(_ context.Context, id uuid.UUID, cause string) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if job, ok := st.jobs[id]; ok && job.Status == domain.JobStatusPending {
		job.Status = domain.JobStatusFailed
		job.Error = &cause
	}
	return nil
}

func (st *fakeStore) InsertAttempt(_ context.Context, a domain.CallAttempt) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.attempts[a.ProviderCallID]; ok {
		return fmt.Errorf("duplicate provider call id %q", a.ProviderCallID)
	}
	cp := a
	st.attempts[a.ProviderCallID] = &cp
	return nil
}

func (st *fakeStore) AttemptByProviderCallID(_ context.Context, providerCallID string) (*domain.CallAttempt, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if a, ok := st.attempts[providerCallID]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, nil
}

func (st *fakeStore) RecordAttemptOutcome(_ context.Context, providerCallID, providerStatus string, outcome domain.CallOutcome, durationSeconds int, completedAt time.Time) (*domain.CallAttempt, bool, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	a, ok := st.attempts[providerCallID]
	if !ok {
		return nil, false, nil
	}
	if a.Outcome != domain.OutcomeInitiated {
		cp := *a
		return &cp, false, nil
	}
	a.ProviderStatus = providerStatus
	a.Outcome = outcome
	a.DurationSeconds = durationSeconds
	a.CompletedAt = &completedAt
	cp := *a
	return &cp, true, nil
}

func (st *fakeStore) HasAnsweredAttempt(_ context.Context, leadID uuid.UUID) (bool, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	for _, a := range st.attempts {
		if a.LeadID == leadID && a.Outcome == domain.OutcomeSuccessful {
			return true, nil
		}
	}
	return false, nil
}

func (st *fakeStore) AttemptsForLead(_ context.Context, leadID uuid.UUID, limit int) ([]domain.CallAttempt, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	var attempts []domain.CallAttempt
	for _, a := range st.attempts {
		if a.LeadID == leadID {
			attempts = append(attempts, *a)
		}
	}
	if limit > 0 && len(attempts) > limit {
		attempts = attempts[:limit]
	}
	return attempts, nil
}

func (st *fakeStore) AppendTimeline(_ context.Context, entry repository.TimelineEntry) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.timeline = append(st.timeline, entry)
	return nil
}

func (st *fakeStore) TimelineForLead(_ context.Context, leadID uuid.UUID, limit int) ([]repository.TimelineEvent, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	var events []repository.TimelineEvent
	for _, e := range st.timeline {
		if e.LeadID == leadID {
			events = append(events, repository.TimelineEvent{
				ID:        uuid.New(),
				LeadID:    e.LeadID,
				EventType: e.EventType,
				Title:     e.Title,
				Summary:   e.Summary,
				ActorName: e.ActorName,
			})
		}
	}
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

func (st *fakeStore) pendingJobs(leadID uuid.UUID) []domain.Job {
	st.mu.Lock()
	defer st.mu.Unlock()
	var pending []domain.Job
	for _, job := range st.jobs {
		if job.LeadID == leadID && job.Status == domain.JobStatusPending {
			pending = append(pending, *job)
		}
	}
	return pending
}

func (st *fakeStore) timelineTypes() []string {
	st.mu.Lock()
	defer st.mu.Unlock()
	var types []string
	for _, e := range st.timeline {
		types = append(types, e.EventType)
	}
	return types
}

type fakeLeads struct {
	mu    sync.Mutex
	leads map[uuid.UUID]domain.LeadContact
}

func newFakeLeads() *fakeLeads {
	return &fakeLeads{leads: make(map[uuid.UUID]domain.LeadContact)}
}

func (f *fakeLeads) add(lead domain.LeadContact) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leads[lead.ID] = lead
}

func (f *fakeLeads) setDNC(id uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	lead := f.leads[id]
	lead.DoNotCall = true
	f.leads[id] = lead
}

func (f *fakeLeads) GetContactInfo(_ context.Context, leadID uuid.UUID) (domain.LeadContact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	lead, ok := f.leads[leadID]
	if !ok {
		return domain.LeadContact{}, apperr.NotFound("lead not found")
	}
	return lead, nil
}

func (f *fakeLeads) SetDoNotCall(_ context.Context, leadID uuid.UUID) error {
	f.setDNC(leadID)
	return nil
}

type fakeDialer struct {
	mu     sync.Mutex
	calls  []CallRequest
	nextID int
	err    error
}

func (f *fakeDialer) PlaceCall(_ context.Context, req CallRequest) (CallResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return CallResult{}, f.err
	}
	f.nextID++
	f.calls = append(f.calls, req)
	return CallResult{ProviderCallID: fmt.Sprintf("call-%d", f.nextID), Status: "queued"}, nil
}

func (f *fakeDialer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeAlerts struct {
	mu      sync.Mutex
	details []string
}

func (f *fakeAlerts) IntegrityViolation(_ context.Context, _ uuid.UUID, detail string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.details = append(f.details, detail)
}

// testHarness bundles the engine with its fakes at a frozen clock.
type testHarness struct {
	svc    *Service
	store  *fakeStore
	leads  *fakeLeads
	dialer *fakeDialer
	alerts *fakeAlerts
}

func newTestHarness(now time.Time) *testHarness {
	store := newFakeStore()
	leads := newFakeLeads()
	dialer := &fakeDialer{}
	alerts := &fakeAlerts{}
	svc := New(store, leads, leads, dialer, alerts, logger.New("development"), Config{
		Policy:          domain.DefaultPolicy(),
		DefaultTimezone: "America/New_York",
	})
	svc.now = func() time.Time { return now }
	return &testHarness{svc: svc, store: store, leads: leads, dialer: dialer, alerts: alerts}
}

func (h *testHarness) setNow(now time.Time) {
	h.svc.now = func() time.Time { return now }
}

func (h *testHarness) addLead(state string) uuid.UUID {
	id := uuid.New()
	h.leads.add(domain.LeadContact{
		ID:        id,
		FirstName: "Sam",
		LastName:  "Harper",
		Phone:     "+12145550123",
		State:     state,
		SignupAt:  time.Date(2026, 1, 26, 17, 30, 0, 0, time.UTC),
	})
	return id
}

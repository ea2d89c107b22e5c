// Package service implements the outbound-contact engine: the dispatcher that
// evaluates due schedules, the executor that places calls, and the handlers
// that fold vendor callbacks back into schedule state.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"outreach_backend/internal/outreach/domain"
	"outreach_backend/internal/outreach/repository"
)

// Store is the persistence surface the engine runs against. The pgx
// repository implements it in production; tests use an in-memory fake.
type Store interface {
	ActivateSchedule(ctx context.Context, leadID uuid.UUID, nextAttemptAt time.Time, timeline *repository.TimelineEntry) (domain.Schedule, bool, error)
	ScheduleByLeadID(ctx context.Context, leadID uuid.UUID) (*domain.Schedule, error)
	DueScheduleLeadIDs(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
	AdvanceSchedule(ctx context.Context, p repository.AdvanceParams) (*domain.Schedule, error)
	DeactivateSchedule(ctx context.Context, leadID uuid.UUID, reason string, timeline *repository.TimelineEntry) (bool, error)

	PendingJob(ctx context.Context, leadID uuid.UUID, jobType domain.JobType) (*domain.Job, error)
	JobByID(ctx context.Context, id uuid.UUID) (*domain.Job, error)
	DueJobs(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]domain.Job, error)
	LeaseJob(ctx context.Context, id uuid.UUID, now time.Time, lease time.Duration) (*domain.Job, error)
	CompleteJob(ctx context.Context, id uuid.UUID) error
	FailJob(ctx context.Context, id uuid.UUID, cause string) error

	InsertAttempt(ctx context.Context, a domain.CallAttempt) error
	AttemptByProviderCallID(ctx context.Context, providerCallID string) (*domain.CallAttempt, error)
	RecordAttemptOutcome(ctx context.Context, providerCallID, providerStatus string, outcome domain.CallOutcome, durationSeconds int, completedAt time.Time) (*domain.CallAttempt, bool, error)
	HasAnsweredAttempt(ctx context.Context, leadID uuid.UUID) (bool, error)
	AttemptsForLead(ctx context.Context, leadID uuid.UUID, limit int) ([]domain.CallAttempt, error)

	AppendTimeline(ctx context.Context, entry repository.TimelineEntry) error
	TimelineForLead(ctx context.Context, leadID uuid.UUID, limit int) ([]repository.TimelineEvent, error)
}

// LeadReader projects the contact slice of a lead the engine needs.
type LeadReader interface {
	GetContactInfo(ctx context.Context, leadID uuid.UUID) (domain.LeadContact, error)
}

// LeadWriter flags leads when the conversation analysis demands it.
type LeadWriter interface {
	SetDoNotCall(ctx context.Context, leadID uuid.UUID) error
}

// CallRequest is the order handed to the voice vendor.
type CallRequest struct {
	To               string
	DynamicVariables map[string]string
}

// CallResult is the vendor's synchronous acceptance of a call.
type CallResult struct {
	ProviderCallID string
	Status         string
}

// Dialer places outbound calls through the voice vendor.
type Dialer interface {
	PlaceCall(ctx context.Context, req CallRequest) (CallResult, error)
}

// AlertNotifier raises operator alerts for integrity violations the engine
// cannot repair on its own. Implementations must be safe to call with a nil
// receiver doing nothing, so alerting stays optional.
type AlertNotifier interface {
	IntegrityViolation(ctx context.Context, leadID uuid.UUID, detail string)
}

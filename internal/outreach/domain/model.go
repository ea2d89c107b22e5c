// Package domain holds the outbound-contact scheduling model and the
// canonical contact policy. Everything here is pure: no storage, no clock
// other than what callers pass in.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// JobType identifies the kind of work a contact job carries. It is a closed
// enum; the executor dispatches through a handler table keyed by this type.
type JobType string

const (
	// JobTypeInitialCall places an outbound call to the lead.
	JobTypeInitialCall JobType = "initial_call"
)

// AllJobTypes lists every job type a schedule mirrors. The synchronizer
// maintains one pending job per entry for each active schedule.
var AllJobTypes = []JobType{JobTypeInitialCall}

// JobStatus is the lifecycle state of a contact job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// Schedule is the durable per-lead retry state. One row per lead; the
// synchronizer keeps exactly one pending Job mirroring NextAttemptAt while
// the schedule is active.
type Schedule struct {
	ID                uuid.UUID
	LeadID            uuid.UUID
	Active            bool
	NextAttemptAt     time.Time
	AttemptsToday     int
	RetryCountBlock   int
	LastAttemptAt     *time.Time
	DeactivatedReason *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Job is a queued unit of work mirroring a schedule's due time.
type Job struct {
	ID          uuid.UUID
	LeadID      uuid.UUID
	Type        JobType
	Status      JobStatus
	ScheduledAt time.Time
	StartedAt   *time.Time
	Error       *string
	Attempts    int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CallOutcome is the normalized result of one placed call.
type CallOutcome string

const (
	// OutcomeInitiated marks an attempt handed to the vendor, no delivery
	// status received yet.
	OutcomeInitiated CallOutcome = "initiated"
	// OutcomeSuccessful means the lead answered and stayed on the line past
	// the answer-duration threshold.
	OutcomeSuccessful CallOutcome = "successful"
	// OutcomeRejected covers busy, declined, cancelled, and completed calls
	// shorter than the threshold.
	OutcomeRejected CallOutcome = "rejected"
	// OutcomeNoAnswer covers unanswered and failed deliveries.
	OutcomeNoAnswer CallOutcome = "no_answer"
)

// Terminal reports whether the outcome is final for the attempt.
func (o CallOutcome) Terminal() bool {
	return o == OutcomeSuccessful || o == OutcomeRejected || o == OutcomeNoAnswer
}

// CallAttempt is one externally placed call, append-only once terminal.
type CallAttempt struct {
	ID              uuid.UUID
	LeadID          uuid.UUID
	ProviderCallID  string
	ProviderStatus  string
	Outcome         CallOutcome
	DurationSeconds int
	StartedAt       time.Time
	CompletedAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Deactivation reasons recorded on a schedule when it stops.
const (
	ReasonDoNotCall         = "do_not_call"
	ReasonAnswered          = "answered"
	ReasonAppointmentBooked = "appointment_booked"
	ReasonLeadDeleted       = "lead_deleted"
)

// Timeline event types emitted by the engine. The timeline is the operator's
// only window into the core, so every schedule/job mutation maps to one.
const (
	EventScheduleActivated     = "schedule_activated"
	EventRescheduledForWindow  = "rescheduled_for_window"
	EventRetryScheduled        = "retry_scheduled"
	EventCallTriggered         = "call_triggered"
	EventCallPlaced            = "call_placed"
	EventCallFailed            = "call_failed"
	EventCallOutcome           = "call_outcome"
	EventSkippedDNC            = "skipped_dnc"
	EventStoppedAnswered       = "stopped_answered"
	EventAppointmentBooked     = "appointment_booked"
	EventConversationAnalyzed  = "conversation_analyzed"
	EventScheduleDeactivated   = "schedule_deactivated"
	EventIntegrityViolation    = "integrity_violation"
)

// LeadContact is the slice of a lead the outreach engine needs to place and
// gate calls. The leads module projects it; outreach never sees full leads.
type LeadContact struct {
	ID        uuid.UUID
	FirstName string
	LastName  string
	Phone     string
	State     string
	SignupAt  time.Time
	DoNotCall bool
}

// ConversationAnalysis is the structured result of the vendor's post-call
// analysis webhook. Only the fields the engine reacts to are modeled.
type ConversationAnalysis struct {
	AppointmentAt *time.Time
	DoNotCall     bool
	Summary       string
}

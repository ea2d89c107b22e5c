// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"time"

	"outreach_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event     = events.Event
	Bus       = events.Bus
	Handler   = events.Handler
	BaseEvent = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Leads Domain Events
// =============================================================================

// LeadCreated is published when a new lead enters the CRM. The outreach
// module reacts by activating a contact schedule.
type LeadCreated struct {
	BaseEvent
	LeadID    uuid.UUID `json:"leadId"`
	Phone     string    `json:"phone"`
	State     string    `json:"state"`
	Source    string    `json:"source,omitempty"`
	DoNotCall bool      `json:"doNotCall"`
}

func (e LeadCreated) EventName() string { return "leads.created" }

// LeadDoNotCallSet is published when a lead's do-not-call flag flips on,
// from whatever source (UI edit, ingestion update, conversation analysis).
type LeadDoNotCallSet struct {
	BaseEvent
	LeadID uuid.UUID `json:"leadId"`
}

func (e LeadDoNotCallSet) EventName() string { return "leads.do_not_call.set" }

// LeadDeleted is published when a lead is removed. Scheduling state cascades
// away with the row; subscribers only need to stop in-flight work.
type LeadDeleted struct {
	BaseEvent
	LeadID uuid.UUID `json:"leadId"`
}

func (e LeadDeleted) EventName() string { return "leads.deleted" }

// =============================================================================
// Outreach Domain Events
// =============================================================================

// AppointmentBooked is published when post-call analysis reports a booked
// appointment. Terminal for the lead's contact schedule.
type AppointmentBooked struct {
	BaseEvent
	LeadID        uuid.UUID `json:"leadId"`
	AppointmentAt time.Time `json:"appointmentAt"`
}

func (e AppointmentBooked) EventName() string { return "outreach.appointment.booked" }

// CallAnswered is published when a delivery callback normalizes to a
// successful (answered) outcome.
type CallAnswered struct {
	BaseEvent
	LeadID          uuid.UUID `json:"leadId"`
	ProviderCallID  string    `json:"providerCallId"`
	DurationSeconds int       `json:"durationSeconds"`
}

func (e CallAnswered) EventName() string { return "outreach.call.answered" }

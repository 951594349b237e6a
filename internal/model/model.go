// Package model defines the core domain types for the campus event engine.
package model

import "time"

// EventStatus is the moderation state of an event.
type EventStatus string

const (
	EventDraft         EventStatus = "draft"
	EventPendingReview EventStatus = "pending_review"
	EventActive        EventStatus = "active"
	EventRejected      EventStatus = "rejected"
	EventArchived      EventStatus = "archived"
)

// Valid reports whether s is a known event status.
func (s EventStatus) Valid() bool {
	switch s {
	case EventDraft, EventPendingReview, EventActive, EventRejected, EventArchived:
		return true
	}
	return false
}

// Editable reports whether organizers may change content fields in this state.
func (s EventStatus) Editable() bool {
	return s == EventDraft || s == EventRejected
}

var moderationTransitions = map[EventStatus][]EventStatus{
	EventDraft:         {EventPendingReview},
	EventRejected:      {EventPendingReview},
	EventPendingReview: {EventActive, EventRejected},
	EventActive:        {EventArchived},
}

// CanTransitionTo reports whether the moderation workflow allows moving from
// s to next. Archived is terminal.
func (s EventStatus) CanTransitionTo(next EventStatus) bool {
	for _, to := range moderationTransitions[s] {
		if to == next {
			return true
		}
	}
	return false
}

// Event represents an event created by an organizer and gated by moderation.
type Event struct {
	ID              string      `json:"id"`
	Title           string      `json:"title"`
	Description     string      `json:"description"`
	Location        string      `json:"location"`
	Category        string      `json:"category"`
	StartsAt        time.Time   `json:"starts_at"`
	Capacity        int         `json:"max_participants"`
	OrganizerID     string      `json:"organizer_id"`
	Status          EventStatus `json:"status"`
	RejectionReason string      `json:"rejection_reason,omitempty"`
	RegisteredCount int         `json:"registered_count"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// Unlimited reports whether the event accepts any number of registrations.
func (e *Event) Unlimited() bool {
	return e.Capacity == 0
}

// Remaining returns the number of available seats, or -1 when unlimited.
func (e *Event) Remaining() int {
	if e.Unlimited() {
		return -1
	}
	if n := e.Capacity - e.RegisteredCount; n > 0 {
		return n
	}
	return 0
}

// IsFull returns true when no seats remain.
func (e *Event) IsFull() bool {
	return !e.Unlimited() && e.RegisteredCount >= e.Capacity
}

// RegistrationStatus is the state of one student's claim on one event.
type RegistrationStatus string

const (
	RegistrationConfirmed RegistrationStatus = "confirmed"
	RegistrationCheckedIn RegistrationStatus = "checked_in"
	RegistrationCancelled RegistrationStatus = "cancelled"
)

// Registration represents a student's enrollment for an event.
type Registration struct {
	ID          string             `json:"id"`
	EventID     string             `json:"event_id"`
	StudentID   string             `json:"student_id"`
	Status      RegistrationStatus `json:"status"`
	QRToken     string             `json:"qr_token"`
	CheckedInAt *time.Time         `json:"checked_in_at"`
	CancelledAt *time.Time         `json:"cancelled_at,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
}

// Active reports whether the registration still holds a seat.
func (r *Registration) Active() bool {
	return r.Status != RegistrationCancelled
}

// EventStats is a read-only aggregate for reporting consumers.
type EventStats struct {
	EventID    string `json:"event_id"`
	Capacity   int    `json:"max_participants"`
	Registered int    `json:"registered"`
	CheckedIn  int    `json:"checked_in"`
	Cancelled  int    `json:"cancelled"`
}

// NotificationType names the transition that produced a notification.
type NotificationType string

const (
	NotifyEventApproved         NotificationType = "event_approved"
	NotifyEventRejected         NotificationType = "event_rejected"
	NotifyEventArchived         NotificationType = "event_archived"
	NotifyEventDeleted          NotificationType = "event_deleted"
	NotifyRegistrationConfirmed NotificationType = "registration_confirmed"
	NotifyRegistrationCancelled NotificationType = "registration_cancelled"
)

// Notification is an append-only, recipient-addressed advisory record.
type Notification struct {
	ID          string            `json:"id"`
	RecipientID string            `json:"recipient_id"`
	Type        NotificationType  `json:"type"`
	Payload     map[string]string `json:"payload"`
	CreatedAt   time.Time         `json:"created_at"`
	ReadAt      *time.Time        `json:"read_at,omitempty"`
}

// EventFilter narrows event listings.
type EventFilter struct {
	Status      EventStatus
	Category    string
	OrganizerID string
}

package model

import (
	"errors"
	"strings"
)

// Expected, user-facing outcomes. Callers branch on these with errors.Is.
var (
	ErrNotFound                 = errors.New("not found")
	ErrUnauthorized             = errors.New("actor is not allowed to perform this action")
	ErrEventFull                = errors.New("event is fully booked")
	ErrAlreadyRegistered        = errors.New("student already registered for this event")
	ErrCannotCancelAfterCheckIn = errors.New("registration cannot be cancelled after check-in")
	ErrInvalidTicket            = errors.New("ticket is not valid for this event")
	ErrTicketCancelled          = errors.New("ticket belongs to a cancelled registration")
	ErrIncompleteEvent          = errors.New("event is missing required fields")
	ErrStaleModerationState     = errors.New("event status changed concurrently")
	ErrEventNotOpen             = errors.New("event is not open for registration")
	ErrEventNotEditable         = errors.New("event can only be edited while draft or rejected")
	ErrEventHasRegistrations    = errors.New("event has active registrations")
	ErrReasonRequired           = errors.New("rejection reason is required")
	ErrValidation               = errors.New("validation failed")
)

// IncompleteEventError lists the fields that block a submission.
type IncompleteEventError struct {
	Missing []string
}

func (e *IncompleteEventError) Error() string {
	return ErrIncompleteEvent.Error() + ": " + strings.Join(e.Missing, ", ")
}

// Is matches ErrIncompleteEvent.
func (e *IncompleteEventError) Is(target error) bool {
	return target == ErrIncompleteEvent
}

// ValidationError reports a malformed request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// Is matches ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Machine-readable reasons carried in API error bodies.
const (
	ReasonNotFound                 = "NotFound"
	ReasonUnauthorized             = "Unauthorized"
	ReasonEventFull                = "EventFull"
	ReasonAlreadyRegistered        = "AlreadyRegistered"
	ReasonCannotCancelAfterCheckIn = "CannotCancelAfterCheckIn"
	ReasonInvalidTicket            = "InvalidTicket"
	ReasonTicketCancelled          = "TicketCancelled"
	ReasonIncompleteEvent          = "IncompleteEvent"
	ReasonStaleModerationState     = "StaleModerationState"
	ReasonEventNotOpen             = "EventNotOpen"
	ReasonEventNotEditable         = "EventNotEditable"
	ReasonEventHasRegistrations    = "EventHasRegistrations"
	ReasonReasonRequired           = "ReasonRequired"
	ReasonValidationFailed         = "ValidationFailed"
	ReasonInternalError            = "InternalError"
)

var reasons = []struct {
	err    error
	reason string
}{
	{ErrNotFound, ReasonNotFound},
	{ErrUnauthorized, ReasonUnauthorized},
	{ErrEventFull, ReasonEventFull},
	{ErrAlreadyRegistered, ReasonAlreadyRegistered},
	{ErrCannotCancelAfterCheckIn, ReasonCannotCancelAfterCheckIn},
	{ErrInvalidTicket, ReasonInvalidTicket},
	{ErrTicketCancelled, ReasonTicketCancelled},
	{ErrIncompleteEvent, ReasonIncompleteEvent},
	{ErrStaleModerationState, ReasonStaleModerationState},
	{ErrEventNotOpen, ReasonEventNotOpen},
	{ErrEventNotEditable, ReasonEventNotEditable},
	{ErrEventHasRegistrations, ReasonEventHasRegistrations},
	{ErrReasonRequired, ReasonReasonRequired},
	{ErrValidation, ReasonValidationFailed},
}

// Reason maps err to its machine-readable reason. Anything outside the
// domain taxonomy is an InternalError.
func Reason(err error) string {
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.reason
		}
	}
	return ReasonInternalError
}

// IsExpected reports whether err is a domain outcome rather than a system
// failure.
func IsExpected(err error) bool {
	return Reason(err) != ReasonInternalError
}

// Package service implements business logic, validation, and orchestration
// between HTTP handlers and the repository layer: the moderation workflow,
// capacity-constrained registration, ticket check-in, and the side effects
// they fan out.
package service

import (
	"context"
	"time"

	"github.com/Shivanand-hulikatti/campus-event-engine/internal/model"
)

// TxRunner runs fn as one unit of work.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// EventStore persists events.
type EventStore interface {
	Create(ctx context.Context, e *model.Event) error
	GetByID(ctx context.Context, id string) (*model.Event, error)
	GetForUpdate(ctx context.Context, id string) (*model.Event, error)
	List(ctx context.Context, f model.EventFilter) ([]model.Event, error)
	ListByIDs(ctx context.Context, ids []string) ([]model.Event, error)
	UpdateContent(ctx context.Context, e *model.Event) (bool, error)
	CompareAndSetStatus(ctx context.Context, id string, from, to model.EventStatus, reason string, at time.Time) (bool, error)
	Delete(ctx context.Context, id string) error
}

// RegistrationStore persists registrations.
type RegistrationStore interface {
	CountActive(ctx context.Context, eventID string) (int, error)
	FindActive(ctx context.Context, eventID, studentID string) (*model.Registration, error)
	Create(ctx context.Context, reg *model.Registration) error
	GetByID(ctx context.Context, id string) (*model.Registration, error)
	GetForUpdate(ctx context.Context, id string) (*model.Registration, error)
	GetByTokenForUpdate(ctx context.Context, token string) (*model.Registration, error)
	MarkCheckedIn(ctx context.Context, id string, at time.Time) (bool, error)
	MarkCancelled(ctx context.Context, id string, at time.Time) (bool, error)
	CancelConfirmed(ctx context.Context, eventID string, at time.Time) ([]model.Registration, error)
	ListByEvent(ctx context.Context, eventID string) ([]model.Registration, error)
	ListByStudent(ctx context.Context, studentID string) ([]model.Registration, error)
	Stats(ctx context.Context, eventID string) (model.EventStats, error)
}

// FavoriteStore keeps per-student favorite markers.
type FavoriteStore interface {
	Toggle(ctx context.Context, studentID, eventID string) (bool, error)
	IsFavorite(ctx context.Context, studentID, eventID string) (bool, error)
	List(ctx context.Context, studentID string) ([]string, error)
	Remove(ctx context.Context, studentID, eventID string) error
}

// NotificationStore is the recipient inbox.
type NotificationStore interface {
	ListByRecipient(ctx context.Context, recipientID string, limit int) ([]model.Notification, error)
	MarkRead(ctx context.Context, recipientID, id string, at time.Time) error
}

// Publisher accepts notifications after a transition has committed. It must
// not block and must not report delivery failures.
type Publisher interface {
	Publish(notes ...model.Notification)
}

// TicketIssuer mints QR tokens.
type TicketIssuer interface {
	Issue(registrationID string) (string, error)
}

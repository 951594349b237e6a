package service

import (
	"context"

	"github.com/Shivanand-hulikatti/campus-event-engine/internal/clock"
	"github.com/Shivanand-hulikatti/campus-event-engine/internal/model"
)

// DefaultInboxLimit caps one inbox poll.
const DefaultInboxLimit = 50

// InboxService serves the polling notification inbox.
type InboxService struct {
	store NotificationStore
	clock clock.Clock
}

// NewInboxService constructs an InboxService.
func NewInboxService(store NotificationStore, clk clock.Clock) *InboxService {
	return &InboxService{store: store, clock: clk}
}

// List returns the actor's newest notifications.
func (s *InboxService) List(ctx context.Context, actor model.Actor, limit int) ([]model.Notification, error) {
	if actor.ID == "" {
		return nil, model.ErrUnauthorized
	}
	if limit <= 0 || limit > DefaultInboxLimit {
		limit = DefaultInboxLimit
	}
	return s.store.ListByRecipient(ctx, actor.ID, limit)
}

// MarkRead marks one of the actor's notifications as read. Marking twice
// keeps the first read time.
func (s *InboxService) MarkRead(ctx context.Context, actor model.Actor, id string) error {
	if actor.ID == "" {
		return model.ErrUnauthorized
	}
	return s.store.MarkRead(ctx, actor.ID, id, s.clock.Now())
}

package fanout

import (
	"context"

	"github.com/Shivanand-hulikatti/campus-event-engine/internal/model"
)

// InboxStore persists notifications for clients that poll their inbox.
type InboxStore interface {
	Insert(ctx context.Context, n model.Notification) error
}

// InboxSink writes notifications to the polled inbox table.
type InboxSink struct {
	store InboxStore
}

// NewInboxSink constructs an InboxSink.
func NewInboxSink(store InboxStore) *InboxSink {
	return &InboxSink{store: store}
}

// Name identifies the sink in logs.
func (s *InboxSink) Name() string { return "inbox" }

// Deliver stores the notification in the recipient's inbox.
func (s *InboxSink) Deliver(ctx context.Context, n model.Notification) error {
	return s.store.Insert(ctx, n)
}

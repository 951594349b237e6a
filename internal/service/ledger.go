package service

import (
	"context"
	"time"

	"github.com/Shivanand-hulikatti/campus-event-engine/internal/model"
)

// Ledger answers "can one more registration be accepted?" for an event.
//
// It keeps no counter of its own. The registered count is always the number
// of non-cancelled registration rows, read under the event row lock that the
// caller's transaction already holds, so two admissions for the same event
// can never observe the same count.
type Ledger struct {
	regs RegistrationStore
}

// NewLedger constructs a Ledger over the registration store.
func NewLedger(regs RegistrationStore) *Ledger {
	return &Ledger{regs: regs}
}

// TryReserve re-reads the live count and inserts reg if a seat is free,
// returning model.ErrEventFull otherwise. The caller must hold the lock on
// event's row for the rest of the transaction.
func (l *Ledger) TryReserve(ctx context.Context, event *model.Event, reg *model.Registration) error {
	count, err := l.regs.CountActive(ctx, event.ID)
	if err != nil {
		return err
	}
	if !event.Unlimited() && count >= event.Capacity {
		return model.ErrEventFull
	}
	if err := l.regs.Create(ctx, reg); err != nil {
		return err
	}
	event.RegisteredCount = count + 1
	return nil
}

// Release frees the seat held by a confirmed registration by cancelling it.
// It reports false when the registration was no longer confirmed.
func (l *Ledger) Release(ctx context.Context, reg *model.Registration, at time.Time) (bool, error) {
	return l.regs.MarkCancelled(ctx, reg.ID, at)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/Shivanand-hulikatti/campus-event-engine/internal/clock"
	"github.com/Shivanand-hulikatti/campus-event-engine/internal/model"
	"github.com/Shivanand-hulikatti/campus-event-engine/internal/ticket"
)

// RegistrationService drives the registration state machine:
// confirmed -> checked_in, confirmed -> cancelled.
type RegistrationService struct {
	tx        TxRunner
	events    EventStore
	regs      RegistrationStore
	ledger    *Ledger
	issuer    TicketIssuer
	publisher Publisher
	clock     clock.Clock
	logger    *slog.Logger
}

// RegistrationDeps groups the collaborators of RegistrationService.
type RegistrationDeps struct {
	Tx            TxRunner
	Events        EventStore
	Registrations RegistrationStore
	Issuer        TicketIssuer
	Publisher     Publisher
	Clock         clock.Clock
	Logger        *slog.Logger
}

// NewRegistrationService constructs a RegistrationService.
func NewRegistrationService(d RegistrationDeps) *RegistrationService {
	return &RegistrationService{
		tx:        d.Tx,
		events:    d.Events,
		regs:      d.Registrations,
		ledger:    NewLedger(d.Registrations),
		issuer:    d.Issuer,
		publisher: d.Publisher,
		clock:     d.Clock,
		logger:    d.Logger.With("component", "registration"),
	}
}

// EnrollResult is the outcome of an enroll call. Created is false when the
// student was already registered and the existing registration is returned.
type EnrollResult struct {
	Registration model.Registration
	Created      bool
}

// Enroll claims a seat for the student. A repeated call for the same event
// returns the original registration and token instead of a second seat.
func (s *RegistrationService) Enroll(ctx context.Context, actor model.Actor, eventID string) (EnrollResult, error) {
	if actor.Role != model.RoleStudent || actor.ID == "" {
		return EnrollResult{}, model.ErrUnauthorized
	}

	var (
		result EnrollResult
		event  *model.Event
	)
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		ev, err := s.events.GetForUpdate(ctx, eventID)
		if err != nil {
			return err
		}
		event = ev

		existing, err := s.regs.FindActive(ctx, eventID, actor.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			result = EnrollResult{Registration: *existing}
			return nil
		}

		now := s.clock.Now()
		if ev.Status != model.EventActive {
			return model.ErrEventNotOpen
		}
		if !ev.StartsAt.IsZero() && !now.Before(ev.StartsAt) {
			return model.ErrEventNotOpen
		}

		reg := model.Registration{
			ID:        uuid.NewString(),
			EventID:   eventID,
			StudentID: actor.ID,
			Status:    model.RegistrationConfirmed,
			CreatedAt: now,
		}
		if reg.QRToken, err = s.issuer.Issue(reg.ID); err != nil {
			return err
		}
		if err := s.ledger.TryReserve(ctx, ev, &reg); err != nil {
			return err
		}
		result = EnrollResult{Registration: reg, Created: true}
		return nil
	})
	if errors.Is(err, model.ErrAlreadyRegistered) {
		// Lost a race on the unique index; the winner's row is committed.
		existing, ferr := s.regs.FindActive(ctx, eventID, actor.ID)
		if ferr != nil {
			return EnrollResult{}, ferr
		}
		if existing != nil {
			return EnrollResult{Registration: *existing}, nil
		}
	}
	if err != nil {
		return EnrollResult{}, err
	}

	if result.Created {
		s.logger.Info("registration confirmed",
			"event_id", eventID, "student_id", actor.ID, "registration_id", result.Registration.ID,
			"registered", event.RegisteredCount, "capacity", event.Capacity)
		s.publisher.Publish(model.Notification{
			RecipientID: actor.ID,
			Type:        model.NotifyRegistrationConfirmed,
			Payload: map[string]string{
				"event_id":        event.ID,
				"event_title":     event.Title,
				"registration_id": result.Registration.ID,
			},
		})
	}
	return result, nil
}

// Cancel releases the student's seat. Cancelling twice is a no-op; cancelling
// after check-in fails with model.ErrCannotCancelAfterCheckIn.
func (s *RegistrationService) Cancel(ctx context.Context, actor model.Actor, registrationID string) (*model.Registration, error) {
	current, err := s.regs.GetByID(ctx, registrationID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && (actor.Role != model.RoleStudent || actor.ID != current.StudentID) {
		return nil, model.ErrUnauthorized
	}

	var (
		reg     *model.Registration
		event   *model.Event
		changed bool
	)
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		// Lock order matches Enroll: event row first, then the registration.
		ev, err := s.events.GetForUpdate(ctx, current.EventID)
		if err != nil {
			return err
		}
		event = ev

		r, err := s.regs.GetForUpdate(ctx, registrationID)
		if err != nil {
			return err
		}
		switch r.Status {
		case model.RegistrationCheckedIn:
			return model.ErrCannotCancelAfterCheckIn
		case model.RegistrationCancelled:
			reg, changed = r, false
			return nil
		}

		now := s.clock.Now()
		ok, err := s.ledger.Release(ctx, r, now)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("cancel registration %s: row changed under lock", r.ID)
		}
		r.Status = model.RegistrationCancelled
		r.CancelledAt = &now
		reg, changed = r, true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.logger.Info("registration cancelled",
			"event_id", reg.EventID, "student_id", reg.StudentID, "registration_id", reg.ID)
		s.publisher.Publish(model.Notification{
			RecipientID: reg.StudentID,
			Type:        model.NotifyRegistrationCancelled,
			Payload: map[string]string{
				"event_id":        event.ID,
				"event_title":     event.Title,
				"registration_id": reg.ID,
			},
		})
	}
	return reg, nil
}

// CheckInResult is the outcome of a check-in. AlreadyCheckedIn is true when
// the ticket had been scanned before; the original timestamp is kept.
type CheckInResult struct {
	Registration     model.Registration
	AlreadyCheckedIn bool
}

// CheckIn validates a scanned or typed ticket for the event and marks the
// registration checked in. Scanning the same ticket again succeeds without
// changing checked_in_at.
func (s *RegistrationService) CheckIn(ctx context.Context, actor model.Actor, eventID, raw string) (CheckInResult, error) {
	if actor.Role != model.RoleOrganizer && !actor.IsAdmin() {
		return CheckInResult{}, model.ErrUnauthorized
	}

	ev, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return CheckInResult{}, err
	}
	if !actor.CanManage(ev) {
		return CheckInResult{}, model.ErrUnauthorized
	}

	tokens := ticket.Candidates(raw)
	if len(tokens) == 0 {
		return CheckInResult{}, model.ErrInvalidTicket
	}

	var result CheckInResult
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		reg, err := s.lockTicket(ctx, ev.ID, tokens)
		if err != nil {
			return err
		}

		switch reg.Status {
		case model.RegistrationCheckedIn:
			result = CheckInResult{Registration: *reg, AlreadyCheckedIn: true}
			return nil
		case model.RegistrationCancelled:
			return model.ErrTicketCancelled
		}

		now := s.clock.Now()
		ok, err := s.regs.MarkCheckedIn(ctx, reg.ID, now)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("check in registration %s: row changed under lock", reg.ID)
		}
		reg.Status = model.RegistrationCheckedIn
		reg.CheckedInAt = &now
		result = CheckInResult{Registration: *reg}
		return nil
	})
	if err != nil {
		return CheckInResult{}, err
	}

	if !result.AlreadyCheckedIn {
		s.logger.Info("registration checked in",
			"event_id", ev.ID, "registration_id", result.Registration.ID, "scanned_by", actor.ID)
	}
	return result, nil
}

// lockTicket locks the first candidate token that belongs to the event.
func (s *RegistrationService) lockTicket(ctx context.Context, eventID string, tokens []string) (*model.Registration, error) {
	for _, token := range tokens {
		reg, err := s.regs.GetByTokenForUpdate(ctx, token)
		if errors.Is(err, model.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if reg.EventID == eventID {
			return reg, nil
		}
	}
	return nil, model.ErrInvalidTicket
}

// ListMine returns the student's registrations.
func (s *RegistrationService) ListMine(ctx context.Context, actor model.Actor) ([]model.Registration, error) {
	if actor.ID == "" {
		return nil, model.ErrUnauthorized
	}
	return s.regs.ListByStudent(ctx, actor.ID)
}

// ListForEvent returns the event's registrations to its organizer or an admin.
func (s *RegistrationService) ListForEvent(ctx context.Context, actor model.Actor, eventID string) ([]model.Registration, error) {
	ev, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !actor.CanManage(ev) {
		return nil, model.ErrUnauthorized
	}
	return s.regs.ListByEvent(ctx, eventID)
}

package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/Shivanand-hulikatti/campus-event-engine/internal/clock"
	"github.com/Shivanand-hulikatti/campus-event-engine/internal/config"
	"github.com/Shivanand-hulikatti/campus-event-engine/internal/model"
)

// EventService handles event content and the moderation workflow.
type EventService struct {
	tx        TxRunner
	events    EventStore
	regs      RegistrationStore
	publisher Publisher
	clock     clock.Clock
	policy    config.ArchivePolicy
	logger    *slog.Logger
}

// EventDeps groups the collaborators of EventService.
type EventDeps struct {
	Tx            TxRunner
	Events        EventStore
	Registrations RegistrationStore
	Publisher     Publisher
	Clock         clock.Clock
	ArchivePolicy config.ArchivePolicy
	Logger        *slog.Logger
}

// NewEventService constructs an EventService.
func NewEventService(d EventDeps) *EventService {
	policy := d.ArchivePolicy
	if policy == "" {
		policy = config.ArchiveRetainTickets
	}
	return &EventService{
		tx:        d.Tx,
		events:    d.Events,
		regs:      d.Registrations,
		publisher: d.Publisher,
		clock:     d.Clock,
		policy:    policy,
		logger:    d.Logger.With("component", "moderation"),
	}
}

// Create stores a new draft owned by the calling organizer.
func (s *EventService) Create(ctx context.Context, actor model.Actor, in EventInput) (*model.Event, error) {
	if actor.ID == "" || (actor.Role != model.RoleOrganizer && !actor.IsAdmin()) {
		return nil, model.ErrUnauthorized
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	e := &model.Event{
		ID:          uuid.NewString(),
		Title:       in.Title,
		Description: in.Description,
		Location:    in.Location,
		Category:    in.Category,
		StartsAt:    in.StartsAt,
		Capacity:    in.Capacity,
		OrganizerID: actor.ID,
		Status:      model.EventDraft,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.events.Create(ctx, e); err != nil {
		return nil, err
	}
	s.logger.Info("event created", "event_id", e.ID, "organizer_id", actor.ID)
	return e, nil
}

// Get returns the event if the actor may see it. Hidden events are reported
// as model.ErrNotFound.
func (s *EventService) Get(ctx context.Context, actor model.Actor, id string) (*model.Event, error) {
	e, err := s.events.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanView(e) {
		return nil, model.ErrNotFound
	}
	return e, nil
}

// List returns the events visible to the actor. Students and other
// organizers only ever see active events; organizers filtering on their own
// id see all of their events.
func (s *EventService) List(ctx context.Context, actor model.Actor, f model.EventFilter) ([]model.Event, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, &model.ValidationError{Field: "status", Message: "unknown status"}
	}
	ownView := actor.Role == model.RoleOrganizer && actor.ID != "" && f.OrganizerID == actor.ID
	if !actor.IsAdmin() && !ownView {
		f.Status = model.EventActive
	}
	return s.events.List(ctx, f)
}

// Update rewrites the content of a draft or rejected event. The event row is
// locked so a concurrent Submit sees either the old or the new content.
func (s *EventService) Update(ctx context.Context, actor model.Actor, id string, in EventInput) (*model.Event, error) {
	var event *model.Event
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		e, err := s.events.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !actor.Owns(e) {
			return model.ErrUnauthorized
		}
		if !e.Status.Editable() {
			return model.ErrEventNotEditable
		}
		if err := in.validate(); err != nil {
			return err
		}

		e.Title = in.Title
		e.Description = in.Description
		e.Location = in.Location
		e.Category = in.Category
		e.StartsAt = in.StartsAt
		e.Capacity = in.Capacity
		e.UpdatedAt = s.clock.Now()

		ok, err := s.events.UpdateContent(ctx, e)
		if err != nil {
			return err
		}
		if !ok {
			return s.lostRace(ctx, id, model.ErrEventNotEditable)
		}
		event = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return event, nil
}

// Submit moves a draft or rejected event into review. Completeness is checked
// under the same row lock as the status swap.
func (s *EventService) Submit(ctx context.Context, actor model.Actor, id string) (*model.Event, error) {
	var event *model.Event
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		e, err := s.events.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !actor.Owns(e) {
			return model.ErrUnauthorized
		}
		if !e.Status.CanTransitionTo(model.EventPendingReview) {
			return model.ErrStaleModerationState
		}
		if err := checkComplete(e); err != nil {
			return err
		}
		if err := s.transition(ctx, e, model.EventPendingReview, ""); err != nil {
			return err
		}
		event = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("event submitted for review", "event_id", event.ID, "organizer_id", actor.ID)
	return event, nil
}

// Approve publishes an event that is pending review.
func (s *EventService) Approve(ctx context.Context, actor model.Actor, id string) (*model.Event, error) {
	if !actor.IsAdmin() {
		return nil, model.ErrUnauthorized
	}
	e, err := s.review(ctx, id, model.EventActive, "")
	if err != nil {
		return nil, err
	}
	s.logger.Info("event approved", "event_id", e.ID, "admin_id", actor.ID)
	s.publisher.Publish(eventNotice(e, model.NotifyEventApproved))
	return e, nil
}

// Reject sends an event back to its organizer with a mandatory reason.
func (s *EventService) Reject(ctx context.Context, actor model.Actor, id, reason string) (*model.Event, error) {
	if !actor.IsAdmin() {
		return nil, model.ErrUnauthorized
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, model.ErrReasonRequired
	}
	e, err := s.review(ctx, id, model.EventRejected, reason)
	if err != nil {
		return nil, err
	}
	s.logger.Info("event rejected", "event_id", e.ID, "admin_id", actor.ID)
	n := eventNotice(e, model.NotifyEventRejected)
	n.Payload["reason"] = reason
	s.publisher.Publish(n)
	return e, nil
}

func (s *EventService) review(ctx context.Context, id string, to model.EventStatus, reason string) (*model.Event, error) {
	e, err := s.events.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.Status != model.EventPendingReview {
		return nil, model.ErrStaleModerationState
	}
	if err := s.transition(ctx, e, to, reason); err != nil {
		return nil, err
	}
	return e, nil
}

// transition applies a compare-and-swap from e.Status to next.
func (s *EventService) transition(ctx context.Context, e *model.Event, next model.EventStatus, reason string) error {
	now := s.clock.Now()
	ok, err := s.events.CompareAndSetStatus(ctx, e.ID, e.Status, next, reason, now)
	if err != nil {
		return err
	}
	if !ok {
		return s.lostRace(ctx, e.ID, model.ErrStaleModerationState)
	}
	e.Status = next
	e.RejectionReason = reason
	e.UpdatedAt = now
	return nil
}

// lostRace distinguishes a concurrent delete from a concurrent transition.
func (s *EventService) lostRace(ctx context.Context, id string, stale error) error {
	if _, err := s.events.GetByID(ctx, id); errors.Is(err, model.ErrNotFound) {
		return model.ErrNotFound
	}
	return stale
}

// Archive retires an active event. Depending on the archive policy it either
// leaves outstanding tickets valid or cancels every confirmed registration
// in the same transaction.
func (s *EventService) Archive(ctx context.Context, actor model.Actor, id string) (*model.Event, error) {
	var (
		event     *model.Event
		cancelled []model.Registration
	)
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		e, err := s.events.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !actor.CanManage(e) {
			return model.ErrUnauthorized
		}
		if !e.Status.CanTransitionTo(model.EventArchived) {
			return model.ErrStaleModerationState
		}
		if err := s.transition(ctx, e, model.EventArchived, ""); err != nil {
			return err
		}
		if s.policy == config.ArchiveCancelRegistrations {
			cancelled, err = s.regs.CancelConfirmed(ctx, e.ID, e.UpdatedAt)
			if err != nil {
				return err
			}
			e.RegisteredCount -= len(cancelled)
		}
		event = e
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("event archived",
		"event_id", event.ID, "actor_id", actor.ID, "policy", string(s.policy), "cancelled", len(cancelled))

	notes := make([]model.Notification, 0, len(cancelled)+1)
	if actor.ID != event.OrganizerID {
		notes = append(notes, eventNotice(event, model.NotifyEventArchived))
	}
	for _, reg := range cancelled {
		notes = append(notes, model.Notification{
			RecipientID: reg.StudentID,
			Type:        model.NotifyRegistrationCancelled,
			Payload: map[string]string{
				"event_id":        event.ID,
				"event_title":     event.Title,
				"registration_id": reg.ID,
				"cause":           "event_archived",
			},
		})
	}
	s.publisher.Publish(notes...)
	return event, nil
}

// Delete removes an event that holds no live registrations.
func (s *EventService) Delete(ctx context.Context, actor model.Actor, id string) error {
	var event *model.Event
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		e, err := s.events.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !actor.CanManage(e) {
			return model.ErrUnauthorized
		}
		n, err := s.regs.CountActive(ctx, e.ID)
		if err != nil {
			return err
		}
		if n > 0 {
			return model.ErrEventHasRegistrations
		}
		if err := s.events.Delete(ctx, e.ID); err != nil {
			return err
		}
		event = e
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("event deleted", "event_id", event.ID, "actor_id", actor.ID)
	if actor.ID != event.OrganizerID {
		s.publisher.Publish(eventNotice(event, model.NotifyEventDeleted))
	}
	return nil
}

// Stats returns registration counts without taking any lock.
func (s *EventService) Stats(ctx context.Context, actor model.Actor, id string) (model.EventStats, error) {
	e, err := s.events.GetByID(ctx, id)
	if err != nil {
		return model.EventStats{}, err
	}
	if !actor.CanManage(e) {
		return model.EventStats{}, model.ErrUnauthorized
	}
	st, err := s.regs.Stats(ctx, id)
	if err != nil {
		return model.EventStats{}, err
	}
	st.EventID = e.ID
	st.Capacity = e.Capacity
	return st, nil
}

func eventNotice(e *model.Event, t model.NotificationType) model.Notification {
	return model.Notification{
		RecipientID: e.OrganizerID,
		Type:        t,
		Payload: map[string]string{
			"event_id":    e.ID,
			"event_title": e.Title,
		},
	}
}

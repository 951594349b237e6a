package service

import (
	"context"
	"log/slog"

	"github.com/Shivanand-hulikatti/campus-event-engine/internal/model"
)

// FavoriteService manages student favorites. Favorites carry no capacity or
// moderation coupling; they only require the event to be visible.
type FavoriteService struct {
	favorites FavoriteStore
	events    EventStore
	logger    *slog.Logger
}

// NewFavoriteService constructs a FavoriteService.
func NewFavoriteService(favorites FavoriteStore, events EventStore, logger *slog.Logger) *FavoriteService {
	return &FavoriteService{
		favorites: favorites,
		events:    events,
		logger:    logger.With("component", "favorites"),
	}
}

// Toggle flips the favorite marker and reports the new state.
func (s *FavoriteService) Toggle(ctx context.Context, actor model.Actor, eventID string) (bool, error) {
	if actor.Role != model.RoleStudent || actor.ID == "" {
		return false, model.ErrUnauthorized
	}
	e, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return false, err
	}
	if !actor.CanView(e) {
		return false, model.ErrNotFound
	}
	return s.favorites.Toggle(ctx, actor.ID, e.ID)
}

// List returns the student's favorite events that are still visible. Markers
// pointing at deleted events are dropped from the store on the way.
func (s *FavoriteService) List(ctx context.Context, actor model.Actor) ([]model.Event, error) {
	if actor.ID == "" {
		return nil, model.ErrUnauthorized
	}
	ids, err := s.favorites.List(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []model.Event{}, nil
	}
	events, err := s.events.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	found := make(map[string]struct{}, len(events))
	visible := make([]model.Event, 0, len(events))
	for i := range events {
		found[events[i].ID] = struct{}{}
		if actor.CanView(&events[i]) {
			visible = append(visible, events[i])
		}
	}
	for _, id := range ids {
		if _, ok := found[id]; ok {
			continue
		}
		if err := s.favorites.Remove(ctx, actor.ID, id); err != nil {
			s.logger.Warn("prune stale favorite", "student_id", actor.ID, "event_id", id, "error", err)
		}
	}
	return visible, nil
}

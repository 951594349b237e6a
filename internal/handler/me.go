package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Shivanand-hulikatti/campus-event-engine/internal/model"
)

type inboxQuery struct {
	Limit int `query:"limit" validate:"gte=0,lte=50"`
}

// ToggleFavorite handles POST /events/{id}/favorite
func (h *Handler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	on, err := h.favorites.Toggle(r.Context(), ActorFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"favorite": on})
}

// MyFavorites handles GET /me/favorites
func (h *Handler) MyFavorites(w http.ResponseWriter, r *http.Request) {
	events, err := h.favorites.List(r.Context(), ActorFrom(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if events == nil {
		events = []model.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

// MyNotifications handles GET /me/notifications?limit=
func (h *Handler) MyNotifications(w http.ResponseWriter, r *http.Request) {
	var q inboxQuery
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			h.badRequest(w, "limit must be a number")
			return
		}
		q.Limit = n
	}
	if err := h.checkStruct(q); err != nil {
		h.writeError(w, r, err)
		return
	}

	notes, err := h.inbox.List(r.Context(), ActorFrom(r.Context()), q.Limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if notes == nil {
		notes = []model.Notification{}
	}
	writeJSON(w, http.StatusOK, notes)
}

// MarkNotificationRead handles POST /me/notifications/{id}/read
func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	if err := h.inbox.MarkRead(r.Context(), ActorFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

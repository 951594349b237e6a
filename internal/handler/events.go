package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Shivanand-hulikatti/campus-event-engine/internal/model"
	"github.com/Shivanand-hulikatti/campus-event-engine/internal/service"
)

type listEventsQuery struct {
	Status      string `query:"status" validate:"omitempty,oneof=draft pending_review active rejected archived"`
	Category    string `query:"category" validate:"max=100"`
	OrganizerID string `query:"organizer_id" validate:"max=100"`
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

// CreateEvent handles POST /events
func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var in service.EventInput
	if err := decodeJSON(r, &in); err != nil {
		h.badRequest(w, "invalid request body: "+err.Error())
		return
	}
	event, err := h.events.Create(r.Context(), ActorFrom(r.Context()), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

// ListEvents handles GET /events
// Supports ?status=, ?category= and ?organizer_id= filters.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := listEventsQuery{
		Status:      q.Get("status"),
		Category:    q.Get("category"),
		OrganizerID: q.Get("organizer_id"),
	}
	if err := h.checkStruct(query); err != nil {
		h.writeError(w, r, err)
		return
	}

	events, err := h.events.List(r.Context(), ActorFrom(r.Context()), model.EventFilter{
		Status:      model.EventStatus(query.Status),
		Category:    query.Category,
		OrganizerID: query.OrganizerID,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	// Return an empty array rather than null for better client compatibility.
	if events == nil {
		events = []model.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

// GetEvent handles GET /events/{id}
func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.events.Get(r.Context(), ActorFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// UpdateEvent handles PUT /events/{id}
func (h *Handler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	var in service.EventInput
	if err := decodeJSON(r, &in); err != nil {
		h.badRequest(w, "invalid request body: "+err.Error())
		return
	}
	event, err := h.events.Update(r.Context(), ActorFrom(r.Context()), chi.URLParam(r, "id"), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// DeleteEvent handles DELETE /events/{id}
func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := h.events.Delete(r.Context(), ActorFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SubmitEvent handles POST /events/{id}/submit
func (h *Handler) SubmitEvent(w http.ResponseWriter, r *http.Request) {
	h.moderate(w, r, h.events.Submit)
}

// ApproveEvent handles POST /events/{id}/approve
func (h *Handler) ApproveEvent(w http.ResponseWriter, r *http.Request) {
	h.moderate(w, r, h.events.Approve)
}

// ArchiveEvent handles POST /events/{id}/archive
func (h *Handler) ArchiveEvent(w http.ResponseWriter, r *http.Request) {
	h.moderate(w, r, h.events.Archive)
}

// RejectEvent handles POST /events/{id}/reject
// Body: {"reason": "..."}
func (h *Handler) RejectEvent(w http.ResponseWriter, r *http.Request) {
	var req rejectRequest
	if err := decodeJSON(r, &req); err != nil {
		h.badRequest(w, "invalid request body: "+err.Error())
		return
	}
	event, err := h.events.Reject(r.Context(), ActorFrom(r.Context()), chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

type moderationFunc func(ctx context.Context, actor model.Actor, id string) (*model.Event, error)

func (h *Handler) moderate(w http.ResponseWriter, r *http.Request, fn moderationFunc) {
	event, err := fn(r.Context(), ActorFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// EventStats handles GET /events/{id}/stats
func (h *Handler) EventStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.events.Stats(r.Context(), ActorFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

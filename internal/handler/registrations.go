package handler

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Shivanand-hulikatti/campus-event-engine/internal/model"
)

// maxScanBody bounds a check-in request; a QR payload is a few hundred bytes.
const maxScanBody = 4 << 10

type enrollResponse struct {
	Registration model.Registration `json:"registration"`
	Reason       string             `json:"reason,omitempty"`
}

type checkInRequest struct {
	Code string `json:"code"`
}

type checkInResponse struct {
	Message          string             `json:"message"`
	AlreadyCheckedIn bool               `json:"already_checked_in"`
	Registration     model.Registration `json:"registration"`
}

// Enroll handles POST /events/{id}/enroll
// A repeated enroll returns 200 with the existing registration and reason
// AlreadyRegistered instead of an error.
func (h *Handler) Enroll(w http.ResponseWriter, r *http.Request) {
	res, err := h.regs.Enroll(r.Context(), ActorFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !res.Created {
		writeJSON(w, http.StatusOK, enrollResponse{Registration: res.Registration, Reason: model.ReasonAlreadyRegistered})
		return
	}
	writeJSON(w, http.StatusCreated, enrollResponse{Registration: res.Registration})
}

// CancelRegistration handles POST /registrations/{id}/cancel
func (h *Handler) CancelRegistration(w http.ResponseWriter, r *http.Request) {
	reg, err := h.regs.Cancel(r.Context(), ActorFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reg)
}

// CheckIn handles POST /events/{id}/check-in
// Accepts {"code": "..."} as JSON or the raw scanned string as the body.
func (h *Handler) CheckIn(w http.ResponseWriter, r *http.Request) {
	raw, err := readScan(r)
	if err != nil {
		h.badRequest(w, "invalid request body: "+err.Error())
		return
	}

	res, err := h.regs.CheckIn(r.Context(), ActorFrom(r.Context()), chi.URLParam(r, "id"), raw)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	msg := "checked in"
	if res.AlreadyCheckedIn {
		msg = "already checked in"
	}
	writeJSON(w, http.StatusOK, checkInResponse{
		Message:          msg,
		AlreadyCheckedIn: res.AlreadyCheckedIn,
		Registration:     res.Registration,
	})
}

func readScan(r *http.Request) (string, error) {
	body, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, maxScanBody))
	if err != nil {
		return "", err
	}
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/json" {
		return string(body), nil
	}
	var req checkInRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return "", err
	}
	return req.Code, nil
}

// ListEventRegistrations handles GET /events/{id}/registrations
func (h *Handler) ListEventRegistrations(w http.ResponseWriter, r *http.Request) {
	regs, err := h.regs.ListForEvent(r.Context(), ActorFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if regs == nil {
		regs = []model.Registration{}
	}
	writeJSON(w, http.StatusOK, regs)
}

// MyRegistrations handles GET /me/registrations
func (h *Handler) MyRegistrations(w http.ResponseWriter, r *http.Request) {
	regs, err := h.regs.ListMine(r.Context(), ActorFrom(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if regs == nil {
		regs = []model.Registration{}
	}
	writeJSON(w, http.StatusOK, regs)
}

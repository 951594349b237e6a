// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/Shivanand-hulikatti/campus-event-engine/internal/model"
	"github.com/Shivanand-hulikatti/campus-event-engine/internal/service"
)

// EventService is the event and moderation surface used by the handlers.
type EventService interface {
	Create(ctx context.Context, actor model.Actor, in service.EventInput) (*model.Event, error)
	Get(ctx context.Context, actor model.Actor, id string) (*model.Event, error)
	List(ctx context.Context, actor model.Actor, f model.EventFilter) ([]model.Event, error)
	Update(ctx context.Context, actor model.Actor, id string, in service.EventInput) (*model.Event, error)
	Delete(ctx context.Context, actor model.Actor, id string) error
	Submit(ctx context.Context, actor model.Actor, id string) (*model.Event, error)
	Approve(ctx context.Context, actor model.Actor, id string) (*model.Event, error)
	Reject(ctx context.Context, actor model.Actor, id, reason string) (*model.Event, error)
	Archive(ctx context.Context, actor model.Actor, id string) (*model.Event, error)
	Stats(ctx context.Context, actor model.Actor, id string) (model.EventStats, error)
}

// RegistrationService is the enrollment and check-in surface.
type RegistrationService interface {
	Enroll(ctx context.Context, actor model.Actor, eventID string) (service.EnrollResult, error)
	Cancel(ctx context.Context, actor model.Actor, registrationID string) (*model.Registration, error)
	CheckIn(ctx context.Context, actor model.Actor, eventID, raw string) (service.CheckInResult, error)
	ListMine(ctx context.Context, actor model.Actor) ([]model.Registration, error)
	ListForEvent(ctx context.Context, actor model.Actor, eventID string) ([]model.Registration, error)
}

// FavoriteService toggles and lists favorites.
type FavoriteService interface {
	Toggle(ctx context.Context, actor model.Actor, eventID string) (bool, error)
	List(ctx context.Context, actor model.Actor) ([]model.Event, error)
}

// InboxService serves the notification inbox.
type InboxService interface {
	List(ctx context.Context, actor model.Actor, limit int) ([]model.Notification, error)
	MarkRead(ctx context.Context, actor model.Actor, id string) error
}

// Services groups the handler dependencies.
type Services struct {
	Events        EventService
	Registrations RegistrationService
	Favorites     FavoriteService
	Inbox         InboxService
}

// Handler holds all HTTP handlers for the campus events API.
type Handler struct {
	events    EventService
	regs      RegistrationService
	favorites FavoriteService
	inbox     InboxService
	logger    *slog.Logger
	validate  *validator.Validate
}

// New constructs a Handler.
func New(svc Services, logger *slog.Logger) *Handler {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("query"), ",")
		if name == "" {
			name, _, _ = strings.Cut(fld.Tag.Get("json"), ",")
		}
		return name
	})
	return &Handler{
		events:    svc.Events,
		regs:      svc.Registrations,
		favorites: svc.Favorites,
		inbox:     svc.Inbox,
		logger:    logger,
		validate:  v,
	}
}

// Routes mounts the API behind the actor middleware.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(RequireActor)

	r.Route("/events", func(r chi.Router) {
		r.Post("/", h.CreateEvent)
		r.Get("/", h.ListEvents)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetEvent)
			r.Put("/", h.UpdateEvent)
			r.Delete("/", h.DeleteEvent)
			r.Post("/submit", h.SubmitEvent)
			r.Post("/approve", h.ApproveEvent)
			r.Post("/reject", h.RejectEvent)
			r.Post("/archive", h.ArchiveEvent)
			r.Post("/enroll", h.Enroll)
			r.Post("/check-in", h.CheckIn)
			r.Get("/registrations", h.ListEventRegistrations)
			r.Get("/stats", h.EventStats)
			r.Post("/favorite", h.ToggleFavorite)
		})
	})
	r.Post("/registrations/{id}/cancel", h.CancelRegistration)
	r.Route("/me", func(r chi.Router) {
		r.Get("/registrations", h.MyRegistrations)
		r.Get("/favorites", h.MyFavorites)
		r.Get("/notifications", h.MyNotifications)
		r.Post("/notifications/{id}/read", h.MarkNotificationRead)
	})
	return r
}

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error   string   `json:"error"`
	Reason  string   `json:"reason"`
	Field   string   `json:"field,omitempty"`
	Missing []string `json:"missing,omitempty"`
}

// statusFor maps a domain reason to its HTTP status.
func statusFor(reason string) int {
	switch reason {
	case model.ReasonNotFound:
		return http.StatusNotFound
	case model.ReasonUnauthorized:
		return http.StatusForbidden
	case model.ReasonEventFull,
		model.ReasonAlreadyRegistered,
		model.ReasonStaleModerationState,
		model.ReasonCannotCancelAfterCheckIn,
		model.ReasonTicketCancelled,
		model.ReasonEventHasRegistrations,
		model.ReasonEventNotEditable,
		model.ReasonEventNotOpen:
		return http.StatusConflict
	case model.ReasonIncompleteEvent,
		model.ReasonInvalidTicket,
		model.ReasonValidationFailed,
		model.ReasonReasonRequired:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// writeError renders err as a JSON error body. Domain outcomes keep their
// message; anything else is logged and hidden behind a generic message.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	reason := model.Reason(err)
	resp := errorResponse{Error: err.Error(), Reason: reason}

	var incomplete *model.IncompleteEventError
	if errors.As(err, &incomplete) {
		resp.Missing = incomplete.Missing
	}
	var verr *model.ValidationError
	if errors.As(err, &verr) {
		resp.Field = verr.Field
	}

	if reason == model.ReasonInternalError {
		h.logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method, "path", r.URL.Path, "error", err)
		resp.Error = "internal error"
	}
	writeJSON(w, statusFor(reason), resp)
}

func (h *Handler) badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg, Reason: model.ReasonValidationFailed})
}

func decodeJSON(r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// checkStruct runs the request validator and converts the first failure to a
// *model.ValidationError.
func (h *Handler) checkStruct(v any) error {
	err := h.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return &model.ValidationError{Field: verrs[0].Field(), Message: "failed " + verrs[0].Tag() + " check"}
	}
	return err
}

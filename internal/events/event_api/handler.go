package event_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"ms-events/internal/events/calendar"
	"ms-events/internal/events/db"
	"ms-events/internal/events/qr"
	"ms-events/internal/events/schema"
	events "ms-events/internal/events/service"
	"ms-events/internal/logger"
	"ms-events/internal/models"
	"ms-events/internal/utils"
)

const (
	msgNotFound       = "Event not found"
	msgInvalidBody    = "Invalid request body"
	msgInvalidEvent   = "Invalid event data"
	msgListFailed     = "Failed to fetch events"
	msgFetchFailed    = "Failed to fetch event"
	msgCreateFailed   = "Failed to create event"
	msgUpdateFailed   = "Failed to update event"
	msgDeleteFailed   = "Failed to delete event"
	msgDeleted        = "Event deleted successfully"
	msgQRFailed       = "Failed to generate QR code"
	msgICSFailed      = "Failed to export event"
	msgStatsFailed    = "Failed to compute event stats"
	msgServiceHealthy = "ok"
)

type Handler struct {
	EventService *events.EventService
	Logger       *logger.Logger
	PublicURL    string
}

func NewHandler(eventService *events.EventService, l *logger.Logger, publicURL string) *Handler {
	return &Handler{
		EventService: eventService,
		Logger:       l,
		PublicURL:    publicURL,
	}
}

type listResponse struct {
	Events []models.Event `json:"events"`
}

type eventResponse struct {
	Event *models.Event `json:"event"`
}

// RegisterRoutes mounts the event routes under /events on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/events", func(r chi.Router) {
		r.Get("/", h.ListEvents)
		r.Post("/", h.CreateEvent)
		r.Get("/stats", h.GetStats)
		r.Get("/{id}", h.GetEvent)
		r.Put("/{id}", h.UpdateEvent)
		r.Delete("/{id}", h.DeleteEvent)
		r.Get("/{id}/qr", h.GetEventQR)
		r.Get("/{id}/ics", h.GetEventICS)
	})
}

func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	list, err := h.EventService.ListEvents(r.Context())
	if err != nil {
		h.fail(w, "ListEvents", msgListFailed, err)
		return
	}
	utils.SendJSON(w, http.StatusOK, listResponse{Events: list})
}

func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	event, err := h.EventService.GetEvent(r.Context(), id)
	if err != nil {
		h.fail(w, "GetEvent", msgFetchFailed, err)
		return
	}
	utils.SendJSON(w, http.StatusOK, event)
}

func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var in models.EventInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.Logger.Warn("API", fmt.Sprintf("CreateEvent: bad body: %v", err))
		utils.SendMessage(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	event, err := h.EventService.CreateEvent(r.Context(), in)
	if err != nil {
		h.fail(w, "CreateEvent", msgCreateFailed, err)
		return
	}
	utils.SendJSON(w, http.StatusCreated, eventResponse{Event: event})
}

func (h *Handler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var in models.EventInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.Logger.Warn("API", fmt.Sprintf("UpdateEvent %s: bad body: %v", id, err))
		utils.SendMessage(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	event, err := h.EventService.UpdateEvent(r.Context(), id, in)
	if err != nil {
		h.fail(w, "UpdateEvent", msgUpdateFailed, err)
		return
	}
	utils.SendJSON(w, http.StatusOK, eventResponse{Event: event})
}

func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, err := h.EventService.DeleteEvent(r.Context(), id); err != nil {
		h.fail(w, "DeleteEvent", msgDeleteFailed, err)
		return
	}
	utils.SendMessage(w, http.StatusOK, msgDeleted)
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.EventService.Stats(r.Context())
	if err != nil {
		h.fail(w, "GetStats", msgStatsFailed, err)
		return
	}
	utils.SendJSON(w, http.StatusOK, stats)
}

// GetEventQR renders the share QR code as PNG. ?size= overrides the default.
func (h *Handler) GetEventQR(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	event, err := h.EventService.GetEvent(r.Context(), id)
	if err != nil {
		h.fail(w, "GetEventQR", msgFetchFailed, err)
		return
	}

	size := qr.DefaultSize
	if raw := r.URL.Query().Get("size"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 64 && n <= 1024 {
			size = n
		}
	}

	png, err := qr.SharePNG(h.PublicURL, *event, size)
	if err != nil {
		h.fail(w, "GetEventQR", msgQRFailed, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", calendar.Filename(*event, ".png")))
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

// GetEventICS serves the event as an iCalendar attachment.
func (h *Handler) GetEventICS(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	event, err := h.EventService.GetEvent(r.Context(), id)
	if err != nil {
		h.fail(w, "GetEventICS", msgFetchFailed, err)
		return
	}

	ics, err := calendar.ICS(h.PublicURL, *event, h.EventService.Clock.Now())
	if err != nil {
		h.fail(w, "GetEventICS", msgICSFailed, err)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", calendar.Filename(*event, ".ics")))
	w.WriteHeader(http.StatusOK)
	w.Write(ics)
}

// Health reports 200 when the database answers a ping and 503 otherwise.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.EventService.Health(r.Context()); err != nil {
		h.Logger.Error("HEALTH", fmt.Sprintf("Database ping failed: %v", err))
		utils.SendJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	utils.SendJSON(w, http.StatusOK, map[string]string{"status": msgServiceHealthy})
}

// fail maps a service error to a status code. Only fixed messages and field
// errors reach the client; the cause goes to the log.
func (h *Handler) fail(w http.ResponseWriter, op, fallback string, err error) {
	if fe, ok := schema.AsFieldErrors(err); ok {
		h.Logger.Warn("API", fmt.Sprintf("%s: %v", op, err))
		utils.SendFieldErrors(w, http.StatusBadRequest, msgInvalidEvent, fe)
		return
	}

	var cv *db.ConstraintViolation
	switch {
	case errors.Is(err, db.ErrNotFound):
		h.Logger.Info("API", fmt.Sprintf("%s: %v", op, err))
		utils.SendMessage(w, http.StatusNotFound, msgNotFound)
	case errors.As(err, &cv):
		h.Logger.Warn("API", fmt.Sprintf("%s: %v", op, err))
		utils.SendFieldErrors(w, http.StatusBadRequest, msgInvalidEvent, map[string]string{cv.Field: cv.Detail})
	default:
		h.Logger.Error("EVENT", fmt.Sprintf("%s: %v", op, err))
		utils.SendMessage(w, http.StatusInternalServerError, fallback)
	}
}

package http

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/swapmarket/internal/application"
	"github.com/example/swapmarket/internal/calendar"
)

type eventService interface {
	CreateEvent(ctx context.Context, params application.CreateEventParams) (application.Event, error)
	UpdateEvent(ctx context.Context, params application.UpdateEventParams) (application.Event, error)
	DeleteEvent(ctx context.Context, principal application.Principal, eventID string) error
	ListEventsByOwner(ctx context.Context, ownerID string) ([]application.Event, error)
	ListSwappableEvents(ctx context.Context, excludingUserID string) ([]application.Event, error)
	ListBlockedTimes(ctx context.Context) ([]application.TimeRange, error)
}

// EventHandler serves event CRUD, the marketplace and busy-time views.
type EventHandler struct {
	service   eventService
	responder responder
	logger    *slog.Logger
	now       func() time.Time
}

// NewEventHandler constructs an EventHandler.
func NewEventHandler(service eventService, logger *slog.Logger) *EventHandler {
	base := defaultLogger(logger)
	return &EventHandler{service: service, responder: newResponder(base), logger: base, now: time.Now}
}

func (h *EventHandler) ready(w http.ResponseWriter) bool {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return false
	}
	return true
}

// Create handles POST /api/create.
func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	input, err := req.toInput()
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	event, err := h.service.CreateEvent(r.Context(), application.CreateEventParams{
		Principal: principal,
		Input:     input,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, eventResponse{
		Message: "Event created successfully",
		Event:   toEventDTO(event),
	})
}

// Update handles PATCH /api/update/{eventId}.
func (h *EventHandler) Update(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	eventID := strings.TrimSpace(r.PathValue("eventId"))
	if eventID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingPathValue)
		return
	}

	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	patch, err := req.toPatch()
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	event, err := h.service.UpdateEvent(r.Context(), application.UpdateEventParams{
		Principal: principal,
		EventID:   eventID,
		Patch:     patch,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, eventResponse{
		Message: "Event updated successfully",
		Event:   toEventDTO(event),
	})
}

// Delete handles DELETE /api/delete/{eventId}.
func (h *EventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	eventID := strings.TrimSpace(r.PathValue("eventId"))
	if eventID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingPathValue)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	if err := h.service.DeleteEvent(r.Context(), principal, eventID); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, messageResponse{Message: "Event deleted successfully"})
}

// ListByOwner handles GET /api/getEvent/{userId}.
func (h *EventHandler) ListByOwner(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	events, err := h.service.ListEventsByOwner(r.Context(), strings.TrimSpace(r.PathValue("userId")))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, eventListResponse{
		Message: "Events retrieved successfully",
		Data:    toEventDTOs(events),
	})
}

// ListSwappable handles GET /api/getAll/{userId}.
func (h *EventHandler) ListSwappable(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	events, err := h.service.ListSwappableEvents(r.Context(), strings.TrimSpace(r.PathValue("userId")))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, eventListResponse{
		Message: "Swappable events retrieved successfully",
		Data:    toEventDTOs(events),
	})
}

// BusyTimes handles GET /api/busy-times.
func (h *EventHandler) BusyTimes(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	ranges, err := h.service.ListBlockedTimes(r.Context())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	dtos := make([]timeRangeDTO, 0, len(ranges))
	for _, tr := range ranges {
		dtos = append(dtos, timeRangeDTO{Start: formatTimestamp(tr.Start), End: formatTimestamp(tr.End)})
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, dtos)
}

// BusyTimesCalendar handles GET /api/busy-times.ics.
func (h *EventHandler) BusyTimesCalendar(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	ranges, err := h.service.ListBlockedTimes(r.Context())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	if len(ranges) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	busy := make([]calendar.Range, 0, len(ranges))
	for _, tr := range ranges {
		busy = append(busy, calendar.Range{Start: tr.Start, End: tr.End})
	}

	var buf bytes.Buffer
	if err := calendar.Encode(&buf, busy, h.now()); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="busy-times.ics"`)
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		handlerLogger(r.Context(), h.logger, "EventHandler", "BusyTimesCalendar").ErrorContext(r.Context(), "failed to write calendar", "error", err)
	}
}

type messageResponse struct {
	Message string `json:"message"`
}

type eventResponse struct {
	Message string   `json:"message"`
	Event   EventDTO `json:"event"`
}

type eventListResponse struct {
	Message string     `json:"message"`
	Data    []EventDTO `json:"data"`
}

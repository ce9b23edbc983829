package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/swapmarket/internal/application"
)

type swapService interface {
	ProposeSwap(ctx context.Context, params application.ProposeSwapParams) (application.Swap, error)
	RespondToSwap(ctx context.Context, params application.RespondToSwapParams) (application.RespondToSwapResult, error)
	ListSwapsForUser(ctx context.Context, userID string) ([]application.SwapDetail, error)
}

// SwapHandler serves swap proposals and decisions.
type SwapHandler struct {
	service   swapService
	responder responder
	logger    *slog.Logger
}

// NewSwapHandler constructs a SwapHandler.
func NewSwapHandler(service swapService, logger *slog.Logger) *SwapHandler {
	base := defaultLogger(logger)
	return &SwapHandler{service: service, responder: newResponder(base), logger: base}
}

// Propose handles POST /api/swapRequest/{userId}/{eventId}/{userEventId}.
// eventId is the requested event and userEventId the proposer's offer.
func (h *SwapHandler) Propose(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	swap, err := h.service.ProposeSwap(r.Context(), application.ProposeSwapParams{
		Principal:   principal,
		FromUserID:  strings.TrimSpace(r.PathValue("userId")),
		FromEventID: strings.TrimSpace(r.PathValue("userEventId")),
		ToEventID:   strings.TrimSpace(r.PathValue("eventId")),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, swapResponse{
		Message: "Swap request created successfully",
		Swap:    SwapPayload(swap),
	})
}

// Respond handles POST /api/responceToRequest/{swapId} with body {"isAccepted": bool}.
func (h *SwapHandler) Respond(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	swapID := strings.TrimSpace(r.PathValue("swapId"))
	if swapID == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingPathValue)
		return
	}

	var req respondRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	if req.IsAccepted == nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingDecision)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	result, err := h.service.RespondToSwap(r.Context(), application.RespondToSwapParams{
		Principal: principal,
		SwapID:    swapID,
		Accept:    *req.IsAccepted,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	resp := respondResponse{Message: "Swap request rejected", Swap: SwapPayload(result.Swap)}
	if *req.IsAccepted {
		resp.Message = "Swap completed successfully"
		resp.UpdatedEvents = &updatedEventsDTO{
			UpdateFromEvent: optionalEventDTO(result.FromEvent),
			UpdateToEvent:   optionalEventDTO(result.ToEvent),
		}
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, resp)
}

// ListForUser handles GET /api/getSwap/{userId}.
func (h *SwapHandler) ListForUser(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	details, err := h.service.ListSwapsForUser(r.Context(), strings.TrimSpace(r.PathValue("userId")))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	dtos := make([]swapDetailDTO, 0, len(details))
	for _, detail := range details {
		dtos = append(dtos, toSwapDetailDTO(detail))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, dtos)
}

type respondRequest struct {
	IsAccepted *bool `json:"isAccepted"`
}

type swapResponse struct {
	Message string  `json:"message"`
	Swap    SwapDTO `json:"swap"`
}

type updatedEventsDTO struct {
	UpdateFromEvent *EventDTO `json:"updateFromEvent"`
	UpdateToEvent   *EventDTO `json:"updateToEvent"`
}

type respondResponse struct {
	Message       string            `json:"message"`
	Swap          SwapDTO           `json:"swap"`
	UpdatedEvents *updatedEventsDTO `json:"updatedEvents,omitempty"`
}

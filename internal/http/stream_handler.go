package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/example/swapmarket/internal/realtime"
)

type subscriptionRegistry interface {
	Subscribe(address string) *realtime.Subscription
	Unsubscribe(sub *realtime.Subscription)
}

// StreamHandler serves the server-sent event channel of a contact address.
type StreamHandler struct {
	registry  subscriptionRegistry
	responder responder
	logger    *slog.Logger
}

// NewStreamHandler constructs a StreamHandler.
func NewStreamHandler(registry subscriptionRegistry, logger *slog.Logger) *StreamHandler {
	base := defaultLogger(logger)
	return &StreamHandler{registry: registry, responder: newResponder(base), logger: base}
}

// Subscribe handles GET /api/SSE/{contactAddress}. The authenticated
// principal may only open the channel of its own email address.
func (h *StreamHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.registry == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	ctx := r.Context()
	address := realtime.NormalizeAddress(r.PathValue("contactAddress"))
	principal, _ := PrincipalFromContext(ctx)
	if address == "" || address != realtime.NormalizeAddress(principal.Email) {
		h.responder.writeJSON(ctx, w, http.StatusForbidden, errorResponse{
			ErrorCode: "AUTH_FORBIDDEN",
			Message:   "この操作を実行する権限がありません。",
		})
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.responder.writeError(ctx, w, http.StatusInternalServerError, errStreamingFailed)
		return
	}

	logger := handlerLogger(ctx, h.logger, "StreamHandler", "Subscribe", "address", address)

	// Streams outlive the server write timeout.
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		logger.DebugContext(ctx, "write deadline not adjustable", "error", err)
	}

	sub := h.registry.Subscribe(address)
	defer h.registry.Unsubscribe(sub)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	logger.InfoContext(ctx, "stream opened")
	for {
		select {
		case <-ctx.Done():
			logger.InfoContext(ctx, "stream closed by client")
			return
		case <-sub.Done():
			logger.InfoContext(ctx, "stream closed by server")
			return
		case msg := <-sub.Messages():
			if err := realtime.WriteEvent(w, msg); err != nil {
				logger.WarnContext(ctx, "stream write failed", "error", err)
				return
			}
			flusher.Flush()
		}
	}
}

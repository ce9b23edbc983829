package main

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/swapmarket/internal/application"
	"github.com/example/swapmarket/internal/config"
	httptransport "github.com/example/swapmarket/internal/http"
	"github.com/example/swapmarket/internal/persistence/sqlite"
	"github.com/example/swapmarket/internal/realtime"
)

// stack is the fully wired service graph behind one HTTP handler.
type stack struct {
	handler  http.Handler
	registry *realtime.Registry
	auth     *application.AuthService
	events   *application.EventService
	swaps    *application.SwapService
}

func newID() string {
	return uuid.NewString()
}

func newToken() string {
	return strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
}

// buildStack wires storage, services, the live channel registry and HTTP
// handlers. A nil now uses the wall clock.
func buildStack(cfg config.Config, storage *sqlite.Storage, logger *slog.Logger, now func() time.Time) *stack {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	credentials := newCredentialStoreAdapter(storage.Users)
	sessions := newSessionRepositoryAdapter(storage.Sessions)
	events := newEventRepositoryAdapter(storage.Events)
	swaps := newSwapRepositoryAdapter(storage.Swaps)
	exchanger := newSwapExchangerAdapter(storage.Swaps)

	registry := realtime.NewRegistry(realtime.RegistryConfig{
		KeepAliveInterval: cfg.KeepAliveInterval,
		BufferSize:        cfg.SubscriberBuffer,
		Now:               now,
		Logger:            logger,
	})
	dispatcher := realtime.NewDispatcher(registry, nil, logger)

	authService := application.NewAuthServiceWithLogger(credentials, sessions, nil, nil, newID, newToken, now, cfg.SessionTTL, logger)
	eventService := application.NewEventServiceWithLogger(events, newID, now, logger)
	swapService := application.NewSwapServiceWithLogger(
		swaps,
		exchanger,
		events,
		credentials,
		newSwapNotifier(dispatcher),
		newID,
		now,
		cfg.StrictProposals,
		logger,
	)

	handler := httptransport.NewRouter(httptransport.RouterConfig{
		Auth:           httptransport.NewAuthHandler(authService, logger),
		Events:         httptransport.NewEventHandler(eventService, logger),
		Swaps:          httptransport.NewSwapHandler(swapService, logger),
		Stream:         httptransport.NewStreamHandler(registry, logger),
		RequireSession: httptransport.RequireSession(authService, logger),
		Middleware: []func(http.Handler) http.Handler{
			httptransport.RequestLogger(logger),
		},
	})

	return &stack{
		handler:  handler,
		registry: registry,
		auth:     authService,
		events:   eventService,
		swaps:    swapService,
	}
}

// swapNotifier forwards swap notifications to the live channel dispatcher.
type swapNotifier struct {
	dispatcher *realtime.Dispatcher
}

func newSwapNotifier(dispatcher *realtime.Dispatcher) *swapNotifier {
	return &swapNotifier{dispatcher: dispatcher}
}

func (n *swapNotifier) NotifySwap(ctx context.Context, address string, kind application.NotificationKind, swap application.Swap) error {
	event := realtime.EventSwapResponse
	if kind == application.NotificationSwapRequest {
		event = realtime.EventSwapRequest
	}
	return n.dispatcher.Notify(ctx, address, event, httptransport.SwapPayload(swap))
}

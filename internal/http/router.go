package http

import (
	"net/http"
)

// RouterConfig wires handlers and middleware into the API router.
type RouterConfig struct {
	Auth   *AuthHandler
	Events *EventHandler
	Swaps  *SwapHandler
	Stream *StreamHandler
	// RequireSession guards every route except registration and login.
	RequireSession func(http.Handler) http.Handler
	Middleware     []func(http.Handler) http.Handler
}

// NewRouter builds the API handler.
func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	protect := func(h http.HandlerFunc) http.Handler {
		if cfg.RequireSession == nil {
			return h
		}
		return cfg.RequireSession(h)
	}

	if cfg.Auth != nil {
		mux.HandleFunc("POST /api/auth/register", cfg.Auth.Register)
		mux.HandleFunc("POST /api/auth/login", cfg.Auth.Login)
		mux.Handle("POST /api/auth/logout", protect(cfg.Auth.Logout))
	}

	if cfg.Events != nil {
		mux.Handle("POST /api/create", protect(cfg.Events.Create))
		mux.Handle("PATCH /api/update/{eventId}", protect(cfg.Events.Update))
		mux.Handle("DELETE /api/delete/{eventId}", protect(cfg.Events.Delete))
		mux.Handle("GET /api/getEvent/{userId}", protect(cfg.Events.ListByOwner))
		mux.Handle("GET /api/getAll/{userId}", protect(cfg.Events.ListSwappable))
		mux.Handle("GET /api/busy-times", protect(cfg.Events.BusyTimes))
		mux.Handle("GET /api/busy-times.ics", protect(cfg.Events.BusyTimesCalendar))
	}

	if cfg.Swaps != nil {
		mux.Handle("POST /api/swapRequest/{userId}/{eventId}/{userEventId}", protect(cfg.Swaps.Propose))
		mux.Handle("POST /api/responceToRequest/{swapId}", protect(cfg.Swaps.Respond))
		mux.Handle("GET /api/getSwap/{userId}", protect(cfg.Swaps.ListForUser))
	}

	if cfg.Stream != nil {
		mux.Handle("GET /api/SSE/{contactAddress}", protect(cfg.Stream.Subscribe))
	}

	var handler http.Handler = mux
	for i := len(cfg.Middleware) - 1; i >= 0; i-- {
		if cfg.Middleware[i] != nil {
			handler = cfg.Middleware[i](handler)
		}
	}

	return handler
}

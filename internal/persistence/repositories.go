package persistence

import (
	"context"
	"time"
)

// UserRepository exposes CRUD operations for users.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
}

// EventFilter narrows event queries. Zero values disable a criterion.
type EventFilter struct {
	OwnerID        string
	ExcludeOwnerID string
	Status         EventStatus
	OverlapStart   *time.Time
	OverlapEnd     *time.Time
	ExcludeEventID string
}

// EventRepository stores calendar events.
type EventRepository interface {
	CreateEvent(ctx context.Context, event Event) error
	// CreateEventExclusive inserts event and reports ErrConflict when any
	// stored event overlaps its range. The check and the insert are atomic.
	CreateEventExclusive(ctx context.Context, event Event) error
	UpdateEvent(ctx context.Context, event Event) error
	// UpdateEventIfUnchanged writes event only while the stored row still
	// carries expectedUpdatedAt and its range overlaps no other event.
	// Either failure reports ErrConflict.
	UpdateEventIfUnchanged(ctx context.Context, event Event, expectedUpdatedAt time.Time) error
	GetEvent(ctx context.Context, id string) (Event, error)
	ListEvents(ctx context.Context, filter EventFilter) ([]Event, error)
	DeleteEvent(ctx context.Context, id string) error
}

// SwapRepository stores swap proposals.
type SwapRepository interface {
	CreateSwap(ctx context.Context, swap Swap) error
	GetSwap(ctx context.Context, id string) (Swap, error)
	ListSwapsForUser(ctx context.Context, userID string) ([]Swap, error)
	// TransitionSwap moves a swap from one status to another and reports
	// ErrConflict when the stored status no longer matches from.
	TransitionSwap(ctx context.Context, id string, from, to SwapStatus, at time.Time) (Swap, error)
}

// SwapExchangeTx is the set of writes available inside a swap exchange
// transaction. Every call participates in the same transaction.
type SwapExchangeTx interface {
	TransitionSwap(ctx context.Context, id string, from, to SwapStatus, at time.Time) (Swap, error)
	GetEvent(ctx context.Context, id string) (Event, error)
	UpdateEvent(ctx context.Context, event Event) error
}

// SwapExchanger runs fn inside a single transaction. The transaction commits
// only when fn returns nil; otherwise every write made through tx is rolled back.
type SwapExchanger interface {
	Exchange(ctx context.Context, fn func(ctx context.Context, tx SwapExchangeTx) error) error
}

// SessionRepository stores authentication session state.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) (Session, error)
	GetSession(ctx context.Context, token string) (Session, error)
	RevokeSession(ctx context.Context, token string, revokedAt time.Time) (Session, error)
	DeleteExpiredSessions(ctx context.Context, reference time.Time) error
}

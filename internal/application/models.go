package application

import "time"

// Principal represents the authenticated user invoking a service method.
type Principal struct {
	UserID string
	Email  string
}

// User represents a marketplace account exposed by the application services.
type User struct {
	ID        string
	Name      string
	Email     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserSummary is the public projection of a user attached to swap listings.
type UserSummary struct {
	ID    string
	Name  string
	Email string
}

// UserCredentials models the authentication attributes persisted for a user.
type UserCredentials struct {
	User         User
	PasswordHash string
}

// Session represents an authenticated session issued to a user.
type Session struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
	RevokedAt *time.Time
}

// RegisterParams captures the data required to create an account.
type RegisterParams struct {
	Name     string
	Email    string
	Password string
}

// AuthenticateParams captures the data required to authenticate a user.
type AuthenticateParams struct {
	Email    string
	Password string
}

// AuthenticateResult captures the outcome of a successful registration or login.
type AuthenticateResult struct {
	User    User
	Session Session
}

// EventStatus is the marketplace visibility of an event.
type EventStatus string

const (
	// EventStatusBusy marks an event that is not offered for swapping.
	EventStatusBusy EventStatus = "BUSY"
	// EventStatusSwappable marks an event offered on the marketplace.
	EventStatusSwappable EventStatus = "SWAPPABLE"
)

// Valid reports whether the status is one of the known values.
func (s EventStatus) Valid() bool {
	return s == EventStatusBusy || s == EventStatusSwappable
}

// Event represents a calendar entry owned by a user.
type Event struct {
	ID          string
	OwnerID     string
	Title       string
	Description string
	Start       time.Time
	End         time.Time
	Status      EventStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// EventInput captures caller provided fields for a new event.
type EventInput struct {
	Title       string
	Description string
	Start       time.Time
	End         time.Time
	Status      EventStatus
}

// EventPatch captures a partial event update. Nil fields are left unchanged.
type EventPatch struct {
	Title       *string
	Description *string
	Start       *time.Time
	End         *time.Time
	Status      *EventStatus
}

// CreateEventParams wraps the data required to create an event.
type CreateEventParams struct {
	Principal Principal
	Input     EventInput
}

// UpdateEventParams wraps the data required to update an event.
type UpdateEventParams struct {
	Principal Principal
	EventID   string
	Patch     EventPatch
}

// EventQuery narrows repository event listings.
type EventQuery struct {
	OwnerID        string
	ExcludeOwnerID string
	Status         EventStatus
	OverlapStart   *time.Time
	OverlapEnd     *time.Time
	ExcludeEventID string
}

// TimeRange is a half-open [Start, End) interval.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// SwapStatus is the lifecycle state of a swap proposal.
type SwapStatus string

const (
	// SwapStatusPending is the initial state awaiting the target's decision.
	SwapStatusPending SwapStatus = "PENDING"
	// SwapStatusAccepted is terminal; the two events exchanged time ranges.
	SwapStatusAccepted SwapStatus = "ACCEPTED"
	// SwapStatusRejected is terminal; no event was modified.
	SwapStatusRejected SwapStatus = "REJECTED"
)

// Terminal reports whether no further transition is allowed.
func (s SwapStatus) Terminal() bool {
	return s == SwapStatusAccepted || s == SwapStatusRejected
}

// Swap represents a proposal to exchange the time slots of two events.
type Swap struct {
	ID          string
	FromUserID  string
	ToUserID    string
	FromEventID string
	ToEventID   string
	Status      SwapStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SwapDetail is a swap joined with its parties and events. References are
// weak, so any of the pointers may be nil when the record no longer exists.
type SwapDetail struct {
	Swap      Swap
	FromUser  *UserSummary
	ToUser    *UserSummary
	FromEvent *Event
	ToEvent   *Event
}

// ProposeSwapParams wraps the data required to propose a swap.
type ProposeSwapParams struct {
	Principal   Principal
	FromUserID  string
	FromEventID string
	ToEventID   string
}

// RespondToSwapParams wraps a decision on a pending swap.
type RespondToSwapParams struct {
	Principal Principal
	SwapID    string
	Accept    bool
}

// RespondToSwapResult captures the outcome of a decision. FromEvent and
// ToEvent are populated only when the swap was accepted.
type RespondToSwapResult struct {
	Swap      Swap
	FromEvent *Event
	ToEvent   *Event
}

// NotificationKind tags a message pushed to a live subscriber.
type NotificationKind string

const (
	// NotificationSwapRequest announces a new proposal to its target.
	NotificationSwapRequest NotificationKind = "swapRequest"
	// NotificationSwapResponse announces an accept or reject decision to both parties.
	NotificationSwapResponse NotificationKind = "swapResponse"
)

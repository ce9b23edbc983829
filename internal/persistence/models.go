package persistence

import "time"

// User represents a marketplace account.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// EventStatus enumerates the persisted event states.
type EventStatus string

const (
	EventStatusBusy      EventStatus = "BUSY"
	EventStatusSwappable EventStatus = "SWAPPABLE"
)

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

// SwapStatus enumerates the persisted swap proposal states.
type SwapStatus string

const (
	SwapStatusPending  SwapStatus = "PENDING"
	SwapStatusAccepted SwapStatus = "ACCEPTED"
	SwapStatusRejected SwapStatus = "REJECTED"
)

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

// Session represents an authentication session persisted for a user.
type Session struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
	RevokedAt *time.Time
}

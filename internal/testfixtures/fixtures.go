package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/swapmarket/internal/application"
	"github.com/example/swapmarket/internal/persistence"
)

var (
	userCounter    uint64
	eventCounter   uint64
	swapCounter    uint64
	sessionCounter uint64
)

var referenceTime = time.Date(2024, time.May, 1, 9, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ----------------------------- User fixtures -----------------------------

// UserFixture represents a deterministic account that can be materialised
// for application or persistence tests.
type UserFixture struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserOption configures the generated user fixture.
type UserOption func(*UserFixture)

// NewUserFixture returns a deterministic user fixture with optional overrides.
func NewUserFixture(opts ...UserOption) UserFixture {
	idx := atomic.AddUint64(&userCounter, 1)
	id := fmt.Sprintf("user-%03d", idx)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := UserFixture{
		ID:           id,
		Name:         fmt.Sprintf("User %03d", idx),
		Email:        fmt.Sprintf("%s@example.com", id),
		PasswordHash: fmt.Sprintf("hash-%03d", idx),
		CreatedAt:    created,
		UpdatedAt:    created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithUserID overrides the generated user ID.
func WithUserID(id string) UserOption {
	return func(f *UserFixture) {
		f.ID = id
	}
}

// WithUserName overrides the generated display name.
func WithUserName(name string) UserOption {
	return func(f *UserFixture) {
		f.Name = name
	}
}

// WithUserEmail overrides the generated email address.
func WithUserEmail(email string) UserOption {
	return func(f *UserFixture) {
		f.Email = email
	}
}

// WithUserPasswordHash overrides the generated password hash.
func WithUserPasswordHash(hash string) UserOption {
	return func(f *UserFixture) {
		f.PasswordHash = hash
	}
}

// WithUserTimestamps sets both created and updated timestamps on the fixture.
func WithUserTimestamps(created, updated time.Time) UserOption {
	return func(f *UserFixture) {
		f.CreatedAt = created
		f.UpdatedAt = updated
	}
}

// Application returns the fixture as an application.User value.
func (f UserFixture) Application() application.User {
	return application.User{
		ID:        f.ID,
		Name:      f.Name,
		Email:     f.Email,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
}

// Credentials returns the fixture as application.UserCredentials.
func (f UserFixture) Credentials() application.UserCredentials {
	return application.UserCredentials{
		User:         f.Application(),
		PasswordHash: f.PasswordHash,
	}
}

// Principal returns the authenticated identity of the fixture.
func (f UserFixture) Principal() application.Principal {
	return application.Principal{UserID: f.ID, Email: f.Email}
}

// Persistence returns the fixture as a persistence.User value.
func (f UserFixture) Persistence() persistence.User {
	return persistence.User{
		ID:           f.ID,
		Name:         f.Name,
		Email:        f.Email,
		PasswordHash: f.PasswordHash,
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}
}

// ----------------------------- Event fixtures ----------------------------

// EventFixture represents a deterministic calendar event.
type EventFixture struct {
	ID          string
	OwnerID     string
	Title       string
	Description string
	Start       time.Time
	End         time.Time
	Status      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// EventOption configures the generated event fixture.
type EventOption func(*EventFixture)

// NewEventFixture returns a one hour BUSY event. Successive fixtures start on
// successive hours after ReferenceTime so they never overlap by default.
func NewEventFixture(opts ...EventOption) EventFixture {
	idx := atomic.AddUint64(&eventCounter, 1)
	id := fmt.Sprintf("event-%03d", idx)
	start := referenceTime.Add(time.Duration(idx) * time.Hour)
	fixture := EventFixture{
		ID:          id,
		OwnerID:     "user-001",
		Title:       fmt.Sprintf("Event %03d", idx),
		Description: "fixture event",
		Start:       start,
		End:         start.Add(time.Hour),
		Status:      string(application.EventStatusBusy),
		CreatedAt:   referenceTime,
		UpdatedAt:   referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithEventID overrides the generated event ID.
func WithEventID(id string) EventOption {
	return func(f *EventFixture) {
		f.ID = id
	}
}

// WithEventOwner sets the owning user.
func WithEventOwner(ownerID string) EventOption {
	return func(f *EventFixture) {
		f.OwnerID = ownerID
	}
}

// WithEventTitle overrides the generated title.
func WithEventTitle(title string) EventOption {
	return func(f *EventFixture) {
		f.Title = title
	}
}

// WithEventRange sets the event interval.
func WithEventRange(start, end time.Time) EventOption {
	return func(f *EventFixture) {
		f.Start = start
		f.End = end
	}
}

// WithEventSwappable marks the event as offered on the marketplace.
func WithEventSwappable() EventOption {
	return func(f *EventFixture) {
		f.Status = string(application.EventStatusSwappable)
	}
}

// WithEventTimestamps sets both created and updated timestamps on the fixture.
func WithEventTimestamps(created, updated time.Time) EventOption {
	return func(f *EventFixture) {
		f.CreatedAt = created
		f.UpdatedAt = updated
	}
}

// Application returns the fixture as an application.Event value.
func (f EventFixture) Application() application.Event {
	return application.Event{
		ID:          f.ID,
		OwnerID:     f.OwnerID,
		Title:       f.Title,
		Description: f.Description,
		Start:       f.Start,
		End:         f.End,
		Status:      application.EventStatus(f.Status),
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

// Input returns the caller supplied portion of the fixture.
func (f EventFixture) Input() application.EventInput {
	return application.EventInput{
		Title:       f.Title,
		Description: f.Description,
		Start:       f.Start,
		End:         f.End,
		Status:      application.EventStatus(f.Status),
	}
}

// Persistence returns the fixture as a persistence.Event value.
func (f EventFixture) Persistence() persistence.Event {
	return persistence.Event{
		ID:          f.ID,
		OwnerID:     f.OwnerID,
		Title:       f.Title,
		Description: f.Description,
		Start:       f.Start,
		End:         f.End,
		Status:      persistence.EventStatus(f.Status),
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

// ----------------------------- Swap fixtures -----------------------------

// SwapFixture represents a deterministic swap proposal.
type SwapFixture struct {
	ID          string
	FromUserID  string
	ToUserID    string
	FromEventID string
	ToEventID   string
	Status      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SwapOption configures the generated swap fixture.
type SwapOption func(*SwapFixture)

// NewSwapFixture returns a PENDING swap with optional overrides.
func NewSwapFixture(opts ...SwapOption) SwapFixture {
	idx := atomic.AddUint64(&swapCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Second)
	fixture := SwapFixture{
		ID:          fmt.Sprintf("swap-%03d", idx),
		FromUserID:  "user-001",
		ToUserID:    "user-002",
		FromEventID: "event-001",
		ToEventID:   "event-002",
		Status:      string(application.SwapStatusPending),
		CreatedAt:   created,
		UpdatedAt:   created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithSwapID overrides the generated swap ID.
func WithSwapID(id string) SwapOption {
	return func(f *SwapFixture) {
		f.ID = id
	}
}

// WithSwapParties sets the proposer and the target owner.
func WithSwapParties(fromUserID, toUserID string) SwapOption {
	return func(f *SwapFixture) {
		f.FromUserID = fromUserID
		f.ToUserID = toUserID
	}
}

// WithSwapEvents sets the offered and requested events.
func WithSwapEvents(fromEventID, toEventID string) SwapOption {
	return func(f *SwapFixture) {
		f.FromEventID = fromEventID
		f.ToEventID = toEventID
	}
}

// WithSwapStatus overrides the lifecycle state.
func WithSwapStatus(status string) SwapOption {
	return func(f *SwapFixture) {
		f.Status = status
	}
}

// WithSwapTimestamps sets both created and updated timestamps on the fixture.
func WithSwapTimestamps(created, updated time.Time) SwapOption {
	return func(f *SwapFixture) {
		f.CreatedAt = created
		f.UpdatedAt = updated
	}
}

// Application returns the fixture as an application.Swap value.
func (f SwapFixture) Application() application.Swap {
	return application.Swap{
		ID:          f.ID,
		FromUserID:  f.FromUserID,
		ToUserID:    f.ToUserID,
		FromEventID: f.FromEventID,
		ToEventID:   f.ToEventID,
		Status:      application.SwapStatus(f.Status),
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

// Persistence returns the fixture as a persistence.Swap value.
func (f SwapFixture) Persistence() persistence.Swap {
	return persistence.Swap{
		ID:          f.ID,
		FromUserID:  f.FromUserID,
		ToUserID:    f.ToUserID,
		FromEventID: f.FromEventID,
		ToEventID:   f.ToEventID,
		Status:      persistence.SwapStatus(f.Status),
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

// ---------------------------- Session fixtures ---------------------------

// SessionFixture represents a deterministic authentication session.
type SessionFixture struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
	RevokedAt *time.Time
}

// SessionOption configures the generated session fixture.
type SessionOption func(*SessionFixture)

// NewSessionFixture returns a session valid for one hour after ReferenceTime.
func NewSessionFixture(opts ...SessionOption) SessionFixture {
	idx := atomic.AddUint64(&sessionCounter, 1)
	fixture := SessionFixture{
		ID:        fmt.Sprintf("session-%03d", idx),
		UserID:    "user-001",
		Token:     fmt.Sprintf("token-%03d", idx),
		ExpiresAt: referenceTime.Add(time.Hour),
		CreatedAt: referenceTime,
		UpdatedAt: referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithSessionUserID sets the owning user.
func WithSessionUserID(id string) SessionOption {
	return func(f *SessionFixture) {
		f.UserID = id
	}
}

// WithSessionToken overrides the generated token.
func WithSessionToken(token string) SessionOption {
	return func(f *SessionFixture) {
		f.Token = token
	}
}

// WithSessionExpiresAt overrides the expiry instant.
func WithSessionExpiresAt(t time.Time) SessionOption {
	return func(f *SessionFixture) {
		f.ExpiresAt = t
	}
}

// WithSessionRevokedAt marks the session as revoked.
func WithSessionRevokedAt(t time.Time) SessionOption {
	return func(f *SessionFixture) {
		revoked := t
		f.RevokedAt = &revoked
	}
}

// Application returns the fixture as an application.Session value.
func (f SessionFixture) Application() application.Session {
	return application.Session{
		ID:        f.ID,
		UserID:    f.UserID,
		Token:     f.Token,
		ExpiresAt: f.ExpiresAt,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
		RevokedAt: copyTimePtr(f.RevokedAt),
	}
}

// Persistence returns the fixture as a persistence.Session value.
func (f SessionFixture) Persistence() persistence.Session {
	return persistence.Session{
		ID:        f.ID,
		UserID:    f.UserID,
		Token:     f.Token,
		ExpiresAt: f.ExpiresAt,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
		RevokedAt: copyTimePtr(f.RevokedAt),
	}
}

func copyTimePtr(src *time.Time) *time.Time {
	if src == nil {
		return nil
	}
	v := *src
	return &v
}

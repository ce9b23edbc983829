package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/swapmarket/internal/application"
	"github.com/example/swapmarket/internal/persistence"
)

// mapPersistenceError translates storage sentinels into application errors.
func mapPersistenceError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrNotFound):
		return fmt.Errorf("%w: %v", application.ErrNotFound, err)
	case errors.Is(err, persistence.ErrDuplicate):
		return fmt.Errorf("%w: %v", application.ErrAlreadyExists, err)
	case errors.Is(err, persistence.ErrConflict), errors.Is(err, persistence.ErrConstraintViolation):
		return fmt.Errorf("%w: %v", application.ErrConflict, err)
	}
	return err
}

type credentialStoreAdapter struct {
	repo persistence.UserRepository
}

func newCredentialStoreAdapter(repo persistence.UserRepository) *credentialStoreAdapter {
	return &credentialStoreAdapter{repo: repo}
}

func (a *credentialStoreAdapter) CreateUser(ctx context.Context, credentials application.UserCredentials) (application.User, error) {
	if err := a.repo.CreateUser(ctx, toPersistenceUser(credentials)); err != nil {
		return application.User{}, mapPersistenceError(err)
	}
	return a.GetUser(ctx, credentials.User.ID)
}

func (a *credentialStoreAdapter) GetUserCredentialsByEmail(ctx context.Context, email string) (application.UserCredentials, error) {
	stored, err := a.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return application.UserCredentials{}, mapPersistenceError(err)
	}
	return application.UserCredentials{
		User:         toApplicationUser(stored),
		PasswordHash: stored.PasswordHash,
	}, nil
}

func (a *credentialStoreAdapter) GetUser(ctx context.Context, id string) (application.User, error) {
	stored, err := a.repo.GetUser(ctx, id)
	if err != nil {
		return application.User{}, mapPersistenceError(err)
	}
	return toApplicationUser(stored), nil
}

type sessionRepositoryAdapter struct {
	repo persistence.SessionRepository
}

func newSessionRepositoryAdapter(repo persistence.SessionRepository) *sessionRepositoryAdapter {
	return &sessionRepositoryAdapter{repo: repo}
}

func (a *sessionRepositoryAdapter) CreateSession(ctx context.Context, session application.Session) (application.Session, error) {
	stored, err := a.repo.CreateSession(ctx, toPersistenceSession(session))
	if err != nil {
		return application.Session{}, mapPersistenceError(err)
	}
	return toApplicationSession(stored), nil
}

func (a *sessionRepositoryAdapter) GetSession(ctx context.Context, token string) (application.Session, error) {
	stored, err := a.repo.GetSession(ctx, token)
	if err != nil {
		return application.Session{}, mapPersistenceError(err)
	}
	return toApplicationSession(stored), nil
}

func (a *sessionRepositoryAdapter) RevokeSession(ctx context.Context, token string, revokedAt time.Time) (application.Session, error) {
	stored, err := a.repo.RevokeSession(ctx, token, revokedAt)
	if err != nil {
		return application.Session{}, mapPersistenceError(err)
	}
	return toApplicationSession(stored), nil
}

func (a *sessionRepositoryAdapter) DeleteExpiredSessions(ctx context.Context, reference time.Time) error {
	return mapPersistenceError(a.repo.DeleteExpiredSessions(ctx, reference))
}

type eventRepositoryAdapter struct {
	repo persistence.EventRepository
}

func newEventRepositoryAdapter(repo persistence.EventRepository) *eventRepositoryAdapter {
	return &eventRepositoryAdapter{repo: repo}
}

func (a *eventRepositoryAdapter) CreateEvent(ctx context.Context, event application.Event) (application.Event, error) {
	if err := a.repo.CreateEventExclusive(ctx, toPersistenceEvent(event)); err != nil {
		return application.Event{}, mapPersistenceError(err)
	}
	return a.GetEvent(ctx, event.ID)
}

func (a *eventRepositoryAdapter) UpdateEvent(ctx context.Context, event application.Event, expectedUpdatedAt time.Time) (application.Event, error) {
	if err := a.repo.UpdateEventIfUnchanged(ctx, toPersistenceEvent(event), expectedUpdatedAt); err != nil {
		return application.Event{}, mapPersistenceError(err)
	}
	return a.GetEvent(ctx, event.ID)
}

func (a *eventRepositoryAdapter) GetEvent(ctx context.Context, id string) (application.Event, error) {
	stored, err := a.repo.GetEvent(ctx, id)
	if err != nil {
		return application.Event{}, mapPersistenceError(err)
	}
	return toApplicationEvent(stored), nil
}

func (a *eventRepositoryAdapter) DeleteEvent(ctx context.Context, id string) error {
	return mapPersistenceError(a.repo.DeleteEvent(ctx, id))
}

func (a *eventRepositoryAdapter) ListEvents(ctx context.Context, query application.EventQuery) ([]application.Event, error) {
	models, err := a.repo.ListEvents(ctx, persistence.EventFilter{
		OwnerID:        query.OwnerID,
		ExcludeOwnerID: query.ExcludeOwnerID,
		Status:         persistence.EventStatus(query.Status),
		OverlapStart:   query.OverlapStart,
		OverlapEnd:     query.OverlapEnd,
		ExcludeEventID: query.ExcludeEventID,
	})
	if err != nil {
		return nil, mapPersistenceError(err)
	}
	if len(models) == 0 {
		return nil, nil
	}
	events := make([]application.Event, 0, len(models))
	for _, model := range models {
		events = append(events, toApplicationEvent(model))
	}
	return events, nil
}

type swapRepositoryAdapter struct {
	repo persistence.SwapRepository
}

func newSwapRepositoryAdapter(repo persistence.SwapRepository) *swapRepositoryAdapter {
	return &swapRepositoryAdapter{repo: repo}
}

func (a *swapRepositoryAdapter) CreateSwap(ctx context.Context, swap application.Swap) (application.Swap, error) {
	if err := a.repo.CreateSwap(ctx, toPersistenceSwap(swap)); err != nil {
		return application.Swap{}, mapPersistenceError(err)
	}
	return a.GetSwap(ctx, swap.ID)
}

func (a *swapRepositoryAdapter) GetSwap(ctx context.Context, id string) (application.Swap, error) {
	stored, err := a.repo.GetSwap(ctx, id)
	if err != nil {
		return application.Swap{}, mapPersistenceError(err)
	}
	return toApplicationSwap(stored), nil
}

func (a *swapRepositoryAdapter) ListSwapsForUser(ctx context.Context, userID string) ([]application.Swap, error) {
	models, err := a.repo.ListSwapsForUser(ctx, userID)
	if err != nil {
		return nil, mapPersistenceError(err)
	}
	if len(models) == 0 {
		return nil, nil
	}
	swaps := make([]application.Swap, 0, len(models))
	for _, model := range models {
		swaps = append(swaps, toApplicationSwap(model))
	}
	return swaps, nil
}

func (a *swapRepositoryAdapter) TransitionSwap(ctx context.Context, id string, from, to application.SwapStatus, at time.Time) (application.Swap, error) {
	stored, err := a.repo.TransitionSwap(ctx, id, persistence.SwapStatus(from), persistence.SwapStatus(to), at)
	if err != nil {
		return application.Swap{}, mapPersistenceError(err)
	}
	return toApplicationSwap(stored), nil
}

type swapExchangerAdapter struct {
	exchanger persistence.SwapExchanger
}

func newSwapExchangerAdapter(exchanger persistence.SwapExchanger) *swapExchangerAdapter {
	return &swapExchangerAdapter{exchanger: exchanger}
}

func (a *swapExchangerAdapter) Exchange(ctx context.Context, fn func(ctx context.Context, tx application.SwapExchangeTx) error) error {
	err := a.exchanger.Exchange(ctx, func(ctx context.Context, tx persistence.SwapExchangeTx) error {
		return fn(ctx, exchangeTxAdapter{tx: tx})
	})
	return mapPersistenceError(err)
}

type exchangeTxAdapter struct {
	tx persistence.SwapExchangeTx
}

func (a exchangeTxAdapter) TransitionSwap(ctx context.Context, id string, from, to application.SwapStatus, at time.Time) (application.Swap, error) {
	stored, err := a.tx.TransitionSwap(ctx, id, persistence.SwapStatus(from), persistence.SwapStatus(to), at)
	if err != nil {
		return application.Swap{}, mapPersistenceError(err)
	}
	return toApplicationSwap(stored), nil
}

func (a exchangeTxAdapter) GetEvent(ctx context.Context, id string) (application.Event, error) {
	stored, err := a.tx.GetEvent(ctx, id)
	if err != nil {
		return application.Event{}, mapPersistenceError(err)
	}
	return toApplicationEvent(stored), nil
}

func (a exchangeTxAdapter) UpdateEvent(ctx context.Context, event application.Event) (application.Event, error) {
	if err := a.tx.UpdateEvent(ctx, toPersistenceEvent(event)); err != nil {
		return application.Event{}, mapPersistenceError(err)
	}
	return a.GetEvent(ctx, event.ID)
}

func toApplicationUser(model persistence.User) application.User {
	return application.User{
		ID:        model.ID,
		Name:      model.Name,
		Email:     model.Email,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
}

func toPersistenceUser(credentials application.UserCredentials) persistence.User {
	user := credentials.User
	return persistence.User{
		ID:           user.ID,
		Name:         user.Name,
		Email:        user.Email,
		PasswordHash: credentials.PasswordHash,
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	}
}

func toApplicationEvent(model persistence.Event) application.Event {
	return application.Event{
		ID:          model.ID,
		OwnerID:     model.OwnerID,
		Title:       model.Title,
		Description: model.Description,
		Start:       model.Start,
		End:         model.End,
		Status:      application.EventStatus(model.Status),
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}

func toPersistenceEvent(event application.Event) persistence.Event {
	return persistence.Event{
		ID:          event.ID,
		OwnerID:     event.OwnerID,
		Title:       event.Title,
		Description: event.Description,
		Start:       event.Start,
		End:         event.End,
		Status:      persistence.EventStatus(event.Status),
		CreatedAt:   event.CreatedAt,
		UpdatedAt:   event.UpdatedAt,
	}
}

func toApplicationSwap(model persistence.Swap) application.Swap {
	return application.Swap{
		ID:          model.ID,
		FromUserID:  model.FromUserID,
		ToUserID:    model.ToUserID,
		FromEventID: model.FromEventID,
		ToEventID:   model.ToEventID,
		Status:      application.SwapStatus(model.Status),
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}

func toPersistenceSwap(swap application.Swap) persistence.Swap {
	return persistence.Swap{
		ID:          swap.ID,
		FromUserID:  swap.FromUserID,
		ToUserID:    swap.ToUserID,
		FromEventID: swap.FromEventID,
		ToEventID:   swap.ToEventID,
		Status:      persistence.SwapStatus(swap.Status),
		CreatedAt:   swap.CreatedAt,
		UpdatedAt:   swap.UpdatedAt,
	}
}

func toApplicationSession(model persistence.Session) application.Session {
	return application.Session{
		ID:        model.ID,
		UserID:    model.UserID,
		Token:     model.Token,
		ExpiresAt: model.ExpiresAt,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
		RevokedAt: cloneTime(model.RevokedAt),
	}
}

func toPersistenceSession(session application.Session) persistence.Session {
	return persistence.Session{
		ID:        session.ID,
		UserID:    session.UserID,
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		CreatedAt: session.CreatedAt,
		UpdatedAt: session.UpdatedAt,
		RevokedAt: cloneTime(session.RevokedAt),
	}
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}

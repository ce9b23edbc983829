package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// SwapRepository abstracts persistence operations for swap proposals.
type SwapRepository interface {
	CreateSwap(ctx context.Context, swap Swap) (Swap, error)
	GetSwap(ctx context.Context, id string) (Swap, error)
	ListSwapsForUser(ctx context.Context, userID string) ([]Swap, error)
	// TransitionSwap moves a swap from one status to another only when its
	// current status equals from. A lost race is reported as ErrConflict.
	TransitionSwap(ctx context.Context, id string, from, to SwapStatus, at time.Time) (Swap, error)
}

// SwapExchangeTx is the set of writes available inside an exchange scope.
type SwapExchangeTx interface {
	TransitionSwap(ctx context.Context, id string, from, to SwapStatus, at time.Time) (Swap, error)
	GetEvent(ctx context.Context, id string) (Event, error)
	UpdateEvent(ctx context.Context, event Event) (Event, error)
}

// SwapExchanger runs fn in a single transaction. A non-nil return from fn
// rolls back every write made through tx.
type SwapExchanger interface {
	Exchange(ctx context.Context, fn func(ctx context.Context, tx SwapExchangeTx) error) error
}

// UserDirectory resolves user profiles for notifications and joined views.
type UserDirectory interface {
	GetUser(ctx context.Context, id string) (User, error)
}

// Notifier pushes swap updates to a contact address.
type Notifier interface {
	NotifySwap(ctx context.Context, address string, kind NotificationKind, swap Swap) error
}

// SwapService negotiates swap proposals and performs the atomic exchange.
type SwapService struct {
	swaps       SwapRepository
	exchanger   SwapExchanger
	events      EventRepository
	users       UserDirectory
	notifier    Notifier
	idGenerator func() string
	now         func() time.Time
	strict      bool
	logger      *slog.Logger
}

// NewSwapService constructs a SwapService instance. When strict is true a
// proposal also requires the proposer's own event to be theirs and both
// events to be SWAPPABLE.
func NewSwapService(
	swaps SwapRepository,
	exchanger SwapExchanger,
	events EventRepository,
	users UserDirectory,
	notifier Notifier,
	idGenerator func() string,
	now func() time.Time,
	strict bool,
) *SwapService {
	return NewSwapServiceWithLogger(swaps, exchanger, events, users, notifier, idGenerator, now, strict, nil)
}

// NewSwapServiceWithLogger constructs a SwapService with a specified logger.
func NewSwapServiceWithLogger(
	swaps SwapRepository,
	exchanger SwapExchanger,
	events EventRepository,
	users UserDirectory,
	notifier Notifier,
	idGenerator func() string,
	now func() time.Time,
	strict bool,
	logger *slog.Logger,
) *SwapService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &SwapService{
		swaps:       swaps,
		exchanger:   exchanger,
		events:      events,
		users:       users,
		notifier:    notifier,
		idGenerator: idGenerator,
		now:         now,
		strict:      strict,
		logger:      defaultLogger(logger),
	}
}

func (s *SwapService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "SwapService", operation, attrs...)
}

func (s *SwapService) ready() error {
	if s == nil {
		return fmt.Errorf("SwapService is nil")
	}
	if s.swaps == nil || s.events == nil || s.users == nil {
		return fmt.Errorf("swap service dependencies not configured")
	}
	return nil
}

// ProposeSwap records a PENDING proposal to exchange fromEventID for
// toEventID and notifies the owner of toEventID.
func (s *SwapService) ProposeSwap(ctx context.Context, params ProposeSwapParams) (swap Swap, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "ProposeSwap",
		"principal_id", params.Principal.UserID,
		"from_event_id", params.FromEventID,
		"to_event_id", params.ToEventID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to propose swap", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("swap_id", swap.ID).InfoContext(ctx, "swap proposed")
	}()

	fromUserID := strings.TrimSpace(params.FromUserID)
	fromEventID := strings.TrimSpace(params.FromEventID)
	toEventID := strings.TrimSpace(params.ToEventID)

	vErr := &ValidationError{}
	if fromUserID == "" {
		vErr.add("user_id", "required")
	}
	if fromEventID == "" {
		vErr.add("user_event_id", "required")
	}
	if toEventID == "" {
		vErr.add("event_id", "required")
	}
	if s.strict && fromEventID != "" && fromEventID == toEventID {
		vErr.add("event_id", "must differ from user_event_id")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	if params.Principal.UserID == "" || fromUserID != params.Principal.UserID {
		err = ErrUnauthorized
		return
	}

	var target Event
	target, err = s.events.GetEvent(ctx, toEventID)
	if err != nil {
		return
	}

	var owner User
	owner, err = s.users.GetUser(ctx, target.OwnerID)
	if err != nil {
		return
	}
	if strings.TrimSpace(owner.Email) == "" {
		err = fmt.Errorf("%w: target owner has no contact address", ErrNotFound)
		return
	}

	if s.strict {
		if err = s.checkStrictProposal(ctx, fromUserID, fromEventID, target); err != nil {
			return
		}
	}

	now := s.now()
	swap, err = s.swaps.CreateSwap(ctx, Swap{
		ID:          s.idGenerator(),
		FromUserID:  fromUserID,
		ToUserID:    target.OwnerID,
		FromEventID: fromEventID,
		ToEventID:   toEventID,
		Status:      SwapStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return
	}

	s.notify(ctx, logger, owner.Email, NotificationSwapRequest, swap)
	return
}

func (s *SwapService) checkStrictProposal(ctx context.Context, fromUserID, fromEventID string, target Event) error {
	offered, err := s.events.GetEvent(ctx, fromEventID)
	if err != nil {
		return err
	}
	if offered.OwnerID != fromUserID {
		return ErrUnauthorized
	}
	if target.OwnerID == fromUserID {
		return &ValidationError{FieldErrors: map[string]string{"event_id": "must belong to another user"}}
	}
	if offered.Status != EventStatusSwappable || target.Status != EventStatusSwappable {
		return fmt.Errorf("%w: both events must be swappable", ErrConflict)
	}
	return nil
}

// RespondToSwap records the target's decision. Rejection only changes the
// swap status. Acceptance exchanges the two events' time ranges and marks
// both BUSY in the same transaction as the status change.
func (s *SwapService) RespondToSwap(ctx context.Context, params RespondToSwapParams) (result RespondToSwapResult, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "RespondToSwap",
		"principal_id", params.Principal.UserID,
		"swap_id", params.SwapID,
		"accept", params.Accept,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to respond to swap", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "swap responded", "status", result.Swap.Status)
	}()

	if strings.TrimSpace(params.SwapID) == "" {
		err = &ValidationError{FieldErrors: map[string]string{"swap_id": "required"}}
		return
	}

	var current Swap
	current, err = s.swaps.GetSwap(ctx, params.SwapID)
	if err != nil {
		return
	}
	if current.ToUserID != params.Principal.UserID {
		err = ErrUnauthorized
		return
	}
	if current.Status.Terminal() {
		err = fmt.Errorf("%w: swap already %s", ErrConflict, strings.ToLower(string(current.Status)))
		return
	}

	if params.Accept {
		result, err = s.accept(ctx, logger, current)
	} else {
		result.Swap, err = s.swaps.TransitionSwap(ctx, current.ID, SwapStatusPending, SwapStatusRejected, s.now())
	}
	if err != nil {
		return
	}

	s.notifyParties(ctx, logger, result.Swap)
	return
}

func (s *SwapService) accept(ctx context.Context, logger *slog.Logger, pending Swap) (RespondToSwapResult, error) {
	if s.exchanger == nil {
		return RespondToSwapResult{}, fmt.Errorf("swap exchanger not configured")
	}

	var result RespondToSwapResult
	now := s.now()
	err := s.exchanger.Exchange(ctx, func(ctx context.Context, tx SwapExchangeTx) error {
		claimed, err := tx.TransitionSwap(ctx, pending.ID, SwapStatusPending, SwapStatusAccepted, now)
		if err != nil {
			return err
		}

		offered, err := tx.GetEvent(ctx, claimed.FromEventID)
		if err != nil {
			return err
		}
		requested, err := tx.GetEvent(ctx, claimed.ToEventID)
		if err != nil {
			return err
		}

		originalStart, originalEnd := offered.Start, offered.End
		offered.Start, offered.End = requested.Start, requested.End
		requested.Start, requested.End = originalStart, originalEnd
		offered.Status = EventStatusBusy
		requested.Status = EventStatusBusy
		offered.UpdatedAt = now
		requested.UpdatedAt = now

		if offered, err = tx.UpdateEvent(ctx, offered); err != nil {
			return err
		}
		if requested, err = tx.UpdateEvent(ctx, requested); err != nil {
			return err
		}

		result = RespondToSwapResult{Swap: claimed, FromEvent: &offered, ToEvent: &requested}
		return nil
	})
	if err == nil {
		return result, nil
	}

	s.logObservedStatus(ctx, logger, pending.ID)
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict) {
		return RespondToSwapResult{}, err
	}
	return RespondToSwapResult{}, fmt.Errorf("%w: %v", ErrTransactionFailed, err)
}

func (s *SwapService) logObservedStatus(ctx context.Context, logger *slog.Logger, swapID string) {
	observed, err := s.swaps.GetSwap(ctx, swapID)
	if err != nil {
		logger.WarnContext(ctx, "could not re-read swap after failed exchange", "error", err)
		return
	}
	logger.WarnContext(ctx, "exchange rolled back", "observed_status", observed.Status)
}

// ListSwapsForUser returns proposals the user sent or received, newest
// first, joined with both parties and both events. Records that no longer
// exist are left nil.
func (s *SwapService) ListSwapsForUser(ctx context.Context, userID string) ([]SwapDetail, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	logger := s.loggerWith(ctx, "ListSwapsForUser", "user_id", userID)

	swaps, err := s.swaps.ListSwapsForUser(ctx, userID)
	if err != nil {
		logger.ErrorContext(ctx, "failed to list swaps", "error", err, "error_kind", ErrorKind(err))
		return nil, err
	}

	users := make(map[string]*UserSummary)
	details := make([]SwapDetail, 0, len(swaps))
	for _, swap := range swaps {
		detail := SwapDetail{Swap: swap}
		if detail.FromUser, err = s.lookupSummary(ctx, users, swap.FromUserID); err != nil {
			return nil, err
		}
		if detail.ToUser, err = s.lookupSummary(ctx, users, swap.ToUserID); err != nil {
			return nil, err
		}
		if detail.FromEvent, err = s.lookupEvent(ctx, swap.FromEventID); err != nil {
			return nil, err
		}
		if detail.ToEvent, err = s.lookupEvent(ctx, swap.ToEventID); err != nil {
			return nil, err
		}
		details = append(details, detail)
	}

	logger.InfoContext(ctx, "listed swaps", "result_count", len(details))
	return details, nil
}

func (s *SwapService) lookupSummary(ctx context.Context, cache map[string]*UserSummary, id string) (*UserSummary, error) {
	if summary, ok := cache[id]; ok {
		return summary, nil
	}
	user, err := s.users.GetUser(ctx, id)
	if errors.Is(err, ErrNotFound) {
		cache[id] = nil
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	summary := &UserSummary{ID: user.ID, Name: user.Name, Email: user.Email}
	cache[id] = summary
	return summary, nil
}

func (s *SwapService) lookupEvent(ctx context.Context, id string) (*Event, error) {
	event, err := s.events.GetEvent(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (s *SwapService) notifyParties(ctx context.Context, logger *slog.Logger, swap Swap) {
	for _, userID := range []string{swap.FromUserID, swap.ToUserID} {
		user, err := s.users.GetUser(ctx, userID)
		if err != nil {
			logger.WarnContext(ctx, "skipping notification for unknown party", "user_id", userID, "error", err)
			continue
		}
		s.notify(ctx, logger, user.Email, NotificationSwapResponse, swap)
	}
}

func (s *SwapService) notify(ctx context.Context, logger *slog.Logger, address string, kind NotificationKind, swap Swap) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifySwap(ctx, address, kind, swap); err != nil {
		logger.WarnContext(ctx, "failed to dispatch notification",
			"address", address,
			"kind", string(kind),
			"error", err,
		)
	}
}

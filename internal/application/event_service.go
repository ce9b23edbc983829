package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// EventRepository abstracts persistence operations for calendar events.
// CreateEvent and UpdateEvent report ErrConflict when the stored range would
// overlap another event; UpdateEvent also does so once the stored copy no
// longer carries expectedUpdatedAt.
type EventRepository interface {
	CreateEvent(ctx context.Context, event Event) (Event, error)
	UpdateEvent(ctx context.Context, event Event, expectedUpdatedAt time.Time) (Event, error)
	GetEvent(ctx context.Context, id string) (Event, error)
	DeleteEvent(ctx context.Context, id string) error
	ListEvents(ctx context.Context, query EventQuery) ([]Event, error)
}

// EventService manages a user's events and the marketplace views derived from them.
type EventService struct {
	events      EventRepository
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewEventService constructs an EventService instance.
func NewEventService(events EventRepository, idGenerator func() string, now func() time.Time) *EventService {
	return NewEventServiceWithLogger(events, idGenerator, now, nil)
}

// NewEventServiceWithLogger constructs an EventService with a specified logger.
func NewEventServiceWithLogger(events EventRepository, idGenerator func() string, now func() time.Time, logger *slog.Logger) *EventService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &EventService{
		events:      events,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *EventService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "EventService", operation, attrs...)
}

// CreateEvent validates and stores a new event owned by the principal.
func (s *EventService) CreateEvent(ctx context.Context, params CreateEventParams) (event Event, err error) {
	if s == nil {
		err = fmt.Errorf("EventService is nil")
		return
	}
	if s.events == nil {
		err = fmt.Errorf("event repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "CreateEvent", "principal_id", params.Principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create event", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("event_id", event.ID).InfoContext(ctx, "event created")
	}()

	if params.Principal.UserID == "" {
		err = ErrUnauthorized
		return
	}

	input := params.Input
	input.Title = strings.TrimSpace(input.Title)
	input.Description = strings.TrimSpace(input.Description)
	if input.Status == "" {
		input.Status = EventStatusBusy
	}

	vErr := &ValidationError{}
	if input.Title == "" {
		vErr.add("title", "required")
	}
	if input.Description == "" {
		vErr.add("description", "required")
	}
	validateRange(vErr, input.Start, input.End)
	if !input.Status.Valid() {
		vErr.add("status", "invalid")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	if err = s.ensureNoOverlap(ctx, input.Start, input.End, ""); err != nil {
		return
	}

	now := s.now()
	event, err = s.events.CreateEvent(ctx, Event{
		ID:          s.idGenerator(),
		OwnerID:     params.Principal.UserID,
		Title:       input.Title,
		Description: input.Description,
		Start:       input.Start.UTC(),
		End:         input.End.UTC(),
		Status:      input.Status,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	return
}

// UpdateEvent applies a partial update to an event owned by the principal.
func (s *EventService) UpdateEvent(ctx context.Context, params UpdateEventParams) (event Event, err error) {
	if s == nil {
		err = fmt.Errorf("EventService is nil")
		return
	}
	if s.events == nil {
		err = fmt.Errorf("event repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "UpdateEvent",
		"principal_id", params.Principal.UserID,
		"event_id", params.EventID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update event", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "event updated")
	}()

	if strings.TrimSpace(params.EventID) == "" {
		err = &ValidationError{FieldErrors: map[string]string{"event_id": "required"}}
		return
	}

	var existing Event
	existing, err = s.events.GetEvent(ctx, params.EventID)
	if err != nil {
		return
	}
	if existing.OwnerID != params.Principal.UserID {
		err = ErrUnauthorized
		return
	}

	patch := params.Patch
	updated := existing
	vErr := &ValidationError{}
	if patch.Title != nil {
		updated.Title = strings.TrimSpace(*patch.Title)
		if updated.Title == "" {
			vErr.add("title", "required")
		}
	}
	if patch.Description != nil {
		updated.Description = strings.TrimSpace(*patch.Description)
		if updated.Description == "" {
			vErr.add("description", "required")
		}
	}
	if patch.Start != nil {
		updated.Start = patch.Start.UTC()
	}
	if patch.End != nil {
		updated.End = patch.End.UTC()
	}
	if patch.Status != nil {
		updated.Status = *patch.Status
		if !updated.Status.Valid() {
			vErr.add("status", "invalid")
		}
	}
	validateRange(vErr, updated.Start, updated.End)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	if !updated.Start.Equal(existing.Start) || !updated.End.Equal(existing.End) {
		if err = s.ensureNoOverlap(ctx, updated.Start, updated.End, existing.ID); err != nil {
			return
		}
	}

	updated.UpdatedAt = s.now()
	event, err = s.events.UpdateEvent(ctx, updated, existing.UpdatedAt)
	return
}

// DeleteEvent removes an event owned by the principal.
func (s *EventService) DeleteEvent(ctx context.Context, principal Principal, eventID string) (err error) {
	if s == nil {
		return fmt.Errorf("EventService is nil")
	}
	if s.events == nil {
		return fmt.Errorf("event repository not configured")
	}

	logger := s.loggerWith(ctx, "DeleteEvent",
		"principal_id", principal.UserID,
		"event_id", eventID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to delete event", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "event deleted")
	}()

	var existing Event
	existing, err = s.events.GetEvent(ctx, eventID)
	if err != nil {
		return err
	}
	if existing.OwnerID != principal.UserID {
		return ErrUnauthorized
	}

	return s.events.DeleteEvent(ctx, eventID)
}

// ListEventsByOwner returns every event of a user ordered by start time.
// An empty result is reported as ErrNotFound.
func (s *EventService) ListEventsByOwner(ctx context.Context, ownerID string) ([]Event, error) {
	if s == nil {
		return nil, fmt.Errorf("EventService is nil")
	}
	if s.events == nil {
		return nil, fmt.Errorf("event repository not configured")
	}

	logger := s.loggerWith(ctx, "ListEventsByOwner", "owner_id", ownerID)

	if strings.TrimSpace(ownerID) == "" {
		return nil, &ValidationError{FieldErrors: map[string]string{"user_id": "required"}}
	}

	events, err := s.events.ListEvents(ctx, EventQuery{OwnerID: ownerID})
	if err != nil {
		logger.ErrorContext(ctx, "failed to list events", "error", err, "error_kind", ErrorKind(err))
		return nil, err
	}
	if len(events) == 0 {
		return nil, ErrNotFound
	}

	logger.InfoContext(ctx, "listed events", "result_count", len(events))
	return events, nil
}

// ListSwappableEvents returns the marketplace: SWAPPABLE events owned by
// anyone other than excludingUserID. An empty marketplace is ErrNotFound.
func (s *EventService) ListSwappableEvents(ctx context.Context, excludingUserID string) ([]Event, error) {
	if s == nil {
		return nil, fmt.Errorf("EventService is nil")
	}
	if s.events == nil {
		return nil, fmt.Errorf("event repository not configured")
	}

	logger := s.loggerWith(ctx, "ListSwappableEvents", "excluding_user_id", excludingUserID)

	events, err := s.events.ListEvents(ctx, EventQuery{
		ExcludeOwnerID: excludingUserID,
		Status:         EventStatusSwappable,
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to list swappable events", "error", err, "error_kind", ErrorKind(err))
		return nil, err
	}
	if len(events) == 0 {
		return nil, ErrNotFound
	}

	logger.InfoContext(ctx, "listed swappable events", "result_count", len(events))
	return events, nil
}

// ListBlockedTimes returns the time range of every stored event ordered by start.
func (s *EventService) ListBlockedTimes(ctx context.Context) ([]TimeRange, error) {
	if s == nil {
		return nil, fmt.Errorf("EventService is nil")
	}
	if s.events == nil {
		return nil, fmt.Errorf("event repository not configured")
	}

	events, err := s.events.ListEvents(ctx, EventQuery{})
	if err != nil {
		s.loggerWith(ctx, "ListBlockedTimes").ErrorContext(ctx, "failed to list events", "error", err, "error_kind", ErrorKind(err))
		return nil, err
	}

	ranges := make([]TimeRange, 0, len(events))
	for _, event := range events {
		ranges = append(ranges, TimeRange{Start: event.Start, End: event.End})
	}
	return ranges, nil
}

// ensureNoOverlap rejects a range intersecting any stored event other than excludeID.
func (s *EventService) ensureNoOverlap(ctx context.Context, start, end time.Time, excludeID string) error {
	overlapping, err := s.events.ListEvents(ctx, EventQuery{
		OverlapStart:   &start,
		OverlapEnd:     &end,
		ExcludeEventID: excludeID,
	})
	if err != nil {
		return err
	}
	if len(overlapping) > 0 {
		return fmt.Errorf("%w: overlaps event %s", ErrConflict, overlapping[0].ID)
	}
	return nil
}

func validateRange(vErr *ValidationError, start, end time.Time) {
	if start.IsZero() {
		vErr.add("start", "required")
	}
	if end.IsZero() {
		vErr.add("end", "required")
	}
	if !start.IsZero() && !end.IsZero() && !end.After(start) {
		vErr.add("end", "must be after start")
	}
}

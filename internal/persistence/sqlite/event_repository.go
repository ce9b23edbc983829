package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/swapmarket/internal/persistence"
)

// EventRepository implements persistence.EventRepository using SQLite
type EventRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
	retry  RetryConfig
}

// NewEventRepository creates a new SQLite event repository
func NewEventRepository(pool *ConnectionPool) *EventRepository {
	return &EventRepository{
		pool:   pool,
		mapper: NewErrorMapper(),
		retry:  DefaultRetryConfig(),
	}
}

const eventColumns = `id, owner_id, title, description, start_time, end_time, status, created_at, updated_at`

// CreateEvent inserts a new event
func (r *EventRepository) CreateEvent(ctx context.Context, event persistence.Event) error {
	if event.ID == "" || event.OwnerID == "" {
		return persistence.ErrConstraintViolation
	}
	return insertEvent(ctx, r.pool.db, r.mapper, event)
}

// CreateEventExclusive inserts event unless a stored event overlaps its
// range. The overlap query and the insert share one transaction.
func (r *EventRepository) CreateEventExclusive(ctx context.Context, event persistence.Event) error {
	if event.ID == "" || event.OwnerID == "" {
		return persistence.ErrConstraintViolation
	}

	return withRetry(ctx, r.retry, func() error {
		return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			if err := rejectOverlap(ctx, tx, r.mapper, event.Start, event.End, ""); err != nil {
				return err
			}
			return insertEvent(ctx, tx, r.mapper, event)
		})
	})
}

// UpdateEvent replaces the mutable fields of an existing event
func (r *EventRepository) UpdateEvent(ctx context.Context, event persistence.Event) error {
	return updateEvent(ctx, r.pool.db, r.mapper, event)
}

// UpdateEventIfUnchanged replaces the mutable fields of an event only while
// the stored row still carries expectedUpdatedAt. A stale read or a new range
// that overlaps another event yields ErrConflict.
func (r *EventRepository) UpdateEventIfUnchanged(ctx context.Context, event persistence.Event, expectedUpdatedAt time.Time) error {
	if event.ID == "" {
		return persistence.ErrConstraintViolation
	}

	return withRetry(ctx, r.retry, func() error {
		return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			current, err := getEvent(ctx, tx, r.mapper, event.ID)
			if err != nil {
				return err
			}
			if !current.UpdatedAt.Equal(expectedUpdatedAt) {
				return fmt.Errorf("%w: event %s changed since it was read", persistence.ErrConflict, event.ID)
			}
			if !current.Start.Equal(event.Start) || !current.End.Equal(event.End) {
				if err := rejectOverlap(ctx, tx, r.mapper, event.Start, event.End, event.ID); err != nil {
					return err
				}
			}
			return updateEvent(ctx, tx, r.mapper, event)
		})
	})
}

// GetEvent retrieves an event by ID
func (r *EventRepository) GetEvent(ctx context.Context, id string) (persistence.Event, error) {
	return getEvent(ctx, r.pool.db, r.mapper, id)
}

// DeleteEvent removes an event
func (r *EventRepository) DeleteEvent(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}

	result, err := r.pool.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return r.mapper.MapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// ListEvents returns events matching filter ordered by start time
func (r *EventRepository) ListEvents(ctx context.Context, filter persistence.EventFilter) ([]persistence.Event, error) {
	var (
		conditions []string
		args       []any
	)

	if filter.OwnerID != "" {
		conditions = append(conditions, "owner_id = ?")
		args = append(args, filter.OwnerID)
	}
	if filter.ExcludeOwnerID != "" {
		conditions = append(conditions, "owner_id <> ?")
		args = append(args, filter.ExcludeOwnerID)
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.OverlapStart != nil && filter.OverlapEnd != nil {
		conditions = append(conditions, "start_time < ? AND end_time > ?")
		args = append(args, formatTime(*filter.OverlapEnd), formatTime(*filter.OverlapStart))
	}
	if filter.ExcludeEventID != "" {
		conditions = append(conditions, "id <> ?")
		args = append(args, filter.ExcludeEventID)
	}

	query := `SELECT ` + eventColumns + ` FROM events`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY start_time ASC, id ASC`

	rows, err := r.pool.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	events := make([]persistence.Event, 0)
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}

	return events, nil
}

func getEvent(ctx context.Context, q queryer, mapper *ErrorMapper, id string) (persistence.Event, error) {
	if id == "" {
		return persistence.Event{}, persistence.ErrNotFound
	}

	event, err := scanEvent(q.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id))
	if err != nil {
		return persistence.Event{}, mapper.MapError(err)
	}
	return event, nil
}

func insertEvent(ctx context.Context, q queryer, mapper *ErrorMapper, event persistence.Event) error {
	if event.Status == "" {
		event.Status = persistence.EventStatusBusy
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO events (`+eventColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		event.ID,
		event.OwnerID,
		event.Title,
		event.Description,
		formatTime(event.Start),
		formatTime(event.End),
		string(event.Status),
		formatTime(event.CreatedAt),
		formatTime(event.UpdatedAt),
	)
	if err != nil {
		return mapper.MapError(err)
	}
	return nil
}

// rejectOverlap reports ErrConflict when a stored event other than excludeID
// intersects the half-open range [start, end).
func rejectOverlap(ctx context.Context, q queryer, mapper *ErrorMapper, start, end time.Time, excludeID string) error {
	var id string
	err := q.QueryRowContext(ctx, `
		SELECT id FROM events
		WHERE start_time < ? AND end_time > ? AND id <> ?
		ORDER BY start_time, id
		LIMIT 1
	`, formatTime(end), formatTime(start), excludeID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return mapper.MapError(err)
	}
	return fmt.Errorf("%w: overlaps event %s", persistence.ErrConflict, id)
}

func updateEvent(ctx context.Context, q queryer, mapper *ErrorMapper, event persistence.Event) error {
	if event.ID == "" {
		return persistence.ErrConstraintViolation
	}

	result, err := q.ExecContext(ctx, `
		UPDATE events
		SET title = ?, description = ?, start_time = ?, end_time = ?, status = ?, updated_at = ?
		WHERE id = ?
	`,
		event.Title,
		event.Description,
		formatTime(event.Start),
		formatTime(event.End),
		string(event.Status),
		formatTime(event.UpdatedAt),
		event.ID,
	)
	if err != nil {
		return mapper.MapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (persistence.Event, error) {
	var (
		event                            persistence.Event
		status                           string
		start, end, createdAt, updatedAt string
	)

	if err := row.Scan(
		&event.ID,
		&event.OwnerID,
		&event.Title,
		&event.Description,
		&start,
		&end,
		&status,
		&createdAt,
		&updatedAt,
	); err != nil {
		return persistence.Event{}, err
	}

	event.Status = persistence.EventStatus(status)

	var err error
	if event.Start, err = parseTime(start); err != nil {
		return persistence.Event{}, fmt.Errorf("failed to parse start_time: %w", err)
	}
	if event.End, err = parseTime(end); err != nil {
		return persistence.Event{}, fmt.Errorf("failed to parse end_time: %w", err)
	}
	if event.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Event{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if event.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Event{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	return event, nil
}

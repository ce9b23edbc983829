package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/swapmarket/internal/persistence"
)

// SwapRepository implements persistence.SwapRepository and
// persistence.SwapExchanger using SQLite
type SwapRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
	retry  RetryConfig
}

// NewSwapRepository creates a new SQLite swap repository
func NewSwapRepository(pool *ConnectionPool) *SwapRepository {
	return &SwapRepository{
		pool:   pool,
		mapper: NewErrorMapper(),
		retry:  DefaultRetryConfig(),
	}
}

const swapColumns = `id, from_user_id, to_user_id, from_event_id, to_event_id, status, created_at, updated_at`

// CreateSwap inserts a new swap proposal
func (r *SwapRepository) CreateSwap(ctx context.Context, swap persistence.Swap) error {
	if swap.ID == "" || swap.FromUserID == "" || swap.ToUserID == "" ||
		swap.FromEventID == "" || swap.ToEventID == "" {
		return persistence.ErrConstraintViolation
	}
	if swap.Status == "" {
		swap.Status = persistence.SwapStatusPending
	}

	_, err := r.pool.db.ExecContext(ctx, `
		INSERT INTO swaps (`+swapColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		swap.ID,
		swap.FromUserID,
		swap.ToUserID,
		swap.FromEventID,
		swap.ToEventID,
		string(swap.Status),
		formatTime(swap.CreatedAt),
		formatTime(swap.UpdatedAt),
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return nil
}

// GetSwap retrieves a swap proposal by ID
func (r *SwapRepository) GetSwap(ctx context.Context, id string) (persistence.Swap, error) {
	return getSwap(ctx, r.pool.db, r.mapper, id)
}

// ListSwapsForUser returns proposals the user sent or received, newest first
func (r *SwapRepository) ListSwapsForUser(ctx context.Context, userID string) ([]persistence.Swap, error) {
	rows, err := r.pool.db.QueryContext(ctx, `
		SELECT `+swapColumns+`
		FROM swaps
		WHERE from_user_id = ? OR to_user_id = ?
		ORDER BY created_at DESC, id DESC
	`, userID, userID)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	swaps := make([]persistence.Swap, 0)
	for rows.Next() {
		swap, err := scanSwap(rows)
		if err != nil {
			return nil, err
		}
		swaps = append(swaps, swap)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}

	return swaps, nil
}

// TransitionSwap moves a swap from one status to another
func (r *SwapRepository) TransitionSwap(ctx context.Context, id string, from, to persistence.SwapStatus, at time.Time) (persistence.Swap, error) {
	var swap persistence.Swap
	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		var err error
		swap, err = transitionSwap(ctx, tx, r.mapper, id, from, to, at)
		return err
	})
	if err != nil {
		return persistence.Swap{}, err
	}
	return swap, nil
}

// Exchange runs fn inside one transaction. Lock contention that outlives the
// busy timeout is retried with backoff; any other error from fn rolls the
// transaction back and is returned unchanged.
func (r *SwapRepository) Exchange(ctx context.Context, fn func(ctx context.Context, tx persistence.SwapExchangeTx) error) error {
	return withRetry(ctx, r.retry, func() error {
		return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			return fn(ctx, &exchangeTx{tx: tx, mapper: r.mapper})
		})
	})
}

// exchangeTx scopes swap and event writes to a single transaction
type exchangeTx struct {
	tx     *sql.Tx
	mapper *ErrorMapper
}

func (e *exchangeTx) TransitionSwap(ctx context.Context, id string, from, to persistence.SwapStatus, at time.Time) (persistence.Swap, error) {
	return transitionSwap(ctx, e.tx, e.mapper, id, from, to, at)
}

func (e *exchangeTx) GetEvent(ctx context.Context, id string) (persistence.Event, error) {
	return getEvent(ctx, e.tx, e.mapper, id)
}

func (e *exchangeTx) UpdateEvent(ctx context.Context, event persistence.Event) error {
	return updateEvent(ctx, e.tx, e.mapper, event)
}

// transitionSwap performs the conditional status update. Zero affected rows
// means the row vanished (ErrNotFound) or left the from status (ErrConflict).
func transitionSwap(ctx context.Context, q queryer, mapper *ErrorMapper, id string, from, to persistence.SwapStatus, at time.Time) (persistence.Swap, error) {
	if id == "" {
		return persistence.Swap{}, persistence.ErrNotFound
	}

	result, err := q.ExecContext(ctx, `
		UPDATE swaps
		SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, string(to), formatTime(at), id, string(from))
	if err != nil {
		return persistence.Swap{}, mapper.MapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return persistence.Swap{}, fmt.Errorf("failed to get rows affected: %w", err)
	}

	swap, err := getSwap(ctx, q, mapper, id)
	if err != nil {
		return persistence.Swap{}, err
	}
	if rowsAffected == 0 {
		return swap, persistence.ErrConflict
	}
	return swap, nil
}

func getSwap(ctx context.Context, q queryer, mapper *ErrorMapper, id string) (persistence.Swap, error) {
	if id == "" {
		return persistence.Swap{}, persistence.ErrNotFound
	}

	swap, err := scanSwap(q.QueryRowContext(ctx, `SELECT `+swapColumns+` FROM swaps WHERE id = ?`, id))
	if err != nil {
		return persistence.Swap{}, mapper.MapError(err)
	}
	return swap, nil
}

func scanSwap(row rowScanner) (persistence.Swap, error) {
	var (
		swap                 persistence.Swap
		status               string
		createdAt, updatedAt string
	)

	if err := row.Scan(
		&swap.ID,
		&swap.FromUserID,
		&swap.ToUserID,
		&swap.FromEventID,
		&swap.ToEventID,
		&status,
		&createdAt,
		&updatedAt,
	); err != nil {
		return persistence.Swap{}, err
	}

	swap.Status = persistence.SwapStatus(status)

	var err error
	if swap.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Swap{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if swap.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Swap{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	return swap, nil
}

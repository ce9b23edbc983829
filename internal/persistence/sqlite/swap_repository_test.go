package sqlite

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/example/swapmarket/internal/persistence"
)

type swapFixture struct {
	storage *Storage
	swap    persistence.Swap
	a, b    persistence.Event
}

func newSwapFixture(t *testing.T) swapFixture {
	t.Helper()

	storage := newTestStorage(t)
	seedUser(t, storage, "alice", "alice@example.com")
	seedUser(t, storage, "bob", "bob@example.com")

	a := seedEvent(t, storage, "event-a", "alice", testEpoch.Add(time.Hour), persistence.EventStatusSwappable)
	b := seedEvent(t, storage, "event-b", "bob", testEpoch.Add(5*time.Hour), persistence.EventStatusSwappable)

	swap := persistence.Swap{
		ID:          "swap-1",
		FromUserID:  "alice",
		ToUserID:    "bob",
		FromEventID: a.ID,
		ToEventID:   b.ID,
		Status:      persistence.SwapStatusPending,
		CreatedAt:   testEpoch,
		UpdatedAt:   testEpoch,
	}
	if err := storage.Swaps.CreateSwap(context.Background(), swap); err != nil {
		t.Fatalf("CreateSwap failed: %v", err)
	}

	return swapFixture{storage: storage, swap: swap, a: a, b: b}
}

func TestSwapRepository_ListSwapsForUser(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fx := newSwapFixture(t)
	seedUser(t, fx.storage, "carol", "carol@example.com")

	later := fx.swap
	later.ID = "swap-2"
	later.FromUserID = "carol"
	later.ToUserID = "alice"
	later.CreatedAt = testEpoch.Add(time.Minute)
	later.UpdatedAt = later.CreatedAt
	if err := fx.storage.Swaps.CreateSwap(ctx, later); err != nil {
		t.Fatalf("CreateSwap failed: %v", err)
	}

	swaps, err := fx.storage.Swaps.ListSwapsForUser(ctx, "alice")
	if err != nil {
		t.Fatalf("ListSwapsForUser failed: %v", err)
	}
	if len(swaps) != 2 || swaps[0].ID != "swap-2" || swaps[1].ID != "swap-1" {
		t.Fatalf("expected newest first, got %#v", swaps)
	}

	swaps, err = fx.storage.Swaps.ListSwapsForUser(ctx, "bob")
	if err != nil {
		t.Fatalf("ListSwapsForUser failed: %v", err)
	}
	if len(swaps) != 1 {
		t.Fatalf("expected 1 swap for bob, got %d", len(swaps))
	}

	swaps, err = fx.storage.Swaps.ListSwapsForUser(ctx, "nobody")
	if err != nil {
		t.Fatalf("ListSwapsForUser failed: %v", err)
	}
	if len(swaps) != 0 {
		t.Fatalf("expected no swaps, got %d", len(swaps))
	}
}

func TestSwapRepository_TransitionSwap(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fx := newSwapFixture(t)
	at := testEpoch.Add(time.Hour)

	rejected, err := fx.storage.Swaps.TransitionSwap(ctx, fx.swap.ID, persistence.SwapStatusPending, persistence.SwapStatusRejected, at)
	if err != nil {
		t.Fatalf("TransitionSwap failed: %v", err)
	}
	if rejected.Status != persistence.SwapStatusRejected || !rejected.UpdatedAt.Equal(at) {
		t.Fatalf("unexpected swap after transition: %#v", rejected)
	}

	current, err := fx.storage.Swaps.TransitionSwap(ctx, fx.swap.ID, persistence.SwapStatusPending, persistence.SwapStatusAccepted, at)
	if !errors.Is(err, persistence.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if current.Status != persistence.SwapStatusRejected {
		t.Fatalf("terminal swap changed: %#v", current)
	}

	if _, err := fx.storage.Swaps.TransitionSwap(ctx, "missing", persistence.SwapStatusPending, persistence.SwapStatusRejected, at); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSwapRepository_ExchangeRollsBackOnError(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fx := newSwapFixture(t)
	failure := errors.New("second write failed")

	err := fx.storage.Swaps.Exchange(ctx, func(ctx context.Context, tx persistence.SwapExchangeTx) error {
		if _, err := tx.TransitionSwap(ctx, fx.swap.ID, persistence.SwapStatusPending, persistence.SwapStatusAccepted, testEpoch); err != nil {
			return err
		}
		a, err := tx.GetEvent(ctx, fx.a.ID)
		if err != nil {
			return err
		}
		a.Start, a.End = fx.b.Start, fx.b.End
		if err := tx.UpdateEvent(ctx, a); err != nil {
			return err
		}
		return failure
	})
	if !errors.Is(err, failure) {
		t.Fatalf("expected injected failure, got %v", err)
	}

	swap, err := fx.storage.Swaps.GetSwap(ctx, fx.swap.ID)
	if err != nil {
		t.Fatalf("GetSwap failed: %v", err)
	}
	if swap.Status != persistence.SwapStatusPending {
		t.Fatalf("expected swap to remain PENDING, got %s", swap.Status)
	}

	a, err := fx.storage.Events.GetEvent(ctx, fx.a.ID)
	if err != nil {
		t.Fatalf("GetEvent failed: %v", err)
	}
	if !a.Start.Equal(fx.a.Start) || !a.End.Equal(fx.a.End) {
		t.Fatalf("expected event A unchanged, got %v - %v", a.Start, a.End)
	}
}

func TestSwapRepository_ConcurrentClaimsCommitOnce(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fx := newSwapFixture(t)

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		committed int
		conflicts int
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := fx.storage.Swaps.Exchange(ctx, func(ctx context.Context, tx persistence.SwapExchangeTx) error {
				_, err := tx.TransitionSwap(ctx, fx.swap.ID, persistence.SwapStatusPending, persistence.SwapStatusAccepted, testEpoch)
				return err
			})

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				committed++
			case errors.Is(err, persistence.ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if committed != 1 || conflicts != workers-1 {
		t.Fatalf("expected exactly one commit, got %d commits and %d conflicts", committed, conflicts)
	}
}

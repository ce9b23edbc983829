package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"
)

type swapFixture struct {
	events    *eventRepositoryStub
	swaps     *swapRepositoryStub
	exchanger *exchangerStub
	users     userDirectoryStub
	notifier  *notifierStub
	svc       *SwapService
}

func newSwapFixture(t *testing.T, strict bool) *swapFixture {
	t.Helper()

	f := &swapFixture{
		events:   newEventRepositoryStub(),
		swaps:    newSwapRepositoryStub(),
		notifier: &notifierStub{},
		users: userDirectoryStub{
			"alice": {ID: "alice", Name: "Alice", Email: "alice@example.com"},
			"bob":   {ID: "bob", Name: "Bob", Email: "bob@example.com"},
		},
	}
	f.exchanger = &exchangerStub{events: f.events, swaps: f.swaps}

	// Alice offers 10:00-11:00, Bob owns 14:00-15:00.
	f.events.seed(Event{ID: "a", OwnerID: "alice", Title: "A", Description: "a", Start: at(1), End: at(2), Status: EventStatusSwappable})
	f.events.seed(Event{ID: "b", OwnerID: "bob", Title: "B", Description: "b", Start: at(5), End: at(6), Status: EventStatusSwappable})

	f.svc = NewSwapService(f.swaps, f.exchanger, f.events, f.users, f.notifier, sequence("swap-1", "swap-2"), func() time.Time { return eventEpoch }, strict)
	return f
}

func (f *swapFixture) propose(t *testing.T) Swap {
	t.Helper()

	swap, err := f.svc.ProposeSwap(context.Background(), ProposeSwapParams{
		Principal:   Principal{UserID: "alice", Email: "alice@example.com"},
		FromUserID:  "alice",
		FromEventID: "a",
		ToEventID:   "b",
	})
	if err != nil {
		t.Fatalf("ProposeSwap failed: %v", err)
	}
	return swap
}

func TestSwapService_ProposeSwap(t *testing.T) {
	t.Parallel()

	t.Run("persists pending swap and notifies target", func(t *testing.T) {
		t.Parallel()

		f := newSwapFixture(t, true)
		swap := f.propose(t)

		if swap.ID != "swap-1" || swap.Status != SwapStatusPending || swap.ToUserID != "bob" {
			t.Fatalf("unexpected swap: %#v", swap)
		}
		sent := f.notifier.sent()
		if len(sent) != 1 || sent[0].address != "bob@example.com" || sent[0].kind != NotificationSwapRequest {
			t.Fatalf("unexpected notifications: %#v", sent)
		}
	})

	cases := []struct {
		name    string
		strict  bool
		prepare func(f *swapFixture)
		params  ProposeSwapParams
		wantErr error
	}{
		{
			name:    "proposer must be principal",
			strict:  true,
			params:  ProposeSwapParams{Principal: Principal{UserID: "bob"}, FromUserID: "alice", FromEventID: "a", ToEventID: "b"},
			wantErr: ErrUnauthorized,
		},
		{
			name:    "unknown target event",
			strict:  true,
			params:  ProposeSwapParams{Principal: Principal{UserID: "alice"}, FromUserID: "alice", FromEventID: "a", ToEventID: "missing"},
			wantErr: ErrNotFound,
		},
		{
			name:   "target owner without account",
			strict: false,
			prepare: func(f *swapFixture) {
				f.events.seed(Event{ID: "orphan", OwnerID: "ghost", Start: at(8), End: at(9), Status: EventStatusSwappable})
			},
			params:  ProposeSwapParams{Principal: Principal{UserID: "alice"}, FromUserID: "alice", FromEventID: "a", ToEventID: "orphan"},
			wantErr: ErrNotFound,
		},
		{
			name:   "strict requires swappable events",
			strict: true,
			prepare: func(f *swapFixture) {
				f.events.seed(Event{ID: "b", OwnerID: "bob", Start: at(5), End: at(6), Status: EventStatusBusy})
			},
			params:  ProposeSwapParams{Principal: Principal{UserID: "alice"}, FromUserID: "alice", FromEventID: "a", ToEventID: "b"},
			wantErr: ErrConflict,
		},
		{
			name:    "strict requires owned offered event",
			strict:  true,
			params:  ProposeSwapParams{Principal: Principal{UserID: "bob"}, FromUserID: "bob", FromEventID: "a", ToEventID: "b"},
			wantErr: ErrUnauthorized,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			f := newSwapFixture(t, tc.strict)
			if tc.prepare != nil {
				tc.prepare(f)
			}

			_, err := f.svc.ProposeSwap(context.Background(), tc.params)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
			if len(f.swaps.all()) != 0 {
				t.Fatalf("expected no swap to be stored")
			}
		})
	}

	t.Run("missing ids are a validation error", func(t *testing.T) {
		t.Parallel()

		f := newSwapFixture(t, true)
		_, err := f.svc.ProposeSwap(context.Background(), ProposeSwapParams{Principal: Principal{UserID: "alice"}})
		var vErr *ValidationError
		if !errors.As(err, &vErr) || len(vErr.FieldErrors) != 3 {
			t.Fatalf("expected three field errors, got %v", err)
		}
	})

	t.Run("lenient policy ignores offered event state", func(t *testing.T) {
		t.Parallel()

		f := newSwapFixture(t, false)
		f.events.seed(Event{ID: "b", OwnerID: "bob", Start: at(5), End: at(6), Status: EventStatusBusy})

		if _, err := f.svc.ProposeSwap(context.Background(), ProposeSwapParams{
			Principal:   Principal{UserID: "alice"},
			FromUserID:  "alice",
			FromEventID: "not-yet-created",
			ToEventID:   "b",
		}); err != nil {
			t.Fatalf("expected lenient proposal to succeed, got %v", err)
		}
	})
}

func TestSwapService_RespondToSwap_Accept(t *testing.T) {
	t.Parallel()

	f := newSwapFixture(t, true)
	swap := f.propose(t)

	result, err := f.svc.RespondToSwap(context.Background(), RespondToSwapParams{
		Principal: Principal{UserID: "bob"},
		SwapID:    swap.ID,
		Accept:    true,
	})
	if err != nil {
		t.Fatalf("RespondToSwap failed: %v", err)
	}
	if result.Swap.Status != SwapStatusAccepted {
		t.Fatalf("expected ACCEPTED, got %s", result.Swap.Status)
	}

	a := f.events.get("a")
	b := f.events.get("b")
	if !a.Start.Equal(at(5)) || !a.End.Equal(at(6)) || a.Status != EventStatusBusy {
		t.Fatalf("unexpected event a after exchange: %#v", a)
	}
	if !b.Start.Equal(at(1)) || !b.End.Equal(at(2)) || b.Status != EventStatusBusy {
		t.Fatalf("unexpected event b after exchange: %#v", b)
	}
	if result.FromEvent == nil || result.FromEvent.ID != "a" || result.ToEvent == nil || result.ToEvent.ID != "b" {
		t.Fatalf("expected both updated events in result: %#v", result)
	}

	responses := 0
	for _, n := range f.notifier.sent() {
		if n.kind == NotificationSwapResponse {
			responses++
			if n.swap.Status != SwapStatusAccepted {
				t.Fatalf("expected ACCEPTED payload, got %s", n.swap.Status)
			}
		}
	}
	if responses != 2 {
		t.Fatalf("expected both parties to be notified, got %d", responses)
	}

	_, err = f.svc.RespondToSwap(context.Background(), RespondToSwapParams{Principal: Principal{UserID: "bob"}, SwapID: swap.ID, Accept: true})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict on second accept, got %v", err)
	}
	if !f.events.get("a").Start.Equal(at(5)) {
		t.Fatalf("second accept must not exchange again")
	}
}

func TestSwapService_RespondToSwap_Reject(t *testing.T) {
	t.Parallel()

	f := newSwapFixture(t, true)
	swap := f.propose(t)

	result, err := f.svc.RespondToSwap(context.Background(), RespondToSwapParams{Principal: Principal{UserID: "bob"}, SwapID: swap.ID})
	if err != nil {
		t.Fatalf("RespondToSwap failed: %v", err)
	}
	if result.Swap.Status != SwapStatusRejected || result.FromEvent != nil {
		t.Fatalf("unexpected reject result: %#v", result)
	}
	if !f.events.get("a").Start.Equal(at(1)) || !f.events.get("b").Start.Equal(at(5)) {
		t.Fatalf("reject must not touch event ranges")
	}

	_, err = f.svc.RespondToSwap(context.Background(), RespondToSwapParams{Principal: Principal{UserID: "bob"}, SwapID: swap.ID, Accept: true})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict after reject, got %v", err)
	}
}

func TestSwapService_RespondToSwap_Guards(t *testing.T) {
	t.Parallel()

	f := newSwapFixture(t, true)
	swap := f.propose(t)
	ctx := context.Background()

	if _, err := f.svc.RespondToSwap(ctx, RespondToSwapParams{Principal: Principal{UserID: "alice"}, SwapID: swap.ID, Accept: true}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected proposer to be refused, got %v", err)
	}
	if _, err := f.svc.RespondToSwap(ctx, RespondToSwapParams{Principal: Principal{UserID: "bob"}, SwapID: "missing"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSwapService_RespondToSwap_RollsBackOnFailure(t *testing.T) {
	t.Parallel()

	f := newSwapFixture(t, true)
	swap := f.propose(t)
	f.exchanger.failOnUpdate = 2

	_, err := f.svc.RespondToSwap(context.Background(), RespondToSwapParams{Principal: Principal{UserID: "bob"}, SwapID: swap.ID, Accept: true})
	if !errors.Is(err, ErrTransactionFailed) {
		t.Fatalf("expected ErrTransactionFailed, got %v", err)
	}

	stored, _ := f.swaps.GetSwap(context.Background(), swap.ID)
	if stored.Status != SwapStatusPending {
		t.Fatalf("expected swap to remain PENDING, got %s", stored.Status)
	}
	a := f.events.get("a")
	b := f.events.get("b")
	if !a.Start.Equal(at(1)) || a.Status != EventStatusSwappable || !b.Start.Equal(at(5)) || b.Status != EventStatusSwappable {
		t.Fatalf("expected events untouched, got a=%#v b=%#v", a, b)
	}
	if len(f.notifier.sent()) != 1 {
		t.Fatalf("expected no response notification after rollback")
	}
}

func TestSwapService_RespondToSwap_MissingEventRollsBack(t *testing.T) {
	t.Parallel()

	f := newSwapFixture(t, true)
	swap := f.propose(t)
	if err := f.events.DeleteEvent(context.Background(), "b"); err != nil {
		t.Fatalf("DeleteEvent failed: %v", err)
	}

	_, err := f.svc.RespondToSwap(context.Background(), RespondToSwapParams{Principal: Principal{UserID: "bob"}, SwapID: swap.ID, Accept: true})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	stored, _ := f.swaps.GetSwap(context.Background(), swap.ID)
	if stored.Status != SwapStatusPending {
		t.Fatalf("expected swap to remain PENDING, got %s", stored.Status)
	}
}

func TestSwapService_RespondToSwap_ConcurrentAccepts(t *testing.T) {
	t.Parallel()

	f := newSwapFixture(t, true)
	swap := f.propose(t)

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.RespondToSwap(context.Background(), RespondToSwapParams{Principal: Principal{UserID: "bob"}, SwapID: swap.ID, Accept: true})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != 1 || conflicts != workers-1 {
		t.Fatalf("expected exactly one accept, got %d successes and %d conflicts", successes, conflicts)
	}
	if !f.events.get("a").Start.Equal(at(5)) || !f.events.get("b").Start.Equal(at(1)) {
		t.Fatalf("expected a single exchange")
	}
}

func TestSwapService_ListSwapsForUser(t *testing.T) {
	t.Parallel()

	f := newSwapFixture(t, false)
	first := f.propose(t)
	f.svc.now = func() time.Time { return eventEpoch.Add(time.Minute) }
	second, err := f.svc.ProposeSwap(context.Background(), ProposeSwapParams{
		Principal:   Principal{UserID: "alice"},
		FromUserID:  "alice",
		FromEventID: "deleted",
		ToEventID:   "b",
	})
	if err != nil {
		t.Fatalf("ProposeSwap failed: %v", err)
	}

	details, err := f.svc.ListSwapsForUser(context.Background(), "bob")
	if err != nil {
		t.Fatalf("ListSwapsForUser failed: %v", err)
	}
	if len(details) != 2 || details[0].Swap.ID != second.ID || details[1].Swap.ID != first.ID {
		t.Fatalf("expected newest first, got %#v", details)
	}
	if details[0].FromEvent != nil {
		t.Fatalf("expected missing event to be nil")
	}
	if details[1].FromUser == nil || details[1].FromUser.Email != "alice@example.com" || details[1].ToEvent == nil {
		t.Fatalf("expected joined parties and events, got %#v", details[1])
	}

	none, err := f.svc.ListSwapsForUser(context.Background(), "carol")
	if err != nil || len(none) != 0 {
		t.Fatalf("expected empty list for uninvolved user, got %v %v", none, err)
	}
}

type userDirectoryStub map[string]User

func (u userDirectoryStub) GetUser(ctx context.Context, id string) (User, error) {
	user, ok := u[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return user, nil
}

type sentNotification struct {
	address string
	kind    NotificationKind
	swap    Swap
}

type notifierStub struct {
	mu    sync.Mutex
	calls []sentNotification
}

func (n *notifierStub) NotifySwap(ctx context.Context, address string, kind NotificationKind, swap Swap) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, sentNotification{address: address, kind: kind, swap: swap})
	return nil
}

func (n *notifierStub) sent() []sentNotification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentNotification(nil), n.calls...)
}

type swapRepositoryStub struct {
	mu    sync.Mutex
	swaps map[string]Swap
}

func newSwapRepositoryStub() *swapRepositoryStub {
	return &swapRepositoryStub{swaps: make(map[string]Swap)}
}

func (r *swapRepositoryStub) all() []Swap {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]Swap, 0, len(r.swaps))
	for _, swap := range r.swaps {
		result = append(result, swap)
	}
	return result
}

func (r *swapRepositoryStub) CreateSwap(ctx context.Context, swap Swap) (Swap, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.swaps[swap.ID] = swap
	return swap, nil
}

func (r *swapRepositoryStub) GetSwap(ctx context.Context, id string) (Swap, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	swap, ok := r.swaps[id]
	if !ok {
		return Swap{}, ErrNotFound
	}
	return swap, nil
}

func (r *swapRepositoryStub) ListSwapsForUser(ctx context.Context, userID string) ([]Swap, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []Swap
	for _, swap := range r.swaps {
		if swap.FromUserID == userID || swap.ToUserID == userID {
			result = append(result, swap)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (r *swapRepositoryStub) TransitionSwap(ctx context.Context, id string, from, to SwapStatus, at time.Time) (Swap, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	swap, ok := r.swaps[id]
	if !ok {
		return Swap{}, ErrNotFound
	}
	if swap.Status != from {
		return Swap{}, fmt.Errorf("%w: swap is %s", ErrConflict, swap.Status)
	}
	swap.Status = to
	swap.UpdatedAt = at
	r.swaps[id] = swap
	return swap, nil
}

// exchangerStub serialises exchanges and restores both stores when fn fails.
type exchangerStub struct {
	mu           sync.Mutex
	events       *eventRepositoryStub
	swaps        *swapRepositoryStub
	failOnUpdate int
	updates      int
}

func (e *exchangerStub) Exchange(ctx context.Context, fn func(ctx context.Context, tx SwapExchangeTx) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.events.mu.Lock()
	eventSnapshot := make(map[string]Event, len(e.events.events))
	for id, event := range e.events.events {
		eventSnapshot[id] = event
	}
	e.events.mu.Unlock()

	e.swaps.mu.Lock()
	swapSnapshot := make(map[string]Swap, len(e.swaps.swaps))
	for id, swap := range e.swaps.swaps {
		swapSnapshot[id] = swap
	}
	e.swaps.mu.Unlock()

	e.updates = 0
	if err := fn(ctx, e); err != nil {
		e.events.mu.Lock()
		e.events.events = eventSnapshot
		e.events.mu.Unlock()
		e.swaps.mu.Lock()
		e.swaps.swaps = swapSnapshot
		e.swaps.mu.Unlock()
		return err
	}
	return nil
}

func (e *exchangerStub) TransitionSwap(ctx context.Context, id string, from, to SwapStatus, at time.Time) (Swap, error) {
	return e.swaps.TransitionSwap(ctx, id, from, to, at)
}

func (e *exchangerStub) GetEvent(ctx context.Context, id string) (Event, error) {
	return e.events.GetEvent(ctx, id)
}

func (e *exchangerStub) UpdateEvent(ctx context.Context, event Event) (Event, error) {
	e.updates++
	if e.failOnUpdate > 0 && e.updates == e.failOnUpdate {
		return Event{}, errors.New("disk I/O error")
	}
	return e.events.store(event)
}

package persistence_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/swapmarket/internal/persistence"
	"github.com/example/swapmarket/internal/testfixtures"
)

func TestUserRepository(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	harness := testfixtures.NewSQLiteHarness(t)

	user := testfixtures.NewUserFixture(
		testfixtures.WithUserID("alice"),
		testfixtures.WithUserName("Alice"),
		testfixtures.WithUserEmail("Alice@Example.com"),
	)
	harness.SeedUsers(t, user)

	fetched, err := harness.Users.GetUser(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice", fetched.Name)
	assert.True(t, fetched.CreatedAt.Equal(user.CreatedAt))

	byEmail, err := harness.Users.GetUserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "alice", byEmail.ID)

	duplicate := testfixtures.NewUserFixture(testfixtures.WithUserEmail("ALICE@example.com"))
	err = harness.Users.CreateUser(ctx, duplicate.Persistence())
	assert.ErrorIs(t, err, persistence.ErrDuplicate)

	_, err = harness.Users.GetUser(ctx, "nobody")
	assert.ErrorIs(t, err, persistence.ErrNotFound)
}

func TestEventRepository(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	harness := testfixtures.NewSQLiteHarness(t)
	base := testfixtures.ReferenceTime()

	alice := testfixtures.NewUserFixture(testfixtures.WithUserID("alice"))
	bob := testfixtures.NewUserFixture(testfixtures.WithUserID("bob"))
	harness.SeedUsers(t, alice, bob)

	standup := testfixtures.NewEventFixture(
		testfixtures.WithEventID("standup"),
		testfixtures.WithEventOwner("alice"),
		testfixtures.WithEventRange(base, base.Add(time.Hour)),
		testfixtures.WithEventSwappable(),
	)
	review := testfixtures.NewEventFixture(
		testfixtures.WithEventID("review"),
		testfixtures.WithEventOwner("bob"),
		testfixtures.WithEventRange(base.Add(2*time.Hour), base.Add(3*time.Hour)),
		testfixtures.WithEventSwappable(),
	)
	lunch := testfixtures.NewEventFixture(
		testfixtures.WithEventID("lunch"),
		testfixtures.WithEventOwner("bob"),
		testfixtures.WithEventRange(base.Add(4*time.Hour), base.Add(5*time.Hour)),
	)
	harness.SeedEvents(t, lunch, review, standup)

	t.Run("rejects events for unknown owners", func(t *testing.T) {
		orphan := testfixtures.NewEventFixture(testfixtures.WithEventOwner("ghost"))
		err := harness.Events.CreateEvent(ctx, orphan.Persistence())
		assert.ErrorIs(t, err, persistence.ErrConstraintViolation)
	})

	t.Run("marketplace filter excludes the caller and busy events", func(t *testing.T) {
		events, err := harness.Events.ListEvents(ctx, persistence.EventFilter{
			ExcludeOwnerID: "alice",
			Status:         persistence.EventStatusSwappable,
		})
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, "review", events[0].ID)
	})

	t.Run("overlap filter treats ranges as half open", func(t *testing.T) {
		start, end := base.Add(time.Hour), base.Add(4*time.Hour)
		events, err := harness.Events.ListEvents(ctx, persistence.EventFilter{
			OverlapStart: &start,
			OverlapEnd:   &end,
		})
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, "review", events[0].ID)
	})

	t.Run("owner listing is ordered by start", func(t *testing.T) {
		events, err := harness.Events.ListEvents(ctx, persistence.EventFilter{OwnerID: "bob"})
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, []string{"review", "lunch"}, []string{events[0].ID, events[1].ID})
	})

	t.Run("delete reports missing rows", func(t *testing.T) {
		require.NoError(t, harness.Events.DeleteEvent(ctx, "lunch"))
		assert.ErrorIs(t, harness.Events.DeleteEvent(ctx, "lunch"), persistence.ErrNotFound)
	})
}

func TestSwapExchanger(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	harness := testfixtures.NewSQLiteHarness(t)
	base := testfixtures.ReferenceTime()

	harness.SeedUsers(t,
		testfixtures.NewUserFixture(testfixtures.WithUserID("alice")),
		testfixtures.NewUserFixture(testfixtures.WithUserID("bob")),
	)
	from := testfixtures.NewEventFixture(
		testfixtures.WithEventID("from"),
		testfixtures.WithEventOwner("alice"),
		testfixtures.WithEventRange(base, base.Add(time.Hour)),
		testfixtures.WithEventSwappable(),
	)
	to := testfixtures.NewEventFixture(
		testfixtures.WithEventID("to"),
		testfixtures.WithEventOwner("bob"),
		testfixtures.WithEventRange(base.Add(3*time.Hour), base.Add(4*time.Hour)),
		testfixtures.WithEventSwappable(),
	)
	harness.SeedEvents(t, from, to)
	swap := testfixtures.NewSwapFixture(
		testfixtures.WithSwapID("swap"),
		testfixtures.WithSwapParties("alice", "bob"),
		testfixtures.WithSwapEvents("from", "to"),
	)
	harness.SeedSwaps(t, swap)

	exchange := func(ctx context.Context, tx persistence.SwapExchangeTx) error {
		at := base.Add(time.Minute)
		if _, err := tx.TransitionSwap(ctx, "swap", persistence.SwapStatusPending, persistence.SwapStatusAccepted, at); err != nil {
			return err
		}
		a, err := tx.GetEvent(ctx, "from")
		if err != nil {
			return err
		}
		b, err := tx.GetEvent(ctx, "to")
		if err != nil {
			return err
		}
		a.Start, a.End, b.Start, b.End = b.Start, b.End, a.Start, a.End
		a.Status, b.Status = persistence.EventStatusBusy, persistence.EventStatusBusy
		if err := tx.UpdateEvent(ctx, a); err != nil {
			return err
		}
		return tx.UpdateEvent(ctx, b)
	}

	const workers = 6
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
			err := harness.Exchanger.Exchange(ctx, exchange)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, persistence.ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected exchange error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, workers-1, conflicts)

	stored, err := harness.Swaps.GetSwap(ctx, "swap")
	require.NoError(t, err)
	assert.Equal(t, persistence.SwapStatusAccepted, stored.Status)

	a, err := harness.Events.GetEvent(ctx, "from")
	require.NoError(t, err)
	assert.True(t, a.Start.Equal(to.Start))
	assert.Equal(t, persistence.EventStatusBusy, a.Status)
}

func TestSessionRepository(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	harness := testfixtures.NewSQLiteHarness(t)
	base := testfixtures.ReferenceTime()

	harness.SeedUsers(t, testfixtures.NewUserFixture(testfixtures.WithUserID("alice")))

	live := testfixtures.NewSessionFixture(
		testfixtures.WithSessionUserID("alice"),
		testfixtures.WithSessionToken("live"),
		testfixtures.WithSessionExpiresAt(base.Add(time.Hour)),
	)
	stale := testfixtures.NewSessionFixture(
		testfixtures.WithSessionUserID("alice"),
		testfixtures.WithSessionToken("stale"),
		testfixtures.WithSessionExpiresAt(base.Add(-time.Minute)),
	)
	for _, session := range []testfixtures.SessionFixture{live, stale} {
		_, err := harness.Sessions.CreateSession(ctx, session.Persistence())
		require.NoError(t, err)
	}

	revoked, err := harness.Sessions.RevokeSession(ctx, "live", base)
	require.NoError(t, err)
	require.NotNil(t, revoked.RevokedAt)
	assert.True(t, revoked.RevokedAt.Equal(base))

	again, err := harness.Sessions.RevokeSession(ctx, "live", base.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, again.RevokedAt.Equal(base), "first revocation time is kept")

	require.NoError(t, harness.Sessions.DeleteExpiredSessions(ctx, base))
	_, err = harness.Sessions.GetSession(ctx, "stale")
	assert.ErrorIs(t, err, persistence.ErrNotFound)
	_, err = harness.Sessions.GetSession(ctx, "live")
	assert.NoError(t, err)
}

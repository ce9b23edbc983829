package main

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/swapmarket/internal/application"
	"github.com/example/swapmarket/internal/persistence"
	"github.com/example/swapmarket/internal/testfixtures"
)

// acceptingEventRepo runs accept once, right after the first event read, so
// the caller's following write lands on an already exchanged event.
type acceptingEventRepo struct {
	*eventRepositoryAdapter
	once   sync.Once
	accept func()
}

func (r *acceptingEventRepo) GetEvent(ctx context.Context, id string) (application.Event, error) {
	event, err := r.eventRepositoryAdapter.GetEvent(ctx, id)
	r.once.Do(r.accept)
	return event, err
}

func TestEventUpdateDoesNotRevertAcceptedSwap(t *testing.T) {
	ctx := context.Background()
	harness := testfixtures.NewSQLiteHarness(t)

	alice := testfixtures.NewUserFixture(testfixtures.WithUserID("alice"), testfixtures.WithUserEmail("alice@example.com"))
	bob := testfixtures.NewUserFixture(testfixtures.WithUserID("bob"), testfixtures.WithUserEmail("bob@example.com"))
	harness.SeedUsers(t, alice, bob)

	day := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
	harness.SeedEvents(t,
		testfixtures.NewEventFixture(
			testfixtures.WithEventID("event-a"),
			testfixtures.WithEventOwner("alice"),
			testfixtures.WithEventTitle("Standup"),
			testfixtures.WithEventRange(day.Add(10*time.Hour), day.Add(11*time.Hour)),
			testfixtures.WithEventSwappable(),
		),
		testfixtures.NewEventFixture(
			testfixtures.WithEventID("event-b"),
			testfixtures.WithEventOwner("bob"),
			testfixtures.WithEventRange(day.Add(14*time.Hour), day.Add(15*time.Hour)),
			testfixtures.WithEventSwappable(),
		),
	)
	harness.SeedSwaps(t, testfixtures.NewSwapFixture(
		testfixtures.WithSwapID("swap-1"),
		testfixtures.WithSwapParties("alice", "bob"),
		testfixtures.WithSwapEvents("event-a", "event-b"),
	))

	clock := testfixtures.NewTickingClock(testfixtures.ReferenceTime().Add(time.Hour), time.Millisecond)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	events := newEventRepositoryAdapter(harness.Events)
	swaps := application.NewSwapServiceWithLogger(
		newSwapRepositoryAdapter(harness.Swaps),
		newSwapExchangerAdapter(harness.Exchanger),
		events,
		newCredentialStoreAdapter(harness.Users),
		nil,
		nil,
		clock.NowFunc(),
		true,
		logger,
	)

	var acceptErr error
	racing := &acceptingEventRepo{
		eventRepositoryAdapter: events,
		accept: func() {
			_, acceptErr = swaps.RespondToSwap(ctx, application.RespondToSwapParams{
				Principal: bob.Principal(),
				SwapID:    "swap-1",
				Accept:    true,
			})
		},
	}
	eventService := application.NewEventServiceWithLogger(racing, nil, clock.NowFunc(), logger)

	title := "Renamed"
	_, err := eventService.UpdateEvent(ctx, application.UpdateEventParams{
		Principal: alice.Principal(),
		EventID:   "event-a",
		Patch:     application.EventPatch{Title: &title},
	})
	require.NoError(t, acceptErr)
	assert.ErrorIs(t, err, application.ErrConflict)

	offered, err := harness.Events.GetEvent(ctx, "event-a")
	require.NoError(t, err)
	assert.True(t, offered.Start.Equal(day.Add(14*time.Hour)), "alice keeps the afternoon slot")
	assert.Equal(t, persistence.EventStatusBusy, offered.Status)
	assert.Equal(t, "Standup", offered.Title)

	requested, err := harness.Events.GetEvent(ctx, "event-b")
	require.NoError(t, err)
	assert.True(t, requested.Start.Equal(day.Add(10*time.Hour)), "bob keeps the morning slot")

	swap, err := harness.Swaps.GetSwap(ctx, "swap-1")
	require.NoError(t, err)
	assert.Equal(t, persistence.SwapStatusAccepted, swap.Status)
}

package testfixtures

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/example/swapmarket/internal/persistence"
	"github.com/example/swapmarket/internal/persistence/sqlite"
)

// SQLiteHarness provides repository access backed by a temporary, migrated
// SQLite database for integration-style tests.
type SQLiteHarness struct {
	Storage   *sqlite.Storage
	Users     persistence.UserRepository
	Events    persistence.EventRepository
	Swaps     persistence.SwapRepository
	Exchanger persistence.SwapExchanger
	Sessions  persistence.SessionRepository

	cleanup func()
}

// Close releases resources associated with the harness.
func (h *SQLiteHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// NewSQLiteHarness opens and migrates a database in tb's temporary directory.
// Close is registered with tb.Cleanup, so calling it explicitly is optional.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "swapmarket.db")
	storage, err := sqlite.Open(path)
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if err := storage.Migrate(context.Background(), logger); err != nil {
		_ = storage.Close()
		tb.Fatalf("failed to migrate storage: %v", err)
	}

	harness := &SQLiteHarness{
		Storage:   storage,
		Users:     storage.Users,
		Events:    storage.Events,
		Swaps:     storage.Swaps,
		Exchanger: storage.Swaps,
		Sessions:  storage.Sessions,
		cleanup: func() {
			_ = storage.Close()
		},
	}

	tb.Cleanup(harness.Close)
	return harness
}

// SeedUsers stores the supplied fixtures and fails the test on error.
func (h *SQLiteHarness) SeedUsers(tb testing.TB, users ...UserFixture) {
	tb.Helper()
	for _, user := range users {
		if err := h.Users.CreateUser(context.Background(), user.Persistence()); err != nil {
			tb.Fatalf("failed to seed user %s: %v", user.ID, err)
		}
	}
}

// SeedEvents stores the supplied fixtures and fails the test on error.
func (h *SQLiteHarness) SeedEvents(tb testing.TB, events ...EventFixture) {
	tb.Helper()
	for _, event := range events {
		if err := h.Events.CreateEvent(context.Background(), event.Persistence()); err != nil {
			tb.Fatalf("failed to seed event %s: %v", event.ID, err)
		}
	}
}

// SeedSwaps stores the supplied fixtures and fails the test on error.
func (h *SQLiteHarness) SeedSwaps(tb testing.TB, swaps ...SwapFixture) {
	tb.Helper()
	for _, swap := range swaps {
		if err := h.Swaps.CreateSwap(context.Background(), swap.Persistence()); err != nil {
			tb.Fatalf("failed to seed swap %s: %v", swap.ID, err)
		}
	}
}

package sqlite

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/example/swapmarket/internal/persistence"
	"github.com/example/swapmarket/internal/persistence/sqlite/migration"
	"github.com/example/swapmarket/internal/persistence/sqlite/migrations"
)

// Storage bundles the SQLite-backed repositories behind one connection pool.
type Storage struct {
	pool *ConnectionPool

	Users    *UserRepository
	Events   *EventRepository
	Swaps    *SwapRepository
	Sessions *SessionRepository
}

var (
	_ persistence.UserRepository    = (*UserRepository)(nil)
	_ persistence.EventRepository   = (*EventRepository)(nil)
	_ persistence.SwapRepository    = (*SwapRepository)(nil)
	_ persistence.SwapExchanger     = (*SwapRepository)(nil)
	_ persistence.SessionRepository = (*SessionRepository)(nil)
)

// Open opens the database at dsn using the default connection settings.
func Open(dsn string) (*Storage, error) {
	return OpenWithConfig(migration.DefaultSQLiteConfig(dsn))
}

// OpenWithConfig opens the database with an explicit configuration.
func OpenWithConfig(config migration.SQLiteConfig) (*Storage, error) {
	pool, err := NewConnectionPool(config)
	if err != nil {
		return nil, err
	}

	return &Storage{
		pool:     pool,
		Users:    NewUserRepository(pool),
		Events:   NewEventRepository(pool),
		Swaps:    NewSwapRepository(pool),
		Sessions: NewSessionRepository(pool),
	}, nil
}

// Close releases the underlying connection pool.
func (s *Storage) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	return s.pool.Close()
}

// Ping verifies the database is reachable.
func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Migrate applies every pending embedded schema migration.
func (s *Storage) Migrate(ctx context.Context, logger *slog.Logger) error {
	manager := s.migrationManager(logger)
	if err := manager.RunMigrations(ctx); err != nil {
		return fmt.Errorf("sqlite: migrate: %w", err)
	}
	return nil
}

// MigrationStatus reports applied and pending embedded migrations.
func (s *Storage) MigrationStatus(ctx context.Context, logger *slog.Logger) (*migration.Status, error) {
	return s.migrationManager(logger).GetMigrationStatus(ctx)
}

func (s *Storage) migrationManager(logger *slog.Logger) migration.Manager {
	return migration.NewManager(
		migration.NewFileScanner(migrations.Files, "."),
		migration.NewSQLiteExecutor(s.pool.DB()),
		logger,
	)
}

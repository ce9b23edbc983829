package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/example/swapmarket/internal/config"
	"github.com/example/swapmarket/internal/logging"
	"github.com/example/swapmarket/internal/persistence/sqlite"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// A missing .env file is not an error.
	_ = godotenv.Load()

	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		slog.Error("swapmarket failed", "error", err)
		os.Exit(1)
	}
}

func newApp(stdout io.Writer) *cli.App {
	return &cli.App{
		Name:   "swapmarket",
		Usage:  "Run the slot-swap marketplace API.",
		Writer: stdout,
		Action: func(c *cli.Context) error {
			return serve(c.Context, stdout)
		},
		Commands: []*cli.Command{
			serveCommand(stdout),
			migrateCommand(stdout),
		},
	}
}

func serveCommand(stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Apply pending migrations and start the HTTP server.",
		Action: func(c *cli.Context) error {
			return serve(c.Context, stdout)
		},
	}
}

func migrateCommand(stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply pending schema migrations and exit.",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "status", Usage: "Report applied and pending migrations without applying them."},
		},
		Action: func(c *cli.Context) error {
			cfg, logger, err := setup(stdout)
			if err != nil {
				return err
			}
			storage, err := sqlite.Open(cfg.SQLiteDSN)
			if err != nil {
				return fmt.Errorf("open storage: %w", err)
			}
			defer closeStorage(storage, logger)

			if c.Bool("status") {
				return reportMigrationStatus(c.Context, c.App.Writer, storage, logger)
			}
			return storage.Migrate(c.Context, logger)
		},
	}
}

// setup loads configuration and builds the process logger.
func setup(stdout io.Writer) (config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, err
	}
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logging.New(stdout, level), nil
}

func reportMigrationStatus(ctx context.Context, w io.Writer, storage *sqlite.Storage, logger *slog.Logger) error {
	status, err := storage.MigrationStatus(ctx, logger)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "current version: %s\n", status.CurrentVersion)
	for _, applied := range status.AppliedMigrations {
		fmt.Fprintf(w, "applied  %s  %s\n", applied.Version, applied.AppliedAt.Format(time.RFC3339))
	}
	for _, pending := range status.PendingMigrations {
		fmt.Fprintf(w, "pending  %s  %s\n", pending.Version, pending.Description)
	}
	return nil
}

func serve(parent context.Context, stdout io.Writer) error {
	cfg, logger, err := setup(stdout)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	storage, err := sqlite.Open(cfg.SQLiteDSN)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer closeStorage(storage, logger)

	if err := storage.Migrate(ctx, logger); err != nil {
		return err
	}

	app := buildStack(cfg, storage, logger, nil)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           app.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		// Open streams only return once their subscription is closed.
		app.registry.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("swapmarket API listening", "addr", server.Addr, "strict_proposals", cfg.StrictProposals)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	<-shutdownDone
	logger.Info("swapmarket API stopped")
	return nil
}

func closeStorage(storage *sqlite.Storage, logger *slog.Logger) {
	if err := storage.Close(); err != nil {
		logger.Error("failed to close storage", "error", err)
	}
}

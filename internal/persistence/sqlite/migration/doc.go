// Package migration applies versioned SQL schema changes to the marketplace
// SQLite database.
//
// Migration files are read from an fs.FS (normally the embedded migrations
// directory of the sqlite package) and must be named
// {version}_{description}.sql, for example "001_users_and_sessions.sql".
// Applied versions are tracked in the schema_migrations table and each file
// runs inside its own transaction.
//
// Example usage:
//
//	manager := migration.NewManager(
//		migration.NewFileScanner(migrations.Files, "."),
//		migration.NewSQLiteExecutor(db),
//		logger,
//	)
//	if err := manager.RunMigrations(ctx); err != nil {
//		return err
//	}
package migration

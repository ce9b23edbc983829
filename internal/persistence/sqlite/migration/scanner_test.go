package migration

import (
	"errors"
	"strings"
	"testing"
	"testing/fstest"
)

func TestFileScanner_ScanMigrations(t *testing.T) {
	tests := []struct {
		name          string
		files         map[string]string
		expectedOrder []string
		expectError   error
		errorContains string
	}{
		{
			name: "valid migration directory with multiple files",
			files: map[string]string{
				"001_users.sql":  "CREATE TABLE users (id TEXT PRIMARY KEY);",
				"002_events.sql": "CREATE TABLE events (id TEXT PRIMARY KEY);",
				"003_swaps.sql":  "CREATE TABLE swaps (id TEXT PRIMARY KEY);",
			},
			expectedOrder: []string{"001", "002", "003"},
		},
		{
			name:          "empty migration directory",
			files:         map[string]string{},
			expectedOrder: nil,
		},
		{
			name: "non-SQL files are ignored",
			files: map[string]string{
				"001_users.sql": "CREATE TABLE users (id TEXT PRIMARY KEY);",
				"README.md":     "# migrations",
			},
			expectedOrder: []string{"001"},
		},
		{
			name: "versions sort numerically",
			files: map[string]string{
				"10_late.sql": "CREATE TABLE late (id TEXT);",
				"2_early.sql": "CREATE TABLE early (id TEXT);",
				"1_first.sql": "CREATE TABLE first (id TEXT);",
			},
			expectedOrder: []string{"1", "2", "10"},
		},
		{
			name: "invalid filename format",
			files: map[string]string{
				"invalid_name.sql": "CREATE TABLE test (id TEXT);",
			},
			expectError:   ErrInvalidMigrationFile,
			errorContains: "does not match pattern",
		},
		{
			name: "duplicate versions",
			files: map[string]string{
				"001_users.sql":     "CREATE TABLE users (id TEXT);",
				"1_users_again.sql": "CREATE TABLE users2 (id TEXT);",
			},
			expectError: ErrDuplicateVersion,
		},
		{
			name: "comment-only file",
			files: map[string]string{
				"001_empty.sql": "-- nothing here\n",
			},
			expectError: ErrInvalidMigrationFile,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fsys := fstest.MapFS{}
			for name, content := range tt.files {
				fsys[name] = &fstest.MapFile{Data: []byte(content)}
			}

			migrations, err := NewFileScanner(fsys, ".").ScanMigrations()
			if tt.expectError != nil {
				if err == nil {
					t.Fatalf("expected error %v, got nil", tt.expectError)
				}
				if !errors.Is(err, tt.expectError) {
					t.Fatalf("expected error %v, got %v", tt.expectError, err)
				}
				if tt.errorContains != "" && !strings.Contains(err.Error(), tt.errorContains) {
					t.Fatalf("expected error containing %q, got %v", tt.errorContains, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ScanMigrations failed: %v", err)
			}

			if len(migrations) != len(tt.expectedOrder) {
				t.Fatalf("expected %d migrations, got %d", len(tt.expectedOrder), len(migrations))
			}
			for i, version := range tt.expectedOrder {
				if migrations[i].Version != version {
					t.Fatalf("migration %d: expected version %s, got %s", i, version, migrations[i].Version)
				}
				if migrations[i].Checksum == "" {
					t.Fatalf("migration %s: expected checksum", version)
				}
			}
		})
	}
}

func TestFileScanner_Description(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"001_users.sql":   {Data: []byte("-- Description: Create user accounts\nCREATE TABLE users (id TEXT);")},
		"002_add_idx.sql": {Data: []byte("CREATE INDEX idx ON users(id);")},
	}

	migrations, err := NewFileScanner(fsys, ".").ScanMigrations()
	if err != nil {
		t.Fatalf("ScanMigrations failed: %v", err)
	}

	if migrations[0].Description != "Create user accounts" {
		t.Fatalf("unexpected description from content: %q", migrations[0].Description)
	}
	if migrations[1].Description != "add idx" {
		t.Fatalf("unexpected description from filename: %q", migrations[1].Description)
	}
}

func TestSplitStatements(t *testing.T) {
	t.Parallel()

	sql := `
-- Description: two tables
CREATE TABLE a (id TEXT);
-- trailing comment
CREATE TABLE b (
	id TEXT
);
`
	statements := splitStatements(sql)
	if len(statements) != 2 {
		t.Fatalf("expected 2 statements, got %d: %#v", len(statements), statements)
	}
	if !strings.HasPrefix(statements[1], "CREATE TABLE b") {
		t.Fatalf("unexpected second statement: %q", statements[1])
	}
}

// Package migrations embeds the SQL schema files applied at startup.
package migrations

import "embed"

// Files holds every {version}_{description}.sql file in this directory.
//
//go:embed *.sql
var Files embed.FS

// Package migrations embeds the SQL migrations of the postgres storage backend.
package migrations

import "embed"

// FS holds the goose migration files.
//
//go:embed *.sql
var FS embed.FS

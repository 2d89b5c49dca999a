package sqlite

import "embed"

// Migrations holds the goose SQL migrations for the SQLite schema,
// under the "migrations" directory.
//
//go:embed migrations/*.sql
var Migrations embed.FS

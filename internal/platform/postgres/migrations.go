package postgres

import "embed"

// Migrations holds the goose SQL migrations for the PostgreSQL schema,
// under the "migrations" directory.
//
//go:embed migrations/*.sql
var Migrations embed.FS

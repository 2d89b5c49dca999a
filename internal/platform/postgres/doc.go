// Package postgres implements store.TaskStore on PostgreSQL through the pgx
// database/sql driver. It also embeds the goose migrations for its schema and
// maps pgconn error codes onto the store error sentinels.
package postgres

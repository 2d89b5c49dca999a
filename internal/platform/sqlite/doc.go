// Package sqlite implements store.TaskStore on an embedded SQLite database
// using the pure-Go modernc.org/sqlite driver. It backs local development and
// the test suites, and carries its own goose migrations.
package sqlite

// Package testdb provides database fixtures for tests.
//
// OpenSQLite gives every test its own migrated SQLite file, so SQLite-backed
// tests need no cleanup and may run in parallel:
//
//	func TestSomething(t *testing.T) {
//	    db := testdb.OpenSQLite(t)
//	    handles := sqlite.NewHandleFactory(db, nil)
//	    ...
//	}
//
// OpenPostgres connects to the database named by TASKTRACK_TEST_DATABASE_URL,
// applies migrations and empties the task tables. It skips the test when the
// variable is unset. PostgreSQL tests share one database and must not call
// t.Parallel.
//
// WithTx runs a function in a transaction that is always rolled back, for
// tests that exercise a single store without handles.
package testdb

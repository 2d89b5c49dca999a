// Package store defines the persistence contract for tasks and their
// status logs, the error sentinels every backend maps its driver errors to,
// and the handle abstraction that gives each unit of work its own
// connection. Concrete backends live under internal/platform.
package store

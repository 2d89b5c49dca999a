// Package lifecycle performs task mutations together with their audit entries.
//
// Every operation runs in one transaction on the caller's store.Handle: the
// task row and the TaskLog entry for a status assignment commit together or
// not at all. Transition events are emitted only after the commit.
package lifecycle

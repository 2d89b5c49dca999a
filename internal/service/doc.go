// Package service contains the task use cases exposed to delivery
// mechanisms such as the HTTP API.
//
// TaskService composes the lifecycle manager, which owns the transactional
// status and audit rules, with the background processor. Every operation
// acquires its own persistence handle and releases it before returning, and
// never holds one while calling into the processor.
//
// Errors from the domain, store and task packages are passed through so the
// API can map them with errors.Is; anything else is wrapped in a
// TaskServiceError.
package service

// Package api exposes the task service over HTTP. Handlers decode and
// validate requests, call the service, and map its errors to status codes
// with a {"error", "trace_id"} body. Causes of 5xx responses are logged,
// redacted, and never sent to the client.
package api

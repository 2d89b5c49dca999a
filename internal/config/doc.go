// Package config loads service configuration from an optional config file,
// a .env file, and TASKTRACK_-prefixed environment variables, then validates
// the result before any component is built from it.
package config

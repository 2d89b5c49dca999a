package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"     validate:"required"`
	Database   DatabaseConfig   `mapstructure:"database"   validate:"required"`
	Processing ProcessingConfig `mapstructure:"processing" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port"             validate:"required,gt=0,lt=65536"`
	LogLevel        string        `mapstructure:"log_level"        validate:"required,oneof=debug info warn error"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// Supported database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	// Driver selects the store implementation: postgres or sqlite.
	Driver string `mapstructure:"driver" validate:"required,oneof=postgres sqlite"`

	// URL is a postgres connection URL, or a file path / DSN for sqlite.
	URL string `mapstructure:"url" validate:"required"`

	MaxOpenConns    int           `mapstructure:"max_open_conns"    validate:"gte=1"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"    validate:"gte=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"gte=0"`
}

// ProcessingConfig controls the background execution engine.
type ProcessingConfig struct {
	// WorkerCount is the number of concurrent background workers.
	WorkerCount int `mapstructure:"worker_count" validate:"gte=1,lte=256"`

	// QueueSize bounds how many scheduled jobs may wait for a worker.
	QueueSize int `mapstructure:"queue_size" validate:"gte=1"`

	// WorkloadDuration is how long the simulated workload runs.
	WorkloadDuration time.Duration `mapstructure:"workload_duration" validate:"gte=0"`

	// JobTimeout is the deadline for one job's workload. Zero disables it.
	JobTimeout time.Duration `mapstructure:"job_timeout" validate:"gte=0"`

	// StuckTaskAge is how long a task may sit in_progress without a live job
	// before the monitor fails it.
	StuckTaskAge time.Duration `mapstructure:"stuck_task_age" validate:"gt=0"`

	// StuckTaskCheckInterval is how often the monitor runs.
	StuckTaskCheckInterval time.Duration `mapstructure:"stuck_task_check_interval" validate:"gt=0"`
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g. TASKTRACK_DATABASE_URL.
const EnvPrefix = "TASKTRACK"

// LoadOptions tweaks where Load looks for configuration.
type LoadOptions struct {
	// ConfigFile, when set, is read instead of searching for config.{yaml,toml,json}.
	ConfigFile string

	// EnvFiles are loaded with godotenv before the environment is read.
	// Missing files are ignored. Defaults to ".env".
	EnvFiles []string
}

// Load configuration from environment variables and optionally config files.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	return LoadWithOptions(LoadOptions{})
}

// LoadWithOptions is Load with explicit file locations.
func LoadWithOptions(opts LoadOptions) (*Config, error) {
	envFiles := opts.EnvFiles
	if envFiles == nil {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		// godotenv.Load never overrides variables that are already set.
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file %s: %w", f, err)
		}
	}

	v := viper.New()
	setDefaults(v)

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || opts.ConfigFile != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only resolves keys viper already knows about; every key
	// has a default except database.url, so bind it explicitly.
	if err := v.BindEnv("database.url"); err != nil {
		return nil, fmt.Errorf("failed to bind database url: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks cfg against its struct tags.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("database.driver", DriverPostgres)
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "5m")

	v.SetDefault("processing.worker_count", 2)
	v.SetDefault("processing.queue_size", 100)
	v.SetDefault("processing.workload_duration", "5s")
	v.SetDefault("processing.job_timeout", "1m")
	v.SetDefault("processing.stuck_task_age", "30m")
	v.SetDefault("processing.stuck_task_check_interval", "5m")
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "planwright.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// The YAML file is optional; a missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "PLANWRIGHT_PORT")
	setString(&cfg.Storage.Backend, "PLANWRIGHT_STORAGE_BACKEND")
	setString(&cfg.Storage.Dir, "PLANWRIGHT_STORAGE_DIR")
	setInt(&cfg.Storage.HistoryRetention, "PLANWRIGHT_HISTORY_RETENTION")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "PLANWRIGHT_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "PLANWRIGHT_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "PLANWRIGHT_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "PLANWRIGHT_PG_MAX_CONN_IDLE_TIME")
	setBool(&cfg.NATS.Enabled, "PLANWRIGHT_NATS_ENABLED")
	setString(&cfg.NATS.URL, "NATS_URL")
	setInt64(&cfg.Cache.MaxSizeMB, "PLANWRIGHT_CACHE_SIZE_MB")
	setString(&cfg.Logging.Level, "PLANWRIGHT_LOG_LEVEL")
	setString(&cfg.Logging.Service, "PLANWRIGHT_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "PLANWRIGHT_LOG_ASYNC")
	setBool(&cfg.Telemetry.Enabled, "PLANWRIGHT_OTEL_ENABLED")
	setString(&cfg.Telemetry.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setBool(&cfg.Executor.AutoSkipBlocked, "PLANWRIGHT_EXEC_AUTO_SKIP_BLOCKED")
	setBool(&cfg.Executor.PauseOnError, "PLANWRIGHT_EXEC_PAUSE_ON_ERROR")
	setDuration(&cfg.Executor.InterTaskDelay, "PLANWRIGHT_EXEC_INTER_TASK_DELAY")
	setDuration(&cfg.Executor.PollInterval, "PLANWRIGHT_EXEC_POLL_INTERVAL")
	setDuration(&cfg.Executor.StopTimeout, "PLANWRIGHT_EXEC_STOP_TIMEOUT")
}

// validate rejects configurations that cannot work.
func validate(cfg *Config) error {
	switch cfg.Storage.Backend {
	case "jsonfile", "postgres":
	default:
		return fmt.Errorf("storage.backend must be jsonfile or postgres, got %q", cfg.Storage.Backend)
	}
	if cfg.Storage.Backend == "jsonfile" && cfg.Storage.Dir == "" {
		return errors.New("storage.dir is required for the jsonfile backend")
	}
	if cfg.Storage.Backend == "postgres" && cfg.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required for the postgres backend")
	}
	if cfg.Storage.HistoryRetention < 0 {
		return errors.New("storage.history_retention must be >= 0")
	}
	if cfg.NATS.Enabled && cfg.NATS.URL == "" {
		return errors.New("nats.url is required when nats.enabled is true")
	}
	if cfg.Telemetry.Enabled && cfg.Telemetry.Endpoint == "" {
		return errors.New("telemetry.endpoint is required when telemetry.enabled is true")
	}
	if cfg.Executor.InterTaskDelay < 0 || cfg.Executor.PollInterval < 0 {
		return errors.New("executor delays must be >= 0")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

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
const DefaultConfigFile = "stride.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
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
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
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
	setString(&cfg.Server.Port, "STRIDE_PORT")
	setString(&cfg.Server.CORSOrigin, "STRIDE_CORS_ORIGIN")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "STRIDE_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "STRIDE_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "STRIDE_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "STRIDE_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "STRIDE_PG_HEALTH_CHECK")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.Oracle.URL, "STRIDE_ORACLE_URL")
	setString(&cfg.Oracle.MasterKey, "STRIDE_ORACLE_MASTER_KEY")
	setString(&cfg.Oracle.Model, "STRIDE_ORACLE_MODEL")
	setInt(&cfg.Oracle.MaxTokens, "STRIDE_ORACLE_MAX_TOKENS")
	setString(&cfg.Tools.Transport, "STRIDE_TOOLS_TRANSPORT")
	setString(&cfg.Tools.Command, "STRIDE_TOOLS_COMMAND")
	setString(&cfg.Tools.URL, "STRIDE_TOOLS_URL")
	setInt(&cfg.Tools.MaxConcurrentCalls, "STRIDE_TOOLS_MAX_CONCURRENT_CALLS")
	setString(&cfg.Logging.Level, "STRIDE_LOG_LEVEL")
	setString(&cfg.Logging.Service, "STRIDE_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "STRIDE_LOG_ASYNC")
	setInt(&cfg.Breaker.MaxFailures, "STRIDE_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "STRIDE_BREAKER_TIMEOUT")
	setInt(&cfg.Engine.MaxRetries, "STRIDE_ENGINE_MAX_RETRIES")
	setInt(&cfg.Engine.MaxAdaptations, "STRIDE_ENGINE_MAX_ADAPTATIONS")
	setDuration(&cfg.Engine.ToolTimeout, "STRIDE_ENGINE_TOOL_TIMEOUT")
	setDuration(&cfg.Engine.OracleTimeout, "STRIDE_ENGINE_ORACLE_TIMEOUT")
	setFloat64(&cfg.Engine.ExtractionMinConfidence, "STRIDE_ENGINE_EXTRACTION_MIN_CONFIDENCE")
	setFloat64(&cfg.Confidence.Execute, "STRIDE_CONFIDENCE_EXECUTE")
	setFloat64(&cfg.Confidence.Review, "STRIDE_CONFIDENCE_REVIEW")
	setFloat64(&cfg.Confidence.Rethink, "STRIDE_CONFIDENCE_RETHINK")
	setInt(&cfg.Engine.CheckpointMinSteps, "STRIDE_ENGINE_CHECKPOINT_MIN_STEPS")
	setInt64(&cfg.Cache.L1MaxSizeMB, "STRIDE_CACHE_L1_SIZE_MB")
	setString(&cfg.Cache.L2Bucket, "STRIDE_CACHE_L2_BUCKET")
	setDuration(&cfg.Cache.L2TTL, "STRIDE_CACHE_L2_TTL")
	setString(&cfg.Telemetry.OTLPEndpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	if cfg.NATS.URL == "" {
		return errors.New("nats.url is required")
	}
	if cfg.Postgres.MaxConns < 1 {
		return errors.New("postgres.max_conns must be >= 1")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.Engine.MaxRetries < 0 {
		return errors.New("engine.max_retries must be >= 0")
	}
	if cfg.Engine.MaxAdaptations < 0 {
		return errors.New("engine.max_adaptations must be >= 0")
	}
	if !cfg.Confidence.Valid() {
		return errors.New("confidence thresholds must be strictly descending within (0, 1)")
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

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
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

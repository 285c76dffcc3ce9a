// Package config loads the typed configuration covering every row of the
// configuration table: connection parameters, upstream roots, retry/chunk
// tuning, file output targets, and the schema-strictness switch. YAML is the
// base layer (go.yaml.in/yaml/v3, the teacher's own yaml dependency);
// environment variables override individual fields so a container deploy
// never needs a baked-in file.
package config

import (
	"fmt"
	"os"
	"strconv"

	"go.yaml.in/yaml/v3"

	"gaplessohlcv/marketerrs"
)

// Config is the fully resolved, validated configuration. Every row of the
// configuration table has a field here, and Environment additionally
// selects the logger mode; there is no "best-effort" subset.
type Config struct {
	Environment string `yaml:"environment"`

	DBHost     string `yaml:"db_host"`
	DBPort     int    `yaml:"db_port"`
	DBUser     string `yaml:"db_user"`
	DBPassword string `yaml:"db_password"`
	DBDatabase string `yaml:"db_database"`
	DBSecure   bool   `yaml:"db_secure"`

	ArchiveRoot     string `yaml:"archive_root"`
	RESTSpotRoot    string `yaml:"rest_spot_root"`
	RESTFuturesRoot string `yaml:"rest_futures_root"`

	HTTPTimeoutSeconds int `yaml:"http_timeout_seconds"`
	MaxRetries         int `yaml:"max_retries"`
	ChunkSizeSpot      int `yaml:"chunk_size_spot"`
	ChunkSizeFutures   int `yaml:"chunk_size_futures"`
	ParallelGapWorkers int `yaml:"parallel_gap_workers"`

	OutputDir    string `yaml:"output_dir"`
	OutputFormat string `yaml:"output_format"`

	StrictSchema bool `yaml:"strict_schema"`
}

// defaults mirrors the "(default ...)" annotations in the configuration
// table; Load starts here, applies the YAML file, then applies env
// overrides, in that order.
func defaults() Config {
	return Config{
		Environment:        "dev",
		DBPort:             9000,
		HTTPTimeoutSeconds: 30,
		MaxRetries:         3,
		ChunkSizeSpot:      1000,
		ChunkSizeFutures:   1500,
		ParallelGapWorkers: 4,
		OutputFormat:       "csv",
		StrictSchema:       true,
	}
}

// Load reads path (if non-empty and present), layers environment variable
// overrides on top, and validates the result. Any missing-or-invalid value
// is returned as a *marketerrs.ConfigError — callers surface this as exit
// status 4 before attempting any network or database connection.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, &marketerrs.ConfigError{Field: "path", Cause: err}
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, &marketerrs.ConfigError{Field: "yaml", Cause: err}
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	str(&cfg.Environment, "GAPLESSOHLCV_ENVIRONMENT")
	str(&cfg.DBHost, "GAPLESSOHLCV_DB_HOST")
	intVar(&cfg.DBPort, "GAPLESSOHLCV_DB_PORT")
	str(&cfg.DBUser, "GAPLESSOHLCV_DB_USER")
	str(&cfg.DBPassword, "GAPLESSOHLCV_DB_PASSWORD")
	str(&cfg.DBDatabase, "GAPLESSOHLCV_DB_DATABASE")
	boolVar(&cfg.DBSecure, "GAPLESSOHLCV_DB_SECURE")
	str(&cfg.ArchiveRoot, "GAPLESSOHLCV_ARCHIVE_ROOT")
	str(&cfg.RESTSpotRoot, "GAPLESSOHLCV_REST_SPOT_ROOT")
	str(&cfg.RESTFuturesRoot, "GAPLESSOHLCV_REST_FUTURES_ROOT")
	intVar(&cfg.HTTPTimeoutSeconds, "GAPLESSOHLCV_HTTP_TIMEOUT_SECONDS")
	intVar(&cfg.MaxRetries, "GAPLESSOHLCV_MAX_RETRIES")
	intVar(&cfg.ChunkSizeSpot, "GAPLESSOHLCV_CHUNK_SIZE_SPOT")
	intVar(&cfg.ChunkSizeFutures, "GAPLESSOHLCV_CHUNK_SIZE_FUTURES")
	intVar(&cfg.ParallelGapWorkers, "GAPLESSOHLCV_PARALLEL_GAP_WORKERS")
	str(&cfg.OutputDir, "GAPLESSOHLCV_OUTPUT_DIR")
	str(&cfg.OutputFormat, "GAPLESSOHLCV_OUTPUT_FORMAT")
	boolVar(&cfg.StrictSchema, "GAPLESSOHLCV_STRICT_SCHEMA")
}

func str(dst *string, env string) {
	if v, ok := os.LookupEnv(env); ok {
		*dst = v
	}
}

func intVar(dst *int, env string) {
	if v, ok := os.LookupEnv(env); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func boolVar(dst *bool, env string) {
	if v, ok := os.LookupEnv(env); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func (c Config) validate() error {
	if c.DBHost == "" {
		return &marketerrs.ConfigError{Field: "db_host"}
	}
	if c.DBDatabase == "" {
		return &marketerrs.ConfigError{Field: "db_database"}
	}
	if c.ArchiveRoot == "" {
		return &marketerrs.ConfigError{Field: "archive_root"}
	}
	if c.RESTSpotRoot == "" {
		return &marketerrs.ConfigError{Field: "rest_spot_root"}
	}
	if c.RESTFuturesRoot == "" {
		return &marketerrs.ConfigError{Field: "rest_futures_root"}
	}
	if c.OutputFormat != "csv" && c.OutputFormat != "parquet" {
		return &marketerrs.ConfigError{Field: "output_format", Cause: fmt.Errorf("unknown format %q", c.OutputFormat)}
	}
	if c.ChunkSizeSpot <= 0 || c.ChunkSizeSpot > 1000 {
		return &marketerrs.ConfigError{Field: "chunk_size_spot"}
	}
	if c.ChunkSizeFutures <= 0 || c.ChunkSizeFutures > 1500 {
		return &marketerrs.ConfigError{Field: "chunk_size_futures"}
	}
	if c.ParallelGapWorkers <= 0 {
		return &marketerrs.ConfigError{Field: "parallel_gap_workers"}
	}
	if c.MaxRetries <= 0 {
		return &marketerrs.ConfigError{Field: "max_retries"}
	}
	return nil
}

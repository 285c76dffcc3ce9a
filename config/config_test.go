package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"gaplessohlcv/marketerrs"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_AppliesDefaultsAndFile(t *testing.T) {
	path := writeYAML(t, `
db_host: clickhouse.internal
db_database: market
archive_root: https://data.example.com
rest_spot_root: https://api.example.com
rest_futures_root: https://fapi.example.com
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "clickhouse.internal", cfg.DBHost)
	require.Equal(t, 1000, cfg.ChunkSizeSpot)
	require.Equal(t, 1500, cfg.ChunkSizeFutures)
	require.True(t, cfg.StrictSchema)
	require.Equal(t, 30, cfg.HTTPTimeoutSeconds)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeYAML(t, `
db_host: clickhouse.internal
db_database: market
archive_root: https://data.example.com
rest_spot_root: https://api.example.com
rest_futures_root: https://fapi.example.com
`)
	t.Setenv("GAPLESSOHLCV_DB_HOST", "override.internal")
	t.Setenv("GAPLESSOHLCV_MAX_RETRIES", "5")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "override.internal", cfg.DBHost)
	require.Equal(t, 5, cfg.MaxRetries)
}

func TestLoad_MissingRequiredFieldIsConfigError(t *testing.T) {
	path := writeYAML(t, `db_host: clickhouse.internal`)
	_, err := Load(path)
	require.Error(t, err)
	var cfgErr *marketerrs.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	require.Equal(t, "db_database", cfgErr.Field)
}

func TestLoad_InvalidOutputFormatIsConfigError(t *testing.T) {
	path := writeYAML(t, `
db_host: clickhouse.internal
db_database: market
archive_root: https://data.example.com
rest_spot_root: https://api.example.com
rest_futures_root: https://fapi.example.com
output_format: xml
`)
	_, err := Load(path)
	var cfgErr *marketerrs.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	require.Equal(t, "output_format", cfgErr.Field)
}

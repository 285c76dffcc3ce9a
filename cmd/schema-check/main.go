// Command schema-check connects to the configured database and validates
// its live schema against the compile-time contract, independent of the
// strict_schema setting other binaries honor at startup — this command's
// entire purpose is to surface that mismatch.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"gaplessohlcv/cmdutil"
	"gaplessohlcv/config"
	"gaplessohlcv/obslog"
	"gaplessohlcv/store"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	ctx := context.Background()
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "schema-check: %v\n", err)
		os.Exit(cmdutil.ExitConfigError)
	}

	logger, err := obslog.New(cfg.Environment)
	if err != nil {
		fmt.Fprintf(os.Stderr, "schema-check: build logger: %v\n", err)
		os.Exit(cmdutil.ExitConfigError)
	}
	defer logger.Sync()

	conn, err := store.Open(ctx, fmt.Sprintf("%s:%d", cfg.DBHost, cfg.DBPort), cfg.DBDatabase, cfg.DBUser, cfg.DBPassword, cfg.DBSecure)
	if err != nil {
		logger.Error("schema-check: connect failed", zap.Error(err))
		os.Exit(cmdutil.ExitCode(err))
	}

	validator := store.NewSchemaValidator(conn)
	err = validator.Validate(ctx)
	logger.Info("schema-check result", zap.String("state", validator.State().String()))
	if err != nil {
		logger.Error("schema-check: mismatch", zap.Error(err))
		os.Exit(cmdutil.ExitSchemaMismatch)
	}
}

// Command validate reads an already-ingested range back out of the store
// and runs it through the multi-layer validator, persisting the resulting
// report and exiting non-zero on a layer 1-3 failure.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"gaplessohlcv/bars"
	"gaplessohlcv/cmdutil"
	"gaplessohlcv/gaps"
	"gaplessohlcv/validate"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	reportDB := flag.String("report-db", "validation_reports.db", "path to the SQLite validation report store")
	symbol := flag.String("symbol", "", "symbol to validate (required)")
	timeframe := flag.String("timeframe", "1h", "timeframe, e.g. 1h, 1d, 1mo")
	start := flag.String("start", "", "range start, RFC3339 (required)")
	end := flag.String("end", "", "range end, RFC3339 (required)")
	instrumentType := flag.String("instrument-type", "spot", "spot or futures-perp")
	flag.Parse()

	if *symbol == "" || *start == "" || *end == "" {
		fmt.Fprintln(os.Stderr, "validate: -symbol, -start, and -end are required")
		os.Exit(cmdutil.ExitConfigError)
	}

	startT, err := time.Parse(time.RFC3339, *start)
	if err != nil {
		fmt.Fprintf(os.Stderr, "validate: invalid -start: %v\n", err)
		os.Exit(cmdutil.ExitConfigError)
	}
	endT, err := time.Parse(time.RFC3339, *end)
	if err != nil {
		fmt.Fprintf(os.Stderr, "validate: invalid -end: %v\n", err)
		os.Exit(cmdutil.ExitConfigError)
	}

	ctx := context.Background()
	rt, err := cmdutil.NewRuntime(ctx, *configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "validate: %v\n", err)
		os.Exit(cmdutil.ExitCode(err))
	}
	defer rt.Logger.Sync()

	tf := bars.Timeframe(*timeframe)
	it := bars.InstrumentType(*instrumentType)
	startUS, endUS := startT.UnixMicro(), endT.UnixMicro()

	rows, err := rt.Reader.ReadRange(ctx, *symbol, tf, it, startUS, endUS)
	if err != nil {
		rt.Logger.Error("validate: read range failed", zap.Error(err))
		os.Exit(cmdutil.ExitCode(err))
	}
	grid, err := gaps.Generate(startUS, endUS, tf)
	if err != nil {
		rt.Logger.Error("validate: grid generation failed", zap.Error(err))
		os.Exit(cmdutil.ExitConfigError)
	}

	report := validate.New(validate.DefaultConfig()).Run(*symbol, tf, it, rows, grid)

	store, err := validate.OpenReportStore(*reportDB)
	if err != nil {
		rt.Logger.Error("validate: open report store failed", zap.Error(err))
		os.Exit(cmdutil.ExitTransientExhausted)
	}
	defer store.Close()
	if err := store.Save(ctx, report); err != nil {
		rt.Logger.Error("validate: save report failed", zap.Error(err))
		os.Exit(cmdutil.ExitTransientExhausted)
	}

	rt.Logger.Info("validation complete",
		zap.String("run_id", report.RunID), zap.Bool("pass", report.Pass),
		zap.Int("total_bars", report.TotalBars), zap.Int("expected_bars", report.ExpectedBars),
		zap.Int("issue_count", len(report.Issues)))

	if !report.Pass {
		os.Exit(cmdutil.ExitBarValidation)
	}
}

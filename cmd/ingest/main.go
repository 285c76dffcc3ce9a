// Command ingest runs a single auto-ingesting query: it detects gaps over
// the requested range, fills them from the archive and REST sources, and
// reports the resulting row count. It carries no algorithmic content of
// its own — every decision lives in package ingest.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"gaplessohlcv/bars"
	"gaplessohlcv/cmdutil"
	"gaplessohlcv/ingest"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	symbolsFlag := flag.String("symbols", "", "comma-separated symbol list (required)")
	timeframe := flag.String("timeframe", "1h", "timeframe, e.g. 1h, 1d, 1mo")
	start := flag.String("start", "", "range start, RFC3339 (required)")
	end := flag.String("end", "", "range end, RFC3339 (required)")
	instrumentType := flag.String("instrument-type", "spot", "spot or futures-perp")
	noAutoIngest := flag.Bool("no-auto-ingest", false, "detect gaps but don't fetch to fill them")
	noFillGaps := flag.Bool("no-fill-gaps", false, "skip the REST gap-fill pass")
	outputDir := flag.String("output-dir", "", "if set, write each symbol's rows as a file here (overrides config output_dir)")
	flag.Parse()

	if *symbolsFlag == "" || *start == "" || *end == "" {
		fmt.Fprintln(os.Stderr, "ingest: -symbols, -start, and -end are required")
		os.Exit(cmdutil.ExitConfigError)
	}

	startT, err := time.Parse(time.RFC3339, *start)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ingest: invalid -start: %v\n", err)
		os.Exit(cmdutil.ExitConfigError)
	}
	endT, err := time.Parse(time.RFC3339, *end)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ingest: invalid -end: %v\n", err)
		os.Exit(cmdutil.ExitConfigError)
	}

	ctx := context.Background()
	rt, err := cmdutil.NewRuntime(ctx, *configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ingest: %v\n", err)
		os.Exit(cmdutil.ExitCode(err))
	}
	defer rt.Logger.Sync()

	if *outputDir != "" {
		rt.Config.OutputDir = *outputDir
	}

	symbolList := strings.Split(*symbolsFlag, ",")
	opts := ingest.DefaultOptions()
	opts.InstrumentType = bars.InstrumentType(*instrumentType)
	opts.AutoIngest = !*noAutoIngest
	opts.FillGaps = !*noFillGaps

	results, err := rt.Query.Run(ctx, symbolList, bars.Timeframe(*timeframe), startT.UnixMicro(), endT.UnixMicro(), opts)
	if err != nil {
		rt.Logger.Error("ingest run failed", zap.Error(err))
		os.Exit(cmdutil.ExitCode(err))
	}

	now := time.Now()
	for _, symbol := range symbolList {
		rt.Logger.Info("ingest complete", zap.String("symbol", symbol), zap.Int("rows", len(results[symbol])))
		if err := rt.WriteOutput(symbol, bars.Timeframe(*timeframe), opts.InstrumentType, results[symbol], now); err != nil {
			rt.Logger.Error("write output failed", zap.String("symbol", symbol), zap.Error(err))
			os.Exit(cmdutil.ExitCode(err))
		}
	}
}

// Package ingest implements component C8: the unified query / auto-ingest
// contract that reconciles the archive and REST fetchers against the
// gap detector and loader. It is the only package that calls both
// fetchers and the only one allowed to own an ingestion plan (spec §9:
// "the Unified Query owns the ingestion plan and calls fetchers, never
// vice versa").
package ingest

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"go.uber.org/zap"

	"gaplessohlcv/bars"
	"gaplessohlcv/bufpool"
	"gaplessohlcv/gaps"
	"gaplessohlcv/marketerrs"
	"gaplessohlcv/obslog"
	"gaplessohlcv/symbols"
	"gaplessohlcv/version"
)

// archiveWriteBatchSize bounds how many rows of a single archive-month
// fetch reach Sink.Write in one call. A month of 1m bars can run past
// 40,000 rows; writing it through a bounded queue keeps the same
// backpressure guarantee the gap filler gives REST-sourced rows (spec §9).
const archiveWriteBatchSize = 1000

// ArchiveFetcher is the narrow surface Query needs from component C2.
type ArchiveFetcher interface {
	FetchMonth(ctx context.Context, symbol string, tf bars.Timeframe, instrumentType bars.InstrumentType, year, month int) ([]bars.Bar, error)
}

// RESTFetcher is the narrow surface Query needs from component C3 (also
// satisfies gaps.Fetcher).
type RESTFetcher interface {
	FetchRange(ctx context.Context, symbol string, tf bars.Timeframe, instrumentType bars.InstrumentType, startUS, endUS int64) ([]bars.Bar, error)
}

// PresenceStore is the read-side surface Query needs from component C7.
type PresenceStore interface {
	PresenceSet(ctx context.Context, symbol string, tf bars.Timeframe, instrumentType bars.InstrumentType, startUS, endUS int64) (gaps.PresenceSet, error)
}

// Sink is the write-side surface Query needs from component C7.
type Sink interface {
	Write(ctx context.Context, rows []bars.Bar) error
}

// Reader is the dedup read-side surface Query needs from component C7.
type Reader interface {
	ReadRange(ctx context.Context, symbol string, tf bars.Timeframe, instrumentType bars.InstrumentType, startUS, endUS int64) ([]bars.Bar, error)
}

// Query implements component C8 over a fixed set of collaborators.
type Query struct {
	Archive     ArchiveFetcher
	REST        RESTFetcher
	Presence    PresenceStore
	Sink        Sink
	Reader      Reader
	Registry    *symbols.Registry
	Concurrency int64
	Logger      *zap.Logger
}

// Options configures a single Run call.
type Options struct {
	AutoIngest     bool
	FillGaps       bool
	RequireZeroGap bool
	InstrumentType bars.InstrumentType
}

// DefaultOptions matches spec.md §4.8's contract defaults.
func DefaultOptions() Options {
	return Options{AutoIngest: true, FillGaps: true, RequireZeroGap: true, InstrumentType: bars.InstrumentSpot}
}

// Run implements query(symbol|[symbol], timeframe, start, end,
// instrument_type, auto_ingest, fill_gaps) -> table. Multi-symbol calls are
// semantically a sequential application over the sorted symbol list,
// parallelized here under a bounded pool (spec §4.8).
func (q *Query) Run(ctx context.Context, symbolList []string, tf bars.Timeframe, startUS, endUS int64, opts Options) (map[string][]bars.Bar, error) {
	sorted := append([]string(nil), symbolList...)
	sort.Strings(sorted)

	concurrency := q.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	sem := semaphore.NewWeighted(concurrency)
	group, gctx := errgroup.WithContext(ctx)

	results := make(map[string][]bars.Bar, len(sorted))
	var resultsMu sync.Mutex

	for _, symbol := range sorted {
		symbol := symbol
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		group.Go(func() error {
			defer sem.Release(1)
			if err := q.Registry.Ensure(gctx, symbol, opts.InstrumentType); err != nil {
				return err
			}
			rows, err := q.runOne(gctx, symbol, tf, startUS, endUS, opts)
			if err != nil {
				return err
			}
			resultsMu.Lock()
			results[symbol] = rows
			resultsMu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (q *Query) runOne(ctx context.Context, symbol string, tf bars.Timeframe, startUS, endUS int64, opts Options) ([]bars.Bar, error) {
	log := q.Logger
	if log == nil {
		log = zap.NewNop()
	}
	fields := append(obslog.Identity(symbol, string(tf), string(opts.InstrumentType)), obslog.Range(startUS, endUS)...)

	actual, err := q.Presence.PresenceSet(ctx, symbol, tf, opts.InstrumentType, startUS, endUS)
	if err != nil {
		return nil, err
	}
	detected, err := gaps.Detect(symbol, tf, opts.InstrumentType, startUS, endUS, actual)
	if err != nil {
		return nil, err
	}

	if len(detected) > 0 && opts.AutoIngest {
		log.Info("planning ingestion for detected gaps", append(fields, zap.Int("gap_count", len(detected)))...)
		if err := q.planAndIngest(ctx, symbol, tf, opts.InstrumentType, detected); err != nil {
			return nil, err
		}

		actual, err = q.Presence.PresenceSet(ctx, symbol, tf, opts.InstrumentType, startUS, endUS)
		if err != nil {
			return nil, err
		}
		detected, err = gaps.Detect(symbol, tf, opts.InstrumentType, startUS, endUS, actual)
		if err != nil {
			return nil, err
		}
	}

	if len(detected) > 0 && opts.FillGaps {
		filler := &gaps.Filler{Fetcher: q.REST, Sink: q.Sink, Concurrency: q.Concurrency}
		unfilled, err := filler.Fill(ctx, detected)
		if err != nil {
			return nil, err
		}
		detected = unfilled
	}

	if len(detected) > 0 && opts.RequireZeroGap {
		return nil, &marketerrs.UnfillableGapError{
			Symbol: symbol, Timeframe: string(tf), Gaps: gaps.ErrRefs(detected),
		}
	}

	return q.Reader.ReadRange(ctx, symbol, tf, opts.InstrumentType, startUS, endUS)
}

// planAndIngest prefers archive months fully contained in each gap,
// falling back to REST for the residual edges (spec §4.8 step 2).
func (q *Query) planAndIngest(ctx context.Context, symbol string, tf bars.Timeframe, instrumentType bars.InstrumentType, detected []gaps.Gap) error {
	var restGaps []gaps.Gap
	for _, g := range detected {
		months, residual := fullyContainedMonths(g)
		for _, m := range months {
			rows, err := q.Archive.FetchMonth(ctx, symbol, tf, instrumentType, m.year, m.month)
			if err != nil {
				// Archive failure for this gap's month falls back to REST
				// for the whole gap rather than aborting the plan.
				restGaps = append(restGaps, g)
				continue
			}
			for i := range rows {
				rows[i] = version.Apply(rows[i])
			}
			if len(rows) > 0 {
				if err := q.writeBatched(ctx, rows); err != nil {
					return err
				}
			}
		}
		restGaps = append(restGaps, residual...)
	}
	if len(restGaps) == 0 {
		return nil
	}
	filler := &gaps.Filler{Fetcher: q.REST, Sink: q.Sink, Concurrency: q.Concurrency}
	_, err := filler.Fill(ctx, restGaps)
	return err
}

// writeBatched feeds rows to q.Sink through a bounded bufpool.Queue/Batcher
// rather than in one Sink.Write call, so an arbitrarily large archive month
// never holds the loader's insert path open on a single unbounded slice.
func (q *Query) writeBatched(ctx context.Context, rows []bars.Bar) error {
	if len(rows) == 0 {
		return nil
	}
	queue := bufpool.NewQueue(archiveWriteBatchSize)
	batcher := &bufpool.Batcher{BatchSize: archiveWriteBatchSize, Drain: q.Sink.Write}

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error { return batcher.Run(gctx, queue) })

	var sendErr error
	for _, b := range rows {
		if err := queue.Send(gctx, b); err != nil {
			sendErr = err
			break
		}
	}
	queue.Close()
	if drainErr := group.Wait(); drainErr != nil {
		return drainErr
	}
	return sendErr
}

type calendarMonth struct{ year, month int }

// fullyContainedMonths splits g into whole calendar months fully inside
// [g.StartUS, g.EndUS) and the residual sub-gaps at the edges that don't
// fill a whole month.
func fullyContainedMonths(g gaps.Gap) ([]calendarMonth, []gaps.Gap) {
	startT := time.UnixMicro(g.StartUS).UTC()
	cur := time.Date(startT.Year(), startT.Month(), 1, 0, 0, 0, 0, time.UTC)
	if cur.UnixMicro() < g.StartUS {
		cur = time.Date(cur.Year(), cur.Month()+1, 1, 0, 0, 0, 0, time.UTC)
	}

	var months []calendarMonth
	var residual []gaps.Gap
	if cur.UnixMicro() > g.StartUS {
		residual = append(residual, gaps.Gap{Symbol: g.Symbol, Timeframe: g.Timeframe, InstrumentType: g.InstrumentType, StartUS: g.StartUS, EndUS: minI64(cur.UnixMicro(), g.EndUS)})
	}

	for {
		next := time.Date(cur.Year(), cur.Month()+1, 1, 0, 0, 0, 0, time.UTC)
		if next.UnixMicro() > g.EndUS {
			break
		}
		months = append(months, calendarMonth{cur.Year(), int(cur.Month())})
		cur = next
	}

	if cur.UnixMicro() < g.EndUS {
		residual = append(residual, gaps.Gap{Symbol: g.Symbol, Timeframe: g.Timeframe, InstrumentType: g.InstrumentType, StartUS: cur.UnixMicro(), EndUS: g.EndUS})
	}
	return months, residual
}

func minI64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

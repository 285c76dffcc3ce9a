package gaps

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"gaplessohlcv/bars"
	"gaplessohlcv/bufpool"
	"gaplessohlcv/marketerrs"
	"gaplessohlcv/version"
)

// Fetcher is the narrow surface Filler needs from the REST fetcher (C3).
// Production wiring passes *rest.Client; tests pass a fake.
type Fetcher interface {
	FetchRange(ctx context.Context, symbol string, tf bars.Timeframe, instrumentType bars.InstrumentType, startUS, endUS int64) ([]bars.Bar, error)
}

// Sink is the narrow surface Filler needs from the loader (C7).
type Sink interface {
	Write(ctx context.Context, bars []bars.Bar) error
}

// Filler implements component C5: it fills the gaps C4 reports by fetching
// each one from Fetcher and writing the result through Sink, bounded by a
// worker pool sized by Concurrency. Gaps are fetched independently and
// concurrently; within a single gap, fetching is sequential (FetchRange is
// given the whole [StartUS, EndUS) span and is responsible for internal
// chunking per spec §4.3).
//
// Fetched bars are never handed to Sink as one unbounded slice per gap —
// spec §9 calls out that "one gap may be arbitrarily large" and requires
// backpressure, not unbounded in-memory buffering. Every producer goroutine
// feeds a single shared bufpool.Queue, drained by one bufpool.Batcher into
// fixed-size Sink.Write calls; a slow Sink naturally stalls the producers
// once the queue fills.
type Filler struct {
	Fetcher     Fetcher
	Sink        Sink
	Concurrency int64

	// QueueCapacity bounds the in-flight bar count between fetch and write;
	// defaults to 1024 bars.
	QueueCapacity int
	// BatchSize is the write batch size handed to Sink.Write; defaults to
	// 1000 bars, matching the spot chunk size (spec §4.7).
	BatchSize int
}

// Fill attempts to fill every gap in gs. Gaps for which Fetcher returns a
// marketerrs.TransientSourceError (retries exhausted) are recorded and
// returned as unfilled rather than aborting the whole batch — the caller
// (ingest's auto-ingest loop) decides whether an unfilled gap after
// re-detection becomes a terminal marketerrs.UnfillableGapError. Any other
// error aborts the fill and is returned directly.
func (f *Filler) Fill(ctx context.Context, gs []Gap) (unfilled []Gap, err error) {
	if len(gs) == 0 {
		return nil, nil
	}
	concurrency := f.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	queueCapacity := f.QueueCapacity
	if queueCapacity <= 0 {
		queueCapacity = 1024
	}
	batchSize := f.BatchSize
	if batchSize <= 0 {
		batchSize = 1000
	}

	queue := bufpool.NewQueue(queueCapacity)
	batcher := &bufpool.Batcher{BatchSize: batchSize, Drain: f.Sink.Write}

	drainGroup, dctx := errgroup.WithContext(ctx)
	drainGroup.Go(func() error { return batcher.Run(dctx, queue) })

	producers, pctx := errgroup.WithContext(dctx)
	sem := semaphore.NewWeighted(concurrency)

	var mu sync.Mutex
	for _, g := range gs {
		g := g
		if err := sem.Acquire(pctx, 1); err != nil {
			break
		}
		producers.Go(func() error {
			defer sem.Release(1)
			filled, ferr := f.Fetcher.FetchRange(pctx, g.Symbol, g.Timeframe, g.InstrumentType, g.StartUS, g.EndUS)
			if ferr != nil {
				var transient *marketerrs.TransientSourceError
				if errors.As(ferr, &transient) {
					mu.Lock()
					unfilled = append(unfilled, g)
					mu.Unlock()
					return nil
				}
				return ferr
			}
			if len(filled) == 0 {
				mu.Lock()
				unfilled = append(unfilled, g)
				mu.Unlock()
				return nil
			}
			// Pipe through C6 (version hash) before C7 (loader), per the
			// C1 -> C6 -> C7 pipeline spec §4.5 prescribes, then feed the
			// bounded queue one bar at a time rather than handing the
			// whole gap to Sink at once.
			for _, b := range filled {
				if err := queue.Send(pctx, version.Apply(b)); err != nil {
					return err
				}
			}
			return nil
		})
	}

	producerErr := producers.Wait()
	queue.Close()
	drainErr := drainGroup.Wait()

	if producerErr != nil {
		return nil, producerErr
	}
	if drainErr != nil {
		return nil, drainErr
	}
	return unfilled, nil
}

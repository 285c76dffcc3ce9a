package gaps

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"gaplessohlcv/bars"
	"gaplessohlcv/marketerrs"
)

type fakeFetcher struct {
	mu       sync.Mutex
	fail     map[string]bool // symbol -> always return TransientSourceError
	fetched  []Gap
	perCall  func(g Gap) ([]bars.Bar, error)
}

func (f *fakeFetcher) FetchRange(_ context.Context, symbol string, tf bars.Timeframe, instrumentType bars.InstrumentType, startUS, endUS int64) ([]bars.Bar, error) {
	g := Gap{Symbol: symbol, Timeframe: tf, InstrumentType: instrumentType, StartUS: startUS, EndUS: endUS}
	f.mu.Lock()
	f.fetched = append(f.fetched, g)
	f.mu.Unlock()

	if f.perCall != nil {
		return f.perCall(g)
	}
	if f.fail[symbol] {
		return nil, &marketerrs.TransientSourceError{URL: symbol, Attempts: 3}
	}
	return []bars.Bar{{Symbol: symbol, Timeframe: tf, InstrumentType: instrumentType, TimestampUS: startUS}}, nil
}

type fakeSink struct {
	mu      sync.Mutex
	written [][]bars.Bar
}

func (s *fakeSink) Write(_ context.Context, b []bars.Bar) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.written = append(s.written, b)
	return nil
}

func TestFiller_FillsAllGaps(t *testing.T) {
	fetcher := &fakeFetcher{}
	sink := &fakeSink{}
	f := &Filler{Fetcher: fetcher, Sink: sink, Concurrency: 4, BatchSize: 1, QueueCapacity: 4}

	gs := []Gap{
		{Symbol: "BTCUSDT", Timeframe: bars.TF1h, InstrumentType: bars.InstrumentSpot, StartUS: 0, EndUS: 3600_000_000},
		{Symbol: "ETHUSDT", Timeframe: bars.TF1h, InstrumentType: bars.InstrumentSpot, StartUS: 0, EndUS: 3600_000_000},
	}
	unfilled, err := f.Fill(context.Background(), gs)
	require.NoError(t, err)
	require.Empty(t, unfilled)
	require.Len(t, sink.written, 2)
}

func TestFiller_RecordsTransientFailureAsUnfilled(t *testing.T) {
	fetcher := &fakeFetcher{fail: map[string]bool{"BTCUSDT": true}}
	sink := &fakeSink{}
	f := &Filler{Fetcher: fetcher, Sink: sink, Concurrency: 2, BatchSize: 1, QueueCapacity: 4}

	gs := []Gap{
		{Symbol: "BTCUSDT", Timeframe: bars.TF1h, InstrumentType: bars.InstrumentSpot, StartUS: 0, EndUS: 3600_000_000},
		{Symbol: "ETHUSDT", Timeframe: bars.TF1h, InstrumentType: bars.InstrumentSpot, StartUS: 0, EndUS: 3600_000_000},
	}
	unfilled, err := f.Fill(context.Background(), gs)
	require.NoError(t, err)
	require.Len(t, unfilled, 1)
	require.Equal(t, "BTCUSDT", unfilled[0].Symbol)
	require.Len(t, sink.written, 1)
}

// TestFiller_BatchesAcrossGaps verifies the bufpool.Queue/Batcher pipeline
// actually coalesces bars from independent gaps into fixed-size Sink.Write
// calls instead of one Write per gap, so a slow Sink applies backpressure
// to every producer rather than only the gap whose fetch happens to finish
// last.
func TestFiller_BatchesAcrossGaps(t *testing.T) {
	fetcher := &fakeFetcher{}
	sink := &fakeSink{}
	f := &Filler{Fetcher: fetcher, Sink: sink, Concurrency: 4, BatchSize: 2, QueueCapacity: 8}

	gs := []Gap{
		{Symbol: "BTCUSDT", Timeframe: bars.TF1h, InstrumentType: bars.InstrumentSpot, StartUS: 0, EndUS: 3600_000_000},
		{Symbol: "ETHUSDT", Timeframe: bars.TF1h, InstrumentType: bars.InstrumentSpot, StartUS: 0, EndUS: 3600_000_000},
		{Symbol: "BNBUSDT", Timeframe: bars.TF1h, InstrumentType: bars.InstrumentSpot, StartUS: 0, EndUS: 3600_000_000},
	}
	unfilled, err := f.Fill(context.Background(), gs)
	require.NoError(t, err)
	require.Empty(t, unfilled)

	// 3 bars total (one per gap) with a batch size of 2: one full batch of
	// 2 plus a trailing flush of 1, never one Write per gap.
	require.Len(t, sink.written, 2)
	total := 0
	for _, batch := range sink.written {
		total += len(batch)
	}
	require.Equal(t, 3, total)
}

func TestFiller_EmptyGapListIsNoop(t *testing.T) {
	f := &Filler{Fetcher: &fakeFetcher{}, Sink: &fakeSink{}, Concurrency: 1}
	unfilled, err := f.Fill(context.Background(), nil)
	require.NoError(t, err)
	require.Nil(t, unfilled)
}

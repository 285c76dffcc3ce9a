// Package bufpool provides the bounded channel/worker-pool building blocks
// shared by the gap filler's producer side and the loader's batch
// producer/consumer, so backpressure is explicit rather than relying on
// unbounded in-memory buffering (spec §9: "one gap may be arbitrarily
// large").
package bufpool

import (
	"context"

	"gaplessohlcv/bars"
)

// Queue is a bounded channel of bars. Send blocks once Capacity is reached,
// which is the backpressure mechanism: a slow consumer (e.g. a ClickHouse
// batch insert still in flight) naturally stalls the producer instead of
// growing memory without bound.
type Queue struct {
	ch chan bars.Bar
}

// NewQueue allocates a Queue with the given capacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{ch: make(chan bars.Bar, capacity)}
}

// Send enqueues b, blocking if the queue is full, honoring ctx cancellation.
func (q *Queue) Send(ctx context.Context, b bars.Bar) error {
	select {
	case q.ch <- b:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close signals no further sends will occur; ranging receivers exit once
// drained.
func (q *Queue) Close() { close(q.ch) }

// Channel exposes the underlying channel for range-based consumption.
func (q *Queue) Channel() <-chan bars.Bar { return q.ch }

// Batcher accumulates bars read off a Queue into fixed-size slices, handing
// each full batch to drain. It is the producer/consumer glue the loader
// uses to turn a stream of bars into batched inserts (spec §4.7: "Batch-size
// is chosen to minimize merge cost").
type Batcher struct {
	BatchSize int
	Drain     func(ctx context.Context, batch []bars.Bar) error
}

// Run reads from q until it closes or ctx is cancelled, calling Drain on
// every full batch and once more on any trailing partial batch at the end.
func (b *Batcher) Run(ctx context.Context, q *Queue) error {
	batch := make([]bars.Bar, 0, b.BatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := b.Drain(ctx, batch); err != nil {
			return err
		}
		batch = make([]bars.Bar, 0, b.BatchSize)
		return nil
	}

	for {
		select {
		case bar, ok := <-q.Channel():
			if !ok {
				return flush()
			}
			batch = append(batch, bar)
			if len(batch) >= b.BatchSize {
				if err := flush(); err != nil {
					return err
				}
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

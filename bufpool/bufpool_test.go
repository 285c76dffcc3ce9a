package bufpool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"gaplessohlcv/bars"
)

func TestBatcher_FlushesFullAndTrailingBatches(t *testing.T) {
	q := NewQueue(10)
	var drained [][]bars.Bar
	b := &Batcher{
		BatchSize: 2,
		Drain: func(_ context.Context, batch []bars.Bar) error {
			cp := make([]bars.Bar, len(batch))
			copy(cp, batch)
			drained = append(drained, cp)
			return nil
		},
	}

	ctx := context.Background()
	go func() {
		for i := 0; i < 5; i++ {
			_ = q.Send(ctx, bars.Bar{Symbol: "BTCUSDT", TimestampUS: int64(i)})
		}
		q.Close()
	}()

	require.NoError(t, b.Run(ctx, q))
	require.Len(t, drained, 3) // 2, 2, 1
	require.Len(t, drained[2], 1)
}

func TestQueue_SendRespectsCancellation(t *testing.T) {
	q := NewQueue(1)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, q.Send(ctx, bars.Bar{}))

	cancel()
	err := q.Send(ctx, bars.Bar{})
	require.Error(t, err)
}

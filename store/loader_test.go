package store

import (
	"context"
	"testing"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"gaplessohlcv/bars"
)

type fakeBatch struct {
	driver.Batch
	rows [][]interface{}
	sent bool
}

func (b *fakeBatch) Append(v ...interface{}) error {
	b.rows = append(b.rows, v)
	return nil
}

func (b *fakeBatch) Send() error {
	b.sent = true
	return nil
}

type batchCapturingConn struct {
	fakeConn
	batches []*fakeBatch
}

func (c *batchCapturingConn) PrepareBatch(_ context.Context, _ string, _ ...driver.PrepareBatchOption) (driver.Batch, error) {
	b := &fakeBatch{}
	c.batches = append(c.batches, b)
	return b, nil
}

func sampleValidBar(symbol string, tsUS int64) bars.Bar {
	return bars.Bar{
		Symbol:         symbol,
		Timeframe:      bars.TF1h,
		InstrumentType: bars.InstrumentSpot,
		TimestampUS:    tsUS,
		CloseTimeUS:    tsUS + 3_599_999,
		DataSource:     bars.SourceBulk,
		Open:           decimal.RequireFromString("100"),
		High:           decimal.RequireFromString("110"),
		Low:            decimal.RequireFromString("90"),
		Close:          decimal.RequireFromString("105"),
		Volume:         decimal.RequireFromString("10"),
		QuoteVolume:    decimal.RequireFromString("1000"),
		Version:        42,
	}
}

func TestLoader_Write_ValidatesSchemaOnce(t *testing.T) {
	conn := &batchCapturingConn{fakeConn: fakeConn{liveCols: matchingSchemaRows()}}
	loader := NewLoader(conn, 10)

	require.NoError(t, loader.Write(context.Background(), []bars.Bar{sampleValidBar("BTCUSDT", 0)}))
	require.NoError(t, loader.Write(context.Background(), []bars.Bar{sampleValidBar("BTCUSDT", 3_600_000_000)}))

	require.Len(t, conn.batches, 2)
	require.True(t, loader.validated)
}

func TestLoader_Write_BatchesBySymbolAndTime(t *testing.T) {
	conn := &batchCapturingConn{fakeConn: fakeConn{liveCols: matchingSchemaRows()}}
	loader := NewLoader(conn, 10)

	rows := []bars.Bar{
		sampleValidBar("ETHUSDT", 0),
		sampleValidBar("BTCUSDT", 3_600_000_000),
		sampleValidBar("BTCUSDT", 0),
	}
	require.NoError(t, loader.Write(context.Background(), rows))
	require.Len(t, conn.batches, 1)

	appended := conn.batches[0].rows
	require.Len(t, appended, 3)
	require.Equal(t, "BTCUSDT", appended[0][0])
	require.Equal(t, "BTCUSDT", appended[1][0])
	require.Equal(t, "ETHUSDT", appended[2][0])
}

func TestLoader_Write_InvariantViolationAbortsBatch(t *testing.T) {
	conn := &batchCapturingConn{fakeConn: fakeConn{liveCols: matchingSchemaRows()}}
	loader := NewLoader(conn, 10)

	bad := sampleValidBar("BTCUSDT", 0)
	bad.Low = decimal.RequireFromString("200") // low > high, violates OHLC invariant
	err := loader.Write(context.Background(), []bars.Bar{bad})
	require.Error(t, err)
}

func TestHourBucket(t *testing.T) {
	require.Equal(t, int64(0), hourBucket(0))
	require.Equal(t, int64(1), hourBucket(3_600_000_000))
}

package archive

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"gaplessohlcv/bars"
	"gaplessohlcv/decimalx"
)

const dialectALine = "1704067200000000,42000.10,42100.00,41950.50,42050.25,123.456789,1704070799999999,5190000.00,321,60.0,2500000.00"

func TestDetectDialect(t *testing.T) {
	require.Equal(t, DialectA, DetectDialect(dialectALine))
	require.Equal(t, DialectB, DetectDialect("open_time,open,high,low,close,volume,close_time,quote_volume,count,taker_base,taker_quote,ignore"))
}

func TestParseCSV_DialectA(t *testing.T) {
	out, err := ParseCSV(strings.NewReader(dialectALine+"\n"), "BTCUSDT", bars.TF1h, bars.InstrumentSpot, bars.SourceBulk)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, int64(1_704_067_200_000_000), out[0].TimestampUS)
	require.Equal(t, "42000.10", decimalx.Canonical(out[0].Open))
	require.Equal(t, uint64(321), out[0].NumberOfTrades)
}

func TestParseCSV_DialectBSkipsHeaderAndIgnoreColumn(t *testing.T) {
	header := "open_time,open,high,low,close,volume,close_time,quote_volume,count,taker_base,taker_quote,ignore"
	row := "1704067200000000,42000.10,42100.00,41950.50,42050.25,123.456789,1704070799999999,5190000.00,321,60.0,2500000.00,0"
	out, err := ParseCSV(strings.NewReader(header+"\n"+row+"\n"), "BTCUSDT", bars.TF1h, bars.InstrumentFuturesPerp, bars.SourceBulk)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, bars.InstrumentFuturesPerp, out[0].InstrumentType)
}

func TestParseCSV_CommentLinesStripped(t *testing.T) {
	body := "# symbol=BTCUSDT\n# generated=2024-01-01\n" + dialectALine + "\n"
	out, err := ParseCSV(strings.NewReader(body), "BTCUSDT", bars.TF1h, bars.InstrumentSpot, bars.SourceBulk)
	require.NoError(t, err)
	require.Len(t, out, 1)
}

func TestParseCSV_WrongColumnCountIsMalformed(t *testing.T) {
	_, err := ParseCSV(strings.NewReader("1,2,3\n"), "BTCUSDT", bars.TF1h, bars.InstrumentSpot, bars.SourceBulk)
	require.Error(t, err)
}

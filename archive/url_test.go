package archive

import (
	"testing"

	"github.com/stretchr/testify/require"

	"gaplessohlcv/bars"
)

func TestMonthlyURL(t *testing.T) {
	got := MonthlyURL("https://data.example.com", bars.InstrumentSpot, "BTCUSDT", bars.TF1h, 2024, 1)
	require.Equal(t, "https://data.example.com/spot/monthly/klines/BTCUSDT/1h/BTCUSDT-1h-2024-01.zip", got)
}

func TestDailyURL_Futures(t *testing.T) {
	got := DailyURL("https://data.example.com", bars.InstrumentFuturesPerp, "BTCUSDT", bars.TF1h, 2024, 2, 29)
	require.Equal(t, "https://data.example.com/futures/um/daily/klines/BTCUSDT/1h/BTCUSDT-1h-2024-02-29.zip", got)
}

func TestDaysInMonth_LeapFebruary(t *testing.T) {
	require.Equal(t, 29, dateDaysInMonth(2024, 2))
	require.Equal(t, 28, dateDaysInMonth(2023, 2))
	require.Equal(t, 31, dateDaysInMonth(2024, 1))
}

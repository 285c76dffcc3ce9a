// Package archive implements component C2: download, extract, and parse
// Binance-shaped monthly/daily bulk ZIP archives, falling back from
// monthly to daily granularity on a 404 and normalizing every row through
// bars.Normalize before yielding it.
package archive

import (
	"fmt"

	"gaplessohlcv/bars"
)

// instrumentPath returns the {spot|futures/um} URL segment for §6.1.
func instrumentPath(it bars.InstrumentType) string {
	if it == bars.InstrumentFuturesPerp {
		return "futures/um"
	}
	return "spot"
}

// MonthlyURL builds the monthly archive URL per §6.1.
func MonthlyURL(root string, it bars.InstrumentType, symbol string, tf bars.Timeframe, year, month int) string {
	return fmt.Sprintf("%s/%s/monthly/klines/%s/%s/%s-%s-%04d-%02d.zip",
		root, instrumentPath(it), symbol, tf, symbol, tf, year, month)
}

// DailyURL builds the daily archive URL per §6.1.
func DailyURL(root string, it bars.InstrumentType, symbol string, tf bars.Timeframe, year, month, day int) string {
	return fmt.Sprintf("%s/%s/daily/klines/%s/%s/%s-%s-%04d-%02d-%02d.zip",
		root, instrumentPath(it), symbol, tf, symbol, tf, year, month, day)
}

// Package bars holds the Bar data model (spec §3), the timeframe
// enumeration and grid math shared by the gap detector, and the timestamp
// normalizer (component C1).
package bars

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Timeframe is one of the fixed enumeration of supported bar durations.
type Timeframe string

const (
	TF1s  Timeframe = "1s"
	TF1m  Timeframe = "1m"
	TF3m  Timeframe = "3m"
	TF5m  Timeframe = "5m"
	TF15m Timeframe = "15m"
	TF30m Timeframe = "30m"
	TF1h  Timeframe = "1h"
	TF2h  Timeframe = "2h"
	TF4h  Timeframe = "4h"
	TF6h  Timeframe = "6h"
	TF8h  Timeframe = "8h"
	TF12h Timeframe = "12h"
	TF1d  Timeframe = "1d"
	TF3d  Timeframe = "3d"
	TF1w  Timeframe = "1w"
	TF1mo Timeframe = "1mo"
)

// AllTimeframes lists every supported timeframe, in ascending duration
// order.
var AllTimeframes = []Timeframe{
	TF1s, TF1m, TF3m, TF5m, TF15m, TF30m,
	TF1h, TF2h, TF4h, TF6h, TF8h, TF12h,
	TF1d, TF3d, TF1w, TF1mo,
}

// durationMicros maps every fixed-duration timeframe to its length in
// microseconds. 1mo is intentionally absent: it follows calendar months
// (variable day count) and has no fixed duration.
var durationMicros = map[Timeframe]int64{
	TF1s:  1_000_000,
	TF1m:  60 * 1_000_000,
	TF3m:  3 * 60 * 1_000_000,
	TF5m:  5 * 60 * 1_000_000,
	TF15m: 15 * 60 * 1_000_000,
	TF30m: 30 * 60 * 1_000_000,
	TF1h:  3600 * 1_000_000,
	TF2h:  2 * 3600 * 1_000_000,
	TF4h:  4 * 3600 * 1_000_000,
	TF6h:  6 * 3600 * 1_000_000,
	TF8h:  8 * 3600 * 1_000_000,
	TF12h: 12 * 3600 * 1_000_000,
	TF1d:  24 * 3600 * 1_000_000,
	TF3d:  3 * 24 * 3600 * 1_000_000,
	TF1w:  7 * 24 * 3600 * 1_000_000,
}

// IsCalendarMonth reports whether tf is the variable-length 1mo timeframe,
// which needs the calendar-aware grid path instead of fixed-duration
// arithmetic.
func (tf Timeframe) IsCalendarMonth() bool { return tf == TF1mo }

// Valid reports whether tf is one of the fixed enumeration members.
func (tf Timeframe) Valid() bool {
	if tf == TF1mo {
		return true
	}
	_, ok := durationMicros[tf]
	return ok
}

// DurationMicros returns the fixed duration of tf in microseconds. It must
// not be called for TF1mo; callers needing 1mo arithmetic use the
// calendar-aware helpers in package gaps (Generate, NextGridPoint) instead.
func (tf Timeframe) DurationMicros() (int64, error) {
	d, ok := durationMicros[tf]
	if !ok {
		return 0, fmt.Errorf("bars: timeframe %q has no fixed duration", tf)
	}
	return d, nil
}

// InstrumentType distinguishes spot markets from perpetual futures.
type InstrumentType string

const (
	InstrumentSpot        InstrumentType = "spot"
	InstrumentFuturesPerp InstrumentType = "futures-perp"
)

// Valid reports whether it is a known instrument type.
func (it InstrumentType) Valid() bool {
	return it == InstrumentSpot || it == InstrumentFuturesPerp
}

// DataSource tags which upstream surface produced a row.
type DataSource string

const (
	SourceBulk DataSource = "bulk"
	SourceREST DataSource = "rest"
)

// Identity is the primary key of a bar: (symbol, timeframe, instrument_type,
// timestamp).
type Identity struct {
	Symbol         string
	Timeframe      Timeframe
	InstrumentType InstrumentType
	TimestampUS    int64
}

// Bar is the atomic OHLCV(+microstructure) record for one trading interval.
// Timestamps are microsecond-precision UTC instants; prices and volumes are
// lossless decimals (never routed through float64 before hashing, per
// decimalx).
type Bar struct {
	TimestampUS    int64
	CloseTimeUS    int64
	Symbol         string
	Timeframe      Timeframe
	InstrumentType InstrumentType
	DataSource     DataSource

	Open  decimal.Decimal
	High  decimal.Decimal
	Low   decimal.Decimal
	Close decimal.Decimal

	Volume          decimal.Decimal
	QuoteVolume      decimal.Decimal
	TakerBuyBase    decimal.Decimal
	TakerBuyQuote   decimal.Decimal
	NumberOfTrades  uint64

	// FundingRate is present only for futures-perp; absent otherwise.
	FundingRate *decimal.Decimal

	// Version is the deterministic content hash computed by package
	// version. Zero until version.Apply has set it on the bar.
	Version uint64
}

// Identity returns the bar's primary-key tuple.
func (b Bar) Identity() Identity {
	return Identity{
		Symbol:         b.Symbol,
		Timeframe:      b.Timeframe,
		InstrumentType: b.InstrumentType,
		TimestampUS:    b.TimestampUS,
	}
}

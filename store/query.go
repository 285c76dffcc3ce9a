package store

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"gaplessohlcv/bars"
)

// Reader implements the dedup read path C7/C8 need: rows selected by the
// engine's FINAL keyword so callers observe post-dedup state (spec §4.7:
// "conceptually a distinct-latest read").
type Reader struct {
	loader *Loader
}

// NewReader builds a Reader sharing the Loader's connection and schema
// gate (a read before any write still needs the schema validated).
func NewReader(l *Loader) *Reader { return &Reader{loader: l} }

// ReadRange returns the deduplicated rows for
// (symbol, timeframe, instrument_type) in [startUS, endUS), ordered by
// timestamp ascending.
func (r *Reader) ReadRange(ctx context.Context, symbol string, tf bars.Timeframe, instrumentType bars.InstrumentType, startUS, endUS int64) ([]bars.Bar, error) {
	if err := r.loader.ensureReady(ctx); err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`
		SELECT timestamp, close_time, data_source, open, high, low, close,
		       volume, quote_volume, taker_buy_base, taker_buy_quote,
		       number_of_trades, funding_rate, version
		FROM %s FINAL
		WHERE symbol = ? AND timeframe = ? AND instrument_type = ?
		  AND timestamp >= ? AND timestamp < ?
		ORDER BY timestamp ASC`, ExpectedSchema.Table)

	rows, err := r.loader.conn.Query(ctx, query, symbol, string(tf), string(instrumentType), startUS, endUS)
	if err != nil {
		return nil, fmt.Errorf("store: query range: %w", err)
	}
	defer rows.Close()

	var out []bars.Bar
	for rows.Next() {
		var (
			ts, closeTime                                     int64
			dataSource                                         string
			open, high, low, closeP, vol, qVol, takerB, takerQ decimal.Decimal
			numTrades                                          uint64
			fundingRate                                        *float64
			version                                            uint64
		)
		if err := rows.Scan(&ts, &closeTime, &dataSource, &open, &high, &low, &closeP,
			&vol, &qVol, &takerB, &takerQ, &numTrades, &fundingRate, &version); err != nil {
			return nil, fmt.Errorf("store: scan bar row: %w", err)
		}
		bar := bars.Bar{
			TimestampUS: ts, CloseTimeUS: closeTime, Symbol: symbol, Timeframe: tf,
			InstrumentType: instrumentType, DataSource: bars.DataSource(dataSource),
			Open: open, High: high, Low: low, Close: closeP,
			Volume: vol, QuoteVolume: qVol, TakerBuyBase: takerB, TakerBuyQuote: takerQ,
			NumberOfTrades: numTrades, Version: version,
		}
		if fundingRate != nil {
			fr := decimal.NewFromFloat(*fundingRate)
			bar.FundingRate = &fr
		}
		out = append(out, bar)
	}
	return out, rows.Err()
}

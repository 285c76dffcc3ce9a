package fsio

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"time"

	"gaplessohlcv/bars"
	"gaplessohlcv/decimalx"
)

// CSVEncoder is the default, always-available output encoder (§6.4): UTF-8,
// LF line endings, one header line, optional leading #-prefixed metadata
// comment lines.
type CSVEncoder struct {
	// GeneratedAt stamps the metadata comment header; callers pass the
	// ingestion run's timestamp rather than fsio reaching for wall-clock
	// time itself, keeping the encoder pure and testable.
	GeneratedAt time.Time
}

var csvHeader = []string{
	"timestamp", "close_time", "symbol", "timeframe", "instrument_type", "data_source",
	"open", "high", "low", "close", "volume", "quote_volume",
	"taker_buy_base", "taker_buy_quote", "number_of_trades", "funding_rate", "version",
}

// Encode implements Encoder.
func (e CSVEncoder) Encode(symbol string, tf bars.Timeframe, instrumentType bars.InstrumentType, rows []bars.Bar) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# symbol=%s\n", symbol)
	fmt.Fprintf(&buf, "# timeframe=%s\n", tf)
	fmt.Fprintf(&buf, "# instrument_type=%s\n", instrumentType)
	fmt.Fprintf(&buf, "# generated=%s\n", e.GeneratedAt.UTC().Format(time.RFC3339))

	w := csv.NewWriter(&buf)
	w.UseCRLF = false
	if err := w.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("fsio: write csv header: %w", err)
	}
	for _, b := range rows {
		record := []string{
			fmt.Sprintf("%d", b.TimestampUS),
			fmt.Sprintf("%d", b.CloseTimeUS),
			b.Symbol,
			string(b.Timeframe),
			string(b.InstrumentType),
			string(b.DataSource),
			decimalx.Canonical(b.Open),
			decimalx.Canonical(b.High),
			decimalx.Canonical(b.Low),
			decimalx.Canonical(b.Close),
			decimalx.Canonical(b.Volume),
			decimalx.Canonical(b.QuoteVolume),
			decimalx.Canonical(b.TakerBuyBase),
			decimalx.Canonical(b.TakerBuyQuote),
			decimalx.CanonicalInt(b.NumberOfTrades),
			fundingRateField(b),
			decimalx.CanonicalInt(b.Version),
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("fsio: write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("fsio: flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func fundingRateField(b bars.Bar) string {
	if b.FundingRate == nil {
		return ""
	}
	return decimalx.Canonical(*b.FundingRate)
}

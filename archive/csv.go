package archive

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"unicode"

	xunicode "golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"gaplessohlcv/bars"
	"gaplessohlcv/decimalx"
	"gaplessohlcv/gaps"
	"gaplessohlcv/marketerrs"
)

// Dialect identifies which of the two historical CSV layouts a member uses.
type Dialect int

const (
	// DialectA is the spot layout: no header, 11 positional columns.
	DialectA Dialect = iota
	// DialectB is the futures layout: header row present, 12 columns with
	// a trailing "ignore" column.
	DialectB
)

// DetectDialect inspects the first non-comment line: a line beginning with
// a non-numeric token signals Dialect B (header row); otherwise Dialect A.
func DetectDialect(firstLine string) Dialect {
	firstLine = strings.TrimSpace(firstLine)
	if firstLine == "" {
		return DialectA
	}
	firstField := firstLine
	if idx := strings.IndexByte(firstLine, ','); idx >= 0 {
		firstField = firstLine[:idx]
	}
	for _, r := range firstField {
		if !unicode.IsDigit(r) && r != '-' {
			return DialectB
		}
	}
	return DialectA
}

// stripBOM removes a leading UTF-8 BOM using golang.org/x/text's BOM-aware
// transform rather than a hand-rolled byte-prefix check.
func stripBOM(r io.Reader) io.Reader {
	return transform.NewReader(r, xunicode.BOMOverride(xunicode.UTF8.NewDecoder()))
}

// ParseCSV reads klines CSV content (bulk archive or validator input),
// skipping `#`-prefixed comment/metadata lines, auto-detecting the dialect,
// and normalizing every row's timestamp through bars.Normalize (C1).
func ParseCSV(r io.Reader, symbol string, tf bars.Timeframe, instrumentType bars.InstrumentType, source bars.DataSource) ([]bars.Bar, error) {
	scanner := bufio.NewScanner(stripBOM(r))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var firstDataLine string
	var lines []string
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, &marketerrs.ArchiveCorruptError{URL: symbol, Cause: err}
	}
	if len(lines) == 0 {
		return nil, nil
	}
	firstDataLine = lines[0]
	dialect := DetectDialect(firstDataLine)

	start := 0
	if dialect == DialectB {
		start = 1 // skip header row
	}

	out := make([]bars.Bar, 0, len(lines)-start)
	for _, line := range lines[start:] {
		fields := strings.Split(line, ",")
		wantCols := 11
		if dialect == DialectB {
			wantCols = 12
		}
		if len(fields) != wantCols {
			return nil, &marketerrs.MalformedInputError{Source: symbol, Detail: "column count mismatch"}
		}
		bar, err := parseRow(fields, symbol, tf, instrumentType, source)
		if err != nil {
			return nil, err
		}
		out = append(out, bar)
	}
	return out, nil
}

// parseRow maps the 11 common positional columns — open_time, open, high,
// low, close, volume, close_time, quote_volume, number_of_trades,
// taker_buy_base, taker_buy_quote — discarding Dialect B's trailing
// "ignore" column if present.
func parseRow(fields []string, symbol string, tf bars.Timeframe, instrumentType bars.InstrumentType, source bars.DataSource) (bars.Bar, error) {
	rawOpenTime, err := strconv.ParseInt(strings.TrimSpace(fields[0]), 10, 64)
	if err != nil {
		return bars.Bar{}, &marketerrs.MalformedInputError{Source: symbol, Detail: "open_time", Cause: err}
	}
	tsUS, err := bars.Normalize(rawOpenTime)
	if err != nil {
		return bars.Bar{}, err
	}

	open, err := decimalx.Parse(fields[1])
	if err != nil {
		return bars.Bar{}, &marketerrs.MalformedInputError{Source: symbol, Detail: "open", Cause: err}
	}
	high, err := decimalx.Parse(fields[2])
	if err != nil {
		return bars.Bar{}, &marketerrs.MalformedInputError{Source: symbol, Detail: "high", Cause: err}
	}
	low, err := decimalx.Parse(fields[3])
	if err != nil {
		return bars.Bar{}, &marketerrs.MalformedInputError{Source: symbol, Detail: "low", Cause: err}
	}
	closeP, err := decimalx.Parse(fields[4])
	if err != nil {
		return bars.Bar{}, &marketerrs.MalformedInputError{Source: symbol, Detail: "close", Cause: err}
	}
	volume, err := decimalx.Parse(fields[5])
	if err != nil {
		return bars.Bar{}, &marketerrs.MalformedInputError{Source: symbol, Detail: "volume", Cause: err}
	}
	quoteVolume, err := decimalx.Parse(fields[7])
	if err != nil {
		return bars.Bar{}, &marketerrs.MalformedInputError{Source: symbol, Detail: "quote_volume", Cause: err}
	}
	numTrades, err := strconv.ParseUint(strings.TrimSpace(fields[8]), 10, 64)
	if err != nil {
		return bars.Bar{}, &marketerrs.MalformedInputError{Source: symbol, Detail: "number_of_trades", Cause: err}
	}
	takerBase, err := decimalx.Parse(fields[9])
	if err != nil {
		return bars.Bar{}, &marketerrs.MalformedInputError{Source: symbol, Detail: "taker_buy_base", Cause: err}
	}
	takerQuote, err := decimalx.Parse(fields[10])
	if err != nil {
		return bars.Bar{}, &marketerrs.MalformedInputError{Source: symbol, Detail: "taker_buy_quote", Cause: err}
	}

	closeTimeUS, err := gaps.CloseTimeUS(tsUS, tf)
	if err != nil {
		return bars.Bar{}, err
	}

	return bars.Bar{
		TimestampUS:    tsUS,
		CloseTimeUS:    closeTimeUS,
		Symbol:         symbol,
		Timeframe:      tf,
		InstrumentType: instrumentType,
		DataSource:     source,
		Open:           open,
		High:           high,
		Low:            low,
		Close:          closeP,
		Volume:         volume,
		QuoteVolume:    quoteVolume,
		TakerBuyBase:   takerBase,
		TakerBuyQuote:  takerQuote,
		NumberOfTrades: numTrades,
	}, nil
}

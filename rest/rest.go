// Package rest implements component C3: chunked retrieval of bar ranges
// from the live REST endpoint, preserving strict timestamp ordering across
// chunks and sharing the §4.3 retry policy with the archive fetcher via
// httpx.Client.
package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/shopspring/decimal"

	"gaplessohlcv/bars"
	"gaplessohlcv/decimalx"
	"gaplessohlcv/gaps"
	"gaplessohlcv/httpx"
	"gaplessohlcv/marketerrs"
)

// Client implements component C3 against a configured spot/futures REST
// root pair.
type Client struct {
	HTTP         *httpx.Client
	SpotRoot     string
	FuturesRoot  string
	ChunkSpot    int
	ChunkFutures int
}

// New builds a Client with the chunk sizes from the configuration table
// (§6.6: 1000 spot, 1500 futures).
func New(httpClient *httpx.Client, spotRoot, futuresRoot string, chunkSpot, chunkFutures int) *Client {
	return &Client{HTTP: httpClient, SpotRoot: spotRoot, FuturesRoot: futuresRoot, ChunkSpot: chunkSpot, ChunkFutures: chunkFutures}
}

func (c *Client) root(it bars.InstrumentType) string {
	if it == bars.InstrumentFuturesPerp {
		return c.FuturesRoot
	}
	return c.SpotRoot
}

func (c *Client) chunkSize(it bars.InstrumentType) int {
	if it == bars.InstrumentFuturesPerp {
		return c.ChunkFutures
	}
	return c.ChunkSpot
}

// klineRow is the positional JSON array shape §6.2 returns; timestamps on
// this surface are always milliseconds regardless of instrument type.
type klineRow []json.RawMessage

// FetchRange implements fetch_rest(symbol, timeframe, instrument_type,
// from_ts, to_ts): chunks [fromUS, toUS) into windows of at most
// chunkSize(it) bars and concatenates results in strict timestamp order.
func (c *Client) FetchRange(ctx context.Context, symbol string, tf bars.Timeframe, instrumentType bars.InstrumentType, fromUS, toUS int64) ([]bars.Bar, error) {
	stepUS, err := tf.DurationMicros()
	if err != nil {
		// 1mo has no fixed duration; fetch one grid window at a time.
		return c.fetchMonthlyChunks(ctx, symbol, tf, instrumentType, fromUS, toUS)
	}

	chunkBars := int64(c.chunkSize(instrumentType))
	windowUS := stepUS * chunkBars

	var out []bars.Bar
	for start := fromUS; start < toUS; start += windowUS {
		end := start + windowUS
		if end > toUS {
			end = toUS
		}
		chunk, err := c.fetchChunk(ctx, symbol, tf, instrumentType, start, end)
		if err != nil {
			return nil, err
		}
		out = append(out, chunk...)
	}
	return out, nil
}

func (c *Client) fetchMonthlyChunks(ctx context.Context, symbol string, tf bars.Timeframe, instrumentType bars.InstrumentType, fromUS, toUS int64) ([]bars.Bar, error) {
	grid, err := gaps.Generate(fromUS, toUS, tf)
	if err != nil {
		return nil, err
	}
	var out []bars.Bar
	for _, start := range grid {
		end, err := gaps.NextGridPoint(start, tf)
		if err != nil {
			return nil, err
		}
		if end > toUS {
			end = toUS
		}
		chunk, err := c.fetchChunk(ctx, symbol, tf, instrumentType, start, end)
		if err != nil {
			return nil, err
		}
		out = append(out, chunk...)
	}
	return out, nil
}

func (c *Client) fetchChunk(ctx context.Context, symbol string, tf bars.Timeframe, instrumentType bars.InstrumentType, startUS, endUS int64) ([]bars.Bar, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", string(tf))
	q.Set("startTime", strconv.FormatInt(startUS/1000, 10))
	q.Set("endTime", strconv.FormatInt(endUS/1000, 10))
	q.Set("limit", strconv.Itoa(c.chunkSize(instrumentType)))

	reqURL := fmt.Sprintf("%s/klines?%s", c.root(instrumentType), q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("rest: build request: %w", err)
	}

	resp, err := c.HTTP.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode >= 400 {
		return nil, httpx.ClassifyStatus(reqURL, resp.StatusCode)
	}

	var rows []klineRow
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, &marketerrs.MalformedInputError{Source: reqURL, Detail: "decode klines response", Cause: err}
	}

	out := make([]bars.Bar, 0, len(rows))
	var prevTS int64 = -1
	for _, row := range rows {
		bar, err := parseKlineRow(row, symbol, tf, instrumentType)
		if err != nil {
			return nil, err
		}
		if bar.TimestampUS <= prevTS {
			return nil, &marketerrs.MalformedInputError{Source: reqURL, Detail: "timestamps not strictly increasing"}
		}
		prevTS = bar.TimestampUS
		out = append(out, bar)
	}
	return out, nil
}

// parseKlineRow maps the same 11/12-column semantics as §4.2 onto the JSON
// positional array; timestamps here are always milliseconds (§6.2).
func parseKlineRow(row klineRow, symbol string, tf bars.Timeframe, instrumentType bars.InstrumentType) (bars.Bar, error) {
	if len(row) < 11 {
		return bars.Bar{}, &marketerrs.MalformedInputError{Source: symbol, Detail: "kline row too short"}
	}

	var rawOpenTimeMS int64
	if err := json.Unmarshal(row[0], &rawOpenTimeMS); err != nil {
		return bars.Bar{}, &marketerrs.MalformedInputError{Source: symbol, Detail: "open_time", Cause: err}
	}
	tsUS, err := bars.Normalize(rawOpenTimeMS)
	if err != nil {
		return bars.Bar{}, err
	}

	open, err := decodeDecimal(row[1], symbol, "open")
	if err != nil {
		return bars.Bar{}, err
	}
	high, err := decodeDecimal(row[2], symbol, "high")
	if err != nil {
		return bars.Bar{}, err
	}
	low, err := decodeDecimal(row[3], symbol, "low")
	if err != nil {
		return bars.Bar{}, err
	}
	closeP, err := decodeDecimal(row[4], symbol, "close")
	if err != nil {
		return bars.Bar{}, err
	}
	volume, err := decodeDecimal(row[5], symbol, "volume")
	if err != nil {
		return bars.Bar{}, err
	}
	quoteVolume, err := decodeDecimal(row[7], symbol, "quote_volume")
	if err != nil {
		return bars.Bar{}, err
	}
	var numTrades uint64
	if err := json.Unmarshal(row[8], &numTrades); err != nil {
		return bars.Bar{}, &marketerrs.MalformedInputError{Source: symbol, Detail: "number_of_trades", Cause: err}
	}
	takerBase, err := decodeDecimal(row[9], symbol, "taker_buy_base")
	if err != nil {
		return bars.Bar{}, err
	}
	takerQuote, err := decodeDecimal(row[10], symbol, "taker_buy_quote")
	if err != nil {
		return bars.Bar{}, err
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
		DataSource:     bars.SourceREST,
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

func decodeDecimal(raw json.RawMessage, symbol, field string) (decimal.Decimal, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		// Some deployments return numeric JSON tokens instead of strings;
		// fall back to the raw token text rather than losing precision
		// through a float64 intermediate.
		s = string(raw)
	}
	parsed, err := decimalx.Parse(s)
	if err != nil {
		return decimal.Decimal{}, &marketerrs.MalformedInputError{Source: symbol, Detail: field, Cause: err}
	}
	return parsed, nil
}

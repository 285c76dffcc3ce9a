package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/klauspost/compress/zip"

	"gaplessohlcv/bars"
	"gaplessohlcv/httpx"
	"gaplessohlcv/marketerrs"
)

// Fetcher implements component C2 against a configured archive root.
type Fetcher struct {
	Client *httpx.Client
	Root   string
}

// New builds a Fetcher.
func New(client *httpx.Client, root string) *Fetcher {
	return &Fetcher{Client: client, Root: root}
}

// FetchMonth implements fetch_archive(symbol, timeframe, instrument_type,
// year, month): downloads the monthly ZIP, falling back to daily
// granularity for that month on a 404. A 404 on an individual daily archive
// marks that day as absent (an empty, error-free result) rather than
// failing the whole month.
func (f *Fetcher) FetchMonth(ctx context.Context, symbol string, tf bars.Timeframe, instrumentType bars.InstrumentType, year, month int) ([]bars.Bar, error) {
	url := MonthlyURL(f.Root, instrumentType, symbol, tf, year, month)
	body, status, err := f.download(ctx, url)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return f.fetchDailyFallback(ctx, symbol, tf, instrumentType, year, month)
	}
	if status >= 400 {
		return nil, httpx.ClassifyStatus(url, status)
	}
	return f.extractAndParse(url, body, symbol, tf, instrumentType)
}

func (f *Fetcher) fetchDailyFallback(ctx context.Context, symbol string, tf bars.Timeframe, instrumentType bars.InstrumentType, year, month int) ([]bars.Bar, error) {
	daysInMonth := daysIn(year, month)
	var out []bars.Bar
	for day := 1; day <= daysInMonth; day++ {
		url := DailyURL(f.Root, instrumentType, symbol, tf, year, month, day)
		body, status, err := f.download(ctx, url)
		if err != nil {
			return nil, err
		}
		if status == http.StatusNotFound {
			continue // day is a gap, left for the gap detector to surface
		}
		if status >= 400 {
			return nil, httpx.ClassifyStatus(url, status)
		}
		dayBars, err := f.extractAndParse(url, body, symbol, tf, instrumentType)
		if err != nil {
			return nil, err
		}
		out = append(out, dayBars...)
	}
	return out, nil
}

func (f *Fetcher) download(ctx context.Context, url string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("archive: build request: %w", err)
	}
	resp, err := f.Client.Do(ctx, req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, resp.StatusCode, nil
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, &marketerrs.ArchiveCorruptError{URL: url, Cause: err}
	}
	return body, resp.StatusCode, nil
}

// extractAndParse opens the ZIP, expects exactly one CSV member, and parses
// it. A corrupt or multi-member archive raises ArchiveCorruptError — no
// partial ingestion.
func (f *Fetcher) extractAndParse(url string, body []byte, symbol string, tf bars.Timeframe, instrumentType bars.InstrumentType) ([]bars.Bar, error) {
	zr, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return nil, &marketerrs.ArchiveCorruptError{URL: url, Cause: err}
	}
	if len(zr.File) != 1 {
		return nil, &marketerrs.ArchiveCorruptError{URL: url, Cause: errors.New("expected exactly one CSV member")}
	}

	member, err := zr.File[0].Open()
	if err != nil {
		return nil, &marketerrs.ArchiveCorruptError{URL: url, Cause: err}
	}
	defer member.Close()

	out, err := ParseCSV(member, symbol, tf, instrumentType, bars.SourceBulk)
	if err != nil {
		var corrupt *marketerrs.MalformedInputError
		if errors.As(err, &corrupt) {
			return nil, &marketerrs.ArchiveCorruptError{URL: url, Cause: err}
		}
		return nil, err
	}
	return out, nil
}

func daysIn(year, month int) int {
	// day 0 of the following month is the last day of this one.
	return dateDaysInMonth(year, month)
}

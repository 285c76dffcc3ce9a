package validate

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"gaplessohlcv/bars"
	"gaplessohlcv/gaps"
)

// Config tunes the coverage layer's tolerance band and the anomaly layer's
// repeat-value threshold (both configurable per spec §4.10).
type Config struct {
	CoverageMinRatio  float64 // default 0.95
	CoverageMaxRatio  float64 // default 1.05
	RepeatWarnFraction float64 // default 0.10
}

// DefaultConfig matches the [95%, 105%] / >10% thresholds spec.md names.
func DefaultConfig() Config {
	return Config{CoverageMinRatio: 0.95, CoverageMaxRatio: 1.05, RepeatWarnFraction: 0.10}
}

// Validator implements component C10 against an in-memory bar table. The
// file-structure layer is expected to have already run through
// archive.ParseCSV (which strips comments and enforces the 11/12-column
// contract) before rows reach here; structural issues surfaced here cover
// what survives that parse: rows with no symbol/timeframe, or whose
// symbol, timeframe or instrument type differ from the run's.
type Validator struct {
	cfg Config
}

// New builds a Validator with cfg.
func New(cfg Config) *Validator { return &Validator{cfg: cfg} }

// Run applies all five layers to rows and returns the accumulated Report.
// expectedGrid is the full timeframe-aligned grid for the range being
// validated (from gaps.Generate), used by the temporal and coverage
// layers.
func (v *Validator) Run(symbol string, tf bars.Timeframe, instrumentType bars.InstrumentType, rows []bars.Bar, expectedGrid []int64) Report {
	var issues []Issue

	issues = append(issues, v.structureLayer(symbol, tf, instrumentType, rows)...)
	issues = append(issues, v.temporalLayer(symbol, tf, instrumentType, rows, expectedGrid)...)
	issues = append(issues, v.ohlcLayer(rows)...)
	issues = append(issues, v.coverageLayer(rows, expectedGrid)...)
	issues = append(issues, v.anomalyLayer(rows)...)

	return Report{
		RunID:          uuid.NewString(),
		Symbol:         symbol,
		Timeframe:      string(tf),
		InstrumentType: string(instrumentType),
		TotalBars:      len(rows),
		ExpectedBars:   len(expectedGrid),
		Issues:         issues,
		Pass:           !hasLayer1to3Errors(issues),
	}
}

// structureLayer checks the in-memory contract: every row must share the
// same symbol/timeframe/instrument_type it claims to belong to (the CSV
// structural contract itself — column set/order/dtype — is enforced
// upstream by archive.ParseCSV, which already rejects the wrong column
// count before a Bar ever exists).
func (v *Validator) structureLayer(symbol string, tf bars.Timeframe, instrumentType bars.InstrumentType, rows []bars.Bar) []Issue {
	var issues []Issue
	for i, b := range rows {
		if b.Symbol == "" || b.Timeframe == "" {
			issues = append(issues, Issue{Layer: "structure", Severity: SeverityError,
				Detail: fmt.Sprintf("row %d missing symbol/timeframe", i)})
			continue
		}
		if b.Symbol != symbol || b.Timeframe != tf || b.InstrumentType != instrumentType {
			issues = append(issues, Issue{Layer: "structure", Severity: SeverityError,
				Detail: fmt.Sprintf("row %d belongs to %s/%s/%s, not %s/%s/%s", i, b.Symbol, b.Timeframe, b.InstrumentType, symbol, tf, instrumentType)})
		}
	}
	return issues
}

func (v *Validator) temporalLayer(symbol string, tf bars.Timeframe, instrumentType bars.InstrumentType, rows []bars.Bar, expectedGrid []int64) []Issue {
	var issues []Issue
	seen := make(map[int64]bool, len(rows))
	prev := int64(-1)
	for _, b := range rows {
		if b.TimestampUS <= prev {
			issues = append(issues, Issue{Layer: "temporal", Severity: SeverityError,
				Detail: fmt.Sprintf("timestamp %d not strictly increasing after %d", b.TimestampUS, prev)})
		}
		if seen[b.TimestampUS] {
			issues = append(issues, Issue{Layer: "temporal", Severity: SeverityError,
				Detail: fmt.Sprintf("duplicate timestamp %d", b.TimestampUS)})
		}
		seen[b.TimestampUS] = true
		prev = b.TimestampUS
	}

	if len(expectedGrid) > 0 {
		actual := make(gaps.PresenceSet, len(rows))
		for _, b := range rows {
			actual[b.TimestampUS] = true
		}
		start, end := expectedGrid[0], expectedGrid[len(expectedGrid)-1]+1
		found, err := gaps.Detect(symbol, tf, instrumentType, start, end, actual)
		if err == nil && len(found) > 0 {
			issues = append(issues, Issue{Layer: "temporal", Severity: SeverityError,
				Detail: fmt.Sprintf("%d gap(s) against expected grid", len(found))})
		}
	}
	return issues
}

func (v *Validator) ohlcLayer(rows []bars.Bar) []Issue {
	var issues []Issue
	for _, b := range rows {
		if violation := b.CheckOHLC(); violation != "" {
			issues = append(issues, Issue{Layer: "ohlc", Severity: SeverityError, Detail: violation})
		}
	}
	return issues
}

func (v *Validator) coverageLayer(rows []bars.Bar, expectedGrid []int64) []Issue {
	if len(expectedGrid) == 0 {
		return nil
	}
	ratio := float64(len(rows)) / float64(len(expectedGrid))
	if ratio < v.cfg.CoverageMinRatio || ratio > v.cfg.CoverageMaxRatio {
		return []Issue{{Layer: "coverage", Severity: SeverityWarning,
			Detail: fmt.Sprintf("observed %d of %d expected bars (%.1f%%)", len(rows), len(expectedGrid), ratio*100)}}
	}
	return nil
}

// anomalyLayer flags IQR outliers on close price and volume, and repeated
// values spanning more than RepeatWarnFraction of the series.
func (v *Validator) anomalyLayer(rows []bars.Bar) []Issue {
	if len(rows) < 4 {
		return nil
	}
	var issues []Issue

	closes := make([]float64, len(rows))
	volumes := make([]float64, len(rows))
	for i, b := range rows {
		closes[i], _ = b.Close.Float64()
		volumes[i], _ = b.Volume.Float64()
	}

	if outliers := iqrOutlierCount(closes); outliers > 0 {
		issues = append(issues, Issue{Layer: "anomaly", Severity: SeverityWarning,
			Detail: fmt.Sprintf("%d close-price IQR outlier(s)", outliers)})
	}
	if outliers := iqrOutlierCount(volumes); outliers > 0 {
		issues = append(issues, Issue{Layer: "anomaly", Severity: SeverityWarning,
			Detail: fmt.Sprintf("%d volume IQR outlier(s)", outliers)})
	}

	counts := make(map[string]int)
	for _, b := range rows {
		counts[b.Close.String()]++
	}
	for value, count := range counts {
		if float64(count)/float64(len(rows)) > v.cfg.RepeatWarnFraction {
			issues = append(issues, Issue{Layer: "anomaly", Severity: SeverityWarning,
				Detail: fmt.Sprintf("close price %s repeats across %d/%d bars", value, count, len(rows))})
		}
	}
	return issues
}

func iqrOutlierCount(values []float64) int {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	q1 := percentile(sorted, 0.25)
	q3 := percentile(sorted, 0.75)
	iqr := q3 - q1
	lo := q1 - 1.5*iqr
	hi := q3 + 1.5*iqr
	count := 0
	for _, v := range values {
		if v < lo || v > hi {
			count++
		}
	}
	return count
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := p * float64(len(sorted)-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= len(sorted) {
		return sorted[lo]
	}
	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

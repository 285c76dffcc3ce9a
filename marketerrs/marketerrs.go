// Package marketerrs defines the discriminated error kinds the ingestion
// pipeline surfaces. Each kind is its own type so callers can distinguish
// them with errors.As instead of string matching, and each wraps an
// underlying cause where one exists.
package marketerrs

import "fmt"

// ConfigError signals missing or invalid configuration. Always fatal at
// startup.
type ConfigError struct {
	Field string
	Cause error
}

func (e *ConfigError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("config: %s: %v", e.Field, e.Cause)
	}
	return fmt.Sprintf("config: %s", e.Field)
}

func (e *ConfigError) Unwrap() error { return e.Cause }

// SchemaMismatchError signals the live database schema diverges from the
// expected contract. Fatal at startup, never recovered.
type SchemaMismatchError struct {
	Table string
	Diffs []string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("schema mismatch on %s: %v", e.Table, e.Diffs)
}

// MalformedInputError signals a parse error in a CSV or JSON row. Aborts the
// batch containing it; no partial insert.
type MalformedInputError struct {
	Source string
	Detail string
	Cause  error
}

func (e *MalformedInputError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("malformed input from %s: %s: %v", e.Source, e.Detail, e.Cause)
	}
	return fmt.Sprintf("malformed input from %s: %s", e.Source, e.Detail)
}

func (e *MalformedInputError) Unwrap() error { return e.Cause }

// ArchiveCorruptError signals a truncated ZIP or bad checksum. The affected
// month is treated as archive-absent and REST fallback is tried.
type ArchiveCorruptError struct {
	URL   string
	Cause error
}

func (e *ArchiveCorruptError) Error() string {
	return fmt.Sprintf("archive corrupt at %s: %v", e.URL, e.Cause)
}

func (e *ArchiveCorruptError) Unwrap() error { return e.Cause }

// SourceRejectedError signals an upstream 4xx other than 404/418/429.
// Terminal; propagated to the caller, which decides policy.
type SourceRejectedError struct {
	URL        string
	StatusCode int
}

func (e *SourceRejectedError) Error() string {
	return fmt.Sprintf("source rejected request to %s: HTTP %d", e.URL, e.StatusCode)
}

// TransientSourceError signals retries exhausted on 5xx, timeout, 418, or
// 429. Propagated; a gap filler records it as an unfilled gap rather than
// silently succeeding.
type TransientSourceError struct {
	URL      string
	Attempts int
	Cause    error
}

func (e *TransientSourceError) Error() string {
	return fmt.Sprintf("transient failure fetching %s after %d attempts: %v", e.URL, e.Attempts, e.Cause)
}

func (e *TransientSourceError) Unwrap() error { return e.Cause }

// UnfillableGapError signals residual gaps remain after ingestion and
// filling, raised by a query that required a zero-gap result.
type UnfillableGapError struct {
	Symbol    string
	Timeframe string
	Gaps      []GapRef
}

// GapRef is a minimal, package-agnostic description of a residual gap,
// avoiding an import of the gaps package from marketerrs.
type GapRef struct {
	StartMicros int64
	EndMicros   int64
}

func (e *UnfillableGapError) Error() string {
	return fmt.Sprintf("unfillable gaps for %s/%s: %d residual gap(s)", e.Symbol, e.Timeframe, len(e.Gaps))
}

// InvariantViolation signals OHLC or volume inequalities violated after
// ingest. Always a bug; propagates with the offending row's identity.
type InvariantViolation struct {
	Symbol    string
	Timeframe string
	Timestamp int64
	Detail    string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("invariant violation %s/%s@%d: %s", e.Symbol, e.Timeframe, e.Timestamp, e.Detail)
}

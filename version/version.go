// Package version implements component C6: the deterministic, pure content
// hash that drives logical deduplication in the analytic store. Identical
// content across sources or re-ingestions must hash identically so rows
// converge to a single logical identity regardless of which source or how
// many times they were written (spec §4.6).
package version

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"gaplessohlcv/bars"
	"gaplessohlcv/decimalx"
)

// Hash computes the version of b: the first 8 bytes (big-endian) of
// SHA-256 over the canonical string
//
//	{timestamp_us}{open}{high}{low}{close}{volume}{symbol}{timeframe}{instrument_type}
//
// Deliberately excluded from the hash: data_source, funding_rate,
// number_of_trades, taker buy volumes, quote_volume — non-content metadata
// whose divergence must never fork identity (spec §4.6).
func Hash(b bars.Bar) uint64 {
	canonical := CanonicalString(b)
	sum := sha256.Sum256([]byte(canonical))
	return binary.BigEndian.Uint64(sum[:8])
}

// CanonicalString builds the exact string Hash feeds to SHA-256. Exported so
// the hash-stability test vector can assert on the intermediate string, not
// just the final integer, pinning the canonical-formatting open question
// from spec §9.
func CanonicalString(b bars.Bar) string {
	return fmt.Sprintf(
		"%d%s%s%s%s%s%s%s%s",
		b.TimestampUS,
		decimalx.Canonical(b.Open),
		decimalx.Canonical(b.High),
		decimalx.Canonical(b.Low),
		decimalx.Canonical(b.Close),
		decimalx.Canonical(b.Volume),
		b.Symbol,
		b.Timeframe,
		b.InstrumentType,
	)
}

// Apply computes and sets b.Version, returning the updated bar.
func Apply(b bars.Bar) bars.Bar {
	b.Version = Hash(b)
	return b
}

package bars

import "gaplessohlcv/marketerrs"

// precisionThreshold is the magnitude boundary C1 uses to distinguish
// microsecond from millisecond timestamps: the upstream provider switched
// spot data to microsecond precision at a known date while leaving futures
// in milliseconds, so raw values must be classified by magnitude rather than
// by instrument type.
const precisionThreshold = 1_000_000_000_000_000 // 10^15

// DefaultEpochFloorMicros is 2010-01-01T00:00:00Z in microseconds. Any
// normalized value earlier than this is almost certainly a parse error
// rather than real market data, since no supported symbol traded before
// then.
const DefaultEpochFloorMicros int64 = 1262304000_000_000

// NormalizeTimestamp detects the precision of raw by magnitude and returns
// the equivalent microsecond-precision instant. Values greater than 10^15
// are already microseconds and pass through unchanged; smaller values are
// assumed to be milliseconds and are scaled by 1000. Values that normalize
// below floorMicros fail with MalformedInputError.
func NormalizeTimestamp(raw int64, floorMicros int64) (int64, error) {
	var micros int64
	if raw > precisionThreshold {
		micros = raw
	} else {
		micros = raw * 1000
	}
	if micros < floorMicros {
		return 0, &marketerrs.MalformedInputError{
			Source: "timestamp",
			Detail: "value normalizes below the configured epoch floor",
		}
	}
	return micros, nil
}

// Normalize is NormalizeTimestamp using DefaultEpochFloorMicros.
func Normalize(raw int64) (int64, error) {
	return NormalizeTimestamp(raw, DefaultEpochFloorMicros)
}

package gaps

import (
	"fmt"
	"time"

	"gaplessohlcv/bars"
)

// AlignUp rounds start up to the next grid point for tf. A start already on
// the grid is returned unchanged (spec §4.4: "start not aligned to the grid
// is rounded up to the next grid point").
func AlignUp(startUS int64, tf bars.Timeframe) (int64, error) {
	if tf.IsCalendarMonth() {
		return alignUpMonth(startUS), nil
	}
	d, err := tf.DurationMicros()
	if err != nil {
		return 0, err
	}
	rem := startUS % d
	if rem == 0 {
		return startUS, nil
	}
	return startUS + (d - rem), nil
}

func alignUpMonth(startUS int64) int64 {
	t := time.UnixMicro(startUS).UTC()
	monthStart := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	if monthStart.UnixMicro() == startUS {
		return startUS
	}
	return nextMonth(monthStart).UnixMicro()
}

func nextMonth(t time.Time) time.Time {
	// time.Date normalizes an out-of-range month (e.g. month 13) into the
	// next year, which is exactly the calendar-boundary behavior the 1mo
	// grid needs at both the February and year-boundary edges.
	return time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, time.UTC)
}

// Generate enumerates every grid point in [startUS, endUS) for tf, aligning
// startUS up first. end is exclusive. For TF1mo the grid follows calendar
// months; for every other timeframe it follows a fixed-duration stride from
// the Unix epoch.
func Generate(startUS, endUS int64, tf bars.Timeframe) ([]int64, error) {
	if endUS <= startUS {
		return nil, nil
	}
	aligned, err := AlignUp(startUS, tf)
	if err != nil {
		return nil, err
	}

	var points []int64
	if tf.IsCalendarMonth() {
		cur := time.UnixMicro(aligned).UTC()
		for {
			us := cur.UnixMicro()
			if us >= endUS {
				break
			}
			points = append(points, us)
			cur = nextMonth(cur)
		}
		return points, nil
	}

	d, err := tf.DurationMicros()
	if err != nil {
		return nil, err
	}
	for t := aligned; t < endUS; t += d {
		points = append(points, t)
	}
	return points, nil
}

// NextGridPoint returns the grid point immediately after t for tf.
func NextGridPoint(t int64, tf bars.Timeframe) (int64, error) {
	if tf.IsCalendarMonth() {
		return nextMonth(time.UnixMicro(t).UTC()).UnixMicro(), nil
	}
	d, err := tf.DurationMicros()
	if err != nil {
		return 0, err
	}
	return t + d, nil
}

// CloseTimeUS returns timestamp + timeframe - 1µs, the close_time invariant
// from spec §3. For TF1mo the timeframe length is the distance to the first
// microsecond of the following calendar month.
func CloseTimeUS(timestampUS int64, tf bars.Timeframe) (int64, error) {
	next, err := NextGridPoint(timestampUS, tf)
	if err != nil {
		return 0, fmt.Errorf("gaps: close time for %s: %w", tf, err)
	}
	return next - 1, nil
}

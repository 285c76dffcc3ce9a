// Package gaps implements component C4 (gap detection against the
// timeframe-aligned grid) and component C5 (gap filling via a bounded
// worker pool over the REST fetcher).
package gaps

import (
	"gaplessohlcv/bars"
	"gaplessohlcv/marketerrs"
)

// Gap is a half-open interval [StartUS, EndUS) aligned to the timeframe
// grid, containing one or more missing bar identities. Gaps are derived,
// never stored.
type Gap struct {
	Symbol         string
	Timeframe      bars.Timeframe
	InstrumentType bars.InstrumentType
	StartUS        int64 // inclusive
	EndUS          int64 // exclusive
}

// ErrRef converts g to the minimal reference shape marketerrs uses, so
// marketerrs.UnfillableGapError doesn't need to import this package.
func (g Gap) ErrRef() marketerrs.GapRef {
	return marketerrs.GapRef{StartMicros: g.StartUS, EndMicros: g.EndUS}
}

// ErrRefs maps a slice of Gaps to their marketerrs.GapRef equivalents.
func ErrRefs(gs []Gap) []marketerrs.GapRef {
	refs := make([]marketerrs.GapRef, len(gs))
	for i, g := range gs {
		refs[i] = g.ErrRef()
	}
	return refs
}

// PresenceSet is the set of grid timestamps (microseconds since epoch)
// already present for a given (symbol, timeframe, instrument_type) within
// the range a Detect call is asked about. Detect takes this as a plain map
// rather than a store interface so this package never needs to import the
// storage layer.
type PresenceSet map[int64]bool

// Detect computes the maximal contiguous runs of grid points in
// [startUS, endUS) that are absent from actual, per spec §4.4: the expected
// grid is G = {start + k*Δ}, the gaps are the maximal contiguous runs of
// G \ Actual. start is rounded up to the next grid point; end is exclusive.
// A completely empty actual set collapses to a single gap spanning the
// whole aligned range, which falls out of the maximal-run logic below
// without any special case.
func Detect(symbol string, tf bars.Timeframe, instrumentType bars.InstrumentType, startUS, endUS int64, actual PresenceSet) ([]Gap, error) {
	grid, err := Generate(startUS, endUS, tf)
	if err != nil {
		return nil, err
	}
	if len(grid) == 0 {
		return nil, nil
	}

	var out []Gap
	runStart := int64(-1)
	var runLast int64
	flush := func() error {
		if runStart == -1 {
			return nil
		}
		end, err := NextGridPoint(runLast, tf)
		if err != nil {
			return err
		}
		out = append(out, Gap{
			Symbol:         symbol,
			Timeframe:      tf,
			InstrumentType: instrumentType,
			StartUS:        runStart,
			EndUS:          end,
		})
		runStart = -1
		return nil
	}

	for _, t := range grid {
		if actual[t] {
			if err := flush(); err != nil {
				return nil, err
			}
			continue
		}
		if runStart == -1 {
			runStart = t
		}
		runLast = t
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return out, nil
}

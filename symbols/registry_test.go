package symbols

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"gaplessohlcv/bars"
	"gaplessohlcv/marketerrs"
)

func TestRegistry_EnsureKnownSymbol(t *testing.T) {
	r := New(StaticSource{"BTCUSDT", "ETHUSDT"})
	require.NoError(t, r.Ensure(context.Background(), "BTCUSDT", bars.InstrumentSpot))
	require.NoError(t, r.Ensure(context.Background(), "BTCUSDT", bars.InstrumentFuturesPerp))
}

func TestRegistry_UnknownSymbolFailsBeforeIO(t *testing.T) {
	r := New(StaticSource{"BTCUSDT"})
	err := r.Ensure(context.Background(), "DOGEUSDT", bars.InstrumentSpot)
	require.Error(t, err)
	var malformed *marketerrs.MalformedInputError
	require.True(t, errors.As(err, &malformed))
}

type countingSource struct {
	calls int
	list  []string
}

func (c *countingSource) ListSymbols(_ context.Context) ([]string, error) {
	c.calls++
	return c.list, nil
}

func TestRegistry_LoadsSourceOnlyOnce(t *testing.T) {
	src := &countingSource{list: []string{"BTCUSDT"}}
	r := New(src)

	require.NoError(t, r.Ensure(context.Background(), "BTCUSDT", bars.InstrumentSpot))
	require.NoError(t, r.Ensure(context.Background(), "BTCUSDT", bars.InstrumentSpot))
	_, _ = r.All(context.Background())

	require.Equal(t, 1, src.calls)
}

// TestRegistry_MultiSymbolIsolation exercises invariant 8's registry half:
// validating A never implicitly validates or pollutes B's state.
func TestRegistry_MultiSymbolIsolation(t *testing.T) {
	r := New(StaticSource{"BTCUSDT"})
	require.NoError(t, r.Ensure(context.Background(), "BTCUSDT", bars.InstrumentSpot))
	require.Error(t, r.Ensure(context.Background(), "ETHUSDT", bars.InstrumentSpot))
}

package version

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"gaplessohlcv/bars"
)

func sampleBar() bars.Bar {
	return bars.Bar{
		TimestampUS:    1_704_067_200_000_000,
		Symbol:         "BTCUSDT",
		Timeframe:      bars.TF1h,
		InstrumentType: bars.InstrumentSpot,
		Open:           decimal.RequireFromString("42000.10"),
		High:           decimal.RequireFromString("42100.00"),
		Low:            decimal.RequireFromString("41950.50"),
		Close:          decimal.RequireFromString("42050.25"),
		Volume:         decimal.RequireFromString("123.456789"),
	}
}

// TestHash_StabilityVector locks the canonical string format: any change to
// decimalx.Canonical or to the field order in CanonicalString would flip
// this test, which is the point — it is the hash-stability test vector
// required by spec §9 open question (i).
func TestHash_StabilityVector(t *testing.T) {
	b := sampleBar()
	const wantCanonical = "170406720000000042000.1042100.0041950.5042050.25123.456789BTCUSDT1hspot"
	require.Equal(t, wantCanonical, CanonicalString(b))
	require.NotZero(t, Hash(b))
}

// TestHash_Deterministic asserts invariant 1: identical bars hash identically
// across repeated computation (simulating "two processes").
func TestHash_Deterministic(t *testing.T) {
	b := sampleBar()
	h1 := Hash(b)
	h2 := Hash(b)
	require.Equal(t, h1, h2)
}

// TestHash_ExcludesNonContentFields asserts that data_source, funding_rate,
// number_of_trades, and taker/quote volumes never affect the hash, so
// source-metadata divergence cannot fork identity.
func TestHash_ExcludesNonContentFields(t *testing.T) {
	a := sampleBar()
	a.DataSource = bars.SourceBulk
	a.NumberOfTrades = 10
	a.QuoteVolume = decimal.RequireFromString("999")
	a.TakerBuyBase = decimal.RequireFromString("1")
	a.TakerBuyQuote = decimal.RequireFromString("2")

	b := sampleBar()
	b.DataSource = bars.SourceREST
	b.NumberOfTrades = 999999
	b.QuoteVolume = decimal.RequireFromString("0")
	fr := decimal.RequireFromString("0.0001")
	b.FundingRate = &fr

	require.Equal(t, Hash(a), Hash(b))
}

// TestHash_ContentChangeForksIdentity is the contrapositive sanity check:
// a genuine content change must change the hash.
func TestHash_ContentChangeForksIdentity(t *testing.T) {
	a := sampleBar()
	b := sampleBar()
	b.Close = decimal.RequireFromString("42050.26")
	require.NotEqual(t, Hash(a), Hash(b))
}

package bars

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// CheckOHLC verifies the §3 invariants for a single bar:
// high >= max(open,close) >= min(open,close) >= low > 0, non-negative
// volumes, and taker-buy volumes bounded by their totals. It returns a
// human-readable description of the first violation found, or "" if the bar
// is sound.
func (b Bar) CheckOHLC() string {
	hi, lo := decimal.Max(b.Open, b.Close), decimal.Min(b.Open, b.Close)
	if !b.High.GreaterThanOrEqual(hi) {
		return fmt.Sprintf("high %s < max(open,close) %s", b.High, hi)
	}
	if !hi.GreaterThanOrEqual(lo) {
		return fmt.Sprintf("max(open,close) %s < min(open,close) %s", hi, lo)
	}
	if !lo.GreaterThanOrEqual(b.Low) {
		return fmt.Sprintf("min(open,close) %s < low %s", lo, b.Low)
	}
	if !b.Low.GreaterThan(decimal.Zero) {
		return fmt.Sprintf("low %s is not positive", b.Low)
	}
	if b.Volume.LessThan(decimal.Zero) {
		return fmt.Sprintf("negative volume %s", b.Volume)
	}
	if b.QuoteVolume.LessThan(decimal.Zero) {
		return fmt.Sprintf("negative quote volume %s", b.QuoteVolume)
	}
	if b.TakerBuyBase.LessThan(decimal.Zero) {
		return fmt.Sprintf("negative taker_buy_base %s", b.TakerBuyBase)
	}
	if b.TakerBuyQuote.LessThan(decimal.Zero) {
		return fmt.Sprintf("negative taker_buy_quote %s", b.TakerBuyQuote)
	}
	if b.TakerBuyBase.GreaterThan(b.Volume) {
		return fmt.Sprintf("taker_buy_base %s > volume %s", b.TakerBuyBase, b.Volume)
	}
	if b.TakerBuyQuote.GreaterThan(b.QuoteVolume) {
		return fmt.Sprintf("taker_buy_quote %s > quote_volume %s", b.TakerBuyQuote, b.QuoteVolume)
	}
	if b.FundingRate != nil && b.InstrumentType != InstrumentFuturesPerp {
		return "funding_rate present on a non-futures-perp bar"
	}
	return ""
}

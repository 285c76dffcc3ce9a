package fsio

import (
	"gaplessohlcv/bars"
	"gaplessohlcv/marketerrs"
)

// ParquetEncoder is the documented extension point for §6.5's optional
// columnar output. No repo in the retrieved corpus imports a Parquet
// library, so rather than fabricate a dependency this encoder is left
// unimplemented: selecting output_format=parquet fails fast at the
// config/output boundary with *marketerrs.ConfigError instead of silently
// falling back to CSV.
type ParquetEncoder struct{}

// Encode implements Encoder.
func (ParquetEncoder) Encode(_ string, _ bars.Timeframe, _ bars.InstrumentType, _ []bars.Bar) ([]byte, error) {
	return nil, &marketerrs.ConfigError{Field: "output_format"}
}

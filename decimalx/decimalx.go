// Package decimalx pins the canonical lossless textual representation of
// decimal values used both when writing CSV output and when building the
// version hash's canonical string (see version.Hash). Keeping one
// implementation for both call sites is what makes the hash-stability test
// vector in version/version_test.go meaningful: the same formatting function
// backs both the read and write paths.
package decimalx

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Parse parses a raw upstream numeric token straight into a decimal.Decimal
// without ever routing through float64, so the result is exact.
func Parse(raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("decimalx: parse %q: %w", raw, err)
	}
	return d, nil
}

// Canonical renders d in the fixed, lossless textual form used by the
// version hash: no locale, no scientific notation, no trailing-zero
// stripping beyond what the decimal's own scale already represents.
func Canonical(d decimal.Decimal) string {
	// String() trims trailing fractional zeros, so a value with a negative
	// exponent is rendered with exactly that many fractional digits instead.
	if exp := d.Exponent(); exp < 0 {
		return d.StringFixed(-exp)
	}
	return d.String()
}

// CanonicalInt renders a non-negative integer field (e.g. number_of_trades)
// in the same fixed textual form.
func CanonicalInt(v uint64) string {
	return fmt.Sprintf("%d", v)
}

// Package money provides fixed-point currency helpers. All amounts carry
// exactly two fractional digits; arithmetic never passes through floats.
package money

import (
	"github.com/shopspring/decimal"

	appErrors "github.com/rmbriones/shs-admission-api/pkg/errors"
)

// Zero is the canonical zero amount.
func Zero() decimal.Decimal {
	return decimal.Zero
}

// Round normalises an amount to two fractional digits (bankers-free,
// half-up, matching how receipts are printed).
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Parse converts a decimal string into a two-digit amount. Amounts with more
// than two fractional digits are rejected rather than silently rounded.
func Parse(raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid amount")
	}
	if d.Exponent() < -2 {
		return decimal.Zero, appErrors.Clone(appErrors.ErrValidation, "amount precision exceeds two fractional digits")
	}
	return Round(d), nil
}

// ParseOrDefault parses raw, falling back to def when raw is empty or invalid.
func ParseOrDefault(raw string, def decimal.Decimal) decimal.Decimal {
	if raw == "" {
		return def
	}
	d, err := Parse(raw)
	if err != nil {
		return def
	}
	return d
}

// ClampZero floors negative amounts at zero.
func ClampZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

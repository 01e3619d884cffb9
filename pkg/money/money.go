// Package money formats decimal amounts for display and provider payloads.
package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Round2 rounds half away from zero to two decimal places.
func Round2(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(2)
}

// String renders the amount with exactly two decimals, e.g. "4294.00".
func String(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}

// ToPaisa converts rupees to the integer paisa unit used by Khalti.
func ToPaisa(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

// FromPaisa converts paisa back to rupees.
func FromPaisa(paisa int64) decimal.Decimal {
	return decimal.NewFromInt(paisa).Div(hundred)
}

// FormatNPR renders "Rs. 1,200.00" style strings for customer emails.
func FormatNPR(amount decimal.Decimal) string {
	fixed := amount.Abs().StringFixed(2)
	whole, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}

	sign := ""
	if amount.IsNegative() {
		sign = "-"
	}
	return sign + "Rs. " + b.String() + "." + frac
}

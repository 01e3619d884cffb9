// Package pricing computes order totals. All arithmetic stays in decimal.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/tinytales/storefront-backend/pkg/money"
)

// TaxRate is the flat Nepal VAT applied to every order.
var TaxRate = decimal.RequireFromString("0.13")

// Line is a priced quantity of one variant.
type Line struct {
	UnitPrice decimal.Decimal
	Quantity  int
}

// Totals is the unrounded result of pricing a set of lines.
type Totals struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

// Calculate sums the lines and applies VAT on the subtotal.
func Calculate(lines []Line) Totals {
	subtotal := decimal.Zero
	for _, line := range lines {
		subtotal = subtotal.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	tax := subtotal.Mul(TaxRate)
	return Totals{Subtotal: subtotal, Tax: tax, Total: subtotal.Add(tax)}
}

// Rounded returns the totals at two decimals. Total is recomputed from the rounded parts so
// that Subtotal + Tax == Total always holds for persisted values.
func (t Totals) Rounded() Totals {
	subtotal := money.Round2(t.Subtotal)
	tax := money.Round2(t.Tax)
	return Totals{Subtotal: subtotal, Tax: tax, Total: subtotal.Add(tax)}
}

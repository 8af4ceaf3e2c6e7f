// Package money holds invoice amount arithmetic and display formatting.
package money

import (
	"github.com/shopspring/decimal"
)

// PDFSymbol prefixes amounts in rendered documents.
const PDFSymbol = "Rs."

// MessageSymbol prefixes amounts in chat messages.
const MessageSymbol = "₹"

// Line is one priced row of an invoice.
type Line struct {
	Quantity int
	Price    float64
}

// Total sums quantity*price over lines. The result is not rounded.
func Total(lines []Line) float64 {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(decimal.NewFromFloat(l.Price).Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	f, _ := sum.Float64()
	return f
}

// Fixed formats an amount with exactly two decimals.
func Fixed(amount float64) string {
	return decimal.NewFromFloat(amount).StringFixed(2)
}

// Format prefixes Fixed(amount) with symbol.
func Format(symbol string, amount float64) string {
	return symbol + Fixed(amount)
}

package core

import "github.com/shopspring/decimal"

// LineAmounts holds the derived money fields of one order line.
type LineAmounts struct {
	Subtotal  decimal.Decimal
	TaxAmount decimal.Decimal
}

// OrderTotals holds the derived money fields of an order header.
type OrderTotals struct {
	Subtotal   decimal.Decimal
	TaxAmount  decimal.Decimal
	GrandTotal decimal.Decimal
}

var oneHundred = decimal.NewFromInt(100)

// ComputeLineAmounts derives subtotal = quantity * unitPrice and
// tax = subtotal * taxRate / 100 for a single line.
func ComputeLineAmounts(quantity, unitPrice, taxRate decimal.Decimal) LineAmounts {
	subtotal := quantity.Mul(unitPrice)
	return LineAmounts{
		Subtotal:  subtotal,
		TaxAmount: subtotal.Mul(taxRate).Div(oneHundred),
	}
}

// SumOrderTotals is the single recalculation contract for order headers:
// subtotal and tax are sums over the lines, grand total adds shipping.
// It runs after every item mutation; headers never carry stale totals.
func SumOrderTotals(lines []LineAmounts, shipping decimal.Decimal) OrderTotals {
	var t OrderTotals
	for _, l := range lines {
		t.Subtotal = t.Subtotal.Add(l.Subtotal)
		t.TaxAmount = t.TaxAmount.Add(l.TaxAmount)
	}
	t.GrandTotal = t.Subtotal.Add(t.TaxAmount).Add(shipping)
	return t
}

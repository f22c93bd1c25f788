package core

import (
	"github.com/shopspring/decimal"
)

// DocumentTotals are the header sums derived from a document's lines.
type DocumentTotals struct {
	Subtotal    decimal.Decimal
	TotalTax    decimal.Decimal
	TotalAmount decimal.Decimal
}

// Scales of the line columns. Totals are computed from values at these scales so that
// a recompute from stored lines reproduces them.
const (
	quantityPlaces = 4
	pricePlaces    = 2
	percentPlaces  = 2
	ratePlaces     = 4
)

// NormalizeLine rounds line inputs to the precision they are stored with.
func NormalizeLine(line *DocumentLine) {
	line.Quantity = line.Quantity.Round(quantityPlaces)
	line.UnitPrice = line.UnitPrice.Round(pricePlaces)
	line.DiscountPercent = line.DiscountPercent.Round(percentPlaces)
	line.TaxRate = line.TaxRate.Round(ratePlaces)
}

// ComputeLine fills the computed fields of line from its quantity, price, discount
// and tax snapshot (TaxRate/TaxComputation). Lines are always taxed exclusively.
func ComputeLine(line *DocumentLine) {
	gross := line.Quantity.Mul(line.UnitPrice)
	if line.DiscountPercent.IsPositive() {
		gross = gross.Sub(gross.Mul(line.DiscountPercent).Div(hundred))
	}
	subtotal := roundMoney(gross)

	var res TaxResult
	if line.TaxComputation == TaxFixed {
		res = splitFixed(subtotal, line.TaxRate, TaxExclusive)
	} else {
		res = splitPercentage(subtotal, line.TaxRate, TaxExclusive)
	}

	line.LineSubtotal = res.Net
	line.LineTax = res.TaxAmount
	line.LineTotal = res.Gross
}

// RecomputeTotals recomputes every line and returns the document sums. It is a pure
// function of the line inputs, so running it twice yields identical figures.
func RecomputeTotals(lines []DocumentLine) DocumentTotals {
	t := DocumentTotals{Subtotal: decimal.Zero, TotalTax: decimal.Zero}
	for i := range lines {
		ComputeLine(&lines[i])
		t.Subtotal = t.Subtotal.Add(lines[i].LineSubtotal)
		t.TotalTax = t.TotalTax.Add(lines[i].LineTax)
	}
	t.TotalAmount = t.Subtotal.Add(t.TotalTax)
	return t
}

// validateLineInput checks caller-supplied numbers before any lookup happens.
func validateLineInput(i int, in LineInput) error {
	if !in.Quantity.Round(quantityPlaces).IsPositive() {
		return ruleViolation("line %d: quantity must be > 0, got %s", i+1, in.Quantity)
	}
	if in.UnitPrice.IsNegative() {
		return ruleViolation("line %d: unit price cannot be negative", i+1)
	}
	if in.DiscountPercent.IsNegative() || in.DiscountPercent.GreaterThan(hundred) {
		return ruleViolation("line %d: discount must be between 0 and 100, got %s", i+1, in.DiscountPercent)
	}
	if in.ProductID == nil && in.UnitPrice.IsZero() && in.Description == "" {
		return ruleViolation("line %d: a line without a product needs a description and unit price", i+1)
	}
	return nil
}

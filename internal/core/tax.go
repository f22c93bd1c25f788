package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// TaxMode says whether a quoted amount already contains its tax.
type TaxMode string

const (
	TaxExclusive TaxMode = "exclusive"
	TaxInclusive TaxMode = "inclusive"
)

// ParseTaxMode accepts "exclusive" or "inclusive" in any case. Empty means exclusive.
func ParseTaxMode(s string) (TaxMode, error) {
	switch TaxMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", TaxExclusive:
		return TaxExclusive, nil
	case TaxInclusive:
		return TaxInclusive, nil
	}
	return "", ruleViolation("unknown tax mode %q (want exclusive or inclusive)", s)
}

type TaxComputation string

const (
	TaxPercentage TaxComputation = "PERCENTAGE"
	TaxFixed      TaxComputation = "FIXED"
)

// Tax is a configured rate. For FIXED taxes Rate is an absolute amount.
type Tax struct {
	ID             int             `json:"id"`
	OrganizationID int             `json:"organization_id"`
	Name           string          `json:"name"`
	Rate           decimal.Decimal `json:"rate"`
	Computation    TaxComputation  `json:"computation"`
}

// TaxResult holds the three figures of a tax computation, each rounded to 2dp.
type TaxResult struct {
	Net       decimal.Decimal `json:"net"`
	TaxAmount decimal.Decimal `json:"tax_amount"`
	Gross     decimal.Decimal `json:"gross"`
}

const moneyPlaces = 2

var hundred = decimal.NewFromInt(100)

// roundMoney rounds half away from zero, which is half-up for the non-negative
// amounts the engine deals with.
func roundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(moneyPlaces)
}

// CalculateTax splits base into net, tax and gross for a percentage rate. A negative
// rate is a business rule violation.
//
// Exclusive: tax = base*rate/100, gross = base+tax.
// Inclusive: tax = base*rate/(100+rate), net = base-tax, gross = base.
func CalculateTax(base, rate decimal.Decimal, mode TaxMode) (TaxResult, error) {
	if rate.IsNegative() {
		return TaxResult{}, ruleViolation("tax rate cannot be negative, got %s", rate)
	}
	return splitPercentage(base, rate, mode), nil
}

// CalculateFixedTax applies a fixed tax amount to base. A negative amount is a business
// rule violation.
func CalculateFixedTax(base, amount decimal.Decimal, mode TaxMode) (TaxResult, error) {
	if amount.IsNegative() {
		return TaxResult{}, ruleViolation("fixed tax amount cannot be negative, got %s", amount)
	}
	return splitFixed(base, amount, mode), nil
}

// splitPercentage expects rate >= 0.
func splitPercentage(base, rate decimal.Decimal, mode TaxMode) TaxResult {
	if rate.IsZero() {
		b := roundMoney(base)
		return TaxResult{Net: b, TaxAmount: decimal.Zero, Gross: b}
	}

	switch mode {
	case TaxInclusive:
		tax := roundMoney(base.Mul(rate).Div(hundred.Add(rate)))
		gross := roundMoney(base)
		return TaxResult{Net: gross.Sub(tax), TaxAmount: tax, Gross: gross}
	default:
		net := roundMoney(base)
		tax := roundMoney(base.Mul(rate).Div(hundred))
		return TaxResult{Net: net, TaxAmount: tax, Gross: net.Add(tax)}
	}
}

func splitFixed(base, amount decimal.Decimal, mode TaxMode) TaxResult {
	b := roundMoney(base)
	tax := roundMoney(amount)
	if mode == TaxInclusive {
		return TaxResult{Net: b.Sub(tax), TaxAmount: tax, Gross: b}
	}
	return TaxResult{Net: b, TaxAmount: tax, Gross: b.Add(tax)}
}

// Apply validates this tax and computes it on base. A nil tax yields zero tax.
func (t *Tax) Apply(base decimal.Decimal, mode TaxMode) (TaxResult, error) {
	if t == nil {
		return splitPercentage(base, decimal.Zero, mode), nil
	}
	if err := t.Validate(); err != nil {
		return TaxResult{}, err
	}
	if t.Computation == TaxFixed {
		return splitFixed(base, t.Rate, mode), nil
	}
	return splitPercentage(base, t.Rate, mode), nil
}

// Validate checks a tax definition before it is stored.
func (t *Tax) Validate() error {
	if t.Rate.IsNegative() {
		return ruleViolation("tax rate cannot be negative, got %s", t.Rate)
	}
	switch t.Computation {
	case TaxPercentage, TaxFixed:
		return nil
	}
	return fmt.Errorf("unknown tax computation %q: %w", t.Computation, ErrBusinessRule)
}

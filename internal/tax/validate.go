package tax

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	tolerance        = decimal.New(1, -2)
	smallVATFloor    = decimal.New(1, -2)
	largeTransaction = decimal.NewFromInt(10000)
)

// ValidationResult reports whether a breakdown reconciles. Warnings never
// affect IsValid.
type ValidationResult struct {
	IsValid  bool     `json:"is_valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// Validate re-derives the VAT and total of b and reports any mismatch against
// the configured jurisdiction. It never fails; a degraded breakdown validates
// like any other.
func (c Config) Validate(b Breakdown) ValidationResult {
	result := ValidationResult{
		IsValid:  true,
		Errors:   []string{},
		Warnings: []string{},
	}

	fail := func(format string, args ...any) {
		result.Errors = append(result.Errors, fmt.Sprintf(format, args...))
		result.IsValid = false
	}

	if !b.VATRate.Equal(c.VATRate) {
		fail("VAT rate should be %s", c.RatePercent())
	}

	if b.Currency != c.Currency {
		fail("Currency should be %s", c.Currency)
	}

	expectedVAT := round2(b.TaxableAmount.Mul(c.VATRate))
	if b.VATAmount.Sub(expectedVAT).Abs().GreaterThan(tolerance) {
		fail("VAT amount mismatch: expected %s, got %s", expectedVAT.StringFixed(2), b.VATAmount.StringFixed(2))
	}

	expectedTotal := b.TaxableAmount.Add(b.VATAmount)
	if b.Total.Sub(expectedTotal).Abs().GreaterThan(tolerance) {
		fail("Total amount mismatch: expected %s, got %s", expectedTotal.StringFixed(2), b.Total.StringFixed(2))
	}

	if b.VATAmount.LessThan(smallVATFloor) {
		result.Warnings = append(result.Warnings, "Very small VAT amount - verify calculation")
	}

	if b.Total.GreaterThan(largeTransaction) {
		result.Warnings = append(result.Warnings, "Large transaction - consider additional compliance checks")
	}

	return result
}

package tax_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/nexustechhub/mdts/internal/tax"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 5, 8, 10, 30, 0, 0, time.UTC)

func newTestCalculator() *tax.Calculator {
	return tax.NewCalculator(tax.UAE(), tax.WithClock(func() time.Time { return fixedNow }))
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	msg := fmt.Sprintf("want %s, got %s", want, got.String())
	if len(msgAndArgs) > 0 {
		msg += ": " + fmt.Sprint(msgAndArgs...)
	}
	assert.True(t, dec(want).Equal(got), msg)
}

func TestCalculate_SingleItemRounding(t *testing.T) {
	calc := newTestCalculator()

	b := calc.Calculate([]tax.LineItem{{ID: "p1", Name: "Charging Port", Price: 1.00, Quantity: 1}}, 0, nil)

	require.False(t, b.Failed())
	assertDecimal(t, "1.00", b.Subtotal)
	assertDecimal(t, "0.05", b.VATAmount)
	assertDecimal(t, "1.05", b.Total)
	assert.Equal(t, "AED", b.Currency)
	assert.Equal(t, tax.CalculationMethodManual, b.CalculationMethod)
}

func TestCalculate_MultiItemWithShipping(t *testing.T) {
	calc := newTestCalculator()

	items := []tax.LineItem{
		{ID: "scr-14p", Name: "iPhone 14 Pro Screen", Category: "repair-parts", Price: 89.99, Quantity: 2},
		{ID: "bat-s23", Name: "Galaxy S23 Battery", Category: "repair-parts", Price: 299.99, Quantity: 1},
	}

	b := calc.Calculate(items, 25.00, &tax.Location{Country: "AE", Emirate: "Dubai", City: "Dubai"})

	require.False(t, b.Failed())
	assertDecimal(t, "479.97", b.Subtotal)
	assertDecimal(t, "25.00", b.ShippingCost)
	assertDecimal(t, "504.97", b.TaxableAmount)
	assertDecimal(t, "25.25", b.VATAmount, "504.97 * 0.05 = 25.2485 rounds to 25.25")
	assertDecimal(t, "530.22", b.Total)
	assertDecimal(t, "0.05", b.VATRate)

	require.Len(t, b.ItemBreakdown, 2)
	first := b.ItemBreakdown[0]
	assert.Equal(t, "scr-14p", first.ID)
	assert.Equal(t, 2, first.Quantity)
	assertDecimal(t, "179.98", first.Subtotal)
	assertDecimal(t, "9.00", first.VATAmount, "179.98 * 0.05 = 8.999")
	assertDecimal(t, "188.98", first.Total)
	assert.Equal(t, tax.TaxCodeTangibleGoods, first.TaxCode)
}

func TestCalculate_EmptyCartIsDegraded(t *testing.T) {
	calc := newTestCalculator()

	tests := []struct {
		name  string
		items []tax.LineItem
	}{
		{name: "nil items", items: nil},
		{name: "empty items", items: []tax.LineItem{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := calc.Calculate(tt.items, 0, nil)

			assert.True(t, b.Failed())
			assert.NotEmpty(t, b.Error)
			assert.True(t, b.Subtotal.IsZero())
			assert.True(t, b.ShippingCost.IsZero())
			assert.True(t, b.TaxableAmount.IsZero())
			assert.True(t, b.VATAmount.IsZero())
			assert.True(t, b.Total.IsZero())
			assert.Equal(t, tax.CalculationMethodManual, b.CalculationMethod)
			assert.Equal(t, "AED", b.Currency)
			assert.Nil(t, b.ItemBreakdown)
			assert.Nil(t, b.Compliance)

			var taxErr *tax.TaxError
			require.ErrorAs(t, b.Err(), &taxErr)
			assert.Equal(t, tax.ErrNoItems, taxErr)
			assert.Equal(t, "invalid", taxErr.ErrorCode())
		})
	}
}

func TestCalculate_EmptyCartStillValidates(t *testing.T) {
	calc := newTestCalculator()

	b := calc.Calculate(nil, 0, nil)
	result := calc.Config().Validate(b)

	assert.True(t, result.IsValid, "zeroed breakdown reconciles with itself")
	assert.Contains(t, result.Warnings, "Very small VAT amount - verify calculation")
}

func TestCalculate_ShippingDefaultsToZero(t *testing.T) {
	calc := newTestCalculator()
	items := []tax.LineItem{{Name: "Speaker", Price: "20", Quantity: "1"}}

	for _, shipping := range []any{nil, "", "abc", -10.0} {
		b := calc.Calculate(items, shipping, nil)
		assert.True(t, b.ShippingCost.IsZero(), "shipping %v", shipping)
		assertDecimal(t, "20", b.TaxableAmount)
		assertDecimal(t, "1", b.VATAmount)
	}
}

func TestCalculate_MalformedLineFieldsDegradeToDefaults(t *testing.T) {
	calc := newTestCalculator()

	items := []tax.LineItem{
		{ID: "a", Name: "Back Glass", Price: "not-a-price", Quantity: 3},
		{ID: "b", Name: "Camera Lens", Price: "12.50", Quantity: "zero"},
		{ID: "c", Name: "Charger", Price: 10.0},
	}

	b := calc.Calculate(items, 0, nil)

	require.False(t, b.Failed())
	assertDecimal(t, "22.50", b.Subtotal, "0*3 + 12.50*1 + 10*1")
	assert.Equal(t, 3, b.ItemBreakdown[0].Quantity)
	assert.True(t, b.ItemBreakdown[0].Price.IsZero())
	assert.Equal(t, 1, b.ItemBreakdown[1].Quantity)
	assert.Equal(t, 1, b.ItemBreakdown[2].Quantity)
}

func TestCalculate_StringsReadLeadingNumbers(t *testing.T) {
	calc := newTestCalculator()

	b := calc.Calculate([]tax.LineItem{{Name: "Screen Protector", Price: "12abc", Quantity: "3abc"}}, "5 AED", nil)

	require.False(t, b.Failed())
	assertDecimal(t, "36.00", b.Subtotal, "12 * 3")
	assertDecimal(t, "5.00", b.ShippingCost)
	assertDecimal(t, "2.05", b.VATAmount, "41 * 0.05")
	assert.Equal(t, 3, b.ItemBreakdown[0].Quantity)
}

func TestCalculate_ItemIDFallsBackToSKU(t *testing.T) {
	calc := newTestCalculator()

	b := calc.Calculate([]tax.LineItem{{SKU: "SKU-9", Name: "Battery", Price: 10}}, 0, nil)

	assert.Equal(t, "SKU-9", b.ItemBreakdown[0].ID)
}

// Item VATs are rounded independently and are allowed to drift from the
// cart VAT by up to 0.01 per item.
func TestCalculate_ItemVATIsNotReconciledWithCartVAT(t *testing.T) {
	calc := newTestCalculator()

	items := []tax.LineItem{
		{Name: "Screw Kit", Price: 0.30, Quantity: 1},
		{Name: "Adhesive", Price: 0.30, Quantity: 1},
		{Name: "Mesh", Price: 0.30, Quantity: 1},
	}

	b := calc.Calculate(items, 0, nil)

	sum := decimal.Zero
	for _, item := range b.ItemBreakdown {
		assertDecimal(t, "0.02", item.VATAmount, "0.30 * 0.05 = 0.015 rounds to 0.02")
		sum = sum.Add(item.VATAmount)
	}

	assertDecimal(t, "0.05", b.VATAmount, "0.90 * 0.05 = 0.045 rounds to 0.05")
	assertDecimal(t, "0.06", sum)
	assert.False(t, sum.Equal(b.VATAmount))

	drift := sum.Sub(b.VATAmount).Abs()
	maxDrift := dec("0.01").Mul(decimal.NewFromInt(int64(len(items))))
	assert.True(t, drift.LessThanOrEqual(maxDrift))
}

func TestCalculate_ShippingIsNotAnItemLine(t *testing.T) {
	calc := newTestCalculator()

	b := calc.Calculate([]tax.LineItem{{Name: "Case", Price: 50}}, 15, nil)

	require.Len(t, b.ItemBreakdown, 1)
	for _, item := range b.ItemBreakdown {
		assert.NotEqual(t, tax.TaxCodeShipping, item.TaxCode)
	}
	assertDecimal(t, "65", b.TaxableAmount)
	assertDecimal(t, "3.25", b.VATAmount)
}

func TestCalculate_CustomerLocation(t *testing.T) {
	calc := newTestCalculator()
	items := []tax.LineItem{{Name: "Screen", Price: 100}}

	tests := []struct {
		name        string
		loc         *tax.Location
		wantCountry string
		wantEmirate string
		wantUAE     bool
	}{
		{name: "nil location defaults to UAE", loc: nil, wantCountry: "AE", wantUAE: true},
		{name: "empty country defaults to UAE", loc: &tax.Location{City: "Sharjah"}, wantCountry: "AE", wantUAE: true},
		{name: "emirate", loc: &tax.Location{Country: "AE", Emirate: "Ras Al Khaimah"}, wantCountry: "AE", wantEmirate: "Ras Al Khaimah", wantUAE: true},
		{name: "state used when emirate missing", loc: &tax.Location{Country: "AE", State: "Abu Dhabi"}, wantCountry: "AE", wantEmirate: "Abu Dhabi", wantUAE: true},
		{name: "foreign customer", loc: &tax.Location{Country: "SA", City: "Riyadh"}, wantCountry: "SA", wantUAE: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := calc.Calculate(items, 0, tt.loc)

			require.NotNil(t, b.CustomerLocation)
			assert.Equal(t, tt.wantCountry, b.CustomerLocation.Country)
			assert.Equal(t, tt.wantEmirate, b.CustomerLocation.Emirate)
			assert.Equal(t, tt.wantUAE, b.CustomerLocation.IsUAE)
		})
	}
}

func TestCalculate_ComplianceFromConfig(t *testing.T) {
	cfg := tax.UAE().WithBusiness(tax.Business{Name: "MDTS", Location: "Dubai, UAE", Phone: "+97140000000", VATRegistered: true})
	calc := tax.NewCalculator(cfg)

	b := calc.Calculate([]tax.LineItem{{Name: "Battery", Price: 10}}, 0, nil)

	require.NotNil(t, b.Compliance)
	assert.Equal(t, "AE", b.Compliance.Country)
	assert.Equal(t, "United Arab Emirates", b.Compliance.Jurisdiction)
	assert.Equal(t, "Federal Tax Authority (FTA)", b.Compliance.TaxAuthority)
	assert.Equal(t, "MDTS", b.Compliance.BusinessName)
	assert.Equal(t, "Dubai, UAE", b.Compliance.BusinessLocation)
	assert.Equal(t, "+97140000000", b.Compliance.BusinessPhone)
	assert.True(t, b.Compliance.VATRegistration)
}

func TestCalculate_Idempotency(t *testing.T) {
	items := []tax.LineItem{
		{ID: "1", Name: "iPhone 13 Screen", Category: "parts", Price: 149.5, Quantity: 2},
		{ID: "2", Name: "Diagnostic Service", Category: "service", Price: 50, Quantity: 1},
	}
	loc := &tax.Location{Country: "AE", Emirate: "Dubai"}

	t.Run("fixed clock gives identical output", func(t *testing.T) {
		calc := newTestCalculator()
		assert.Equal(t, calc.Calculate(items, 10, loc), calc.Calculate(items, 10, loc))
	})

	t.Run("wall clock differs only in timestamp", func(t *testing.T) {
		calc := tax.NewCalculator(tax.UAE())
		first := calc.Calculate(items, 10, loc)
		second := calc.Calculate(items, 10, loc)

		first.Timestamp = time.Time{}
		second.Timestamp = time.Time{}
		assert.Equal(t, first, second)
	})
}

func TestCalculate_Timestamp(t *testing.T) {
	calc := newTestCalculator()

	b := calc.Calculate([]tax.LineItem{{Name: "Case", Price: 1}}, 0, nil)

	assert.Equal(t, fixedNow, b.Timestamp)
}

func TestCalculate_OutputAlwaysValidates(t *testing.T) {
	calc := newTestCalculator()

	carts := [][]tax.LineItem{
		{{Price: 0.01}},
		{{Price: 0.09, Quantity: 7}},
		{{Price: 33.333, Quantity: 3}, {Price: 0.015, Quantity: 11}},
		{{Price: 1999.99, Quantity: 4}, {Price: 2500, Quantity: 2}},
		{{Price: "12.345"}, {Price: 7.77, Quantity: "3"}},
	}

	for i, items := range carts {
		b := calc.Calculate(items, 12.49, nil)
		result := calc.Config().Validate(b)
		assert.True(t, result.IsValid, "cart %d: %v", i, result.Errors)
	}
}

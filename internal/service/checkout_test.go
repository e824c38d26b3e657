package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexustechhub/mdts/internal/billing"
	"github.com/nexustechhub/mdts/internal/domain"
	"github.com/nexustechhub/mdts/internal/tax"
)

func TestCheckoutService_Quote(t *testing.T) {
	svc := NewCheckoutService(testCalculator(), nil, discardLogger())

	q, err := svc.Quote(context.Background(), QuoteParams{Items: screenCart(), ShippingCost: 25.0})
	require.NoError(t, err)

	assert.False(t, q.Breakdown.Failed())
	assert.True(t, q.Breakdown.VATAmount.Equal(decimal.RequireFromString("26.25")))
	assert.True(t, q.Validation.IsValid)
	assert.Equal(t, "AED 500.00", q.Formatted.Subtotal)
	assert.Equal(t, "AED 25.00", q.Formatted.Shipping)
	assert.Equal(t, "AED 26.25", q.Formatted.VAT)
	assert.Equal(t, "AED 551.25", q.Formatted.Total)
}

func TestCheckoutService_Quote_Degraded(t *testing.T) {
	svc := NewCheckoutService(testCalculator(), nil, discardLogger())

	q, err := svc.Quote(context.Background(), QuoteParams{})
	require.NoError(t, err, "degraded quotes are not errors")

	assert.True(t, q.Breakdown.Failed())
	assert.Equal(t, "items array is required", q.Breakdown.Error)
	assert.Equal(t, "AED 0.00", q.Formatted.Total)
}

func TestCheckoutService_Quote_Canceled(t *testing.T) {
	svc := NewCheckoutService(testCalculator(), nil, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Quote(ctx, QuoteParams{Items: screenCart()})
	assert.ErrorIs(t, err, context.Canceled)
}

func validSessionParams() CheckoutSessionParams {
	return CheckoutSessionParams{
		CartID:        "cart_123",
		Items:         screenCart(),
		ShippingCost:  25.0,
		CustomerEmail: "sara@example.ae",
		SuccessURL:    "https://nexustechhub.ae/checkout/success",
		CancelURL:     "https://nexustechhub.ae/cart",
	}
}

func TestCheckoutService_CreateCheckoutSession(t *testing.T) {
	provider := billing.NewMockProvider()
	svc := NewCheckoutService(testCalculator(), provider, discardLogger())

	session, err := svc.CreateCheckoutSession(context.Background(), validSessionParams())
	require.NoError(t, err)

	assert.NotEmpty(t, session.SessionID)
	assert.NotEmpty(t, session.URL)
	assert.True(t, session.Breakdown.Total.Equal(decimal.RequireFromString("551.25")))

	req := provider.LastParams
	require.NotNil(t, req)
	assert.Equal(t, "AED", req.Currency)
	assert.True(t, strings.HasPrefix(req.IdempotencyKey, "cart_123:"), req.IdempotencyKey)
	assert.Equal(t, "cart_123", req.ClientReferenceID)
	assert.Equal(t, "26.25", req.Metadata["vat_amount"])
	assert.Equal(t, "5%", req.Metadata["vat_rate"])
	assert.Equal(t, "551.25", req.Metadata["total"])

	require.Len(t, req.LineItems, 3)

	item := req.LineItems[0]
	assert.Equal(t, "iPhone 13 Screen", item.Name)
	assert.Equal(t, int64(50000), item.UnitAmount)
	assert.Equal(t, int64(1), item.Quantity)
	assert.Equal(t, "2 × AED 250.00", item.Description)
	assert.Equal(t, tax.TaxCodeTangibleGoods, item.TaxCode)
	assert.Equal(t, "scr-13", item.Metadata["sku"])

	shipping := req.LineItems[1]
	assert.Equal(t, int64(2500), shipping.UnitAmount)
	assert.Equal(t, tax.TaxCodeShipping, shipping.TaxCode)

	vat := req.LineItems[2]
	assert.Equal(t, "VAT (5%)", vat.Name)
	assert.Equal(t, int64(2625), vat.UnitAmount)
	assert.Empty(t, vat.TaxCode)

	assert.Equal(t, billing.ToMinorUnits(session.Breakdown.Total), req.AmountTotal())
}

func TestCheckoutLines_ChargesBreakdownTotal(t *testing.T) {
	calc := testCalculator()

	tests := []struct {
		name     string
		items    []tax.LineItem
		shipping any
		want     int64
	}{
		{
			name:     "sub-fils unit price",
			items:    []tax.LineItem{{Name: "Screw", Price: "0.125", Quantity: 100}},
			shipping: 10,
			want:     2363,
		},
		{
			name:     "three decimal price",
			items:    []tax.LineItem{{Name: "Adhesive", Price: "33.333", Quantity: 3}},
			shipping: 10,
			want:     11550,
		},
		{
			name: "line roundings exceed cart rounding",
			items: []tax.LineItem{
				{Name: "Shim", Price: "0.005", Quantity: 1},
				{Name: "Washer", Price: "0.005", Quantity: 1},
			},
			want: 1,
		},
		{
			name: "mixed precision cart",
			items: []tax.LineItem{
				{Name: "Battery", Price: "89.995", Quantity: 3},
				{Name: "Cable", Price: "12.4449", Quantity: 7},
				{Name: "Tool kit", Price: 45, Quantity: 1},
			},
			shipping: "7.555",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := calc.Calculate(tt.items, tt.shipping, nil)
			require.False(t, b.Failed())

			lines := checkoutLines(calc.Config(), b)
			req := billing.CreateCheckoutSessionParams{LineItems: lines}

			assert.Equal(t, billing.ToMinorUnits(b.Total), req.AmountTotal())
			if tt.want != 0 {
				assert.Equal(t, tt.want, req.AmountTotal())
			}
			for _, l := range lines {
				assert.GreaterOrEqual(t, l.UnitAmount, int64(0), l.Name)
				assert.Equal(t, int64(1), l.Quantity, l.Name)
			}
		})
	}
}

func TestCheckoutService_CreateCheckoutSession_IdempotencyFollowsCart(t *testing.T) {
	provider := billing.NewMockProvider()
	svc := NewCheckoutService(testCalculator(), provider, discardLogger())

	first := validSessionParams()
	_, err := svc.CreateCheckoutSession(context.Background(), first)
	require.NoError(t, err)
	firstKey := provider.LastParams.IdempotencyKey

	_, err = svc.CreateCheckoutSession(context.Background(), first)
	require.NoError(t, err)
	assert.Equal(t, firstKey, provider.LastParams.IdempotencyKey, "same cart replays the same session")

	edited := validSessionParams()
	edited.Items = []tax.LineItem{
		{ID: "scr-13", Name: "iPhone 13 Screen", Category: "parts", Price: 250.0, Quantity: 3},
	}
	_, err = svc.CreateCheckoutSession(context.Background(), edited)
	require.NoError(t, err)

	editedKey := provider.LastParams.IdempotencyKey
	assert.NotEqual(t, firstKey, editedKey)
	assert.True(t, strings.HasPrefix(editedKey, "cart_123:"), editedKey)

	noCart := validSessionParams()
	noCart.CartID = ""
	_, err = svc.CreateCheckoutSession(context.Background(), noCart)
	require.NoError(t, err)
	assert.Empty(t, provider.LastParams.IdempotencyKey)
}

func TestCheckoutService_CreateCheckoutSession_NoShipping(t *testing.T) {
	provider := billing.NewMockProvider()
	svc := NewCheckoutService(testCalculator(), provider, discardLogger())

	params := validSessionParams()
	params.ShippingCost = nil
	params.Items = []tax.LineItem{{Name: "Diagnostic", Category: "service", Price: "100", Quantity: 1}}

	_, err := svc.CreateCheckoutSession(context.Background(), params)
	require.NoError(t, err)

	lines := provider.LastParams.LineItems
	require.Len(t, lines, 2)
	assert.Equal(t, tax.TaxCodeServices, lines[0].TaxCode)
	assert.Equal(t, int64(500), lines[1].UnitAmount)
}

func TestCheckoutService_CreateCheckoutSession_Errors(t *testing.T) {
	providerErr := errors.New("stripe: connection reset")

	tests := []struct {
		name         string
		provider     billing.Provider
		mutate       func(*CheckoutSessionParams)
		wantCode     string
		wantMessage  string
		wantProvider bool
	}{
		{
			name:     "no provider configured",
			provider: nil,
			wantCode: domain.EUNAVAILABLE,
		},
		{
			name:     "missing redirect urls",
			provider: billing.NewMockProvider(),
			mutate: func(p *CheckoutSessionParams) {
				p.SuccessURL = ""
				p.CancelURL = ""
			},
			wantCode: domain.EINVALID,
		},
		{
			name:        "empty cart",
			provider:    billing.NewMockProvider(),
			mutate:      func(p *CheckoutSessionParams) { p.Items = nil },
			wantCode:    domain.EINVALID,
			wantMessage: "items array is required",
		},
		{
			name: "provider failure",
			provider: &billing.MockProvider{
				Sessions: map[string]*billing.CheckoutSession{},
				CreateCheckoutSessionFunc: func(context.Context, billing.CreateCheckoutSessionParams) (*billing.CheckoutSession, error) {
					return nil, providerErr
				},
			},
			wantCode:     domain.EPAYMENT,
			wantMessage:  "Payment provider rejected the checkout",
			wantProvider: true,
		},
		{
			name: "below minimum charge",
			provider: &billing.MockProvider{
				Sessions: map[string]*billing.CheckoutSession{},
				CreateCheckoutSessionFunc: func(context.Context, billing.CreateCheckoutSessionParams) (*billing.CheckoutSession, error) {
					return nil, billing.ErrAmountTooSmall
				},
			},
			wantCode:     domain.EINVALID,
			wantMessage:  "Order total is below the minimum card charge",
			wantProvider: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewCheckoutService(testCalculator(), tt.provider, discardLogger())

			params := validSessionParams()
			if tt.mutate != nil {
				tt.mutate(&params)
			}

			_, err := svc.CreateCheckoutSession(context.Background(), params)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, domain.ErrorCode(err))
			if tt.wantMessage != "" {
				assert.Equal(t, tt.wantMessage, domain.ErrorMessage(err))
			}

			if mock, ok := tt.provider.(*billing.MockProvider); ok {
				assert.Equal(t, tt.wantProvider, mock.LastParams != nil)
			}
		})
	}
}

func TestCheckoutService_CreateCheckoutSession_ValidationFields(t *testing.T) {
	svc := NewCheckoutService(testCalculator(), billing.NewMockProvider(), discardLogger())

	params := validSessionParams()
	params.CancelURL = ""

	_, err := svc.CreateCheckoutSession(context.Background(), params)
	require.True(t, domain.IsValidationError(err))
	assert.Equal(t, map[string]string{"cancel_url": "is required"}, domain.GetValidationFields(err))
}

func TestCheckoutService_ProviderErrorUnwraps(t *testing.T) {
	cause := errors.New("stripe: connection reset")
	provider := &billing.MockProvider{
		Sessions: map[string]*billing.CheckoutSession{},
		CreateCheckoutSessionFunc: func(context.Context, billing.CreateCheckoutSessionParams) (*billing.CheckoutSession, error) {
			return nil, cause
		},
	}
	svc := NewCheckoutService(testCalculator(), provider, discardLogger())

	_, err := svc.CreateCheckoutSession(context.Background(), validSessionParams())
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrPaymentProvider)
}

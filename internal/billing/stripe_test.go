package billing

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

type fakeSessionAPI struct {
	params *stripe.CheckoutSessionParams
	err    error
}

func (f *fakeSessionAPI) New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	f.params = params
	if f.err != nil {
		return nil, f.err
	}

	var total int64
	for _, li := range params.LineItems {
		total += *li.PriceData.UnitAmount * *li.Quantity
	}

	return &stripe.CheckoutSession{
		ID:          "cs_test_123",
		URL:         "https://checkout.stripe.com/c/pay/cs_test_123",
		Status:      stripe.CheckoutSessionStatusOpen,
		Currency:    stripe.Currency(*params.LineItems[0].PriceData.Currency),
		AmountTotal: total,
		Metadata:    params.Metadata,
		Created:     1746700200,
	}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() StripeConfig {
	return StripeConfig{APIKey: "sk_test_123", WebhookSecret: "whsec_test"}
}

func sampleParams() CreateCheckoutSessionParams {
	return CreateCheckoutSessionParams{
		Currency: "AED",
		LineItems: []CheckoutLineItem{
			{Name: "iPhone 13 Screen", UnitAmount: 25000, Quantity: 2, TaxCode: "txcd_99999999", Metadata: map[string]string{"sku": "scr-13"}},
			{Name: "Shipping", UnitAmount: 2500, Quantity: 1, TaxCode: "txcd_92010001"},
			{Name: "VAT (5%)", UnitAmount: 2625, Quantity: 1},
		},
		SuccessURL:     "https://nexustechhub.ae/checkout/success",
		CancelURL:      "https://nexustechhub.ae/cart",
		CustomerEmail:  "sara@example.ae",
		Metadata:       map[string]string{"vat_amount": "26.25"},
		IdempotencyKey: "cart_123",
	}
}

func TestStripeProvider_CreateCheckoutSession(t *testing.T) {
	api := &fakeSessionAPI{}
	p := newStripeProvider(api, testConfig(), discardLogger())

	session, err := p.CreateCheckoutSession(context.Background(), sampleParams())
	require.NoError(t, err)

	assert.Equal(t, "cs_test_123", session.ID)
	assert.Equal(t, "aed", session.Currency)
	assert.Equal(t, int64(55125), session.AmountTotal)
	assert.Equal(t, time.Unix(1746700200, 0).UTC(), session.CreatedAt)

	require.NotNil(t, api.params)
	assert.Equal(t, string(stripe.CheckoutSessionModePayment), *api.params.Mode)
	assert.Equal(t, "sara@example.ae", *api.params.CustomerEmail)
	assert.Equal(t, "26.25", api.params.Metadata["vat_amount"])
	assert.Equal(t, "26.25", api.params.PaymentIntentData.Metadata["vat_amount"])
	assert.Equal(t, "cart_123", *api.params.IdempotencyKey)

	require.Len(t, api.params.LineItems, 3)
	first := api.params.LineItems[0]
	assert.Equal(t, int64(2), *first.Quantity)
	assert.Equal(t, "aed", *first.PriceData.Currency)
	assert.Equal(t, "txcd_99999999", *first.PriceData.ProductData.TaxCode)
	assert.Equal(t, "scr-13", first.PriceData.ProductData.Metadata["sku"])
	assert.Nil(t, api.params.LineItems[2].PriceData.ProductData.TaxCode)
}

func TestStripeProvider_CreateCheckoutSession_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		params  CreateCheckoutSessionParams
		wantErr error
	}{
		{
			name:    "no line items",
			params:  CreateCheckoutSessionParams{Currency: "AED"},
			wantErr: ErrNoLineItems,
		},
		{
			name: "below minimum charge",
			params: CreateCheckoutSessionParams{
				Currency:  "AED",
				LineItems: []CheckoutLineItem{{Name: "Sticker", UnitAmount: 150, Quantity: 1}},
			},
			wantErr: ErrAmountTooSmall,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeSessionAPI{}
			p := newStripeProvider(api, testConfig(), discardLogger())

			_, err := p.CreateCheckoutSession(context.Background(), tt.params)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, api.params, "stripe should not be called")
		})
	}
}

func TestStripeProvider_CreateCheckoutSession_StripeError(t *testing.T) {
	api := &fakeSessionAPI{err: &stripe.Error{
		Msg:            "Your card was declined.",
		Code:           stripe.ErrorCodeCardDeclined,
		HTTPStatusCode: 402,
		RequestID:      "req_123",
	}}
	p := newStripeProvider(api, testConfig(), discardLogger())

	_, err := p.CreateCheckoutSession(context.Background(), sampleParams())
	require.Error(t, err)

	var se *StripeError
	require.True(t, errors.As(err, &se))
	assert.True(t, se.IsDeclined())
	assert.False(t, se.IsTemporary())
	assert.Equal(t, "req_123", se.RequestID)
}

func TestStripeProvider_VerifyWebhookSignature(t *testing.T) {
	p := newStripeProvider(&fakeSessionAPI{}, testConfig(), discardLogger())
	payload := []byte(`{"id":"evt_123","object":"event","type":"checkout.session.completed","data":{"object":{}}}`)

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    "whsec_test",
		Timestamp: time.Now(),
	})

	t.Run("valid signature", func(t *testing.T) {
		assert.NoError(t, p.VerifyWebhookSignature(payload, signed.Header, "whsec_test"))
	})

	t.Run("falls back to configured secret", func(t *testing.T) {
		assert.NoError(t, p.VerifyWebhookSignature(payload, signed.Header, ""))
	})

	t.Run("wrong secret", func(t *testing.T) {
		err := p.VerifyWebhookSignature(payload, signed.Header, "whsec_other")
		assert.ErrorIs(t, err, ErrInvalidWebhookSignature)
	})

	t.Run("tampered payload", func(t *testing.T) {
		err := p.VerifyWebhookSignature([]byte(`{"id":"evt_999"}`), signed.Header, "whsec_test")
		assert.ErrorIs(t, err, ErrInvalidWebhookSignature)
	})
}

func TestStripeConfig(t *testing.T) {
	tests := []struct {
		name     string
		config   StripeConfig
		wantErr  bool
		testMode bool
	}{
		{"test key", StripeConfig{APIKey: "sk_test_abc", WebhookSecret: "whsec_x"}, false, true},
		{"live key", StripeConfig{APIKey: "sk_live_abc", WebhookSecret: "whsec_x"}, false, false},
		{"restricted test key", StripeConfig{APIKey: "rk_test_abc", WebhookSecret: "whsec_x"}, false, true},
		{"missing key", StripeConfig{WebhookSecret: "whsec_x"}, true, false},
		{"publishable key", StripeConfig{APIKey: "pk_test_abc", WebhookSecret: "whsec_x"}, true, false},
		{"missing webhook secret", StripeConfig{APIKey: "sk_test_abc"}, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.testMode, tt.config.IsTestMode())
		})
	}
}

func TestStripeConfig_Defaults(t *testing.T) {
	c := StripeConfig{}
	assert.Equal(t, int64(3), c.maxRetries())
	assert.Equal(t, 30, c.timeoutSeconds())

	c = StripeConfig{MaxRetries: 5, TimeoutSeconds: 10}
	assert.Equal(t, int64(5), c.maxRetries())
	assert.Equal(t, 10, c.timeoutSeconds())
}

func TestMinorUnits(t *testing.T) {
	tests := []struct {
		amount string
		fils   int64
	}{
		{"0", 0},
		{"1", 100},
		{"26.25", 2625},
		{"551.25", 55125},
		{"0.005", 1},
		{"19.999", 2000},
	}

	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			assert.Equal(t, tt.fils, ToMinorUnits(decimal.RequireFromString(tt.amount)))
		})
	}

	assert.True(t, FromMinorUnits(2625).Equal(decimal.RequireFromString("26.25")))
}

func TestMockProvider(t *testing.T) {
	m := NewMockProvider()

	session, err := m.CreateCheckoutSession(context.Background(), sampleParams())
	require.NoError(t, err)
	assert.Equal(t, int64(55125), session.AmountTotal)
	assert.Contains(t, m.Sessions, session.ID)
	assert.Equal(t, "AED", m.LastParams.Currency)

	_, err = m.CreateCheckoutSession(context.Background(), CreateCheckoutSessionParams{})
	assert.ErrorIs(t, err, ErrNoLineItems)

	assert.NoError(t, m.VerifyWebhookSignature(nil, "", ""))
	m.VerifyWebhookSignatureFunc = func([]byte, string, string) error { return ErrInvalidWebhookSignature }
	assert.ErrorIs(t, m.VerifyWebhookSignature(nil, "", ""), ErrInvalidWebhookSignature)

	assert.Len(t, m.CallLog, 4)
}

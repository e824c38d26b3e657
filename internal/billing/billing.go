package billing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Provider defines the interface for payment processing.
// The storefront only needs hosted checkout and webhook verification;
// VAT is computed locally and sent as its own line.
type Provider interface {
	// CreateCheckoutSession creates a hosted checkout page for a priced cart.
	// Amounts are in the currency's minor unit (fils for AED).
	CreateCheckoutSession(ctx context.Context, params CreateCheckoutSessionParams) (*CheckoutSession, error)

	// VerifyWebhookSignature verifies that a webhook request is authentic.
	VerifyWebhookSignature(payload []byte, signature string, secret string) error
}

// CheckoutLineItem is one priced line on a checkout session.
type CheckoutLineItem struct {
	// Name shown on the hosted checkout page
	Name string

	// Description is optional
	Description string

	// UnitAmount in minor units (fils)
	UnitAmount int64

	// Quantity must be at least 1
	Quantity int64

	// TaxCode is the product tax code, e.g. txcd_99999999
	TaxCode string

	// Metadata attached to the product (sku, category)
	Metadata map[string]string
}

// CreateCheckoutSessionParams contains parameters for creating a checkout session.
type CreateCheckoutSessionParams struct {
	// Currency code (ISO 4217), e.g. "aed"
	Currency string

	LineItems []CheckoutLineItem

	SuccessURL string
	CancelURL  string

	// CustomerEmail prefills the email field on the checkout page
	CustomerEmail string

	// ClientReferenceID links the session back to a local cart or order
	ClientReferenceID string

	// Metadata is copied to the session and its payment intent
	Metadata map[string]string

	// IdempotencyKey prevents duplicate sessions for the same cart contents
	IdempotencyKey string
}

// AmountTotal sums every line in minor units.
func (p CreateCheckoutSessionParams) AmountTotal() int64 {
	var total int64
	for _, li := range p.LineItems {
		total += li.UnitAmount * li.Quantity
	}
	return total
}

// CheckoutSession represents a created hosted checkout session.
type CheckoutSession struct {
	ID          string
	URL         string
	Status      string
	Currency    string
	AmountTotal int64
	Metadata    map[string]string
	CreatedAt   time.Time
}

// ToMinorUnits converts a major-unit amount (dirhams) to minor units (fils),
// rounding half away from zero.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// FromMinorUnits converts fils back to dirhams.
func FromMinorUnits(amount int64) decimal.Decimal {
	return decimal.New(amount, -2)
}

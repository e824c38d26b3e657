package billing

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"
)

type checkoutSessionAPI interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// StripeProvider implements Provider using Stripe Checkout.
type StripeProvider struct {
	sessions checkoutSessionAPI
	config   StripeConfig
	logger   *slog.Logger
}

// NewStripeProvider creates a Stripe billing provider with retrying backends.
func NewStripeProvider(config StripeConfig, logger *slog.Logger) (*StripeProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	httpClient := &http.Client{Timeout: time.Duration(config.timeoutSeconds()) * time.Second}
	backendConfig := &stripe.BackendConfig{
		HTTPClient:        httpClient,
		MaxNetworkRetries: stripe.Int64(config.maxRetries()),
	}
	backends := &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, backendConfig),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, backendConfig),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, backendConfig),
	}

	sc := client.New(config.APIKey, backends)

	return newStripeProvider(sc.CheckoutSessions, config, logger), nil
}

func newStripeProvider(sessions checkoutSessionAPI, config StripeConfig, logger *slog.Logger) *StripeProvider {
	return &StripeProvider{
		sessions: sessions,
		config:   config,
		logger:   logger.With("provider", "stripe"),
	}
}

// CreateCheckoutSession creates a Stripe Checkout session in payment mode.
func (s *StripeProvider) CreateCheckoutSession(ctx context.Context, params CreateCheckoutSessionParams) (*CheckoutSession, error) {
	if len(params.LineItems) == 0 {
		return nil, ErrNoLineItems
	}
	if params.AmountTotal() < MinimumChargeFils {
		return nil, ErrAmountTooSmall
	}

	currency := strings.ToLower(params.Currency)

	sp := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(params.SuccessURL),
		CancelURL:  stripe.String(params.CancelURL),
	}
	sp.Context = ctx

	if params.IdempotencyKey != "" {
		sp.SetIdempotencyKey(params.IdempotencyKey)
	}
	if params.CustomerEmail != "" {
		sp.CustomerEmail = stripe.String(params.CustomerEmail)
	}
	if params.ClientReferenceID != "" {
		sp.ClientReferenceID = stripe.String(params.ClientReferenceID)
	}
	if len(params.Metadata) > 0 {
		sp.Metadata = copyMetadata(params.Metadata)
		sp.PaymentIntentData = &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: copyMetadata(params.Metadata),
		}
	}

	sp.LineItems = make([]*stripe.CheckoutSessionLineItemParams, 0, len(params.LineItems))
	for _, li := range params.LineItems {
		product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(li.Name),
		}
		if li.Description != "" {
			product.Description = stripe.String(li.Description)
		}
		if li.TaxCode != "" {
			product.TaxCode = stripe.String(li.TaxCode)
		}
		if len(li.Metadata) > 0 {
			product.Metadata = copyMetadata(li.Metadata)
		}

		qty := li.Quantity
		if qty < 1 {
			qty = 1
		}

		sp.LineItems = append(sp.LineItems, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(qty),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(currency),
				UnitAmount:  stripe.Int64(li.UnitAmount),
				ProductData: product,
			},
		})
	}

	session, err := s.sessions.New(sp)
	if err != nil {
		s.logger.Error("failed to create checkout session",
			"error", err,
			"amount_total", params.AmountTotal(),
			"currency", currency,
		)
		return nil, fmt.Errorf("stripe: create checkout session: %w", wrapStripeError(err))
	}

	s.logger.Info("checkout session created",
		"session_id", session.ID,
		"amount_total", session.AmountTotal,
		"test_mode", s.config.IsTestMode(),
	)

	return &CheckoutSession{
		ID:          session.ID,
		URL:         session.URL,
		Status:      string(session.Status),
		Currency:    string(session.Currency),
		AmountTotal: session.AmountTotal,
		Metadata:    session.Metadata,
		CreatedAt:   time.Unix(session.Created, 0).UTC(),
	}, nil
}

// VerifyWebhookSignature verifies a Stripe webhook signature.
// An empty secret falls back to the configured one.
func (s *StripeProvider) VerifyWebhookSignature(payload []byte, signature string, secret string) error {
	if secret == "" {
		secret = s.config.WebhookSecret
	}

	_, err := webhook.ConstructEventWithOptions(payload, signature, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidWebhookSignature, err)
	}
	return nil
}

func copyMetadata(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

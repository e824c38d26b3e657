package billing

import (
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v82"
)

var (
	// ErrInvalidAPIKey is returned when Stripe API key is invalid or missing.
	ErrInvalidAPIKey = errors.New("billing: invalid or missing API key")

	// ErrInvalidWebhookSignature is returned when webhook signature verification fails.
	ErrInvalidWebhookSignature = errors.New("billing: invalid webhook signature")

	// ErrAmountTooSmall is returned when the session total is below Stripe's minimum charge.
	ErrAmountTooSmall = errors.New("billing: amount too small (minimum AED 2.00)")

	// ErrNoLineItems is returned when a checkout session has nothing to charge.
	ErrNoLineItems = errors.New("billing: checkout session requires at least one line item")
)

// MinimumChargeFils is Stripe's minimum charge for AED.
const MinimumChargeFils = 200

// StripeError wraps a Stripe API error with additional context.
type StripeError struct {
	Message       string // Human-readable error message
	Code          string // Stripe error code (e.g., "card_declined")
	DeclineCode   string // Card decline reason (if applicable)
	StatusCode    int    // HTTP status code from Stripe
	RequestID     string // Stripe request ID for debugging
	OriginalError error  // Original error from Stripe SDK
}

func (e *StripeError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("stripe: %s (code: %s)", e.Message, e.Code)
	}
	return fmt.Sprintf("stripe: %s", e.Message)
}

func (e *StripeError) Unwrap() error {
	return e.OriginalError
}

// IsDeclined returns true if error is due to card decline.
func (e *StripeError) IsDeclined() bool {
	return e.Code == "card_declined" || e.DeclineCode != ""
}

// IsTemporary returns true if error is likely transient and retryable.
func (e *StripeError) IsTemporary() bool {
	return e.Code == "rate_limit" || e.Code == "api_connection_error" || e.StatusCode >= 500
}

// wrapStripeError converts SDK errors to StripeError; other errors pass through.
func wrapStripeError(err error) error {
	var se *stripe.Error
	if !errors.As(err, &se) {
		return err
	}
	return &StripeError{
		Message:       se.Msg,
		Code:          string(se.Code),
		DeclineCode:   string(se.DeclineCode),
		StatusCode:    se.HTTPStatusCode,
		RequestID:     se.RequestID,
		OriginalError: err,
	}
}

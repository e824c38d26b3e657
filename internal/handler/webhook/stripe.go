package webhook

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v82"

	"github.com/nexustechhub/mdts/internal/billing"
	"github.com/nexustechhub/mdts/internal/domain"
	"github.com/nexustechhub/mdts/internal/events"
	"github.com/nexustechhub/mdts/internal/handler"
	"github.com/nexustechhub/mdts/internal/middleware"
	"github.com/nexustechhub/mdts/internal/telemetry"
)

// StripeHandler handles Stripe webhook events
type StripeHandler struct {
	provider  billing.Provider
	publisher events.Publisher
	config    StripeWebhookConfig
	logger    *slog.Logger
}

// StripeWebhookConfig contains configuration for Stripe webhook handling
type StripeWebhookConfig struct {
	// WebhookSecret is the webhook signing secret from Stripe dashboard
	WebhookSecret string
}

// NewStripeHandler creates a new Stripe webhook handler. A nil publisher
// drops checkout events.
func NewStripeHandler(provider billing.Provider, publisher events.Publisher, config StripeWebhookConfig, logger *slog.Logger) *StripeHandler {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StripeHandler{
		provider:  provider,
		publisher: publisher,
		config:    config,
		logger:    logger.With("handler", "stripe_webhook"),
	}
}

// HandleWebhook verifies and processes a Stripe event.
//
// Stripe CLI testing:
//
//	stripe listen --forward-to localhost:3000/webhooks/stripe
//	stripe trigger checkout.session.completed
func (h *StripeHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	logger := middleware.GetLogger(r.Context(), h.logger)

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		handler.ErrorResponse(w, r, domain.WrapError(err, domain.EINVALID, "webhook.stripe", "Error reading request body"))
		return
	}

	signature := r.Header.Get("Stripe-Signature")
	if signature == "" {
		handler.ErrorResponse(w, r, domain.Invalid("webhook.stripe", "Missing signature"))
		return
	}

	if err := h.provider.VerifyWebhookSignature(payload, signature, h.config.WebhookSecret); err != nil {
		handler.ErrorResponse(w, r, domain.WrapError(err, domain.EINVALID, "webhook.stripe", "Invalid signature"))
		return
	}

	var event stripe.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		handler.ErrorResponse(w, r, domain.WrapError(err, domain.EINVALID, "webhook.stripe", "Invalid JSON"))
		return
	}

	eventType := string(event.Type)
	logger = logger.With("event_id", event.ID, "event_type", eventType)
	logger.Info("stripe webhook received", "livemode", event.Livemode)

	if telemetry.VAT != nil {
		telemetry.VAT.WebhookReceived.WithLabelValues(eventType).Inc()
		defer func() {
			telemetry.VAT.WebhookLatency.WithLabelValues(eventType).Observe(time.Since(startTime).Seconds())
		}()
	}

	switch eventType {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		h.handleCheckoutPaid(r.Context(), logger, event)

	case "checkout.session.async_payment_failed":
		h.handleCheckoutFailed(logger, event)

	case "checkout.session.expired":
		logger.Info("checkout session expired")

	case "payment_intent.payment_failed":
		h.handlePaymentIntentFailed(logger, event)

	default:
		logger.Debug("unhandled event type")
	}

	// Always acknowledge; Stripe retries anything that is not 2xx.
	handler.JSON(w, http.StatusOK, map[string]bool{"received": true})
}

// handleCheckoutPaid publishes a checkout.completed event once the session
// is paid. Sessions paid by delayed methods complete later via
// async_payment_succeeded.
func (h *StripeHandler) handleCheckoutPaid(ctx context.Context, logger *slog.Logger, event stripe.Event) {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		logger.Error("failed to parse checkout session", "error", err)
		telemetry.CaptureErrorFromContext(ctx, err, map[string]interface{}{"event_id": event.ID})
		return
	}

	if session.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		logger.Info("checkout session awaiting payment",
			"session_id", session.ID,
			"payment_status", string(session.PaymentStatus),
		)
		return
	}

	completed := events.CheckoutCompleted{
		SessionID:     session.ID,
		CartID:        session.ClientReferenceID,
		CustomerEmail: session.CustomerEmail,
		AmountTotal:   session.AmountTotal,
		Currency:      string(session.Currency),
		VATAmount:     session.Metadata["vat_amount"],
	}
	if session.PaymentIntent != nil {
		completed.PaymentIntent = session.PaymentIntent.ID
	}
	if completed.CustomerEmail == "" && session.CustomerDetails != nil {
		completed.CustomerEmail = session.CustomerDetails.Email
	}
	if completed.CartID == "" {
		completed.CartID = session.Metadata["cart_id"]
	}

	logger.Info("checkout paid",
		"session_id", completed.SessionID,
		"cart_id", completed.CartID,
		"amount_total", completed.AmountTotal,
		"vat_amount", completed.VATAmount,
	)

	ev, err := events.NewEvent(events.SubjectCheckoutCompleted, time.Unix(event.Created, 0), completed)
	if err == nil {
		err = h.publisher.Publish(ctx, events.SubjectCheckoutCompleted, ev)
	}

	result := "ok"
	if err != nil {
		result = "failed"
		logger.Error("failed to publish checkout event", "session_id", completed.SessionID, "error", err)
		telemetry.CaptureErrorFromContext(ctx, err, map[string]interface{}{
			"session_id": completed.SessionID,
			"cart_id":    completed.CartID,
		})
	}
	if telemetry.VAT != nil {
		telemetry.VAT.EventsPublished.WithLabelValues(events.SubjectCheckoutCompleted, result).Inc()
	}
}

func (h *StripeHandler) handleCheckoutFailed(logger *slog.Logger, event stripe.Event) {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		logger.Error("failed to parse checkout session", "error", err)
		return
	}
	logger.Warn("checkout payment failed",
		"session_id", session.ID,
		"cart_id", session.ClientReferenceID,
	)
}

func (h *StripeHandler) handlePaymentIntentFailed(logger *slog.Logger, event stripe.Event) {
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		logger.Error("failed to parse payment intent", "error", err)
		return
	}

	attrs := []any{"payment_intent", pi.ID, "cart_id", pi.Metadata["cart_id"]}
	if pi.LastPaymentError != nil {
		attrs = append(attrs,
			"code", string(pi.LastPaymentError.Code),
			"decline_code", string(pi.LastPaymentError.DeclineCode),
			"reason", pi.LastPaymentError.Msg,
		)
	}
	logger.Warn("payment failed", attrs...)
}

package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/nexustechhub/mdts/internal/billing"
	"github.com/nexustechhub/mdts/internal/domain"
	"github.com/nexustechhub/mdts/internal/tax"
	"github.com/nexustechhub/mdts/internal/telemetry"
)

// CheckoutService prices carts and hands them to the payment provider.
type CheckoutService interface {
	// Quote calculates and self-validates a VAT breakdown. A degraded
	// breakdown is returned as-is so callers can still render AED 0.00.
	Quote(ctx context.Context, params QuoteParams) (*Quote, error)

	// CreateCheckoutSession quotes the cart and opens a hosted checkout
	// session charging the VAT-inclusive total.
	CreateCheckoutSession(ctx context.Context, params CheckoutSessionParams) (*CheckoutSession, error)
}

// QuoteParams contains the cart to price.
type QuoteParams struct {
	Items        []tax.LineItem
	ShippingCost any
	Location     *tax.Location

	// Source labels metrics, e.g. "api" or "checkout"
	Source string
}

// Quote is a breakdown with its self-check and display strings.
type Quote struct {
	Breakdown  tax.Breakdown        `json:"breakdown"`
	Validation tax.ValidationResult `json:"validation"`
	Formatted  FormattedTotals      `json:"formatted"`
}

// FormattedTotals holds the breakdown amounts rendered for display.
type FormattedTotals struct {
	Subtotal string `json:"subtotal"`
	Shipping string `json:"shipping"`
	VAT      string `json:"vat"`
	Total    string `json:"total"`
}

// CheckoutSessionParams contains parameters for starting a hosted checkout.
type CheckoutSessionParams struct {
	CartID        string
	Items         []tax.LineItem
	ShippingCost  any
	Location      *tax.Location
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
}

// CheckoutSession is the created session plus the breakdown it charges.
type CheckoutSession struct {
	SessionID string        `json:"session_id"`
	URL       string        `json:"url"`
	Breakdown tax.Breakdown `json:"breakdown"`
}

// checkoutService implements CheckoutService.
type checkoutService struct {
	calc     *tax.Calculator
	provider billing.Provider
	logger   *slog.Logger
}

// NewCheckoutService creates a new CheckoutService instance. provider may be
// nil, in which case quoting works and checkout reports unavailable.
func NewCheckoutService(calc *tax.Calculator, provider billing.Provider, logger *slog.Logger) CheckoutService {
	if logger == nil {
		logger = slog.Default()
	}
	return &checkoutService{
		calc:     calc,
		provider: provider,
		logger:   logger.With("service", "checkout"),
	}
}

func (s *checkoutService) Quote(ctx context.Context, params QuoteParams) (*Quote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	source := params.Source
	if source == "" {
		source = "api"
	}

	b := s.calc.Calculate(params.Items, params.ShippingCost, params.Location)
	v := s.calc.Config().Validate(b)

	if b.Failed() {
		s.logger.Warn("VAT calculation degraded", "error", b.Error, "source", source)
	} else if !v.IsValid {
		s.logger.Error("VAT breakdown failed self-check",
			"errors", v.Errors,
			"total", b.Total.String(),
			"source", source,
		)
	}
	if len(v.Warnings) > 0 {
		s.logger.Info("VAT breakdown warnings", "warnings", v.Warnings, "total", b.Total.String())
	}

	recordQuote(source, b, v)

	return &Quote{
		Breakdown:  b,
		Validation: v,
		Formatted: FormattedTotals{
			Subtotal: tax.FormatCurrency(b.Subtotal),
			Shipping: tax.FormatCurrency(b.ShippingCost),
			VAT:      tax.FormatCurrency(b.VATAmount),
			Total:    tax.FormatCurrency(b.Total),
		},
	}, nil
}

func (s *checkoutService) CreateCheckoutSession(ctx context.Context, params CheckoutSessionParams) (*CheckoutSession, error) {
	const op = "checkout.session"

	if s.provider == nil {
		return nil, ErrCheckoutUnavailable
	}

	var verr error
	if params.SuccessURL == "" {
		verr = domain.AddFieldError(verr, "success_url", "is required")
	}
	if params.CancelURL == "" {
		verr = domain.AddFieldError(verr, "cancel_url", "is required")
	}
	if verr != nil {
		return nil, verr
	}

	q, err := s.Quote(ctx, QuoteParams{
		Items:        params.Items,
		ShippingCost: params.ShippingCost,
		Location:     params.Location,
		Source:       "checkout",
	})
	if err != nil {
		return nil, err
	}

	b := q.Breakdown
	if b.Failed() {
		recordCheckout("rejected")
		return nil, domain.WrapError(b.Err(), domain.EINVALID, op, b.Error)
	}
	if !q.Validation.IsValid {
		recordCheckout("rejected")
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidBreakdown)
	}

	cfg := s.calc.Config()
	lines := checkoutLines(cfg, b)
	req := billing.CreateCheckoutSessionParams{
		Currency:          b.Currency,
		LineItems:         lines,
		SuccessURL:        params.SuccessURL,
		CancelURL:         params.CancelURL,
		CustomerEmail:     params.CustomerEmail,
		ClientReferenceID: params.CartID,
		IdempotencyKey:    idempotencyKey(params.CartID, b.Currency, lines),
		Metadata: map[string]string{
			"cart_id":    params.CartID,
			"subtotal":   b.Subtotal.StringFixed(2),
			"shipping":   b.ShippingCost.StringFixed(2),
			"vat_rate":   cfg.RatePercent(),
			"vat_amount": b.VATAmount.StringFixed(2),
			"total":      b.Total.StringFixed(2),
			"currency":   b.Currency,
		},
	}

	start := time.Now()
	session, err := s.provider.CreateCheckoutSession(ctx, req)
	if telemetry.VAT != nil {
		telemetry.VAT.StripeAPILatency.WithLabelValues("checkout_session_create").Observe(time.Since(start).Seconds())
	}
	if err != nil {
		recordCheckout("failed")
		s.logger.Error("failed to create checkout session",
			"error", err,
			"cart_id", params.CartID,
			"total", b.Total.String(),
		)
		if errors.Is(err, billing.ErrAmountTooSmall) {
			return nil, domain.WrapError(err, domain.EINVALID, op, "Order total is below the minimum card charge")
		}
		return nil, fmt.Errorf("%s: %w: %w", op, ErrPaymentProvider, err)
	}

	recordCheckout("created")
	s.logger.Info("checkout session created",
		"session_id", session.ID,
		"cart_id", params.CartID,
		"total", b.Total.String(),
		"vat", b.VATAmount.String(),
	)

	return &CheckoutSession{
		SessionID: session.ID,
		URL:       session.URL,
		Breakdown: b,
	}, nil
}

// checkoutLines converts a breakdown to provider lines in minor units: one
// per item, then shipping, then VAT. VAT is charged as its own line because
// it is computed on the cart, not per item.
//
// Item lines are charged as quantity 1 at the rounded line subtotal so that
// sub-fils unit prices are never rounded before multiplying. Any remaining
// difference against the rounded cart total is folded into the item lines,
// largest first, so the session always charges exactly b.Total.
func checkoutLines(cfg tax.Config, b tax.Breakdown) []billing.CheckoutLineItem {
	lines := make([]billing.CheckoutLineItem, 0, len(b.ItemBreakdown)+2)

	for _, it := range b.ItemBreakdown {
		line := billing.CheckoutLineItem{
			Name:       it.Name,
			UnitAmount: billing.ToMinorUnits(it.Subtotal),
			Quantity:   1,
			TaxCode:    it.TaxCode,
		}
		if it.Quantity > 1 {
			line.Description = fmt.Sprintf("%d × %s", it.Quantity, tax.FormatCurrency(it.Price))
		}
		if it.ID != "" {
			line.Metadata = map[string]string{"sku": it.ID}
		}
		lines = append(lines, line)
	}
	items := len(lines)

	if b.ShippingCost.IsPositive() {
		lines = append(lines, billing.CheckoutLineItem{
			Name:       "Shipping",
			UnitAmount: billing.ToMinorUnits(b.ShippingCost),
			Quantity:   1,
			TaxCode:    cfg.ShippingTaxCode,
		})
	}

	if b.VATAmount.IsPositive() {
		lines = append(lines, billing.CheckoutLineItem{
			Name:        fmt.Sprintf("VAT (%s)", cfg.RatePercent()),
			Description: cfg.TaxAuthority,
			UnitAmount:  billing.ToMinorUnits(b.VATAmount),
			Quantity:    1,
		})
	}

	var charged int64
	for _, l := range lines {
		charged += l.UnitAmount * l.Quantity
	}
	settleRounding(lines[:items], billing.ToMinorUnits(b.Total)-charged)

	return lines
}

// settleRounding adds diff fils to the item lines, largest amount first,
// never taking a line below zero.
func settleRounding(items []billing.CheckoutLineItem, diff int64) {
	if diff == 0 || len(items) == 0 {
		return
	}

	order := make([]int, len(items))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return items[order[a]].UnitAmount > items[order[b]].UnitAmount
	})

	if diff > 0 {
		items[order[0]].UnitAmount += diff
		return
	}
	for _, i := range order {
		take := min(-diff, items[i].UnitAmount)
		items[i].UnitAmount -= take
		diff += take
		if diff == 0 {
			return
		}
	}
}

// idempotencyKey scopes a provider request to the cart and the exact lines it
// charges, so an edited cart opens a new session instead of replaying the
// old one.
func idempotencyKey(cartID, currency string, lines []billing.CheckoutLineItem) string {
	if cartID == "" {
		return ""
	}
	h := sha256.New()
	fmt.Fprintf(h, "%s\n", currency)
	for _, l := range lines {
		fmt.Fprintf(h, "%s|%s|%d|%d|%s|%s\n", l.Name, l.Description, l.UnitAmount, l.Quantity, l.TaxCode, l.Metadata["sku"])
	}
	return cartID + ":" + hex.EncodeToString(h.Sum(nil))[:32]
}

func recordQuote(source string, b tax.Breakdown, v tax.ValidationResult) {
	if telemetry.VAT == nil {
		return
	}

	result := "ok"
	if b.Failed() {
		result = "degraded"
	}
	telemetry.VAT.Calculations.WithLabelValues(source, result).Inc()

	if n := len(v.Errors); n > 0 {
		telemetry.VAT.ValidationFindings.WithLabelValues("error").Add(float64(n))
	}
	if n := len(v.Warnings); n > 0 {
		telemetry.VAT.ValidationFindings.WithLabelValues("warning").Add(float64(n))
	}

	if !b.Failed() {
		total, _ := b.Total.Float64()
		vat, _ := b.VATAmount.Float64()
		telemetry.VAT.CartValue.WithLabelValues(b.Currency).Observe(total)
		telemetry.VAT.VATCalculated.WithLabelValues(b.Currency).Add(vat)
	}
}

func recordCheckout(result string) {
	if telemetry.VAT != nil {
		telemetry.VAT.CheckoutSessions.WithLabelValues(result).Inc()
	}
}

// Package api serves the JSON endpoints used by the storefront: VAT quotes,
// checkout sessions and receipts.
package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/nexustechhub/mdts/internal/domain"
	"github.com/nexustechhub/mdts/internal/handler"
	"github.com/nexustechhub/mdts/internal/postgres"
	"github.com/nexustechhub/mdts/internal/service"
	"github.com/nexustechhub/mdts/internal/tax"
)

const dateLayout = "2006-01-02"

// VATSummarizer totals issued receipts over a period.
type VATSummarizer interface {
	Summarize(ctx context.Context, from, to time.Time) (*postgres.VATSummary, error)
}

// VATHandler serves calculation, validation, classification and
// configuration endpoints.
type VATHandler struct {
	checkout   service.CheckoutService
	cfg        tax.Config
	summarizer VATSummarizer
}

// NewVATHandler creates a VATHandler. summarizer may be nil, in which case
// the summary endpoint reports unavailable.
func NewVATHandler(checkout service.CheckoutService, cfg tax.Config, summarizer VATSummarizer) *VATHandler {
	return &VATHandler{
		checkout:   checkout,
		cfg:        cfg,
		summarizer: summarizer,
	}
}

type cartRequest struct {
	Items        []tax.LineItem `json:"items"`
	ShippingCost any            `json:"shipping_cost"`
	Location     *tax.Location  `json:"location"`
}

type calculateResponse struct {
	tax.Breakdown
	Formatted service.FormattedTotals `json:"formatted"`
}

// Calculate handles POST /api/vat/calculate. A cart that cannot be priced
// still answers 200 with a zeroed breakdown carrying the error.
func (h *VATHandler) Calculate(w http.ResponseWriter, r *http.Request) {
	var req cartRequest
	if err := handler.DecodeJSON(r, "vat.calculate", &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	q, err := h.checkout.Quote(r.Context(), service.QuoteParams{
		Items:        req.Items,
		ShippingCost: req.ShippingCost,
		Location:     req.Location,
		Source:       "api",
	})
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.JSON(w, http.StatusOK, calculateResponse{
		Breakdown: q.Breakdown,
		Formatted: q.Formatted,
	})
}

// Validate handles POST /api/vat/validate, checking a breakdown produced
// elsewhere against the configured jurisdiction.
func (h *VATHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var b tax.Breakdown
	if err := handler.DecodeJSON(r, "vat.validate", &b); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.JSON(w, http.StatusOK, h.cfg.Validate(b))
}

type classifyResponse struct {
	Category string `json:"category"`
	Name     string `json:"name"`
	TaxCode  string `json:"tax_code"`
}

// Classify handles GET /api/vat/classify?category=&name=.
func (h *VATHandler) Classify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	category := strings.TrimSpace(q.Get("category"))
	name := strings.TrimSpace(q.Get("name"))

	handler.JSON(w, http.StatusOK, classifyResponse{
		Category: category,
		Name:     name,
		TaxCode:  h.cfg.Classify(category, name),
	})
}

type configResponse struct {
	tax.Config
	VATRatePercent string `json:"vat_rate_percent"`
}

// Config handles GET /api/vat/config.
func (h *VATHandler) Config(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=300")
	handler.JSON(w, http.StatusOK, configResponse{
		Config:         h.cfg,
		VATRatePercent: h.cfg.RatePercent(),
	})
}

type summaryResponse struct {
	*postgres.VATSummary
	Formatted service.FormattedTotals `json:"formatted"`
}

// Summary handles GET /api/vat/summary?from=YYYY-MM-DD&to=YYYY-MM-DD, totaling
// receipts issued from the start of from up to the start of to.
func (h *VATHandler) Summary(w http.ResponseWriter, r *http.Request) {
	const op = "vat.summary"

	if h.summarizer == nil {
		handler.ErrorResponse(w, r, domain.Unavailable(op, "Receipt storage is not configured"))
		return
	}

	from, to, err := parsePeriod(r, op)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	s, err := h.summarizer.Summarize(r.Context(), from, to)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.JSON(w, http.StatusOK, summaryResponse{
		VATSummary: s,
		Formatted: service.FormattedTotals{
			Subtotal: tax.FormatCurrency(s.Subtotal),
			Shipping: tax.FormatCurrency(s.Shipping),
			VAT:      tax.FormatCurrency(s.VATAmount),
			Total:    tax.FormatCurrency(s.Total),
		},
	})
}

func parsePeriod(r *http.Request, op string) (time.Time, time.Time, error) {
	q := r.URL.Query()

	var verr error
	from, err := time.Parse(dateLayout, q.Get("from"))
	if err != nil {
		verr = domain.AddFieldError(verr, "from", "must be a date like 2025-01-31")
	}
	to, err := time.Parse(dateLayout, q.Get("to"))
	if err != nil {
		verr = domain.AddFieldError(verr, "to", "must be a date like 2025-01-31")
	}
	if verr == nil && !to.After(from) {
		verr = domain.NewValidationError(op, "to", "must be after from")
	}
	if verr != nil {
		return time.Time{}, time.Time{}, verr
	}
	return from, to, nil
}

// formatted renders the totals of a breakdown for display.
func formatted(b tax.Breakdown) service.FormattedTotals {
	return service.FormattedTotals{
		Subtotal: tax.FormatCurrency(b.Subtotal),
		Shipping: tax.FormatCurrency(b.ShippingCost),
		VAT:      tax.FormatCurrency(b.VATAmount),
		Total:    tax.FormatCurrency(b.Total),
	}
}

package api

import (
	"net/http"

	"github.com/nexustechhub/mdts/internal/handler"
	"github.com/nexustechhub/mdts/internal/service"
	"github.com/nexustechhub/mdts/internal/tax"
)

// CheckoutHandler starts hosted checkout sessions.
type CheckoutHandler struct {
	checkout service.CheckoutService
}

// NewCheckoutHandler creates a CheckoutHandler.
func NewCheckoutHandler(checkout service.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{checkout: checkout}
}

type checkoutRequest struct {
	CartID        string         `json:"cart_id" validate:"max=200"`
	Items         []tax.LineItem `json:"items" validate:"required,min=1"`
	ShippingCost  any            `json:"shipping_cost"`
	Location      *tax.Location  `json:"location"`
	CustomerEmail string         `json:"customer_email" validate:"omitempty,email"`
	SuccessURL    string         `json:"success_url" validate:"required,http_url"`
	CancelURL     string         `json:"cancel_url" validate:"required,http_url"`
}

type checkoutResponse struct {
	*service.CheckoutSession
	Formatted service.FormattedTotals `json:"formatted"`
}

// CreateSession handles POST /api/checkout/session.
func (h *CheckoutHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := handler.DecodeJSON(r, "checkout.session", &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	session, err := h.checkout.CreateCheckoutSession(r.Context(), service.CheckoutSessionParams{
		CartID:        req.CartID,
		Items:         req.Items,
		ShippingCost:  req.ShippingCost,
		Location:      req.Location,
		CustomerEmail: req.CustomerEmail,
		SuccessURL:    req.SuccessURL,
		CancelURL:     req.CancelURL,
	})
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.JSON(w, http.StatusOK, checkoutResponse{
		CheckoutSession: session,
		Formatted:       formatted(session.Breakdown),
	})
}

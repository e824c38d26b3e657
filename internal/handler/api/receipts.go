package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/nexustechhub/mdts/internal/handler"
	"github.com/nexustechhub/mdts/internal/service"
	"github.com/nexustechhub/mdts/internal/tax"
)

// ReceiptHandler issues and serves VAT receipts.
type ReceiptHandler struct {
	invoices service.InvoiceService
}

// NewReceiptHandler creates a ReceiptHandler.
func NewReceiptHandler(invoices service.InvoiceService) *ReceiptHandler {
	return &ReceiptHandler{invoices: invoices}
}

type orderRequest struct {
	CustomerName    string `json:"customer_name" validate:"max=200"`
	CustomerEmail   string `json:"customer_email" validate:"omitempty,email"`
	CustomerPhone   string `json:"customer_phone" validate:"max=50"`
	CustomerAddress string `json:"customer_address" validate:"max=500"`
}

type issueRequest struct {
	Items        []tax.LineItem `json:"items" validate:"required,min=1"`
	ShippingCost any            `json:"shipping_cost"`
	Location     *tax.Location  `json:"location"`
	Order        orderRequest   `json:"order"`
}

// Issue handles POST /api/receipts.
func (h *ReceiptHandler) Issue(w http.ResponseWriter, r *http.Request) {
	var req issueRequest
	if err := handler.DecodeJSON(r, "receipt.issue", &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	receipt, err := h.invoices.Issue(r.Context(), service.IssueParams{
		Items:        req.Items,
		ShippingCost: req.ShippingCost,
		Location:     req.Location,
		Order: tax.OrderDetails{
			CustomerName:    req.Order.CustomerName,
			CustomerEmail:   req.Order.CustomerEmail,
			CustomerPhone:   req.Order.CustomerPhone,
			CustomerAddress: req.Order.CustomerAddress,
		},
	})
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/receipts/"+receipt.ReceiptID)
	handler.JSON(w, http.StatusCreated, receipt)
}

// Get handles GET /api/receipts/{id}.
func (h *ReceiptHandler) Get(w http.ResponseWriter, r *http.Request) {
	receipt, err := h.invoices.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.JSON(w, http.StatusOK, receipt)
}

// PDF handles GET /api/receipts/{id}/pdf.
func (h *ReceiptHandler) PDF(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	pdf, err := h.invoices.PDF(r.Context(), id)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", id+".pdf"))
	w.Header().Set("Content-Length", strconv.Itoa(len(pdf)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

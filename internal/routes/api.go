package routes

import (
	"github.com/nexustechhub/mdts/internal/middleware"
	"github.com/nexustechhub/mdts/internal/router"
)

// RegisterAPIRoutes registers the storefront JSON API.
func RegisterAPIRoutes(r *router.Router, deps APIDeps) {
	// VAT
	r.Post("/api/vat/calculate", deps.VATHandler.Calculate)
	r.Post("/api/vat/validate", deps.VATHandler.Validate)
	r.Get("/api/vat/classify", deps.VATHandler.Classify)
	r.Get("/api/vat/config", deps.VATHandler.Config)

	writes := r
	if deps.WriteLimit != nil {
		writes = r.Group(deps.WriteLimit)
	}

	adminAuth := deps.AdminAuth
	if adminAuth == nil {
		adminAuth = middleware.RequireAdminToken("")
	}
	admin := r.Group(adminAuth)
	adminWrites := writes.Group(adminAuth)

	// Checkout
	writes.Post("/api/checkout/session", deps.CheckoutHandler.CreateSession)

	// Back office: VAT return figures and receipts
	admin.Get("/api/vat/summary", deps.VATHandler.Summary)
	adminWrites.Post("/api/receipts", deps.ReceiptHandler.Issue)
	admin.Get("/api/receipts/{id}", deps.ReceiptHandler.Get)
	admin.Get("/api/receipts/{id}/pdf", deps.ReceiptHandler.PDF)
}

// RegisterOpsRoutes registers health and metrics endpoints.
func RegisterOpsRoutes(r *router.Router, deps OpsDeps) {
	r.Get("/health", deps.HealthHandler.Health)
	if deps.MetricsHandler != nil {
		r.Handle("GET", "/metrics", deps.MetricsHandler)
	}
}

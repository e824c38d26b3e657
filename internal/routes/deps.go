package routes

import (
	"net/http"

	"github.com/nexustechhub/mdts/internal/handler/api"
	"github.com/nexustechhub/mdts/internal/router"
)

// APIDeps contains dependencies for the JSON API routes
type APIDeps struct {
	VATHandler      *api.VATHandler
	CheckoutHandler *api.CheckoutHandler
	ReceiptHandler  *api.ReceiptHandler

	// WriteLimit guards endpoints that create sessions or receipts.
	// Optional.
	WriteLimit router.Middleware

	// AdminAuth guards receipt and VAT return endpoints. When nil those
	// endpoints answer 503.
	AdminAuth router.Middleware
}

// WebhookDeps contains dependencies for webhook routes
type WebhookDeps struct {
	StripeHandler http.HandlerFunc
}

// OpsDeps contains dependencies for operational routes
type OpsDeps struct {
	HealthHandler  *api.HealthHandler
	MetricsHandler http.Handler // optional
}

package service

import (
	"github.com/nexustechhub/mdts/internal/domain"
)

// Checkout errors
var (
	ErrCheckoutUnavailable = domain.Errorf(domain.EUNAVAILABLE, "", "Online payment is not configured")
	ErrPaymentProvider     = domain.Errorf(domain.EPAYMENT, "", "Payment provider rejected the checkout")
)

// Receipt errors
var (
	ErrInvalidBreakdown = domain.Errorf(domain.EINVALID, "", "VAT breakdown failed validation")
	ErrPDFUnavailable   = domain.Errorf(domain.EUNAVAILABLE, "", "PDF rendering is not configured")
)

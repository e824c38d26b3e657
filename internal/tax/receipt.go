package tax

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ReceiptIDPrefix prefixes every generated receipt ID.
const ReceiptIDPrefix = "NTH-"

// OrderDetails is the customer information printed on a receipt.
type OrderDetails struct {
	CustomerName    string `json:"customer_name"`
	CustomerEmail   string `json:"customer_email"`
	CustomerPhone   string `json:"customer_phone"`
	CustomerAddress string `json:"customer_address"`
}

type CustomerDetails struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

type TransactionDetails struct {
	Date         time.Time       `json:"date"`
	Items        []ItemBreakdown `json:"items"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	ShippingCost decimal.Decimal `json:"shipping_cost"`
	VATRate      string          `json:"vat_rate"`
	VATAmount    decimal.Decimal `json:"vat_amount"`
	Total        decimal.Decimal `json:"total"`
	Currency     string          `json:"currency"`
}

type ReceiptCompliance struct {
	VATNumber    string    `json:"vat_number"`
	TaxPoint     time.Time `json:"tax_point"`
	Jurisdiction string    `json:"jurisdiction"`
	TaxAuthority string    `json:"tax_authority"`
}

// Receipt is the compliance record issued for a paid order.
type Receipt struct {
	ReceiptID          string             `json:"receipt_id"`
	BusinessDetails    Business           `json:"business_details"`
	CustomerDetails    CustomerDetails    `json:"customer_details"`
	TransactionDetails TransactionDetails `json:"transaction_details"`
	Compliance         ReceiptCompliance  `json:"compliance"`
}

// BuildReceipt projects a breakdown and order details into a receipt. Fields
// missing from either input are carried over empty.
func (c *Calculator) BuildReceipt(b Breakdown, order OrderDetails) Receipt {
	now := c.now().UTC()

	return Receipt{
		ReceiptID:       fmt.Sprintf("%s%d", ReceiptIDPrefix, now.UnixMilli()),
		BusinessDetails: c.cfg.Business,
		CustomerDetails: CustomerDetails{
			Name:    order.CustomerName,
			Email:   order.CustomerEmail,
			Phone:   order.CustomerPhone,
			Address: order.CustomerAddress,
		},
		TransactionDetails: TransactionDetails{
			Date:         now,
			Items:        b.ItemBreakdown,
			Subtotal:     b.Subtotal,
			ShippingCost: b.ShippingCost,
			VATRate:      ratePercent(b.VATRate),
			VATAmount:    b.VATAmount,
			Total:        b.Total,
			Currency:     b.Currency,
		},
		Compliance: ReceiptCompliance{
			VATNumber:    c.cfg.VATNumber,
			TaxPoint:     now,
			Jurisdiction: "UAE",
			TaxAuthority: c.cfg.TaxAuthority,
		},
	}
}

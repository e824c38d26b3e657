package email

import "fmt"

// ReceiptLine is one rendered row of the receipt email.
type ReceiptLine struct {
	Name     string
	Quantity int
	TaxCode  string
	VAT      string
	Total    string
}

// ReceiptEmail carries a VAT receipt to the customer. Amount fields are
// already formatted for display.
type ReceiptEmail struct {
	To           string
	CustomerName string
	ReceiptID    string
	Date         string
	BusinessName string
	BusinessInfo string
	VATNumber    string
	TaxAuthority string
	Lines        []ReceiptLine
	Subtotal     string
	Shipping     string
	VATRate      string
	VAT          string
	Total        string
	PDF          []byte
}

func (e ReceiptEmail) Subject() string {
	return fmt.Sprintf("Your %s tax invoice %s", e.BusinessName, e.ReceiptID)
}

func (e ReceiptEmail) TemplateName() string {
	return "receipt.html"
}

func (e ReceiptEmail) AttachmentName() string {
	return e.ReceiptID + ".pdf"
}

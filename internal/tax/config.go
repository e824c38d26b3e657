package tax

import "github.com/shopspring/decimal"

// Tax codes follow Stripe's tax category identifiers.
const (
	TaxCodeTangibleGoods = "txcd_99999999"
	TaxCodeServices      = "txcd_20030000"
	TaxCodeShipping      = "txcd_92010001"
)

// CalculationMethodManual tags breakdowns produced by this package, as opposed
// to ones returned by an external tax provider.
const CalculationMethodManual = "manual"

// PlaceholderTRN is printed on receipts until the FTA assigns a tax registration number.
const PlaceholderTRN = "TRN-TO-BE-ASSIGNED"

// Business describes the seller printed on breakdowns and receipts.
type Business struct {
	Name          string `json:"name"`
	Location      string `json:"location"`
	Phone         string `json:"phone"`
	VATRegistered bool   `json:"vat_registered"`
}

// Config holds the jurisdiction settings used by the calculator, validator and
// receipt builder. It is a value type: copies never share state, so one Config
// can be handed to any number of goroutines.
type Config struct {
	Country         string          `json:"country"`
	Jurisdiction    string          `json:"jurisdiction"`
	TaxAuthority    string          `json:"tax_authority"`
	VATRate         decimal.Decimal `json:"vat_rate"`
	Currency        string          `json:"currency"`
	DefaultTaxCode  string          `json:"default_tax_code"`
	ServiceTaxCode  string          `json:"service_tax_code"`
	ShippingTaxCode string          `json:"shipping_tax_code"`
	Business        Business        `json:"business"`
	// VATNumber is the TRN printed on receipts.
	VATNumber string `json:"vat_number"`
}

// UAE returns the configuration for UAE VAT at the standard 5% rate.
func UAE() Config {
	return Config{
		Country:         "AE",
		Jurisdiction:    "United Arab Emirates",
		TaxAuthority:    "Federal Tax Authority (FTA)",
		VATRate:         decimal.New(5, -2),
		Currency:        "AED",
		DefaultTaxCode:  TaxCodeTangibleGoods,
		ServiceTaxCode:  TaxCodeServices,
		ShippingTaxCode: TaxCodeShipping,
		Business: Business{
			Name:          "Nexus TechHub",
			Location:      "Ras Al Khaimah, UAE",
			Phone:         "+971585531029",
			VATRegistered: true,
		},
		VATNumber: PlaceholderTRN,
	}
}

// WithBusiness returns a copy of c with the seller details replaced.
// Empty fields keep their current value.
func (c Config) WithBusiness(b Business) Config {
	if b.Name != "" {
		c.Business.Name = b.Name
	}
	if b.Location != "" {
		c.Business.Location = b.Location
	}
	if b.Phone != "" {
		c.Business.Phone = b.Phone
	}
	c.Business.VATRegistered = b.VATRegistered
	return c
}

// WithVATNumber returns a copy of c that prints trn on receipts.
func (c Config) WithVATNumber(trn string) Config {
	if trn != "" {
		c.VATNumber = trn
	}
	return c
}

// RatePercent renders the VAT rate as a percentage string, e.g. "5%".
func (c Config) RatePercent() string {
	return ratePercent(c.VATRate)
}

func ratePercent(rate decimal.Decimal) string {
	return rate.Shift(2).String() + "%"
}

// Package tax computes UAE VAT breakdowns for checkout and invoicing.
//
// Everything here is pure: no I/O, no shared mutable state. Failures are
// reported as data on the returned values, never as panics or errors, so a
// checkout page can always render a breakdown.
package tax

import (
	"time"

	"github.com/shopspring/decimal"
)

// LineItem is a cart line as supplied by the caller. Price and Quantity are
// left untyped because they arrive straight from request bodies and cart rows;
// they are normalized with ParseAmount and ParseQuantity.
type LineItem struct {
	ID       string `json:"id,omitempty"`
	SKU      string `json:"sku,omitempty"`
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
	Price    any    `json:"price"`
	Quantity any    `json:"quantity,omitempty"`
}

// Location is the customer's shipping location.
type Location struct {
	Country string `json:"country,omitempty"`
	Emirate string `json:"emirate,omitempty"`
	State   string `json:"state,omitempty"`
	City    string `json:"city,omitempty"`
}

// CustomerLocation is the normalized location echoed on a breakdown.
type CustomerLocation struct {
	Country string `json:"country"`
	Emirate string `json:"emirate,omitempty"`
	City    string `json:"city,omitempty"`
	IsUAE   bool   `json:"is_uae"`
}

// Compliance is the static jurisdiction block attached to every breakdown.
type Compliance struct {
	Country          string `json:"country"`
	Jurisdiction     string `json:"jurisdiction"`
	TaxAuthority     string `json:"tax_authority"`
	VATRegistration  bool   `json:"vat_registration"`
	BusinessName     string `json:"business_name"`
	BusinessLocation string `json:"business_location"`
	BusinessPhone    string `json:"business_phone"`
}

// ItemBreakdown is the per-line decomposition. Its VAT is rounded on its own
// and is not reconciled with the cart-level VAT.
type ItemBreakdown struct {
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	VATAmount decimal.Decimal `json:"vat_amount"`
	Total     decimal.Decimal `json:"total"`
	TaxCode   string          `json:"tax_code"`
}

// Breakdown is the full result of a VAT calculation. When Error is set the
// breakdown is degraded: every amount is zero and the item, compliance and
// location blocks are absent.
type Breakdown struct {
	Subtotal          decimal.Decimal   `json:"subtotal"`
	ShippingCost      decimal.Decimal   `json:"shipping_cost"`
	TaxableAmount     decimal.Decimal   `json:"taxable_amount"`
	VATRate           decimal.Decimal   `json:"vat_rate"`
	VATAmount         decimal.Decimal   `json:"vat_amount"`
	Total             decimal.Decimal   `json:"total"`
	Currency          string            `json:"currency"`
	CalculationMethod string            `json:"calculation_method"`
	Timestamp         time.Time         `json:"timestamp"`
	ItemBreakdown     []ItemBreakdown   `json:"item_breakdown,omitempty"`
	Compliance        *Compliance       `json:"compliance,omitempty"`
	CustomerLocation  *CustomerLocation `json:"customer_location,omitempty"`
	Error             string            `json:"error,omitempty"`
}

// Failed reports whether b is a degraded breakdown.
func (b Breakdown) Failed() bool {
	return b.Error != ""
}

// Err returns the typed error behind a degraded breakdown, or nil.
func (b Breakdown) Err() error {
	if b.Error == "" {
		return nil
	}
	return errorFromMessage(b.Error)
}

// Calculator produces VAT breakdowns for a single jurisdiction.
type Calculator struct {
	cfg Config
	now func() time.Time
}

// Option configures a Calculator.
type Option func(*Calculator)

// WithClock overrides the time source used for timestamps and receipt IDs.
func WithClock(now func() time.Time) Option {
	return func(c *Calculator) {
		c.now = now
	}
}

// NewCalculator creates a calculator bound to cfg.
func NewCalculator(cfg Config, opts ...Option) *Calculator {
	c := &Calculator{
		cfg: cfg,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Config returns the jurisdiction configuration the calculator was built with.
func (c *Calculator) Config() Config {
	return c.cfg
}

// Calculate computes the VAT breakdown for items plus shipping. shippingCost
// accepts the same loosely typed values as LineItem.Price. loc may be nil, in
// which case the customer is assumed to be in the UAE.
//
// Calculate never fails: an empty cart yields a degraded breakdown carrying
// Error, with all amounts zero.
func (c *Calculator) Calculate(items []LineItem, shippingCost any, loc *Location) (b Breakdown) {
	defer func() {
		if r := recover(); r != nil {
			b = c.degraded(ErrCalculationFailed)
		}
	}()

	if len(items) == 0 {
		return c.degraded(ErrNoItems)
	}

	subtotal := decimal.Zero
	for _, item := range items {
		price := ParseAmount(item.Price)
		quantity := ParseQuantity(item.Quantity)
		subtotal = subtotal.Add(price.Mul(decimal.NewFromInt(int64(quantity))))
	}

	shipping := ParseAmount(shippingCost)
	taxable := subtotal.Add(shipping)
	vat := round2(taxable.Mul(c.cfg.VATRate))
	total := taxable.Add(vat)

	return Breakdown{
		Subtotal:          round2(subtotal),
		ShippingCost:      round2(shipping),
		TaxableAmount:     round2(taxable),
		VATRate:           c.cfg.VATRate,
		VATAmount:         vat,
		Total:             round2(total),
		Currency:          c.cfg.Currency,
		CalculationMethod: CalculationMethodManual,
		Timestamp:         c.now().UTC(),
		ItemBreakdown:     c.itemBreakdown(items),
		Compliance:        c.compliance(),
		CustomerLocation:  c.customerLocation(loc),
	}
}

func (c *Calculator) itemBreakdown(items []LineItem) []ItemBreakdown {
	out := make([]ItemBreakdown, 0, len(items))
	for _, item := range items {
		price := ParseAmount(item.Price)
		quantity := ParseQuantity(item.Quantity)
		lineTotal := price.Mul(decimal.NewFromInt(int64(quantity)))
		lineVAT := round2(lineTotal.Mul(c.cfg.VATRate))

		id := item.ID
		if id == "" {
			id = item.SKU
		}

		out = append(out, ItemBreakdown{
			ID:        id,
			Name:      item.Name,
			Price:     price,
			Quantity:  quantity,
			Subtotal:  round2(lineTotal),
			VATAmount: lineVAT,
			Total:     round2(lineTotal.Add(lineVAT)),
			TaxCode:   c.cfg.Classify(item.Category, item.Name),
		})
	}
	return out
}

func (c *Calculator) compliance() *Compliance {
	return &Compliance{
		Country:          c.cfg.Country,
		Jurisdiction:     c.cfg.Jurisdiction,
		TaxAuthority:     c.cfg.TaxAuthority,
		VATRegistration:  c.cfg.Business.VATRegistered,
		BusinessName:     c.cfg.Business.Name,
		BusinessLocation: c.cfg.Business.Location,
		BusinessPhone:    c.cfg.Business.Phone,
	}
}

func (c *Calculator) customerLocation(loc *Location) *CustomerLocation {
	if loc == nil {
		loc = &Location{}
	}

	country := loc.Country
	if country == "" {
		country = c.cfg.Country
	}
	emirate := loc.Emirate
	if emirate == "" {
		emirate = loc.State
	}

	return &CustomerLocation{
		Country: country,
		Emirate: emirate,
		City:    loc.City,
		IsUAE:   country == c.cfg.Country,
	}
}

// degraded builds the zeroed fallback breakdown.
func (c *Calculator) degraded(err *TaxError) Breakdown {
	return Breakdown{
		Subtotal:          decimal.Zero,
		ShippingCost:      decimal.Zero,
		TaxableAmount:     decimal.Zero,
		VATRate:           c.cfg.VATRate,
		VATAmount:         decimal.Zero,
		Total:             decimal.Zero,
		Currency:          c.cfg.Currency,
		CalculationMethod: CalculationMethodManual,
		Timestamp:         c.now().UTC(),
		Error:             err.Message,
	}
}

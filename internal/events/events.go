// Package events publishes domain events for downstream consumers
// (bookkeeping export, CRM sync) over NATS.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
)

const (
	// SubjectReceiptIssued is published once per persisted receipt.
	SubjectReceiptIssued = "mdts.receipt.issued"

	// SubjectCheckoutCompleted is published when the payment provider reports
	// a paid checkout session.
	SubjectCheckoutCompleted = "mdts.checkout.completed"
)

// Publisher sends events to a message bus.
type Publisher interface {
	Publish(ctx context.Context, subject string, event Event) error
	Close() error
}

// Event is the envelope written to the bus.
type Event struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

// ReceiptIssued is the payload of SubjectReceiptIssued.
type ReceiptIssued struct {
	ReceiptID     string          `json:"receipt_id"`
	CustomerEmail string          `json:"customer_email,omitempty"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	VATAmount     decimal.Decimal `json:"vat_amount"`
	Total         decimal.Decimal `json:"total"`
	Currency      string          `json:"currency"`
	ItemCount     int             `json:"item_count"`
}

// CheckoutCompleted is the payload of SubjectCheckoutCompleted. Amounts are
// in fils as reported by the provider.
type CheckoutCompleted struct {
	SessionID     string `json:"session_id"`
	PaymentIntent string `json:"payment_intent,omitempty"`
	CartID        string `json:"cart_id,omitempty"`
	CustomerEmail string `json:"customer_email,omitempty"`
	AmountTotal   int64  `json:"amount_total"`
	Currency      string `json:"currency"`
	VATAmount     string `json:"vat_amount,omitempty"`
}

// NewEvent wraps data in an envelope with a sortable ID.
func NewEvent(eventType string, occurredAt time.Time, data any) (Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Event{}, err
	}
	return Event{
		ID:         ulid.Make().String(),
		Type:       eventType,
		OccurredAt: occurredAt.UTC(),
		Data:       raw,
	}, nil
}

// NopPublisher drops every event. Used when NATS is not configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, Event) error { return nil }
func (NopPublisher) Close() error                                 { return nil }

package billing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockProvider is a mock billing provider for testing.
// Simulates successful checkout flows without calling Stripe API.
type MockProvider struct {
	// CreateCheckoutSessionFunc allows customizing session creation behavior
	CreateCheckoutSessionFunc func(ctx context.Context, params CreateCheckoutSessionParams) (*CheckoutSession, error)

	// VerifyWebhookSignatureFunc allows customizing webhook verification behavior
	VerifyWebhookSignatureFunc func(payload []byte, signature string, secret string) error

	// Sessions stores created sessions for retrieval
	Sessions map[string]*CheckoutSession

	// LastParams holds the params of the most recent CreateCheckoutSession call
	LastParams *CreateCheckoutSessionParams

	// CallLog tracks method calls for test assertions
	CallLog []string

	mu sync.Mutex
}

// NewMockProvider creates a new mock billing provider.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		Sessions: make(map[string]*CheckoutSession),
		CallLog:  []string{},
	}
}

// CreateCheckoutSession creates a mock checkout session.
func (m *MockProvider) CreateCheckoutSession(ctx context.Context, params CreateCheckoutSessionParams) (*CheckoutSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CallLog = append(m.CallLog, fmt.Sprintf("CreateCheckoutSession(%d, %s)", params.AmountTotal(), params.Currency))
	m.LastParams = &params

	if m.CreateCheckoutSessionFunc != nil {
		return m.CreateCheckoutSessionFunc(ctx, params)
	}

	if len(params.LineItems) == 0 {
		return nil, ErrNoLineItems
	}

	id := "cs_test_" + uuid.New().String()
	session := &CheckoutSession{
		ID:          id,
		URL:         "https://checkout.stripe.com/c/pay/" + id,
		Status:      "open",
		Currency:    params.Currency,
		AmountTotal: params.AmountTotal(),
		Metadata:    params.Metadata,
		CreatedAt:   time.Now(),
	}

	m.Sessions[id] = session
	return session, nil
}

// VerifyWebhookSignature verifies a mock webhook signature.
func (m *MockProvider) VerifyWebhookSignature(payload []byte, signature string, secret string) error {
	m.mu.Lock()
	m.CallLog = append(m.CallLog, "VerifyWebhookSignature")
	m.mu.Unlock()

	if m.VerifyWebhookSignatureFunc != nil {
		return m.VerifyWebhookSignatureFunc(payload, signature, secret)
	}

	// Default mock behavior: always verify successfully
	return nil
}

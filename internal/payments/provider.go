package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Provider keys. They match the order's payment method values.
const (
	ProviderRazorpay = "razorpay"
	ProviderStripe   = "stripe"
)

var (
	// ErrGatewayUnavailable is returned when the requested provider has no credentials configured.
	ErrGatewayUnavailable = errors.New("payments: gateway not configured")
	// ErrInvalidSignature is returned when a callback or webhook fails authenticity checks.
	ErrInvalidSignature = errors.New("payments: invalid signature")
	// ErrPaymentIncomplete is returned when the provider reports the payment has not succeeded.
	ErrPaymentIncomplete = errors.New("payments: payment not completed")
	// ErrMalformedPayload is returned for webhook bodies that cannot be decoded.
	ErrMalformedPayload = errors.New("payments: malformed payload")
)

// Logger receives provider events.
type Logger func(ctx context.Context, event string, fields map[string]any)

// IntentRequest asks a provider to open a payment for an order. Amount is in minor units.
type IntentRequest struct {
	OrderID  string
	Amount   int64
	Currency string
}

// Intent is what the client-side checkout widget needs to collect payment.
type Intent struct {
	Provider string
	// GatewayOrderID is the provider order id (Razorpay) or PaymentIntent id (Stripe).
	GatewayOrderID string
	ClientSecret   string
	PublicKey      string
	Amount         int64
	Currency       string
}

// VerifyRequest carries the client-redirect callback fields.
type VerifyRequest struct {
	OrderID        string
	GatewayOrderID string
	PaymentID      string
	Signature      string
	// ExpectedAmount is the order total in minor units.
	ExpectedAmount int64
}

// Verification is a payment the provider vouched for.
type Verification struct {
	GatewayOrderID string
	PaymentID      string
}

// WebhookOutcome classifies a webhook for the reconciler.
type WebhookOutcome string

const (
	WebhookPaymentSucceeded WebhookOutcome = "succeeded"
	WebhookPaymentFailed    WebhookOutcome = "failed"
	WebhookIgnored          WebhookOutcome = "ignored"
)

// WebhookRequest is the raw delivery.
type WebhookRequest struct {
	Payload   []byte
	Signature string
	EventID   string
}

// WebhookEvent is a verified, decoded delivery.
type WebhookEvent struct {
	ID             string
	Type           string
	Outcome        WebhookOutcome
	GatewayOrderID string
	PaymentID      string
	// OrderID is the storefront order id when the provider echoes it back.
	OrderID string
}

// Gateway is the capability set every provider adapter implements.
type Gateway interface {
	Name() string
	CreateIntent(ctx context.Context, req IntentRequest) (Intent, error)
	VerifyPayment(ctx context.Context, req VerifyRequest) (Verification, error)
	ParseWebhook(ctx context.Context, req WebhookRequest) (WebhookEvent, error)
}

// Manager resolves gateways by provider key.
type Manager struct {
	gateways map[string]Gateway
}

// NewManager registers gateways. A nil gateway is skipped so callers can pass optional adapters directly.
func NewManager(gateways ...Gateway) (*Manager, error) {
	m := &Manager{gateways: make(map[string]Gateway, len(gateways))}
	for _, gw := range gateways {
		if gw == nil {
			continue
		}
		key := normalizeProvider(gw.Name())
		if key == "" {
			return nil, errors.New("payments: gateway name is required")
		}
		if _, exists := m.gateways[key]; exists {
			return nil, fmt.Errorf("payments: gateway %q registered twice", key)
		}
		m.gateways[key] = gw
	}
	return m, nil
}

// Gateway returns the adapter for provider, or an Unconfigured stand-in that fails every call.
func (m *Manager) Gateway(provider string) Gateway {
	key := normalizeProvider(provider)
	if m != nil {
		if gw, ok := m.gateways[key]; ok {
			return gw
		}
	}
	return Unconfigured{Provider: key}
}

// Configured reports whether provider has a real adapter.
func (m *Manager) Configured(provider string) bool {
	if m == nil {
		return false
	}
	_, ok := m.gateways[normalizeProvider(provider)]
	return ok
}

// Unconfigured stands in for a provider that has no credentials.
type Unconfigured struct {
	Provider string
}

func (u Unconfigured) Name() string { return u.Provider }

func (u Unconfigured) CreateIntent(context.Context, IntentRequest) (Intent, error) {
	return Intent{}, fmt.Errorf("%w: %s", ErrGatewayUnavailable, u.Provider)
}

func (u Unconfigured) VerifyPayment(context.Context, VerifyRequest) (Verification, error) {
	return Verification{}, fmt.Errorf("%w: %s", ErrGatewayUnavailable, u.Provider)
}

func (u Unconfigured) ParseWebhook(context.Context, WebhookRequest) (WebhookEvent, error) {
	return WebhookEvent{}, fmt.Errorf("%w: %s", ErrGatewayUnavailable, u.Provider)
}

func normalizeProvider(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
	"github.com/stripe/stripe-go/v78/webhook"
)

const stripeOrderMetadataKey = "orderId"

type stripeIntentAPI interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

// StripeConfig configures the Stripe gateway.
type StripeConfig struct {
	APIKey        string
	WebhookSecret string
	Currency      string
	Timeout       time.Duration
	Backends      *stripe.Backends
	Logger        Logger
	// Intents overrides the SDK client, mainly for tests.
	Intents stripeIntentAPI
}

// StripeGateway opens PaymentIntents and verifies them server-side.
type StripeGateway struct {
	intents       stripeIntentAPI
	webhookSecret string
	currency      string
	timeout       time.Duration
	logger        Logger
}

// NewStripeGateway constructs the gateway.
func NewStripeGateway(cfg StripeConfig) (*StripeGateway, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" && cfg.Intents == nil {
		return nil, errors.New("stripe: api key is required")
	}
	intents := cfg.Intents
	if intents == nil {
		intents = client.New(apiKey, cfg.Backends).PaymentIntents
	}
	g := &StripeGateway{
		intents:       intents,
		webhookSecret: strings.TrimSpace(cfg.WebhookSecret),
		currency:      strings.ToLower(strings.TrimSpace(cfg.Currency)),
		timeout:       cfg.Timeout,
		logger:        cfg.Logger,
	}
	if g.currency == "" {
		g.currency = "inr"
	}
	if g.timeout <= 0 {
		g.timeout = defaultGatewayTimeout
	}
	if g.logger == nil {
		g.logger = func(context.Context, string, map[string]any) {}
	}
	return g, nil
}

func (g *StripeGateway) Name() string { return ProviderStripe }

// CreateIntent opens a PaymentIntent keyed by the order id so retries return the same intent.
func (g *StripeGateway) CreateIntent(ctx context.Context, req IntentRequest) (Intent, error) {
	currency := strings.ToLower(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = g.currency
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.Amount),
		Currency: stripe.String(currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.SetIdempotencyKey("intent-" + req.OrderID)
	params.AddMetadata(stripeOrderMetadataKey, req.OrderID)

	intent, err := g.intents.New(params)
	if err != nil {
		return Intent{}, fmt.Errorf("stripe: create payment intent: %w", err)
	}

	g.logger(ctx, "payments.stripe.intent.created", map[string]any{
		"orderId":         req.OrderID,
		"paymentIntentId": intent.ID,
		"amount":          intent.Amount,
	})
	return Intent{
		Provider:       ProviderStripe,
		GatewayOrderID: intent.ID,
		ClientSecret:   intent.ClientSecret,
		Amount:         intent.Amount,
		Currency:       string(intent.Currency),
	}, nil
}

// VerifyPayment retrieves the intent and requires it to have succeeded for this order and amount.
func (g *StripeGateway) VerifyPayment(ctx context.Context, req VerifyRequest) (Verification, error) {
	intentID := strings.TrimSpace(req.GatewayOrderID)
	if intentID == "" {
		return Verification{}, ErrInvalidSignature
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	intent, err := g.intents.Get(intentID, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode == 404 {
			return Verification{}, ErrInvalidSignature
		}
		return Verification{}, fmt.Errorf("stripe: retrieve payment intent: %w", err)
	}
	if intent.Metadata[stripeOrderMetadataKey] != req.OrderID {
		return Verification{}, ErrInvalidSignature
	}
	if req.ExpectedAmount > 0 && intent.Amount != req.ExpectedAmount {
		return Verification{}, ErrInvalidSignature
	}
	if intent.Status != stripe.PaymentIntentStatusSucceeded {
		return Verification{}, ErrPaymentIncomplete
	}

	paymentID := intent.ID
	if intent.LatestCharge != nil && intent.LatestCharge.ID != "" {
		paymentID = intent.LatestCharge.ID
	}
	return Verification{GatewayOrderID: intent.ID, PaymentID: paymentID}, nil
}

// ParseWebhook verifies the Stripe-Signature header and decodes payment_intent events.
func (g *StripeGateway) ParseWebhook(_ context.Context, req WebhookRequest) (WebhookEvent, error) {
	if g.webhookSecret == "" {
		return WebhookEvent{}, fmt.Errorf("%w: stripe webhook secret", ErrGatewayUnavailable)
	}
	evt, err := webhook.ConstructEventWithOptions(req.Payload, req.Signature, g.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return WebhookEvent{}, ErrInvalidSignature
	}

	event := WebhookEvent{
		ID:      evt.ID,
		Type:    string(evt.Type),
		Outcome: WebhookIgnored,
	}
	switch evt.Type {
	case stripe.EventTypePaymentIntentSucceeded:
		event.Outcome = WebhookPaymentSucceeded
	case stripe.EventTypePaymentIntentPaymentFailed:
		event.Outcome = WebhookPaymentFailed
	default:
		return event, nil
	}

	var intent stripe.PaymentIntent
	if evt.Data == nil || json.Unmarshal(evt.Data.Raw, &intent) != nil {
		return WebhookEvent{}, fmt.Errorf("%w: payment intent", ErrMalformedPayload)
	}
	event.GatewayOrderID = intent.ID
	event.PaymentID = intent.ID
	if intent.LatestCharge != nil && intent.LatestCharge.ID != "" {
		event.PaymentID = intent.LatestCharge.ID
	}
	event.OrderID = intent.Metadata[stripeOrderMetadataKey]
	return event, nil
}

package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	razorpay "github.com/razorpay/razorpay-go"

	"github.com/RANAPRINCE06/Watch/internal/platform/auth"
)

const defaultGatewayTimeout = 15 * time.Second

type razorpayOrderAPI interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

// RazorpayConfig configures the Razorpay gateway.
type RazorpayConfig struct {
	KeyID         string
	KeySecret     string
	WebhookSecret string
	Currency      string
	Timeout       time.Duration
	Logger        Logger
	// Orders overrides the SDK client, mainly for tests.
	Orders razorpayOrderAPI
}

// RazorpayGateway creates Razorpay orders and verifies checkout and webhook signatures.
type RazorpayGateway struct {
	keyID    string
	currency string
	timeout  time.Duration
	orders   razorpayOrderAPI
	checkout *auth.HMACSigner
	webhook  *auth.HMACSigner
	logger   Logger
}

// NewRazorpayGateway constructs the gateway. The webhook secret is optional; without it webhooks are rejected.
func NewRazorpayGateway(cfg RazorpayConfig) (*RazorpayGateway, error) {
	keyID := strings.TrimSpace(cfg.KeyID)
	if keyID == "" {
		return nil, errors.New("razorpay: key id is required")
	}
	checkout, err := auth.NewHMACSigner(cfg.KeySecret)
	if err != nil {
		return nil, fmt.Errorf("razorpay: key secret: %w", err)
	}

	g := &RazorpayGateway{
		keyID:    keyID,
		currency: strings.ToUpper(strings.TrimSpace(cfg.Currency)),
		timeout:  cfg.Timeout,
		orders:   cfg.Orders,
		checkout: checkout,
		logger:   cfg.Logger,
	}
	if g.currency == "" {
		g.currency = "INR"
	}
	if g.timeout <= 0 {
		g.timeout = defaultGatewayTimeout
	}
	if g.orders == nil {
		g.orders = razorpay.NewClient(keyID, cfg.KeySecret).Order
	}
	if g.logger == nil {
		g.logger = func(context.Context, string, map[string]any) {}
	}
	if secret := strings.TrimSpace(cfg.WebhookSecret); secret != "" {
		g.webhook, _ = auth.NewHMACSigner(secret)
	}
	return g, nil
}

func (g *RazorpayGateway) Name() string { return ProviderRazorpay }

// CreateIntent creates a Razorpay order with the storefront order id as receipt.
func (g *RazorpayGateway) CreateIntent(ctx context.Context, req IntentRequest) (Intent, error) {
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = g.currency
	}
	data := map[string]interface{}{
		"amount":   req.Amount,
		"currency": currency,
		"receipt":  req.OrderID,
		"notes":    map[string]interface{}{"orderId": req.OrderID},
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	type createResult struct {
		body map[string]interface{}
		err  error
	}
	done := make(chan createResult, 1)
	go func() {
		body, err := g.orders.Create(data, nil)
		done <- createResult{body: body, err: err}
	}()

	var res createResult
	select {
	case <-ctx.Done():
		return Intent{}, fmt.Errorf("razorpay: create order: %w", ctx.Err())
	case res = <-done:
	}
	if res.err != nil {
		return Intent{}, fmt.Errorf("razorpay: create order: %w", res.err)
	}

	id, _ := res.body["id"].(string)
	if id == "" {
		return Intent{}, errors.New("razorpay: create order: response missing id")
	}
	intent := Intent{
		Provider:       ProviderRazorpay,
		GatewayOrderID: id,
		PublicKey:      g.keyID,
		Amount:         req.Amount,
		Currency:       currency,
	}
	if amount, ok := res.body["amount"].(float64); ok {
		intent.Amount = int64(amount)
	}
	if cur, ok := res.body["currency"].(string); ok && cur != "" {
		intent.Currency = cur
	}

	g.logger(ctx, "payments.razorpay.order.created", map[string]any{
		"orderId":        req.OrderID,
		"gatewayOrderId": id,
		"amount":         intent.Amount,
	})
	return intent, nil
}

// VerifyPayment checks the checkout signature hex(HMAC-SHA256(keySecret, orderId|paymentId)).
func (g *RazorpayGateway) VerifyPayment(_ context.Context, req VerifyRequest) (Verification, error) {
	gatewayOrderID := strings.TrimSpace(req.GatewayOrderID)
	paymentID := strings.TrimSpace(req.PaymentID)
	if gatewayOrderID == "" || paymentID == "" || strings.TrimSpace(req.Signature) == "" {
		return Verification{}, ErrInvalidSignature
	}
	if err := g.checkout.VerifyParts(req.Signature, gatewayOrderID, paymentID); err != nil {
		return Verification{}, ErrInvalidSignature
	}
	return Verification{GatewayOrderID: gatewayOrderID, PaymentID: paymentID}, nil
}

type razorpayWebhook struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID      string `json:"id"`
				OrderID string `json:"order_id"`
				Status  string `json:"status"`
			} `json:"entity"`
		} `json:"payment"`
		Order struct {
			Entity struct {
				ID      string `json:"id"`
				Receipt string `json:"receipt"`
			} `json:"entity"`
		} `json:"order"`
	} `json:"payload"`
}

// ParseWebhook verifies X-Razorpay-Signature over the raw body and classifies the event.
func (g *RazorpayGateway) ParseWebhook(_ context.Context, req WebhookRequest) (WebhookEvent, error) {
	if g.webhook == nil {
		return WebhookEvent{}, fmt.Errorf("%w: razorpay webhook secret", ErrGatewayUnavailable)
	}
	if err := g.webhook.Verify(req.Payload, req.Signature); err != nil {
		return WebhookEvent{}, ErrInvalidSignature
	}

	var body razorpayWebhook
	if err := json.Unmarshal(req.Payload, &body); err != nil {
		return WebhookEvent{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	event := WebhookEvent{
		ID:             strings.TrimSpace(req.EventID),
		Type:           body.Event,
		Outcome:        WebhookIgnored,
		GatewayOrderID: body.Payload.Payment.Entity.OrderID,
		PaymentID:      body.Payload.Payment.Entity.ID,
		OrderID:        body.Payload.Order.Entity.Receipt,
	}
	if event.GatewayOrderID == "" {
		event.GatewayOrderID = body.Payload.Order.Entity.ID
	}

	switch body.Event {
	case "payment.captured", "order.paid":
		event.Outcome = WebhookPaymentSucceeded
	case "payment.failed":
		event.Outcome = WebhookPaymentFailed
	}
	return event, nil
}

package payments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/RANAPRINCE06/Watch/internal/platform/auth"
)

type fakeRazorpayOrders struct {
	data  map[string]interface{}
	body  map[string]interface{}
	err   error
	block chan struct{}
}

func (f *fakeRazorpayOrders) Create(data map[string]interface{}, _ map[string]string) (map[string]interface{}, error) {
	f.data = data
	if f.block != nil {
		<-f.block
	}
	return f.body, f.err
}

func newTestRazorpay(t *testing.T, orders *fakeRazorpayOrders) *RazorpayGateway {
	t.Helper()
	gw, err := NewRazorpayGateway(RazorpayConfig{
		KeyID:         "rzp_test_key",
		KeySecret:     "key-secret",
		WebhookSecret: "hook-secret",
		Orders:        orders,
		Timeout:       50 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("new razorpay gateway: %v", err)
	}
	return gw
}

func TestRazorpayCreateIntent(t *testing.T) {
	orders := &fakeRazorpayOrders{body: map[string]interface{}{"id": "order_abc", "amount": float64(6372000), "currency": "INR"}}
	gw := newTestRazorpay(t, orders)

	intent, err := gw.CreateIntent(context.Background(), IntentRequest{OrderID: "o1", Amount: 6372000})
	if err != nil {
		t.Fatalf("create intent: %v", err)
	}
	if intent.GatewayOrderID != "order_abc" || intent.PublicKey != "rzp_test_key" || intent.Amount != 6372000 || intent.Currency != "INR" {
		t.Fatalf("unexpected intent %+v", intent)
	}
	if orders.data["receipt"] != "o1" || orders.data["amount"] != int64(6372000) {
		t.Fatalf("unexpected request %+v", orders.data)
	}
}

func TestRazorpayCreateIntentHonoursTimeout(t *testing.T) {
	orders := &fakeRazorpayOrders{block: make(chan struct{})}
	defer close(orders.block)
	gw := newTestRazorpay(t, orders)

	_, err := gw.CreateIntent(context.Background(), IntentRequest{OrderID: "o1", Amount: 100})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestRazorpayVerifyPayment(t *testing.T) {
	gw := newTestRazorpay(t, &fakeRazorpayOrders{})
	signer, _ := auth.NewHMACSigner("key-secret")
	sig := signer.SignParts("order_abc", "pay_123")

	v, err := gw.VerifyPayment(context.Background(), VerifyRequest{GatewayOrderID: "order_abc", PaymentID: "pay_123", Signature: sig})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if v.PaymentID != "pay_123" {
		t.Fatalf("unexpected verification %+v", v)
	}

	tampered := []byte(sig)
	tampered[0] ^= 1
	if _, err := gw.VerifyPayment(context.Background(), VerifyRequest{GatewayOrderID: "order_abc", PaymentID: "pay_123", Signature: string(tampered)}); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected invalid signature, got %v", err)
	}
	if _, err := gw.VerifyPayment(context.Background(), VerifyRequest{GatewayOrderID: "order_other", PaymentID: "pay_123", Signature: sig}); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected invalid signature for another order, got %v", err)
	}
}

func TestRazorpayParseWebhook(t *testing.T) {
	gw := newTestRazorpay(t, &fakeRazorpayOrders{})
	signer, _ := auth.NewHMACSigner("hook-secret")

	cases := []struct {
		name    string
		payload string
		outcome WebhookOutcome
	}{
		{"captured", `{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_1","order_id":"order_1","status":"captured"}}}}`, WebhookPaymentSucceeded},
		{"failed", `{"event":"payment.failed","payload":{"payment":{"entity":{"id":"pay_1","order_id":"order_1","status":"failed"}}}}`, WebhookPaymentFailed},
		{"other", `{"event":"refund.created","payload":{"payment":{"entity":{"id":"pay_1","order_id":"order_1"}}}}`, WebhookIgnored},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			payload := []byte(tc.payload)
			evt, err := gw.ParseWebhook(context.Background(), WebhookRequest{Payload: payload, Signature: signer.Sign(payload), EventID: "evt_1"})
			if err != nil {
				t.Fatalf("parse webhook: %v", err)
			}
			if evt.Outcome != tc.outcome || evt.GatewayOrderID != "order_1" || evt.PaymentID != "pay_1" || evt.ID != "evt_1" {
				t.Fatalf("unexpected event %+v", evt)
			}
		})
	}

	payload := []byte(cases[0].payload)
	if _, err := gw.ParseWebhook(context.Background(), WebhookRequest{Payload: payload, Signature: signer.Sign([]byte("other"))}); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected invalid signature, got %v", err)
	}
}

func TestRazorpayWebhookRequiresSecret(t *testing.T) {
	gw, err := NewRazorpayGateway(RazorpayConfig{KeyID: "k", KeySecret: "s", Orders: &fakeRazorpayOrders{}})
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}
	if _, err := gw.ParseWebhook(context.Background(), WebhookRequest{Payload: []byte("{}")}); !errors.Is(err, ErrGatewayUnavailable) {
		t.Fatalf("expected gateway unavailable, got %v", err)
	}
}

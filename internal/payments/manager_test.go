package payments

import (
	"context"
	"errors"
	"testing"
)

type fakeGateway struct {
	name string
}

func (f *fakeGateway) Name() string { return f.name }

func (f *fakeGateway) CreateIntent(context.Context, IntentRequest) (Intent, error) {
	return Intent{Provider: f.name}, nil
}

func (f *fakeGateway) VerifyPayment(context.Context, VerifyRequest) (Verification, error) {
	return Verification{}, nil
}

func (f *fakeGateway) ParseWebhook(context.Context, WebhookRequest) (WebhookEvent, error) {
	return WebhookEvent{}, nil
}

func TestManagerResolvesRegisteredGateway(t *testing.T) {
	mgr, err := NewManager(&fakeGateway{name: "Stripe"}, nil)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if !mgr.Configured("stripe") {
		t.Fatalf("expected stripe configured")
	}
	intent, err := mgr.Gateway(" STRIPE ").CreateIntent(context.Background(), IntentRequest{})
	if err != nil {
		t.Fatalf("create intent: %v", err)
	}
	if intent.Provider != "Stripe" {
		t.Fatalf("expected fake gateway to be used, got %q", intent.Provider)
	}
}

func TestManagerFallsBackToUnconfigured(t *testing.T) {
	mgr, err := NewManager()
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if mgr.Configured("razorpay") {
		t.Fatalf("expected razorpay unconfigured")
	}
	gw := mgr.Gateway("razorpay")
	if _, err := gw.CreateIntent(context.Background(), IntentRequest{}); !errors.Is(err, ErrGatewayUnavailable) {
		t.Fatalf("expected ErrGatewayUnavailable, got %v", err)
	}
	if _, err := gw.ParseWebhook(context.Background(), WebhookRequest{}); !errors.Is(err, ErrGatewayUnavailable) {
		t.Fatalf("expected ErrGatewayUnavailable, got %v", err)
	}
}

func TestManagerRejectsDuplicateRegistration(t *testing.T) {
	if _, err := NewManager(&fakeGateway{name: "stripe"}, &fakeGateway{name: "stripe"}); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
}

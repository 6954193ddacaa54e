package services

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/RANAPRINCE06/Watch/internal/domain"
	"github.com/RANAPRINCE06/Watch/internal/payments"
	"github.com/RANAPRINCE06/Watch/internal/platform/auth"
)

const (
	testKeySecret  = "rzp-key-secret"
	testHookSecret = "rzp-hook-secret"
)

type fakeRazorpayOrders struct {
	mu    sync.Mutex
	calls []map[string]interface{}
	err   error
}

func (f *fakeRazorpayOrders) Create(data map[string]interface{}, _ map[string]string) (map[string]interface{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, data)
	if f.err != nil {
		return nil, f.err
	}
	return map[string]interface{}{
		"id":       fmt.Sprintf("order_rzp_%d", len(f.calls)),
		"amount":   float64(data["amount"].(int64)),
		"currency": data["currency"],
	}, nil
}

type failingDeduper struct{}

func (failingDeduper) UseNonce(context.Context, string, string, time.Time) (bool, error) {
	return false, errStubBoom
}

func (failingDeduper) ReleaseNonce(context.Context, string, string) error { return nil }

type paymentFixture struct {
	svc      *paymentService
	orders   *memOrderRepo
	products *memProductRepo
	rzp      *fakeRazorpayOrders
	mailer   *recordingMailer
	events   *recordingPublisher
	logs     *recordingLogger
	checkout *auth.HMACSigner
	hooks    *auth.HMACSigner
}

func newPaymentFixture(t *testing.T, deduper WebhookDeduper, orders ...Order) paymentFixture {
	t.Helper()
	products := newMemProductRepo(testProducts()...)
	f := paymentFixture{
		orders:   newMemOrderRepo(products, orders...),
		products: products,
		rzp:      &fakeRazorpayOrders{},
		mailer:   &recordingMailer{},
		events:   &recordingPublisher{},
		logs:     &recordingLogger{},
	}
	gw, err := payments.NewRazorpayGateway(payments.RazorpayConfig{
		KeyID:         "rzp_test_key",
		KeySecret:     testKeySecret,
		WebhookSecret: testHookSecret,
		Orders:        f.rzp,
	})
	if err != nil {
		t.Fatalf("new razorpay gateway: %v", err)
	}
	manager, err := payments.NewManager(gw)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if f.checkout, err = auth.NewHMACSigner(testKeySecret); err != nil {
		t.Fatalf("checkout signer: %v", err)
	}
	if f.hooks, err = auth.NewHMACSigner(testHookSecret); err != nil {
		t.Fatalf("webhook signer: %v", err)
	}

	svc, err := NewPaymentService(PaymentServiceDeps{
		Orders:   f.orders,
		Gateways: manager,
		Mailer:   f.mailer,
		Events:   f.events,
		Deduper:  deduper,
		Clock:    time.Now,
		Logger:   f.logs.log,
	})
	if err != nil {
		t.Fatalf("new payment service: %v", err)
	}
	f.svc = svc.(*paymentService)
	f.svc.notifications = make(chan struct{}, 8)
	return f
}

func (f paymentFixture) waitForEmail(t *testing.T) {
	t.Helper()
	select {
	case <-f.svc.notifications:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for confirmation email")
	}
}

func (f paymentFixture) assertNoEmail(t *testing.T) {
	t.Helper()
	select {
	case <-f.svc.notifications:
		t.Fatalf("unexpected confirmation email")
	case <-time.After(50 * time.Millisecond):
	}
}

func awaitingPayment(id string) Order {
	o := pendingOrder(id, "owner", domain.OrderPending)
	o.Gateway.OrderID = "order_rzp_" + id
	return o
}

func TestPaymentServiceCreateIntent(t *testing.T) {
	cod := pendingOrder("cod", "owner", domain.OrderPending)
	cod.PaymentMethod = domain.PaymentMethodCOD
	paid := pendingOrder("paid", "owner", domain.OrderConfirmed)
	paid.PaymentStatus = domain.PaymentPaid
	cancelled := pendingOrder("cancelled", "owner", domain.OrderCancelled)

	f := newPaymentFixture(t, nil, pendingOrder("o1", "owner", domain.OrderPending), cod, paid, cancelled)
	ctx := context.Background()

	intent, err := f.svc.CreateIntent(ctx, CreateIntentCommand{UserID: "owner", OrderID: "o1"})
	if err != nil {
		t.Fatalf("create intent: %v", err)
	}
	if intent.Provider != payments.ProviderRazorpay || intent.GatewayOrderID != "order_rzp_1" || intent.PublicKey != "rzp_test_key" {
		t.Fatalf("unexpected intent %+v", intent)
	}
	if intent.Amount != 6372000 || intent.Currency != "INR" {
		t.Fatalf("expected amount in paise, got %d %s", intent.Amount, intent.Currency)
	}
	if got := f.orders.get("o1").Gateway.OrderID; got != "order_rzp_1" {
		t.Fatalf("expected gateway order recorded, got %q", got)
	}

	cases := []struct {
		cmd  CreateIntentCommand
		want error
	}{
		{CreateIntentCommand{UserID: "owner", OrderID: "cod"}, ErrPaymentNotRequired},
		{CreateIntentCommand{UserID: "owner", OrderID: "paid"}, ErrPaymentAlreadyPaid},
		{CreateIntentCommand{UserID: "owner", OrderID: "cancelled"}, ErrPaymentOrderCancelled},
		{CreateIntentCommand{UserID: "intruder", OrderID: "o1"}, ErrOrderNotFound},
		{CreateIntentCommand{UserID: "owner", OrderID: "o1", Provider: "stripe"}, ErrPaymentGatewayUnavailable},
		{CreateIntentCommand{UserID: "owner", OrderID: "o1", Provider: "paypal"}, ErrPaymentInvalidInput},
		{CreateIntentCommand{UserID: "owner"}, ErrPaymentInvalidInput},
	}
	for _, tc := range cases {
		if _, err := f.svc.CreateIntent(ctx, tc.cmd); !errors.Is(err, tc.want) {
			t.Fatalf("%+v: expected %v, got %v", tc.cmd, tc.want, err)
		}
	}
}

func TestPaymentServiceCreateIntentGatewayFailure(t *testing.T) {
	f := newPaymentFixture(t, nil, pendingOrder("o1", "owner", domain.OrderPending))
	f.rzp.err = errStubBoom

	if _, err := f.svc.CreateIntent(context.Background(), CreateIntentCommand{UserID: "owner", OrderID: "o1"}); !errors.Is(err, ErrPaymentGatewayFailed) {
		t.Fatalf("expected gateway failure, got %v", err)
	}
	if got := f.orders.get("o1").Gateway.OrderID; got != "" {
		t.Fatalf("expected no gateway order recorded, got %q", got)
	}
}

func TestPaymentServiceConfirmPaymentIsIdempotent(t *testing.T) {
	f := newPaymentFixture(t, nil, awaitingPayment("o1"))
	ctx := context.Background()
	cmd := ConfirmPaymentCommand{
		UserID:         "owner",
		OrderID:        "o1",
		Provider:       "razorpay",
		GatewayOrderID: "order_rzp_o1",
		PaymentID:      "pay_1",
		Signature:      f.checkout.SignParts("order_rzp_o1", "pay_1"),
	}

	first, err := f.svc.ConfirmPayment(ctx, cmd)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if first.AlreadyPaid {
		t.Fatalf("first confirmation must transition")
	}
	if first.Order.PaymentStatus != domain.PaymentPaid || first.Order.Status != domain.OrderConfirmed {
		t.Fatalf("unexpected statuses %s/%s", first.Order.PaymentStatus, first.Order.Status)
	}
	if first.Order.Gateway.PaymentID != "pay_1" || first.Order.PaidAt == nil {
		t.Fatalf("expected payment recorded, got %+v", first.Order)
	}
	f.waitForEmail(t)

	second, err := f.svc.ConfirmPayment(ctx, cmd)
	if err != nil {
		t.Fatalf("second confirm: %v", err)
	}
	if !second.AlreadyPaid {
		t.Fatalf("expected second confirmation to report already paid")
	}
	f.assertNoEmail(t)

	if stock := f.products.stock("p1"); stock != 3 {
		t.Fatalf("expected stock decremented once to 3, got %d", stock)
	}
	if f.orders.confirms != 1 {
		t.Fatalf("expected a single transition, got %d", f.orders.confirms)
	}
	sent := f.mailer.messages()
	if len(sent) != 1 {
		t.Fatalf("expected one email, got %d", len(sent))
	}
	if sent[0].To != "Asha@Example.com" || sent[0].Subject != "Order Confirmed #o1" {
		t.Fatalf("unexpected email %+v", sent[0])
	}
	if got := f.events.types(); !reflect.DeepEqual(got, []string{orderEventPaid}) {
		t.Fatalf("unexpected events %v", got)
	}
}

func TestPaymentServiceConfirmPaymentRejectsTampering(t *testing.T) {
	f := newPaymentFixture(t, nil, awaitingPayment("o1"), awaitingPayment("o2"))
	ctx := context.Background()

	cases := map[string]ConfirmPaymentCommand{
		"bad signature": {
			UserID: "owner", OrderID: "o1", Provider: "razorpay",
			GatewayOrderID: "order_rzp_o1", PaymentID: "pay_1", Signature: f.checkout.SignParts("order_rzp_o1", "pay_2"),
		},
		"foreign gateway order": {
			UserID: "owner", OrderID: "o1", Provider: "razorpay",
			GatewayOrderID: "order_rzp_o2", PaymentID: "pay_1", Signature: f.checkout.SignParts("order_rzp_o2", "pay_1"),
		},
		"missing signature": {
			UserID: "owner", OrderID: "o1", Provider: "razorpay",
			GatewayOrderID: "order_rzp_o1", PaymentID: "pay_1",
		},
	}
	for name, cmd := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := f.svc.ConfirmPayment(ctx, cmd); !errors.Is(err, ErrPaymentInvalidSignature) {
				t.Fatalf("expected invalid signature, got %v", err)
			}
		})
	}

	if got := f.orders.get("o1"); got.PaymentStatus != domain.PaymentPending || got.Status != domain.OrderPending {
		t.Fatalf("order must be untouched, got %s/%s", got.PaymentStatus, got.Status)
	}
	if stock := f.products.stock("p1"); stock != 5 {
		t.Fatalf("stock must be untouched, got %d", stock)
	}
	f.assertNoEmail(t)
}

func TestPaymentServiceConfirmPaymentRejectsForeignPaymentWithoutIntent(t *testing.T) {
	cheap := awaitingPayment("cheap")
	pricey := pendingOrder("pricey", "owner", domain.OrderPending)
	f := newPaymentFixture(t, nil, cheap, pricey)
	ctx := context.Background()

	_, err := f.svc.ConfirmPayment(ctx, ConfirmPaymentCommand{
		UserID:         "owner",
		OrderID:        "pricey",
		Provider:       "razorpay",
		GatewayOrderID: "order_rzp_cheap",
		PaymentID:      "pay_cheap",
		Signature:      f.checkout.SignParts("order_rzp_cheap", "pay_cheap"),
	})
	if !errors.Is(err, ErrPaymentInvalidSignature) {
		t.Fatalf("expected invalid signature, got %v", err)
	}
	if got := f.orders.get("pricey"); got.PaymentStatus != domain.PaymentPending {
		t.Fatalf("order without intent must stay pending, got %s", got.PaymentStatus)
	}
	if stock := f.products.stock("p1"); stock != 5 {
		t.Fatalf("stock must be untouched, got %d", stock)
	}
	if f.orders.confirms != 0 {
		t.Fatalf("expected no transition, got %d", f.orders.confirms)
	}

	if _, err := f.svc.ConfirmPayment(ctx, ConfirmPaymentCommand{
		UserID:         "owner",
		OrderID:        "cheap",
		Provider:       "razorpay",
		GatewayOrderID: "order_rzp_cheap",
		PaymentID:      "pay_cheap",
		Signature:      f.checkout.SignParts("order_rzp_cheap", "pay_cheap"),
	}); err != nil {
		t.Fatalf("confirm own order: %v", err)
	}
	f.waitForEmail(t)
}

func TestPaymentServiceWebhookAfterCancelKeepsStock(t *testing.T) {
	cancelled := awaitingPayment("o1")
	cancelled.Status = domain.OrderCancelled
	f := newPaymentFixture(t, nil, cancelled)

	res, err := f.svc.HandleWebhook(context.Background(), "razorpay", f.webhook("payment.captured", "order_rzp_o1", "evt_1"))
	if err != nil {
		t.Fatalf("webhook: %v", err)
	}
	if !res.Changed {
		t.Fatalf("expected payment to be recorded, got %+v", res)
	}
	got := f.orders.get("o1")
	if got.PaymentStatus != domain.PaymentPaid || got.Status != domain.OrderCancelled {
		t.Fatalf("unexpected statuses %s/%s", got.PaymentStatus, got.Status)
	}
	if got.Gateway.PaymentID != "pay_hook" {
		t.Fatalf("expected payment id recorded, got %q", got.Gateway.PaymentID)
	}
	if stock := f.products.stock("p1"); stock != 5 {
		t.Fatalf("stock must not be committed for a cancelled order, got %d", stock)
	}
	if !f.logs.has("payment.paid_after_cancel.error") {
		t.Fatalf("expected paid after cancel to be reported")
	}
	f.assertNoEmail(t)
	if len(f.mailer.messages()) != 0 {
		t.Fatalf("cancelled order must not get a confirmation email")
	}
}

func TestPaymentServiceConfirmPaymentOversold(t *testing.T) {
	o := awaitingPayment("o1")
	o.Items = []OrderItem{{ProductID: "p2", Name: "Gold Dial", UnitPrice: 200000, Quantity: 3}}
	f := newPaymentFixture(t, nil, o)

	_, err := f.svc.ConfirmPayment(context.Background(), ConfirmPaymentCommand{
		UserID: "owner", OrderID: "o1", Provider: "razorpay",
		PaymentID: "pay_1", Signature: f.checkout.SignParts("order_rzp_o1", "pay_1"),
	})
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	f.waitForEmail(t)
	if stock := f.products.stock("p2"); stock != 0 {
		t.Fatalf("expected stock clamped at 0, got %d", stock)
	}
	if !f.logs.has("payment.stock.oversold.error") {
		t.Fatalf("expected oversold to be logged")
	}
}

func TestPaymentServiceEmailFailureIsSwallowed(t *testing.T) {
	f := newPaymentFixture(t, nil, awaitingPayment("o1"))
	f.mailer.err = errStubBoom

	res, err := f.svc.ConfirmPayment(context.Background(), ConfirmPaymentCommand{
		UserID: "owner", OrderID: "o1", Provider: "razorpay",
		GatewayOrderID: "order_rzp_o1", PaymentID: "pay_1", Signature: f.checkout.SignParts("order_rzp_o1", "pay_1"),
	})
	if err != nil {
		t.Fatalf("confirm must succeed despite mail failure: %v", err)
	}
	if res.Order.PaymentStatus != domain.PaymentPaid {
		t.Fatalf("expected paid order, got %s", res.Order.PaymentStatus)
	}
	f.waitForEmail(t)
	if !f.logs.has("payment.email.failed") {
		t.Fatalf("expected email failure to be logged")
	}
}

func (f paymentFixture) webhook(event, gatewayOrderID, eventID string) payments.WebhookRequest {
	payload := []byte(fmt.Sprintf(
		`{"event":%q,"payload":{"payment":{"entity":{"id":"pay_hook","order_id":%q}}}}`,
		event, gatewayOrderID,
	))
	return payments.WebhookRequest{Payload: payload, Signature: f.hooks.Sign(payload), EventID: eventID}
}

func TestPaymentServiceWebhookDeduplicates(t *testing.T) {
	f := newPaymentFixture(t, auth.NewInMemoryNonceStore(), awaitingPayment("o1"))
	ctx := context.Background()
	req := f.webhook("payment.captured", "order_rzp_o1", "evt_1")

	first, err := f.svc.HandleWebhook(ctx, "razorpay", req)
	if err != nil {
		t.Fatalf("webhook: %v", err)
	}
	if !first.Changed || first.Duplicate || first.OrderID != "o1" {
		t.Fatalf("unexpected first result %+v", first)
	}
	f.waitForEmail(t)

	second, err := f.svc.HandleWebhook(ctx, "razorpay", req)
	if err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if !second.Duplicate || second.Changed {
		t.Fatalf("expected duplicate, got %+v", second)
	}

	other, err := f.svc.HandleWebhook(ctx, "razorpay", f.webhook("order.paid", "order_rzp_o1", "evt_2"))
	if err != nil {
		t.Fatalf("second event: %v", err)
	}
	if other.Changed || other.Duplicate {
		t.Fatalf("expected already paid order to stay unchanged, got %+v", other)
	}
	f.assertNoEmail(t)
	if stock := f.products.stock("p1"); stock != 3 {
		t.Fatalf("expected a single stock decrement, got %d", stock)
	}
}

func TestPaymentServiceWebhookReleasesNonceOnFailure(t *testing.T) {
	f := newPaymentFixture(t, auth.NewInMemoryNonceStore())
	ctx := context.Background()
	req := f.webhook("payment.captured", "order_rzp_late", "evt_1")

	if _, err := f.svc.HandleWebhook(ctx, "razorpay", req); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected unmatched order, got %v", err)
	}

	late := awaitingPayment("late")
	if _, err := f.orders.Insert(ctx, late); err != nil {
		t.Fatalf("insert: %v", err)
	}
	res, err := f.svc.HandleWebhook(ctx, "razorpay", req)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if res.Duplicate || !res.Changed {
		t.Fatalf("expected retry to be processed, got %+v", res)
	}
	f.waitForEmail(t)
}

func TestPaymentServiceWebhookPaymentFailed(t *testing.T) {
	f := newPaymentFixture(t, failingDeduper{}, awaitingPayment("o1"))
	ctx := context.Background()

	res, err := f.svc.HandleWebhook(ctx, "razorpay", f.webhook("payment.failed", "order_rzp_o1", "evt_1"))
	if err != nil {
		t.Fatalf("webhook: %v", err)
	}
	if !res.Changed {
		t.Fatalf("expected failure recorded")
	}
	if got := f.orders.get("o1"); got.PaymentStatus != domain.PaymentFailed || got.Status != domain.OrderPending {
		t.Fatalf("unexpected statuses %s/%s", got.PaymentStatus, got.Status)
	}
	if !f.logs.has("payment.webhook.dedupe.failed") {
		t.Fatalf("expected dedupe failure to be logged")
	}

	res, err = f.svc.HandleWebhook(ctx, "razorpay", f.webhook("payment.failed", "order_rzp_o1", "evt_2"))
	if err != nil || res.Changed {
		t.Fatalf("expected repeated failure to be a no-op, got %+v %v", res, err)
	}

	res, err = f.svc.HandleWebhook(ctx, "razorpay", f.webhook("payment.captured", "order_rzp_o1", "evt_3"))
	if err != nil || !res.Changed {
		t.Fatalf("expected retry after failure to confirm, got %+v %v", res, err)
	}
	f.waitForEmail(t)
	if got := f.orders.get("o1").PaymentStatus; got != domain.PaymentPaid {
		t.Fatalf("expected paid after retry, got %s", got)
	}
	if got := f.events.types(); !reflect.DeepEqual(got, []string{orderEventPaymentFailed, orderEventPaid}) {
		t.Fatalf("unexpected events %v", got)
	}
}

func TestPaymentServiceWebhookRejectsBadSignature(t *testing.T) {
	f := newPaymentFixture(t, auth.NewInMemoryNonceStore(), awaitingPayment("o1"))
	req := f.webhook("payment.captured", "order_rzp_o1", "evt_1")
	req.Signature = f.hooks.Sign([]byte("tampered"))

	if _, err := f.svc.HandleWebhook(context.Background(), "razorpay", req); !errors.Is(err, ErrPaymentInvalidSignature) {
		t.Fatalf("expected invalid signature, got %v", err)
	}
	if _, err := f.svc.HandleWebhook(context.Background(), "stripe", req); !errors.Is(err, ErrPaymentGatewayUnavailable) {
		t.Fatalf("expected unconfigured stripe, got %v", err)
	}
	if got := f.orders.get("o1").PaymentStatus; got != domain.PaymentPending {
		t.Fatalf("order must be untouched, got %s", got)
	}
}

func TestPaymentServiceWebhookIgnoresOtherEvents(t *testing.T) {
	f := newPaymentFixture(t, auth.NewInMemoryNonceStore(), awaitingPayment("o1"))

	res, err := f.svc.HandleWebhook(context.Background(), "razorpay", f.webhook("refund.created", "order_rzp_o1", "evt_1"))
	if err != nil {
		t.Fatalf("webhook: %v", err)
	}
	if res.Outcome != payments.WebhookIgnored || res.Changed {
		t.Fatalf("unexpected result %+v", res)
	}
}

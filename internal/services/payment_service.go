package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/RANAPRINCE06/Watch/internal/domain"
	"github.com/RANAPRINCE06/Watch/internal/payments"
	"github.com/RANAPRINCE06/Watch/internal/repositories"
)

const (
	defaultNotifyTimeout    = 10 * time.Second
	defaultWebhookReplayTTL = 72 * time.Hour
)

var (
	// ErrPaymentAlreadyPaid indicates the order has already been paid.
	ErrPaymentAlreadyPaid = errors.New("payment: already paid")
	// ErrPaymentNotRequired indicates the order is cash on delivery.
	ErrPaymentNotRequired = errors.New("payment: not required for cash on delivery")
	// ErrPaymentOrderCancelled indicates the order was cancelled before payment.
	ErrPaymentOrderCancelled = errors.New("payment: order is cancelled")
	// ErrPaymentGatewayUnavailable indicates the provider is not configured.
	ErrPaymentGatewayUnavailable = errors.New("payment: gateway not configured")
	// ErrPaymentInvalidSignature indicates the callback or webhook failed verification.
	ErrPaymentInvalidSignature = errors.New("payment: invalid signature")
	// ErrPaymentIncomplete indicates the provider has not captured the payment.
	ErrPaymentIncomplete = errors.New("payment: not completed")
	// ErrPaymentInvalidInput signals a malformed payment request.
	ErrPaymentInvalidInput = errors.New("payment: invalid input")
	// ErrPaymentGatewayFailed indicates the provider call failed or timed out.
	ErrPaymentGatewayFailed = errors.New("payment: gateway request failed")

	errPaymentRepositoryMissing = errors.New("payment service: repository is not configured")
	errPaymentUnchanged         = errors.New("payment: unchanged")
)

// GatewayResolver returns the adapter for a provider key.
type GatewayResolver interface {
	Gateway(provider string) payments.Gateway
}

// WebhookDeduper remembers processed webhook event ids.
type WebhookDeduper interface {
	UseNonce(ctx context.Context, scope, nonce string, expiry time.Time) (bool, error)
	ReleaseNonce(ctx context.Context, scope, nonce string) error
}

// PaymentServiceDeps bundles collaborators for the payment reconciler.
type PaymentServiceDeps struct {
	Orders           repositories.OrderRepository
	Gateways         GatewayResolver
	Mailer           Mailer
	Events           OrderEventPublisher
	Deduper          WebhookDeduper
	Currency         string
	NotifyTimeout    time.Duration
	WebhookReplayTTL time.Duration
	Clock            func() time.Time
	Logger           func(ctx context.Context, event string, fields map[string]any)
}

type paymentService struct {
	orders        repositories.OrderRepository
	gateways      GatewayResolver
	mailer        Mailer
	events        *orderEvents
	deduper       WebhookDeduper
	currency      string
	notifyTimeout time.Duration
	replayTTL     time.Duration
	clock         func() time.Time
	logger        func(ctx context.Context, event string, fields map[string]any)
	// notifications, when set, receives a value after every confirmation email attempt.
	notifications chan struct{}
}

// NewPaymentService wires the payment reconciler.
func NewPaymentService(deps PaymentServiceDeps) (PaymentService, error) {
	if deps.Orders == nil {
		return nil, errPaymentRepositoryMissing
	}
	if deps.Gateways == nil {
		return nil, errors.New("payment service: gateway resolver is not configured")
	}
	svc := &paymentService{
		orders:        deps.Orders,
		gateways:      deps.Gateways,
		mailer:        deps.Mailer,
		deduper:       deps.Deduper,
		currency:      strings.ToUpper(strings.TrimSpace(deps.Currency)),
		notifyTimeout: deps.NotifyTimeout,
		replayTTL:     deps.WebhookReplayTTL,
		clock:         utcClock(deps.Clock),
		logger:        deps.Logger,
	}
	if svc.currency == "" {
		svc.currency = "INR"
	}
	if svc.notifyTimeout <= 0 {
		svc.notifyTimeout = defaultNotifyTimeout
	}
	if svc.replayTTL <= 0 {
		svc.replayTTL = defaultWebhookReplayTTL
	}
	if svc.logger == nil {
		svc.logger = noopLogger
	}
	svc.events = newOrderEvents(deps.Events, svc.clock, svc.logger)
	return svc, nil
}

// CreateIntent opens a gateway payment for the caller's unpaid order and records the provider id on it.
func (s *paymentService) CreateIntent(ctx context.Context, cmd CreateIntentCommand) (PaymentIntent, error) {
	order, err := s.ownedOrder(ctx, cmd.UserID, cmd.OrderID)
	if err != nil {
		return PaymentIntent{}, err
	}
	if order.IsPaid() {
		return PaymentIntent{}, ErrPaymentAlreadyPaid
	}
	if order.Status == domain.OrderCancelled {
		return PaymentIntent{}, ErrPaymentOrderCancelled
	}

	method := order.PaymentMethod
	if provider := strings.ToLower(strings.TrimSpace(cmd.Provider)); provider != "" {
		method = domain.PaymentMethod(provider)
	}
	switch method {
	case domain.PaymentMethodCOD:
		return PaymentIntent{}, ErrPaymentNotRequired
	case domain.PaymentMethodRazorpay, domain.PaymentMethodStripe:
	default:
		return PaymentIntent{}, fmt.Errorf("%w: unsupported payment method %q", ErrPaymentInvalidInput, method)
	}

	intent, err := s.gateways.Gateway(string(method)).CreateIntent(ctx, payments.IntentRequest{
		OrderID:  order.ID,
		Amount:   domain.MinorUnits(order.Totals.Total),
		Currency: s.currency,
	})
	if err != nil {
		return PaymentIntent{}, s.translateGatewayError(ctx, "payment.intent.failed", order.ID, err)
	}

	if err := s.orders.SetGatewayOrder(ctx, order.ID, method, intent.GatewayOrderID, s.clock()); err != nil {
		return PaymentIntent{}, fmt.Errorf("payment: record gateway order: %w", err)
	}
	s.logger(ctx, "payment.intent.created", map[string]any{
		"orderId":        order.ID,
		"provider":       string(method),
		"gatewayOrderId": intent.GatewayOrderID,
		"amount":         intent.Amount,
	})
	return PaymentIntent{OrderID: order.ID, Provider: string(method), Intent: intent}, nil
}

// ConfirmPayment handles the client-redirect callback. The signature is verified before any state is
// read for mutation; an already paid order is returned unchanged.
func (s *paymentService) ConfirmPayment(ctx context.Context, cmd ConfirmPaymentCommand) (PaymentConfirmation, error) {
	provider := strings.ToLower(strings.TrimSpace(cmd.Provider))
	if provider != payments.ProviderRazorpay && provider != payments.ProviderStripe {
		return PaymentConfirmation{}, fmt.Errorf("%w: unsupported provider %q", ErrPaymentInvalidInput, cmd.Provider)
	}
	order, err := s.ownedOrder(ctx, cmd.UserID, cmd.OrderID)
	if err != nil {
		return PaymentConfirmation{}, err
	}

	gatewayOrderID, err := s.callbackGatewayOrderID(ctx, provider, order, cmd.GatewayOrderID)
	if err != nil {
		return PaymentConfirmation{}, err
	}

	verification, err := s.gateways.Gateway(provider).VerifyPayment(ctx, payments.VerifyRequest{
		OrderID:        order.ID,
		GatewayOrderID: gatewayOrderID,
		PaymentID:      cmd.PaymentID,
		Signature:      cmd.Signature,
		ExpectedAmount: domain.MinorUnits(order.Totals.Total),
	})
	if err != nil {
		return PaymentConfirmation{}, s.translateGatewayError(ctx, "payment.verify.failed", order.ID, err)
	}

	return s.confirm(ctx, order.ID, verification.PaymentID, "callback")
}

// callbackGatewayOrderID picks the correlation id a callback is verified against. Razorpay
// signatures only bind the gateway order and payment ids, so the stored gateway order is the only
// acceptable one; an order without an intent cannot be confirmed by callback. Stripe verification
// checks the intent's metadata and amount server-side, so a client id is accepted when none is stored.
func (s *paymentService) callbackGatewayOrderID(ctx context.Context, provider string, order Order, supplied string) (string, error) {
	supplied = strings.TrimSpace(supplied)
	stored := order.Gateway.OrderID
	switch {
	case stored == "" && provider == payments.ProviderRazorpay:
		s.logger(ctx, "payment.verify.failed", map[string]any{"orderId": order.ID, "reason": "no gateway order"})
		return "", ErrPaymentInvalidSignature
	case stored == "":
		return supplied, nil
	case supplied != "" && supplied != stored:
		s.logger(ctx, "payment.verify.failed", map[string]any{"orderId": order.ID, "reason": "gateway order mismatch"})
		return "", ErrPaymentInvalidSignature
	}
	return stored, nil
}

// HandleWebhook verifies and applies a provider webhook. Redelivered event ids are skipped.
func (s *paymentService) HandleWebhook(ctx context.Context, provider string, req payments.WebhookRequest) (WebhookResult, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	event, err := s.gateways.Gateway(provider).ParseWebhook(ctx, req)
	if err != nil {
		return WebhookResult{}, s.translateGatewayError(ctx, "payment.webhook.rejected", "", err)
	}
	result := WebhookResult{EventID: event.ID, Outcome: event.Outcome}
	if event.Outcome == payments.WebhookIgnored {
		s.logger(ctx, "payment.webhook.ignored", map[string]any{"provider": provider, "type": event.Type})
		return result, nil
	}

	scope := "webhook:" + provider
	if s.deduper != nil && event.ID != "" {
		fresh, err := s.deduper.UseNonce(ctx, scope, event.ID, s.clock().Add(s.replayTTL))
		if err != nil {
			s.logger(ctx, "payment.webhook.dedupe.failed", map[string]any{"provider": provider, "eventId": event.ID, "error": err.Error()})
		} else if !fresh {
			result.Duplicate = true
			return result, nil
		}
	}

	result, err = s.applyWebhook(ctx, provider, event, result)
	if err != nil && s.deduper != nil && event.ID != "" {
		if releaseErr := s.deduper.ReleaseNonce(ctx, scope, event.ID); releaseErr != nil {
			s.logger(ctx, "payment.webhook.release.failed", map[string]any{"eventId": event.ID, "error": releaseErr.Error()})
		}
	}
	return result, err
}

func (s *paymentService) applyWebhook(ctx context.Context, provider string, event payments.WebhookEvent, result WebhookResult) (WebhookResult, error) {
	order, err := s.orders.FindByGatewayOrderID(ctx, event.GatewayOrderID)
	if err != nil && repositories.IsNotFound(err) && event.OrderID != "" {
		order, err = s.orders.FindByID(ctx, event.OrderID)
	}
	if err != nil {
		if repositories.IsNotFound(err) {
			s.logger(ctx, "payment.webhook.unmatched", map[string]any{
				"provider":       provider,
				"gatewayOrderId": event.GatewayOrderID,
				"eventId":        event.ID,
			})
			return result, ErrOrderNotFound
		}
		return result, err
	}
	result.OrderID = order.ID

	switch event.Outcome {
	case payments.WebhookPaymentSucceeded:
		confirmation, err := s.confirm(ctx, order.ID, event.PaymentID, "webhook")
		if err != nil {
			return result, err
		}
		result.Changed = !confirmation.AlreadyPaid
	case payments.WebhookPaymentFailed:
		changed, err := s.markFailed(ctx, order.ID, event.PaymentID)
		if err != nil {
			return result, err
		}
		result.Changed = changed
	}
	return result, nil
}

// confirm performs the paid transition shared by the callback and webhook paths.
func (s *paymentService) confirm(ctx context.Context, orderID, paymentID, source string) (PaymentConfirmation, error) {
	res, err := s.orders.ConfirmPayment(ctx, repositories.ConfirmPaymentRequest{
		OrderID:   orderID,
		PaymentID: paymentID,
		Now:       s.clock(),
	})
	if err != nil {
		if repositories.IsNotFound(err) {
			return PaymentConfirmation{}, ErrOrderNotFound
		}
		return PaymentConfirmation{}, fmt.Errorf("payment: confirm %s: %w", orderID, err)
	}
	if !res.Transitioned {
		s.logger(ctx, "payment.confirm.duplicate", map[string]any{"orderId": orderID, "source": source})
		return PaymentConfirmation{Order: res.Order, AlreadyPaid: true}, nil
	}

	s.logger(ctx, "payment.confirmed", map[string]any{
		"orderId":   orderID,
		"paymentId": paymentID,
		"source":    source,
		"total":     res.Order.Totals.Total,
	})
	if len(res.Oversold) > 0 {
		s.logger(ctx, "payment.stock.oversold.error", map[string]any{
			"orderId":  orderID,
			"products": res.Oversold,
		})
	}
	metadata := map[string]any{"source": source}
	if len(res.Oversold) > 0 {
		metadata["oversold"] = res.Oversold
	}
	if res.PaidAfterCancel {
		s.logger(ctx, "payment.paid_after_cancel.error", map[string]any{
			"orderId":   orderID,
			"paymentId": paymentID,
			"source":    source,
			"total":     res.Order.Totals.Total,
		})
		metadata["refundRequired"] = true
		s.events.publish(ctx, orderEventPaid, res.Order, metadata)
		return PaymentConfirmation{Order: res.Order}, nil
	}
	s.events.publish(ctx, orderEventPaid, res.Order, metadata)
	s.notifyConfirmed(ctx, res.Order)
	return PaymentConfirmation{Order: res.Order}, nil
}

// markFailed records a gateway-reported failure while the order is still awaiting payment.
func (s *paymentService) markFailed(ctx context.Context, orderID, paymentID string) (bool, error) {
	order, err := s.orders.Mutate(ctx, orderID, s.clock(), func(order *Order) error {
		if order.PaymentStatus != domain.PaymentPending {
			return errPaymentUnchanged
		}
		order.PaymentStatus = domain.PaymentFailed
		if paymentID != "" {
			order.Gateway.PaymentID = paymentID
		}
		return nil
	})
	if errors.Is(err, errPaymentUnchanged) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("payment: mark failed %s: %w", orderID, err)
	}
	s.logger(ctx, "payment.failed", map[string]any{"orderId": orderID, "paymentId": paymentID})
	s.events.publish(ctx, orderEventPaymentFailed, order, nil)
	return true, nil
}

// notifyConfirmed emails the buyer without blocking the caller. Failures are logged and dropped.
func (s *paymentService) notifyConfirmed(ctx context.Context, order Order) {
	if s.mailer == nil || strings.TrimSpace(order.Shipping.Email) == "" {
		return
	}
	msg := confirmationEmail(order)
	detached := context.WithoutCancel(ctx)
	go func() {
		sendCtx, cancel := context.WithTimeout(detached, s.notifyTimeout)
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				s.logger(sendCtx, "payment.email.failed", map[string]any{"orderId": order.ID, "panic": fmt.Sprint(r)})
			}
			if s.notifications != nil {
				s.notifications <- struct{}{}
			}
		}()
		if err := s.mailer.Send(sendCtx, msg); err != nil {
			s.logger(sendCtx, "payment.email.failed", map[string]any{"orderId": order.ID, "error": err.Error()})
			return
		}
		s.logger(sendCtx, "payment.email.sent", map[string]any{"orderId": order.ID})
	}()
}

func confirmationEmail(order Order) EmailMessage {
	return EmailMessage{
		To:      order.Shipping.Email,
		Subject: fmt.Sprintf("Order Confirmed #%s", order.ID),
		HTML:    fmt.Sprintf("Your order %s has been confirmed. Total: ₹%d", order.ID, order.Totals.Total),
		Text:    fmt.Sprintf("Your order %s has been confirmed. Total: ₹%d", order.ID, order.Totals.Total),
	}
}

func (s *paymentService) ownedOrder(ctx context.Context, userID, orderID string) (Order, error) {
	if strings.TrimSpace(orderID) == "" {
		return Order{}, fmt.Errorf("%w: orderId is required", ErrPaymentInvalidInput)
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return Order{}, ErrOrderNotFound
		}
		return Order{}, err
	}
	if order.UserID != userID {
		return Order{}, ErrOrderNotFound
	}
	return order, nil
}

func (s *paymentService) translateGatewayError(ctx context.Context, event, orderID string, err error) error {
	fields := map[string]any{"error": err.Error()}
	if orderID != "" {
		fields["orderId"] = orderID
	}
	s.logger(ctx, event, fields)
	switch {
	case errors.Is(err, payments.ErrGatewayUnavailable):
		return ErrPaymentGatewayUnavailable
	case errors.Is(err, payments.ErrInvalidSignature):
		return ErrPaymentInvalidSignature
	case errors.Is(err, payments.ErrPaymentIncomplete):
		return ErrPaymentIncomplete
	case errors.Is(err, payments.ErrMalformedPayload):
		return fmt.Errorf("%w: malformed webhook payload", ErrPaymentInvalidInput)
	}
	return fmt.Errorf("%w: %v", ErrPaymentGatewayFailed, err)
}

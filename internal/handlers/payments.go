package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/RANAPRINCE06/Watch/internal/payments"
	"github.com/RANAPRINCE06/Watch/internal/platform/auth"
	"github.com/RANAPRINCE06/Watch/internal/platform/httpx"
	"github.com/RANAPRINCE06/Watch/internal/platform/requestctx"
	"github.com/RANAPRINCE06/Watch/internal/services"
)

const (
	maxWebhookBodyBytes int64 = 256 * 1024

	razorpaySignatureHeader = "X-Razorpay-Signature"
	razorpayEventIDHeader   = "X-Razorpay-Event-Id"
	stripeSignatureHeader   = "Stripe-Signature"
)

// PaymentHandlers exposes checkout intents, client callbacks and provider webhooks.
type PaymentHandlers struct {
	authn    *auth.Authenticator
	payments services.PaymentService
}

// NewPaymentHandlers constructs payment handlers.
func NewPaymentHandlers(authn *auth.Authenticator, svc services.PaymentService) *PaymentHandlers {
	return &PaymentHandlers{authn: authn, payments: svc}
}

// Routes registers the /payment endpoints. Webhooks authenticate by signature, not by token.
func (h *PaymentHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/razorpay-webhook", h.razorpayWebhook)
	r.Post("/stripe-webhook", h.stripeWebhook)
	r.Group(func(protected chi.Router) {
		if h.authn != nil {
			protected.Use(h.authn.RequireAuth())
		}
		protected.Post("/create-order", h.createIntent)
		protected.Post("/verify-razorpay", h.verifyRazorpay)
		protected.Post("/verify-stripe", h.verifyStripe)
	})
}

type createIntentRequest struct {
	OrderID       string `json:"orderId"`
	PaymentMethod string `json:"paymentMethod"`
}

type razorpayIntentResponse struct {
	httpx.Success
	OrderID         string `json:"orderId"`
	RazorpayOrderID string `json:"razorpayOrderId"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
	Key             string `json:"key"`
}

type stripeIntentResponse struct {
	httpx.Success
	OrderID         string `json:"orderId"`
	ClientSecret    string `json:"clientSecret"`
	PaymentIntentID string `json:"paymentIntentId"`
}

type verifyRazorpayRequest struct {
	OrderID           string `json:"orderId"`
	RazorpayOrderID   string `json:"razorpay_order_id"`
	RazorpayPaymentID string `json:"razorpay_payment_id"`
	RazorpaySignature string `json:"razorpay_signature"`
}

type verifyStripeRequest struct {
	OrderID         string `json:"orderId"`
	PaymentIntentID string `json:"paymentIntentId"`
}

func (h *PaymentHandlers) createIntent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.payments == nil {
		writeUnavailable(ctx, w, "payment_service_unavailable")
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	var req createIntentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	if strings.TrimSpace(req.OrderID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "orderId is required", http.StatusBadRequest))
		return
	}

	intent, err := h.payments.CreateIntent(ctx, services.CreateIntentCommand{
		UserID:   identity.UID,
		OrderID:  strings.TrimSpace(req.OrderID),
		Provider: req.PaymentMethod,
	})
	if err != nil {
		writePaymentError(ctx, w, err)
		return
	}

	if intent.Provider == payments.ProviderStripe {
		httpx.WriteJSON(w, http.StatusOK, stripeIntentResponse{
			Success:         httpx.OK(),
			OrderID:         intent.OrderID,
			ClientSecret:    intent.ClientSecret,
			PaymentIntentID: intent.GatewayOrderID,
		})
		return
	}
	httpx.WriteJSON(w, http.StatusOK, razorpayIntentResponse{
		Success:         httpx.OK(),
		OrderID:         intent.OrderID,
		RazorpayOrderID: intent.GatewayOrderID,
		Amount:          intent.Amount,
		Currency:        intent.Currency,
		Key:             intent.PublicKey,
	})
}

func (h *PaymentHandlers) verifyRazorpay(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.payments == nil {
		writeUnavailable(ctx, w, "payment_service_unavailable")
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	var req verifyRazorpayRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	if strings.TrimSpace(req.OrderID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "orderId is required", http.StatusBadRequest))
		return
	}

	confirmation, err := h.payments.ConfirmPayment(ctx, services.ConfirmPaymentCommand{
		UserID:         identity.UID,
		OrderID:        strings.TrimSpace(req.OrderID),
		Provider:       payments.ProviderRazorpay,
		GatewayOrderID: strings.TrimSpace(req.RazorpayOrderID),
		PaymentID:      strings.TrimSpace(req.RazorpayPaymentID),
		Signature:      strings.TrimSpace(req.RazorpaySignature),
	})
	if err != nil {
		writePaymentError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, orderResponse{Success: httpx.OK(), Order: buildOrderPayload(confirmation.Order)})
}

func (h *PaymentHandlers) verifyStripe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.payments == nil {
		writeUnavailable(ctx, w, "payment_service_unavailable")
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	var req verifyStripeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	if strings.TrimSpace(req.OrderID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "orderId is required", http.StatusBadRequest))
		return
	}

	confirmation, err := h.payments.ConfirmPayment(ctx, services.ConfirmPaymentCommand{
		UserID:         identity.UID,
		OrderID:        strings.TrimSpace(req.OrderID),
		Provider:       payments.ProviderStripe,
		GatewayOrderID: strings.TrimSpace(req.PaymentIntentID),
	})
	if err != nil {
		writePaymentError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, orderResponse{Success: httpx.OK(), Order: buildOrderPayload(confirmation.Order)})
}

func (h *PaymentHandlers) razorpayWebhook(w http.ResponseWriter, r *http.Request) {
	h.handleWebhook(w, r, payments.ProviderRazorpay, r.Header.Get(razorpaySignatureHeader), r.Header.Get(razorpayEventIDHeader))
}

func (h *PaymentHandlers) stripeWebhook(w http.ResponseWriter, r *http.Request) {
	h.handleWebhook(w, r, payments.ProviderStripe, r.Header.Get(stripeSignatureHeader), "")
}

// handleWebhook acknowledges with 200 "ok" once the delivery is applied, duplicated or ignored.
// Failures that a redelivery could fix answer with a non-2xx status so the provider retries.
func (h *PaymentHandlers) handleWebhook(w http.ResponseWriter, r *http.Request, provider, signature, eventID string) {
	ctx := r.Context()
	if h.payments == nil {
		writeUnavailable(ctx, w, "payment_service_unavailable")
		return
	}

	body, err := httpx.ReadBody(r, maxWebhookBodyBytes)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	result, err := h.payments.HandleWebhook(ctx, provider, payments.WebhookRequest{
		Payload:   body,
		Signature: strings.TrimSpace(signature),
		EventID:   strings.TrimSpace(eventID),
	})
	logger := requestctx.Logger(ctx).With(zap.String("provider", provider))
	if err != nil {
		if errors.Is(err, services.ErrPaymentGatewayUnavailable) {
			logger.Warn("webhook received for unconfigured gateway")
			writeWebhookAck(w)
			return
		}
		logger.Warn("webhook rejected", zap.Error(err))
		writePaymentError(ctx, w, err)
		return
	}

	logger.Info("webhook processed",
		zap.String("eventId", result.EventID),
		zap.String("outcome", string(result.Outcome)),
		zap.String("orderId", result.OrderID),
		zap.Bool("duplicate", result.Duplicate),
		zap.Bool("changed", result.Changed),
	)
	writeWebhookAck(w)
}

func writeWebhookAck(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func writePaymentError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "Order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrPaymentAlreadyPaid):
		httpx.WriteError(ctx, w, httpx.NewError("already_paid", "Already paid", http.StatusBadRequest))
	case errors.Is(err, services.ErrPaymentNotRequired):
		httpx.WriteError(ctx, w, httpx.NewError("payment_not_required", "Cash on delivery orders need no online payment", http.StatusBadRequest))
	case errors.Is(err, services.ErrPaymentOrderCancelled):
		httpx.WriteError(ctx, w, httpx.NewError("order_cancelled", "Order is cancelled", http.StatusBadRequest))
	case errors.Is(err, services.ErrPaymentGatewayUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("payment_not_configured", "Payment not configured", http.StatusBadRequest))
	case errors.Is(err, services.ErrPaymentInvalidSignature):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_signature", "Invalid signature", http.StatusBadRequest))
	case errors.Is(err, services.ErrPaymentIncomplete):
		httpx.WriteError(ctx, w, httpx.NewError("payment_incomplete", "Payment not completed", http.StatusBadRequest))
	case errors.Is(err, services.ErrPaymentInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", inputMessage(err, services.ErrPaymentInvalidInput), http.StatusBadRequest))
	case errors.Is(err, services.ErrPaymentGatewayFailed):
		httpx.WriteError(ctx, w, httpx.NewError("gateway_error", "Payment provider request failed", http.StatusBadGateway))
	default:
		writeRepositoryError(ctx, w, "payment", err)
	}
}

package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/RANAPRINCE06/Watch/internal/domain"
	"github.com/RANAPRINCE06/Watch/internal/platform/auth"
	"github.com/RANAPRINCE06/Watch/internal/platform/httpx"
	"github.com/RANAPRINCE06/Watch/internal/services"
)

const maxCartLines = 50

// OrderHandlers exposes checkout and order history endpoints.
type OrderHandlers struct {
	authn       *auth.Authenticator
	orders      services.OrderService
	coupons     services.CouponService
	invoices    services.InvoiceService
	createGuard func(http.Handler) http.Handler
}

// OrderHandlersOption customises OrderHandlers.
type OrderHandlersOption func(*OrderHandlers)

// WithOrderCreateMiddleware wraps POST /orders, typically with the idempotency middleware.
func WithOrderCreateMiddleware(mw func(http.Handler) http.Handler) OrderHandlersOption {
	return func(h *OrderHandlers) {
		h.createGuard = mw
	}
}

// NewOrderHandlers constructs a new OrderHandlers instance.
func NewOrderHandlers(authn *auth.Authenticator, orders services.OrderService, coupons services.CouponService, invoices services.InvoiceService, opts ...OrderHandlersOption) *OrderHandlers {
	h := &OrderHandlers{
		authn:    authn,
		orders:   orders,
		coupons:  coupons,
		invoices: invoices,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers the /orders endpoints. Coupon validation is public; everything else needs a token.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/validate-coupon", h.validateCoupon)
	r.Group(func(protected chi.Router) {
		if h.authn != nil {
			protected.Use(h.authn.RequireAuth())
		}
		if h.createGuard != nil {
			protected.With(h.createGuard).Post("/", h.createOrder)
		} else {
			protected.Post("/", h.createOrder)
		}
		protected.Get("/", h.listOrders)
		protected.Get("/{orderID}", h.getOrder)
		protected.Patch("/{orderID}/cancel", h.cancelOrder)
		protected.Get("/{orderID}/invoice", h.downloadInvoice)
	})
}

type validateCouponRequest struct {
	Code     string `json:"code"`
	Subtotal int64  `json:"subtotal"`
}

type validateCouponResponse struct {
	httpx.Success
	Discount   int64  `json:"discount"`
	CouponCode string `json:"couponCode"`
}

type cartLineRequest struct {
	Product  string `json:"product"`
	Quantity int    `json:"quantity"`
}

type shippingRequest struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	Address string `json:"address"`
	Pincode string `json:"pincode"`
	City    string `json:"city"`
	State   string `json:"state"`
}

type createOrderRequest struct {
	Products        []cartLineRequest `json:"products"`
	ShippingDetails *shippingRequest  `json:"shippingDetails"`
	CouponCode      string            `json:"couponCode"`
	PaymentMethod   string            `json:"paymentMethod"`
}

// validate returns field level problems. An empty map means the request is well formed.
func (req createOrderRequest) validate() map[string]string {
	problems := map[string]string{}
	if len(req.Products) == 0 {
		problems["products"] = "at least one product is required"
	}
	if len(req.Products) > maxCartLines {
		problems["products"] = "too many cart lines"
	}
	for i, line := range req.Products {
		if strings.TrimSpace(line.Product) == "" {
			problems["products["+strconv.Itoa(i)+"].product"] = "product is required"
		}
	}
	if req.ShippingDetails == nil {
		problems["shippingDetails"] = "shipping details are required"
	} else {
		s := req.ShippingDetails
		for field, value := range map[string]string{
			"name":    s.Name,
			"phone":   s.Phone,
			"email":   s.Email,
			"address": s.Address,
			"pincode": s.Pincode,
		} {
			if strings.TrimSpace(value) == "" {
				problems["shippingDetails."+field] = field + " is required"
			}
		}
	}
	if method := strings.TrimSpace(req.PaymentMethod); method != "" && !domain.PaymentMethod(strings.ToLower(method)).Valid() {
		problems["paymentMethod"] = "must be one of razorpay, stripe, cod"
	}
	return problems
}

func (req createOrderRequest) command(userID string) services.CreateOrderCommand {
	lines := make([]services.CartLine, 0, len(req.Products))
	for _, line := range req.Products {
		lines = append(lines, services.CartLine{ProductID: strings.TrimSpace(line.Product), Quantity: line.Quantity})
	}
	s := req.ShippingDetails
	return services.CreateOrderCommand{
		UserID: userID,
		Lines:  lines,
		Shipping: services.ShippingDetails{
			Name:    s.Name,
			Phone:   s.Phone,
			Email:   s.Email,
			Address: s.Address,
			Pincode: s.Pincode,
			City:    s.City,
			State:   s.State,
		},
		CouponCode:    strings.TrimSpace(req.CouponCode),
		PaymentMethod: domain.PaymentMethod(strings.ToLower(strings.TrimSpace(req.PaymentMethod))),
	}
}

type orderResponse struct {
	httpx.Success
	Order orderPayload `json:"order"`
}

type orderListResponse struct {
	httpx.Success
	Orders []orderPayload `json:"orders"`
}

func (h *OrderHandlers) validateCoupon(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.coupons == nil {
		writeUnavailable(ctx, w, "coupon_service_unavailable")
		return
	}

	var req validateCouponRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	if req.Subtotal < 0 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "subtotal must not be negative", http.StatusBadRequest))
		return
	}

	evaluation, err := h.coupons.Evaluate(ctx, req.Code, req.Subtotal)
	if err != nil {
		var rejection *services.CouponRejection
		if errors.As(err, &rejection) {
			httpx.WriteJSON(w, http.StatusOK, httpx.Success{Success: false, Message: rejection.Message})
			return
		}
		writeRepositoryError(ctx, w, "coupon", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, validateCouponResponse{
		Success:    httpx.OK(),
		Discount:   evaluation.Discount,
		CouponCode: evaluation.Code,
	})
}

func (h *OrderHandlers) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeUnavailable(ctx, w, "order_service_unavailable")
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	var req createOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	if problems := req.validate(); len(problems) > 0 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "Cart and shipping required", http.StatusBadRequest).
			WithDetails(map[string]any{"details": problems}))
		return
	}

	order, err := h.orders.CreateOrder(ctx, req.command(identity.UID))
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, orderResponse{Success: httpx.OK(), Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeUnavailable(ctx, w, "order_service_unavailable")
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	orders, err := h.orders.ListOrders(ctx, identity.UID)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, orderListResponse{Success: httpx.OK(), Orders: buildOrderPayloads(orders)})
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeUnavailable(ctx, w, "order_service_unavailable")
		return
	}
	access, ok := orderAccess(ctx, w, r)
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(ctx, access)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, orderResponse{Success: httpx.OK(), Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeUnavailable(ctx, w, "order_service_unavailable")
		return
	}
	access, ok := orderAccess(ctx, w, r)
	if !ok {
		return
	}
	// Buyers cancel only their own orders, admins go through the status endpoint.
	access.IsAdmin = false

	order, err := h.orders.CancelOrder(ctx, access)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, orderResponse{Success: httpx.OK(), Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) downloadInvoice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.invoices == nil {
		writeUnavailable(ctx, w, "invoice_service_unavailable")
		return
	}
	access, ok := orderAccess(ctx, w, r)
	if !ok {
		return
	}

	invoice, err := h.invoices.RenderInvoice(ctx, access)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	w.Header().Set("Content-Type", invoice.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", invoice.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(invoice.Body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(invoice.Body)
}

func orderAccess(ctx context.Context, w http.ResponseWriter, r *http.Request) (services.OrderAccess, bool) {
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return services.OrderAccess{}, false
	}
	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return services.OrderAccess{}, false
	}
	return services.OrderAccess{UserID: identity.UID, OrderID: orderID, IsAdmin: identity.IsAdmin()}, true
}

func writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	var stockErr *services.StockError
	switch {
	case errors.As(err, &stockErr):
		httpx.WriteError(ctx, w, httpx.NewError("insufficient_stock", "Insufficient stock for "+stockErr.ProductName, http.StatusBadRequest).
			WithDetails(map[string]any{"productId": stockErr.ProductID, "available": stockErr.Available}))
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", inputMessage(err, services.ErrOrderInvalidInput), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "Order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderCannotCancel):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_cancellable", "Cannot cancel this order", http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderInvalidState):
		httpx.WriteError(ctx, w, httpx.NewError("order_invalid_state", inputMessage(err, services.ErrOrderInvalidState), http.StatusConflict))
	default:
		writeRepositoryError(ctx, w, "order", err)
	}
}

// inputMessage strips the sentinel prefix so the shopper sees only the detail.
func inputMessage(err, sentinel error) string {
	msg := strings.TrimPrefix(err.Error(), sentinel.Error())
	msg = strings.TrimSpace(strings.TrimPrefix(msg, ":"))
	if msg == "" {
		return sentinel.Error()
	}
	return msg
}

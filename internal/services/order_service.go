package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/RANAPRINCE06/Watch/internal/domain"
	"github.com/RANAPRINCE06/Watch/internal/repositories"
)

const (
	orderEventCreated       = "order.created"
	orderEventStatusChanged = "order.status.changed"
	orderEventCancelled     = "order.cancelled"
	orderEventPaid          = "order.paid"
	orderEventPaymentFailed = "order.payment.failed"
)

var (
	// ErrOrderInvalidInput signals the caller provided invalid data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order could not be located for the caller.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderCannotCancel indicates the order has progressed past cancellation.
	ErrOrderCannotCancel = errors.New("order: cannot cancel")
	// ErrOrderInvalidState indicates an invalid status transition was attempted.
	ErrOrderInvalidState = errors.New("order: invalid status transition")
	// ErrInsufficientStock matches every *StockError.
	ErrInsufficientStock = errors.New("order: insufficient stock")

	errOrderRepositoryMissing = errors.New("order service: repository is not configured")
)

// StockError names the product that cannot cover the requested quantity.
type StockError struct {
	ProductID   string
	ProductName string
	Requested   int
	Available   int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("order: insufficient stock for %s", e.ProductName)
}

func (e *StockError) Is(target error) bool { return target == ErrInsufficientStock }

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders      repositories.OrderRepository
	Products    repositories.ProductRepository
	Coupons     repositories.CouponRepository
	Events      OrderEventPublisher
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders   repositories.OrderRepository
	products repositories.ProductRepository
	coupons  repositories.CouponRepository
	events   *orderEvents
	clock    func() time.Time
	newID    func() string
	logger   func(ctx context.Context, event string, fields map[string]any)
}

// NewOrderService wires the order builder and lifecycle operations.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil || deps.Products == nil || deps.Coupons == nil {
		return nil, errOrderRepositoryMissing
	}
	svc := &orderService{
		orders:   deps.Orders,
		products: deps.Products,
		coupons:  deps.Coupons,
		clock:    utcClock(deps.Clock),
		newID:    deps.IDGenerator,
		logger:   deps.Logger,
	}
	if svc.newID == nil {
		svc.newID = func() string { return ulid.Make().String() }
	}
	if svc.logger == nil {
		svc.logger = noopLogger
	}
	svc.events = newOrderEvents(deps.Events, svc.clock, svc.logger)
	return svc, nil
}

// CreateOrder prices the cart from stored products, applies an optional coupon and persists a
// pending order. Stock is checked for every line before anything is written.
func (s *orderService) CreateOrder(ctx context.Context, cmd CreateOrderCommand) (Order, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return Order{}, fmt.Errorf("%w: user is required", ErrOrderInvalidInput)
	}
	if len(cmd.Lines) == 0 || !shippingComplete(cmd.Shipping) {
		return Order{}, fmt.Errorf("%w: Cart and shipping required", ErrOrderInvalidInput)
	}
	if _, err := mail.ParseAddress(strings.TrimSpace(cmd.Shipping.Email)); err != nil {
		return Order{}, fmt.Errorf("%w: Valid email required", ErrOrderInvalidInput)
	}
	method := cmd.PaymentMethod
	if method == "" {
		method = domain.PaymentMethodRazorpay
	}
	if !method.Valid() {
		return Order{}, fmt.Errorf("%w: unsupported payment method %q", ErrOrderInvalidInput, method)
	}

	ids := make([]string, 0, len(cmd.Lines))
	requested := make(map[string]int, len(cmd.Lines))
	for _, line := range cmd.Lines {
		id := strings.TrimSpace(line.ProductID)
		if id == "" {
			return Order{}, fmt.Errorf("%w: product is required for every cart line", ErrOrderInvalidInput)
		}
		if _, seen := requested[id]; !seen {
			ids = append(ids, id)
		}
		requested[id] += lineQuantity(line.Quantity)
	}

	products, err := s.products.GetMany(ctx, ids)
	if err != nil {
		return Order{}, fmt.Errorf("order: load products: %w", err)
	}

	for _, id := range ids {
		product, ok := products[id]
		if !ok {
			continue
		}
		if product.Stock < requested[id] {
			return Order{}, &StockError{ProductID: id, ProductName: product.Name, Requested: requested[id], Available: product.Stock}
		}
	}

	items := make([]OrderItem, 0, len(cmd.Lines))
	var subtotal int64
	for _, line := range cmd.Lines {
		product, ok := products[strings.TrimSpace(line.ProductID)]
		if !ok {
			s.logger(ctx, "order.product.skipped", map[string]any{"productId": line.ProductID})
			continue
		}
		item := OrderItem{
			ProductID: product.ID,
			Name:      product.Name,
			UnitPrice: product.Price,
			Quantity:  lineQuantity(line.Quantity),
			Image:     product.PrimaryImage(),
		}
		subtotal += item.LineTotal()
		items = append(items, item)
	}
	if len(items) == 0 {
		return Order{}, fmt.Errorf("%w: No available products in cart", ErrOrderInvalidInput)
	}

	var applied CouponEvaluation
	if code := strings.TrimSpace(cmd.CouponCode); code != "" {
		applied, err = s.applyCoupon(ctx, code, subtotal)
		if err != nil {
			return Order{}, err
		}
	}

	now := s.clock()
	order := Order{
		ID:            s.newID(),
		UserID:        userID,
		Items:         items,
		Totals:        domain.ComputeTotals(subtotal, applied.Discount),
		CouponCode:    applied.Code,
		PaymentStatus: domain.PaymentPending,
		PaymentMethod: method,
		Status:        domain.OrderPending,
		Shipping:      normalizeShipping(cmd.Shipping),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	saved, err := s.orders.Insert(ctx, order)
	if err != nil {
		return Order{}, fmt.Errorf("order: persist: %w", err)
	}

	if applied.CouponID != "" {
		if err := s.coupons.IncrementUsage(ctx, applied.CouponID); err != nil {
			s.logger(ctx, "order.coupon.increment.failed", map[string]any{
				"orderId": saved.ID,
				"coupon":  applied.Code,
				"error":   err.Error(),
			})
		}
	}

	s.logger(ctx, "order.created", map[string]any{
		"orderId": saved.ID,
		"total":   saved.Totals.Total,
		"items":   len(saved.Items),
	})
	s.events.publish(ctx, orderEventCreated, saved, nil)
	return saved, nil
}

// applyCoupon runs the coupon checks for an order. A rejected coupon does not fail the order.
func (s *orderService) applyCoupon(ctx context.Context, code string, subtotal int64) (CouponEvaluation, error) {
	coupon, err := s.coupons.FindActiveByCode(ctx, code)
	if err != nil {
		if repositories.IsNotFound(err) {
			s.logger(ctx, "order.coupon.rejected", map[string]any{"coupon": code, "reason": string(CouponReasonInvalid)})
			return CouponEvaluation{}, nil
		}
		return CouponEvaluation{}, fmt.Errorf("order: lookup coupon: %w", err)
	}
	eval, err := evaluateCoupon(coupon, subtotal, s.clock())
	if err != nil {
		var rejection *CouponRejection
		if errors.As(err, &rejection) {
			s.logger(ctx, "order.coupon.rejected", map[string]any{"coupon": code, "reason": string(rejection.Reason)})
			return CouponEvaluation{}, nil
		}
		return CouponEvaluation{}, err
	}
	return eval, nil
}

func (s *orderService) ListOrders(ctx context.Context, userID string) ([]Order, error) {
	return s.orders.ListByUser(ctx, strings.TrimSpace(userID))
}

func (s *orderService) GetOrder(ctx context.Context, access OrderAccess) (Order, error) {
	order, err := s.orders.FindByID(ctx, access.OrderID)
	if err != nil {
		return Order{}, translateOrderError(err)
	}
	if !canAccessOrder(order, access) {
		return Order{}, ErrOrderNotFound
	}
	return order, nil
}

// CancelOrder moves a pending or confirmed order to cancelled.
func (s *orderService) CancelOrder(ctx context.Context, access OrderAccess) (Order, error) {
	now := s.clock()
	var previous domain.OrderStatus
	order, err := s.orders.Mutate(ctx, access.OrderID, now, func(order *Order) error {
		if !canAccessOrder(*order, access) {
			return ErrOrderNotFound
		}
		if !order.Status.Cancellable() {
			return ErrOrderCannotCancel
		}
		previous = order.Status
		order.Status = domain.OrderCancelled
		order.CancelledAt = &now
		return nil
	})
	if err != nil {
		return Order{}, translateOrderError(err)
	}
	s.logger(ctx, "order.cancelled", map[string]any{"orderId": order.ID, "previousStatus": string(previous)})
	s.events.publish(ctx, orderEventCancelled, order, map[string]any{"previousStatus": string(previous)})
	return order, nil
}

func (s *orderService) ListAllOrders(ctx context.Context) ([]Order, error) {
	return s.orders.ListAll(ctx)
}

// UpdateOrderStatus applies an admin transition along the order state machine. Setting the current
// status again is a no-op.
func (s *orderService) UpdateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus) (Order, error) {
	if !status.Valid() {
		return Order{}, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, status)
	}
	now := s.clock()
	var previous domain.OrderStatus
	order, err := s.orders.Mutate(ctx, orderID, now, func(order *Order) error {
		previous = order.Status
		if order.Status == status {
			return nil
		}
		if !order.Status.CanTransition(status) {
			return fmt.Errorf("%w: %s to %s", ErrOrderInvalidState, order.Status, status)
		}
		order.Status = status
		if status == domain.OrderCancelled {
			order.CancelledAt = &now
		}
		return nil
	})
	if err != nil {
		return Order{}, translateOrderError(err)
	}
	if previous != status {
		s.events.publish(ctx, orderEventStatusChanged, order, map[string]any{"previousStatus": string(previous)})
	}
	return order, nil
}

func canAccessOrder(order Order, access OrderAccess) bool {
	return access.IsAdmin || (access.UserID != "" && order.UserID == access.UserID)
}

func translateOrderError(err error) error {
	if err == nil {
		return nil
	}
	for _, sentinel := range []error{ErrOrderNotFound, ErrOrderCannotCancel, ErrOrderInvalidState, ErrOrderInvalidInput} {
		if errors.Is(err, sentinel) {
			return sentinel
		}
	}
	if repositories.IsNotFound(err) {
		return ErrOrderNotFound
	}
	return err
}

func lineQuantity(q int) int {
	if q < 1 {
		return 1
	}
	return q
}

func shippingComplete(s ShippingDetails) bool {
	for _, v := range []string{s.Name, s.Phone, s.Email, s.Address, s.Pincode} {
		if strings.TrimSpace(v) == "" {
			return false
		}
	}
	return true
}

func normalizeShipping(s ShippingDetails) ShippingDetails {
	return ShippingDetails{
		Name:    strings.TrimSpace(s.Name),
		Phone:   strings.TrimSpace(s.Phone),
		Email:   strings.ToLower(strings.TrimSpace(s.Email)),
		Address: strings.TrimSpace(s.Address),
		Pincode: strings.TrimSpace(s.Pincode),
		City:    strings.TrimSpace(s.City),
		State:   strings.TrimSpace(s.State),
	}
}

package repositories

import (
	"context"
	"time"

	"github.com/RANAPRINCE06/Watch/internal/domain"
)

// Registry exposes the repositories the services depend on.
type Registry interface {
	Products() ProductRepository
	Coupons() CouponRepository
	Orders() OrderRepository
	Wishlists() WishlistRepository
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// ProductQuery narrows what the store returns. Text filters are applied by the catalog service.
type ProductQuery struct {
	FeaturedOnly bool
	Limit        int
}

// ProductRepository persists catalog entries.
type ProductRepository interface {
	List(ctx context.Context, query ProductQuery) ([]domain.Product, error)
	Get(ctx context.Context, id string) (domain.Product, error)
	// GetMany returns the products that exist; missing ids are absent from the map.
	GetMany(ctx context.Context, ids []string) (map[string]domain.Product, error)
	Insert(ctx context.Context, product domain.Product) (domain.Product, error)
	Update(ctx context.Context, product domain.Product) (domain.Product, error)
	Delete(ctx context.Context, id string) error
}

// CouponRepository persists discount codes. Codes are stored upper case.
type CouponRepository interface {
	FindActiveByCode(ctx context.Context, code string) (domain.Coupon, error)
	IncrementUsage(ctx context.Context, couponID string) error
	List(ctx context.Context) ([]domain.Coupon, error)
	Insert(ctx context.Context, coupon domain.Coupon) (domain.Coupon, error)
}

// ConfirmPaymentRequest moves an order to paid.
type ConfirmPaymentRequest struct {
	OrderID   string
	PaymentID string
	Now       time.Time
}

// ConfirmPaymentResult reports the order after confirmation. Transitioned is false when the
// order was already paid and nothing was written.
type ConfirmPaymentResult struct {
	Order        domain.Order
	Transitioned bool
	// Oversold lists product ids whose stock would have gone negative and was clamped at zero.
	Oversold []string
	// PaidAfterCancel is set when a cancelled order was paid. Stock is left untouched and the
	// order keeps its cancelled status.
	PaidAfterCancel bool
}

// OrderMutator edits an order inside a transaction. Returning an error aborts the write.
type OrderMutator func(order *domain.Order) error

// OrderRepository persists orders and owns the paid transition.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) (domain.Order, error)
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (domain.Order, error)
	// ListByUser returns the user's orders newest first.
	ListByUser(ctx context.Context, userID string) ([]domain.Order, error)
	ListAll(ctx context.Context) ([]domain.Order, error)
	// SetGatewayOrder records the provider chosen for payment and its order or intent id.
	SetGatewayOrder(ctx context.Context, orderID string, method domain.PaymentMethod, gatewayOrderID string, now time.Time) error
	// ConfirmPayment atomically marks a pending or failed order paid and decrements stock for
	// every line. It is a no-op for orders that are already paid. Cancelled orders are marked
	// paid without touching stock.
	ConfirmPayment(ctx context.Context, req ConfirmPaymentRequest) (ConfirmPaymentResult, error)
	// Mutate loads the order, applies fn and writes it back in one transaction.
	Mutate(ctx context.Context, orderID string, now time.Time, fn OrderMutator) (domain.Order, error)
}

// WishlistRepository stores the product ids each user saved.
type WishlistRepository interface {
	Get(ctx context.Context, userID string) ([]string, error)
	// Toggle adds productID when absent and removes it when present.
	Toggle(ctx context.Context, userID, productID string) (ids []string, added bool, err error)
}

package services

import (
	"context"
	"time"

	"github.com/RANAPRINCE06/Watch/internal/domain"
	"github.com/RANAPRINCE06/Watch/internal/payments"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Product               = domain.Product
	ProductSpecifications = domain.ProductSpecifications
	Coupon                = domain.Coupon
	Order                 = domain.Order
	OrderItem             = domain.OrderItem
	ShippingDetails       = domain.ShippingDetails
)

// CatalogService answers storefront product queries.
type CatalogService interface {
	ListProducts(ctx context.Context, filter ProductListFilter) (ProductPage, error)
	FeaturedProducts(ctx context.Context) ([]Product, error)
	Categories(ctx context.Context) ([]string, error)
	Filters(ctx context.Context) (CatalogFilters, error)
	GetProduct(ctx context.Context, productID string) (ProductDetail, error)
}

// ProductAdminService maintains the catalog.
type ProductAdminService interface {
	ListProducts(ctx context.Context) ([]Product, error)
	CreateProduct(ctx context.Context, cmd UpsertProductCommand) (Product, error)
	UpdateProduct(ctx context.Context, productID string, cmd UpsertProductCommand) (Product, error)
	DeleteProduct(ctx context.Context, productID string) error
}

// CouponService validates coupon codes and maintains them.
type CouponService interface {
	Evaluate(ctx context.Context, code string, subtotal int64) (CouponEvaluation, error)
	ListCoupons(ctx context.Context) ([]Coupon, error)
	CreateCoupon(ctx context.Context, cmd CreateCouponCommand) (Coupon, error)
}

// OrderService builds orders from carts and manages their lifecycle.
type OrderService interface {
	CreateOrder(ctx context.Context, cmd CreateOrderCommand) (Order, error)
	ListOrders(ctx context.Context, userID string) ([]Order, error)
	GetOrder(ctx context.Context, access OrderAccess) (Order, error)
	CancelOrder(ctx context.Context, access OrderAccess) (Order, error)
	ListAllOrders(ctx context.Context) ([]Order, error)
	UpdateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus) (Order, error)
}

// PaymentService reconciles gateway payments with orders.
type PaymentService interface {
	CreateIntent(ctx context.Context, cmd CreateIntentCommand) (PaymentIntent, error)
	ConfirmPayment(ctx context.Context, cmd ConfirmPaymentCommand) (PaymentConfirmation, error)
	HandleWebhook(ctx context.Context, provider string, req payments.WebhookRequest) (WebhookResult, error)
}

// InvoiceService renders order invoices.
type InvoiceService interface {
	RenderInvoice(ctx context.Context, access OrderAccess) (Invoice, error)
}

// WishlistService manages the products a user saved.
type WishlistService interface {
	GetWishlist(ctx context.Context, userID string) ([]Product, error)
	ToggleWishlist(ctx context.Context, userID, productID string) (WishlistToggle, error)
}

// OrderEventPublisher publishes order lifecycle events for downstream consumers.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
}

// OrderEvent describes an order lifecycle change.
type OrderEvent struct {
	ID            string         `json:"id"`
	Type          string         `json:"type"`
	OrderID       string         `json:"orderId"`
	UserID        string         `json:"userId,omitempty"`
	PaymentStatus string         `json:"paymentStatus"`
	OrderStatus   string         `json:"orderStatus"`
	Total         int64          `json:"total"`
	OccurredAt    time.Time      `json:"occurredAt"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// Mailer delivers transactional email.
type Mailer interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// EmailMessage is a single outgoing email. HTML is sanitized by the mailer before sending.
type EmailMessage struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Command and DTO definitions ------------------------------------------------

// ProductListFilter mirrors the storefront query string.
type ProductListFilter struct {
	Page      int
	Limit     int
	Sort      string
	Category  string
	Model     string
	StrapType string
	DialColor string
	Featured  bool
	MinPrice  *int64
	MaxPrice  *int64
}

// ProductPage is one page of catalog results.
type ProductPage struct {
	Products []Product
	Total    int
	Page     int
	Pages    int
}

// CatalogFilters lists the values shoppers can filter on.
type CatalogFilters struct {
	Models     []string
	StrapTypes []string
	DialColors []string
}

// ProductDetail is a product with related suggestions.
type ProductDetail struct {
	Product Product
	Related []Product
}

// UpsertProductCommand carries admin product fields. Nil fields keep the
// stored value on update. Images replaces the gallery when non-empty and
// NewImages is appended after it.
type UpsertProductCommand struct {
	Name           *string
	Model          *string
	Description    *string
	Price          *int64
	Images         []string
	NewImages      []string
	Category       *string
	Stock          *int
	Specifications ProductSpecificationsPatch
	Featured       *bool
}

// ProductSpecificationsPatch sets individual specification fields.
type ProductSpecificationsPatch struct {
	CaseSize        *string
	Movement        *string
	WaterResistance *string
	StrapType       *string
	DialColor       *string
	CaseMaterial    *string
}

// CouponEvaluation is an accepted coupon.
type CouponEvaluation struct {
	CouponID string
	Code     string
	Discount int64
}

// CreateCouponCommand carries admin coupon fields.
type CreateCouponCommand struct {
	Code           string
	Kind           domain.DiscountKind
	Value          float64
	MinOrderAmount int64
	MaxDiscount    int64
	ValidFrom      time.Time
	ValidUntil     time.Time
	UsageLimit     int
	Active         *bool
}

// CartLine is one requested product.
type CartLine struct {
	ProductID string
	Quantity  int
}

// CreateOrderCommand is a checkout request.
type CreateOrderCommand struct {
	UserID        string
	Lines         []CartLine
	Shipping      ShippingDetails
	CouponCode    string
	PaymentMethod domain.PaymentMethod
}

// OrderAccess identifies an order and who is asking for it.
type OrderAccess struct {
	UserID  string
	OrderID string
	IsAdmin bool
}

// CreateIntentCommand opens a gateway payment for an order.
type CreateIntentCommand struct {
	UserID  string
	OrderID string
	// Provider overrides the order's payment method when set.
	Provider string
}

// PaymentIntent is returned to the client checkout widget.
type PaymentIntent struct {
	OrderID  string
	Provider string
	payments.Intent
}

// ConfirmPaymentCommand is the client-redirect callback.
type ConfirmPaymentCommand struct {
	UserID         string
	OrderID        string
	Provider       string
	GatewayOrderID string
	PaymentID      string
	Signature      string
}

// PaymentConfirmation is the order after confirmation. AlreadyPaid is set when nothing changed.
type PaymentConfirmation struct {
	Order       Order
	AlreadyPaid bool
}

// WebhookResult summarises how a webhook delivery was handled.
type WebhookResult struct {
	EventID   string
	Outcome   payments.WebhookOutcome
	OrderID   string
	Duplicate bool
	Changed   bool
}

// Invoice is a rendered document.
type Invoice struct {
	Filename    string
	ContentType string
	Body        []byte
}

// WishlistToggle reports the wishlist after a toggle.
type WishlistToggle struct {
	ProductIDs []string
	Added      bool
}

package domain

import "time"

// Product is a catalog entry. Price is in whole rupees.
type Product struct {
	ID             string
	Name           string
	Model          string
	Description    string
	Price          int64
	Images         []string
	Category       string
	Stock          int
	Specifications ProductSpecifications
	Featured       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ProductSpecifications holds the watch attributes shoppers filter on.
type ProductSpecifications struct {
	CaseSize        string
	Movement        string
	WaterResistance string
	StrapType       string
	DialColor       string
	CaseMaterial    string
}

// PrimaryImage returns the first image or an empty string.
func (p Product) PrimaryImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

// DiscountKind distinguishes coupon arithmetic.
type DiscountKind string

const (
	DiscountPercentage DiscountKind = "percentage"
	DiscountFixed      DiscountKind = "fixed"
)

// Coupon is a redeemable discount code. Zero MaxDiscount and zero UsageLimit mean "no cap".
type Coupon struct {
	ID             string
	Code           string
	Kind           DiscountKind
	Value          float64
	MinOrderAmount int64
	MaxDiscount    int64
	ValidFrom      time.Time
	ValidUntil     time.Time
	UsageLimit     int
	UsedCount      int
	Active         bool
	CreatedAt      time.Time
}

// PaymentStatus tracks money movement for an order.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// PaymentMethod selects the gateway, or cash on delivery.
type PaymentMethod string

const (
	PaymentMethodRazorpay PaymentMethod = "razorpay"
	PaymentMethodStripe   PaymentMethod = "stripe"
	PaymentMethodCOD      PaymentMethod = "cod"
)

// Valid reports whether m is a known method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodRazorpay, PaymentMethodStripe, PaymentMethodCOD:
		return true
	}
	return false
}

// OrderStatus tracks fulfilment.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderConfirmed OrderStatus = "confirmed"
	OrderShipped   OrderStatus = "shipped"
	OrderDelivered OrderStatus = "delivered"
	OrderCancelled OrderStatus = "cancelled"
)

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderConfirmed, OrderShipped, OrderDelivered, OrderCancelled:
		return true
	}
	return false
}

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:   {OrderConfirmed, OrderCancelled},
	OrderConfirmed: {OrderShipped, OrderCancelled},
	OrderShipped:   {OrderDelivered},
}

// CanTransition reports whether the order state machine allows from -> to.
func (s OrderStatus) CanTransition(to OrderStatus) bool {
	for _, next := range orderTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Cancellable reports whether a buyer may still cancel.
func (s OrderStatus) Cancellable() bool {
	return s == OrderPending || s == OrderConfirmed
}

// OrderItem is the frozen snapshot of a product taken when the order was placed.
type OrderItem struct {
	ProductID string
	Name      string
	UnitPrice int64
	Quantity  int
	Image     string
}

// LineTotal returns unit price times quantity.
func (i OrderItem) LineTotal() int64 {
	return i.UnitPrice * int64(i.Quantity)
}

// ShippingDetails is where and to whom the order ships.
type ShippingDetails struct {
	Name    string
	Phone   string
	Email   string
	Address string
	Pincode string
	City    string
	State   string
}

// GatewayRefs correlates an order with the payment provider's objects.
type GatewayRefs struct {
	OrderID   string
	PaymentID string
}

// Order is a placed order. Amounts are whole rupees and are fixed at creation.
type Order struct {
	ID            string
	UserID        string
	Items         []OrderItem
	Totals        Totals
	CouponCode    string
	PaymentStatus PaymentStatus
	PaymentMethod PaymentMethod
	Gateway       GatewayRefs
	Status        OrderStatus
	Shipping      ShippingDetails
	CreatedAt     time.Time
	UpdatedAt     time.Time
	PaidAt        *time.Time
	CancelledAt   *time.Time
}

// IsPaid reports whether payment has been captured.
func (o Order) IsPaid() bool { return o.PaymentStatus == PaymentPaid }

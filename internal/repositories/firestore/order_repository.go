package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/RANAPRINCE06/Watch/internal/domain"
	pfirestore "github.com/RANAPRINCE06/Watch/internal/platform/firestore"
	"github.com/RANAPRINCE06/Watch/internal/repositories"
)

const ordersCollection = "orders"

// confirmTxAttempts bounds retries when confirmations contend on shared stock documents.
const confirmTxAttempts = 10

type orderDocument struct {
	UserID           string              `firestore:"userId"`
	Items            []orderItemDocument `firestore:"items"`
	Subtotal         int64               `firestore:"subtotal"`
	Discount         int64               `firestore:"discount"`
	Tax              int64               `firestore:"tax"`
	Total            int64               `firestore:"totalAmount"`
	CouponCode       string              `firestore:"couponCode,omitempty"`
	PaymentStatus    string              `firestore:"paymentStatus"`
	PaymentMethod    string              `firestore:"paymentMethod"`
	GatewayOrderID   string              `firestore:"gatewayOrderId,omitempty"`
	GatewayPaymentID string              `firestore:"gatewayPaymentId,omitempty"`
	Status           string              `firestore:"orderStatus"`
	Shipping         shippingDocument    `firestore:"shippingDetails"`
	CreatedAt        time.Time           `firestore:"createdAt"`
	UpdatedAt        time.Time           `firestore:"updatedAt"`
	PaidAt           *time.Time          `firestore:"paidAt,omitempty"`
	CancelledAt      *time.Time          `firestore:"cancelledAt,omitempty"`
}

type orderItemDocument struct {
	ProductID string `firestore:"productId"`
	Name      string `firestore:"name"`
	Price     int64  `firestore:"price"`
	Quantity  int    `firestore:"quantity"`
	Image     string `firestore:"image,omitempty"`
}

type shippingDocument struct {
	Name    string `firestore:"name"`
	Phone   string `firestore:"phone"`
	Email   string `firestore:"email"`
	Address string `firestore:"address"`
	Pincode string `firestore:"pincode"`
	City    string `firestore:"city,omitempty"`
	State   string `firestore:"state,omitempty"`
}

type stockDocument struct {
	Name  string `firestore:"name"`
	Stock int    `firestore:"stock"`
}

// OrderRepository stores orders and applies payment confirmation together with stock commitment.
type OrderRepository struct {
	provider *pfirestore.Provider
	orders   *pfirestore.Collection[orderDocument]
	products *pfirestore.Collection[stockDocument]
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{
		provider: provider,
		orders:   pfirestore.NewCollection[orderDocument](provider, ordersCollection),
		products: pfirestore.NewCollection[stockDocument](provider, productsCollection),
	}, nil
}

// Insert creates a new order document.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) (domain.Order, error) {
	if strings.TrimSpace(order.ID) == "" {
		return domain.Order{}, errors.New("order repository: id is required")
	}
	if err := r.orders.Create(ctx, order.ID, newOrderDocument(order)); err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

// FindByID loads an order.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	doc, err := r.orders.Get(ctx, strings.TrimSpace(orderID))
	if err != nil {
		return domain.Order{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// FindByGatewayOrderID resolves the order a provider order or intent id was issued for.
func (r *OrderRepository) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (domain.Order, error) {
	gatewayOrderID = strings.TrimSpace(gatewayOrderID)
	if gatewayOrderID == "" {
		return domain.Order{}, pfirestore.NotFound("orders.findByGatewayOrderId", "order")
	}
	docs, err := r.orders.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("gatewayOrderId", "==", gatewayOrderID).Limit(1)
	})
	if err != nil {
		return domain.Order{}, err
	}
	if len(docs) == 0 {
		return domain.Order{}, pfirestore.NotFound("orders.findByGatewayOrderId", "order for "+gatewayOrderID)
	}
	return docs[0].Data.toDomain(docs[0].ID), nil
}

// ListByUser returns the user's orders newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	return r.list(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("userId", "==", userID).OrderBy("createdAt", firestore.Desc)
	})
}

// ListAll returns every order newest first.
func (r *OrderRepository) ListAll(ctx context.Context) ([]domain.Order, error) {
	return r.list(ctx, func(q firestore.Query) firestore.Query {
		return q.OrderBy("createdAt", firestore.Desc)
	})
}

// SetGatewayOrder records the provider and correlation id for a created payment intent.
func (r *OrderRepository) SetGatewayOrder(ctx context.Context, orderID string, method domain.PaymentMethod, gatewayOrderID string, now time.Time) error {
	return r.orders.Update(ctx, orderID, []firestore.Update{
		{Path: "paymentMethod", Value: string(method)},
		{Path: "gatewayOrderId", Value: gatewayOrderID},
		{Path: "updatedAt", Value: now.UTC()},
	})
}

// ConfirmPayment marks the order paid and commits stock in one transaction. Every read happens
// before the first write. Products that no longer exist are skipped; stock that would go negative
// is clamped at zero and reported in Oversold. A cancelled order records the payment but keeps its
// stock and status.
func (r *OrderRepository) ConfirmPayment(ctx context.Context, req repositories.ConfirmPaymentRequest) (repositories.ConfirmPaymentResult, error) {
	orderRef, err := r.orders.Doc(ctx, req.OrderID)
	if err != nil {
		return repositories.ConfirmPaymentResult{}, err
	}
	now := req.Now.UTC()

	var result repositories.ConfirmPaymentResult
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		result = repositories.ConfirmPaymentResult{}

		snap, err := tx.Get(orderRef)
		if err != nil {
			return err
		}
		current, err := pfirestore.Decode[orderDocument](snap)
		if err != nil {
			return err
		}
		doc := current.Data

		switch domain.PaymentStatus(doc.PaymentStatus) {
		case domain.PaymentPaid:
			result.Order = doc.toDomain(current.ID)
			return nil
		case domain.PaymentPending, domain.PaymentFailed:
		default:
			return status.Error(codes.FailedPrecondition, fmt.Sprintf("order %s payment status %s cannot become paid", current.ID, doc.PaymentStatus))
		}

		result.PaidAfterCancel = domain.OrderStatus(doc.Status) == domain.OrderCancelled
		if !result.PaidAfterCancel {
			oversold, err := r.commitStock(ctx, tx, doc.Items, now)
			if err != nil {
				return err
			}
			result.Oversold = oversold
		}

		doc.PaymentStatus = string(domain.PaymentPaid)
		if req.PaymentID != "" {
			doc.GatewayPaymentID = req.PaymentID
		}
		if domain.OrderStatus(doc.Status) == domain.OrderPending {
			doc.Status = string(domain.OrderConfirmed)
		}
		doc.PaidAt = &now
		doc.UpdatedAt = now
		if err := tx.Set(orderRef, doc); err != nil {
			return err
		}

		result.Order = doc.toDomain(current.ID)
		result.Transitioned = true
		return nil
	}, pfirestore.WithTxAttempts(confirmTxAttempts))
	if err != nil {
		return repositories.ConfirmPaymentResult{}, pfirestore.WrapError("orders.confirmPayment", err)
	}
	return result, nil
}

// commitStock decrements stock for items inside tx, clamping at zero.
func (r *OrderRepository) commitStock(ctx context.Context, tx *firestore.Transaction, items []orderItemDocument, now time.Time) ([]string, error) {
	quantities := make(map[string]int, len(items))
	refs := make([]*firestore.DocumentRef, 0, len(items))
	for _, item := range items {
		if _, ok := quantities[item.ProductID]; !ok {
			ref, err := r.products.Doc(ctx, item.ProductID)
			if err != nil {
				return nil, err
			}
			refs = append(refs, ref)
		}
		quantities[item.ProductID] += item.Quantity
	}

	productSnaps, err := tx.GetAll(refs)
	if err != nil {
		return nil, err
	}

	var oversold []string
	for _, productSnap := range productSnaps {
		if productSnap == nil || !productSnap.Exists() {
			continue
		}
		product, err := pfirestore.Decode[stockDocument](productSnap)
		if err != nil {
			return nil, err
		}
		remaining := product.Data.Stock - quantities[product.ID]
		if remaining < 0 {
			oversold = append(oversold, product.ID)
			remaining = 0
		}
		if err := tx.Update(productSnap.Ref, []firestore.Update{
			{Path: "stock", Value: remaining},
			{Path: "updatedAt", Value: now},
		}); err != nil {
			return nil, err
		}
	}
	return oversold, nil
}

// Mutate applies fn to the stored order inside a transaction and persists the result.
func (r *OrderRepository) Mutate(ctx context.Context, orderID string, now time.Time, fn repositories.OrderMutator) (domain.Order, error) {
	ref, err := r.orders.Doc(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	var updated domain.Order
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		current, err := pfirestore.Decode[orderDocument](snap)
		if err != nil {
			return err
		}
		order := current.Data.toDomain(current.ID)
		if err := fn(&order); err != nil {
			return err
		}
		order.UpdatedAt = now.UTC()
		updated = order
		return tx.Set(ref, newOrderDocument(order))
	})
	if err != nil {
		return domain.Order{}, pfirestore.WrapError("orders.mutate", err)
	}
	return updated, nil
}

func (r *OrderRepository) list(ctx context.Context, build pfirestore.QueryBuilder) ([]domain.Order, error) {
	docs, err := r.orders.Query(ctx, build)
	if err != nil {
		return nil, err
	}
	orders := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		orders = append(orders, doc.Data.toDomain(doc.ID))
	}
	return orders, nil
}

func newOrderDocument(o domain.Order) orderDocument {
	items := make([]orderItemDocument, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, orderItemDocument{
			ProductID: item.ProductID,
			Name:      item.Name,
			Price:     item.UnitPrice,
			Quantity:  item.Quantity,
			Image:     item.Image,
		})
	}
	return orderDocument{
		UserID:           o.UserID,
		Items:            items,
		Subtotal:         o.Totals.Subtotal,
		Discount:         o.Totals.Discount,
		Tax:              o.Totals.Tax,
		Total:            o.Totals.Total,
		CouponCode:       o.CouponCode,
		PaymentStatus:    string(o.PaymentStatus),
		PaymentMethod:    string(o.PaymentMethod),
		GatewayOrderID:   o.Gateway.OrderID,
		GatewayPaymentID: o.Gateway.PaymentID,
		Status:           string(o.Status),
		Shipping: shippingDocument{
			Name:    o.Shipping.Name,
			Phone:   o.Shipping.Phone,
			Email:   o.Shipping.Email,
			Address: o.Shipping.Address,
			Pincode: o.Shipping.Pincode,
			City:    o.Shipping.City,
			State:   o.Shipping.State,
		},
		CreatedAt:   o.CreatedAt.UTC(),
		UpdatedAt:   o.UpdatedAt.UTC(),
		PaidAt:      utcPtr(o.PaidAt),
		CancelledAt: utcPtr(o.CancelledAt),
	}
}

func (d orderDocument) toDomain(id string) domain.Order {
	items := make([]domain.OrderItem, 0, len(d.Items))
	for _, item := range d.Items {
		items = append(items, domain.OrderItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: item.Price,
			Quantity:  item.Quantity,
			Image:     item.Image,
		})
	}
	return domain.Order{
		ID:     id,
		UserID: d.UserID,
		Items:  items,
		Totals: domain.Totals{
			Subtotal: d.Subtotal,
			Discount: d.Discount,
			Tax:      d.Tax,
			Total:    d.Total,
		},
		CouponCode:    d.CouponCode,
		PaymentStatus: domain.PaymentStatus(d.PaymentStatus),
		PaymentMethod: domain.PaymentMethod(d.PaymentMethod),
		Gateway: domain.GatewayRefs{
			OrderID:   d.GatewayOrderID,
			PaymentID: d.GatewayPaymentID,
		},
		Status: domain.OrderStatus(d.Status),
		Shipping: domain.ShippingDetails{
			Name:    d.Shipping.Name,
			Phone:   d.Shipping.Phone,
			Email:   d.Shipping.Email,
			Address: d.Shipping.Address,
			Pincode: d.Shipping.Pincode,
			City:    d.Shipping.City,
			State:   d.Shipping.State,
		},
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
		PaidAt:      d.PaidAt,
		CancelledAt: d.CancelledAt,
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	v := t.UTC()
	return &v
}

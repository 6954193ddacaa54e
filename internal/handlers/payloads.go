package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/RANAPRINCE06/Watch/internal/platform/auth"
	"github.com/RANAPRINCE06/Watch/internal/platform/httpx"
	"github.com/RANAPRINCE06/Watch/internal/repositories"
	"github.com/RANAPRINCE06/Watch/internal/services"
)

type specificationsPayload struct {
	CaseSize        string `json:"caseSize,omitempty"`
	Movement        string `json:"movement,omitempty"`
	WaterResistance string `json:"waterResistance,omitempty"`
	StrapType       string `json:"strapType,omitempty"`
	DialColor       string `json:"dialColor,omitempty"`
	CaseMaterial    string `json:"caseMaterial,omitempty"`
}

type productPayload struct {
	LegacyID       string                `json:"_id"`
	ID             string                `json:"id"`
	Name           string                `json:"name"`
	Model          string                `json:"model"`
	Description    string                `json:"description"`
	Price          int64                 `json:"price"`
	Images         []string              `json:"images"`
	Category       string                `json:"category"`
	Stock          int                   `json:"stock"`
	Specifications specificationsPayload `json:"specifications"`
	Featured       bool                  `json:"featured"`
	CreatedAt      string                `json:"createdAt,omitempty"`
	UpdatedAt      string                `json:"updatedAt,omitempty"`
}

type orderItemPayload struct {
	Product  string `json:"product"`
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	Quantity int    `json:"quantity"`
	Image    string `json:"image,omitempty"`
}

type shippingPayload struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	Address string `json:"address"`
	Pincode string `json:"pincode"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
}

type orderPayload struct {
	LegacyID              string             `json:"_id"`
	ID                    string             `json:"id"`
	UserID                string             `json:"userId"`
	Products              []orderItemPayload `json:"products"`
	Subtotal              int64              `json:"subtotal"`
	Discount              int64              `json:"discount"`
	GST                   int64              `json:"gst"`
	TotalAmount           int64              `json:"totalAmount"`
	CouponCode            string             `json:"couponCode,omitempty"`
	PaymentStatus         string             `json:"paymentStatus"`
	PaymentMethod         string             `json:"paymentMethod"`
	RazorpayOrderID       string             `json:"razorpayOrderId,omitempty"`
	RazorpayPaymentID     string             `json:"razorpayPaymentId,omitempty"`
	StripePaymentIntentID string             `json:"stripePaymentIntentId,omitempty"`
	OrderStatus           string             `json:"orderStatus"`
	ShippingDetails       shippingPayload    `json:"shippingDetails"`
	PaidAt                string             `json:"paidAt,omitempty"`
	CancelledAt           string             `json:"cancelledAt,omitempty"`
	CreatedAt             string             `json:"createdAt,omitempty"`
	UpdatedAt             string             `json:"updatedAt,omitempty"`
}

type couponPayload struct {
	LegacyID       string  `json:"_id"`
	ID             string  `json:"id"`
	Code           string  `json:"code"`
	DiscountType   string  `json:"discountType"`
	DiscountValue  float64 `json:"discountValue"`
	MinOrderAmount int64   `json:"minOrderAmount"`
	MaxDiscount    int64   `json:"maxDiscount,omitempty"`
	ValidFrom      string  `json:"validFrom,omitempty"`
	ValidUntil     string  `json:"validUntil"`
	UsageLimit     int     `json:"usageLimit,omitempty"`
	UsedCount      int     `json:"usedCount"`
	Active         bool    `json:"active"`
}

func buildProductPayload(p services.Product) productPayload {
	images := p.Images
	if images == nil {
		images = []string{}
	}
	return productPayload{
		LegacyID:    p.ID,
		ID:          p.ID,
		Name:        p.Name,
		Model:       p.Model,
		Description: p.Description,
		Price:       p.Price,
		Images:      images,
		Category:    p.Category,
		Stock:       p.Stock,
		Specifications: specificationsPayload{
			CaseSize:        p.Specifications.CaseSize,
			Movement:        p.Specifications.Movement,
			WaterResistance: p.Specifications.WaterResistance,
			StrapType:       p.Specifications.StrapType,
			DialColor:       p.Specifications.DialColor,
			CaseMaterial:    p.Specifications.CaseMaterial,
		},
		Featured:  p.Featured,
		CreatedAt: formatTime(p.CreatedAt),
		UpdatedAt: formatTime(p.UpdatedAt),
	}
}

func buildProductPayloads(products []services.Product) []productPayload {
	out := make([]productPayload, 0, len(products))
	for _, p := range products {
		out = append(out, buildProductPayload(p))
	}
	return out
}

func buildOrderPayload(o services.Order) orderPayload {
	items := make([]orderItemPayload, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, orderItemPayload{
			Product:  item.ProductID,
			Name:     item.Name,
			Price:    item.UnitPrice,
			Quantity: item.Quantity,
			Image:    item.Image,
		})
	}
	payload := orderPayload{
		LegacyID:      o.ID,
		ID:            o.ID,
		UserID:        o.UserID,
		Products:      items,
		Subtotal:      o.Totals.Subtotal,
		Discount:      o.Totals.Discount,
		GST:           o.Totals.Tax,
		TotalAmount:   o.Totals.Total,
		CouponCode:    o.CouponCode,
		PaymentStatus: string(o.PaymentStatus),
		PaymentMethod: string(o.PaymentMethod),
		OrderStatus:   string(o.Status),
		ShippingDetails: shippingPayload{
			Name:    o.Shipping.Name,
			Phone:   o.Shipping.Phone,
			Email:   o.Shipping.Email,
			Address: o.Shipping.Address,
			Pincode: o.Shipping.Pincode,
			City:    o.Shipping.City,
			State:   o.Shipping.State,
		},
		CreatedAt: formatTime(o.CreatedAt),
		UpdatedAt: formatTime(o.UpdatedAt),
	}
	switch o.PaymentMethod {
	case "stripe":
		payload.StripePaymentIntentID = o.Gateway.OrderID
	default:
		payload.RazorpayOrderID = o.Gateway.OrderID
		payload.RazorpayPaymentID = o.Gateway.PaymentID
	}
	if o.PaidAt != nil {
		payload.PaidAt = formatTime(*o.PaidAt)
	}
	if o.CancelledAt != nil {
		payload.CancelledAt = formatTime(*o.CancelledAt)
	}
	return payload
}

func buildOrderPayloads(orders []services.Order) []orderPayload {
	out := make([]orderPayload, 0, len(orders))
	for _, o := range orders {
		out = append(out, buildOrderPayload(o))
	}
	return out
}

func buildCouponPayload(c services.Coupon) couponPayload {
	return couponPayload{
		LegacyID:       c.ID,
		ID:             c.ID,
		Code:           c.Code,
		DiscountType:   string(c.Kind),
		DiscountValue:  c.Value,
		MinOrderAmount: c.MinOrderAmount,
		MaxDiscount:    c.MaxDiscount,
		ValidFrom:      formatTime(c.ValidFrom),
		ValidUntil:     formatTime(c.ValidUntil),
		UsageLimit:     c.UsageLimit,
		UsedCount:      c.UsedCount,
		Active:         c.Active,
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// requireIdentity writes 401 and returns false when the request carries no authenticated caller.
func requireIdentity(ctx context.Context, w http.ResponseWriter) (*auth.Identity, bool) {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "Not authorized, no token", http.StatusUnauthorized))
		return nil, false
	}
	return identity, true
}

func writeUnavailable(ctx context.Context, w http.ResponseWriter, code string) {
	httpx.WriteError(ctx, w, httpx.NewError(code, "service unavailable", http.StatusServiceUnavailable))
}

// writeBodyError maps DecodeJSON failures.
func writeBodyError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, httpx.ErrBodyTooLarge):
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body too large", http.StatusRequestEntityTooLarge))
	case errors.Is(err, httpx.ErrEmptyBody):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is required", http.StatusBadRequest))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_json", "request body must be valid JSON", http.StatusBadRequest))
	}
}

// writeRepositoryError is the fallback for storage failures that escaped service translation.
func writeRepositoryError(ctx context.Context, w http.ResponseWriter, prefix string, err error) {
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			httpx.WriteError(ctx, w, httpx.NewError(prefix+"_not_found", "Not found", http.StatusNotFound))
			return
		case repoErr.IsConflict():
			httpx.WriteError(ctx, w, httpx.NewError(prefix+"_conflict", "Conflict", http.StatusConflict))
			return
		case repoErr.IsUnavailable():
			httpx.WriteError(ctx, w, httpx.NewError(prefix+"_service_unavailable", "storage unavailable", http.StatusServiceUnavailable))
			return
		}
	}
	httpx.WriteError(ctx, w, httpx.NewError(prefix+"_error", "Server error", http.StatusInternalServerError))
}

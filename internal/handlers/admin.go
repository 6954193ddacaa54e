package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/RANAPRINCE06/Watch/internal/domain"
	"github.com/RANAPRINCE06/Watch/internal/platform/auth"
	"github.com/RANAPRINCE06/Watch/internal/platform/httpx"
	"github.com/RANAPRINCE06/Watch/internal/services"
)

// AdminHandlers exposes back-office order, catalog and coupon management.
type AdminHandlers struct {
	authn    *auth.Authenticator
	orders   services.OrderService
	products services.ProductAdminService
	coupons  services.CouponService
}

// NewAdminHandlers constructs admin handlers.
func NewAdminHandlers(authn *auth.Authenticator, orders services.OrderService, products services.ProductAdminService, coupons services.CouponService) *AdminHandlers {
	return &AdminHandlers{
		authn:    authn,
		orders:   orders,
		products: products,
		coupons:  coupons,
	}
}

// Routes registers the /admin endpoints. Every route requires the admin role.
func (h *AdminHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireAuth(auth.RoleAdmin))
	}
	r.Get("/orders", h.listOrders)
	r.Patch("/orders/{orderID}/status", h.updateOrderStatus)
	r.Get("/products", h.listProducts)
	r.Post("/products", h.createProduct)
	r.Put("/products/{productID}", h.updateProduct)
	r.Delete("/products/{productID}", h.deleteProduct)
	r.Get("/coupons", h.listCoupons)
	r.Post("/coupons", h.createCoupon)
}

type updateOrderStatusRequest struct {
	Status string `json:"status"`
}

// stringList accepts either a JSON array of strings or a comma separated string.
type stringList []string

func (l *stringList) UnmarshalJSON(data []byte) error {
	var values []string
	if err := json.Unmarshal(data, &values); err == nil {
		*l = values
		return nil
	}
	var joined string
	if err := json.Unmarshal(data, &joined); err != nil {
		return errors.New("images must be an array or a comma separated string")
	}
	values = values[:0]
	for _, part := range strings.Split(joined, ",") {
		if part = strings.TrimSpace(part); part != "" {
			values = append(values, part)
		}
	}
	*l = values
	return nil
}

type upsertProductRequest struct {
	Name           *string               `json:"name"`
	Model          *string               `json:"model"`
	Description    *string               `json:"description"`
	Price          *int64                `json:"price"`
	Images         stringList            `json:"images"`
	NewImages      stringList            `json:"newImages"`
	Category       *string               `json:"category"`
	Stock          *int                  `json:"stock"`
	Specifications specificationsRequest `json:"specifications"`
	Featured       *bool                 `json:"featured"`
}

type specificationsRequest struct {
	CaseSize        *string `json:"caseSize"`
	Movement        *string `json:"movement"`
	WaterResistance *string `json:"waterResistance"`
	StrapType       *string `json:"strapType"`
	DialColor       *string `json:"dialColor"`
	CaseMaterial    *string `json:"caseMaterial"`
}

func (req upsertProductRequest) command() services.UpsertProductCommand {
	return services.UpsertProductCommand{
		Name:        req.Name,
		Model:       req.Model,
		Description: req.Description,
		Price:       req.Price,
		Images:      []string(req.Images),
		NewImages:   []string(req.NewImages),
		Category:    req.Category,
		Stock:       req.Stock,
		Specifications: services.ProductSpecificationsPatch{
			CaseSize:        req.Specifications.CaseSize,
			Movement:        req.Specifications.Movement,
			WaterResistance: req.Specifications.WaterResistance,
			StrapType:       req.Specifications.StrapType,
			DialColor:       req.Specifications.DialColor,
			CaseMaterial:    req.Specifications.CaseMaterial,
		},
		Featured: req.Featured,
	}
}

type createCouponRequest struct {
	Code           string     `json:"code"`
	DiscountType   string     `json:"discountType"`
	DiscountValue  float64    `json:"discountValue"`
	MinOrderAmount int64      `json:"minOrderAmount"`
	MaxDiscount    int64      `json:"maxDiscount"`
	ValidFrom      *time.Time `json:"validFrom"`
	ValidUntil     *time.Time `json:"validUntil"`
	UsageLimit     int        `json:"usageLimit"`
	Active         *bool      `json:"active"`
}

func (req createCouponRequest) command() services.CreateCouponCommand {
	cmd := services.CreateCouponCommand{
		Code:           req.Code,
		Kind:           domain.DiscountKind(strings.ToLower(strings.TrimSpace(req.DiscountType))),
		Value:          req.DiscountValue,
		MinOrderAmount: req.MinOrderAmount,
		MaxDiscount:    req.MaxDiscount,
		UsageLimit:     req.UsageLimit,
		Active:         req.Active,
	}
	if req.ValidFrom != nil {
		cmd.ValidFrom = *req.ValidFrom
	}
	if req.ValidUntil != nil {
		cmd.ValidUntil = *req.ValidUntil
	}
	return cmd
}

type productResponse struct {
	httpx.Success
	Product productPayload `json:"product"`
}

type couponResponse struct {
	httpx.Success
	Coupon couponPayload `json:"coupon"`
}

type couponListResponse struct {
	httpx.Success
	Coupons []couponPayload `json:"coupons"`
}

func (h *AdminHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeUnavailable(ctx, w, "order_service_unavailable")
		return
	}
	orders, err := h.orders.ListAllOrders(ctx)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, orderListResponse{Success: httpx.OK(), Orders: buildOrderPayloads(orders)})
}

func (h *AdminHandlers) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeUnavailable(ctx, w, "order_service_unavailable")
		return
	}
	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))

	var req updateOrderStatusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	status := domain.OrderStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	if !status.Valid() {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "status must be one of pending, confirmed, shipped, delivered, cancelled", http.StatusBadRequest))
		return
	}

	order, err := h.orders.UpdateOrderStatus(ctx, orderID, status)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, orderResponse{Success: httpx.OK(), Order: buildOrderPayload(order)})
}

func (h *AdminHandlers) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.products == nil {
		writeUnavailable(ctx, w, "product_service_unavailable")
		return
	}
	products, err := h.products.ListProducts(ctx)
	if err != nil {
		writeProductAdminError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, productsResponse{Success: httpx.OK(), Products: buildProductPayloads(products)})
}

func (h *AdminHandlers) createProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.products == nil {
		writeUnavailable(ctx, w, "product_service_unavailable")
		return
	}
	var req upsertProductRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	product, err := h.products.CreateProduct(ctx, req.command())
	if err != nil {
		writeProductAdminError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, productResponse{Success: httpx.OK(), Product: buildProductPayload(product)})
}

func (h *AdminHandlers) updateProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.products == nil {
		writeUnavailable(ctx, w, "product_service_unavailable")
		return
	}
	var req upsertProductRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	product, err := h.products.UpdateProduct(ctx, strings.TrimSpace(chi.URLParam(r, "productID")), req.command())
	if err != nil {
		writeProductAdminError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, productResponse{Success: httpx.OK(), Product: buildProductPayload(product)})
}

func (h *AdminHandlers) deleteProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.products == nil {
		writeUnavailable(ctx, w, "product_service_unavailable")
		return
	}
	if err := h.products.DeleteProduct(ctx, strings.TrimSpace(chi.URLParam(r, "productID"))); err != nil {
		writeProductAdminError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, httpx.OK())
}

func (h *AdminHandlers) listCoupons(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.coupons == nil {
		writeUnavailable(ctx, w, "coupon_service_unavailable")
		return
	}
	coupons, err := h.coupons.ListCoupons(ctx)
	if err != nil {
		writeCouponAdminError(ctx, w, err)
		return
	}
	payload := make([]couponPayload, 0, len(coupons))
	for _, c := range coupons {
		payload = append(payload, buildCouponPayload(c))
	}
	httpx.WriteJSON(w, http.StatusOK, couponListResponse{Success: httpx.OK(), Coupons: payload})
}

func (h *AdminHandlers) createCoupon(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.coupons == nil {
		writeUnavailable(ctx, w, "coupon_service_unavailable")
		return
	}
	var req createCouponRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	coupon, err := h.coupons.CreateCoupon(ctx, req.command())
	if err != nil {
		writeCouponAdminError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, couponResponse{Success: httpx.OK(), Coupon: buildCouponPayload(coupon)})
}

func writeProductAdminError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrProductNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "Product not found", http.StatusNotFound))
	case errors.Is(err, services.ErrProductInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", inputMessage(err, services.ErrProductInvalidInput), http.StatusBadRequest))
	default:
		writeRepositoryError(ctx, w, "product", err)
	}
}

func writeCouponAdminError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrCouponConflict):
		httpx.WriteError(ctx, w, httpx.NewError("coupon_conflict", "Coupon code already exists", http.StatusConflict))
	case errors.Is(err, services.ErrCouponInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", inputMessage(err, services.ErrCouponInvalidInput), http.StatusBadRequest))
	default:
		writeRepositoryError(ctx, w, "coupon", err)
	}
}

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	firebaseauth "firebase.google.com/go/v4/auth"
	"github.com/stretchr/testify/require"

	"github.com/RANAPRINCE06/Watch/internal/domain"
	"github.com/RANAPRINCE06/Watch/internal/payments"
	"github.com/RANAPRINCE06/Watch/internal/platform/auth"
	"github.com/RANAPRINCE06/Watch/internal/services"
)

const (
	userToken  = "user-token"
	adminToken = "admin-token"
)

type tokenTable map[string]*firebaseauth.Token

func (t tokenTable) VerifyIDToken(_ context.Context, raw string) (*firebaseauth.Token, error) {
	if token, ok := t[raw]; ok {
		return token, nil
	}
	return nil, auth.ErrTokenInvalid
}

func testAuthenticator() *auth.Authenticator {
	return auth.NewAuthenticator(tokenTable{
		userToken:  {UID: "user-1", Claims: map[string]any{"email": "asha@example.com"}},
		adminToken: {UID: "admin-1", Claims: map[string]any{"role": "admin"}},
	})
}

// mountAt builds a router with a single registrar mounted through the given option.
func mountAt(option func(RouteRegistrar) Option, registrar RouteRegistrar) http.Handler {
	return NewRouter(option(registrar))
}

func do(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return doWithHeader(t, h, method, path, token, body, "", "")
}

func doWithHeader(t *testing.T, h http.Handler, method, path, token string, body any, header, value string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch v := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(v)
	default:
		data, err := json.Marshal(v)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if header != "" {
		req.Header.Set(header, value)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), "body: %s", rec.Body.String())
	return body
}

var errStubBoom = errors.New("boom")

func errorf(sentinel error, detail string) error {
	return fmt.Errorf("%w: %s", sentinel, detail)
}

func sampleProduct(id string) services.Product {
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	return services.Product{
		ID:          id,
		Name:        "Chrono Steel",
		Model:       "CS-1",
		Description: "Steel chronograph",
		Price:       30000,
		Images:      []string{"steel.jpg"},
		Category:    "men",
		Stock:       5,
		Specifications: services.ProductSpecifications{
			StrapType: "Steel",
			DialColor: "Black",
		},
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func sampleOrder(id string) services.Order {
	created := time.Date(2024, 6, 2, 14, 30, 0, 0, time.UTC)
	return services.Order{
		ID:     id,
		UserID: "user-1",
		Items: []services.OrderItem{
			{ProductID: "p1", Name: "Chrono Steel", UnitPrice: 30000, Quantity: 2, Image: "steel.jpg"},
		},
		Totals:        domain.ComputeTotals(60000, 6000),
		CouponCode:    "WELCOME10",
		PaymentStatus: domain.PaymentPending,
		PaymentMethod: domain.PaymentMethodRazorpay,
		Gateway:       domain.GatewayRefs{OrderID: "order_rzp_1"},
		Status:        domain.OrderPending,
		Shipping: services.ShippingDetails{
			Name:    "Asha Rao",
			Phone:   "9999999999",
			Email:   "asha@example.com",
			Address: "1 MG Road",
			Pincode: "560001",
			City:    "Bengaluru",
		},
		CreatedAt: created,
		UpdatedAt: created,
	}
}

type stubCatalogService struct {
	listFn     func(ctx context.Context, filter services.ProductListFilter) (services.ProductPage, error)
	featuredFn func(ctx context.Context) ([]services.Product, error)
	filtersFn  func(ctx context.Context) (services.CatalogFilters, error)
	getFn      func(ctx context.Context, id string) (services.ProductDetail, error)
}

func (s *stubCatalogService) ListProducts(ctx context.Context, filter services.ProductListFilter) (services.ProductPage, error) {
	if s.listFn == nil {
		return services.ProductPage{}, nil
	}
	return s.listFn(ctx, filter)
}

func (s *stubCatalogService) FeaturedProducts(ctx context.Context) ([]services.Product, error) {
	if s.featuredFn == nil {
		return nil, nil
	}
	return s.featuredFn(ctx)
}

func (s *stubCatalogService) Categories(context.Context) ([]string, error) {
	return []string{"men", "women"}, nil
}

func (s *stubCatalogService) Filters(ctx context.Context) (services.CatalogFilters, error) {
	if s.filtersFn == nil {
		return services.CatalogFilters{}, nil
	}
	return s.filtersFn(ctx)
}

func (s *stubCatalogService) GetProduct(ctx context.Context, id string) (services.ProductDetail, error) {
	if s.getFn == nil {
		return services.ProductDetail{}, services.ErrProductNotFound
	}
	return s.getFn(ctx, id)
}

type stubCouponService struct {
	evaluateFn func(ctx context.Context, code string, subtotal int64) (services.CouponEvaluation, error)
	createFn   func(ctx context.Context, cmd services.CreateCouponCommand) (services.Coupon, error)
	coupons    []services.Coupon
}

func (s *stubCouponService) Evaluate(ctx context.Context, code string, subtotal int64) (services.CouponEvaluation, error) {
	return s.evaluateFn(ctx, code, subtotal)
}

func (s *stubCouponService) ListCoupons(context.Context) ([]services.Coupon, error) {
	return s.coupons, nil
}

func (s *stubCouponService) CreateCoupon(ctx context.Context, cmd services.CreateCouponCommand) (services.Coupon, error) {
	return s.createFn(ctx, cmd)
}

type stubOrderService struct {
	createFn func(ctx context.Context, cmd services.CreateOrderCommand) (services.Order, error)
	listFn   func(ctx context.Context, userID string) ([]services.Order, error)
	getFn    func(ctx context.Context, access services.OrderAccess) (services.Order, error)
	cancelFn func(ctx context.Context, access services.OrderAccess) (services.Order, error)
	allFn    func(ctx context.Context) ([]services.Order, error)
	statusFn func(ctx context.Context, id string, status domain.OrderStatus) (services.Order, error)
	creates  int
}

func (s *stubOrderService) CreateOrder(ctx context.Context, cmd services.CreateOrderCommand) (services.Order, error) {
	s.creates++
	return s.createFn(ctx, cmd)
}

func (s *stubOrderService) ListOrders(ctx context.Context, userID string) ([]services.Order, error) {
	return s.listFn(ctx, userID)
}

func (s *stubOrderService) GetOrder(ctx context.Context, access services.OrderAccess) (services.Order, error) {
	return s.getFn(ctx, access)
}

func (s *stubOrderService) CancelOrder(ctx context.Context, access services.OrderAccess) (services.Order, error) {
	return s.cancelFn(ctx, access)
}

func (s *stubOrderService) ListAllOrders(ctx context.Context) ([]services.Order, error) {
	return s.allFn(ctx)
}

func (s *stubOrderService) UpdateOrderStatus(ctx context.Context, id string, status domain.OrderStatus) (services.Order, error) {
	return s.statusFn(ctx, id, status)
}

type stubInvoiceService struct {
	renderFn func(ctx context.Context, access services.OrderAccess) (services.Invoice, error)
}

func (s *stubInvoiceService) RenderInvoice(ctx context.Context, access services.OrderAccess) (services.Invoice, error) {
	return s.renderFn(ctx, access)
}

type stubPaymentService struct {
	intentFn  func(ctx context.Context, cmd services.CreateIntentCommand) (services.PaymentIntent, error)
	confirmFn func(ctx context.Context, cmd services.ConfirmPaymentCommand) (services.PaymentConfirmation, error)
	webhookFn func(ctx context.Context, provider string, req payments.WebhookRequest) (services.WebhookResult, error)
}

func (s *stubPaymentService) CreateIntent(ctx context.Context, cmd services.CreateIntentCommand) (services.PaymentIntent, error) {
	return s.intentFn(ctx, cmd)
}

func (s *stubPaymentService) ConfirmPayment(ctx context.Context, cmd services.ConfirmPaymentCommand) (services.PaymentConfirmation, error) {
	return s.confirmFn(ctx, cmd)
}

func (s *stubPaymentService) HandleWebhook(ctx context.Context, provider string, req payments.WebhookRequest) (services.WebhookResult, error) {
	return s.webhookFn(ctx, provider, req)
}

type stubProductAdminService struct {
	createFn func(ctx context.Context, cmd services.UpsertProductCommand) (services.Product, error)
	updateFn func(ctx context.Context, id string, cmd services.UpsertProductCommand) (services.Product, error)
	deleteFn func(ctx context.Context, id string) error
}

func (s *stubProductAdminService) ListProducts(context.Context) ([]services.Product, error) {
	return []services.Product{sampleProduct("p1")}, nil
}

func (s *stubProductAdminService) CreateProduct(ctx context.Context, cmd services.UpsertProductCommand) (services.Product, error) {
	return s.createFn(ctx, cmd)
}

func (s *stubProductAdminService) UpdateProduct(ctx context.Context, id string, cmd services.UpsertProductCommand) (services.Product, error) {
	return s.updateFn(ctx, id, cmd)
}

func (s *stubProductAdminService) DeleteProduct(ctx context.Context, id string) error {
	return s.deleteFn(ctx, id)
}

type stubWishlistService struct {
	products []services.Product
	toggleFn func(ctx context.Context, userID, productID string) (services.WishlistToggle, error)
}

func (s *stubWishlistService) GetWishlist(context.Context, string) ([]services.Product, error) {
	return s.products, nil
}

func (s *stubWishlistService) ToggleWishlist(ctx context.Context, userID, productID string) (services.WishlistToggle, error) {
	return s.toggleFn(ctx, userID, productID)
}

var (
	_ services.CatalogService      = (*stubCatalogService)(nil)
	_ services.CouponService       = (*stubCouponService)(nil)
	_ services.OrderService        = (*stubOrderService)(nil)
	_ services.InvoiceService      = (*stubInvoiceService)(nil)
	_ services.PaymentService      = (*stubPaymentService)(nil)
	_ services.ProductAdminService = (*stubProductAdminService)(nil)
	_ services.WishlistService     = (*stubWishlistService)(nil)
)

package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/RANAPRINCE06/Watch/internal/platform/httpx"
	"github.com/RANAPRINCE06/Watch/internal/services"
)

// ProductHandlers exposes the public catalog.
type ProductHandlers struct {
	catalog services.CatalogService
}

// NewProductHandlers constructs catalog handlers.
func NewProductHandlers(catalog services.CatalogService) *ProductHandlers {
	return &ProductHandlers{catalog: catalog}
}

// Routes registers the /products endpoints.
func (h *ProductHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.listProducts)
	r.Get("/featured", h.featuredProducts)
	r.Get("/categories", h.categories)
	r.Get("/filters", h.filters)
	r.Get("/{productID}", h.getProduct)
}

type productListResponse struct {
	httpx.Success
	Products []productPayload `json:"products"`
	Total    int              `json:"total"`
	Page     int              `json:"page"`
	Pages    int              `json:"pages"`
}

type productsResponse struct {
	httpx.Success
	Products []productPayload `json:"products"`
}

type productDetailResponse struct {
	httpx.Success
	Product productPayload   `json:"product"`
	Related []productPayload `json:"related"`
}

type categoriesResponse struct {
	httpx.Success
	Categories []string `json:"categories"`
}

type filtersResponse struct {
	httpx.Success
	Models     []string `json:"models"`
	StrapTypes []string `json:"strapTypes"`
	DialColors []string `json:"dialColors"`
}

func (h *ProductHandlers) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeUnavailable(ctx, w, "catalog_service_unavailable")
		return
	}

	filter, err := parseProductListFilter(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	page, err := h.catalog.ListProducts(ctx, filter)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, productListResponse{
		Success:  httpx.OK(),
		Products: buildProductPayloads(page.Products),
		Total:    page.Total,
		Page:     page.Page,
		Pages:    page.Pages,
	})
}

func (h *ProductHandlers) featuredProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeUnavailable(ctx, w, "catalog_service_unavailable")
		return
	}
	products, err := h.catalog.FeaturedProducts(ctx)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, productsResponse{Success: httpx.OK(), Products: buildProductPayloads(products)})
}

func (h *ProductHandlers) categories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeUnavailable(ctx, w, "catalog_service_unavailable")
		return
	}
	categories, err := h.catalog.Categories(ctx)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	if categories == nil {
		categories = []string{}
	}
	httpx.WriteJSON(w, http.StatusOK, categoriesResponse{Success: httpx.OK(), Categories: categories})
}

func (h *ProductHandlers) filters(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeUnavailable(ctx, w, "catalog_service_unavailable")
		return
	}
	filters, err := h.catalog.Filters(ctx)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, filtersResponse{
		Success:    httpx.OK(),
		Models:     nonNil(filters.Models),
		StrapTypes: nonNil(filters.StrapTypes),
		DialColors: nonNil(filters.DialColors),
	})
}

func (h *ProductHandlers) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeUnavailable(ctx, w, "catalog_service_unavailable")
		return
	}
	productID := strings.TrimSpace(chi.URLParam(r, "productID"))
	if productID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "product id is required", http.StatusBadRequest))
		return
	}
	detail, err := h.catalog.GetProduct(ctx, productID)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, productDetailResponse{
		Success: httpx.OK(),
		Product: buildProductPayload(detail.Product),
		Related: buildProductPayloads(detail.Related),
	})
}

func parseProductListFilter(r *http.Request) (services.ProductListFilter, error) {
	query := r.URL.Query()
	filter := services.ProductListFilter{
		Sort:      strings.TrimSpace(query.Get("sort")),
		Category:  strings.TrimSpace(query.Get("category")),
		Model:     strings.TrimSpace(query.Get("model")),
		StrapType: strings.TrimSpace(query.Get("strapType")),
		DialColor: strings.TrimSpace(query.Get("dialColor")),
		Featured:  strings.EqualFold(strings.TrimSpace(query.Get("featured")), "true"),
	}

	var err error
	if filter.Page, err = intParam(query.Get("page"), "page"); err != nil {
		return filter, err
	}
	if filter.Limit, err = intParam(query.Get("limit"), "limit"); err != nil {
		return filter, err
	}
	if filter.MinPrice, err = priceParam(query.Get("minPrice"), "minPrice"); err != nil {
		return filter, err
	}
	if filter.MaxPrice, err = priceParam(query.Get("maxPrice"), "maxPrice"); err != nil {
		return filter, err
	}
	return filter, nil
}

func intParam(raw, name string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New(name + " must be an integer")
	}
	return value, nil
}

func priceParam(raw, name string) (*int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || value < 0 {
		return nil, errors.New(name + " must be a non-negative integer")
	}
	return &value, nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func writeCatalogError(ctx context.Context, w http.ResponseWriter, err error) {
	if errors.Is(err, services.ErrProductNotFound) {
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "Product not found", http.StatusNotFound))
		return
	}
	writeRepositoryError(ctx, w, "catalog", err)
}

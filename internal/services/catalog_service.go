package services

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/RANAPRINCE06/Watch/internal/repositories"
)

const (
	defaultProductPageSize = 12
	maxProductPageSize     = 100
	featuredProductLimit   = 8
	relatedProductLimit    = 4
)

var (
	// ErrProductNotFound indicates the product does not exist.
	ErrProductNotFound = errors.New("catalog: product not found")

	errCatalogRepositoryMissing = errors.New("catalog service: repository is not configured")
)

var productSorts = map[string]func(a, b Product) bool{
	"-createdAt": func(a, b Product) bool { return a.CreatedAt.After(b.CreatedAt) },
	"createdAt":  func(a, b Product) bool { return a.CreatedAt.Before(b.CreatedAt) },
	"price":      func(a, b Product) bool { return a.Price < b.Price },
	"-price":     func(a, b Product) bool { return a.Price > b.Price },
	"name":       func(a, b Product) bool { return strings.ToLower(a.Name) < strings.ToLower(b.Name) },
	"-name":      func(a, b Product) bool { return strings.ToLower(a.Name) > strings.ToLower(b.Name) },
}

// CatalogServiceDeps bundles collaborators for the catalog service.
type CatalogServiceDeps struct {
	Products repositories.ProductRepository
}

type catalogService struct {
	products repositories.ProductRepository
}

// NewCatalogService wires a CatalogService.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Products == nil {
		return nil, errCatalogRepositoryMissing
	}
	return &catalogService{products: deps.Products}, nil
}

// ListProducts filters, sorts and paginates the catalog. Text filters are case-insensitive substring matches.
func (s *catalogService) ListProducts(ctx context.Context, filter ProductListFilter) (ProductPage, error) {
	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit < 1 {
		limit = defaultProductPageSize
	}
	if limit > maxProductPageSize {
		limit = maxProductPageSize
	}

	all, err := s.products.List(ctx, repositories.ProductQuery{FeaturedOnly: filter.Featured})
	if err != nil {
		return ProductPage{}, err
	}

	matched := make([]Product, 0, len(all))
	for _, p := range all {
		if matchesProductFilter(p, filter) {
			matched = append(matched, p)
		}
	}

	less, ok := productSorts[strings.TrimSpace(filter.Sort)]
	if !ok {
		less = productSorts["-createdAt"]
	}
	sort.SliceStable(matched, func(i, j int) bool { return less(matched[i], matched[j]) })

	total := len(matched)
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}
	return ProductPage{
		Products: matched[start:end],
		Total:    total,
		Page:     page,
		Pages:    (total + limit - 1) / limit,
	}, nil
}

func matchesProductFilter(p Product, f ProductListFilter) bool {
	if f.Featured && !p.Featured {
		return false
	}
	if !containsFold(p.Category, f.Category) ||
		!containsFold(p.Model, f.Model) ||
		!containsFold(p.Specifications.StrapType, f.StrapType) ||
		!containsFold(p.Specifications.DialColor, f.DialColor) {
		return false
	}
	if f.MinPrice != nil && p.Price < *f.MinPrice {
		return false
	}
	if f.MaxPrice != nil && p.Price > *f.MaxPrice {
		return false
	}
	return true
}

func containsFold(value, needle string) bool {
	needle = strings.TrimSpace(needle)
	if needle == "" {
		return true
	}
	return strings.Contains(strings.ToLower(value), strings.ToLower(needle))
}

func (s *catalogService) FeaturedProducts(ctx context.Context) ([]Product, error) {
	return s.products.List(ctx, repositories.ProductQuery{FeaturedOnly: true, Limit: featuredProductLimit})
}

func (s *catalogService) Categories(ctx context.Context) ([]string, error) {
	all, err := s.products.List(ctx, repositories.ProductQuery{})
	if err != nil {
		return nil, err
	}
	return distinct(all, func(p Product) string { return p.Category }), nil
}

func (s *catalogService) Filters(ctx context.Context) (CatalogFilters, error) {
	all, err := s.products.List(ctx, repositories.ProductQuery{})
	if err != nil {
		return CatalogFilters{}, err
	}
	return CatalogFilters{
		Models:     distinct(all, func(p Product) string { return p.Model }),
		StrapTypes: distinct(all, func(p Product) string { return p.Specifications.StrapType }),
		DialColors: distinct(all, func(p Product) string { return p.Specifications.DialColor }),
	}, nil
}

// GetProduct returns the product and up to four others sharing its category or model.
func (s *catalogService) GetProduct(ctx context.Context, productID string) (ProductDetail, error) {
	product, err := s.products.Get(ctx, productID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return ProductDetail{}, ErrProductNotFound
		}
		return ProductDetail{}, err
	}

	all, err := s.products.List(ctx, repositories.ProductQuery{})
	if err != nil {
		return ProductDetail{}, err
	}
	related := make([]Product, 0, relatedProductLimit)
	for _, candidate := range all {
		if len(related) == relatedProductLimit {
			break
		}
		if candidate.ID == product.ID {
			continue
		}
		if (product.Category != "" && candidate.Category == product.Category) ||
			(product.Model != "" && candidate.Model == product.Model) {
			related = append(related, candidate)
		}
	}
	return ProductDetail{Product: product, Related: related}, nil
}

// distinct returns the sorted, non-empty values of field.
func distinct(products []Product, field func(Product) string) []string {
	seen := make(map[string]struct{})
	values := make([]string, 0)
	for _, p := range products {
		v := strings.TrimSpace(field(p))
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		values = append(values, v)
	}
	sort.Strings(values)
	return values
}

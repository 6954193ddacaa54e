package services

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"
)

func catalogProducts() []Product {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mk := func(id, name, category, model, strap, dial string, price int64, featured bool, age int) Product {
		return Product{
			ID:        id,
			Name:      name,
			Category:  category,
			Model:     model,
			Price:     price,
			Featured:  featured,
			CreatedAt: base.Add(time.Duration(age) * time.Hour),
			Specifications: ProductSpecifications{
				StrapType: strap,
				DialColor: dial,
			},
		}
	}
	return []Product{
		mk("a", "Aviator", "men", "Pilot", "Leather", "Black", 45000, true, 1),
		mk("b", "Bianca", "women", "Classic", "Steel", "White", 80000, false, 2),
		mk("c", "Commander", "men", "Pilot", "Steel", "Blue", 120000, true, 3),
		mk("d", "Diver", "sport", "Ocean", "Rubber", "Blue", 30000, false, 4),
		mk("e", "Eclipse", "men", "Classic", "Leather", "Black", 65000, false, 5),
	}
}

func newTestCatalog(t *testing.T) CatalogService {
	t.Helper()
	svc, err := NewCatalogService(CatalogServiceDeps{Products: newMemProductRepo(catalogProducts()...)})
	if err != nil {
		t.Fatalf("new catalog service: %v", err)
	}
	return svc
}

func productIDs(products []Product) []string {
	ids := make([]string, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ID)
	}
	return ids
}

func TestCatalogServiceListProducts(t *testing.T) {
	svc := newTestCatalog(t)
	ctx := context.Background()
	minPrice, maxPrice := int64(40000), int64(100000)

	cases := []struct {
		name   string
		filter ProductListFilter
		ids    []string
		total  int
		pages  int
	}{
		{name: "default newest first", filter: ProductListFilter{}, ids: []string{"e", "d", "c", "b", "a"}, total: 5, pages: 1},
		{name: "category substring", filter: ProductListFilter{Category: "MEN"}, ids: []string{"e", "c", "b", "a"}, total: 4, pages: 1},
		{name: "strap and dial", filter: ProductListFilter{StrapType: "leather", DialColor: "black", Sort: "price"}, ids: []string{"a", "e"}, total: 2, pages: 1},
		{name: "price range", filter: ProductListFilter{MinPrice: &minPrice, MaxPrice: &maxPrice, Sort: "-price"}, ids: []string{"b", "e", "a"}, total: 3, pages: 1},
		{name: "featured by name", filter: ProductListFilter{Featured: true, Sort: "name"}, ids: []string{"a", "c"}, total: 2, pages: 1},
		{name: "second page", filter: ProductListFilter{Page: 2, Limit: 2, Sort: "price"}, ids: []string{"e", "b"}, total: 5, pages: 3},
		{name: "past the end", filter: ProductListFilter{Page: 9, Limit: 2}, ids: []string{}, total: 5, pages: 3},
		{name: "unknown sort", filter: ProductListFilter{Sort: "rating", Model: "pilot"}, ids: []string{"c", "a"}, total: 2, pages: 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			page, err := svc.ListProducts(ctx, tc.filter)
			if err != nil {
				t.Fatalf("list products: %v", err)
			}
			if got := productIDs(page.Products); !reflect.DeepEqual(got, tc.ids) {
				t.Fatalf("expected %v, got %v", tc.ids, got)
			}
			if page.Total != tc.total || page.Pages != tc.pages {
				t.Fatalf("expected total %d pages %d, got %d/%d", tc.total, tc.pages, page.Total, page.Pages)
			}
		})
	}
}

func TestCatalogServiceFacets(t *testing.T) {
	svc := newTestCatalog(t)
	ctx := context.Background()

	categories, err := svc.Categories(ctx)
	if err != nil {
		t.Fatalf("categories: %v", err)
	}
	if !reflect.DeepEqual(categories, []string{"men", "sport", "women"}) {
		t.Fatalf("unexpected categories %v", categories)
	}

	filters, err := svc.Filters(ctx)
	if err != nil {
		t.Fatalf("filters: %v", err)
	}
	want := CatalogFilters{
		Models:     []string{"Classic", "Ocean", "Pilot"},
		StrapTypes: []string{"Leather", "Rubber", "Steel"},
		DialColors: []string{"Black", "Blue", "White"},
	}
	if !reflect.DeepEqual(filters, want) {
		t.Fatalf("expected %+v, got %+v", want, filters)
	}

	featured, err := svc.FeaturedProducts(ctx)
	if err != nil {
		t.Fatalf("featured: %v", err)
	}
	if got := productIDs(featured); !reflect.DeepEqual(got, []string{"c", "a"}) {
		t.Fatalf("unexpected featured %v", got)
	}
}

func TestCatalogServiceGetProduct(t *testing.T) {
	svc := newTestCatalog(t)

	detail, err := svc.GetProduct(context.Background(), "a")
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if detail.Product.Name != "Aviator" {
		t.Fatalf("unexpected product %+v", detail.Product)
	}
	if got := productIDs(detail.Related); !reflect.DeepEqual(got, []string{"e", "c"}) {
		t.Fatalf("unexpected related %v", got)
	}

	if _, err := svc.GetProduct(context.Background(), "zzz"); !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

package firestore

import (
	pfirestore "github.com/RANAPRINCE06/Watch/internal/platform/firestore"
	"github.com/RANAPRINCE06/Watch/internal/repositories"
)

// Registry bundles the Firestore repositories behind repositories.Registry.
type Registry struct {
	products  *ProductRepository
	coupons   *CouponRepository
	orders    *OrderRepository
	wishlists *WishlistRepository
}

// NewRegistry builds every repository on provider.
func NewRegistry(provider *pfirestore.Provider) (*Registry, error) {
	products, err := NewProductRepository(provider)
	if err != nil {
		return nil, err
	}
	coupons, err := NewCouponRepository(provider)
	if err != nil {
		return nil, err
	}
	orders, err := NewOrderRepository(provider)
	if err != nil {
		return nil, err
	}
	wishlists, err := NewWishlistRepository(provider)
	if err != nil {
		return nil, err
	}
	return &Registry{products: products, coupons: coupons, orders: orders, wishlists: wishlists}, nil
}

func (r *Registry) Products() repositories.ProductRepository   { return r.products }
func (r *Registry) Coupons() repositories.CouponRepository     { return r.coupons }
func (r *Registry) Orders() repositories.OrderRepository       { return r.orders }
func (r *Registry) Wishlists() repositories.WishlistRepository { return r.wishlists }

var _ repositories.Registry = (*Registry)(nil)

package services

import (
	"context"
	"errors"
	"strings"

	"github.com/RANAPRINCE06/Watch/internal/repositories"
)

// WishlistServiceDeps bundles collaborators for the wishlist service.
type WishlistServiceDeps struct {
	Wishlists repositories.WishlistRepository
	Products  repositories.ProductRepository
}

type wishlistService struct {
	wishlists repositories.WishlistRepository
	products  repositories.ProductRepository
}

// NewWishlistService wires a WishlistService.
func NewWishlistService(deps WishlistServiceDeps) (WishlistService, error) {
	if deps.Wishlists == nil || deps.Products == nil {
		return nil, errors.New("wishlist service: repositories are not configured")
	}
	return &wishlistService{wishlists: deps.Wishlists, products: deps.Products}, nil
}

// GetWishlist returns saved products in the order they were added, skipping deleted ones.
func (s *wishlistService) GetWishlist(ctx context.Context, userID string) ([]Product, error) {
	ids, err := s.wishlists.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	found, err := s.products.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	products := make([]Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := found[id]; ok {
			products = append(products, p)
		}
	}
	return products, nil
}

// ToggleWishlist adds or removes a product. Only existing products can be added.
func (s *wishlistService) ToggleWishlist(ctx context.Context, userID, productID string) (WishlistToggle, error) {
	productID = strings.TrimSpace(productID)
	current, err := s.wishlists.Get(ctx, userID)
	if err != nil {
		return WishlistToggle{}, err
	}
	saved := false
	for _, id := range current {
		if id == productID {
			saved = true
			break
		}
	}
	if !saved {
		if _, err := s.products.Get(ctx, productID); err != nil {
			if repositories.IsNotFound(err) {
				return WishlistToggle{}, ErrProductNotFound
			}
			return WishlistToggle{}, err
		}
	}
	ids, added, err := s.wishlists.Toggle(ctx, userID, productID)
	if err != nil {
		return WishlistToggle{}, err
	}
	return WishlistToggle{ProductIDs: ids, Added: added}, nil
}

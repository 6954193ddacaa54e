package services

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestWishlistServiceToggle(t *testing.T) {
	products := newMemProductRepo(testProducts()...)
	wishlists := &memWishlistRepo{ids: map[string][]string{"u1": {"gone", "p2"}}}
	svc, err := NewWishlistService(WishlistServiceDeps{Wishlists: wishlists, Products: products})
	if err != nil {
		t.Fatalf("new wishlist service: %v", err)
	}
	ctx := context.Background()

	saved, err := svc.GetWishlist(ctx, "u1")
	if err != nil {
		t.Fatalf("get wishlist: %v", err)
	}
	if got := productIDs(saved); !reflect.DeepEqual(got, []string{"p2"}) {
		t.Fatalf("expected deleted products skipped, got %v", got)
	}

	added, err := svc.ToggleWishlist(ctx, "u1", "p1")
	if err != nil {
		t.Fatalf("toggle add: %v", err)
	}
	if !added.Added || !reflect.DeepEqual(added.ProductIDs, []string{"gone", "p2", "p1"}) {
		t.Fatalf("unexpected toggle %+v", added)
	}

	removed, err := svc.ToggleWishlist(ctx, "u1", "gone")
	if err != nil {
		t.Fatalf("toggle remove: %v", err)
	}
	if removed.Added || !reflect.DeepEqual(removed.ProductIDs, []string{"p2", "p1"}) {
		t.Fatalf("unexpected toggle %+v", removed)
	}

	if _, err := svc.ToggleWishlist(ctx, "u1", "nope"); !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

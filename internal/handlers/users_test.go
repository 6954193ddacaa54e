package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/RANAPRINCE06/Watch/internal/services"
)

func TestWishlistHandlers(t *testing.T) {
	wishlists := &stubWishlistService{
		products: []services.Product{sampleProduct("p1")},
		toggleFn: func(_ context.Context, userID, productID string) (services.WishlistToggle, error) {
			require.Equal(t, "user-1", userID)
			if productID == "gone" {
				return services.WishlistToggle{}, services.ErrProductNotFound
			}
			return services.WishlistToggle{ProductIDs: []string{"p1", productID}, Added: true}, nil
		},
	}
	router := mountAt(WithUserRoutes, NewUserHandlers(testAuthenticator(), wishlists).Routes)

	rec := do(t, router, http.MethodGet, "/api/users/wishlist", userToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decodeBody(t, rec)["wishlist"], 1)

	rec = do(t, router, http.MethodPost, "/api/users/wishlist/p2", userToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	require.Equal(t, true, body["added"])
	require.Equal(t, []any{"p1", "p2"}, body["wishlist"])

	rec = do(t, router, http.MethodPost, "/api/users/wishlist/gone", userToken, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/users/wishlist", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

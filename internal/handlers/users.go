package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/RANAPRINCE06/Watch/internal/platform/auth"
	"github.com/RANAPRINCE06/Watch/internal/platform/httpx"
	"github.com/RANAPRINCE06/Watch/internal/services"
)

// UserHandlers exposes the caller's wishlist.
type UserHandlers struct {
	authn     *auth.Authenticator
	wishlists services.WishlistService
}

// NewUserHandlers constructs user handlers.
func NewUserHandlers(authn *auth.Authenticator, wishlists services.WishlistService) *UserHandlers {
	return &UserHandlers{authn: authn, wishlists: wishlists}
}

// Routes registers the /users endpoints.
func (h *UserHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireAuth())
	}
	r.Get("/wishlist", h.getWishlist)
	r.Post("/wishlist/{productID}", h.toggleWishlist)
}

type wishlistResponse struct {
	httpx.Success
	Wishlist []productPayload `json:"wishlist"`
}

type wishlistToggleResponse struct {
	httpx.Success
	Wishlist []string `json:"wishlist"`
	Added    bool     `json:"added"`
}

func (h *UserHandlers) getWishlist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.wishlists == nil {
		writeUnavailable(ctx, w, "wishlist_service_unavailable")
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	products, err := h.wishlists.GetWishlist(ctx, identity.UID)
	if err != nil {
		writeRepositoryError(ctx, w, "wishlist", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, wishlistResponse{Success: httpx.OK(), Wishlist: buildProductPayloads(products)})
}

func (h *UserHandlers) toggleWishlist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.wishlists == nil {
		writeUnavailable(ctx, w, "wishlist_service_unavailable")
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	productID := strings.TrimSpace(chi.URLParam(r, "productID"))
	if productID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "product id is required", http.StatusBadRequest))
		return
	}

	toggle, err := h.wishlists.ToggleWishlist(ctx, identity.UID, productID)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, wishlistToggleResponse{
		Success:  httpx.OK(),
		Wishlist: nonNil(toggle.ProductIDs),
		Added:    toggle.Added,
	})
}

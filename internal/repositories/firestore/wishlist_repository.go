package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	pfirestore "github.com/RANAPRINCE06/Watch/internal/platform/firestore"
)

const usersCollection = "users"

type wishlistDocument struct {
	Wishlist  []string  `firestore:"wishlist"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

// WishlistRepository keeps saved product ids on the user's profile document.
type WishlistRepository struct {
	provider *pfirestore.Provider
	users    *pfirestore.Collection[wishlistDocument]
	clock    func() time.Time
}

// NewWishlistRepository constructs a Firestore-backed wishlist repository.
func NewWishlistRepository(provider *pfirestore.Provider) (*WishlistRepository, error) {
	if provider == nil {
		return nil, errors.New("wishlist repository requires firestore provider")
	}
	return &WishlistRepository{
		provider: provider,
		users:    pfirestore.NewCollection[wishlistDocument](provider, usersCollection),
		clock:    time.Now,
	}, nil
}

// Get returns the saved product ids. A user without a profile document has an empty wishlist.
func (r *WishlistRepository) Get(ctx context.Context, userID string) ([]string, error) {
	doc, err := r.users.Get(ctx, strings.TrimSpace(userID))
	if err != nil {
		var perr *pfirestore.Error
		if errors.As(err, &perr) && perr.IsNotFound() {
			return []string{}, nil
		}
		return nil, err
	}
	if doc.Data.Wishlist == nil {
		return []string{}, nil
	}
	return doc.Data.Wishlist, nil
}

// Toggle adds or removes productID and reports whether it was added.
func (r *WishlistRepository) Toggle(ctx context.Context, userID, productID string) ([]string, bool, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, false, errors.New("wishlist repository: product id is required")
	}
	ref, err := r.users.Doc(ctx, strings.TrimSpace(userID))
	if err != nil {
		return nil, false, err
	}

	var (
		ids   []string
		added bool
	)
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		var current []string
		snap, err := tx.Get(ref)
		switch {
		case err == nil:
			doc, err := pfirestore.Decode[wishlistDocument](snap)
			if err != nil {
				return err
			}
			current = doc.Data.Wishlist
		case status.Code(err) == codes.NotFound:
		default:
			return err
		}

		ids, added = toggleID(current, productID)
		return tx.Set(ref, map[string]any{
			"wishlist":  ids,
			"updatedAt": r.clock().UTC(),
		}, firestore.MergeAll)
	})
	if err != nil {
		return nil, false, pfirestore.WrapError("users.wishlist.toggle", err)
	}
	return ids, added, nil
}

func toggleID(ids []string, id string) ([]string, bool) {
	next := make([]string, 0, len(ids)+1)
	found := false
	for _, existing := range ids {
		if existing == id {
			found = true
			continue
		}
		next = append(next, existing)
	}
	if found {
		return next, false
	}
	return append(next, id), true
}

package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/RANAPRINCE06/Watch/internal/domain"
	pfirestore "github.com/RANAPRINCE06/Watch/internal/platform/firestore"
)

const couponsCollection = "coupons"

type couponDocument struct {
	Code           string    `firestore:"code"`
	DiscountType   string    `firestore:"discountType"`
	DiscountValue  float64   `firestore:"discountValue"`
	MinOrderAmount int64     `firestore:"minOrderAmount"`
	MaxDiscount    int64     `firestore:"maxDiscount,omitempty"`
	ValidFrom      time.Time `firestore:"validFrom,omitempty"`
	ValidUntil     time.Time `firestore:"validUntil"`
	UsageLimit     int       `firestore:"usageLimit,omitempty"`
	UsedCount      int       `firestore:"usedCount"`
	Active         bool      `firestore:"active"`
	CreatedAt      time.Time `firestore:"createdAt"`
	UpdatedAt      time.Time `firestore:"updatedAt"`
}

// CouponRepository stores discount codes in the coupons collection.
type CouponRepository struct {
	provider *pfirestore.Provider
	coupons  *pfirestore.Collection[couponDocument]
}

// NewCouponRepository constructs a Firestore-backed coupon repository.
func NewCouponRepository(provider *pfirestore.Provider) (*CouponRepository, error) {
	if provider == nil {
		return nil, errors.New("coupon repository requires firestore provider")
	}
	return &CouponRepository{
		provider: provider,
		coupons:  pfirestore.NewCollection[couponDocument](provider, couponsCollection),
	}, nil
}

// FindActiveByCode looks a coupon up by its case-insensitive code. Inactive coupons are reported as not found.
func (r *CouponRepository) FindActiveByCode(ctx context.Context, code string) (domain.Coupon, error) {
	code = normalizeCouponCode(code)
	if code == "" {
		return domain.Coupon{}, pfirestore.NotFound("coupons.findActiveByCode", "coupon")
	}
	docs, err := r.coupons.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("code", "==", code).Where("active", "==", true).Limit(1)
	})
	if err != nil {
		return domain.Coupon{}, err
	}
	if len(docs) == 0 {
		return domain.Coupon{}, pfirestore.NotFound("coupons.findActiveByCode", "coupon "+code)
	}
	return docs[0].Data.toDomain(docs[0].ID), nil
}

// IncrementUsage bumps usedCount with a server-side increment so concurrent redemptions are all counted.
func (r *CouponRepository) IncrementUsage(ctx context.Context, couponID string) error {
	return r.coupons.Update(ctx, couponID, []firestore.Update{
		{Path: "usedCount", Value: firestore.Increment(1)},
		{Path: "updatedAt", Value: firestore.ServerTimestamp},
	})
}

// List returns every coupon, newest first.
func (r *CouponRepository) List(ctx context.Context) ([]domain.Coupon, error) {
	docs, err := r.coupons.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.OrderBy("createdAt", firestore.Desc)
	})
	if err != nil {
		return nil, err
	}
	coupons := make([]domain.Coupon, 0, len(docs))
	for _, doc := range docs {
		coupons = append(coupons, doc.Data.toDomain(doc.ID))
	}
	return coupons, nil
}

// Insert stores a new coupon. A code already in use yields a conflict.
func (r *CouponRepository) Insert(ctx context.Context, coupon domain.Coupon) (domain.Coupon, error) {
	if strings.TrimSpace(coupon.ID) == "" {
		return domain.Coupon{}, errors.New("coupon repository: id is required")
	}
	coupon.Code = normalizeCouponCode(coupon.Code)
	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.Coupon{}, err
	}
	ref := client.Collection(couponsCollection).Doc(coupon.ID)

	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		existing, err := tx.Documents(client.Collection(couponsCollection).Where("code", "==", coupon.Code).Limit(1)).GetAll()
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return status.Error(codes.AlreadyExists, fmt.Sprintf("coupon code %s already exists", coupon.Code))
		}
		return tx.Create(ref, newCouponDocument(coupon))
	})
	if err != nil {
		return domain.Coupon{}, pfirestore.WrapError("coupons.insert", err)
	}
	return coupon, nil
}

func normalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func newCouponDocument(c domain.Coupon) couponDocument {
	return couponDocument{
		Code:           c.Code,
		DiscountType:   string(c.Kind),
		DiscountValue:  c.Value,
		MinOrderAmount: c.MinOrderAmount,
		MaxDiscount:    c.MaxDiscount,
		ValidFrom:      c.ValidFrom.UTC(),
		ValidUntil:     c.ValidUntil.UTC(),
		UsageLimit:     c.UsageLimit,
		UsedCount:      c.UsedCount,
		Active:         c.Active,
		CreatedAt:      c.CreatedAt.UTC(),
		UpdatedAt:      c.CreatedAt.UTC(),
	}
}

func (d couponDocument) toDomain(id string) domain.Coupon {
	return domain.Coupon{
		ID:             id,
		Code:           d.Code,
		Kind:           domain.DiscountKind(d.DiscountType),
		Value:          d.DiscountValue,
		MinOrderAmount: d.MinOrderAmount,
		MaxDiscount:    d.MaxDiscount,
		ValidFrom:      d.ValidFrom,
		ValidUntil:     d.ValidUntil,
		UsageLimit:     d.UsageLimit,
		UsedCount:      d.UsedCount,
		Active:         d.Active,
		CreatedAt:      d.CreatedAt,
	}
}

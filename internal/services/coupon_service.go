package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/RANAPRINCE06/Watch/internal/domain"
	"github.com/RANAPRINCE06/Watch/internal/repositories"
)

var (
	// ErrCouponRejected matches every CouponRejection.
	ErrCouponRejected = errors.New("coupon: rejected")
	// ErrCouponInvalidInput signals an admin coupon payload failed validation.
	ErrCouponInvalidInput = errors.New("coupon: invalid input")
	// ErrCouponConflict indicates the code is already taken.
	ErrCouponConflict = errors.New("coupon: code already exists")

	errCouponRepositoryMissing = errors.New("coupon service: repository is not configured")
)

// CouponRejectReason names why a coupon did not apply.
type CouponRejectReason string

const (
	CouponReasonInvalid      CouponRejectReason = "invalid"
	CouponReasonNotYetValid  CouponRejectReason = "not_yet_valid"
	CouponReasonExpired      CouponRejectReason = "expired"
	CouponReasonLimitReached CouponRejectReason = "limit_reached"
	CouponReasonMinOrder     CouponRejectReason = "min_order"
)

// CouponRejection explains a coupon that could not be applied. Message is safe to show shoppers.
type CouponRejection struct {
	Reason  CouponRejectReason
	Message string
}

func (e *CouponRejection) Error() string { return "coupon: " + e.Message }

func (e *CouponRejection) Is(target error) bool { return target == ErrCouponRejected }

// CouponServiceDeps bundles collaborators for the coupon service.
type CouponServiceDeps struct {
	Coupons     repositories.CouponRepository
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type couponService struct {
	coupons repositories.CouponRepository
	clock   func() time.Time
	newID   func() string
	logger  func(ctx context.Context, event string, fields map[string]any)
}

// NewCouponService wires a CouponService.
func NewCouponService(deps CouponServiceDeps) (CouponService, error) {
	if deps.Coupons == nil {
		return nil, errCouponRepositoryMissing
	}
	svc := &couponService{
		coupons: deps.Coupons,
		clock:   utcClock(deps.Clock),
		newID:   deps.IDGenerator,
		logger:  deps.Logger,
	}
	if svc.newID == nil {
		svc.newID = func() string { return ulid.Make().String() }
	}
	if svc.logger == nil {
		svc.logger = noopLogger
	}
	return svc, nil
}

// Evaluate checks code against subtotal without consuming it. Checks run in a fixed order and
// the first failure is returned as a *CouponRejection.
func (s *couponService) Evaluate(ctx context.Context, code string, subtotal int64) (CouponEvaluation, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return CouponEvaluation{}, &CouponRejection{Reason: CouponReasonInvalid, Message: "Invalid coupon"}
	}
	coupon, err := s.coupons.FindActiveByCode(ctx, code)
	if err != nil {
		if repositories.IsNotFound(err) {
			return CouponEvaluation{}, &CouponRejection{Reason: CouponReasonInvalid, Message: "Invalid coupon"}
		}
		return CouponEvaluation{}, fmt.Errorf("coupon: lookup %s: %w", code, err)
	}
	return evaluateCoupon(coupon, subtotal, s.clock())
}

func evaluateCoupon(coupon Coupon, subtotal int64, now time.Time) (CouponEvaluation, error) {
	if !coupon.Active {
		return CouponEvaluation{}, &CouponRejection{Reason: CouponReasonInvalid, Message: "Invalid coupon"}
	}
	if !coupon.ValidFrom.IsZero() && now.Before(coupon.ValidFrom) {
		return CouponEvaluation{}, &CouponRejection{Reason: CouponReasonNotYetValid, Message: "Coupon not yet valid"}
	}
	if !now.Before(coupon.ValidUntil) {
		return CouponEvaluation{}, &CouponRejection{Reason: CouponReasonExpired, Message: "Coupon expired"}
	}
	if coupon.UsageLimit > 0 && coupon.UsedCount >= coupon.UsageLimit {
		return CouponEvaluation{}, &CouponRejection{Reason: CouponReasonLimitReached, Message: "Coupon limit reached"}
	}
	if subtotal < coupon.MinOrderAmount {
		return CouponEvaluation{}, &CouponRejection{
			Reason:  CouponReasonMinOrder,
			Message: "Min order " + formatRupees(coupon.MinOrderAmount),
		}
	}
	return CouponEvaluation{
		CouponID: coupon.ID,
		Code:     coupon.Code,
		Discount: domain.CouponDiscount(coupon, subtotal),
	}, nil
}

func (s *couponService) ListCoupons(ctx context.Context) ([]Coupon, error) {
	return s.coupons.List(ctx)
}

func (s *couponService) CreateCoupon(ctx context.Context, cmd CreateCouponCommand) (Coupon, error) {
	code := strings.ToUpper(strings.TrimSpace(cmd.Code))
	switch {
	case code == "":
		return Coupon{}, fmt.Errorf("%w: code is required", ErrCouponInvalidInput)
	case cmd.Kind != domain.DiscountPercentage && cmd.Kind != domain.DiscountFixed:
		return Coupon{}, fmt.Errorf("%w: discountType must be percentage or fixed", ErrCouponInvalidInput)
	case cmd.Value <= 0:
		return Coupon{}, fmt.Errorf("%w: discountValue must be positive", ErrCouponInvalidInput)
	case cmd.Kind == domain.DiscountPercentage && cmd.Value > 100:
		return Coupon{}, fmt.Errorf("%w: percentage discount cannot exceed 100", ErrCouponInvalidInput)
	case cmd.MinOrderAmount < 0 || cmd.MaxDiscount < 0 || cmd.UsageLimit < 0:
		return Coupon{}, fmt.Errorf("%w: amounts and limits cannot be negative", ErrCouponInvalidInput)
	case cmd.ValidUntil.IsZero():
		return Coupon{}, fmt.Errorf("%w: validUntil is required", ErrCouponInvalidInput)
	case !cmd.ValidFrom.IsZero() && !cmd.ValidFrom.Before(cmd.ValidUntil):
		return Coupon{}, fmt.Errorf("%w: validFrom must be before validUntil", ErrCouponInvalidInput)
	}

	active := true
	if cmd.Active != nil {
		active = *cmd.Active
	}
	coupon := Coupon{
		ID:             s.newID(),
		Code:           code,
		Kind:           cmd.Kind,
		Value:          cmd.Value,
		MinOrderAmount: cmd.MinOrderAmount,
		MaxDiscount:    cmd.MaxDiscount,
		ValidFrom:      cmd.ValidFrom.UTC(),
		ValidUntil:     cmd.ValidUntil.UTC(),
		UsageLimit:     cmd.UsageLimit,
		Active:         active,
		CreatedAt:      s.clock(),
	}
	saved, err := s.coupons.Insert(ctx, coupon)
	if err != nil {
		if repositories.IsConflict(err) {
			return Coupon{}, ErrCouponConflict
		}
		return Coupon{}, err
	}
	s.logger(ctx, "coupon.created", map[string]any{"couponId": saved.ID, "code": saved.Code})
	return saved, nil
}

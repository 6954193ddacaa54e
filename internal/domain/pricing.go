package domain

import "math"

// TaxRatePercent is the GST rate applied to every order.
const TaxRatePercent = 18

// Totals is the money breakdown of an order.
type Totals struct {
	Subtotal int64
	Discount int64
	Tax      int64
	Total    int64
}

// CouponDiscount computes the discount coupon grants on subtotal, rounded to
// the nearest rupee. Percentage discounts honour MaxDiscount; fixed discounts
// are returned as-is even when they exceed subtotal.
func CouponDiscount(c Coupon, subtotal int64) int64 {
	switch c.Kind {
	case DiscountPercentage:
		discount := float64(subtotal) * c.Value / 100
		if c.MaxDiscount > 0 && discount > float64(c.MaxDiscount) {
			discount = float64(c.MaxDiscount)
		}
		if discount < 0 {
			return 0
		}
		return int64(math.Round(discount))
	case DiscountFixed:
		if c.Value < 0 {
			return 0
		}
		return int64(math.Round(c.Value))
	}
	return 0
}

// ComputeTotals derives tax and total. The discount applied to the order is
// capped at subtotal so the taxable amount and total are never negative.
func ComputeTotals(subtotal, discount int64) Totals {
	if discount > subtotal {
		discount = subtotal
	}
	if discount < 0 {
		discount = 0
	}
	taxable := subtotal - discount
	tax := (taxable*TaxRatePercent + 50) / 100
	return Totals{
		Subtotal: subtotal,
		Discount: discount,
		Tax:      tax,
		Total:    taxable + tax,
	}
}

// MinorUnits converts whole rupees to paise for gateway requests.
func MinorUnits(amount int64) int64 {
	return amount * 100
}

// Package pricing computes the payable amount for a purchasable item. Both
// the billing preview and every payment handler go through Resolve, so the
// displayed total and the charged total can never drift apart.
package pricing

import (
	"fmt"
	"math"
)

type DiscountType string

const (
	Percentage DiscountType = "PERCENTAGE"
	Fixed      DiscountType = "FIXED"
)

// Coupon is the discount a previewed coupon grants. A nil *Coupon means no
// coupon is applied; there is no sentinel code.
type Coupon struct {
	Code  string
	Type  DiscountType
	Value float64
}

// Quote breaks the final amount down the way the billing page presents it.
type Quote struct {
	BasePrice float64 `json:"basePrice"`

	// ItemPercent is the item's own discount, CouponPercent the capped
	// contribution of a percentage coupon and CouponAmount the value of a
	// fixed one. At most one of the coupon fields is non-zero.
	ItemPercent   float64 `json:"itemPercent"`
	CouponPercent float64 `json:"couponPercent"`
	CouponAmount  float64 `json:"couponAmount"`

	TotalPercent float64 `json:"totalPercent"`
	Savings      float64 `json:"savings"`

	// Amount is rounded to cents exactly once, here. Payment creation uses
	// this same value, so the buyer is charged what the page showed.
	Amount float64 `json:"amount"`
}

// Free reports whether the quote requires no payment at all.
func (q Quote) Free() bool { return q.Amount == 0 }

// Cents returns the amount in the minor currency unit, as card processors
// expect it.
func (q Quote) Cents() int64 { return int64(math.Round(q.Amount * 100)) }

// Resolve computes the payable amount for an item with the given base price
// and item-level percentage discount, optionally stacked with a coupon.
//
// The item discount applies first. An item discounted 100% or more is free
// and the coupon is not considered. A percentage coupon stacks additively
// with the item discount, capped so the combined discount never exceeds 100%
// of the base price. A fixed coupon subtracts from the item-discounted price,
// floored at zero.
func Resolve(basePrice, itemPercent float64, coupon *Coupon) Quote {
	q := Quote{
		BasePrice:   basePrice,
		ItemPercent: itemPercent,
	}

	if itemPercent >= 100 {
		q.ItemPercent = itemPercent
		q.TotalPercent = 100
		q.Savings = round2(basePrice)
		q.Amount = 0
		return q
	}

	discounted := basePrice - basePrice*itemPercent/100
	q.TotalPercent = itemPercent
	q.Amount = round2(discounted)

	if coupon != nil {
		switch coupon.Type {
		case Percentage:
			q.CouponPercent = math.Min(100-itemPercent, coupon.Value)
			q.TotalPercent = math.Min(100, itemPercent+q.CouponPercent)
			q.Amount = round2(basePrice - basePrice*q.TotalPercent/100)

		case Fixed:
			q.CouponAmount = coupon.Value
			q.Amount = round2(math.Max(0, discounted-coupon.Value))
		}
	}

	q.Savings = round2(basePrice - q.Amount)
	return q
}

// Verify checks a client-reported amount against the resolved quote. Amounts
// always originate here; a mismatch means the client is stale or lying.
func Verify(q Quote, reported float64) error {
	if round2(reported) != q.Amount {
		return fmt.Errorf("reported amount %.2f does not match the computed total %.2f", reported, q.Amount)
	}
	return nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

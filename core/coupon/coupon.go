package coupon

import (
	"errors"
	"time"

	"github.com/hk-academy/storefront/core/pricing"
)

var (
	ErrNotFound    = errors.New("coupon not found")
	ErrExpired     = errors.New("coupon has expired")
	ErrExhausted   = errors.New("coupon usage limit has been reached")
	ErrMinPurchase = errors.New("purchase amount is below the coupon minimum")
)

type Coupon struct {
	ID            string     `json:"couponId" db:"coupon_id"`
	Code          string     `json:"code" db:"code"`
	DiscountType  string     `json:"discountType" db:"discount_type"`
	DiscountValue float64    `json:"discountValue" db:"discount_value"`
	MinPurchase   *float64   `json:"minPurchase" db:"min_purchase"`
	MaxDiscount   *float64   `json:"maxDiscount" db:"max_discount"`
	ExpiryDate    time.Time  `json:"expiryDate" db:"expiry_date"`
	UsageLimit    *int       `json:"usageLimit" db:"usage_limit"`
	UsageCount    int        `json:"usageCount" db:"usage_count"`
	CreatedAt     time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time  `json:"updatedAt" db:"updated_at"`
}

type CouponNew struct {
	Code          string    `json:"code" validate:"required"`
	DiscountType  string    `json:"discountType" validate:"required,oneof=PERCENTAGE FIXED"`
	DiscountValue float64   `json:"discountValue" validate:"required,gte=0"`
	MinPurchase   *float64  `json:"minPurchase" validate:"omitempty,gte=0"`
	MaxDiscount   *float64  `json:"maxDiscount" validate:"omitempty,gte=0"`
	ExpiryDate    time.Time `json:"expiryDate" validate:"required"`
	UsageLimit    *int      `json:"usageLimit" validate:"omitempty,gte=1"`
}

type CouponUp struct {
	Code          *string    `json:"code"`
	DiscountType  *string    `json:"discountType" validate:"omitempty,oneof=PERCENTAGE FIXED"`
	DiscountValue *float64   `json:"discountValue" validate:"omitempty,gte=0"`
	MinPurchase   *float64   `json:"minPurchase" validate:"omitempty,gte=0"`
	MaxDiscount   *float64   `json:"maxDiscount" validate:"omitempty,gte=0"`
	ExpiryDate    *time.Time `json:"expiryDate"`
	UsageLimit    *int       `json:"usageLimit" validate:"omitempty,gte=1"`
}

// Validate checks whether the coupon can still be previewed against a
// purchase of the given amount. It has no side effect on usage counters;
// committing usage happens in Confirm once the payment succeeded.
func (c Coupon) Validate(now time.Time, amount float64) error {
	if now.After(c.ExpiryDate) {
		return ErrExpired
	}
	if c.UsageLimit != nil && c.UsageCount >= *c.UsageLimit {
		return ErrExhausted
	}
	if c.MinPurchase != nil && amount < *c.MinPurchase {
		return ErrMinPurchase
	}
	return nil
}

// Pricing converts the coupon into the shape the pricing resolver consumes.
func (c Coupon) Pricing() pricing.Coupon {
	return pricing.Coupon{
		Code:  c.Code,
		Type:  pricing.DiscountType(c.DiscountType),
		Value: c.DiscountValue,
	}
}

package coupon

import (
	"errors"
	"testing"
	"time"
)

func TestValidate(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	limit := 5
	min := 25.0

	tests := []struct {
		name   string
		coupon Coupon
		amount float64
		err    error
	}{
		{
			name:   "valid",
			coupon: Coupon{Code: "SAVE20", ExpiryDate: now.AddDate(0, 1, 0)},
			amount: 10,
		},
		{
			name:   "expired",
			coupon: Coupon{Code: "OLD", ExpiryDate: now.AddDate(0, 0, -1)},
			amount: 10,
			err:    ErrExpired,
		},
		{
			name:   "exhausted",
			coupon: Coupon{Code: "GONE", ExpiryDate: now.AddDate(0, 1, 0), UsageLimit: &limit, UsageCount: 5},
			amount: 10,
			err:    ErrExhausted,
		},
		{
			name:   "under usage limit",
			coupon: Coupon{Code: "LEFT", ExpiryDate: now.AddDate(0, 1, 0), UsageLimit: &limit, UsageCount: 4},
			amount: 10,
		},
		{
			name:   "below minimum purchase",
			coupon: Coupon{Code: "MIN", ExpiryDate: now.AddDate(0, 1, 0), MinPurchase: &min},
			amount: 20,
			err:    ErrMinPurchase,
		},
		{
			name:   "minimum purchase met",
			coupon: Coupon{Code: "MIN", ExpiryDate: now.AddDate(0, 1, 0), MinPurchase: &min},
			amount: 25,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.coupon.Validate(now, tt.amount)
			if !errors.Is(err, tt.err) {
				t.Fatalf("expected error %v, but got %v", tt.err, err)
			}
		})
	}
}

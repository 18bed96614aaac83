package coupon

import (
	"context"
	"fmt"
	"time"

	"github.com/hk-academy/storefront/core/pricing"
	"github.com/jmoiron/sqlx"
)

// Gateway is the coupon service the checkout flows depend on: Preview while
// pricing an item, Confirm after the payment succeeded.
type Gateway struct {
	DB *sqlx.DB
}

func (g Gateway) Preview(ctx context.Context, code string, amount float64) (pricing.Coupon, error) {
	c, err := FetchByCode(ctx, g.DB, code)
	if err != nil {
		return pricing.Coupon{}, err
	}

	if err := c.Validate(time.Now().UTC(), amount); err != nil {
		return pricing.Coupon{}, err
	}

	return c.Pricing(), nil
}

func (g Gateway) Confirm(ctx context.Context, code, userID string, amount float64, orderRef string) error {
	if err := commitUsage(ctx, g.DB, code); err != nil {
		return fmt.Errorf("confirming coupon[%s] of user[%s] for order[%s]: %w", code, userID, orderRef, err)
	}
	return nil
}

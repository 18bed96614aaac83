package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/hk-academy/storefront/api/web"
	"github.com/hk-academy/storefront/api/weberr"
	"github.com/hk-academy/storefront/core/claims"
	"github.com/hk-academy/storefront/core/enrollment"
	"github.com/hk-academy/storefront/core/pricing"
	"github.com/hk-academy/storefront/validate"
	"github.com/stripe/stripe-go/v74"
)

type cardRequest struct {
	CourseID        string  `json:"courseId"`
	ResourceID      string  `json:"resourceId"`
	PaymentMethodID string  `json:"paymentMethodId" validate:"required"`
	Amount          float64 `json:"amount" validate:"gte=0"`
	CouponCode      string  `json:"couponCode"`
}

func (cr cardRequest) itemID(kind enrollment.Kind) string {
	if kind == enrollment.KindResource {
		return cr.ResourceID
	}
	return cr.CourseID
}

// HandleCardPayment charges a tokenized card through stripe and enrolls the
// user on success. The amount is recomputed from the item and coupon; the
// amount the client saw must match it or the charge is refused.
func (c *Core) HandleCardPayment(kind enrollment.Kind) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		var req cardRequest
		if err := web.Decode(w, r, &req); err != nil {
			return weberr.BadRequest(fmt.Errorf("decoding card payment request: %w", err))
		}

		if err := validate.Check(req); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		itemID := req.itemID(kind)
		if err := validate.CheckID(itemID); err != nil {
			return weberr.BadRequest(err)
		}

		item, err := c.Store.Item(ctx, kind, itemID)
		if err != nil {
			return weberr.NotFound(fmt.Errorf("fetching %s[%s]: %w", kind, itemID, err))
		}

		q, err := c.quote(ctx, item, req.CouponCode)
		if err != nil {
			return weberr.BadRequest(err)
		}

		if err := pricing.Verify(q, req.Amount); err != nil {
			return weberr.Unprocessable(err)
		}

		if q.Free() {
			return weberr.Unprocessable(fmt.Errorf("%s[%s] is free; use the free enrollment instead of a card payment", kind, itemID))
		}

		params := &stripe.PaymentIntentParams{
			Params:        stripe.Params{Context: ctx},
			Amount:        stripe.Int64(q.Cents()),
			Currency:      stripe.String(string(stripe.CurrencyEUR)),
			PaymentMethod: stripe.String(req.PaymentMethodID),
			Confirm:       stripe.Bool(true),
			Description:   stripe.String(fmt.Sprintf("%s: %s", item.Kind, item.Title)),
		}

		pi, err := c.Stripe.PaymentIntents.New(params)
		if err != nil {
			msg := userMessage(err, "Payment processing failed")
			return weberr.NewError(fmt.Errorf("creating payment intent for %s[%s]: %w", kind, itemID, err), msg, http.StatusUnprocessableEntity)
		}

		if err := c.enroll(ctx, clm.UserID, item, q.Amount, pi.ID); err != nil {
			return fmt.Errorf("the payment[%s] succeeded but its fulfillment failed: %w", pi.ID, err)
		}

		c.confirmCoupon(ctx, req.CouponCode, clm.UserID, q.Amount, pi.ID)

		resp := struct {
			Status          string  `json:"status"`
			ConfirmationRef string  `json:"confirmationRef"`
			Amount          float64 `json:"amount"`
		}{
			Status:          "success",
			ConfirmationRef: pi.ID,
			Amount:          q.Amount,
		}
		return web.Respond(ctx, w, resp, http.StatusOK)
	}
}

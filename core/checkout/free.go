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
	"github.com/hk-academy/storefront/validate"
)

type freeRequest struct {
	CourseID   string `json:"courseId"`
	ResourceID string `json:"resourceId"`
	CouponCode string `json:"couponCode"`
}

func (f freeRequest) itemID(kind enrollment.Kind) string {
	if kind == enrollment.KindResource {
		return f.ResourceID
	}
	return f.CourseID
}

// HandleFree enrolls the user without a payment. It only accepts items whose
// resolved amount, item discount and coupon included, is actually zero.
func (c *Core) HandleFree(kind enrollment.Kind) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		var req freeRequest
		if err := web.Decode(w, r, &req); err != nil {
			return weberr.BadRequest(fmt.Errorf("decoding free enrollment request: %w", err))
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

		if !q.Free() {
			return weberr.Unprocessable(fmt.Errorf("%s[%s] costs %.2f and cannot be enrolled for free", kind, itemID, q.Amount))
		}

		if err := c.enroll(ctx, clm.UserID, item, 0, freeOrderRef); err != nil {
			return err
		}

		// The enrollment is the completed transaction here; the coupon
		// commit follows it and never blocks the success response.
		c.confirmCoupon(ctx, req.CouponCode, clm.UserID, 0, freeOrderRef)

		resp := struct {
			Status string `json:"status"`
			ItemID string `json:"itemId"`
		}{
			Status: "success",
			ItemID: itemID,
		}
		return web.Respond(ctx, w, resp, http.StatusOK)
	}
}

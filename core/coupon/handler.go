package coupon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hk-academy/storefront/api/web"
	"github.com/hk-academy/storefront/api/weberr"
	"github.com/hk-academy/storefront/core/claims"
	"github.com/hk-academy/storefront/rate"
	"github.com/hk-academy/storefront/validate"
	"github.com/jmoiron/sqlx"
)

type applyRequest struct {
	Code   string  `json:"code" validate:"required"`
	UserID string  `json:"userId"`
	Amount float64 `json:"amount" validate:"gte=0"`
}

// HandleApply previews a coupon against a purchase amount. It validates the
// code without touching usage counters; usage is committed by HandleConfirm
// once the payment itself went through.
func HandleApply(db *sqlx.DB, lim *rate.Limiter) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		var req applyRequest
		if err := web.Decode(w, r, &req); err != nil {
			return weberr.BadRequest(fmt.Errorf("decoding coupon apply request: %w", err))
		}

		if err := validate.Check(req); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		// Previews are cheap to spam, which makes them a code-guessing
		// oracle. Throttle per user.
		if !lim.Check(clm.UserID) {
			return weberr.TooManyRequests(errors.New("coupon previews throttled"))
		}

		c, err := FetchByCode(ctx, db, req.Code)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NewError(err, "invalid coupon code", http.StatusNotFound)
			}
			return fmt.Errorf("previewing coupon[%s]: %w", req.Code, err)
		}

		if err := c.Validate(time.Now().UTC(), req.Amount); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		return web.Respond(ctx, w, c, http.StatusOK)
	}
}

type confirmRequest struct {
	Code    string  `json:"code" validate:"required"`
	UserID  string  `json:"userId"`
	Amount  float64 `json:"amount" validate:"gte=0"`
	OrderID string  `json:"orderId" validate:"required"`
}

// HandleConfirm commits coupon usage after a completed transaction.
func HandleConfirm(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		if _, err := claims.Get(ctx); err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		var req confirmRequest
		if err := web.Decode(w, r, &req); err != nil {
			return weberr.BadRequest(fmt.Errorf("decoding coupon confirm request: %w", err))
		}

		if err := validate.Check(req); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		if err := commitUsage(ctx, db, req.Code); err != nil {
			if errors.Is(err, ErrExhausted) {
				return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
			}
			return fmt.Errorf("confirming coupon[%s] for order[%s]: %w", req.Code, req.OrderID, err)
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

func HandleCreate(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var cn CouponNew
		if err := web.Decode(w, r, &cn); err != nil {
			return weberr.BadRequest(fmt.Errorf("decoding coupon: %w", err))
		}

		if err := validate.Check(cn); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		now := time.Now().UTC()
		c := Coupon{
			ID:            validate.GenerateID(),
			Code:          cn.Code,
			DiscountType:  cn.DiscountType,
			DiscountValue: cn.DiscountValue,
			MinPurchase:   cn.MinPurchase,
			MaxDiscount:   cn.MaxDiscount,
			ExpiryDate:    cn.ExpiryDate,
			UsageLimit:    cn.UsageLimit,
			CreatedAt:     now,
			UpdatedAt:     now,
		}

		if err := Create(ctx, db, c); err != nil {
			return fmt.Errorf("creating coupon[%s]: %w", c.Code, err)
		}

		return web.Respond(ctx, w, c, http.StatusCreated)
	}
}

func HandleUpdate(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return weberr.BadRequest(err)
		}

		var cu CouponUp
		if err := web.Decode(w, r, &cu); err != nil {
			return weberr.BadRequest(fmt.Errorf("decoding coupon update: %w", err))
		}

		if err := validate.Check(cu); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		c, err := Fetch(ctx, db, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching coupon[%s]: %w", id, err)
		}

		if cu.Code != nil {
			c.Code = *cu.Code
		}
		if cu.DiscountType != nil {
			c.DiscountType = *cu.DiscountType
		}
		if cu.DiscountValue != nil {
			c.DiscountValue = *cu.DiscountValue
		}
		if cu.MinPurchase != nil {
			c.MinPurchase = cu.MinPurchase
		}
		if cu.MaxDiscount != nil {
			c.MaxDiscount = cu.MaxDiscount
		}
		if cu.ExpiryDate != nil {
			c.ExpiryDate = *cu.ExpiryDate
		}
		if cu.UsageLimit != nil {
			c.UsageLimit = cu.UsageLimit
		}
		c.UpdatedAt = time.Now().UTC()

		if err := Update(ctx, db, c); err != nil {
			return fmt.Errorf("updating coupon[%s]: %w", id, err)
		}

		return web.Respond(ctx, w, c, http.StatusOK)
	}
}

func HandleDelete(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return weberr.BadRequest(err)
		}

		if err := Delete(ctx, db, id); err != nil {
			return fmt.Errorf("deleting coupon[%s]: %w", id, err)
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

func HandleList(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		cs, err := List(ctx, db)
		if err != nil {
			return fmt.Errorf("listing coupons: %w", err)
		}

		return web.Respond(ctx, w, cs, http.StatusOK)
	}
}

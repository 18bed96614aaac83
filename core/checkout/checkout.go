// Package checkout drives a purchase to completion over one of three paths:
// a card payment, a paypal redirect round-trip, or a zero-amount enrollment.
// Whatever the path, the charged amount is recomputed here from the catalog
// item and the applied coupon; client-reported amounts are only ever checked,
// never trusted.
package checkout

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hk-academy/storefront/config"
	"github.com/hk-academy/storefront/core/enrollment"
	"github.com/hk-academy/storefront/core/pricing"
	"github.com/plutov/paypal/v4"
	"github.com/sirupsen/logrus"
	stripecl "github.com/stripe/stripe-go/v74/client"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusCanceled  Status = "canceled"
	StatusFailed    Status = "failed"
)

// Session is the durable state bridging the two halves of a redirect-based
// payment: written when the paypal order is created, read back when the buyer
// returns from approval, marked terminal once the return handler ran. A
// pending row orphaned by an abandoned checkout is harmless litter.
type Session struct {
	ProviderOrderID string          `json:"providerOrderId" db:"provider_order_id"`
	UserID          string          `json:"userId" db:"user_id"`
	ItemKind        enrollment.Kind `json:"itemKind" db:"item_kind"`
	ItemID          string          `json:"itemId" db:"item_id"`
	Amount          float64         `json:"amount" db:"amount"`
	CouponCode      string          `json:"couponCode" db:"coupon_code"`
	Status          Status          `json:"status" db:"status"`
	CreatedAt       time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time       `json:"updatedAt" db:"updated_at"`
}

// Item is the priceable view of a course or resource.
type Item struct {
	ID          string
	Kind        enrollment.Kind
	Title       string
	Description string
	Price       float64
	Discount    float64
}

type Storage interface {
	Item(ctx context.Context, kind enrollment.Kind, id string) (Item, error)
	CreateSession(ctx context.Context, s Session) error
	Session(ctx context.Context, providerOrderID string) (Session, error)
	LatestPending(ctx context.Context, userID string) (Session, error)
	SetSessionStatus(ctx context.Context, providerOrderID string, status Status) error
	Enroll(ctx context.Context, e enrollment.Enrollment) error
}

type Coupons interface {
	Preview(ctx context.Context, code string, amount float64) (pricing.Coupon, error)
	Confirm(ctx context.Context, code, userID string, amount float64, orderRef string) error
}

// Core bundles the collaborators of every checkout path.
type Core struct {
	Store   Storage
	Coupons Coupons
	Paypal  *paypal.Client
	Stripe  *stripecl.API
	Log     logrus.FieldLogger

	Paths config.Checkout

	// Where paypal sends the buyer back to. These point at the frontend,
	// which then posts the completion to us.
	ReturnURL string
	CancelURL string

	// completions latches each provider order id before its first remote
	// call, so a duplicated return fires the capture at most once.
	completions sync.Map
}

// Redirect delays the frontend honors after a terminal paypal outcome: show
// the success screen briefly, leave an error on screen a little longer.
const (
	successRedirectDelay = 2
	failureRedirectDelay = 5
)

// freeOrderRef marks coupon confirmations of zero-amount enrollments.
const freeOrderRef = "FREE"

// quote recomputes the payable amount for the item, previewing the coupon
// when one is applied. The empty code means no coupon.
func (c *Core) quote(ctx context.Context, item Item, couponCode string) (pricing.Quote, error) {
	if couponCode == "" {
		return pricing.Resolve(item.Price, item.Discount, nil), nil
	}

	base := pricing.Resolve(item.Price, item.Discount, nil)

	pc, err := c.Coupons.Preview(ctx, couponCode, base.Amount)
	if err != nil {
		return pricing.Quote{}, fmt.Errorf("previewing coupon[%s]: %w", couponCode, err)
	}

	return pricing.Resolve(item.Price, item.Discount, &pc), nil
}

// confirmCoupon commits coupon usage after a successful payment. It is a
// no-op without an applied coupon, and a confirmation failure is logged but
// never escalated: the purchase already went through.
func (c *Core) confirmCoupon(ctx context.Context, code, userID string, amount float64, orderRef string) {
	if code == "" {
		return
	}

	if err := c.Coupons.Confirm(ctx, code, userID, amount, orderRef); err != nil {
		c.Log.Errorf("coupon[%s] confirmation failed after completed order[%s]: %v", code, orderRef, err)
	}
}

// enroll records the purchase, tolerating a re-run of an already recorded
// completion.
func (c *Core) enroll(ctx context.Context, userID string, item Item, amount float64, orderRef string) error {
	e := enrollment.Enrollment{
		UserID:    userID,
		ItemKind:  item.Kind,
		ItemID:    item.ID,
		Amount:    amount,
		OrderRef:  orderRef,
		CreatedAt: time.Now().UTC(),
	}

	if err := c.Store.Enroll(ctx, e); err != nil && err != enrollment.ErrAlreadyEnrolled {
		return fmt.Errorf("enrolling user[%s] in %s[%s]: %w", userID, item.Kind, item.ID, err)
	}
	return nil
}

// itemPage is the frontend destination for a failed checkout: the item's own
// page when its id is known, the listing otherwise.
func (c *Core) itemPage(kind enrollment.Kind, itemID string) string {
	base := c.Paths.CourseBaseURL
	if kind == enrollment.KindResource {
		base = c.Paths.ResourceBaseURL
	}

	if itemID == "" {
		return base
	}
	return fmt.Sprintf("%s/%s?error=payment_failed", base, itemID)
}

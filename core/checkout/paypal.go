package checkout

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hk-academy/storefront/api/web"
	"github.com/hk-academy/storefront/api/weberr"
	"github.com/hk-academy/storefront/core/claims"
	"github.com/hk-academy/storefront/core/enrollment"
	"github.com/hk-academy/storefront/core/pricing"
	"github.com/hk-academy/storefront/validate"
	"github.com/plutov/paypal/v4"
)

type paypalCreateRequest struct {
	CourseID   string  `json:"courseId"`
	ResourceID string  `json:"resourceId"`
	Amount     float64 `json:"amount" validate:"gte=0"`
	CouponCode string  `json:"couponCode"`
}

func (pr paypalCreateRequest) itemID(kind enrollment.Kind) string {
	if kind == enrollment.KindResource {
		return pr.ResourceID
	}
	return pr.CourseID
}

type paypalOrderResponse struct {
	ID           string `json:"id"`
	ApprovalLink string `json:"approvalLink"`
}

// completeResponse tells the frontend what to show and where to navigate
// once the return handler reached a terminal state.
type completeResponse struct {
	Status       string `json:"status"`
	Message      string `json:"message,omitempty"`
	RedirectTo   string `json:"redirectTo,omitempty"`
	AfterSeconds int    `json:"afterSeconds,omitempty"`
}

// HandlePaypalCreate creates the provider order and persists the checkout
// session the return handler will rely on after the redirect round-trip.
func (c *Core) HandlePaypalCreate(kind enrollment.Kind) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		var req paypalCreateRequest
		if err := web.Decode(w, r, &req); err != nil {
			return weberr.BadRequest(fmt.Errorf("decoding paypal create request: %w", err))
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
			return weberr.Unprocessable(fmt.Errorf("%s[%s] is free; use the free enrollment instead of paypal", kind, itemID))
		}

		value := fmt.Sprintf("%.2f", q.Amount)
		units := []paypal.PurchaseUnitRequest{{
			Items: []paypal.Item{{
				Quantity:    "1",
				Name:        item.Title,
				Description: item.Description,
				UnitAmount: &paypal.Money{
					Currency: "EUR",
					Value:    value,
				},
			}},

			Amount: &paypal.PurchaseUnitAmount{
				Currency: "EUR",
				Value:    value,

				Breakdown: &paypal.PurchaseUnitAmountBreakdown{ItemTotal: &paypal.Money{
					Currency: "EUR",
					Value:    value,
				}},
			},
		}}

		app := &paypal.ApplicationContext{
			ReturnURL: c.ReturnURL,
			CancelURL: c.CancelURL,
		}

		ord, err := c.Paypal.CreateOrder(ctx, "CAPTURE", units, nil, app)
		if err != nil {
			msg := userMessage(err, "Unable to initialize the paypal payment")
			return weberr.NewError(fmt.Errorf("creating paypal order for %s[%s]: %w", kind, itemID, err), msg, http.StatusUnprocessableEntity)
		}

		now := time.Now().UTC()
		sess := Session{
			ProviderOrderID: ord.ID,
			UserID:          clm.UserID,
			ItemKind:        kind,
			ItemID:          itemID,
			Amount:          q.Amount,
			CouponCode:      req.CouponCode,
			Status:          StatusPending,
			CreatedAt:       now,
			UpdatedAt:       now,
		}

		if err := c.Store.CreateSession(ctx, sess); err != nil {
			return fmt.Errorf("persisting the checkout session bound to order[%s]: %w", ord.ID, err)
		}

		resp := paypalOrderResponse{ID: ord.ID}
		for _, l := range ord.Links {
			if l.Rel == "approve" {
				resp.ApprovalLink = l.Href
			}
		}

		return web.Respond(ctx, w, struct {
			PaypalOrder paypalOrderResponse `json:"paypalOrder"`
		}{resp}, http.StatusOK)
	}
}

type paypalReturnRequest struct {
	PaypalOrderID string `json:"paypalOrderId"`
	CourseID      string `json:"courseId"`
	ResourceID    string `json:"resourceId"`
}

func (pr paypalReturnRequest) itemID(kind enrollment.Kind) string {
	if kind == enrollment.KindResource {
		return pr.ResourceID
	}
	return pr.CourseID
}

// HandlePaypalComplete is the redirect-return handler. It recovers the order
// and item identifiers (request payload or query string, then the stored
// session, then the URL path segment), captures the order at most once,
// enrolls the buyer, commits the coupon and tells the frontend where to go
// next: the dashboard after 2s on success, the item page after 5s on failure.
func (c *Core) HandlePaypalComplete(kind enrollment.Kind) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		var req paypalReturnRequest
		if err := web.Decode(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
			return weberr.BadRequest(fmt.Errorf("decoding paypal return request: %w", err))
		}

		// Paypal appends the order id as the "token" query parameter on
		// the way back.
		requestOrderID := req.PaypalOrderID
		if requestOrderID == "" {
			requestOrderID = web.Query(r, "token")
		}

		// Durable state: by order id when we have one, otherwise the
		// user's most recent pending session.
		var sess Session
		if requestOrderID != "" {
			sess, err = c.Store.Session(ctx, requestOrderID)
		} else {
			sess, err = c.Store.LatestPending(ctx, clm.UserID)
		}
		if err != nil && !errors.Is(err, ErrSessionNotFound) {
			return fmt.Errorf("recovering checkout session: %w", err)
		}

		orderID, itemID := recoverIdentifiers(returnSources{
			RequestOrderID: requestOrderID,
			RequestItemID:  req.itemID(kind),
			Session:        sess,
			PathItemID:     web.Param(r, "id"),
		})

		if orderID == "" {
			c.Log.Warnf("paypal return without a recoverable order id for user[%s]", clm.UserID)
			return c.completeFailure(ctx, w, kind, itemID, "Missing paypal order ID. Please try the payment again.")
		}
		if itemID == "" {
			c.Log.Warnf("paypal return without a recoverable item id for order[%s]", orderID)
			return c.completeFailure(ctx, w, kind, itemID, "Purchase information not found. Please try the payment again.")
		}

		// The return can fire more than once in quick succession. The
		// latch is taken synchronously, before any remote call, so only
		// the first invocation reaches the capture.
		if _, alreadyStarted := c.completions.LoadOrStore(orderID, struct{}{}); alreadyStarted {
			return web.Respond(ctx, w, completeResponse{Status: "processing"}, http.StatusOK)
		}

		switch sess.Status {
		case StatusCompleted:
			return web.Respond(ctx, w, completeResponse{
				Status:       "success",
				RedirectTo:   c.Paths.DashboardURL,
				AfterSeconds: successRedirectDelay,
			}, http.StatusOK)
		case StatusCanceled, StatusFailed:
			return c.completeFailure(ctx, w, kind, itemID, "This payment is no longer in progress. Please try the payment again.")
		}

		capture, err := c.Paypal.CaptureOrder(ctx, orderID, paypal.CaptureOrderRequest{})
		if err != nil {
			c.Log.Errorf("capturing paypal order[%s]: %v", orderID, err)
			c.failSession(ctx, orderID)
			return c.completeFailure(ctx, w, kind, itemID, userMessage(err, "Payment completion failed. Please contact support."))
		}

		if capture.Status != "COMPLETED" {
			c.Log.Errorf("captured paypal order[%s] with status[%s] different from 'COMPLETED'", orderID, capture.Status)
			c.failSession(ctx, orderID)
			return c.completeFailure(ctx, w, kind, itemID, "Payment completion failed. Please contact support.")
		}

		item, err := c.Store.Item(ctx, kind, itemID)
		if err != nil {
			return fmt.Errorf("the order[%s] was payed but %s[%s] could not be fetched: %w", orderID, kind, itemID, err)
		}

		if err := c.enroll(ctx, clm.UserID, item, sess.Amount, orderID); err != nil {
			return fmt.Errorf("the order[%s] was payed but its fulfillment failed: %w", orderID, err)
		}

		c.confirmCoupon(ctx, sess.CouponCode, clm.UserID, sess.Amount, orderID)

		if err := c.Store.SetSessionStatus(ctx, orderID, StatusCompleted); err != nil {
			c.Log.Errorf("marking checkout session[%s] completed: %v", orderID, err)
		}

		return web.Respond(ctx, w, completeResponse{
			Status:       "success",
			RedirectTo:   c.Paths.DashboardURL,
			AfterSeconds: successRedirectDelay,
		}, http.StatusOK)
	}
}

// HandlePaypalCancel marks the session canceled when the buyer backs out at
// the provider.
func (c *Core) HandlePaypalCancel(kind enrollment.Kind) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		if _, err := claims.Get(ctx); err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		var req paypalReturnRequest
		if err := web.Decode(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
			return weberr.BadRequest(fmt.Errorf("decoding paypal cancel request: %w", err))
		}

		orderID := req.PaypalOrderID
		if orderID == "" {
			orderID = web.Query(r, "token")
		}
		if orderID == "" {
			return weberr.BadRequest(errors.New("missing paypal order id"))
		}

		if err := c.Store.SetSessionStatus(ctx, orderID, StatusCanceled); err != nil {
			return fmt.Errorf("canceling checkout session[%s]: %w", orderID, err)
		}

		sess, err := c.Store.Session(ctx, orderID)
		if err != nil && !errors.Is(err, ErrSessionNotFound) {
			return fmt.Errorf("fetching canceled checkout session[%s]: %w", orderID, err)
		}

		return web.Respond(ctx, w, completeResponse{
			Status:     "canceled",
			RedirectTo: c.itemPage(kind, sess.ItemID),
		}, http.StatusOK)
	}
}

// HandlePaypalStatus reports the provider-side and session-side state of a
// redirect payment.
func (c *Core) HandlePaypalStatus() web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		if _, err := claims.Get(ctx); err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		orderID := web.Param(r, "id")
		if orderID == "" {
			return weberr.BadRequest(errors.New("missing paypal order id"))
		}

		sess, err := c.Store.Session(ctx, orderID)
		if err != nil {
			if errors.Is(err, ErrSessionNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching checkout session[%s]: %w", orderID, err)
		}

		ord, err := c.Paypal.GetOrder(ctx, orderID)
		if err != nil {
			return fmt.Errorf("fetching paypal order[%s]: %w", orderID, err)
		}

		resp := struct {
			ProviderStatus string  `json:"providerStatus"`
			Session        Session `json:"session"`
		}{
			ProviderStatus: ord.Status,
			Session:        sess,
		}
		return web.Respond(ctx, w, resp, http.StatusOK)
	}
}

func (c *Core) failSession(ctx context.Context, orderID string) {
	if err := c.Store.SetSessionStatus(ctx, orderID, StatusFailed); err != nil {
		c.Log.Errorf("marking checkout session[%s] failed: %v", orderID, err)
	}
}

func (c *Core) completeFailure(ctx context.Context, w http.ResponseWriter, kind enrollment.Kind, itemID, msg string) error {
	resp := completeResponse{
		Status:       "error",
		Message:      msg,
		RedirectTo:   c.itemPage(kind, itemID),
		AfterSeconds: failureRedirectDelay,
	}
	return web.Respond(ctx, w, resp, http.StatusUnprocessableEntity)
}

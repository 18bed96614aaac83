package subscription

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hk-academy/storefront/api/background"
	"github.com/hk-academy/storefront/api/web"
	"github.com/hk-academy/storefront/api/weberr"
	"github.com/hk-academy/storefront/random"
	"github.com/hk-academy/storefront/validate"
	"github.com/jmoiron/sqlx"
)

// Mailer sends the confirmation link for a fresh subscription.
type Mailer interface {
	SendSubscriptionConfirmation(to, token string) error
}

const tokenLength = 32

type subscribeRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// HandleCreate stores a pending subscriber and emails the confirmation link
// in the background.
func HandleCreate(db *sqlx.DB, mailer Mailer, bg *background.Background) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var req subscribeRequest
		if err := web.Decode(w, r, &req); err != nil {
			return weberr.BadRequest(fmt.Errorf("decoding subscription request: %w", err))
		}

		if err := validate.Check(req); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		token, err := random.StringSecure(tokenLength)
		if err != nil {
			return fmt.Errorf("generating subscription token: %w", err)
		}

		now := time.Now().UTC()
		s := Subscription{
			ID:        validate.GenerateID(),
			Email:     req.Email,
			Token:     token,
			CreatedAt: now,
			UpdatedAt: now,
		}

		if err := Create(ctx, db, s); err != nil {
			if errors.Is(err, ErrExists) {
				return weberr.NewError(err, err.Error(), http.StatusConflict)
			}
			return fmt.Errorf("creating subscription for[%s]: %w", req.Email, err)
		}

		bg.Run(func() error {
			return mailer.SendSubscriptionConfirmation(s.Email, s.Token)
		})

		return web.Respond(ctx, w, s, http.StatusCreated)
	}
}

type confirmRequest struct {
	Token string `json:"token" validate:"required"`
}

// HandleConfirm flips a pending subscription to agreed. Confirming an
// already agreed subscription succeeds again; the link may be clicked twice.
func HandleConfirm(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var req confirmRequest
		if err := web.Decode(w, r, &req); err != nil {
			return weberr.BadRequest(fmt.Errorf("decoding confirmation request: %w", err))
		}

		if err := validate.Check(req); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		s, err := FetchByToken(ctx, db, req.Token)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return weberr.NewError(err, "invalid confirmation link", http.StatusNotFound)
			}
			return fmt.Errorf("confirming subscription: %w", err)
		}

		if !s.Agreed {
			if err := SetAgreed(ctx, db, s.ID); err != nil {
				return fmt.Errorf("confirming subscription[%s]: %w", s.ID, err)
			}
			s.Agreed = true
		}

		return web.Respond(ctx, w, s, http.StatusOK)
	}
}

func HandleList(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		subs, err := List(ctx, db)
		if err != nil {
			return fmt.Errorf("listing subscriptions: %w", err)
		}

		return web.Respond(ctx, w, subs, http.StatusOK)
	}
}

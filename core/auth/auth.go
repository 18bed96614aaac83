// Package auth owns the session-backed identity of the storefront: who is
// logged in, whether they are an admin, and how oauth logins map onto local
// users.
package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/alexedwards/scs/v2"
	"github.com/hk-academy/storefront/api/web"
	"github.com/hk-academy/storefront/api/weberr"
	"github.com/hk-academy/storefront/core/claims"
)

const (
	sessionUserID = "user_id"
	sessionRole   = "role"
	sessionState  = "oauth_state"
)

// LoadAndSave adapts the scs middleware to the web.Handler chain and loads
// session claims into the request context on the way in.
func LoadAndSave(sm *scs.SessionManager) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			var err error

			sh := sm.LoadAndSave(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				ctx := r.Context()

				if id := sm.GetString(ctx, sessionUserID); id != "" {
					ctx = claims.Set(ctx, claims.Claims{
						UserID: id,
						Role:   sm.GetString(ctx, sessionRole),
					})
				}

				err = handler(ctx, w, r)
			}))

			sh.ServeHTTP(w, r)
			return err
		}
		return h
	}
	return m
}

// Authenticate refuses requests without a logged-in user.
func Authenticate(sm *scs.SessionManager) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			if _, err := claims.Get(ctx); err != nil {
				return weberr.NotAuthorized(errors.New("user not authenticated"))
			}
			return handler(ctx, w, r)
		}
		return h
	}
	return m
}

// Admin refuses requests whose user is not an admin.
func Admin(sm *scs.SessionManager) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			if !claims.IsAdmin(ctx) {
				return weberr.NotAuthorized(errors.New("user is not an administrator"))
			}
			return handler(ctx, w, r)
		}
		return h
	}
	return m
}

// login binds the session to the user, rotating the token against fixation.
func login(ctx context.Context, sm *scs.SessionManager, userID, role string) error {
	if err := sm.RenewToken(ctx); err != nil {
		return err
	}
	sm.Put(ctx, sessionUserID, userID)
	sm.Put(ctx, sessionRole, role)
	return nil
}

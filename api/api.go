package api

import (
	"context"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/gorilla/mux"
	"github.com/hk-academy/storefront/api/background"
	"github.com/hk-academy/storefront/api/middleware"
	"github.com/hk-academy/storefront/api/web"
	"github.com/hk-academy/storefront/config"
	"github.com/hk-academy/storefront/core/auth"
	"github.com/hk-academy/storefront/core/checkout"
	"github.com/hk-academy/storefront/core/coupon"
	"github.com/hk-academy/storefront/core/course"
	"github.com/hk-academy/storefront/core/download"
	"github.com/hk-academy/storefront/core/enrollment"
	"github.com/hk-academy/storefront/core/resource"
	"github.com/hk-academy/storefront/core/subscription"
	"github.com/hk-academy/storefront/core/user"
	"github.com/hk-academy/storefront/rate"
	"github.com/jmoiron/sqlx"
	"github.com/plutov/paypal/v4"
	"github.com/sirupsen/logrus"
	stripecl "github.com/stripe/stripe-go/v74/client"
)

type APIConfig struct {
	CorsOrigin       string
	Log              logrus.FieldLogger
	DB               *sqlx.DB
	Session          *scs.SessionManager
	Mailer           subscription.Mailer
	Background       *background.Background
	Paypal           *paypal.Client
	Stripe           *stripecl.API
	PaypalCfg        config.Paypal
	CheckoutCfg      config.Checkout
	Providers        map[string]auth.Provider
	LoginRedirectURL string
}

type api struct {
	*mux.Router
	mw  []web.Middleware
	log logrus.FieldLogger
}

func APIMux(cfg APIConfig) http.Handler {
	a := &api{
		Router: mux.NewRouter(),
		log:    cfg.Log,
	}

	a.mw = append(a.mw, auth.LoadAndSave(cfg.Session))
	a.mw = append(a.mw, middleware.RequestID())
	a.mw = append(a.mw, middleware.Logger(cfg.Log))
	a.mw = append(a.mw, middleware.Errors(cfg.Log))
	a.mw = append(a.mw, middleware.Panics())

	if cfg.CorsOrigin != "" {
		a.mw = append(a.mw, middleware.Cors(cfg.CorsOrigin))

		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			w.WriteHeader(http.StatusNoContent)
			return nil
		}

		a.Handle(http.MethodOptions, "/{path:.*}", h)
	}

	authen := auth.Authenticate(cfg.Session)
	admin := auth.Admin(cfg.Session)

	a.Handle(http.MethodPost, "/auth/signup", auth.HandleSignup(cfg.DB, cfg.Session))
	a.Handle(http.MethodPost, "/auth/login", auth.HandleLogin(cfg.DB, cfg.Session))
	a.Handle(http.MethodPost, "/auth/logout", auth.HandleLogout(cfg.Session))
	a.Handle(http.MethodGet, "/auth/oauth-login/{provider}", auth.HandleOauthLogin(cfg.Session, cfg.Providers))
	a.Handle(http.MethodGet, "/auth/oauth-callback/{provider}", auth.HandleOauthCallback(cfg.DB, cfg.Session, cfg.Providers, cfg.LoginRedirectURL))

	a.Handle(http.MethodGet, "/users/current", user.HandleShowCurrent(cfg.DB), authen)
	a.Handle(http.MethodGet, "/users", user.HandleList(cfg.DB), admin)

	a.Handle(http.MethodGet, "/courses/owned", course.HandleListOwned(cfg.DB), authen)
	a.Handle(http.MethodGet, "/courses/{id}", course.HandleShow(cfg.DB))
	a.Handle(http.MethodGet, "/courses", course.HandleList(cfg.DB))
	a.Handle(http.MethodPost, "/courses", course.HandleCreate(cfg.DB), admin)
	a.Handle(http.MethodPut, "/courses/{id}", course.HandleUpdate(cfg.DB), admin)

	dispatcher := download.NewDispatcher()

	a.Handle(http.MethodGet, "/resources/owned", resource.HandleListOwned(cfg.DB), authen)
	a.Handle(http.MethodGet, "/resources/{id}/download", download.HandleDownload(cfg.DB, dispatcher, cfg.Log), authen)
	a.Handle(http.MethodGet, "/resources/{id}", resource.HandleShow(cfg.DB))
	a.Handle(http.MethodGet, "/resources", resource.HandleList(cfg.DB))
	a.Handle(http.MethodPost, "/resources", resource.HandleCreate(cfg.DB), admin)
	a.Handle(http.MethodPut, "/resources/{id}", resource.HandleUpdate(cfg.DB), admin)

	// A preview every two seconds per user is plenty for a human typing
	// coupon codes.
	couponLimiter := rate.NewLimiter(5, 60, rate.Every(2*time.Second))

	a.Handle(http.MethodPost, "/coupons/apply", coupon.HandleApply(cfg.DB, couponLimiter), authen)
	a.Handle(http.MethodPost, "/coupons/confirm", coupon.HandleConfirm(cfg.DB), authen)
	a.Handle(http.MethodPost, "/coupons/create", coupon.HandleCreate(cfg.DB), admin)
	a.Handle(http.MethodGet, "/coupons", coupon.HandleList(cfg.DB), admin)
	a.Handle(http.MethodPut, "/coupons/{id}", coupon.HandleUpdate(cfg.DB), admin)
	a.Handle(http.MethodDelete, "/coupons/{id}", coupon.HandleDelete(cfg.DB), admin)

	co := &checkout.Core{
		Store:     checkout.Store{DB: cfg.DB},
		Coupons:   coupon.Gateway{DB: cfg.DB},
		Paypal:    cfg.Paypal,
		Stripe:    cfg.Stripe,
		Log:       cfg.Log,
		Paths:     cfg.CheckoutCfg,
		ReturnURL: cfg.PaypalCfg.ReturnURL,
		CancelURL: cfg.PaypalCfg.CancelURL,
	}

	a.Handle(http.MethodPost, "/stripe-payments/stripe", co.HandleCardPayment(enrollment.KindCourse), authen)
	a.Handle(http.MethodPost, "/stripe-payments/resource-payment", co.HandleCardPayment(enrollment.KindResource), authen)
	a.Handle(http.MethodPost, "/stripe-payments/free-course", co.HandleFree(enrollment.KindCourse), authen)
	a.Handle(http.MethodPost, "/stripe-payments/free-resource", co.HandleFree(enrollment.KindResource), authen)

	a.Handle(http.MethodPost, "/stripe-payments/paypal/create", co.HandlePaypalCreate(enrollment.KindCourse), authen)
	a.Handle(http.MethodPost, "/stripe-payments/paypal/complete", co.HandlePaypalComplete(enrollment.KindCourse), authen)
	a.Handle(http.MethodPost, "/stripe-payments/paypal/complete/{id}", co.HandlePaypalComplete(enrollment.KindCourse), authen)
	a.Handle(http.MethodPost, "/stripe-payments/paypal/cancel", co.HandlePaypalCancel(enrollment.KindCourse), authen)
	a.Handle(http.MethodGet, "/stripe-payments/paypal/status/{id}", co.HandlePaypalStatus(), authen)

	a.Handle(http.MethodPost, "/stripe-payments/paypal/resource/create", co.HandlePaypalCreate(enrollment.KindResource), authen)
	a.Handle(http.MethodPost, "/stripe-payments/paypal/resource/complete", co.HandlePaypalComplete(enrollment.KindResource), authen)
	a.Handle(http.MethodPost, "/stripe-payments/paypal/resource/complete/{id}", co.HandlePaypalComplete(enrollment.KindResource), authen)
	a.Handle(http.MethodPost, "/stripe-payments/paypal/resource/cancel", co.HandlePaypalCancel(enrollment.KindResource), authen)
	a.Handle(http.MethodGet, "/stripe-payments/paypal/resource/status/{id}", co.HandlePaypalStatus(), authen)

	a.Handle(http.MethodPost, "/subscription", subscription.HandleCreate(cfg.DB, cfg.Mailer, cfg.Background))
	a.Handle(http.MethodPost, "/subscription/confirm", subscription.HandleConfirm(cfg.DB))
	a.Handle(http.MethodGet, "/subscription", subscription.HandleList(cfg.DB), admin)

	return a.Router
}

func (a *api) Handle(method string, path string, handler web.Handler, mw ...web.Middleware) {

	handler = web.WrapMiddleware(mw, handler)

	handler = web.WrapMiddleware(a.mw, handler)

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		ctx := r.Context()

		if err := handler(ctx, w, r); err != nil {

			a.log.WithFields(logrus.Fields{
				"req_id":  middleware.ContextRequestID(ctx),
				"message": err,
			}).Error("ERROR")
		}
	})

	a.Router.Handle(path, h).Methods(method)
}

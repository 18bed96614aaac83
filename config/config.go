package config

import "time"

// Config is the whole configuration of the storefront, parsed from the
// environment by ardanlabs/conf.
type Config struct {
	Web   Web
	DB    DB
	Cors  Cors
	Auth  Auth
	Oauth Oauth

	Stripe   Stripe
	Paypal   Paypal
	Checkout Checkout

	Email Email
}

type Web struct {
	Address         string        `conf:"default:0.0.0.0:8000"`
	ReadTimeout     time.Duration `conf:"default:5s"`
	WriteTimeout    time.Duration `conf:"default:10s"`
	IdleTimeout     time.Duration `conf:"default:120s"`
	ShutdownTimeout time.Duration `conf:"default:20s"`
}

type DB struct {
	User       string `conf:"default:postgres"`
	Password   string `conf:"default:postgres,mask"`
	Host       string `conf:"default:localhost"`
	Name       string `conf:"default:storefront"`
	DisableTLS bool   `conf:"default:true"`
}

type Cors struct {
	Origin string
}

type Auth struct {
	SessionLifetime time.Duration `conf:"default:24h"`
}

type Oauth struct {
	DiscoveryTimeout time.Duration `conf:"default:30s"`
	LoginRedirectURL string        `conf:"default:/"`
	Google           OauthProvider
}

type OauthProvider struct {
	Client      string
	Secret      string `conf:"mask"`
	URL         string `conf:"default:https://accounts.google.com"`
	RedirectURL string
}

type Stripe struct {
	APISecret string `conf:"mask"`
}

type Paypal struct {
	ClientID string
	Secret   string `conf:"mask"`
	URL      string `conf:"default:https://api.sandbox.paypal.com"`

	// Where paypal sends the buyer back after approval or cancellation.
	ReturnURL string `conf:"default:/payment/payment-success"`
	CancelURL string `conf:"default:/payment/payment-cancel"`
}

// Checkout holds the frontend destinations the checkout handlers direct the
// buyer to once a payment reaches a terminal state.
type Checkout struct {
	DashboardURL    string `conf:"default:/user-dashboard?payment=success"`
	CourseBaseURL   string `conf:"default:/courses"`
	ResourceBaseURL string `conf:"default:/resources"`
}

type Email struct {
	Address         string
	Password        string `conf:"mask"`
	Host            string
	Port            string `conf:"default:587"`
	ConfirmationURL string `conf:"default:/subscription/confirm"`
}

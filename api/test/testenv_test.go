package test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"

	"github.com/alexedwards/scs/v2"
	"github.com/gorilla/mux"
	"github.com/hk-academy/storefront/api"
	"github.com/hk-academy/storefront/api/background"
	"github.com/hk-academy/storefront/api/web"
	"github.com/hk-academy/storefront/config"
	"github.com/hk-academy/storefront/database"
	"github.com/jmoiron/sqlx"
	"github.com/ory/dockertest/v3"
	"github.com/plutov/paypal/v4"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v74"
	stripecl "github.com/stripe/stripe-go/v74/client"
	mock "github.com/stripe/stripe-mock/param"
)

// TestEnv runs the whole API against a disposable postgres container and
// mocked payment providers.
type TestEnv struct {
	URL string
	DB  *sqlx.DB

	Paypal *mockPaypal
	Stripe *mockStripe
	Mails  chan string

	UserEmail, UserPass   string
	AdminEmail, AdminPass string

	client *http.Client
}

func NewTestEnv(t *testing.T, name string) (*TestEnv, error) {
	t.Helper()

	pool, err := dockertest.NewPool("")
	if err != nil {
		return nil, fmt.Errorf("connecting to docker: %w", err)
	}
	if err := pool.Client.Ping(); err != nil {
		t.Skipf("docker is not available: %v", err)
	}

	res, err := pool.Run("postgres", "15-alpine", []string{
		"POSTGRES_USER=postgres",
		"POSTGRES_PASSWORD=postgres",
		"POSTGRES_DB=" + name,
	})
	if err != nil {
		return nil, fmt.Errorf("starting postgres container: %w", err)
	}
	t.Cleanup(func() {
		if err := pool.Purge(res); err != nil {
			t.Logf("purging postgres container: %v", err)
		}
	})

	dbCfg := config.DB{
		User:       "postgres",
		Password:   "postgres",
		Host:       "localhost:" + res.GetPort("5432/tcp"),
		Name:       name,
		DisableTLS: true,
	}

	var db *sqlx.DB
	if err := pool.Retry(func() error {
		var err error
		db, err = database.Open(dbCfg)
		return err
	}); err != nil {
		return nil, fmt.Errorf("connecting to containerized postgres: %w", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := database.Migrate(db); err != nil {
		return nil, fmt.Errorf("migrating test database: %w", err)
	}

	env := &TestEnv{
		DB:     db,
		Paypal: &mockPaypal{},
		Stripe: &mockStripe{},
		Mails:  make(chan string, 8),
	}

	paypalSrv := httptest.NewServer(env.Paypal.handle())
	t.Cleanup(paypalSrv.Close)

	stripeSrv := httptest.NewServer(env.Stripe.handle())
	t.Cleanup(stripeSrv.Close)

	pp, err := paypal.NewClient("test-client", "test-secret", paypalSrv.URL)
	if err != nil {
		return nil, fmt.Errorf("building paypal client: %w", err)
	}

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:           stripe.String(stripeSrv.URL),
		LeveledLogger: &stripe.LeveledLogger{Level: stripe.LevelError},
	})
	strp := &stripecl.API{}
	strp.Init("sk_test_key", &stripe.Backends{API: backend, Connect: backend, Uploads: backend})

	log := logrus.New()
	log.SetOutput(io.Discard)

	bg := background.New(log)
	t.Cleanup(func() { bg.Shutdown(context.Background()) })

	session := scs.New()

	mux := api.APIMux(api.APIConfig{
		Log:        log,
		DB:         db,
		Session:    session,
		Mailer:     tokenMailer{tokens: env.Mails},
		Background: bg,
		Paypal:     pp,
		Stripe:     strp,
		PaypalCfg: config.Paypal{
			ReturnURL: "https://shop.test/payment/payment-success",
			CancelURL: "https://shop.test/payment/payment-cancel",
		},
		CheckoutCfg: config.Checkout{
			DashboardURL:    "/user-dashboard?payment=success",
			CourseBaseURL:   "/courses",
			ResourceBaseURL: "/resources",
		},
		LoginRedirectURL: "/",
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	env.URL = srv.URL

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("building cookie jar: %w", err)
	}
	env.client = &http.Client{Jar: jar}

	if err := env.seedUsers(context.Background()); err != nil {
		return nil, fmt.Errorf("seeding users: %w", err)
	}

	return env, nil
}

func (e *TestEnv) Client() *http.Client { return e.client }

// seedUsers signs up a regular buyer and an admin, promoting the latter
// directly in the database.
func (e *TestEnv) seedUsers(ctx context.Context) error {
	e.UserEmail, e.UserPass = "buyer@test.com", "buyerpass1"
	e.AdminEmail, e.AdminPass = "admin@test.com", "adminpass1"

	for _, u := range []struct{ name, email, pass string }{
		{"Buyer", e.UserEmail, e.UserPass},
		{"Admin", e.AdminEmail, e.AdminPass},
	} {
		body := map[string]string{"name": u.name, "email": u.email, "password": u.pass}
		resp, err := e.postJSON("/auth/signup", body)
		if err != nil {
			return err
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			return fmt.Errorf("signing up %s: status %s", u.email, resp.Status)
		}
		if err := e.Logout(); err != nil {
			return err
		}
	}

	const q = `UPDATE users SET role = 'ADMIN' WHERE email = $1`
	if _, err := e.DB.ExecContext(ctx, q, e.AdminEmail); err != nil {
		return fmt.Errorf("promoting admin: %w", err)
	}
	return nil
}

func (e *TestEnv) Login(email, pass string) error {
	body := map[string]string{"email": email, "password": pass}
	resp, err := e.postJSON("/auth/login", body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("logging in %s: status %s", email, resp.Status)
	}
	return nil
}

func (e *TestEnv) Logout() error {
	resp, err := e.postJSON("/auth/logout", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("logging out: status %s", resp.Status)
	}
	return nil
}

func (e *TestEnv) postJSON(path string, body any) (*http.Response, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
	}

	r, err := http.NewRequest(http.MethodPost, e.URL+path, &buf)
	if err != nil {
		return nil, err
	}
	r.Header.Set("Content-Type", "application/json")

	return e.client.Do(r)
}

func (e *TestEnv) get(path string) (*http.Response, error) {
	r, err := http.NewRequest(http.MethodGet, e.URL+path, nil)
	if err != nil {
		return nil, err
	}
	return e.client.Do(r)
}

// tokenMailer captures confirmation tokens instead of sending mail.
type tokenMailer struct {
	tokens chan string
}

func (m tokenMailer) SendSubscriptionConfirmation(to, token string) error {
	m.tokens <- token
	return nil
}

// mockPaypal stands in for the paypal REST API. ExpectedAmount is checked
// against the purchase unit of every created order.
type mockPaypal struct {
	ExpectedAmount string
}

func (m *mockPaypal) handle() http.Handler {
	token := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		web.Respond(context.Background(), w, map[string]any{
			"access_token": "testtoken",
			"expires_in":   3600,
		}, http.StatusOK)
	})

	checkout := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var pu struct {
			Units []paypal.PurchaseUnitRequest `json:"purchase_units"`
		}
		if err := json.NewDecoder(r.Body).Decode(&pu); err != nil {
			web.Respond(context.Background(), w, nil, http.StatusBadRequest)
			return
		}

		if len(pu.Units) != 1 || pu.Units[0].Amount.Value != m.ExpectedAmount {
			web.Respond(context.Background(), w, nil, http.StatusBadRequest)
			return
		}

		randID := fmt.Sprintf("paypal-%d", rand.Intn(300))
		ord := paypal.Order{
			ID:     randID,
			Status: "CREATED",
			Links: []paypal.Link{
				{Href: "https://paypal.test/approve?token=" + randID, Rel: "approve", Method: "GET"},
			},
		}
		web.Respond(context.Background(), w, ord, http.StatusCreated)
	})

	capture := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		web.Respond(context.Background(), w, map[string]any{
			"id":     web.Param(r, "id"),
			"status": "COMPLETED",
		}, http.StatusCreated)
	})

	r := mux.NewRouter()
	r.Handle("/v1/oauth2/token", token).Methods("POST")
	r.Handle("/v2/checkout/orders", checkout).Methods("POST")
	r.Handle("/v2/checkout/orders/{id}/capture", capture).Methods("POST")
	return r
}

// mockStripe stands in for the stripe API. ExpectedCents is checked against
// the amount of every created payment intent.
type mockStripe struct {
	ExpectedCents string
}

func (m *mockStripe) handle() http.Handler {
	intents := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		params, _ := mock.ParseParams(r)

		if params["amount"] != m.ExpectedCents {
			web.Respond(context.Background(), w, nil, http.StatusBadRequest)
			return
		}
		if params["confirm"] != "true" {
			web.Respond(context.Background(), w, nil, http.StatusBadRequest)
			return
		}

		randID := fmt.Sprintf("pi_%d", rand.Intn(300))
		web.Respond(context.Background(), w, map[string]any{
			"id":     randID,
			"status": "succeeded",
		}, http.StatusOK)
	})

	r := mux.NewRouter()
	r.Handle("/v1/payment_intents", intents).Methods("POST")
	return r
}

package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hk-academy/storefront/core/claims"
	"github.com/hk-academy/storefront/core/enrollment"
	"github.com/plutov/paypal/v4"
)

const (
	testUserID   = "4f2c1860-5c22-46f8-b6f8-f1608e1e25aa"
	testCourseID = "1b9d6bcd-bbfd-4b2d-9b5d-ab8dfbbd4bed"
)

// paypalMock is a stand-in for the paypal REST API recording capture calls.
type paypalMock struct {
	srv      *httptest.Server
	captures int64

	captureStatus int
	captureBody   string
}

func newPaypalMock(t *testing.T) *paypalMock {
	t.Helper()

	m := &paypalMock{
		captureStatus: http.StatusCreated,
		captureBody:   `{"id": "ORDER-1", "status": "COMPLETED"}`,
	}

	m.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/oauth2/token":
			w.Write([]byte(`{"access_token": "testtoken", "expires_in": 3600}`))

		case r.Method == http.MethodPost && r.URL.Path == "/v2/checkout/orders":
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{
				"id": "ORDER-1",
				"status": "CREATED",
				"links": [{"href": "https://paypal.test/approve?token=ORDER-1", "rel": "approve", "method": "GET"}]
			}`))

		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/capture"):
			atomic.AddInt64(&m.captures, 1)
			w.WriteHeader(m.captureStatus)
			w.Write([]byte(m.captureBody))

		default:
			t.Errorf("unexpected paypal call: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(m.srv.Close)
	return m
}

func (m *paypalMock) client(t *testing.T) *paypal.Client {
	t.Helper()

	pp, err := paypal.NewClient("test-client", "test-secret", m.srv.URL)
	if err != nil {
		t.Fatalf("building paypal client: %v", err)
	}
	return pp
}

func (m *paypalMock) captureCalls() int64 {
	return atomic.LoadInt64(&m.captures)
}

func userCtx() context.Context {
	return claims.Set(context.Background(), claims.Claims{UserID: testUserID, Role: claims.RoleUser})
}

func jsonBody(t *testing.T, v any) *bytes.Reader {
	t.Helper()

	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshaling request body: %v", err)
	}
	return bytes.NewReader(data)
}

func seedCourse(store *fakeStore, price, discount float64) Item {
	item := Item{
		ID:       testCourseID,
		Kind:     enrollment.KindCourse,
		Title:    "Woodworking Fundamentals",
		Price:    price,
		Discount: discount,
	}
	store.items[item.ID] = item
	return item
}

func TestPaypalCreatePersistsSession(t *testing.T) {
	pp := newPaypalMock(t)
	store := newFakeStore()
	seedCourse(store, 40, 25)

	c := testCore(store, &fakeCoupons{})
	c.Paypal = pp.client(t)

	body := jsonBody(t, map[string]any{"courseId": testCourseID, "amount": 30.0})
	r := httptest.NewRequest(http.MethodPost, "/stripe-payments/paypal/create", body)
	w := httptest.NewRecorder()

	if err := c.HandlePaypalCreate(enrollment.KindCourse)(userCtx(), w, r); err != nil {
		t.Fatalf("creating paypal order: %v", err)
	}

	var resp struct {
		PaypalOrder paypalOrderResponse `json:"paypalOrder"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.PaypalOrder.ID != "ORDER-1" {
		t.Errorf("expected order id ORDER-1, got %q", resp.PaypalOrder.ID)
	}
	if resp.PaypalOrder.ApprovalLink == "" {
		t.Error("expected the approval link to be extracted from the order links")
	}

	sess, err := store.Session(context.Background(), "ORDER-1")
	if err != nil {
		t.Fatalf("expected a persisted session: %v", err)
	}
	if sess.Status != StatusPending {
		t.Errorf("expected a pending session, got %q", sess.Status)
	}
	if sess.Amount != 30 {
		t.Errorf("expected the session to hold the resolved amount 30.00, got %.2f", sess.Amount)
	}
	if sess.UserID != testUserID {
		t.Errorf("expected the session to be bound to the buyer, got user %q", sess.UserID)
	}
}

func TestPaypalCreateRejectsMismatchedAmount(t *testing.T) {
	pp := newPaypalMock(t)
	store := newFakeStore()
	seedCourse(store, 40, 25)

	c := testCore(store, &fakeCoupons{})
	c.Paypal = pp.client(t)

	body := jsonBody(t, map[string]any{"courseId": testCourseID, "amount": 10.0})
	r := httptest.NewRequest(http.MethodPost, "/stripe-payments/paypal/create", body)
	w := httptest.NewRecorder()

	if err := c.HandlePaypalCreate(enrollment.KindCourse)(userCtx(), w, r); err == nil {
		t.Fatal("expected the stale amount to be refused")
	}
	if len(store.sessions) != 0 {
		t.Errorf("expected no session to be persisted, got %d", len(store.sessions))
	}
}

func TestPaypalCompleteCapturesOnce(t *testing.T) {
	pp := newPaypalMock(t)
	store := newFakeStore()
	seedCourse(store, 40, 25)
	store.sessions["ORDER-1"] = Session{
		ProviderOrderID: "ORDER-1",
		UserID:          testUserID,
		ItemKind:        enrollment.KindCourse,
		ItemID:          testCourseID,
		Amount:          30,
		Status:          StatusPending,
		CreatedAt:       time.Now().UTC(),
	}

	c := testCore(store, &fakeCoupons{})
	c.Paypal = pp.client(t)

	handler := c.HandlePaypalComplete(enrollment.KindCourse)

	complete := func() (*httptest.ResponseRecorder, error) {
		body := jsonBody(t, map[string]any{"paypalOrderId": "ORDER-1", "courseId": testCourseID})
		r := httptest.NewRequest(http.MethodPost, "/stripe-payments/paypal/complete", body)
		w := httptest.NewRecorder()
		return w, handler(userCtx(), w, r)
	}

	w, err := complete()
	if err != nil {
		t.Fatalf("completing paypal payment: %v", err)
	}

	var resp completeResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Status != "success" {
		t.Fatalf("expected a successful completion, got status %q", resp.Status)
	}
	if resp.RedirectTo != c.Paths.DashboardURL {
		t.Errorf("expected a redirect to the dashboard, got %q", resp.RedirectTo)
	}
	if resp.AfterSeconds != successRedirectDelay {
		t.Errorf("expected the success redirect delay %d, got %d", successRedirectDelay, resp.AfterSeconds)
	}
	if len(store.enrollments) != 1 {
		t.Fatalf("expected exactly one enrollment, got %d", len(store.enrollments))
	}

	w, err = complete()
	if err != nil {
		t.Fatalf("repeating the completion: %v", err)
	}
	resp = completeResponse{}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding duplicate response: %v", err)
	}
	if resp.Status != "processing" {
		t.Errorf("expected the duplicate return to be reported as processing, got %q", resp.Status)
	}

	if got := pp.captureCalls(); got != 1 {
		t.Errorf("expected the order to be captured exactly once, got %d captures", got)
	}
	if len(store.enrollments) != 1 {
		t.Errorf("expected the enrollment to stay unique, got %d", len(store.enrollments))
	}
}

func TestPaypalCompleteRecoversFromSession(t *testing.T) {
	pp := newPaypalMock(t)
	store := newFakeStore()
	seedCourse(store, 40, 25)
	store.sessions["ORDER-1"] = Session{
		ProviderOrderID: "ORDER-1",
		UserID:          testUserID,
		ItemKind:        enrollment.KindCourse,
		ItemID:          testCourseID,
		Amount:          30,
		Status:          StatusPending,
		CreatedAt:       time.Now().UTC(),
	}

	c := testCore(store, &fakeCoupons{})
	c.Paypal = pp.client(t)

	// An empty return: no body, no token. The stored session is all we have.
	r := httptest.NewRequest(http.MethodPost, "/stripe-payments/paypal/complete", nil)
	w := httptest.NewRecorder()

	if err := c.HandlePaypalComplete(enrollment.KindCourse)(userCtx(), w, r); err != nil {
		t.Fatalf("completing paypal payment from the session alone: %v", err)
	}

	var resp completeResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Status != "success" {
		t.Fatalf("expected a successful completion, got status %q", resp.Status)
	}
	if len(store.enrollments) != 1 {
		t.Errorf("expected one enrollment, got %d", len(store.enrollments))
	}
}

func TestPaypalCompleteWithoutOrderID(t *testing.T) {
	pp := newPaypalMock(t)
	store := newFakeStore()

	c := testCore(store, &fakeCoupons{})
	c.Paypal = pp.client(t)

	r := httptest.NewRequest(http.MethodPost, "/stripe-payments/paypal/complete", nil)
	w := httptest.NewRecorder()

	if err := c.HandlePaypalComplete(enrollment.KindCourse)(userCtx(), w, r); err != nil {
		t.Fatalf("the missing order id must answer the frontend, not error out: %v", err)
	}

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected status 422, got %d", w.Code)
	}

	var resp completeResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Status != "error" {
		t.Errorf("expected an error status, got %q", resp.Status)
	}
	if resp.RedirectTo != c.Paths.CourseBaseURL {
		t.Errorf("expected a redirect to the course listing, got %q", resp.RedirectTo)
	}
	if resp.AfterSeconds != failureRedirectDelay {
		t.Errorf("expected the failure redirect delay %d, got %d", failureRedirectDelay, resp.AfterSeconds)
	}
	if got := pp.captureCalls(); got != 0 {
		t.Errorf("expected no capture attempt, got %d", got)
	}
}

func TestPaypalCompleteCaptureFailure(t *testing.T) {
	pp := newPaypalMock(t)
	pp.captureStatus = http.StatusUnprocessableEntity
	pp.captureBody = `{"name": "UNPROCESSABLE_ENTITY", "message": "The card was declined."}`

	store := newFakeStore()
	seedCourse(store, 40, 25)
	store.sessions["ORDER-1"] = Session{
		ProviderOrderID: "ORDER-1",
		UserID:          testUserID,
		ItemKind:        enrollment.KindCourse,
		ItemID:          testCourseID,
		Amount:          30,
		Status:          StatusPending,
		CreatedAt:       time.Now().UTC(),
	}

	c := testCore(store, &fakeCoupons{})
	c.Paypal = pp.client(t)

	body := jsonBody(t, map[string]any{"paypalOrderId": "ORDER-1", "courseId": testCourseID})
	r := httptest.NewRequest(http.MethodPost, "/stripe-payments/paypal/complete", body)
	w := httptest.NewRecorder()

	if err := c.HandlePaypalComplete(enrollment.KindCourse)(userCtx(), w, r); err != nil {
		t.Fatalf("the capture failure must answer the frontend, not error out: %v", err)
	}

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected status 422, got %d", w.Code)
	}

	var resp completeResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Status != "error" {
		t.Errorf("expected an error status, got %q", resp.Status)
	}
	if resp.Message != "The card was declined." {
		t.Errorf("expected the provider message to surface, got %q", resp.Message)
	}

	sess, err := store.Session(context.Background(), "ORDER-1")
	if err != nil {
		t.Fatalf("fetching session: %v", err)
	}
	if sess.Status != StatusFailed {
		t.Errorf("expected the session to be marked failed, got %q", sess.Status)
	}
	if len(store.enrollments) != 0 {
		t.Errorf("expected no enrollment on a failed capture, got %d", len(store.enrollments))
	}
}

func TestPaypalCancelMarksSession(t *testing.T) {
	store := newFakeStore()
	store.sessions["ORDER-1"] = Session{
		ProviderOrderID: "ORDER-1",
		UserID:          testUserID,
		ItemKind:        enrollment.KindCourse,
		ItemID:          testCourseID,
		Status:          StatusPending,
		CreatedAt:       time.Now().UTC(),
	}

	c := testCore(store, &fakeCoupons{})

	r := httptest.NewRequest(http.MethodPost, "/stripe-payments/paypal/cancel?token=ORDER-1", nil)
	w := httptest.NewRecorder()

	if err := c.HandlePaypalCancel(enrollment.KindCourse)(userCtx(), w, r); err != nil {
		t.Fatalf("canceling paypal order: %v", err)
	}

	sess, err := store.Session(context.Background(), "ORDER-1")
	if err != nil {
		t.Fatalf("fetching session: %v", err)
	}
	if sess.Status != StatusCanceled {
		t.Errorf("expected the session to be marked canceled, got %q", sess.Status)
	}

	var resp completeResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if want := "/courses/" + testCourseID + "?error=payment_failed"; resp.RedirectTo != want {
		t.Errorf("expected a redirect to %q, got %q", want, resp.RedirectTo)
	}
}

package checkout

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hk-academy/storefront/core/enrollment"
	"github.com/hk-academy/storefront/core/pricing"
)

func TestFreeEnrollsFullyDiscountedItem(t *testing.T) {
	store := newFakeStore()
	seedCourse(store, 40, 100)

	coupons := &fakeCoupons{}
	c := testCore(store, coupons)

	body := jsonBody(t, map[string]any{"courseId": testCourseID})
	r := httptest.NewRequest(http.MethodPost, "/stripe-payments/free-course", body)
	w := httptest.NewRecorder()

	if err := c.HandleFree(enrollment.KindCourse)(userCtx(), w, r); err != nil {
		t.Fatalf("enrolling for free: %v", err)
	}

	if len(store.enrollments) != 1 {
		t.Fatalf("expected one enrollment, got %d", len(store.enrollments))
	}
	e := store.enrollments[0]
	if e.Amount != 0 {
		t.Errorf("expected a zero amount, got %.2f", e.Amount)
	}
	if e.OrderRef != freeOrderRef {
		t.Errorf("expected the order ref %q, got %q", freeOrderRef, e.OrderRef)
	}

	// No coupon was applied, so none must be confirmed.
	if len(coupons.confirms) != 0 {
		t.Errorf("expected no coupon confirmation, got %d", len(coupons.confirms))
	}
}

func TestFreeConfirmsCouponThatZeroedThePrice(t *testing.T) {
	store := newFakeStore()
	seedCourse(store, 10, 0)

	coupons := &fakeCoupons{coupon: pricing.Coupon{Code: "GIFT10", Type: pricing.Fixed, Value: 10}}
	c := testCore(store, coupons)

	body := jsonBody(t, map[string]any{"courseId": testCourseID, "couponCode": "GIFT10"})
	r := httptest.NewRequest(http.MethodPost, "/stripe-payments/free-course", body)
	w := httptest.NewRecorder()

	if err := c.HandleFree(enrollment.KindCourse)(userCtx(), w, r); err != nil {
		t.Fatalf("enrolling for free with a coupon: %v", err)
	}

	if len(coupons.confirms) != 1 {
		t.Fatalf("expected one coupon confirmation, got %d", len(coupons.confirms))
	}
	confirm := coupons.confirms[0]
	if confirm.Code != "GIFT10" || confirm.Amount != 0 || confirm.OrderRef != freeOrderRef {
		t.Errorf("unexpected coupon confirmation: %+v", confirm)
	}

	var resp struct {
		Status string `json:"status"`
		ItemID string `json:"itemId"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Status != "success" || resp.ItemID != testCourseID {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestFreeRefusesPayableItem(t *testing.T) {
	store := newFakeStore()
	seedCourse(store, 40, 25)

	c := testCore(store, &fakeCoupons{})

	body := jsonBody(t, map[string]any{"courseId": testCourseID})
	r := httptest.NewRequest(http.MethodPost, "/stripe-payments/free-course", body)
	w := httptest.NewRecorder()

	if err := c.HandleFree(enrollment.KindCourse)(userCtx(), w, r); err == nil {
		t.Fatal("expected the payable item to be refused")
	}
	if len(store.enrollments) != 0 {
		t.Errorf("expected no enrollment, got %d", len(store.enrollments))
	}
}

func TestFreeToleratesRepeatedEnrollment(t *testing.T) {
	store := newFakeStore()
	seedCourse(store, 40, 100)

	c := testCore(store, &fakeCoupons{})
	handler := c.HandleFree(enrollment.KindCourse)

	for i := 0; i < 2; i++ {
		body := jsonBody(t, map[string]any{"courseId": testCourseID})
		r := httptest.NewRequest(http.MethodPost, "/stripe-payments/free-course", body)
		w := httptest.NewRecorder()

		if err := handler(userCtx(), w, r); err != nil {
			t.Fatalf("free enrollment attempt %d: %v", i+1, err)
		}
	}

	if len(store.enrollments) != 1 {
		t.Errorf("expected the enrollment to stay unique, got %d", len(store.enrollments))
	}
}

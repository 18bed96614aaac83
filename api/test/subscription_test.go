package test

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/hk-academy/storefront/core/subscription"
)

func TestSubscription(t *testing.T) {
	env, err := NewTestEnv(t, "subscription_test")
	if err != nil {
		t.Fatalf("initializing test env: %v", err)
	}

	const email = "news@test.com"

	resp, err := env.postJSON("/subscription", map[string]string{"email": email})
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("subscribing: status %s", resp.Status)
	}

	// The confirmation mail goes out in the background.
	var token string
	select {
	case token = <-env.Mails:
	case <-time.After(5 * time.Second):
		t.Fatal("no confirmation mail was sent")
	}

	// Subscribing the same address twice is refused.
	resp, err = env.postJSON("/subscription", map[string]string{"email": email})
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected the duplicate subscription to conflict, got status %s", resp.Status)
	}

	// The link may be clicked more than once; both confirmations succeed.
	for i := 0; i < 2; i++ {
		resp, err = env.postJSON("/subscription/confirm", map[string]string{"token": token})
		if err != nil {
			t.Fatal(err)
		}

		var s subscription.Subscription
		if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
			t.Fatalf("decoding confirmed subscription: %v", err)
		}
		resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("confirming subscription: status %s", resp.Status)
		}
		if !s.Agreed {
			t.Error("expected the subscription to be agreed")
		}
	}

	resp, err = env.postJSON("/subscription/confirm", map[string]string{"token": "bogus"})
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected the bogus token to be refused, got status %s", resp.Status)
	}
}

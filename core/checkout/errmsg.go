package checkout

import (
	"errors"

	"github.com/hk-academy/storefront/api/weberr"
	"github.com/plutov/paypal/v4"
	"github.com/stripe/stripe-go/v74"
)

// userMessage extracts the most specific human-readable message from a
// payment failure, trying the provider error shapes first, then a wrapped web
// error body, then the raw error text, then the fallback.
func userMessage(err error, fallback string) string {
	if err == nil {
		return fallback
	}

	var se *stripe.Error
	if errors.As(err, &se) && se.Msg != "" {
		return se.Msg
	}

	var pe *paypal.ErrorResponse
	if errors.As(err, &pe) && pe.Message != "" {
		return pe.Message
	}

	if body, _, ok := weberr.Response(err); ok {
		if er, ok := body.(*weberr.ErrorResponse); ok && er.Error != "" {
			return er.Error
		}
	}

	if msg := err.Error(); msg != "" {
		return msg
	}
	return fallback
}

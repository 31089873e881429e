package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	paymentdomain "github.com/middleworldfarms/soilsync/internal/payment/domain"
	"github.com/stretchr/testify/require"
)

func signPayload(secret string, timestamp string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(timestamp + "." + string(payload)))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyAcceptsValidSignature(t *testing.T) {
	g := New("", "whsec_test", 12*time.Second)
	payload := []byte(`{"id":"evt_1"}`)
	ts := "1767225600"

	headers := http.Header{}
	headers.Set("Stripe-Signature", fmt.Sprintf("t=%s,v1=%s", ts, signPayload("whsec_test", ts, payload)))
	require.NoError(t, g.Verify(context.Background(), payload, headers))
}

func TestVerifyRejectsBadSignature(t *testing.T) {
	g := New("", "whsec_test", 12*time.Second)
	payload := []byte(`{"id":"evt_1"}`)

	headers := http.Header{}
	headers.Set("Stripe-Signature", "t=1767225600,v1=deadbeef")
	require.ErrorIs(t, g.Verify(context.Background(), payload, headers), paymentdomain.ErrInvalidSignature)

	require.ErrorIs(t, g.Verify(context.Background(), payload, http.Header{}), paymentdomain.ErrInvalidSignature)
}

func TestVerifyRejectsTamperedPayload(t *testing.T) {
	g := New("", "whsec_test", 12*time.Second)
	payload := []byte(`{"id":"evt_1"}`)
	ts := "1767225600"
	sig := signPayload("whsec_test", ts, payload)

	headers := http.Header{}
	headers.Set("Stripe-Signature", fmt.Sprintf("t=%s,v1=%s", ts, sig))
	require.ErrorIs(t, g.Verify(context.Background(), []byte(`{"id":"evt_2"}`), headers), paymentdomain.ErrInvalidSignature)
}

func TestParsePaymentIntentEvents(t *testing.T) {
	g := New("", "whsec_test", 12*time.Second)

	succeeded := []byte(`{
		"id": "evt_1",
		"type": "payment_intent.succeeded",
		"created": 1767225600,
		"data": {"object": {"id": "pi_1", "amount": 1850, "amount_received": 1850, "currency": "gbp", "created": 1767225599}}
	}`)
	event, err := g.Parse(context.Background(), succeeded)
	require.NoError(t, err)
	require.Equal(t, paymentdomain.EventTypePaymentSucceeded, event.Type)
	require.Equal(t, "pi_1", event.TransactionID)
	require.Equal(t, int64(1850), event.Amount)
	require.Equal(t, "GBP", event.Currency)

	failed := []byte(`{
		"id": "evt_2",
		"type": "payment_intent.payment_failed",
		"data": {"object": {"id": "pi_2", "amount": 1850, "currency": "gbp",
			"last_payment_error": {"code": "card_error", "decline_code": "insufficient_funds"}}}
	}`)
	event, err = g.Parse(context.Background(), failed)
	require.NoError(t, err)
	require.Equal(t, paymentdomain.EventTypePaymentFailed, event.Type)
	require.Equal(t, "insufficient_funds", event.FailureCode)

	_, err = g.Parse(context.Background(), []byte(`{"id":"evt_3","type":"customer.created","data":{"object":{}}}`))
	require.ErrorIs(t, err, paymentdomain.ErrEventIgnored)
}

func TestChargeSendsIdempotencyKey(t *testing.T) {
	var gotKey, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotKey = r.Header.Get("Idempotency-Key")
		gotMethod = r.PostFormValue("payment_method")
		fmt.Fprint(w, `{"id":"pi_live_1","status":"succeeded","amount":1850,"currency":"gbp"}`)
	}))
	defer srv.Close()

	g := NewWithBaseURL("sk_test", "whsec_test", srv.URL, 12*time.Second)
	charge, err := g.Charge(context.Background(), paymentdomain.ChargeRequest{
		IdempotencyKey:  "sub_1_billing_2026-03-06",
		Amount:          1850,
		Currency:        "GBP",
		PaymentMethodID: "pm_1",
	})
	require.NoError(t, err)
	require.Equal(t, "pi_live_1", charge.TransactionID)
	require.Equal(t, "sub_1_billing_2026-03-06", gotKey)
	require.Equal(t, "pm_1", gotMethod)
}

func TestChargeClassifiesDecline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		fmt.Fprint(w, `{"error":{"type":"card_error","code":"card_declined","decline_code":"insufficient_funds","message":"Your card has insufficient funds."}}`)
	}))
	defer srv.Close()

	g := NewWithBaseURL("sk_test", "whsec_test", srv.URL, 12*time.Second)
	_, err := g.Charge(context.Background(), paymentdomain.ChargeRequest{
		IdempotencyKey: "k", Amount: 1850, Currency: "GBP", PaymentMethodID: "pm_1",
	})

	var chargeErr *paymentdomain.ChargeError
	require.True(t, errors.As(err, &chargeErr))
	require.Equal(t, paymentdomain.ClassificationPermanent, chargeErr.Classification)
	require.Equal(t, "insufficient_funds", chargeErr.Code)
}

func TestChargeClassifiesServerErrorTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	g := NewWithBaseURL("sk_test", "whsec_test", srv.URL, 12*time.Second)
	_, err := g.Charge(context.Background(), paymentdomain.ChargeRequest{
		IdempotencyKey: "k", Amount: 1850, Currency: "GBP", PaymentMethodID: "pm_1",
	})

	var chargeErr *paymentdomain.ChargeError
	require.True(t, errors.As(err, &chargeErr))
	require.Equal(t, paymentdomain.ClassificationTransient, chargeErr.Classification)
}

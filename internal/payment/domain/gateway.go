package domain

import (
	"context"
	"errors"
	"net/http"
	"time"
)

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrInvalidPayload   = errors.New("invalid webhook payload")
	ErrInvalidEvent     = errors.New("invalid webhook event")
	ErrEventIgnored     = errors.New("webhook event ignored")
	ErrNoPaymentMethod  = errors.New("no payment method on file")
	ErrChargeInFlight   = errors.New("charge already recorded for this cycle")
)

// Classification buckets a failed charge by what should happen next.
type Classification string

const (
	// ClassificationValidation covers malformed requests; never retried.
	ClassificationValidation Classification = "validation"
	// ClassificationPrecondition covers missing or unusable payment
	// methods; no gateway call was made.
	ClassificationPrecondition Classification = "precondition"
	// ClassificationTransient covers network errors, timeouts and gateway
	// 5xx responses; retried on the backoff schedule.
	ClassificationTransient Classification = "transient"
	// ClassificationPermanent covers declines that will not succeed until
	// the subscriber updates their payment method.
	ClassificationPermanent Classification = "permanent"
)

// ChargeError carries the gateway's decline code alongside the
// classification the retry machinery keys off.
type ChargeError struct {
	Classification Classification
	Code           string
	Message        string
}

func (e *ChargeError) Error() string {
	if e.Code != "" {
		return "charge failed: " + e.Code + ": " + e.Message
	}
	return "charge failed: " + e.Message
}

// Decline codes held until the payment method changes. Everything else the
// gateway rejects with is treated as transient.
var permanentCodes = map[string]struct{}{
	"card_declined":           {},
	"expired_card":            {},
	"insufficient_funds":      {},
	"authentication_required": {},
}

func IsPermanentCode(code string) bool {
	_, ok := permanentCodes[code]
	return ok
}

var customerMessages = map[string]string{
	"card_declined":           "Your card was declined. Please check with your bank or try a different card.",
	"insufficient_funds":      "Your card has insufficient funds. Please try a different card or top up your account.",
	"expired_card":            "Your card has expired. Please update your payment details.",
	"authentication_required": "Your bank requires extra authentication for this payment. Please update your payment details to re-authorise.",
}

const genericCustomerMessage = "We were unable to process your payment. Please check your payment details or contact us for help."

// CustomerMessage maps a gateway decline code to text safe to show a
// subscriber. Unknown codes get the generic fallback, never raw gateway
// text.
func CustomerMessage(code string) string {
	if msg, ok := customerMessages[code]; ok {
		return msg
	}
	return genericCustomerMessage
}

// ChargeRequest is one off-session charge against a stored payment method.
type ChargeRequest struct {
	IdempotencyKey  string
	Amount          int64
	Currency        string
	PaymentMethodID string
	Description     string
	Metadata        map[string]string
}

type GatewayCharge struct {
	TransactionID string
	Status        string
}

// WebhookEvent is the canonical gateway notification parsed by adapters.
type WebhookEvent struct {
	ProviderEventID string
	Type            string
	TransactionID   string
	FailureCode     string
	Amount          int64
	Currency        string
	OccurredAt      time.Time
	RawPayload      []byte
}

const (
	EventTypePaymentSucceeded = "payment_succeeded"
	EventTypePaymentFailed    = "payment_failed"
)

// Gateway is the external payment provider port. Charge returns a
// *ChargeError for provider-level failures so callers can classify without
// string matching.
type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) (*GatewayCharge, error)
	Verify(ctx context.Context, payload []byte, headers http.Header) error
	Parse(ctx context.Context, payload []byte) (*WebhookEvent, error)
}

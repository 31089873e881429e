package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	paymentdomain "github.com/middleworldfarms/soilsync/internal/payment/domain"
)

const apiBase = "https://api.stripe.com"

// Gateway charges stored payment methods off-session and verifies Stripe
// webhook notifications.
type Gateway struct {
	apiKey        string
	webhookSecret string
	baseURL       string
	client        *http.Client
}

func New(apiKey, webhookSecret string, timeout time.Duration) *Gateway {
	return &Gateway{
		apiKey:        strings.TrimSpace(apiKey),
		webhookSecret: strings.TrimSpace(webhookSecret),
		baseURL:       apiBase,
		client:        &http.Client{Timeout: timeout},
	}
}

// NewWithBaseURL points the gateway at a test server.
func NewWithBaseURL(apiKey, webhookSecret, baseURL string, timeout time.Duration) *Gateway {
	g := New(apiKey, webhookSecret, timeout)
	g.baseURL = strings.TrimRight(baseURL, "/")
	return g
}

// Charge confirms an off-session payment intent against a stored payment
// method. The Idempotency-Key header makes the gateway side of the call safe
// to repeat under the same key.
func (g *Gateway) Charge(ctx context.Context, req paymentdomain.ChargeRequest) (*paymentdomain.GatewayCharge, error) {
	if g.apiKey == "" {
		return nil, errors.New("stripe api key not configured")
	}

	data := url.Values{}
	data.Set("amount", strconv.FormatInt(req.Amount, 10))
	data.Set("currency", strings.ToLower(req.Currency))
	data.Set("payment_method", req.PaymentMethodID)
	data.Set("confirm", "true")
	data.Set("off_session", "true")
	if req.Description != "" {
		data.Set("description", req.Description)
	}
	for k, v := range req.Metadata {
		data.Set("metadata["+k+"]", v)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", g.baseURL+"/v1/payment_intents", strings.NewReader(data.Encode()))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		// Includes context deadline exceeded: the outcome is unknown, so
		// the caller retries later under the same idempotency key.
		return nil, &paymentdomain.ChargeError{
			Classification: paymentdomain.ClassificationTransient,
			Message:        err.Error(),
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &paymentdomain.ChargeError{
			Classification: paymentdomain.ClassificationTransient,
			Message:        err.Error(),
		}
	}

	if resp.StatusCode >= 500 {
		return nil, &paymentdomain.ChargeError{
			Classification: paymentdomain.ClassificationTransient,
			Message:        fmt.Sprintf("stripe api error: %d", resp.StatusCode),
		}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, classifyErrorBody(body, resp.StatusCode)
	}

	var intent stripePaymentIntent
	if err := json.Unmarshal(body, &intent); err != nil {
		return nil, &paymentdomain.ChargeError{
			Classification: paymentdomain.ClassificationTransient,
			Message:        "malformed stripe response",
		}
	}
	if intent.Status != "succeeded" {
		return nil, &paymentdomain.ChargeError{
			Classification: paymentdomain.ClassificationPermanent,
			Code:           "card_declined",
			Message:        "payment intent status " + intent.Status,
		}
	}
	return &paymentdomain.GatewayCharge{TransactionID: intent.ID, Status: intent.Status}, nil
}

func classifyErrorBody(body []byte, statusCode int) *paymentdomain.ChargeError {
	var wrapper struct {
		Error stripeError `json:"error"`
	}
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return &paymentdomain.ChargeError{
			Classification: paymentdomain.ClassificationTransient,
			Message:        fmt.Sprintf("stripe api error: %d", statusCode),
		}
	}

	code := strings.TrimSpace(wrapper.Error.DeclineCode)
	if code == "" {
		code = strings.TrimSpace(wrapper.Error.Code)
	}

	classification := paymentdomain.ClassificationTransient
	if paymentdomain.IsPermanentCode(code) {
		classification = paymentdomain.ClassificationPermanent
	} else if wrapper.Error.Type == "invalid_request_error" {
		classification = paymentdomain.ClassificationValidation
	}

	return &paymentdomain.ChargeError{
		Classification: classification,
		Code:           code,
		Message:        strings.TrimSpace(wrapper.Error.Message),
	}
}

// Verify checks the Stripe-Signature header: HMAC-SHA256 over
// "<timestamp>.<payload>" with the webhook secret.
func (g *Gateway) Verify(ctx context.Context, payload []byte, headers http.Header) error {
	sigHeader := strings.TrimSpace(headers.Get("Stripe-Signature"))
	if sigHeader == "" {
		return paymentdomain.ErrInvalidSignature
	}

	timestamp, signatures, err := parseSignatureHeader(sigHeader)
	if err != nil {
		return paymentdomain.ErrInvalidSignature
	}

	signedPayload := fmt.Sprintf("%s.%s", timestamp, string(payload))
	mac := hmac.New(sha256.New, []byte(g.webhookSecret))
	_, _ = mac.Write([]byte(signedPayload))
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, signature := range signatures {
		if hmac.Equal([]byte(signature), []byte(expected)) {
			return nil
		}
	}
	return paymentdomain.ErrInvalidSignature
}

func (g *Gateway) Parse(ctx context.Context, payload []byte) (*paymentdomain.WebhookEvent, error) {
	var event stripeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(event.ID) == "" {
		return nil, paymentdomain.ErrInvalidEvent
	}

	switch strings.TrimSpace(event.Type) {
	case "payment_intent.succeeded":
		return parseIntentEvent(event, payload, paymentdomain.EventTypePaymentSucceeded)
	case "payment_intent.payment_failed":
		return parseIntentEvent(event, payload, paymentdomain.EventTypePaymentFailed)
	default:
		return nil, paymentdomain.ErrEventIgnored
	}
}

func parseIntentEvent(event stripeEvent, payload []byte, eventType string) (*paymentdomain.WebhookEvent, error) {
	var intent stripePaymentIntent
	if err := json.Unmarshal(event.Data.Object, &intent); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(intent.ID) == "" {
		return nil, paymentdomain.ErrInvalidEvent
	}

	failureCode := ""
	if eventType == paymentdomain.EventTypePaymentFailed {
		failureCode = strings.TrimSpace(intent.LastPaymentError.DeclineCode)
		if failureCode == "" {
			failureCode = strings.TrimSpace(intent.LastPaymentError.Code)
		}
	}

	amount := intent.AmountReceived
	if amount <= 0 {
		amount = intent.Amount
	}

	return &paymentdomain.WebhookEvent{
		ProviderEventID: event.ID,
		Type:            eventType,
		TransactionID:   intent.ID,
		FailureCode:     failureCode,
		Amount:          amount,
		Currency:        strings.ToUpper(strings.TrimSpace(intent.Currency)),
		OccurredAt:      timestamp(intent.Created, event.Created),
		RawPayload:      payload,
	}, nil
}

func parseSignatureHeader(header string) (string, []string, error) {
	parts := strings.Split(header, ",")
	var ts string
	signatures := []string{}
	for _, part := range parts {
		piece := strings.TrimSpace(part)
		if piece == "" {
			continue
		}
		keyValue := strings.SplitN(piece, "=", 2)
		if len(keyValue) != 2 {
			continue
		}
		key := strings.TrimSpace(keyValue[0])
		value := strings.TrimSpace(keyValue[1])
		if key == "t" {
			ts = value
		}
		if key == "v1" {
			signatures = append(signatures, value)
		}
	}
	if ts == "" || len(signatures) == 0 {
		return "", nil, errors.New("invalid_signature")
	}
	return ts, signatures, nil
}

func timestamp(primary int64, fallback int64) time.Time {
	value := primary
	if value == 0 {
		value = fallback
	}
	if value == 0 {
		return time.Now().UTC()
	}
	return time.Unix(value, 0).UTC()
}

type stripeEvent struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Created int64           `json:"created"`
	Data    stripeEventData `json:"data"`
}

type stripeEventData struct {
	Object json.RawMessage `json:"object"`
}

type stripePaymentIntent struct {
	ID               string      `json:"id"`
	Amount           int64       `json:"amount"`
	AmountReceived   int64       `json:"amount_received"`
	Currency         string      `json:"currency"`
	Status           string      `json:"status"`
	Created          int64       `json:"created"`
	LastPaymentError stripeError `json:"last_payment_error"`
}

type stripeError struct {
	Type        string `json:"type"`
	Code        string `json:"code"`
	DeclineCode string `json:"decline_code"`
	Message     string `json:"message"`
}

package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// PaymentMethod is a tokenized payment method stored for a subscriber. The
// card itself never touches this system; the gateway holds it and hands back
// an opaque token.
type PaymentMethod struct {
	ID                      snowflake.ID `json:"id" gorm:"primaryKey"`
	SubscriberID            snowflake.ID `json:"subscriber_id" gorm:"not null;index"`
	Provider                string       `json:"provider" gorm:"type:varchar(50);not null"`
	ProviderPaymentMethodID string       `json:"provider_payment_method_id" gorm:"type:varchar(255);not null"`
	Last4                   string       `json:"last4" gorm:"type:varchar(4)"`
	Brand                   string       `json:"brand" gorm:"type:varchar(50)"`
	ExpMonth                int          `json:"exp_month"`
	ExpYear                 int          `json:"exp_year"`
	IsDefault               bool         `json:"is_default" gorm:"default:false"`
	CreatedAt               time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt               time.Time    `json:"updated_at" gorm:"not null"`
}

func (PaymentMethod) TableName() string { return "subscriber_payment_methods" }

// Usable reports whether the stored card can still be charged.
func (m *PaymentMethod) Usable(now time.Time) bool {
	if m.ExpYear == 0 {
		return true
	}
	if m.ExpYear > now.Year() {
		return true
	}
	return m.ExpYear == now.Year() && m.ExpMonth >= int(now.Month())
}

type ChargeStatus string

const (
	ChargeStatusPending   ChargeStatus = "pending"
	ChargeStatusSucceeded ChargeStatus = "succeeded"
	ChargeStatusFailed    ChargeStatus = "failed"
)

// ChargeRecord is one row per attempted external charge, keyed by the
// idempotency key. Inserting it gates the gateway call: a duplicate key means
// this billing cycle was already attempted and the recorded outcome stands.
type ChargeRecord struct {
	ID             snowflake.ID `json:"id" gorm:"primaryKey"`
	SubscriptionID snowflake.ID `json:"subscription_id" gorm:"not null;index"`
	IdempotencyKey string       `json:"idempotency_key" gorm:"type:varchar(255);not null;uniqueIndex"`
	Amount         int64        `json:"amount" gorm:"not null"`
	Currency       string       `json:"currency" gorm:"type:varchar(3);not null"`
	Status         ChargeStatus `json:"status" gorm:"type:varchar(20);not null"`

	GatewayTransactionID string `json:"gateway_transaction_id" gorm:"type:varchar(255)"`
	FailureCode          string `json:"failure_code" gorm:"type:varchar(100)"`
	FailureMessage       string `json:"failure_message" gorm:"type:text"`
	Classification       string `json:"classification" gorm:"type:varchar(20)"`

	AttemptedAt time.Time `json:"attempted_at" gorm:"not null"`
	CreatedAt   time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"not null"`
}

func (ChargeRecord) TableName() string { return "charge_records" }

// IdempotencyKeyFor builds the per-cycle key. The billing date component is
// the scheduled date, so retries within a cycle share the key while the next
// cycle gets a fresh one.
func IdempotencyKeyFor(subscriptionID snowflake.ID, billingAt time.Time) string {
	return "sub_" + subscriptionID.String() + "_billing_" + billingAt.UTC().Format("2006-01-02")
}

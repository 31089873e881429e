package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	plandomain "github.com/middleworldfarms/soilsync/internal/plan/domain"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusPaused   Status = "paused"
	StatusCanceled Status = "canceled"
	StatusExpired  Status = "expired"
)

// Subscription is one customer's recurring box. Status is never stored; it
// is derived from the timestamp fields so there is a single source of truth.
type Subscription struct {
	ID           snowflake.ID `json:"id" gorm:"primaryKey"`
	SubscriberID snowflake.ID `json:"subscriber_id" gorm:"not null;index"`
	PlanID       snowflake.ID `json:"plan_id" gorm:"not null;index"`

	// Price mirrors the referenced plan's price as of the last applied plan
	// change. Charging reads this field, not the plan row.
	Price    int64  `json:"price" gorm:"not null"`
	Currency string `json:"currency" gorm:"type:varchar(3);not null"`

	BillingPeriod     plandomain.BillingPeriod     `json:"billing_period" gorm:"type:varchar(10);not null"`
	BillingInterval   int                          `json:"billing_interval" gorm:"not null;default:1"`
	DeliveryDay       time.Weekday                 `json:"delivery_day" gorm:"not null"`
	FulfillmentMethod plandomain.FulfillmentMethod `json:"fulfillment_method" gorm:"type:varchar(20);not null"`

	StartsAt         time.Time  `json:"starts_at" gorm:"not null"`
	NextBillingAt    time.Time  `json:"next_billing_at" gorm:"not null;index"`
	NextDeliveryDate *time.Time `json:"next_delivery_date"`
	TrialEndsAt      *time.Time `json:"trial_ends_at"`
	CanceledAt       *time.Time `json:"canceled_at"`
	EndsAt           *time.Time `json:"ends_at"`
	PauseUntil       *time.Time `json:"pause_until"`

	FailedPaymentCount   int        `json:"failed_payment_count" gorm:"not null;default:0"`
	LastPaymentAttemptAt *time.Time `json:"last_payment_attempt_at"`
	LastPaymentError     *string    `json:"last_payment_error"`
	NextRetryAt          *time.Time `json:"next_retry_at"`
	GracePeriodEndsAt    *time.Time `json:"grace_period_ends_at"`

	// NeedsAttention marks a subscription that has exhausted automatic
	// retries and is waiting on manual dunning.
	NeedsAttention   bool `json:"needs_attention" gorm:"not null;default:false"`
	SkipAutoRenewal  bool `json:"skip_auto_renewal" gorm:"not null;default:false"`

	ExternalSubscriptionID *int64            `json:"external_subscription_id" gorm:"index"`
	Imported               bool              `json:"imported" gorm:"not null;default:false"`
	Metadata               datatypes.JSONMap `json:"metadata" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time `json:"updated_at" gorm:"not null"`
}

func (Subscription) TableName() string { return "subscriptions" }

// Status derives the lifecycle state from the timestamp fields. Exactly one
// state holds at any instant; precedence is canceled > expired > paused.
func (s *Subscription) Status(now time.Time) Status {
	if s.CanceledAt != nil {
		return StatusCanceled
	}
	if s.EndsAt != nil && !s.EndsAt.After(now) {
		return StatusExpired
	}
	if s.PauseUntil != nil && s.PauseUntil.After(now) {
		return StatusPaused
	}
	return StatusActive
}

func (s *Subscription) IsPaused(now time.Time) bool {
	return s.PauseUntil != nil && s.PauseUntil.After(now)
}

// DueForCharge reports whether a charge may run at now. A pending retry is
// due when its backoff has elapsed; otherwise the scheduled billing date
// governs. A row whose cycle was already billed under the lock is not due
// again, whatever batch it was selected in.
func (s *Subscription) DueForCharge(now time.Time) bool {
	if s.NextRetryAt != nil {
		return !s.NextRetryAt.After(now)
	}
	return !s.NextBillingAt.After(now)
}

// NextDeliveryOnOrAfter finds the first delivery slot on or after from,
// respecting the configured delivery weekday.
func (s *Subscription) NextDeliveryOnOrAfter(from time.Time) time.Time {
	days := (int(s.DeliveryDay) - int(from.Weekday()) + 7) % 7
	return from.AddDate(0, 0, days)
}

package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type BillingPeriod string

const (
	PeriodWeek  BillingPeriod = "week"
	PeriodMonth BillingPeriod = "month"
	PeriodYear  BillingPeriod = "year"
)

type FulfillmentMethod string

const (
	FulfillmentDelivery   FulfillmentMethod = "delivery"
	FulfillmentCollection FulfillmentMethod = "collection"
)

type BoxSize string

const (
	BoxSingle      BoxSize = "single"
	BoxCouple      BoxSize = "couple"
	BoxSmallFamily BoxSize = "small_family"
	BoxLargeFamily BoxSize = "large_family"
)

// Frequency is the customer-facing billing cadence name. Each maps to a
// (period, interval) pair on the plan.
type Frequency string

const (
	FrequencyWeekly      Frequency = "weekly"
	FrequencyFortnightly Frequency = "fortnightly"
	FrequencyMonthly     Frequency = "monthly"
	FrequencyAnnual      Frequency = "annual"
)

var (
	ErrPlanNotFound             = errors.New("plan not found")
	ErrInvalidBillingPeriod     = errors.New("invalid billing period")
	ErrInvalidBillingInterval   = errors.New("invalid billing interval")
	ErrInvalidFulfillmentMethod = errors.New("invalid fulfillment method")
	ErrInvalidBoxSize           = errors.New("invalid box size")
	ErrInvalidFrequency         = errors.New("invalid billing frequency")
)

// Plan is one priced box offering. Plans are immutable once referenced by a
// subscription; pricing changes create new rows and retire the old one.
type Plan struct {
	ID                snowflake.ID      `json:"id" gorm:"primaryKey"`
	Name              string            `json:"name" gorm:"type:text;not null"`
	Slug              string            `json:"slug" gorm:"type:text;not null;uniqueIndex"`
	Price             int64             `json:"price" gorm:"not null"`
	Currency          string            `json:"currency" gorm:"type:varchar(3);not null"`
	BoxSize           BoxSize           `json:"box_size" gorm:"type:varchar(20);not null;index"`
	BillingPeriod     BillingPeriod     `json:"billing_period" gorm:"type:varchar(10);not null"`
	BillingInterval   int               `json:"billing_interval" gorm:"not null;default:1"`
	FulfillmentMethod FulfillmentMethod `json:"fulfillment_method" gorm:"type:varchar(20);not null"`
	// Active carries no column default on purpose: gorm skips zero-value
	// fields that have one, which would make a retired plan impossible to
	// insert.
	Active            bool              `json:"active" gorm:"not null"`
	CreatedAt         time.Time         `json:"created_at" gorm:"not null"`
	UpdatedAt         time.Time         `json:"updated_at" gorm:"not null"`
}

func (Plan) TableName() string { return "plans" }

// PeriodInterval returns the (period, interval) pair a frequency stands for.
func (f Frequency) PeriodInterval() (BillingPeriod, int, error) {
	switch f {
	case FrequencyWeekly:
		return PeriodWeek, 1, nil
	case FrequencyFortnightly:
		return PeriodWeek, 2, nil
	case FrequencyMonthly:
		return PeriodMonth, 1, nil
	case FrequencyAnnual:
		return PeriodYear, 1, nil
	default:
		return "", 0, ErrInvalidFrequency
	}
}

// AddTo advances t by interval periods. Months and years use calendar
// arithmetic so monthly billing stays anchored to the day of month.
func (p BillingPeriod) AddTo(t time.Time, interval int) (time.Time, error) {
	if interval <= 0 {
		return time.Time{}, ErrInvalidBillingInterval
	}
	switch p {
	case PeriodWeek:
		return t.AddDate(0, 0, 7*interval), nil
	case PeriodMonth:
		return t.AddDate(0, interval, 0), nil
	case PeriodYear:
		return t.AddDate(interval, 0, 0), nil
	default:
		return time.Time{}, ErrInvalidBillingPeriod
	}
}

func ParseFulfillmentMethod(value string) (FulfillmentMethod, error) {
	switch FulfillmentMethod(value) {
	case FulfillmentDelivery, FulfillmentCollection:
		return FulfillmentMethod(value), nil
	default:
		return "", ErrInvalidFulfillmentMethod
	}
}

func ParseFrequency(value string) (Frequency, error) {
	switch Frequency(value) {
	case FrequencyWeekly, FrequencyFortnightly, FrequencyMonthly, FrequencyAnnual:
		return Frequency(value), nil
	default:
		return "", ErrInvalidFrequency
	}
}

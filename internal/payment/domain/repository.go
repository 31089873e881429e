package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertMethod(ctx context.Context, db *gorm.DB, method *PaymentMethod) error
	// FindDefaultMethod returns the subscriber's default method, or nil
	// when none is stored.
	FindDefaultMethod(ctx context.Context, db *gorm.DB, subscriberID snowflake.ID) (*PaymentMethod, error)

	// InsertChargeRecord returns gorm.ErrDuplicatedKey when a record with
	// the same idempotency key already exists.
	InsertChargeRecord(ctx context.Context, db *gorm.DB, record *ChargeRecord) error
	FindChargeRecordByKey(ctx context.Context, db *gorm.DB, key string) (*ChargeRecord, error)
	FindChargeRecordByTransaction(ctx context.Context, db *gorm.DB, transactionID string) (*ChargeRecord, error)
	UpdateChargeRecord(ctx context.Context, db *gorm.DB, record *ChargeRecord) error
}

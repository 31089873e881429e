package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/middleworldfarms/soilsync/internal/payment/domain"
	"gorm.io/gorm"
)

type repository struct{}

func Provide() domain.Repository {
	return &repository{}
}

func (r *repository) InsertMethod(ctx context.Context, db *gorm.DB, method *domain.PaymentMethod) error {
	return db.WithContext(ctx).Create(method).Error
}

func (r *repository) FindDefaultMethod(ctx context.Context, db *gorm.DB, subscriberID snowflake.ID) (*domain.PaymentMethod, error) {
	var method domain.PaymentMethod
	err := db.WithContext(ctx).
		Where("subscriber_id = ? AND is_default = ?", subscriberID, true).
		Order("updated_at DESC").
		First(&method).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &method, nil
}

func (r *repository) InsertChargeRecord(ctx context.Context, db *gorm.DB, record *domain.ChargeRecord) error {
	return db.WithContext(ctx).Create(record).Error
}

func (r *repository) FindChargeRecordByKey(ctx context.Context, db *gorm.DB, key string) (*domain.ChargeRecord, error) {
	var record domain.ChargeRecord
	err := db.WithContext(ctx).Where("idempotency_key = ?", key).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *repository) FindChargeRecordByTransaction(ctx context.Context, db *gorm.DB, transactionID string) (*domain.ChargeRecord, error) {
	var record domain.ChargeRecord
	err := db.WithContext(ctx).
		Where("gateway_transaction_id = ?", transactionID).
		Order("attempted_at DESC").
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *repository) UpdateChargeRecord(ctx context.Context, db *gorm.DB, record *domain.ChargeRecord) error {
	return db.WithContext(ctx).Save(record).Error
}

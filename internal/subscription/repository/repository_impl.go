package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/middleworldfarms/soilsync/internal/subscription/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repository struct{}

func Provide() domain.Repository {
	return &repository{}
}

func (r *repository) Insert(ctx context.Context, db *gorm.DB, sub *domain.Subscription) error {
	return db.WithContext(ctx).Create(sub).Error
}

func (r *repository) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Subscription, error) {
	var sub domain.Subscription
	err := db.WithContext(ctx).Where("id = ?", id).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *repository) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.Subscription, error) {
	var sub domain.Subscription
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *repository) Update(ctx context.Context, db *gorm.DB, sub *domain.Subscription) error {
	return db.WithContext(ctx).Save(sub).Error
}

func (r *repository) FindDue(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]*domain.Subscription, error) {
	var subs []*domain.Subscription
	q := db.WithContext(ctx).
		Where("next_billing_at <= ?", now).
		Where("skip_auto_renewal = ?", false).
		Where("needs_attention = ?", false).
		Where("next_retry_at IS NULL OR next_retry_at <= ?", now).
		Where("canceled_at IS NULL OR ends_at > ?", now).
		Where("pause_until IS NULL OR pause_until <= ?", now).
		Order("next_billing_at ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}

func (r *repository) FindRetryDue(ctx context.Context, db *gorm.DB, now time.Time, maxAttempts int, limit int) ([]*domain.Subscription, error) {
	var subs []*domain.Subscription
	q := db.WithContext(ctx).
		Where("failed_payment_count > 0 AND failed_payment_count <= ?", maxAttempts).
		Where("needs_attention = ?", false).
		Where("skip_auto_renewal = ?", false).
		Where("next_retry_at IS NOT NULL AND next_retry_at <= ?", now).
		Where("canceled_at IS NULL OR ends_at > ?", now).
		Where("pause_until IS NULL OR pause_until <= ?", now).
		Order("failed_payment_count ASC, last_payment_attempt_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}

func (r *repository) DeferBilling(ctx context.Context, db *gorm.DB, id snowflake.ID, resume time.Time, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE subscriptions
		 SET skip_auto_renewal = ?, next_billing_at = ?, updated_at = ?
		 WHERE id = ?`,
		true,
		resume,
		now,
		id,
	).Error
}

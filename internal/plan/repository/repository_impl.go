package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/middleworldfarms/soilsync/internal/plan/domain"
	"gorm.io/gorm"
)

type repository struct{}

func Provide() domain.Repository {
	return &repository{}
}

func (r *repository) Insert(ctx context.Context, db *gorm.DB, plan *domain.Plan) error {
	return db.WithContext(ctx).Create(plan).Error
}

func (r *repository) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Plan, error) {
	var plan domain.Plan
	err := db.WithContext(ctx).Where("id = ?", id).First(&plan).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

func (r *repository) FindMatch(
	ctx context.Context,
	db *gorm.DB,
	size domain.BoxSize,
	period domain.BillingPeriod,
	interval int,
	method domain.FulfillmentMethod,
) (*domain.Plan, error) {
	var plan domain.Plan
	err := db.WithContext(ctx).
		Where("box_size = ? AND billing_period = ? AND billing_interval = ? AND fulfillment_method = ? AND active = ?",
			size, period, interval, method, true).
		Order("created_at DESC").
		First(&plan).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, plan *Plan) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Plan, error)
	// FindMatch resolves the active plan for a box size, billing cadence and
	// fulfillment method. Returns nil when no plan matches.
	FindMatch(ctx context.Context, db *gorm.DB, size BoxSize, period BillingPeriod, interval int, method FulfillmentMethod) (*Plan, error)
}

// Catalog resolves plans for lifecycle operations. Returns
// ErrPlanNotFound when no active plan matches the requested shape.
type Catalog interface {
	Get(ctx context.Context, id snowflake.ID) (*Plan, error)
	FindPlan(ctx context.Context, size BoxSize, period BillingPeriod, interval int, method FulfillmentMethod) (*Plan, error)
}

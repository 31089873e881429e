package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, sub *Subscription) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Subscription, error)
	// FindByIDForUpdate takes a row-level lock; callers must hold a
	// transaction and re-validate state before mutating.
	FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*Subscription, error)
	Update(ctx context.Context, db *gorm.DB, sub *Subscription) error

	// FindDue selects subscriptions whose billing is due at now, excluding
	// skip-auto-renewal, canceled-and-ended, still-paused,
	// needs-attention and backoff-pending rows. Ordered by
	// next_billing_at then id.
	FindDue(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]*Subscription, error)

	// FindRetryDue selects failed subscriptions whose backoff delay has
	// elapsed, ordered by failure count then last attempt.
	FindRetryDue(ctx context.Context, db *gorm.DB, now time.Time, maxAttempts int, limit int) ([]*Subscription, error)

	// DeferBilling is the scheduler's closure-window write: park the
	// subscription until the resume billing date without charging it.
	DeferBilling(ctx context.Context, db *gorm.DB, id snowflake.ID, resume time.Time, now time.Time) error
}

package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	plandomain "github.com/middleworldfarms/soilsync/internal/plan/domain"
)

// Lifecycle carries the synchronous customer-triggered transitions. Every
// operation validates the derived status before mutating, commits the local
// mutation in one transaction, then pushes state to the commerce platform
// outside it.
type Lifecycle interface {
	Pause(ctx context.Context, id snowflake.ID, until time.Time) (*Subscription, error)
	Resume(ctx context.Context, id snowflake.ID) (*Subscription, error)
	Cancel(ctx context.Context, id snowflake.ID) (*Subscription, error)
	ChangePlan(ctx context.Context, id snowflake.ID, newPlanID snowflake.ID) (*Subscription, error)
	ChangeDeliveryMethod(ctx context.Context, id snowflake.ID, method plandomain.FulfillmentMethod) (*Subscription, error)
	ChangeFrequency(ctx context.Context, id snowflake.ID, freq plandomain.Frequency) (*Subscription, error)
}

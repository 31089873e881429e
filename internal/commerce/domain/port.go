package domain

import (
	"context"

	subscriptiondomain "github.com/middleworldfarms/soilsync/internal/subscription/domain"
)

// Port is the logical interface onto the external commerce platform's
// subscription records. ReplaceLineItems must be atomic: existing items and
// their metadata are deleted and the new set inserted in one transaction,
// with the stored total recomputed from the new items.
type Port interface {
	GetLineItems(ctx context.Context, externalID int64) ([]LineItem, error)
	ReplaceLineItems(ctx context.Context, externalID int64, items []LineItem) error
	SetMeta(ctx context.Context, externalID int64, key, value string) error
}

// Syncer pushes a subscription's current state outward. Implementations log
// failures; callers never roll back local state because a push failed.
type Syncer interface {
	SyncSubscription(ctx context.Context, sub *subscriptiondomain.Subscription) error
	// TriggerSync runs SyncSubscription fire-and-forget with its own
	// bounded-timeout context.
	TriggerSync(sub *subscriptiondomain.Subscription)
}

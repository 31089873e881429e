package service

import (
	"context"
	"strconv"
	"time"

	"github.com/middleworldfarms/soilsync/internal/clock"
	"github.com/middleworldfarms/soilsync/internal/commerce/domain"
	"github.com/middleworldfarms/soilsync/internal/observability"
	plandomain "github.com/middleworldfarms/soilsync/internal/plan/domain"
	subscriptiondomain "github.com/middleworldfarms/soilsync/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// syncTimeout bounds a fire-and-forget push so a hung commerce database
// cannot pin goroutines open.
const syncTimeout = 30 * time.Second

type Service struct {
	port    domain.Port
	plans   plandomain.Catalog
	clock   clock.Clock
	log     *zap.Logger
	metrics *observability.BillingMetrics
}

type ServiceParam struct {
	fx.In

	Port    domain.Port `optional:"true"`
	Plans   plandomain.Catalog
	Clock   clock.Clock
	Log     *zap.Logger
	Metrics *observability.BillingMetrics
}

func NewService(p ServiceParam) domain.Syncer {
	return &Service{
		port:    p.Port,
		plans:   p.Plans,
		clock:   p.Clock,
		log:     p.Log.Named("commerce.syncer"),
		metrics: p.Metrics,
	}
}

// SyncSubscription pushes the subscription's current cadence, fulfillment
// method, next payment date and line items to the external commerce record.
// Local state is already committed when this runs; a failed push is logged
// and retried on the next lifecycle event, never rolled back.
func (s *Service) SyncSubscription(ctx context.Context, sub *subscriptiondomain.Subscription) error {
	if s.port == nil {
		return domain.ErrSyncDisabled
	}
	if sub.ExternalSubscriptionID == nil {
		return domain.ErrRecordNotLinked
	}
	externalID := *sub.ExternalSubscriptionID

	plan, err := s.plans.Get(ctx, sub.PlanID)
	if err != nil {
		return err
	}

	if err := s.port.ReplaceLineItems(ctx, externalID, []domain.LineItem{s.lineItemFor(sub, plan)}); err != nil {
		return err
	}

	meta := map[string]string{
		domain.MetaBillingPeriod:   string(sub.BillingPeriod),
		domain.MetaBillingInterval: strconv.Itoa(sub.BillingInterval),
		domain.MetaNextPayment:     sub.NextBillingAt.UTC().Format("2006-01-02 15:04:05"),
		domain.MetaShippingMethod:  string(sub.FulfillmentMethod),
	}
	for key, value := range meta {
		if err := s.port.SetMeta(ctx, externalID, key, value); err != nil {
			return err
		}
	}
	return nil
}

// TriggerSync pushes in the background so lifecycle and billing callers
// never block on the commerce database.
func (s *Service) TriggerSync(sub *subscriptiondomain.Subscription) {
	if s.port == nil || sub == nil || sub.ExternalSubscriptionID == nil {
		return
	}
	snapshot := *sub
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
		defer cancel()

		if err := s.SyncSubscription(ctx, &snapshot); err != nil {
			s.metrics.SyncPushes.WithLabelValues("failure").Inc()
			s.log.Warn("commerce sync push failed",
				zap.Int64("subscription_id", int64(snapshot.ID)),
				zap.Int64("external_id", *snapshot.ExternalSubscriptionID),
				zap.Error(err))
			return
		}
		s.metrics.SyncPushes.WithLabelValues("success").Inc()
		s.log.Info("commerce sync push completed",
			zap.Int64("subscription_id", int64(snapshot.ID)),
			zap.Int64("external_id", *snapshot.ExternalSubscriptionID))
	}()
}

func (s *Service) lineItemFor(sub *subscriptiondomain.Subscription, plan *plandomain.Plan) domain.LineItem {
	item := domain.LineItem{
		Name:     plan.Name,
		Quantity: 1,
		Subtotal: sub.Price,
		Total:    sub.Price,
	}
	// Linked product ids live in subscription metadata when the record was
	// imported from the commerce platform.
	if sub.Metadata != nil {
		item.ProductID = metaInt64(sub.Metadata["product_id"])
		item.VariationID = metaInt64(sub.Metadata["variation_id"])
		if class, ok := sub.Metadata["shipping_class"].(string); ok {
			item.ShippingClass = class
		}
	}
	return item
}

func metaInt64(value any) int64 {
	switch v := value.(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	default:
		return 0
	}
}

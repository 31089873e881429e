package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/middleworldfarms/soilsync/internal/clock"
	commercedomain "github.com/middleworldfarms/soilsync/internal/commerce/domain"
	plandomain "github.com/middleworldfarms/soilsync/internal/plan/domain"
	"github.com/middleworldfarms/soilsync/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service applies customer-triggered transitions. Every operation validates
// against the derived status under a row lock, commits in one transaction,
// then pushes the committed state outward.
type Service struct {
	db     *gorm.DB
	log    *zap.Logger
	clock  clock.Clock
	repo   domain.Repository
	plans  plandomain.Catalog
	syncer commercedomain.Syncer
}

type ServiceParam struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	Clock  clock.Clock
	Repo   domain.Repository
	Plans  plandomain.Catalog
	Syncer commercedomain.Syncer
}

func NewService(p ServiceParam) domain.Lifecycle {
	return &Service{
		db:     p.DB,
		log:    p.Log.Named("subscription.lifecycle"),
		clock:  p.Clock,
		repo:   p.Repo,
		plans:  p.Plans,
		syncer: p.Syncer,
	}
}

// mutate runs fn against the locked subscription and saves the result. fn
// returning an error aborts the transaction with zero field writes.
func (s *Service) mutate(ctx context.Context, id snowflake.ID, fn func(sub *domain.Subscription, now time.Time) error) (*domain.Subscription, error) {
	now := s.clock.Now(ctx)
	var mutated *domain.Subscription
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sub, err := s.repo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if sub == nil {
			return domain.ErrSubscriptionNotFound
		}
		if err := fn(sub, now); err != nil {
			return err
		}
		sub.UpdatedAt = now
		if err := s.repo.Update(ctx, tx, sub); err != nil {
			return err
		}
		mutated = sub
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.syncer.TriggerSync(mutated)
	return mutated, nil
}

func (s *Service) Pause(ctx context.Context, id snowflake.ID, until time.Time) (*domain.Subscription, error) {
	return s.mutate(ctx, id, func(sub *domain.Subscription, now time.Time) error {
		if sub.Status(now) == domain.StatusCanceled {
			return domain.ErrAlreadyCanceled
		}
		if !until.After(now) {
			return domain.ErrPauseDateNotFuture
		}
		sub.PauseUntil = &until
		nextDelivery := sub.NextDeliveryOnOrAfter(until)
		sub.NextDeliveryDate = &nextDelivery

		s.log.Info("subscription paused",
			zap.Int64("subscription_id", int64(sub.ID)),
			zap.Time("pause_until", until))
		return nil
	})
}

func (s *Service) Resume(ctx context.Context, id snowflake.ID) (*domain.Subscription, error) {
	return s.mutate(ctx, id, func(sub *domain.Subscription, now time.Time) error {
		if sub.Status(now) != domain.StatusPaused {
			return domain.ErrNotPaused
		}
		sub.PauseUntil = nil
		nextDelivery := sub.NextDeliveryOnOrAfter(now)
		sub.NextDeliveryDate = &nextDelivery

		s.log.Info("subscription resumed", zap.Int64("subscription_id", int64(sub.ID)))
		return nil
	})
}

// Cancel keeps the row. ends_at holds the already-paid cycle open so the
// subscriber receives what they paid for.
func (s *Service) Cancel(ctx context.Context, id snowflake.ID) (*domain.Subscription, error) {
	return s.mutate(ctx, id, func(sub *domain.Subscription, now time.Time) error {
		if sub.CanceledAt != nil {
			return domain.ErrAlreadyCanceled
		}
		endsAt := sub.NextBillingAt
		sub.CanceledAt = &now
		sub.EndsAt = &endsAt

		s.log.Info("subscription canceled",
			zap.Int64("subscription_id", int64(sub.ID)),
			zap.Time("ends_at", endsAt))
		return nil
	})
}

// ChangePlan updates the plan reference and price now; charging only picks
// the new price up at the next cycle, so the already-paid cycle is never
// prorated.
func (s *Service) ChangePlan(ctx context.Context, id snowflake.ID, newPlanID snowflake.ID) (*domain.Subscription, error) {
	return s.mutate(ctx, id, func(sub *domain.Subscription, now time.Time) error {
		if sub.Status(now) == domain.StatusCanceled {
			return domain.ErrAlreadyCanceled
		}
		if sub.PlanID == newPlanID {
			return domain.ErrSamePlan
		}
		plan, err := s.plans.Get(ctx, newPlanID)
		if err != nil {
			return err
		}

		sub.PlanID = plan.ID
		sub.Price = plan.Price
		sub.Currency = plan.Currency
		sub.BillingPeriod = plan.BillingPeriod
		sub.BillingInterval = plan.BillingInterval
		sub.FulfillmentMethod = plan.FulfillmentMethod

		s.log.Info("subscription plan changed",
			zap.Int64("subscription_id", int64(sub.ID)),
			zap.Int64("plan_id", int64(plan.ID)),
			zap.Int64("price", plan.Price))
		return nil
	})
}

// ChangeDeliveryMethod fails closed: when no plan matches the requested
// method, the subscription is left without a single field write.
func (s *Service) ChangeDeliveryMethod(ctx context.Context, id snowflake.ID, method plandomain.FulfillmentMethod) (*domain.Subscription, error) {
	return s.mutate(ctx, id, func(sub *domain.Subscription, now time.Time) error {
		if sub.Status(now) == domain.StatusCanceled {
			return domain.ErrAlreadyCanceled
		}
		current, err := s.plans.Get(ctx, sub.PlanID)
		if err != nil {
			return err
		}
		plan, err := s.plans.FindPlan(ctx, current.BoxSize, sub.BillingPeriod, sub.BillingInterval, method)
		if err != nil {
			return err
		}

		sub.PlanID = plan.ID
		sub.Price = plan.Price
		sub.FulfillmentMethod = method

		s.log.Info("subscription delivery method changed",
			zap.Int64("subscription_id", int64(sub.ID)),
			zap.String("fulfillment_method", string(method)),
			zap.Int64("plan_id", int64(plan.ID)))
		return nil
	})
}

// ChangeFrequency re-anchors the schedule from now because the cadence
// itself changed; the old next_billing_at belongs to the old cadence.
func (s *Service) ChangeFrequency(ctx context.Context, id snowflake.ID, freq plandomain.Frequency) (*domain.Subscription, error) {
	return s.mutate(ctx, id, func(sub *domain.Subscription, now time.Time) error {
		if sub.Status(now) == domain.StatusCanceled {
			return domain.ErrAlreadyCanceled
		}
		period, interval, err := freq.PeriodInterval()
		if err != nil {
			return err
		}
		current, err := s.plans.Get(ctx, sub.PlanID)
		if err != nil {
			return err
		}
		plan, err := s.plans.FindPlan(ctx, current.BoxSize, period, interval, sub.FulfillmentMethod)
		if err != nil {
			return err
		}

		nextBilling, err := period.AddTo(now, interval)
		if err != nil {
			return err
		}

		sub.PlanID = plan.ID
		sub.Price = plan.Price
		sub.BillingPeriod = period
		sub.BillingInterval = interval
		sub.NextBillingAt = nextBilling

		s.log.Info("subscription frequency changed",
			zap.Int64("subscription_id", int64(sub.ID)),
			zap.String("frequency", string(freq)),
			zap.Time("next_billing_at", nextBilling))
		return nil
	})
}

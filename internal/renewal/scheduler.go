package renewal

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/middleworldfarms/soilsync/internal/clock"
	"github.com/middleworldfarms/soilsync/internal/closure"
	"github.com/middleworldfarms/soilsync/internal/config"
	"github.com/middleworldfarms/soilsync/internal/observability"
	paymentdomain "github.com/middleworldfarms/soilsync/internal/payment/domain"
	subscriptiondomain "github.com/middleworldfarms/soilsync/internal/subscription/domain"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Scheduler drives one renewal batch: select what is due, hand each
// subscription to the payment processor, and account for the outcomes. It is
// invoked periodically by cron, not resident.
type Scheduler struct {
	db        *gorm.DB
	log       *zap.Logger
	clock     clock.Clock
	subs      subscriptiondomain.Repository
	processor paymentdomain.Processor
	calendar  *closure.Calendar
	lease     *lease
	metrics   *observability.BillingMetrics

	batchSize   int
	maxAttempts int
}

type SchedulerParam struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Clock     clock.Clock
	Subs      subscriptiondomain.Repository
	Processor paymentdomain.Processor
	Calendar  *closure.Calendar
	Redis     *redis.Client
	Metrics   *observability.BillingMetrics
	Config    *config.Config
}

func NewScheduler(p SchedulerParam) *Scheduler {
	return &Scheduler{
		db:        p.DB,
		log:       p.Log.Named("renewal.scheduler"),
		clock:     p.Clock,
		subs:      p.Subs,
		processor: p.Processor,
		calendar:  p.Calendar,
		lease:     &lease{client: p.Redis, ttl: p.Config.Scheduler.LockTTL},
		metrics:   p.Metrics,

		batchSize:   p.Config.Scheduler.BatchSize,
		maxAttempts: p.Config.Billing.MaxFailedAttempts,
	}
}

// DueSubscriptions returns the ordered batch of fresh renewals. A candidate
// whose billing date falls inside the closure window is deferred here, at
// selection time: the scheduler writes the resume date and drops it from
// the batch. That is a calendar decision, not a failed attempt.
func (s *Scheduler) DueSubscriptions(ctx context.Context, now time.Time) ([]*subscriptiondomain.Subscription, error) {
	due, err := s.subs.FindDue(ctx, s.db, now, s.batchSize)
	if err != nil {
		return nil, err
	}
	return s.applyClosure(ctx, now, due)
}

// RetryCandidates returns failed subscriptions whose backoff delay has
// elapsed, worst attempts last so fresh failures go first.
func (s *Scheduler) RetryCandidates(ctx context.Context, now time.Time) ([]*subscriptiondomain.Subscription, error) {
	retries, err := s.subs.FindRetryDue(ctx, s.db, now, s.maxAttempts, s.batchSize)
	if err != nil {
		return nil, err
	}
	return s.applyClosure(ctx, now, retries)
}

func (s *Scheduler) applyClosure(ctx context.Context, now time.Time, subs []*subscriptiondomain.Subscription) ([]*subscriptiondomain.Subscription, error) {
	kept := subs[:0]
	for _, sub := range subs {
		decision := s.calendar.Resolve(sub.NextBillingAt)
		if !decision.Defer {
			kept = append(kept, sub)
			continue
		}
		if err := s.subs.DeferBilling(ctx, s.db, sub.ID, decision.ResumeBilling, now); err != nil {
			return nil, err
		}
		s.log.Info("billing deferred for seasonal closure",
			zap.Int64("subscription_id", int64(sub.ID)),
			zap.Time("resume_billing", decision.ResumeBilling))
	}
	return kept, nil
}

// Run executes one batch invocation. Retries are processed before fresh
// dues so accounts already in trouble are resolved first.
func (s *Scheduler) Run(ctx context.Context) error {
	runID := uuid.NewString()
	log := s.log.With(zap.String("run_id", runID))

	held, err := s.lease.acquire(ctx, runID)
	if err != nil {
		return err
	}
	if !held {
		log.Info("renewal run skipped, lease held elsewhere")
		s.metrics.RenewalSkipped.Inc()
		return nil
	}
	defer func() {
		if err := s.lease.release(context.WithoutCancel(ctx), runID); err != nil {
			log.Warn("lease release failed", zap.Error(err))
		}
	}()

	now := s.clock.Now(ctx)
	log.Info("renewal run started", zap.Time("now", now))

	retries, err := s.RetryCandidates(ctx, now)
	if err != nil {
		return err
	}
	due, err := s.DueSubscriptions(ctx, now)
	if err != nil {
		return err
	}

	// A subscription with both an elapsed retry and a past-due billing date
	// is selected by both queries; it must be charged once per run.
	seen := make(map[snowflake.ID]struct{}, len(retries)+len(due))

	var succeeded, failed, skipped int
	for _, sub := range append(retries, due...) {
		if _, dup := seen[sub.ID]; dup {
			continue
		}
		seen[sub.ID] = struct{}{}
		result, err := s.processor.Charge(ctx, sub.ID)
		if err != nil {
			failed++
			log.Error("charge attempt errored",
				zap.Int64("subscription_id", int64(sub.ID)),
				zap.Error(err))
			continue
		}
		switch result.Outcome {
		case paymentdomain.OutcomeSucceeded, paymentdomain.OutcomeAlreadyProcessed:
			succeeded++
		case paymentdomain.OutcomeFailed:
			failed++
		default:
			skipped++
		}
	}

	s.metrics.RenewalRuns.Inc()
	log.Info("renewal run finished",
		zap.Int("retries", len(retries)),
		zap.Int("due", len(due)),
		zap.Int("succeeded", succeeded),
		zap.Int("failed", failed),
		zap.Int("skipped", skipped))
	return nil
}

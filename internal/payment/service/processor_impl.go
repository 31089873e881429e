package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/middleworldfarms/soilsync/internal/clock"
	commercedomain "github.com/middleworldfarms/soilsync/internal/commerce/domain"
	"github.com/middleworldfarms/soilsync/internal/config"
	"github.com/middleworldfarms/soilsync/internal/observability"
	"github.com/middleworldfarms/soilsync/internal/payment/domain"
	subscriptiondomain "github.com/middleworldfarms/soilsync/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Processor struct {
	db      *gorm.DB
	log     *zap.Logger
	clock   clock.Clock
	idGen   *snowflake.Node
	repo    domain.Repository
	subs    subscriptiondomain.Repository
	gateway domain.Gateway
	backoff domain.BackoffPolicy
	syncer  commercedomain.Syncer
	metrics *observability.BillingMetrics

	maxAttempts int
	gracePeriod time.Duration
	timeout     time.Duration
}

type ProcessorParam struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Clock   clock.Clock
	IDGen   *snowflake.Node
	Repo    domain.Repository
	Subs    subscriptiondomain.Repository
	Gateway domain.Gateway
	Backoff domain.BackoffPolicy
	Syncer  commercedomain.Syncer
	Metrics *observability.BillingMetrics
	Config  *config.Config
}

func NewProcessor(p ProcessorParam) domain.Processor {
	return &Processor{
		db:          p.DB,
		log:         p.Log.Named("payment.processor"),
		clock:       p.Clock,
		idGen:       p.IDGen,
		repo:        p.Repo,
		subs:        p.Subs,
		gateway:     p.Gateway,
		backoff:     p.Backoff,
		syncer:      p.Syncer,
		metrics:     p.Metrics,
		maxAttempts: p.Config.Billing.MaxFailedAttempts,
		gracePeriod: time.Duration(p.Config.Billing.GracePeriodDays) * 24 * time.Hour,
		timeout:     p.Config.Gateway.Timeout,
	}
}

// Charge bills one subscription for its current cycle. The whole attempt
// runs under a row lock so a concurrent scheduler pass or manual retrigger
// serializes behind it, and the charge record's unique idempotency key keeps
// the cycle at-most-once across runs.
func (s *Processor) Charge(ctx context.Context, subscriptionID snowflake.ID) (*domain.Result, error) {
	now := s.clock.Now(ctx)

	var result *domain.Result
	var synced *subscriptiondomain.Subscription
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sub, err := s.subs.FindByIDForUpdate(ctx, tx, subscriptionID)
		if err != nil {
			return err
		}
		if sub == nil {
			return subscriptiondomain.ErrSubscriptionNotFound
		}

		// Re-derive under the lock. A pause or cancel landing after the
		// subscription was scheduled must be honored here.
		if status := sub.Status(now); status != subscriptiondomain.StatusActive {
			s.log.Info("charge skipped, subscription not chargeable",
				zap.Int64("subscription_id", int64(sub.ID)),
				zap.String("status", string(status)))
			result = &domain.Result{Outcome: domain.OutcomeSkipped}
			return nil
		}

		// Re-check dueness under the lock too. A charge that settled between
		// scheduling and this read has already advanced next_billing_at, and
		// billing the locked row again would open a key for the NEXT cycle.
		if !sub.DueForCharge(now) {
			s.log.Info("charge skipped, subscription not due",
				zap.Int64("subscription_id", int64(sub.ID)),
				zap.Time("next_billing_at", sub.NextBillingAt))
			result = &domain.Result{Outcome: domain.OutcomeSkipped}
			return nil
		}

		record, done, err := s.openChargeRecord(ctx, tx, sub, now)
		if err != nil {
			return err
		}
		if done != nil {
			result = done
			return nil
		}

		method, err := s.repo.FindDefaultMethod(ctx, tx, sub.SubscriberID)
		if err != nil {
			return err
		}
		if method == nil || !method.Usable(now) {
			result, err = s.recordFailure(ctx, tx, sub, record, now, &domain.ChargeError{
				Classification: domain.ClassificationPrecondition,
				Message:        "no payment method on file",
			})
			return err
		}

		charge, chargeErr := s.callGateway(ctx, sub, method, record.IdempotencyKey)
		if chargeErr != nil {
			result, err = s.recordFailure(ctx, tx, sub, record, now, chargeErr)
			return err
		}

		result, err = s.recordSuccess(ctx, tx, sub, record, charge, now)
		if err != nil {
			return err
		}
		synced = sub
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ChargesTotal.WithLabelValues(string(result.Outcome)).Inc()
	if synced != nil {
		s.syncer.TriggerSync(synced)
	}
	return result, nil
}

// openChargeRecord inserts the cycle's charge record, or resolves an
// existing one. A succeeded record short-circuits without a gateway call; a
// failed or pending record is reused so retries run under the same key.
func (s *Processor) openChargeRecord(ctx context.Context, tx *gorm.DB, sub *subscriptiondomain.Subscription, now time.Time) (*domain.ChargeRecord, *domain.Result, error) {
	key := domain.IdempotencyKeyFor(sub.ID, sub.NextBillingAt)
	record := &domain.ChargeRecord{
		ID:             s.idGen.Generate(),
		SubscriptionID: sub.ID,
		IdempotencyKey: key,
		Amount:         sub.Price,
		Currency:       sub.Currency,
		Status:         domain.ChargeStatusPending,
		AttemptedAt:    now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err := s.repo.InsertChargeRecord(ctx, tx, record)
	if err == nil {
		return record, nil, nil
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, nil, err
	}

	existing, err := s.repo.FindChargeRecordByKey(ctx, tx, key)
	if err != nil {
		return nil, nil, err
	}
	if existing == nil {
		return nil, nil, domain.ErrChargeInFlight
	}
	if existing.Status == domain.ChargeStatusSucceeded {
		s.log.Info("charge already settled for this cycle",
			zap.Int64("subscription_id", int64(sub.ID)),
			zap.String("idempotency_key", key))
		return nil, &domain.Result{
			Outcome:       domain.OutcomeAlreadyProcessed,
			TransactionID: existing.GatewayTransactionID,
		}, nil
	}

	existing.AttemptedAt = now
	existing.UpdatedAt = now
	return existing, nil, nil
}

func (s *Processor) callGateway(ctx context.Context, sub *subscriptiondomain.Subscription, method *domain.PaymentMethod, key string) (*domain.GatewayCharge, *domain.ChargeError) {
	chargeCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	charge, err := s.gateway.Charge(chargeCtx, domain.ChargeRequest{
		IdempotencyKey:  key,
		Amount:          sub.Price,
		Currency:        sub.Currency,
		PaymentMethodID: method.ProviderPaymentMethodID,
		Description:     fmt.Sprintf("Subscription %s renewal", sub.ID),
		Metadata: map[string]string{
			"subscription_id": sub.ID.String(),
			"subscriber_id":   sub.SubscriberID.String(),
		},
	})
	if err == nil {
		return charge, nil
	}

	var chargeErr *domain.ChargeError
	if errors.As(err, &chargeErr) {
		return nil, chargeErr
	}
	// Unknown failure mode, including an ambiguous timeout. The outcome at
	// the gateway is unknown; the shared idempotency key makes the retry
	// safe.
	return nil, &domain.ChargeError{
		Classification: domain.ClassificationTransient,
		Message:        err.Error(),
	}
}

func (s *Processor) recordSuccess(ctx context.Context, tx *gorm.DB, sub *subscriptiondomain.Subscription, record *domain.ChargeRecord, charge *domain.GatewayCharge, now time.Time) (*domain.Result, error) {
	record.Status = domain.ChargeStatusSucceeded
	record.GatewayTransactionID = charge.TransactionID
	record.FailureCode = ""
	record.FailureMessage = ""
	record.Classification = ""
	record.UpdatedAt = now
	if err := s.repo.UpdateChargeRecord(ctx, tx, record); err != nil {
		return nil, err
	}

	// The next cycle is anchored to the scheduled date, not the attempt
	// time, so a late retry does not drift the schedule.
	nextBilling, err := sub.BillingPeriod.AddTo(sub.NextBillingAt, sub.BillingInterval)
	if err != nil {
		return nil, err
	}

	sub.NextBillingAt = nextBilling
	sub.FailedPaymentCount = 0
	sub.LastPaymentError = nil
	sub.LastPaymentAttemptAt = &now
	sub.NextRetryAt = nil
	sub.GracePeriodEndsAt = nil
	sub.NeedsAttention = false
	nextDelivery := sub.NextDeliveryOnOrAfter(now)
	sub.NextDeliveryDate = &nextDelivery
	sub.UpdatedAt = now
	if err := s.subs.Update(ctx, tx, sub); err != nil {
		return nil, err
	}

	s.log.Info("charge succeeded",
		zap.Int64("subscription_id", int64(sub.ID)),
		zap.String("transaction_id", charge.TransactionID),
		zap.Int64("amount", record.Amount),
		zap.Time("next_billing_at", nextBilling))

	return &domain.Result{
		Outcome:       domain.OutcomeSucceeded,
		TransactionID: charge.TransactionID,
	}, nil
}

func (s *Processor) recordFailure(ctx context.Context, tx *gorm.DB, sub *subscriptiondomain.Subscription, record *domain.ChargeRecord, now time.Time, chargeErr *domain.ChargeError) (*domain.Result, error) {
	record.Status = domain.ChargeStatusFailed
	record.FailureCode = chargeErr.Code
	record.FailureMessage = chargeErr.Message
	record.Classification = string(chargeErr.Classification)
	record.UpdatedAt = now
	if err := s.repo.UpdateChargeRecord(ctx, tx, record); err != nil {
		return nil, err
	}

	message := domain.CustomerMessage(chargeErr.Code)
	if chargeErr.Classification == domain.ClassificationPrecondition {
		message = chargeErr.Message
	}

	sub.FailedPaymentCount++
	attempt := sub.FailedPaymentCount
	sub.LastPaymentError = &message
	sub.LastPaymentAttemptAt = &now
	if attempt > s.maxAttempts {
		// Out of automatic retries. Hold the account for manual dunning
		// with a grace period before anything is shut off.
		grace := now.Add(s.gracePeriod)
		sub.NeedsAttention = true
		sub.NextRetryAt = nil
		sub.GracePeriodEndsAt = &grace
	} else {
		retryAt := now.Add(s.backoff.NextRetryDelay(attempt))
		sub.NextRetryAt = &retryAt
	}
	sub.UpdatedAt = now
	if err := s.subs.Update(ctx, tx, sub); err != nil {
		return nil, err
	}

	s.log.Warn("charge failed",
		zap.Int64("subscription_id", int64(sub.ID)),
		zap.String("classification", string(chargeErr.Classification)),
		zap.String("failure_code", chargeErr.Code),
		zap.Int("attempt", attempt),
		zap.Bool("needs_attention", sub.NeedsAttention))

	return &domain.Result{
		Outcome:        domain.OutcomeFailed,
		Classification: chargeErr.Classification,
		Message:        message,
		Attempt:        attempt,
	}, nil
}

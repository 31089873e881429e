package webhook

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/middleworldfarms/soilsync/internal/clock"
	"github.com/middleworldfarms/soilsync/internal/config"
	"github.com/middleworldfarms/soilsync/internal/payment/domain"
	subscriptiondomain "github.com/middleworldfarms/soilsync/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service applies asynchronous gateway notifications to charge records and
// their subscriptions. Nothing is touched before the signature verifies.
type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	clock   clock.Clock
	repo    domain.Repository
	subs    subscriptiondomain.Repository
	gateway domain.Gateway
	backoff domain.BackoffPolicy

	maxAttempts int
	gracePeriod time.Duration
}

type ServiceParam struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Clock   clock.Clock
	Repo    domain.Repository
	Subs    subscriptiondomain.Repository
	Gateway domain.Gateway
	Backoff domain.BackoffPolicy
	Config  *config.Config
}

func NewService(p ServiceParam) domain.WebhookIngestor {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("payment.webhook"),
		clock:       p.Clock,
		repo:        p.Repo,
		subs:        p.Subs,
		gateway:     p.Gateway,
		backoff:     p.Backoff,
		maxAttempts: p.Config.Billing.MaxFailedAttempts,
		gracePeriod: time.Duration(p.Config.Billing.GracePeriodDays) * 24 * time.Hour,
	}
}

func (s *Service) Ingest(ctx context.Context, payload []byte, headers http.Header) error {
	if err := s.gateway.Verify(ctx, payload, headers); err != nil {
		s.log.Warn("webhook signature rejected", zap.Error(err))
		return err
	}

	event, err := s.gateway.Parse(ctx, payload)
	if err != nil {
		if errors.Is(err, domain.ErrEventIgnored) {
			return nil
		}
		s.log.Warn("webhook payload rejected", zap.Error(err))
		return err
	}

	now := s.clock.Now(ctx)
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record, err := s.repo.FindChargeRecordByTransaction(ctx, tx, event.TransactionID)
		if err != nil {
			return err
		}
		if record == nil {
			// Charge records are written before the gateway call, so an
			// unknown transaction belongs to another system.
			s.log.Info("webhook for unknown transaction ignored",
				zap.String("transaction_id", event.TransactionID),
				zap.String("event_type", event.Type))
			return nil
		}

		sub, err := s.subs.FindByIDForUpdate(ctx, tx, record.SubscriptionID)
		if err != nil {
			return err
		}
		if sub == nil {
			return subscriptiondomain.ErrSubscriptionNotFound
		}

		switch event.Type {
		case domain.EventTypePaymentSucceeded:
			return s.applySuccess(ctx, tx, sub, record, now)
		case domain.EventTypePaymentFailed:
			return s.applyFailure(ctx, tx, sub, record, event, now)
		default:
			return nil
		}
	})
}

func (s *Service) applySuccess(ctx context.Context, tx *gorm.DB, sub *subscriptiondomain.Subscription, record *domain.ChargeRecord, now time.Time) error {
	if record.Status == domain.ChargeStatusSucceeded {
		return nil
	}
	record.Status = domain.ChargeStatusSucceeded
	record.FailureCode = ""
	record.FailureMessage = ""
	record.Classification = ""
	record.UpdatedAt = now
	if err := s.repo.UpdateChargeRecord(ctx, tx, record); err != nil {
		return err
	}

	sub.FailedPaymentCount = 0
	sub.LastPaymentError = nil
	sub.NextRetryAt = nil
	sub.GracePeriodEndsAt = nil
	sub.NeedsAttention = false
	sub.UpdatedAt = now
	if err := s.subs.Update(ctx, tx, sub); err != nil {
		return err
	}

	s.log.Info("webhook confirmed payment",
		zap.Int64("subscription_id", int64(sub.ID)),
		zap.String("transaction_id", record.GatewayTransactionID))
	return nil
}

func (s *Service) applyFailure(ctx context.Context, tx *gorm.DB, sub *subscriptiondomain.Subscription, record *domain.ChargeRecord, event *domain.WebhookEvent, now time.Time) error {
	if record.Status == domain.ChargeStatusFailed {
		return nil
	}
	classification := domain.ClassificationTransient
	if domain.IsPermanentCode(event.FailureCode) {
		classification = domain.ClassificationPermanent
	}

	record.Status = domain.ChargeStatusFailed
	record.FailureCode = event.FailureCode
	record.Classification = string(classification)
	record.UpdatedAt = now
	if err := s.repo.UpdateChargeRecord(ctx, tx, record); err != nil {
		return err
	}

	message := domain.CustomerMessage(event.FailureCode)
	sub.FailedPaymentCount++
	attempt := sub.FailedPaymentCount
	sub.LastPaymentError = &message
	sub.LastPaymentAttemptAt = &now
	if attempt > s.maxAttempts {
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
		return err
	}

	s.log.Warn("webhook reported payment failure",
		zap.Int64("subscription_id", int64(sub.ID)),
		zap.String("failure_code", event.FailureCode),
		zap.Int("attempt", attempt))
	return nil
}

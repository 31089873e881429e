package payment

import (
	"github.com/middleworldfarms/soilsync/internal/config"
	"github.com/middleworldfarms/soilsync/internal/payment/adapters/stripe"
	"github.com/middleworldfarms/soilsync/internal/payment/domain"
	"github.com/middleworldfarms/soilsync/internal/payment/repository"
	"github.com/middleworldfarms/soilsync/internal/payment/service"
	"github.com/middleworldfarms/soilsync/internal/payment/webhook"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.processor",
	fx.Provide(
		repository.Provide,
		NewGateway,
		NewBackoffPolicy,
		service.NewProcessor,
		webhook.NewService,
	),
)

func NewGateway(cfg *config.Config) domain.Gateway {
	return stripe.New(cfg.Gateway.APIKey, cfg.Gateway.WebhookSecret, cfg.Gateway.Timeout)
}

func NewBackoffPolicy() domain.BackoffPolicy {
	return domain.FixedBackoff{}
}

package renewal

import (
	"context"

	"github.com/middleworldfarms/soilsync/internal/config"
	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("renewal.scheduler",
	fx.Provide(NewScheduler),
)

// CronModule additionally wires the scheduler onto its cron cadence; only
// the scheduler app includes it.
var CronModule = fx.Module("renewal.cron",
	fx.Invoke(registerCron),
)

func registerCron(lc fx.Lifecycle, s *Scheduler, cfg *config.Config, log *zap.Logger) error {
	log = log.Named("renewal.cron")

	c := cron.New()
	_, err := c.AddFunc(cfg.Scheduler.CronSpec, func() {
		if err := s.Run(context.Background()); err != nil {
			log.Error("renewal run failed", zap.Error(err))
		}
	})
	if err != nil {
		return err
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			log.Info("renewal cron started", zap.String("spec", cfg.Scheduler.CronSpec))
			c.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			stopped := c.Stop()
			select {
			case <-stopped.Done():
			case <-ctx.Done():
			}
			return nil
		},
	})
	return nil
}

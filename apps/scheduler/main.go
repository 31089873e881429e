package main

import (
	"go.uber.org/fx"

	"github.com/middleworldfarms/soilsync/internal/clock"
	"github.com/middleworldfarms/soilsync/internal/closure"
	"github.com/middleworldfarms/soilsync/internal/commerce"
	"github.com/middleworldfarms/soilsync/internal/config"
	"github.com/middleworldfarms/soilsync/internal/database"
	"github.com/middleworldfarms/soilsync/internal/observability"
	"github.com/middleworldfarms/soilsync/internal/payment"
	"github.com/middleworldfarms/soilsync/internal/plan"
	"github.com/middleworldfarms/soilsync/internal/redis"
	"github.com/middleworldfarms/soilsync/internal/renewal"
	"github.com/middleworldfarms/soilsync/internal/subscription"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		database.Module,
		clock.Module,
		redis.Module,
		closure.Module,

		plan.Module,
		subscription.Module,
		payment.Module,
		commerce.Module,

		renewal.Module,
		renewal.CronModule,
	)
	app.Run()
}

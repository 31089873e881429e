package subscription

import (
	"github.com/middleworldfarms/soilsync/internal/subscription/repository"
	"github.com/middleworldfarms/soilsync/internal/subscription/service"
	"go.uber.org/fx"
)

var Module = fx.Module("subscription.lifecycle",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)

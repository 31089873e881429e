package plan

import (
	"github.com/middleworldfarms/soilsync/internal/plan/repository"
	"github.com/middleworldfarms/soilsync/internal/plan/service"
	"go.uber.org/fx"
)

var Module = fx.Module("plan.catalog",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)

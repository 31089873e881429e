package closure

import (
	"github.com/middleworldfarms/soilsync/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("closure",
	fx.Provide(func(cfg *config.Config) (*Calendar, error) {
		return FromConfig(cfg.Closure)
	}),
)

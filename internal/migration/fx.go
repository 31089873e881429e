package migration

import (
	"github.com/middleworldfarms/soilsync/internal/config"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg *config.Config) error {
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}

		return RunMigrations(sqlDB, cfg.Database.Driver)
	}),
)

package database

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/middleworldfarms/soilsync/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var Module = fx.Module("database",
	fx.Provide(
		NewDB,
		NewIDNode,
	),
)

// NewDB opens the billing database. TranslateError is required so unique
// key violations surface as gorm.ErrDuplicatedKey regardless of driver.
func NewDB(cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	}

	var dialector gorm.Dialector
	switch cfg.Database.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.Database.DSN)
	case "mysql":
		dialector = mysql.Open(cfg.Database.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, err
	}
	log.Named("database").Info("database connected", zap.String("driver", cfg.Database.Driver))
	return db, nil
}

func NewIDNode() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}

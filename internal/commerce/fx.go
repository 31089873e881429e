package commerce

import (
	"github.com/middleworldfarms/soilsync/internal/commerce/domain"
	"github.com/middleworldfarms/soilsync/internal/commerce/repository"
	"github.com/middleworldfarms/soilsync/internal/commerce/service"
	"github.com/middleworldfarms/soilsync/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DB wraps the commerce platform's own database connection so fx can tell
// it apart from the billing database.
type DB struct {
	*gorm.DB
}

// Sync is disabled when no commerce DSN is configured; the port provider
// then yields nil and the syncer refuses pushes with ErrSyncDisabled.
var Module = fx.Module("commerce.sync",
	fx.Provide(
		NewCommerceDB,
		ProvidePort,
		service.NewService,
	),
)

func NewCommerceDB(cfg *config.Config, log *zap.Logger) (*DB, error) {
	if cfg.Commerce.DSN == "" {
		log.Named("commerce").Info("no commerce dsn configured, sync disabled")
		return &DB{}, nil
	}
	db, err := gorm.Open(mysql.Open(cfg.Commerce.DSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}
	return &DB{DB: db}, nil
}

func ProvidePort(cdb *DB, cfg *config.Config) domain.Port {
	if cdb.DB == nil {
		return nil
	}
	return repository.NewWooStore(cdb.DB, cfg.Commerce.TablePrefix)
}

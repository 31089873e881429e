package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/fx"
)

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type CommerceConfig struct {
	// DSN of the WooCommerce MySQL database. Empty disables outbound sync.
	DSN         string `mapstructure:"dsn"`
	TablePrefix string `mapstructure:"table_prefix"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type GatewayConfig struct {
	APIKey        string        `mapstructure:"api_key"`
	WebhookSecret string        `mapstructure:"webhook_secret"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

type ClosureConfig struct {
	// Seasonal closure window; ISO dates (2006-01-02). All three must be set
	// for the window to apply.
	Start         string `mapstructure:"start"`
	End           string `mapstructure:"end"`
	ResumeBilling string `mapstructure:"resume_billing"`
}

type BillingConfig struct {
	// Consecutive failed attempts before a subscription leaves automatic
	// retry and is flagged for manual dunning.
	MaxFailedAttempts int    `mapstructure:"max_failed_attempts"`
	GracePeriodDays   int    `mapstructure:"grace_period_days"`
	DefaultCurrency   string `mapstructure:"default_currency"`
}

type SchedulerConfig struct {
	CronSpec  string        `mapstructure:"cron_spec"`
	BatchSize int           `mapstructure:"batch_size"`
	LockTTL   time.Duration `mapstructure:"lock_ttl"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Commerce  CommerceConfig  `mapstructure:"commerce"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Gateway   GatewayConfig   `mapstructure:"gateway"`
	Closure   ClosureConfig   `mapstructure:"closure"`
	Billing   BillingConfig   `mapstructure:"billing"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Log       LogConfig       `mapstructure:"log"`
}

func Load() (*Config, error) {
	// Local development convenience; missing .env is fine.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("SOILSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.dsn", "")
	v.SetDefault("commerce.table_prefix", "wp_")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("gateway.timeout", 12*time.Second)
	v.SetDefault("billing.max_failed_attempts", 3)
	v.SetDefault("billing.grace_period_days", 7)
	v.SetDefault("billing.default_currency", "GBP")
	v.SetDefault("scheduler.cron_spec", "0 * * * *")
	v.SetDefault("scheduler.batch_size", 100)
	v.SetDefault("scheduler.lock_ttl", 10*time.Minute)
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("log.level", "info")
}

var Module = fx.Module("config",
	fx.Provide(Load),
)

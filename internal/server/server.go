package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/middleworldfarms/soilsync/internal/config"
	paymentdomain "github.com/middleworldfarms/soilsync/internal/payment/domain"
	subscriptiondomain "github.com/middleworldfarms/soilsync/internal/subscription/domain"
)

type Server struct {
	cfg       *config.Config
	log       *zap.Logger
	db        *gorm.DB
	redis     *redis.Client
	lifecycle subscriptiondomain.Lifecycle
	subs      subscriptiondomain.Repository
	webhooks  paymentdomain.WebhookIngestor
}

type ServerParam struct {
	fx.In

	Config    *config.Config
	Log       *zap.Logger
	DB        *gorm.DB
	Redis     *redis.Client
	Lifecycle subscriptiondomain.Lifecycle
	Subs      subscriptiondomain.Repository
	Webhooks  paymentdomain.WebhookIngestor
}

func NewServer(p ServerParam) *Server {
	return &Server{
		cfg:       p.Config,
		log:       p.Log.Named("server"),
		db:        p.DB,
		redis:     p.Redis,
		lifecycle: p.Lifecycle,
		subs:      p.Subs,
		webhooks:  p.Webhooks,
	}
}

func NewEngine(cfg *config.Config) *gin.Engine {
	if cfg.Log.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	return engine
}

func (s *Server) RegisterAPIRoutes(engine *gin.Engine) {
	engine.GET("/healthz", s.Healthz)
	engine.GET("/readyz", s.Readyz)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	engine.POST("/webhooks/payment", s.PaymentWebhook)

	api := engine.Group("/api")
	{
		api.GET("/subscriptions/:id", s.GetSubscription)
		api.POST("/subscriptions/:id/pause", s.PauseSubscription)
		api.POST("/subscriptions/:id/resume", s.ResumeSubscription)
		api.POST("/subscriptions/:id/cancel", s.CancelSubscription)
		api.POST("/subscriptions/:id/plan", s.ChangePlan)
		api.POST("/subscriptions/:id/delivery-method", s.ChangeDeliveryMethod)
		api.POST("/subscriptions/:id/frequency", s.ChangeFrequency)
	}
}

func RunHTTP(lc fx.Lifecycle, engine *gin.Engine, cfg *config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: engine,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", cfg.HTTP.Addr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

var Module = fx.Module("server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(func(s *Server, engine *gin.Engine) {
		s.RegisterAPIRoutes(engine)
	}),
	fx.Invoke(RunHTTP),
)

package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/middleworldfarms/soilsync/internal/plan/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db   *gorm.DB
	log  *zap.Logger
	repo domain.Repository
}

type ServiceParam struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Repo domain.Repository
}

func NewService(p ServiceParam) domain.Catalog {
	return &Service{
		db:   p.DB,
		log:  p.Log.Named("plan.catalog"),
		repo: p.Repo,
	}
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*domain.Plan, error) {
	plan, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, domain.ErrPlanNotFound
	}
	return plan, nil
}

func (s *Service) FindPlan(
	ctx context.Context,
	size domain.BoxSize,
	period domain.BillingPeriod,
	interval int,
	method domain.FulfillmentMethod,
) (*domain.Plan, error) {
	plan, err := s.repo.FindMatch(ctx, s.db, size, period, interval, method)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		s.log.Warn("no plan for requested shape",
			zap.String("box_size", string(size)),
			zap.String("period", string(period)),
			zap.Int("interval", interval),
			zap.String("fulfillment_method", string(method)))
		return nil, domain.ErrPlanNotFound
	}
	return plan, nil
}

// SlugFor builds the canonical plan slug, e.g.
// "couple-veg-box-fortnightly-delivery".
func SlugFor(size domain.BoxSize, freq domain.Frequency, method domain.FulfillmentMethod) string {
	words := strings.ReplaceAll(string(size), "_", " ")
	return slug.Make(words + " veg box " + string(freq) + " " + string(method))
}

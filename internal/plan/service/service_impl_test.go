package service

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/middleworldfarms/soilsync/internal/plan/domain"
	planrepo "github.com/middleworldfarms/soilsync/internal/plan/repository"
)

func newCatalog(t *testing.T) (domain.Catalog, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Plan{}))

	catalog := NewService(ServiceParam{
		DB:   db,
		Log:  zap.NewNop(),
		Repo: planrepo.Provide(),
	})
	return catalog, db
}

func seedPlan(t *testing.T, db *gorm.DB, id int64, size domain.BoxSize, period domain.BillingPeriod, interval int, method domain.FulfillmentMethod, active bool) *domain.Plan {
	t.Helper()
	plan := &domain.Plan{
		ID:                snowflake.ID(id),
		Name:              string(size) + " vegbox",
		Slug:              SlugFor(size, domain.FrequencyWeekly, method) + "-" + snowflake.ID(id).String(),
		Price:             1850,
		Currency:          "GBP",
		BoxSize:           size,
		BillingPeriod:     period,
		BillingInterval:   interval,
		FulfillmentMethod: method,
		Active:            active,
	}
	require.NoError(t, db.Create(plan).Error)
	return plan
}

func TestGetReturnsPlan(t *testing.T) {
	catalog, db := newCatalog(t)
	seeded := seedPlan(t, db, 501, domain.BoxCouple, domain.PeriodWeek, 1, domain.FulfillmentDelivery, true)

	plan, err := catalog.Get(context.Background(), seeded.ID)
	require.NoError(t, err)
	require.Equal(t, seeded.ID, plan.ID)

	_, err = catalog.Get(context.Background(), snowflake.ID(999))
	require.ErrorIs(t, err, domain.ErrPlanNotFound)
}

func TestFindPlanMatchesShape(t *testing.T) {
	catalog, db := newCatalog(t)
	seedPlan(t, db, 501, domain.BoxCouple, domain.PeriodWeek, 1, domain.FulfillmentDelivery, true)
	fortnightly := seedPlan(t, db, 502, domain.BoxCouple, domain.PeriodWeek, 2, domain.FulfillmentCollection, true)

	plan, err := catalog.FindPlan(context.Background(), domain.BoxCouple, domain.PeriodWeek, 2, domain.FulfillmentCollection)
	require.NoError(t, err)
	require.Equal(t, fortnightly.ID, plan.ID)

	// No monthly couple box exists.
	_, err = catalog.FindPlan(context.Background(), domain.BoxCouple, domain.PeriodMonth, 1, domain.FulfillmentDelivery)
	require.ErrorIs(t, err, domain.ErrPlanNotFound)
}

func TestFindPlanIgnoresRetiredPlans(t *testing.T) {
	catalog, db := newCatalog(t)
	retired := seedPlan(t, db, 501, domain.BoxSingle, domain.PeriodWeek, 1, domain.FulfillmentDelivery, false)

	// The inactive flag must survive the insert; a column default would
	// silently flip it back on.
	var stored domain.Plan
	require.NoError(t, db.Where("id = ?", retired.ID).First(&stored).Error)
	require.False(t, stored.Active)

	_, err := catalog.FindPlan(context.Background(), domain.BoxSingle, domain.PeriodWeek, 1, domain.FulfillmentDelivery)
	require.ErrorIs(t, err, domain.ErrPlanNotFound)
}

func TestSlugFor(t *testing.T) {
	require.Equal(t, "couple-veg-box-fortnightly-delivery",
		SlugFor(domain.BoxCouple, domain.FrequencyFortnightly, domain.FulfillmentDelivery))
	require.Equal(t, "small-family-veg-box-weekly-collection",
		SlugFor(domain.BoxSmallFamily, domain.FrequencyWeekly, domain.FulfillmentCollection))
}

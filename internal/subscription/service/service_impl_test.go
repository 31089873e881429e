package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/middleworldfarms/soilsync/internal/clock"
	plandomain "github.com/middleworldfarms/soilsync/internal/plan/domain"
	planrepo "github.com/middleworldfarms/soilsync/internal/plan/repository"
	planservice "github.com/middleworldfarms/soilsync/internal/plan/service"
	"github.com/middleworldfarms/soilsync/internal/subscription/domain"
	"github.com/middleworldfarms/soilsync/internal/subscription/repository"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type recordingSyncer struct {
	triggered []snowflake.ID
}

func (r *recordingSyncer) SyncSubscription(ctx context.Context, sub *domain.Subscription) error {
	return nil
}

func (r *recordingSyncer) TriggerSync(sub *domain.Subscription) {
	r.triggered = append(r.triggered, sub.ID)
}

type fixture struct {
	db     *gorm.DB
	node   *snowflake.Node
	syncer *recordingSyncer
	svc    domain.Lifecycle
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Subscription{}, &plandomain.Plan{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	now := time.Date(2026, 3, 6, 9, 0, 0, 0, time.UTC)
	syncer := &recordingSyncer{}

	catalog := planservice.NewService(planservice.ServiceParam{
		DB:   db,
		Log:  zap.NewNop(),
		Repo: planrepo.Provide(),
	})

	svc := NewService(ServiceParam{
		DB:     db,
		Log:    zap.NewNop(),
		Clock:  clock.Fixed{T: now},
		Repo:   repository.Provide(),
		Plans:  catalog,
		Syncer: syncer,
	})
	return &fixture{db: db, node: node, syncer: syncer, svc: svc, now: now}
}

func (f *fixture) seedPlan(t *testing.T, name string, price int64, size plandomain.BoxSize, period plandomain.BillingPeriod, interval int, method plandomain.FulfillmentMethod) *plandomain.Plan {
	t.Helper()
	plan := &plandomain.Plan{
		ID:                f.node.Generate(),
		Name:              name,
		Slug:              name,
		Price:             price,
		Currency:          "GBP",
		BoxSize:           size,
		BillingPeriod:     period,
		BillingInterval:   interval,
		FulfillmentMethod: method,
		Active:            true,
		CreatedAt:         f.now.AddDate(-1, 0, 0),
		UpdatedAt:         f.now.AddDate(-1, 0, 0),
	}
	require.NoError(t, f.db.Create(plan).Error)
	return plan
}

func (f *fixture) seedSubscription(t *testing.T, plan *plandomain.Plan, mutate func(*domain.Subscription)) *domain.Subscription {
	t.Helper()
	sub := &domain.Subscription{
		ID:                f.node.Generate(),
		SubscriberID:      f.node.Generate(),
		PlanID:            plan.ID,
		Price:             plan.Price,
		Currency:          plan.Currency,
		BillingPeriod:     plan.BillingPeriod,
		BillingInterval:   plan.BillingInterval,
		DeliveryDay:       time.Friday,
		FulfillmentMethod: plan.FulfillmentMethod,
		StartsAt:          f.now.AddDate(0, -3, 0),
		NextBillingAt:     f.now.AddDate(0, 0, 3),
		CreatedAt:         f.now.AddDate(0, -3, 0),
		UpdatedAt:         f.now.AddDate(0, -3, 0),
	}
	if mutate != nil {
		mutate(sub)
	}
	require.NoError(t, f.db.Create(sub).Error)
	return sub
}

func (f *fixture) reload(t *testing.T, id snowflake.ID) *domain.Subscription {
	t.Helper()
	var sub domain.Subscription
	require.NoError(t, f.db.Where("id = ?", id).First(&sub).Error)
	return &sub
}

func TestPauseSetsResumeDateAndDelivery(t *testing.T) {
	f := newFixture(t)
	plan := f.seedPlan(t, "couple-weekly-delivery", 1850, plandomain.BoxCouple, plandomain.PeriodWeek, 1, plandomain.FulfillmentDelivery)
	sub := f.seedSubscription(t, plan, nil)

	until := f.now.AddDate(0, 1, 0)
	got, err := f.svc.Pause(context.Background(), sub.ID, until)
	require.NoError(t, err)
	require.NotNil(t, got.PauseUntil)
	require.Equal(t, domain.StatusPaused, got.Status(f.now))
	require.NotNil(t, got.NextDeliveryDate)
	// First delivery slot on or after the resume date, on the delivery day.
	require.Equal(t, time.Friday, got.NextDeliveryDate.Weekday())
	require.False(t, got.NextDeliveryDate.Before(until))
	require.Equal(t, []snowflake.ID{sub.ID}, f.syncer.triggered)
}

func TestPauseRejectsPastDate(t *testing.T) {
	f := newFixture(t)
	plan := f.seedPlan(t, "couple-weekly-delivery", 1850, plandomain.BoxCouple, plandomain.PeriodWeek, 1, plandomain.FulfillmentDelivery)
	sub := f.seedSubscription(t, plan, nil)

	_, err := f.svc.Pause(context.Background(), sub.ID, f.now.Add(-time.Hour))
	require.ErrorIs(t, err, domain.ErrPauseDateNotFuture)

	_, err = f.svc.Pause(context.Background(), sub.ID, f.now)
	require.ErrorIs(t, err, domain.ErrPauseDateNotFuture)
	require.Empty(t, f.syncer.triggered)
}

func TestResumeRequiresPausedState(t *testing.T) {
	f := newFixture(t)
	plan := f.seedPlan(t, "couple-weekly-delivery", 1850, plandomain.BoxCouple, plandomain.PeriodWeek, 1, plandomain.FulfillmentDelivery)
	sub := f.seedSubscription(t, plan, nil)

	_, err := f.svc.Resume(context.Background(), sub.ID)
	require.ErrorIs(t, err, domain.ErrNotPaused)

	until := f.now.AddDate(0, 1, 0)
	_, err = f.svc.Pause(context.Background(), sub.ID, until)
	require.NoError(t, err)

	got, err := f.svc.Resume(context.Background(), sub.ID)
	require.NoError(t, err)
	require.Nil(t, got.PauseUntil)
	require.Equal(t, domain.StatusActive, got.Status(f.now))
}

func TestCancelKeepsPaidCycleAndRejectsSecondCall(t *testing.T) {
	f := newFixture(t)
	plan := f.seedPlan(t, "couple-weekly-delivery", 1850, plandomain.BoxCouple, plandomain.PeriodWeek, 1, plandomain.FulfillmentDelivery)
	sub := f.seedSubscription(t, plan, nil)
	paidThrough := sub.NextBillingAt

	got, err := f.svc.Cancel(context.Background(), sub.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CanceledAt)
	require.NotNil(t, got.EndsAt)
	require.Equal(t, paidThrough.UTC(), got.EndsAt.UTC())
	require.Equal(t, domain.StatusCanceled, got.Status(f.now))

	_, err = f.svc.Cancel(context.Background(), sub.ID)
	require.ErrorIs(t, err, domain.ErrAlreadyCanceled)

	// The second call must not move ends_at.
	again := f.reload(t, sub.ID)
	require.Equal(t, paidThrough.UTC(), again.EndsAt.UTC())
}

func TestChangePlanDefersPriceToNextCycle(t *testing.T) {
	f := newFixture(t)
	couple := f.seedPlan(t, "couple-weekly-delivery", 1850, plandomain.BoxCouple, plandomain.PeriodWeek, 1, plandomain.FulfillmentDelivery)
	family := f.seedPlan(t, "family-weekly-delivery", 3250, plandomain.BoxLargeFamily, plandomain.PeriodWeek, 1, plandomain.FulfillmentDelivery)
	sub := f.seedSubscription(t, couple, nil)
	schedule := sub.NextBillingAt

	got, err := f.svc.ChangePlan(context.Background(), sub.ID, family.ID)
	require.NoError(t, err)
	require.Equal(t, family.ID, got.PlanID)
	require.Equal(t, int64(3250), got.Price)
	// No proration: the already-paid cycle's schedule is untouched.
	require.Equal(t, schedule.UTC(), got.NextBillingAt.UTC())

	_, err = f.svc.ChangePlan(context.Background(), sub.ID, family.ID)
	require.ErrorIs(t, err, domain.ErrSamePlan)

	_, err = f.svc.ChangePlan(context.Background(), sub.ID, f.node.Generate())
	require.ErrorIs(t, err, plandomain.ErrPlanNotFound)
}

func TestChangeDeliveryMethodFailsClosed(t *testing.T) {
	f := newFixture(t)
	// Only a delivery plan exists; there is no collection counterpart.
	plan := f.seedPlan(t, "couple-weekly-delivery", 1850, plandomain.BoxCouple, plandomain.PeriodWeek, 1, plandomain.FulfillmentDelivery)
	sub := f.seedSubscription(t, plan, nil)
	before := f.reload(t, sub.ID)

	_, err := f.svc.ChangeDeliveryMethod(context.Background(), sub.ID, plandomain.FulfillmentCollection)
	require.ErrorIs(t, err, plandomain.ErrPlanNotFound)

	after := f.reload(t, sub.ID)
	require.Equal(t, before, after, "failed change must leave the subscription unmodified")
	require.Empty(t, f.syncer.triggered)
}

func TestChangeDeliveryMethodSwitchesPlan(t *testing.T) {
	f := newFixture(t)
	delivery := f.seedPlan(t, "couple-weekly-delivery", 1850, plandomain.BoxCouple, plandomain.PeriodWeek, 1, plandomain.FulfillmentDelivery)
	collection := f.seedPlan(t, "couple-weekly-collection", 1650, plandomain.BoxCouple, plandomain.PeriodWeek, 1, plandomain.FulfillmentCollection)
	sub := f.seedSubscription(t, delivery, nil)

	got, err := f.svc.ChangeDeliveryMethod(context.Background(), sub.ID, plandomain.FulfillmentCollection)
	require.NoError(t, err)
	require.Equal(t, collection.ID, got.PlanID)
	require.Equal(t, int64(1650), got.Price)
	require.Equal(t, plandomain.FulfillmentCollection, got.FulfillmentMethod)
}

func TestChangeFrequencyFortnightly(t *testing.T) {
	f := newFixture(t)
	weekly := f.seedPlan(t, "couple-weekly-delivery", 1850, plandomain.BoxCouple, plandomain.PeriodWeek, 1, plandomain.FulfillmentDelivery)
	fortnightly := f.seedPlan(t, "couple-fortnightly-delivery", 1950, plandomain.BoxCouple, plandomain.PeriodWeek, 2, plandomain.FulfillmentDelivery)
	sub := f.seedSubscription(t, weekly, nil)

	got, err := f.svc.ChangeFrequency(context.Background(), sub.ID, plandomain.FrequencyFortnightly)
	require.NoError(t, err)
	require.Equal(t, fortnightly.ID, got.PlanID)
	require.Equal(t, plandomain.PeriodWeek, got.BillingPeriod)
	require.Equal(t, 2, got.BillingInterval)
	// Cadence changed, so the schedule re-anchors from now.
	require.Equal(t, f.now.AddDate(0, 0, 14), got.NextBillingAt.UTC())
}

func TestLifecycleRejectsCanceledSubscription(t *testing.T) {
	f := newFixture(t)
	plan := f.seedPlan(t, "couple-weekly-delivery", 1850, plandomain.BoxCouple, plandomain.PeriodWeek, 1, plandomain.FulfillmentDelivery)
	sub := f.seedSubscription(t, plan, func(s *domain.Subscription) {
		canceled := f.now.Add(-time.Hour)
		s.CanceledAt = &canceled
	})

	_, err := f.svc.Pause(context.Background(), sub.ID, f.now.AddDate(0, 1, 0))
	require.ErrorIs(t, err, domain.ErrAlreadyCanceled)

	_, err = f.svc.ChangeFrequency(context.Background(), sub.ID, plandomain.FrequencyMonthly)
	require.ErrorIs(t, err, domain.ErrAlreadyCanceled)
}

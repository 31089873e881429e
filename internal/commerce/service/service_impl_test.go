package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/middleworldfarms/soilsync/internal/clock"
	"github.com/middleworldfarms/soilsync/internal/commerce/domain"
	"github.com/middleworldfarms/soilsync/internal/observability"
	plandomain "github.com/middleworldfarms/soilsync/internal/plan/domain"
	planrepo "github.com/middleworldfarms/soilsync/internal/plan/repository"
	planservice "github.com/middleworldfarms/soilsync/internal/plan/service"
	subscriptiondomain "github.com/middleworldfarms/soilsync/internal/subscription/domain"
)

type fakePort struct {
	mu         sync.Mutex
	replaced   map[int64][]domain.LineItem
	meta       map[int64]map[string]string
	replaceErr error
}

func newFakePort() *fakePort {
	return &fakePort{
		replaced: map[int64][]domain.LineItem{},
		meta:     map[int64]map[string]string{},
	}
}

func (f *fakePort) GetLineItems(_ context.Context, externalID int64) ([]domain.LineItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.replaced[externalID], nil
}

func (f *fakePort) ReplaceLineItems(_ context.Context, externalID int64, items []domain.LineItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.replaceErr != nil {
		return f.replaceErr
	}
	f.replaced[externalID] = items
	return nil
}

func (f *fakePort) SetMeta(_ context.Context, externalID int64, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.meta[externalID] == nil {
		f.meta[externalID] = map[string]string{}
	}
	f.meta[externalID][key] = value
	return nil
}

func (f *fakePort) metaValue(externalID int64, key string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.meta[externalID][key]
}

func newSyncFixture(t *testing.T, port domain.Port) (*Service, *plandomain.Plan) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&plandomain.Plan{}))

	plan := &plandomain.Plan{
		ID:                snowflake.ID(501),
		Name:              "Couple Vegbox (Weekly, Delivery)",
		Slug:              "couple-vegbox-weekly-delivery",
		Price:             1850,
		Currency:          "GBP",
		BoxSize:           plandomain.BoxCouple,
		BillingPeriod:     plandomain.PeriodWeek,
		BillingInterval:   1,
		FulfillmentMethod: plandomain.FulfillmentDelivery,
		Active:            true,
	}
	require.NoError(t, db.Create(plan).Error)

	catalog := planservice.NewService(planservice.ServiceParam{
		DB:   db,
		Log:  zap.NewNop(),
		Repo: planrepo.Provide(),
	})

	svc := NewService(ServiceParam{
		Port:    port,
		Plans:   catalog,
		Clock:   clock.Fixed{T: time.Date(2026, 3, 6, 9, 0, 0, 0, time.UTC)},
		Log:     zap.NewNop(),
		Metrics: observability.NewUnregisteredMetrics(),
	})
	return svc.(*Service), plan
}

func linkedSubscription(plan *plandomain.Plan) *subscriptiondomain.Subscription {
	externalID := int64(4410)
	return &subscriptiondomain.Subscription{
		ID:                     snowflake.ID(9001),
		PlanID:                 plan.ID,
		Price:                  plan.Price,
		Currency:               plan.Currency,
		BillingPeriod:          plan.BillingPeriod,
		BillingInterval:        plan.BillingInterval,
		FulfillmentMethod:      plan.FulfillmentMethod,
		NextBillingAt:          time.Date(2026, 3, 13, 9, 0, 0, 0, time.UTC),
		ExternalSubscriptionID: &externalID,
		Metadata: datatypes.JSONMap{
			"product_id":     float64(77),
			"variation_id":   float64(78),
			"shipping_class": "local-delivery",
		},
	}
}

func TestSyncSubscriptionDisabled(t *testing.T) {
	svc, plan := newSyncFixture(t, nil)

	err := svc.SyncSubscription(context.Background(), linkedSubscription(plan))
	require.ErrorIs(t, err, domain.ErrSyncDisabled)
}

func TestSyncSubscriptionRequiresExternalLink(t *testing.T) {
	port := newFakePort()
	svc, plan := newSyncFixture(t, port)

	sub := linkedSubscription(plan)
	sub.ExternalSubscriptionID = nil

	err := svc.SyncSubscription(context.Background(), sub)
	require.ErrorIs(t, err, domain.ErrRecordNotLinked)
	require.Empty(t, port.replaced)
}

func TestSyncSubscriptionPushesLineItemAndMeta(t *testing.T) {
	port := newFakePort()
	svc, plan := newSyncFixture(t, port)

	sub := linkedSubscription(plan)
	require.NoError(t, svc.SyncSubscription(context.Background(), sub))

	items := port.replaced[4410]
	require.Len(t, items, 1)
	require.Equal(t, plan.Name, items[0].Name)
	require.Equal(t, int64(1850), items[0].Total)
	require.Equal(t, int64(77), items[0].ProductID)
	require.Equal(t, int64(78), items[0].VariationID)
	require.Equal(t, "local-delivery", items[0].ShippingClass)

	require.Equal(t, "week", port.metaValue(4410, domain.MetaBillingPeriod))
	require.Equal(t, "1", port.metaValue(4410, domain.MetaBillingInterval))
	require.Equal(t, "2026-03-13 09:00:00", port.metaValue(4410, domain.MetaNextPayment))
	require.Equal(t, "delivery", port.metaValue(4410, domain.MetaShippingMethod))
}

func TestTriggerSyncIgnoresUnlinked(t *testing.T) {
	port := newFakePort()
	svc, plan := newSyncFixture(t, port)

	sub := linkedSubscription(plan)
	sub.ExternalSubscriptionID = nil
	svc.TriggerSync(sub)
	svc.TriggerSync(nil)

	time.Sleep(50 * time.Millisecond)
	require.Empty(t, port.replaced)
}

func TestTriggerSyncPushesInBackground(t *testing.T) {
	port := newFakePort()
	svc, plan := newSyncFixture(t, port)

	svc.TriggerSync(linkedSubscription(plan))

	require.Eventually(t, func() bool {
		return port.metaValue(4410, domain.MetaNextPayment) != ""
	}, 2*time.Second, 10*time.Millisecond)
}

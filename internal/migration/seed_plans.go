package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
)

type planSeed struct {
	Name              string
	Price             int64
	BoxSize           string
	BillingPeriod     string
	BillingInterval   int
	FulfillmentMethod string
}

// seedPlanCatalog inserts the standing box plans. Existing slugs are left
// untouched: live price changes go through new plan rows, not reseeding.
func seedPlanCatalog(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return errors.New("plan seed requires database handle")
	}

	seeds := []planSeed{
		{Name: "Single Veg Box Weekly Delivery", Price: 1250, BoxSize: "single", BillingPeriod: "week", BillingInterval: 1, FulfillmentMethod: "delivery"},
		{Name: "Single Veg Box Weekly Collection", Price: 1100, BoxSize: "single", BillingPeriod: "week", BillingInterval: 1, FulfillmentMethod: "collection"},
		{Name: "Single Veg Box Fortnightly Delivery", Price: 1350, BoxSize: "single", BillingPeriod: "week", BillingInterval: 2, FulfillmentMethod: "delivery"},
		{Name: "Single Veg Box Fortnightly Collection", Price: 1200, BoxSize: "single", BillingPeriod: "week", BillingInterval: 2, FulfillmentMethod: "collection"},
		{Name: "Couple Veg Box Weekly Delivery", Price: 1850, BoxSize: "couple", BillingPeriod: "week", BillingInterval: 1, FulfillmentMethod: "delivery"},
		{Name: "Couple Veg Box Weekly Collection", Price: 1700, BoxSize: "couple", BillingPeriod: "week", BillingInterval: 1, FulfillmentMethod: "collection"},
		{Name: "Couple Veg Box Fortnightly Delivery", Price: 1950, BoxSize: "couple", BillingPeriod: "week", BillingInterval: 2, FulfillmentMethod: "delivery"},
		{Name: "Couple Veg Box Fortnightly Collection", Price: 1800, BoxSize: "couple", BillingPeriod: "week", BillingInterval: 2, FulfillmentMethod: "collection"},
		{Name: "Small Family Veg Box Weekly Delivery", Price: 2450, BoxSize: "small_family", BillingPeriod: "week", BillingInterval: 1, FulfillmentMethod: "delivery"},
		{Name: "Small Family Veg Box Weekly Collection", Price: 2300, BoxSize: "small_family", BillingPeriod: "week", BillingInterval: 1, FulfillmentMethod: "collection"},
		{Name: "Small Family Veg Box Fortnightly Delivery", Price: 2550, BoxSize: "small_family", BillingPeriod: "week", BillingInterval: 2, FulfillmentMethod: "delivery"},
		{Name: "Small Family Veg Box Fortnightly Collection", Price: 2400, BoxSize: "small_family", BillingPeriod: "week", BillingInterval: 2, FulfillmentMethod: "collection"},
		{Name: "Large Family Veg Box Weekly Delivery", Price: 3250, BoxSize: "large_family", BillingPeriod: "week", BillingInterval: 1, FulfillmentMethod: "delivery"},
		{Name: "Large Family Veg Box Weekly Collection", Price: 3100, BoxSize: "large_family", BillingPeriod: "week", BillingInterval: 1, FulfillmentMethod: "collection"},
		{Name: "Large Family Veg Box Fortnightly Delivery", Price: 3350, BoxSize: "large_family", BillingPeriod: "week", BillingInterval: 2, FulfillmentMethod: "delivery"},
		{Name: "Large Family Veg Box Fortnightly Collection", Price: 3200, BoxSize: "large_family", BillingPeriod: "week", BillingInterval: 2, FulfillmentMethod: "collection"},
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return fmt.Errorf("plan seed id node: %w", err)
	}

	tx, err := db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin plan seed transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC()
	for _, seed := range seeds {
		planSlug := slug.Make(seed.Name)

		var count int
		if err := tx.QueryRowContext(ctx,
			"SELECT COUNT(1) FROM plans WHERE slug = $1", planSlug,
		).Scan(&count); err != nil {
			return fmt.Errorf("check plan %s: %w", planSlug, err)
		}
		if count > 0 {
			continue
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO plans
			 (id, name, slug, price, currency, box_size, billing_period, billing_interval, fulfillment_method, active, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			node.Generate().Int64(), seed.Name, planSlug, seed.Price, "GBP",
			seed.BoxSize, seed.BillingPeriod, seed.BillingInterval, seed.FulfillmentMethod,
			true, now, now,
		); err != nil {
			return fmt.Errorf("seed plan %s: %w", planSlug, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit plan seed transaction: %w", err)
	}
	return nil
}

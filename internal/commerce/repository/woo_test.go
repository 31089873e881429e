package repository

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/middleworldfarms/soilsync/internal/commerce/domain"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newWooDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	for _, ddl := range []string{
		`CREATE TABLE wp_woocommerce_order_items (
			order_item_id INTEGER PRIMARY KEY AUTOINCREMENT,
			order_item_name TEXT NOT NULL,
			order_item_type TEXT NOT NULL,
			order_id INTEGER NOT NULL
		)`,
		`CREATE TABLE wp_woocommerce_order_itemmeta (
			meta_id INTEGER PRIMARY KEY AUTOINCREMENT,
			order_item_id INTEGER NOT NULL,
			meta_key TEXT NOT NULL,
			meta_value TEXT
		)`,
		`CREATE TABLE wp_postmeta (
			meta_id INTEGER PRIMARY KEY AUTOINCREMENT,
			post_id INTEGER NOT NULL,
			meta_key TEXT NOT NULL,
			meta_value TEXT
		)`,
	} {
		require.NoError(t, db.Exec(ddl).Error)
	}
	return db
}

func seedItem(t *testing.T, db *gorm.DB, orderID int64, name string, meta map[string]string) int64 {
	t.Helper()
	require.NoError(t, db.Exec(
		`INSERT INTO wp_woocommerce_order_items (order_item_name, order_item_type, order_id) VALUES (?, 'line_item', ?)`,
		name, orderID,
	).Error)
	var itemID int64
	require.NoError(t, db.Raw(`SELECT MAX(order_item_id) FROM wp_woocommerce_order_items`).Scan(&itemID).Error)
	for key, value := range meta {
		require.NoError(t, db.Exec(
			`INSERT INTO wp_woocommerce_order_itemmeta (order_item_id, meta_key, meta_value) VALUES (?, ?, ?)`,
			itemID, key, value,
		).Error)
	}
	return itemID
}

func TestGetLineItems(t *testing.T) {
	db := newWooDB(t)
	store := NewWooStore(db, "wp_")

	seedItem(t, db, 42, "Couple Veg Box", map[string]string{
		"_product_id":    "1001",
		"_variation_id":  "1002",
		"_qty":           "1",
		"_line_subtotal": "18.50",
		"_line_total":    "18.50",
		"_tax_class":     "zero-rate",
	})

	items, err := store.GetLineItems(context.Background(), 42)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "Couple Veg Box", items[0].Name)
	require.Equal(t, int64(1001), items[0].ProductID)
	require.Equal(t, int64(1002), items[0].VariationID)
	require.Equal(t, 1, items[0].Quantity)
	require.Equal(t, int64(1850), items[0].Subtotal)
	require.Equal(t, int64(1850), items[0].Total)
	require.Equal(t, "zero-rate", items[0].TaxClass)
}

func TestReplaceLineItemsRemovesOldRowsAndMeta(t *testing.T) {
	db := newWooDB(t)
	store := NewWooStore(db, "wp_")

	oldID := seedItem(t, db, 42, "Single Veg Box", map[string]string{
		"_product_id": "900",
		"_line_total": "12.00",
	})

	err := store.ReplaceLineItems(context.Background(), 42, []domain.LineItem{{
		Name:      "Large Family Veg Box",
		ProductID: 1200,
		Quantity:  1,
		Subtotal:  3250,
		Total:     3250,
	}})
	require.NoError(t, err)

	var orphaned int64
	require.NoError(t, db.Raw(
		`SELECT COUNT(1) FROM wp_woocommerce_order_itemmeta WHERE order_item_id = ?`, oldID,
	).Scan(&orphaned).Error)
	require.Zero(t, orphaned, "old item meta must not be orphaned")

	items, err := store.GetLineItems(context.Background(), 42)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "Large Family Veg Box", items[0].Name)
	require.Equal(t, int64(3250), items[0].Total)
}

func TestReplaceLineItemsRecomputesOrderTotal(t *testing.T) {
	db := newWooDB(t)
	store := NewWooStore(db, "wp_")

	// Stale cached total that must be overwritten from the new items.
	require.NoError(t, db.Exec(
		`INSERT INTO wp_postmeta (post_id, meta_key, meta_value) VALUES (42, '_order_total', '99.99')`,
	).Error)

	err := store.ReplaceLineItems(context.Background(), 42, []domain.LineItem{
		{Name: "Couple Veg Box", Quantity: 1, Subtotal: 1850, Total: 1850},
		{Name: "Egg Add-on", Quantity: 1, Subtotal: 320, Total: 320},
	})
	require.NoError(t, err)

	var total string
	require.NoError(t, db.Raw(
		`SELECT meta_value FROM wp_postmeta WHERE post_id = 42 AND meta_key = '_order_total'`,
	).Scan(&total).Error)
	require.Equal(t, "21.70", total)
}

func TestSetMetaInsertsThenUpdates(t *testing.T) {
	db := newWooDB(t)
	store := NewWooStore(db, "wp_")
	ctx := context.Background()

	require.NoError(t, store.SetMeta(ctx, 42, domain.MetaBillingInterval, "1"))
	require.NoError(t, store.SetMeta(ctx, 42, domain.MetaBillingInterval, "2"))

	var rows []string
	require.NoError(t, db.Raw(
		`SELECT meta_value FROM wp_postmeta WHERE post_id = 42 AND meta_key = ?`, domain.MetaBillingInterval,
	).Scan(&rows).Error)
	require.Equal(t, []string{"2"}, rows)
}

func TestMoneyFormatting(t *testing.T) {
	require.Equal(t, "18.50", formatMoney(1850))
	require.Equal(t, "0.05", formatMoney(5))
	require.Equal(t, "-3.20", formatMoney(-320))
	require.Equal(t, int64(1850), parseMoney("18.50"))
	require.Equal(t, int64(0), parseMoney("not-a-number"))
}

package repository

import (
	"context"
	"fmt"
	"strconv"

	"github.com/middleworldfarms/soilsync/internal/commerce/domain"
	"gorm.io/gorm"
)

// WooStore talks directly to the WooCommerce database. Line items live in
// <prefix>woocommerce_order_items with their metadata in
// <prefix>woocommerce_order_itemmeta; order-level meta lives in
// <prefix>postmeta keyed by the subscription post id.
type WooStore struct {
	db     *gorm.DB
	prefix string
}

func NewWooStore(db *gorm.DB, tablePrefix string) *WooStore {
	if tablePrefix == "" {
		tablePrefix = "wp_"
	}
	return &WooStore{db: db, prefix: tablePrefix}
}

func (s *WooStore) itemsTable() string    { return s.prefix + "woocommerce_order_items" }
func (s *WooStore) itemMetaTable() string { return s.prefix + "woocommerce_order_itemmeta" }
func (s *WooStore) postMetaTable() string { return s.prefix + "postmeta" }

func (s *WooStore) GetLineItems(ctx context.Context, externalID int64) ([]domain.LineItem, error) {
	var rows []struct {
		OrderItemID   int64  `gorm:"column:order_item_id"`
		OrderItemName string `gorm:"column:order_item_name"`
	}
	if err := s.db.WithContext(ctx).Raw(
		`SELECT order_item_id, order_item_name FROM `+s.itemsTable()+`
		 WHERE order_id = ? AND order_item_type = 'line_item'
		 ORDER BY order_item_id`,
		externalID,
	).Scan(&rows).Error; err != nil {
		return nil, err
	}

	items := make([]domain.LineItem, 0, len(rows))
	for _, row := range rows {
		item := domain.LineItem{ItemID: row.OrderItemID, Name: row.OrderItemName}
		if err := s.loadItemMeta(ctx, &item); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func (s *WooStore) loadItemMeta(ctx context.Context, item *domain.LineItem) error {
	var metas []struct {
		MetaKey   string `gorm:"column:meta_key"`
		MetaValue string `gorm:"column:meta_value"`
	}
	if err := s.db.WithContext(ctx).Raw(
		`SELECT meta_key, meta_value FROM `+s.itemMetaTable()+` WHERE order_item_id = ?`,
		item.ItemID,
	).Scan(&metas).Error; err != nil {
		return err
	}

	for _, meta := range metas {
		switch meta.MetaKey {
		case "_product_id":
			item.ProductID, _ = strconv.ParseInt(meta.MetaValue, 10, 64)
		case "_variation_id":
			item.VariationID, _ = strconv.ParseInt(meta.MetaValue, 10, 64)
		case "_qty":
			item.Quantity, _ = strconv.Atoi(meta.MetaValue)
		case "_line_subtotal":
			item.Subtotal = parseMoney(meta.MetaValue)
		case "_line_total":
			item.Total = parseMoney(meta.MetaValue)
		case "_tax_class":
			item.TaxClass = meta.MetaValue
		case "shipping_class":
			item.ShippingClass = meta.MetaValue
		}
	}
	return nil
}

// ReplaceLineItems deletes every existing line item (and its metadata) for
// the external record and inserts the new set, updating the stored order
// total from the new items, all inside one transaction.
func (s *WooStore) ReplaceLineItems(ctx context.Context, externalID int64, items []domain.LineItem) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existingIDs []int64
		if err := tx.Raw(
			`SELECT order_item_id FROM `+s.itemsTable()+`
			 WHERE order_id = ? AND order_item_type = 'line_item'`,
			externalID,
		).Scan(&existingIDs).Error; err != nil {
			return err
		}

		for _, itemID := range existingIDs {
			if err := tx.Exec(`DELETE FROM `+s.itemMetaTable()+` WHERE order_item_id = ?`, itemID).Error; err != nil {
				return err
			}
			if err := tx.Exec(`DELETE FROM `+s.itemsTable()+` WHERE order_item_id = ?`, itemID).Error; err != nil {
				return err
			}
		}

		var total int64
		for _, item := range items {
			if err := tx.Exec(
				`INSERT INTO `+s.itemsTable()+` (order_item_name, order_item_type, order_id) VALUES (?, 'line_item', ?)`,
				item.Name,
				externalID,
			).Error; err != nil {
				return err
			}

			var itemID int64
			if err := tx.Raw(
				`SELECT order_item_id FROM `+s.itemsTable()+`
				 WHERE order_id = ? AND order_item_name = ? AND order_item_type = 'line_item'
				 ORDER BY order_item_id DESC LIMIT 1`,
				externalID,
				item.Name,
			).Scan(&itemID).Error; err != nil {
				return err
			}

			for key, value := range itemMetaRows(item) {
				if err := tx.Exec(
					`INSERT INTO `+s.itemMetaTable()+` (order_item_id, meta_key, meta_value) VALUES (?, ?, ?)`,
					itemID,
					key,
					value,
				).Error; err != nil {
					return err
				}
			}

			total += item.Total
		}

		// The pushed total is always recomputed from the new items, never
		// copied from a cached value.
		return s.upsertPostMeta(tx, externalID, domain.MetaOrderTotal, formatMoney(total))
	})
}

func (s *WooStore) SetMeta(ctx context.Context, externalID int64, key, value string) error {
	return s.upsertPostMeta(s.db.WithContext(ctx), externalID, key, value)
}

func (s *WooStore) upsertPostMeta(tx *gorm.DB, externalID int64, key, value string) error {
	var count int64
	if err := tx.Raw(
		`SELECT COUNT(1) FROM `+s.postMetaTable()+` WHERE post_id = ? AND meta_key = ?`,
		externalID,
		key,
	).Scan(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return tx.Exec(
			`UPDATE `+s.postMetaTable()+` SET meta_value = ? WHERE post_id = ? AND meta_key = ?`,
			value,
			externalID,
			key,
		).Error
	}
	return tx.Exec(
		`INSERT INTO `+s.postMetaTable()+` (post_id, meta_key, meta_value) VALUES (?, ?, ?)`,
		externalID,
		key,
		value,
	).Error
}

func itemMetaRows(item domain.LineItem) map[string]string {
	qty := item.Quantity
	if qty <= 0 {
		qty = 1
	}
	rows := map[string]string{
		"_product_id":    strconv.FormatInt(item.ProductID, 10),
		"_variation_id":  strconv.FormatInt(item.VariationID, 10),
		"_qty":           strconv.Itoa(qty),
		"_line_subtotal": formatMoney(item.Subtotal),
		"_line_total":    formatMoney(item.Total),
		"_tax_class":     item.TaxClass,
	}
	if item.ShippingClass != "" {
		rows["shipping_class"] = item.ShippingClass
	}
	return rows
}

func formatMoney(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d", sign, minor/100, minor%100)
}

func parseMoney(value string) int64 {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	if f >= 0 {
		return int64(f*100 + 0.5)
	}
	return -int64(-f*100 + 0.5)
}

package domain

import "errors"

var (
	ErrSyncDisabled     = errors.New("commerce sync is not configured")
	ErrRecordNotLinked  = errors.New("subscription has no external commerce record")
	ErrExternalNotFound = errors.New("external subscription record not found")
)

// LineItem is one order line on the external commerce record. Metadata rows
// (product, quantity, totals, tax and shipping class) hang off the item and
// cannot be patched piecemeal without orphaning them, which is why
// replacement is all-or-nothing.
type LineItem struct {
	ItemID        int64
	Name          string
	ProductID     int64
	VariationID   int64
	Quantity      int
	Subtotal      int64
	Total         int64
	TaxClass      string
	ShippingClass string
}

// Woo subscription postmeta keys the sync adapter maintains.
const (
	MetaOrderTotal      = "_order_total"
	MetaBillingPeriod   = "_billing_period"
	MetaBillingInterval = "_billing_interval"
	MetaNextPayment     = "_schedule_next_payment"
	MetaShippingMethod  = "_delivery_method"
)

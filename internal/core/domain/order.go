package domain

import (
	"sort"
	"time"
)

type OrderDirection string

const (
	DirectionInbound  OrderDirection = "inbound"
	DirectionOutbound OrderDirection = "outbound"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusCommitted OrderStatus = "committed"
	OrderStatusRejected  OrderStatus = "rejected"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// LineItem is one (product, quantity) request within an order. UnitPrice is
// resolved at settlement time and zero before that.
type LineItem struct {
	ProductID string
	Quantity  int
	UnitPrice float64
}

type Order struct {
	ID        string
	Direction OrderDirection
	Status    OrderStatus
	Reason    string
	LineItems []LineItem
	CreatedAt time.Time
	SettledAt *time.Time
}

// QuantitySign is the multiplier applied to line-item quantities at
// settlement: inbound replenishes stock, outbound consumes it.
func (o *Order) QuantitySign() int {
	if o.Direction == DirectionInbound {
		return 1
	}
	return -1
}

// SortedLineItems returns a copy of the line items in ascending product-ID
// order. Settlement always applies items in this order so that two orders
// touching overlapping product sets contend in a consistent sequence.
func (o *Order) SortedLineItems() []LineItem {
	items := make([]LineItem, len(o.LineItems))
	copy(items, o.LineItems)
	sort.Slice(items, func(i, j int) bool {
		return items[i].ProductID < items[j].ProductID
	})
	return items
}

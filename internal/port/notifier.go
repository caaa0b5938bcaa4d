package port

import (
	"context"

	"github.com/EmmyAnieDev/inventory-management-system/internal/core/domain"
)

// Notifier emits events for the external notification component. Delivery
// is at-least-once; consumers deduplicate on event ID.
type Notifier interface {
	OrderSettled(ctx context.Context, order domain.Order) error
	LowStock(ctx context.Context, product domain.Product) error
}

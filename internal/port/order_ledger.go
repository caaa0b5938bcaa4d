package port

import (
	"context"
	"time"

	"github.com/EmmyAnieDev/inventory-management-system/internal/core/domain"
)

type OrderLedger interface {
	// CreateOrder appends a pending order with its line items.
	CreateOrder(ctx context.Context, order domain.Order) error

	GetOrder(ctx context.Context, id string) (*domain.Order, error)

	// ClaimOrder marks a pending order as taken by a settlement worker.
	// Returns false if the order was already claimed, cancelled or settled.
	ClaimOrder(ctx context.Context, id string) (bool, error)

	// ReleaseOrder clears the claim on a still-pending order so another
	// worker can settle it later. A no-op once the order has reached a
	// terminal status.
	ReleaseOrder(ctx context.Context, id string) error

	// ListPendingUnclaimed returns pending, unclaimed orders created
	// before the given time, for requeueing after a fault or a restart.
	ListPendingUnclaimed(ctx context.Context, olderThan time.Time) ([]domain.Order, error)

	// CancelOrder transitions pending -> cancelled. Only possible before a
	// worker claims the order; domain.ErrOrderNotCancellable otherwise.
	CancelOrder(ctx context.Context, id string) error

	// MarkCommitted records the terminal committed status along with the
	// unit prices resolved at settlement. Callable exactly once per order;
	// a second terminal transition is domain.ErrDoubleSettlement.
	MarkCommitted(ctx context.Context, id string, items []domain.LineItem, settledAt time.Time) error

	// MarkRejected records the terminal rejected status with a reason.
	// Same exactly-once contract as MarkCommitted.
	MarkRejected(ctx context.Context, id, reason string, settledAt time.Time) error
}

package port

import (
	"context"

	"github.com/EmmyAnieDev/inventory-management-system/internal/core/domain"
)

type StockStore interface {
	// GetProduct retrieves a product including derived fields.
	GetProduct(ctx context.Context, id string) (*domain.Product, error)

	// CreateProduct registers a catalog entry with initial stock.
	CreateProduct(ctx context.Context, p domain.Product) error

	// ListProductIDs returns every catalog product ID, for full sweeps.
	ListProductIDs(ctx context.Context) ([]string, error)

	// TryAdjustQuantity is the only quantity-mutating primitive. It
	// atomically verifies quantity+delta >= 0 (domain.ErrInsufficientStock
	// otherwise) and that the stored version still equals expectedVersion
	// (domain.ErrVersionConflict otherwise), then applies the delta and
	// bumps the version, returning the new version.
	TryAdjustQuantity(ctx context.Context, id string, delta, expectedVersion int) (int, error)

	// UpdateDerived writes recalculated pricing fields under the same
	// optimistic version check, so a stale recalculation can never clobber
	// a concurrent settlement.
	UpdateDerived(ctx context.Context, id string, effectivePrice float64, lowStock bool, expectedVersion int) (int, error)
}

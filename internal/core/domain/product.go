package domain

import "time"

type Product struct {
	ID                string
	Name              string
	BasePrice         float64
	DiscountRule      string
	DiscountParam     float64
	Quantity          int
	LowStockThreshold int
	EffectivePrice    float64
	LowStock          bool
	DerivedAt         *time.Time // nil until derived fields are first computed
	Version           int        // optimistic locking
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// IsLowStock reports whether a given quantity is below the product's
// low-stock threshold.
func (p *Product) IsLowStock(quantity int) bool {
	return quantity < p.LowStockThreshold
}

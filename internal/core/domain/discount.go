package domain

// DiscountFunc computes a product's effective unit price from its base
// price, current quantity on hand and the rule parameter. Implementations
// must be pure: same inputs, same output.
type DiscountFunc func(basePrice float64, quantity int, param float64) float64

const (
	RuleNone       = "none"
	RulePercentage = "percentage"
	RuleBulk       = "bulk"

	// bulkQuantityFloor is the on-hand quantity at which the bulk rule
	// starts discounting.
	bulkQuantityFloor = 100
)

func NoDiscount(basePrice float64, _ int, _ float64) float64 {
	return basePrice
}

// PercentageDiscount applies a flat percentage off the base price. The
// parameter is clamped to [0, 100].
func PercentageDiscount(basePrice float64, _ int, param float64) float64 {
	return basePrice * (1 - clampPercent(param)/100)
}

// BulkDiscount applies the percentage only while quantity on hand is at or
// above the bulk floor; scarce products sell at base price.
func BulkDiscount(basePrice float64, quantity int, param float64) float64 {
	if quantity < bulkQuantityFloor {
		return basePrice
	}
	return PercentageDiscount(basePrice, quantity, param)
}

// RuleByName resolves a discount rule reference. Unknown rules fall back to
// no discount rather than failing recalculation.
func RuleByName(name string) DiscountFunc {
	switch name {
	case RulePercentage:
		return PercentageDiscount
	case RuleBulk:
		return BulkDiscount
	default:
		return NoDiscount
	}
}

func clampPercent(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

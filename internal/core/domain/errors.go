package domain

import "errors"

var (
	ErrProductNotFound = errors.New("product not found")
	ErrOrderNotFound   = errors.New("order not found")

	// ErrVersionConflict means a concurrent writer bumped the product
	// version between read and update. Transient; callers retry.
	ErrVersionConflict = errors.New("version conflict")

	// ErrInsufficientStock means the adjustment would drive quantity
	// below zero. Terminal domain rejection.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrDoubleSettlement means an order that already left pending was
	// settled again. This is an invariant violation, not a retriable
	// condition.
	ErrDoubleSettlement = errors.New("order already settled")

	// ErrOrderNotCancellable means the order was already claimed by a
	// settlement worker or has reached a terminal status.
	ErrOrderNotCancellable = errors.New("order not cancellable")
)

package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/EmmyAnieDev/inventory-management-system/internal/core/domain"
	"github.com/EmmyAnieDev/inventory-management-system/internal/metrics"
	"github.com/EmmyAnieDev/inventory-management-system/internal/port"
)

var (
	ErrEmptyOrder       = errors.New("order has no line items")
	ErrInvalidQuantity  = errors.New("line item quantity must be positive")
	ErrInvalidDirection = errors.New("direction must be inbound or outbound")

	// ErrContentionExhausted means the per-product version check kept
	// failing for the whole retry budget.
	ErrContentionExhausted = errors.New("contention exhausted")
)

// Rejection reasons recorded in the ledger.
const (
	ReasonInsufficientStock   = "insufficient-stock"
	ReasonContentionExhausted = "contention-exhausted"
	ReasonProductNotFound     = "product-not-found"
)

const (
	maxAdjustRetries = 5
	settleTimeout    = 5 * time.Second
)

// SettlementService applies pending orders against the stock store and
// resolves each to committed or rejected. Orders are queued on submission
// and settled by a worker pool; the only cross-worker synchronization is
// the per-product optimistic version check in the store.
type SettlementService struct {
	store    port.StockStore
	ledger   port.OrderLedger
	jobs     port.JobQueue
	notifier port.Notifier
	metrics  *metrics.Registry
	logger   *zap.Logger

	orders chan domain.Order
	wg     sync.WaitGroup

	stopRecovery chan struct{}
	recoveryDone chan struct{}
}

func NewSettlementService(
	store port.StockStore,
	ledger port.OrderLedger,
	jobs port.JobQueue,
	notifier port.Notifier,
	m *metrics.Registry,
	logger *zap.Logger,
	queueSize int,
) *SettlementService {
	return &SettlementService{
		store:    store,
		ledger:   ledger,
		jobs:     jobs,
		notifier: notifier,
		metrics:  m,
		logger:   logger,
		orders:   make(chan domain.Order, queueSize),
	}
}

// SubmitOrder appends a pending order to the ledger and queues it for
// settlement. The returned order is still pending; its terminal status is
// visible through the ledger once a worker settles it.
func (s *SettlementService) SubmitOrder(ctx context.Context, direction domain.OrderDirection, items []domain.LineItem) (*domain.Order, error) {
	if direction != domain.DirectionInbound && direction != domain.DirectionOutbound {
		return nil, ErrInvalidDirection
	}
	if len(items) == 0 {
		return nil, ErrEmptyOrder
	}
	for _, item := range items {
		if item.ProductID == "" || item.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
	}

	order := domain.Order{
		ID:        uuid.New().String(),
		Direction: direction,
		Status:    domain.OrderStatusPending,
		LineItems: items,
		CreatedAt: time.Now(),
	}

	if err := s.ledger.CreateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	s.orders <- order

	return &order, nil
}

// CancelOrder cancels a pending order. Once a worker has claimed the order
// it runs to a terminal state and cannot be cancelled.
func (s *SettlementService) CancelOrder(ctx context.Context, id string) error {
	if err := s.ledger.CancelOrder(ctx, id); err != nil {
		return err
	}
	s.metrics.OrdersCancelled.Inc()
	return nil
}

func (s *SettlementService) StartWorkers(n int) {
	for i := 0; i < n; i++ {
		s.wg.Add(1)
		go func(id int) {
			defer s.wg.Done()
			s.workerLoop(id)
		}(i)
	}
}

// StartRecovery periodically requeues pending unclaimed orders older than
// the interval: orders released after an infrastructure fault and orders
// stranded in the ledger by a restart.
func (s *SettlementService) StartRecovery(interval time.Duration) {
	s.stopRecovery = make(chan struct{})
	s.recoveryDone = make(chan struct{})
	go s.recoveryLoop(interval)
}

// Close stops accepting orders and waits for in-flight settlements.
func (s *SettlementService) Close() {
	if s.recoveryDone != nil {
		close(s.stopRecovery)
		<-s.recoveryDone
	}
	close(s.orders)
	s.wg.Wait()
}

func (s *SettlementService) recoveryLoop(interval time.Duration) {
	defer close(s.recoveryDone)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopRecovery:
			return
		case <-ticker.C:
			s.recoverPending(interval)
		}
	}
}

func (s *SettlementService) recoverPending(age time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), settleTimeout)
	defer cancel()

	orders, err := s.ledger.ListPendingUnclaimed(ctx, time.Now().Add(-age))
	if err != nil {
		s.logger.Warn("pending order recovery failed", zap.Error(err))
		return
	}

	requeued := 0
	for _, order := range orders {
		select {
		case s.orders <- order:
			requeued++
		default:
			// Queue full; the rest wait for the next cycle.
		}
	}
	if requeued > 0 {
		s.logger.Info("pending orders requeued", zap.Int("count", requeued))
	}
}

func (s *SettlementService) workerLoop(id int) {
	for order := range s.orders {
		ctx, cancel := context.WithTimeout(context.Background(), settleTimeout)

		claimed, err := s.ledger.ClaimOrder(ctx, order.ID)
		if err != nil {
			s.logger.Error("claim failed, order left pending",
				zap.Int("worker", id),
				zap.String("order_id", order.ID),
				zap.Error(err))
			cancel()
			continue
		}
		if !claimed {
			// Cancelled or picked up elsewhere.
			cancel()
			continue
		}

		if err := s.Settle(ctx, order); err != nil {
			s.logger.Error("settlement failed, order left pending",
				zap.Int("worker", id),
				zap.String("order_id", order.ID),
				zap.Error(err))
			s.releaseClaim(order.ID)
		}

		cancel()
	}
}

// Settle applies a claimed order's line-items to stock and records the
// terminal outcome. Items are applied in ascending product-ID order; on a
// domain rejection every already-applied item is compensated first, so an
// order never partially holds stock changes. A returned error is an
// infrastructure fault: stock has been released and the order is still
// pending for a later retry.
func (s *SettlementService) Settle(ctx context.Context, order domain.Order) error {
	start := time.Now()
	sign := order.QuantitySign()
	items := order.SortedLineItems()
	applied := items[:0:0]

	for i := range items {
		price, err := s.adjustWithRetry(ctx, items[i].ProductID, sign*items[i].Quantity)
		if err != nil {
			s.compensate(order, applied)

			var reason string
			switch {
			case errors.Is(err, domain.ErrInsufficientStock):
				reason = ReasonInsufficientStock
			case errors.Is(err, domain.ErrProductNotFound):
				reason = ReasonProductNotFound
			case errors.Is(err, ErrContentionExhausted):
				reason = ReasonContentionExhausted
			default:
				return fmt.Errorf("settle order %s: %w", order.ID, err)
			}
			return s.reject(ctx, order, reason)
		}

		items[i].UnitPrice = price
		applied = append(applied, items[i])
	}

	now := time.Now()
	if err := s.ledger.MarkCommitted(ctx, order.ID, items, now); err != nil {
		s.compensate(order, applied)
		if errors.Is(err, domain.ErrDoubleSettlement) {
			s.logger.Error("double settlement detected",
				zap.String("order_id", order.ID),
				zap.Error(err))
		}
		return fmt.Errorf("commit order %s: %w", order.ID, err)
	}

	s.metrics.OrdersCommitted.Inc()
	s.metrics.SettleLatencySec.Observe(time.Since(start).Seconds())

	for _, item := range items {
		job := domain.RecalculationJob{
			ProductID:  item.ProductID,
			Reason:     domain.JobReasonOrderSettled,
			EnqueuedAt: time.Now(),
		}
		coalesced, err := s.jobs.Enqueue(ctx, job)
		if err != nil {
			// Next scheduled sweep covers the product.
			s.logger.Warn("recalculation enqueue failed",
				zap.String("product_id", item.ProductID),
				zap.Error(err))
			continue
		}
		if coalesced {
			s.metrics.JobsCoalesced.Inc()
		}
	}

	order.Status = domain.OrderStatusCommitted
	order.LineItems = items
	order.SettledAt = &now
	if err := s.notifier.OrderSettled(ctx, order); err != nil {
		s.logger.Warn("settlement event emit failed",
			zap.String("order_id", order.ID),
			zap.Error(err))
	}

	return nil
}

func (s *SettlementService) reject(ctx context.Context, order domain.Order, reason string) error {
	now := time.Now()
	if err := s.ledger.MarkRejected(ctx, order.ID, reason, now); err != nil {
		if errors.Is(err, domain.ErrDoubleSettlement) {
			s.logger.Error("double settlement detected",
				zap.String("order_id", order.ID),
				zap.Error(err))
		}
		return fmt.Errorf("reject order %s: %w", order.ID, err)
	}

	s.metrics.OrdersRejected.Inc()
	s.logger.Info("order rejected",
		zap.String("order_id", order.ID),
		zap.String("reason", reason))

	order.Status = domain.OrderStatusRejected
	order.Reason = reason
	order.SettledAt = &now
	if err := s.notifier.OrderSettled(ctx, order); err != nil {
		s.logger.Warn("settlement event emit failed",
			zap.String("order_id", order.ID),
			zap.Error(err))
	}

	return nil
}

// adjustWithRetry runs the read-version/compare-and-swap loop for one line
// item. Version conflicts are transient and retried up to the budget; every
// other error is returned as-is. On success it returns the unit price
// resolved from the product as read.
func (s *SettlementService) adjustWithRetry(ctx context.Context, productID string, delta int) (float64, error) {
	for attempt := 0; attempt < maxAdjustRetries; attempt++ {
		product, err := s.store.GetProduct(ctx, productID)
		if err != nil {
			return 0, err
		}

		if _, err := s.store.TryAdjustQuantity(ctx, productID, delta, product.Version); err != nil {
			if errors.Is(err, domain.ErrVersionConflict) {
				s.metrics.ConflictRetries.Inc()
				continue
			}
			return 0, err
		}

		return resolvedUnitPrice(product), nil
	}

	return 0, ErrContentionExhausted
}

// compensate reverses already-applied line items so a non-committed order
// holds no stock changes. Runs on a fresh context: the deltas are already in
// the store, so compensation must proceed even when the settle context is
// done.
func (s *SettlementService) compensate(order domain.Order, applied []domain.LineItem) {
	if len(applied) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), settleTimeout)
	defer cancel()

	sign := order.QuantitySign()
	for i := len(applied) - 1; i >= 0; i-- {
		item := applied[i]
		if _, err := s.adjustWithRetry(ctx, item.ProductID, -sign*item.Quantity); err != nil {
			s.logger.Error("CRITICAL: compensation failed, stock may be inconsistent",
				zap.String("order_id", order.ID),
				zap.String("product_id", item.ProductID),
				zap.Int("quantity", item.Quantity),
				zap.Error(err))
		}
	}
}

// releaseClaim returns a still-pending order to the claimable pool after a
// failed settlement, so recovery can requeue it. Runs on a fresh context
// because the settle context may already be done.
func (s *SettlementService) releaseClaim(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), settleTimeout)
	defer cancel()

	if err := s.ledger.ReleaseOrder(ctx, id); err != nil {
		s.logger.Error("claim release failed, order needs manual requeue",
			zap.String("order_id", id),
			zap.Error(err))
	}
}

// resolvedUnitPrice prices a line item. A product that has never been
// through recalculation sells at base price; a derived price of zero
// means a full discount and is honored.
func resolvedUnitPrice(p *domain.Product) float64 {
	if p.DerivedAt != nil {
		return p.EffectivePrice
	}
	return p.BasePrice
}

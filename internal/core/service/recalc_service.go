package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/EmmyAnieDev/inventory-management-system/internal/core/domain"
	"github.com/EmmyAnieDev/inventory-management-system/internal/metrics"
	"github.com/EmmyAnieDev/inventory-management-system/internal/port"
)

const (
	recalcRetries = 5
	jobTimeout    = 10 * time.Second
)

// RecalcService consumes recalculation jobs and recomputes derived pricing
// and low-stock fields. Processing is idempotent: it depends only on current
// product state, never on job history, so queue redelivery and coalescing
// are both safe.
type RecalcService struct {
	store    port.StockStore
	jobs     port.JobQueue
	notifier port.Notifier
	metrics  *metrics.Registry
	logger   *zap.Logger

	pollInterval time.Duration
	wg           sync.WaitGroup
}

func NewRecalcService(
	store port.StockStore,
	jobs port.JobQueue,
	notifier port.Notifier,
	m *metrics.Registry,
	logger *zap.Logger,
	pollInterval time.Duration,
) *RecalcService {
	return &RecalcService{
		store:        store,
		jobs:         jobs,
		notifier:     notifier,
		metrics:      m,
		logger:       logger,
		pollInterval: pollInterval,
	}
}

func (s *RecalcService) StartWorkers(ctx context.Context, n int) {
	for i := 0; i < n; i++ {
		s.wg.Add(1)
		go func(id int) {
			defer s.wg.Done()
			s.workerLoop(ctx, id)
		}(i)
	}
}

func (s *RecalcService) Wait() {
	s.wg.Wait()
}

// TriggerRecalculation enqueues a manual job. An empty product ID requests a
// full-catalog sweep.
func (s *RecalcService) TriggerRecalculation(ctx context.Context, productID string) error {
	if productID == "" {
		productID = domain.AllProducts
	}
	job := domain.RecalculationJob{
		ProductID:  productID,
		Reason:     domain.JobReasonManual,
		EnqueuedAt: time.Now(),
	}
	coalesced, err := s.jobs.Enqueue(ctx, job)
	if err != nil {
		return fmt.Errorf("enqueue recalculation: %w", err)
	}
	if coalesced {
		s.metrics.JobsCoalesced.Inc()
	}
	return nil
}

func (s *RecalcService) workerLoop(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := s.jobs.Dequeue(ctx)
		if err != nil {
			s.logger.Warn("dequeue failed", zap.Int("worker", id), zap.Error(err))
			s.idle(ctx)
			continue
		}
		if job == nil {
			s.idle(ctx)
			continue
		}

		s.handle(*job)
	}
}

func (s *RecalcService) idle(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(s.pollInterval):
	}
}

// handle runs one dequeued job to its terminal state. Failures are parked
// for the scheduler to retry one cycle later; they are never silently
// dropped and never block settlement of new orders.
func (s *RecalcService) handle(job domain.RecalculationJob) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	if err := s.process(ctx, job); err != nil {
		s.metrics.JobsFailed.Inc()
		s.logger.Warn("recalculation failed",
			zap.String("product_id", job.ProductID),
			zap.String("reason", string(job.Reason)),
			zap.Error(err))

		if rfErr := s.jobs.RecordFailure(ctx, job, err.Error()); rfErr != nil {
			s.logger.Error("failed job could not be parked for retry",
				zap.String("product_id", job.ProductID),
				zap.Error(rfErr))
		}
	} else {
		s.metrics.JobsProcessed.Inc()
	}

	if err := s.jobs.Ack(ctx, job); err != nil {
		s.logger.Warn("job ack failed, sweep may redeliver",
			zap.String("product_id", job.ProductID),
			zap.Error(err))
	}
}

func (s *RecalcService) process(ctx context.Context, job domain.RecalculationJob) error {
	if job.ProductID != domain.AllProducts {
		return s.Recalculate(ctx, job.ProductID)
	}

	ids, err := s.store.ListProductIDs(ctx)
	if err != nil {
		return fmt.Errorf("list products: %w", err)
	}
	for _, id := range ids {
		if err := s.Recalculate(ctx, id); err != nil {
			return fmt.Errorf("product %s: %w", id, err)
		}
	}
	return nil
}

// Recalculate recomputes one product's effective price and low-stock flag
// and writes them back under the product's version check, so a concurrent
// settlement can never be clobbered by a stale recalculation. When the
// stored derived fields already match, the write is skipped entirely.
func (s *RecalcService) Recalculate(ctx context.Context, productID string) error {
	for attempt := 0; attempt < recalcRetries; attempt++ {
		p, err := s.store.GetProduct(ctx, productID)
		if err != nil {
			return err
		}

		rule := domain.RuleByName(p.DiscountRule)
		effective := rule(p.BasePrice, p.Quantity, p.DiscountParam)
		low := p.IsLowStock(p.Quantity)

		if p.DerivedAt != nil && effective == p.EffectivePrice && low == p.LowStock {
			return nil
		}

		if _, err := s.store.UpdateDerived(ctx, productID, effective, low, p.Version); err != nil {
			if errors.Is(err, domain.ErrVersionConflict) {
				s.metrics.ConflictRetries.Inc()
				continue
			}
			return err
		}

		if low && !p.LowStock {
			s.metrics.LowStockFlags.Inc()
			alerted := *p
			alerted.EffectivePrice = effective
			alerted.LowStock = true
			if err := s.notifier.LowStock(ctx, alerted); err != nil {
				s.logger.Warn("low stock event emit failed",
					zap.String("product_id", productID),
					zap.Error(err))
			}
		}

		return nil
	}

	return ErrContentionExhausted
}

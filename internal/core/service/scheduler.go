package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/EmmyAnieDev/inventory-management-system/internal/core/domain"
	"github.com/EmmyAnieDev/inventory-management-system/internal/metrics"
	"github.com/EmmyAnieDev/inventory-management-system/internal/port"
)

// Scheduler periodically enqueues a full recalculation sweep and re-enqueues
// jobs that failed their previous attempt. It is purely a producer: it never
// touches the stock store.
type Scheduler struct {
	jobs     port.JobQueue
	interval time.Duration
	metrics  *metrics.Registry
	logger   *zap.Logger
}

func NewScheduler(jobs port.JobQueue, interval time.Duration, m *metrics.Registry, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		jobs:     jobs,
		interval: interval,
		metrics:  m,
		logger:   logger,
	}
}

func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	s.requeueFailed(ctx)
	s.requeueAbandoned(ctx)

	sweep := domain.RecalculationJob{
		ProductID:  domain.AllProducts,
		Reason:     domain.JobReasonScheduled,
		EnqueuedAt: time.Now(),
	}
	coalesced, err := s.jobs.Enqueue(ctx, sweep)
	if err != nil {
		s.logger.Warn("sweep enqueue failed", zap.Error(err))
		return
	}
	if coalesced {
		s.metrics.JobsCoalesced.Inc()
	}
	s.logger.Info("scheduled sweep enqueued")
}

func (s *Scheduler) requeueFailed(ctx context.Context) {
	failed, err := s.jobs.TakeFailed(ctx)
	if err != nil {
		s.logger.Warn("failed-job drain failed", zap.Error(err))
		return
	}
	if len(failed) == 0 {
		return
	}

	s.requeueJobs(ctx, failed)
	s.logger.Info("failed jobs requeued", zap.Int("count", len(failed)))
}

// requeueAbandoned recovers in-flight jobs whose consumer died before
// acking. An entry older than a full cycle cannot still be processing.
func (s *Scheduler) requeueAbandoned(ctx context.Context) {
	abandoned, err := s.jobs.TakeAbandoned(ctx, time.Now().Add(-s.interval))
	if err != nil {
		s.logger.Warn("abandoned-job drain failed", zap.Error(err))
		return
	}
	if len(abandoned) == 0 {
		return
	}

	s.requeueJobs(ctx, abandoned)
	s.logger.Info("abandoned jobs requeued", zap.Int("count", len(abandoned)))
}

func (s *Scheduler) requeueJobs(ctx context.Context, jobs []domain.RecalculationJob) {
	for _, job := range jobs {
		job.EnqueuedAt = time.Now()
		coalesced, err := s.jobs.Enqueue(ctx, job)
		if err != nil {
			s.logger.Warn("job requeue failed",
				zap.String("product_id", job.ProductID),
				zap.Error(err))
			continue
		}
		if coalesced {
			s.metrics.JobsCoalesced.Inc()
		}
	}
}

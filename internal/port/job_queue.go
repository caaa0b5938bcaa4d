package port

import (
	"context"
	"time"

	"github.com/EmmyAnieDev/inventory-management-system/internal/core/domain"
)

type JobQueue interface {
	// Enqueue adds a recalculation job. Jobs for a product that already
	// has one pending are coalesced; the returned bool reports whether
	// this enqueue merged into an existing pending job.
	Enqueue(ctx context.Context, job domain.RecalculationJob) (bool, error)

	// Dequeue pops the oldest pending job, or (nil, nil) when the queue
	// is empty. A dequeued job stays in flight until Ack.
	Dequeue(ctx context.Context) (*domain.RecalculationJob, error)

	// Ack removes a dequeued job from the in-flight set once handling
	// reached a terminal outcome.
	Ack(ctx context.Context, job domain.RecalculationJob) error

	// TakeAbandoned drains in-flight jobs dequeued before the given time,
	// left behind by a consumer that died mid-processing.
	TakeAbandoned(ctx context.Context, olderThan time.Time) ([]domain.RecalculationJob, error)

	// RecordFailure parks a job that exhausted its retry budget so the
	// scheduler can re-enqueue it on a later cycle.
	RecordFailure(ctx context.Context, job domain.RecalculationJob, reason string) error

	// TakeFailed drains and returns all parked jobs.
	TakeFailed(ctx context.Context) ([]domain.RecalculationJob, error)
}

package service

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/EmmyAnieDev/inventory-management-system/internal/core/domain"
	"github.com/EmmyAnieDev/inventory-management-system/internal/metrics"
)

func TestScheduler_EnqueuesSweepAndRequeuesFailed(t *testing.T) {
	queue := newMockJobQueue()
	queue.RecordFailure(context.Background(),
		domain.RecalculationJob{ProductID: "p1", Reason: domain.JobReasonOrderSettled}, "store down")

	sched := NewScheduler(queue, 10*time.Millisecond, metrics.NewRegistry(), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for {
		jobs := queue.pendingJobs()
		if hasJob(jobs, domain.AllProducts) && hasJob(jobs, "p1") {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("expected sweep and requeued job, got %+v", queue.pendingJobs())
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	<-done

	if failed := queue.failedJobs(); len(failed) != 0 {
		t.Errorf("expected failed set drained, got %+v", failed)
	}

	// The requeued job keeps its original trigger reason.
	for _, job := range queue.pendingJobs() {
		if job.ProductID == "p1" && job.Reason != domain.JobReasonOrderSettled {
			t.Errorf("expected original reason preserved, got %s", job.Reason)
		}
	}
}

func TestScheduler_RequeuesAbandonedJobs(t *testing.T) {
	queue := newMockJobQueue()
	ctx := context.Background()

	// A job dequeued but never acked looks like a dead consumer's.
	if _, err := queue.Enqueue(ctx,
		domain.RecalculationJob{ProductID: "p2", Reason: domain.JobReasonManual, EnqueuedAt: time.Now()}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := queue.Dequeue(ctx); err != nil {
		t.Fatalf("dequeue: %v", err)
	}

	sched := NewScheduler(queue, 10*time.Millisecond, metrics.NewRegistry(), zap.NewNop())

	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sched.Run(runCtx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for !hasJob(queue.pendingJobs(), "p2") {
		select {
		case <-deadline:
			t.Fatalf("abandoned job never requeued, pending %+v", queue.pendingJobs())
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	<-done

	for _, job := range queue.pendingJobs() {
		if job.ProductID == "p2" && job.Reason != domain.JobReasonManual {
			t.Errorf("expected original reason preserved, got %s", job.Reason)
		}
	}
}

func hasJob(jobs []domain.RecalculationJob, productID string) bool {
	for _, job := range jobs {
		if job.ProductID == productID {
			return true
		}
	}
	return false
}

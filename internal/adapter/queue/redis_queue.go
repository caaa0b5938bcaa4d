package queue

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/EmmyAnieDev/inventory-management-system/internal/core/domain"
)

const (
	pendingKey    = "recalc:pending"
	reasonKey     = "recalc:reason"
	processingKey = "recalc:processing"
	failedKey     = "recalc:failed"
)

// enqueueScript adds the product to the pending set and records the trigger
// reason atomically. Members are product IDs, so a product that already has
// a pending job coalesces instead of queueing twice. Returns 1 when a new
// job was created, 0 when the enqueue merged into an existing one.
var enqueueScript = redis.NewScript(`
local added = redis.call('ZADD', KEYS[1], ARGV[1], ARGV[2])
redis.call('HSET', KEYS[2], ARGV[2], ARGV[3])
return added
`)

type RedisJobQueue struct {
	client *redis.Client
}

func NewRedisJobQueue(client *redis.Client) *RedisJobQueue {
	return &RedisJobQueue{client: client}
}

func (q *RedisJobQueue) Enqueue(ctx context.Context, job domain.RecalculationJob) (bool, error) {
	score := float64(job.EnqueuedAt.UnixNano())
	added, err := enqueueScript.Run(ctx, q.client,
		[]string{pendingKey, reasonKey},
		score, job.ProductID, string(job.Reason),
	).Int()
	if err != nil {
		return false, fmt.Errorf("enqueue job: %w", err)
	}

	return added == 0, nil
}

// dequeueScript pops the oldest pending job with its reason in one atomic
// step and parks it in the processing hash until the consumer acks, so a
// consumer crash between dequeue and completion cannot lose the job.
var dequeueScript = redis.NewScript(`
local popped = redis.call('ZPOPMIN', KEYS[1], 1)
if #popped == 0 then
	return false
end
local id = popped[1]
local reason = redis.call('HGET', KEYS[2], id)
redis.call('HDEL', KEYS[2], id)
if not reason then
	reason = ''
end
redis.call('HSET', KEYS[3], id, reason .. '|' .. ARGV[1])
return {id, reason, popped[2]}
`)

func (q *RedisJobQueue) Dequeue(ctx context.Context) (*domain.RecalculationJob, error) {
	now := strconv.FormatInt(time.Now().UnixNano(), 10)
	res, err := dequeueScript.Run(ctx, q.client,
		[]string{pendingKey, reasonKey, processingKey}, now,
	).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("dequeue job: %w", err)
	}

	fields, ok := res.([]interface{})
	if !ok || len(fields) != 3 {
		return nil, fmt.Errorf("dequeue job: unexpected reply %v", res)
	}

	productID := fmt.Sprint(fields[0])
	reason := fmt.Sprint(fields[1])
	if reason == "" {
		reason = string(domain.JobReasonScheduled)
	}

	enqueuedAt := time.Now()
	if score, err := strconv.ParseFloat(fmt.Sprint(fields[2]), 64); err == nil {
		enqueuedAt = time.Unix(0, int64(score))
	}

	return &domain.RecalculationJob{
		ProductID:  productID,
		Reason:     domain.JobReason(reason),
		EnqueuedAt: enqueuedAt,
	}, nil
}

func (q *RedisJobQueue) Ack(ctx context.Context, job domain.RecalculationJob) error {
	if err := q.client.HDel(ctx, processingKey, job.ProductID).Err(); err != nil {
		return fmt.Errorf("ack job: %w", err)
	}
	return nil
}

func (q *RedisJobQueue) TakeAbandoned(ctx context.Context, olderThan time.Time) ([]domain.RecalculationJob, error) {
	entries, err := q.client.HGetAll(ctx, processingKey).Result()
	if err != nil {
		return nil, fmt.Errorf("read in-flight jobs: %w", err)
	}

	cutoff := olderThan.UnixNano()
	var jobs []domain.RecalculationJob
	var stale []string
	for productID, value := range entries {
		reason, ts, ok := splitFailedValue(value)
		if !ok || ts >= cutoff {
			continue
		}
		if reason == "" {
			reason = string(domain.JobReasonScheduled)
		}
		jobs = append(jobs, domain.RecalculationJob{
			ProductID:  productID,
			Reason:     domain.JobReason(reason),
			EnqueuedAt: time.Unix(0, ts),
		})
		stale = append(stale, productID)
	}

	if len(stale) > 0 {
		if err := q.client.HDel(ctx, processingKey, stale...).Err(); err != nil {
			return nil, fmt.Errorf("drain in-flight jobs: %w", err)
		}
	}
	return jobs, nil
}

func (q *RedisJobQueue) RecordFailure(ctx context.Context, job domain.RecalculationJob, reason string) error {
	value := string(job.Reason) + "|" + strconv.FormatInt(job.EnqueuedAt.UnixNano(), 10)
	if err := q.client.HSet(ctx, failedKey, job.ProductID, value).Err(); err != nil {
		return fmt.Errorf("record job failure: %w", err)
	}
	return nil
}

func (q *RedisJobQueue) TakeFailed(ctx context.Context) ([]domain.RecalculationJob, error) {
	entries, err := q.client.HGetAll(ctx, failedKey).Result()
	if err != nil {
		return nil, fmt.Errorf("read failed jobs: %w", err)
	}
	if len(entries) == 0 {
		return nil, nil
	}

	if err := q.client.Del(ctx, failedKey).Err(); err != nil {
		return nil, fmt.Errorf("drain failed jobs: %w", err)
	}

	jobs := make([]domain.RecalculationJob, 0, len(entries))
	for productID, value := range entries {
		job := domain.RecalculationJob{ProductID: productID, Reason: domain.JobReasonScheduled}
		if reason, ts, ok := splitFailedValue(value); ok {
			job.Reason = domain.JobReason(reason)
			job.EnqueuedAt = time.Unix(0, ts)
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func splitFailedValue(value string) (string, int64, bool) {
	for i := len(value) - 1; i >= 0; i-- {
		if value[i] == '|' {
			ts, err := strconv.ParseInt(value[i+1:], 10, 64)
			if err != nil {
				return "", 0, false
			}
			return value[:i], ts, true
		}
	}
	return "", 0, false
}

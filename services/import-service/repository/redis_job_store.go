package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/yashrajoria/construction-backend/services/import-service/models"
)

const (
	jobKeyPrefix = "bulk_import:job:"
	queueKey     = "bulk_import:queue"
	jobTTL       = 24 * time.Hour
	popTimeout   = 5 * time.Second
)

func jobKey(id string) string { return jobKeyPrefix + id }

// RedisJobStore keeps job metadata as JSON with a 24h TTL.
type RedisJobStore struct {
	rdb *redis.Client
}

func NewRedisJobStore(rdb *redis.Client) *RedisJobStore {
	return &RedisJobStore{rdb: rdb}
}

func (s *RedisJobStore) Save(ctx context.Context, job *models.ImportJob) error {
	job.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	if err := s.rdb.Set(ctx, jobKey(job.ID), data, jobTTL).Err(); err != nil {
		return fmt.Errorf("failed to store job metadata: %w", err)
	}
	return nil
}

func (s *RedisJobStore) Get(ctx context.Context, id string) (*models.ImportJob, error) {
	val, err := s.rdb.Get(ctx, jobKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read job metadata: %w", err)
	}
	var job models.ImportJob
	if err := json.Unmarshal(val, &job); err != nil {
		return nil, fmt.Errorf("failed to parse job metadata: %w", err)
	}
	return &job, nil
}

func (s *RedisJobStore) Delete(ctx context.Context, id string) error {
	return s.rdb.Del(ctx, jobKey(id)).Err()
}

// RedisJobQueue is a Redis list used as a FIFO: RPUSH to enqueue, BLPOP to consume.
type RedisJobQueue struct {
	rdb *redis.Client
}

func NewRedisJobQueue(rdb *redis.Client) *RedisJobQueue {
	return &RedisJobQueue{rdb: rdb}
}

func (q *RedisJobQueue) Enqueue(ctx context.Context, jobID string) error {
	if err := q.rdb.RPush(ctx, queueKey, jobID).Err(); err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}
	return nil
}

// Consume pops job IDs one at a time. A handler error is logged; the job is
// not requeued since its state already records the failure.
func (q *RedisJobQueue) Consume(ctx context.Context, handle JobHandler) error {
	zap.L().Info("bulk import queue consumer started", zap.String("queue", queueKey))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		// bounded timeout so cancellation is noticed between pops
		res, err := q.rdb.BLPop(ctx, popTimeout, queueKey).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			zap.L().Error("redis BLPop failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(500 * time.Millisecond):
			}
			continue
		}
		if len(res) < 2 {
			continue
		}
		if err := handle(ctx, res[1]); err != nil {
			zap.L().Error("bulk import job failed", zap.String("job", res[1]), zap.Error(err))
		}
	}
}

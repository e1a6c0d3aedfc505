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
	historyCachePrefix = "bulk_import:history:v:"
	historyVersionKey  = "bulk_import:history:version"
	historyCacheTTL    = 10 * time.Minute
)

// CachedHistoryRepo fronts a HistoryRepo with Redis. Saving bumps a version
// counter, which orphans every cached listing at once.
type CachedHistoryRepo struct {
	next  HistoryRepo
	redis *redis.Client
	ttl   time.Duration
}

func NewCachedHistoryRepo(next HistoryRepo, rdb *redis.Client) *CachedHistoryRepo {
	return &CachedHistoryRepo{next: next, redis: rdb, ttl: historyCacheTTL}
}

func (r *CachedHistoryRepo) Save(ctx context.Context, entry models.HistoryEntry) error {
	if err := r.next.Save(ctx, entry); err != nil {
		return err
	}
	if err := r.redis.Incr(ctx, historyVersionKey).Err(); err != nil {
		zap.L().Error("failed to invalidate history cache", zap.Error(err))
	}
	return nil
}

func (r *CachedHistoryRepo) List(ctx context.Context, project string, limit int) ([]models.HistoryEntry, error) {
	version, err := r.version(ctx)
	if err != nil {
		zap.L().Warn("history cache unavailable", zap.Error(err))
		return r.next.List(ctx, project, limit)
	}

	key := fmt.Sprintf("%s%d:p:%s:l:%d", historyCachePrefix, version, project, limit)
	if cached, err := r.redis.Get(ctx, key).Bytes(); err == nil {
		var entries []models.HistoryEntry
		if err := json.Unmarshal(cached, &entries); err == nil {
			return entries, nil
		}
		zap.L().Warn("failed to unmarshal cached history", zap.Error(err))
	}

	entries, err := r.next.List(ctx, project, limit)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(entries); err == nil {
		if err := r.redis.Set(ctx, key, data, r.ttl).Err(); err != nil {
			zap.L().Warn("failed to cache history", zap.Error(err))
		}
	}
	return entries, nil
}

func (r *CachedHistoryRepo) version(ctx context.Context) (int64, error) {
	ver, err := r.redis.Get(ctx, historyVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		// SetNX so concurrent initialisers agree
		if err := r.redis.SetNX(ctx, historyVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return r.redis.Get(ctx, historyVersionKey).Int64()
	}
	return ver, err
}

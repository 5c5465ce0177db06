package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"interviewlab/internal/model"
)

// MetricsCache holds the most recent live metrics per session so dashboard
// polling never has to touch a live aggregator.
type MetricsCache interface {
	SetLive(ctx context.Context, sessionID string, metrics *model.RealTimeMetrics) error
	GetLive(ctx context.Context, sessionID string) (*model.RealTimeMetrics, error)
	Delete(ctx context.Context, sessionID string) error
}

type metricsCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewMetricsCache creates a metrics cache with a short TTL; stale entries
// for ended sessions age out on their own.
func NewMetricsCache(client *redis.Client) MetricsCache {
	return &metricsCache{
		client: client,
		ttl:    5 * time.Minute,
	}
}

func (c *metricsCache) liveKey(sessionID string) string {
	return fmt.Sprintf("session:%s:live", sessionID)
}

func (c *metricsCache) SetLive(ctx context.Context, sessionID string, metrics *model.RealTimeMetrics) error {
	data, err := json.Marshal(metrics)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.liveKey(sessionID), data, c.ttl).Err()
}

func (c *metricsCache) GetLive(ctx context.Context, sessionID string) (*model.RealTimeMetrics, error) {
	data, err := c.client.Get(ctx, c.liveKey(sessionID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var metrics model.RealTimeMetrics
	if err := json.Unmarshal([]byte(data), &metrics); err != nil {
		return nil, err
	}
	return &metrics, nil
}

func (c *metricsCache) Delete(ctx context.Context, sessionID string) error {
	return c.client.Del(ctx, c.liveKey(sessionID)).Err()
}

package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"trellis-api/board"
	"trellis-api/domain"
)

// Cache wraps a gateway with Redis-backed caching of the task list. Any
// mutation for a project evicts that project's cached list.
type Cache struct {
	base  board.Gateway
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching gateway wrapper using the provided Redis client
// and TTL.
func NewCache(base board.Gateway, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base gateway is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{base: base, redis: client, ttl: ttl}
}

func (c *Cache) List(ctx context.Context, projectID string) ([]domain.Task, error) {
	if tasks, ok := c.loadFromCache(ctx, projectID); ok {
		return tasks, nil
	}

	tasks, err := c.base.List(ctx, projectID)
	if err != nil {
		return nil, err
	}

	c.store(ctx, projectID, tasks)
	return tasks, nil
}

func (c *Cache) Create(ctx context.Context, projectID string, fields domain.Fields) (domain.Task, error) {
	task, err := c.base.Create(ctx, projectID, fields)
	if err != nil {
		return domain.Task{}, err
	}
	c.evict(ctx, projectID)
	return task, nil
}

func (c *Cache) Patch(ctx context.Context, projectID, taskID string, fields domain.Fields) (domain.Task, error) {
	task, err := c.base.Patch(ctx, projectID, taskID, fields)
	if err != nil {
		return domain.Task{}, err
	}
	c.evict(ctx, projectID)
	return task, nil
}

func (c *Cache) Delete(ctx context.Context, projectID, taskID string) error {
	if err := c.base.Delete(ctx, projectID, taskID); err != nil {
		return err
	}
	c.evict(ctx, projectID)
	return nil
}

func (c *Cache) loadFromCache(ctx context.Context, projectID string) ([]domain.Task, bool) {
	if c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, tasksCacheKey(projectID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing gateway without failing.
			_ = c.redis.Del(ctx, tasksCacheKey(projectID)).Err()
		}
		return nil, false
	}
	var tasks []domain.Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		_ = c.redis.Del(ctx, tasksCacheKey(projectID)).Err()
		return nil, false
	}
	return tasks, true
}

func (c *Cache) store(ctx context.Context, projectID string, tasks []domain.Task) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := json.Marshal(tasks)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, tasksCacheKey(projectID), data, c.ttl).Err()
}

func (c *Cache) evict(ctx context.Context, projectID string) {
	if c.redis == nil {
		return
	}
	_, _ = c.redis.Del(ctx, tasksCacheKey(projectID)).Result()
}

func tasksCacheKey(projectID string) string {
	return "board:tasks:" + projectID
}

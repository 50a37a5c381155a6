package question

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultCacheTTL = 30 * time.Second

// Cache provides a Redis-backed candidate pool cache to offload the question store.
// Usage counts live in a separate hash that MarkUsed keeps current, so a cached
// pool never hides usage from balanced selection.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

var _ CandidateCache = (*Cache)(nil)

func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Cache{client: client, ttl: ttl, prefix: "questions:candidates"}
}

func (c *Cache) key(constraints Constraints) string {
	return c.prefix + ":" + constraints.Key()
}

func (c *Cache) usageKey() string {
	return c.prefix + ":usage"
}

func (c *Cache) Get(ctx context.Context, constraints Constraints) ([]Question, bool, error) {
	data, err := c.client.Get(ctx, c.key(constraints)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var pool []Question
	if err := json.Unmarshal(data, &pool); err != nil {
		return nil, false, err
	}
	if len(pool) == 0 {
		return pool, true, nil
	}

	fields := make([]string, len(pool))
	for i, q := range pool {
		fields[i] = strconv.FormatInt(q.ID, 10)
	}
	usage, err := c.client.HMGet(ctx, c.usageKey(), fields...).Result()
	if err != nil {
		return nil, false, err
	}
	for i, v := range usage {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			pool[i].UsageCount = n
		}
	}
	return pool, true, nil
}

func (c *Cache) Set(ctx context.Context, constraints Constraints, candidates []Question) error {
	data, err := json.Marshal(candidates)
	if err != nil {
		return err
	}

	pipe := c.client.TxPipeline()
	pipe.Set(ctx, c.key(constraints), data, c.ttl)
	if len(candidates) > 0 {
		usage := make(map[string]interface{}, len(candidates))
		for _, q := range candidates {
			usage[strconv.FormatInt(q.ID, 10)] = q.UsageCount
		}
		pipe.HSet(ctx, c.usageKey(), usage)
		pipe.Expire(ctx, c.usageKey(), c.ttl)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// IncrementUsage mirrors a usage bump into the cached counters.
func (c *Cache) IncrementUsage(ctx context.Context, id int64) error {
	pipe := c.client.TxPipeline()
	pipe.HIncrBy(ctx, c.usageKey(), strconv.FormatInt(id, 10), 1)
	pipe.Expire(ctx, c.usageKey(), c.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

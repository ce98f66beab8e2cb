// Package cache хранит сгенерированные слоты в Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Leganyst/clinic-scheduling/internal/calendar"
)

// NewRedisClient подключается к Redis и проверяет соединение.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis %s: %w", addr, err)
	}
	return client, nil
}

// Client: команды Redis, которые использует кэш слотов.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
}

// RedisSlotCache кэширует свободные слоты провайдера по дате и длительности.
//
// Ключи данных включают версию провайдера; Invalidate увеличивает версию,
// и все старые ключи перестают читаться, доживая до TTL.
type RedisSlotCache struct {
	client Client
	ttl    time.Duration
	prefix string
}

func NewRedisSlotCache(client Client, ttl time.Duration) *RedisSlotCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &RedisSlotCache{client: client, ttl: ttl, prefix: "clinic:slots"}
}

func (c *RedisSlotCache) versionKey(providerID uuid.UUID) string {
	return fmt.Sprintf("%s:%s:ver", c.prefix, providerID)
}

func (c *RedisSlotCache) dataKey(providerID uuid.UUID, version int64, date string, durationMinutes int) string {
	return fmt.Sprintf("%s:%s:v%d:%s:%d", c.prefix, providerID, version, date, durationMinutes)
}

func (c *RedisSlotCache) version(ctx context.Context, providerID uuid.UUID) (int64, error) {
	raw, err := c.client.Get(ctx, c.versionKey(providerID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get slot cache version: %w", err)
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse slot cache version %q: %w", raw, err)
	}
	return v, nil
}

func (c *RedisSlotCache) Get(ctx context.Context, providerID uuid.UUID, date string, durationMinutes int) ([]calendar.TimeRange, bool, error) {
	ver, err := c.version(ctx, providerID)
	if err != nil {
		return nil, false, err
	}
	raw, err := c.client.Get(ctx, c.dataKey(providerID, ver, date, durationMinutes)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get slots: %w", err)
	}

	var slots []calendar.TimeRange
	if err := json.Unmarshal(raw, &slots); err != nil {
		return nil, false, fmt.Errorf("decode cached slots: %w", err)
	}
	if slots == nil {
		slots = []calendar.TimeRange{}
	}
	return slots, true, nil
}

func (c *RedisSlotCache) Set(ctx context.Context, providerID uuid.UUID, date string, durationMinutes int, slots []calendar.TimeRange) error {
	ver, err := c.version(ctx, providerID)
	if err != nil {
		return err
	}
	data, err := json.Marshal(slots)
	if err != nil {
		return fmt.Errorf("encode slots: %w", err)
	}
	if err := c.client.Set(ctx, c.dataKey(providerID, ver, date, durationMinutes), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("set slots: %w", err)
	}
	return nil
}

func (c *RedisSlotCache) Invalidate(ctx context.Context, providerID uuid.UUID) error {
	if err := c.client.Incr(ctx, c.versionKey(providerID)).Err(); err != nil {
		return fmt.Errorf("bump slot cache version: %w", err)
	}
	return nil
}

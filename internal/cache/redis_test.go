package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Leganyst/clinic-scheduling/internal/calendar"
)

// memoryClient: минимальная замена Redis для Get/Set/Incr.
type memoryClient struct {
	data map[string]string
	ttls map[string]time.Duration
	err  error
}

func newMemoryClient() *memoryClient {
	return &memoryClient{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryClient) Get(_ context.Context, key string) *redis.StringCmd {
	if m.err != nil {
		return redis.NewStringResult("", m.err)
	}
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *memoryClient) Set(_ context.Context, key string, value interface{}, ttl time.Duration) *redis.StatusCmd {
	if m.err != nil {
		return redis.NewStatusResult("", m.err)
	}
	switch v := value.(type) {
	case []byte:
		m.data[key] = string(v)
	default:
		m.data[key] = fmt.Sprint(v)
	}
	m.ttls[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

func (m *memoryClient) Incr(_ context.Context, key string) *redis.IntCmd {
	if m.err != nil {
		return redis.NewIntResult(0, m.err)
	}
	n, _ := strconv.ParseInt(m.data[key], 10, 64)
	n++
	m.data[key] = strconv.FormatInt(n, 10)
	return redis.NewIntResult(n, nil)
}

func TestRedisSlotCache_RoundTripAndInvalidate(t *testing.T) {
	client := newMemoryClient()
	c := NewRedisSlotCache(client, 90*time.Second)
	ctx := context.Background()
	provider := uuid.New()

	_, ok, err := c.Get(ctx, provider, "2025-01-06", 30)
	require.NoError(t, err)
	assert.False(t, ok)

	start := time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)
	slots := []calendar.TimeRange{
		{Start: start, End: start.Add(30 * time.Minute)},
		{Start: start.Add(30 * time.Minute), End: start.Add(time.Hour)},
	}
	require.NoError(t, c.Set(ctx, provider, "2025-01-06", 30, slots))

	key := c.dataKey(provider, 0, "2025-01-06", 30)
	assert.Equal(t, 90*time.Second, client.ttls[key])

	got, ok, err := c.Get(ctx, provider, "2025-01-06", 30)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, got, 2)
	assert.True(t, got[1].End.Equal(slots[1].End))

	// другая длительность, другой ключ
	_, ok, err = c.Get(ctx, provider, "2025-01-06", 60)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Invalidate(ctx, provider))
	_, ok, err = c.Get(ctx, provider, "2025-01-06", 30)
	require.NoError(t, err)
	assert.False(t, ok)

	// другие провайдеры не задеваются
	other := uuid.New()
	require.NoError(t, c.Set(ctx, other, "2025-01-06", 30, slots))
	require.NoError(t, c.Invalidate(ctx, provider))
	_, ok, err = c.Get(ctx, other, "2025-01-06", 30)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisSlotCache_EmptyDayIsCached(t *testing.T) {
	c := NewRedisSlotCache(newMemoryClient(), 0)
	ctx := context.Background()
	provider := uuid.New()

	require.NoError(t, c.Set(ctx, provider, "2025-01-07", 30, []calendar.TimeRange{}))
	got, ok, err := c.Get(ctx, provider, "2025-01-07", 30)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestRedisSlotCache_Errors(t *testing.T) {
	client := newMemoryClient()
	client.err = errors.New("i/o timeout")
	c := NewRedisSlotCache(client, time.Minute)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, uuid.New(), "2025-01-06", 30)
	require.Error(t, err)
	assert.False(t, ok)
	assert.Error(t, c.Set(ctx, uuid.New(), "2025-01-06", 30, nil))
	assert.Error(t, c.Invalidate(ctx, uuid.New()))

	client.err = nil
	provider := uuid.New()
	client.data[c.versionKey(provider)] = "garbage"
	_, _, err = c.Get(ctx, provider, "2025-01-06", 30)
	assert.Error(t, err)
}

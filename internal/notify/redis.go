package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"

	"github.com/Leganyst/clinic-scheduling/internal/model"
	"github.com/Leganyst/clinic-scheduling/internal/observability"
)

// DefaultChannel: канал pub/sub, который слушают боты и почтовый сервис.
const DefaultChannel = "clinic:notifications"

// Publisher: часть redis.UniversalClient, нужная для публикации.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisNotifier публикует уведомления JSON-сообщениями в Redis pub/sub.
type RedisNotifier struct {
	client     Publisher
	channel    string
	builder    *Builder
	maxRetries uint64
}

func NewRedisNotifier(client Publisher, channel string, builder *Builder) *RedisNotifier {
	if channel == "" {
		channel = DefaultChannel
	}
	if builder == nil {
		builder = NewBuilder(nil)
	}
	return &RedisNotifier{client: client, channel: channel, builder: builder, maxRetries: 3}
}

func (n *RedisNotifier) SendConfirmation(ctx context.Context, a model.Appointment) error {
	return n.publish(ctx, n.builder.Confirmation(ctx, a))
}

func (n *RedisNotifier) SendCancellation(ctx context.Context, a model.Appointment, reason string) error {
	return n.publish(ctx, n.builder.Cancellation(ctx, a, reason))
}

func (n *RedisNotifier) SendRescheduled(ctx context.Context, a model.Appointment, oldStart time.Time) error {
	return n.publish(ctx, n.builder.Rescheduled(ctx, a, oldStart))
}

func (n *RedisNotifier) publish(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", ev.Type, err)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = time.Second
	policy := backoff.WithContext(backoff.WithMaxRetries(b, n.maxRetries), ctx)

	err = backoff.Retry(func() error {
		return n.client.Publish(ctx, n.channel, data).Err()
	}, policy)
	if err != nil {
		return fmt.Errorf("publish %s to %s: %w", ev.Type, n.channel, err)
	}

	observability.LoggerFromContext(ctx).Debug().
		Str("channel", n.channel).
		Str("type", ev.Type).
		Str("appointment_id", ev.AppointmentID.String()).
		Msg("notification published")
	return nil
}

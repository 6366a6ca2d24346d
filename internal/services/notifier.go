package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/models"
	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/observability"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const NotificationTypeSystem = "system"

// Notification is the message handed to the delivery transport.
type Notification struct {
	AppID      string            `json:"app_id"`
	UserID     uuid.UUID         `json:"user_id"`
	Type       string            `json:"type"`
	ObjectType models.TargetType `json:"object_type"`
	ObjectID   uuid.UUID         `json:"object_id"`
	Content    string            `json:"content"`
}

// Notifier delivers notifications. Failures never reach the moderation flow.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// RedisNotifier publishes notifications as JSON on a redis channel.
type RedisNotifier struct {
	client  *redis.Client
	channel string
}

func NewRedisNotifier(client *redis.Client, channel string) *RedisNotifier {
	return &RedisNotifier{client: client, channel: channel}
}

func (r *RedisNotifier) Notify(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return err
	}
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	return nil
}

// LogNotifier writes notifications to the log. Used when no redis is configured.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, n Notification) error {
	slog.Info("notification", "app_id", n.AppID, "user_id", n.UserID.String(),
		"object_type", string(n.ObjectType), "object_id", n.ObjectID.String(), "content", n.Content)
	return nil
}

// dispatcher hands notifications to the task queue.
type dispatcher struct {
	queue    *TaskQueue
	notifier Notifier
}

func (d dispatcher) send(n Notification) {
	if d.queue == nil || d.notifier == nil || n.UserID == uuid.Nil {
		return
	}
	n.Type = NotificationTypeSystem
	d.queue.Submit("notify", func(ctx context.Context) error {
		if err := d.notifier.Notify(ctx, n); err != nil {
			observability.NotificationErrors.Inc()
			return err
		}
		return nil
	})
}

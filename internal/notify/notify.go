// Package notify publishes membership and project lifecycle events.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Topics published by the API.
const (
	TopicMemberAdded    = "project.member.added"
	TopicMemberRemoved  = "project.member.removed"
	TopicProjectDeleted = "project.deleted"
)

// ChannelPrefix is prepended to a topic to form the Redis channel name.
const ChannelPrefix = "events:"

// ProjectEvent is the payload of every project topic.
type ProjectEvent struct {
	ProjectID  int64     `json:"projectId"`
	UserID     int64     `json:"userId,omitempty"`
	ActorID    int64     `json:"actorId"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Publisher delivers events. Publishing is best effort; callers log failures
// and carry on.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) error
}

// RedisPublisher publishes JSON payloads over Redis pub/sub.
type RedisPublisher struct {
	client redis.UniversalClient
}

// NewRedisPublisher creates a RedisPublisher.
func NewRedisPublisher(client redis.UniversalClient) *RedisPublisher {
	return &RedisPublisher{client: client}
}

// Publish implements Publisher.
func (p *RedisPublisher) Publish(ctx context.Context, topic string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", topic, err)
	}
	if err := p.client.Publish(ctx, ChannelPrefix+topic, body).Err(); err != nil {
		return fmt.Errorf("publishing %s: %w", topic, err)
	}
	return nil
}

// Nop discards every event.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, string, any) error { return nil }

// ProjectChanged publishes a project event stamped with the current time. A
// failure is logged and swallowed.
func ProjectChanged(ctx context.Context, p Publisher, topic string, e ProjectEvent) {
	if p == nil {
		return
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	if err := p.Publish(ctx, topic, e); err != nil {
		slog.Warn("failed to publish event", "topic", topic, "projectId", e.ProjectID, "error", err)
	}
}

package notify_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trackwise/trackwise/internal/notify"
)

type recordingPublisher struct {
	topics   []string
	payloads []any
	err      error
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, payload any) error {
	p.topics = append(p.topics, topic)
	p.payloads = append(p.payloads, payload)
	return p.err
}

func TestProjectChanged_StampsTime(t *testing.T) {
	pub := &recordingPublisher{}

	notify.ProjectChanged(context.Background(), pub, notify.TopicMemberAdded,
		notify.ProjectEvent{ProjectID: 7, UserID: 3, ActorID: 1})

	require.Len(t, pub.topics, 1)
	assert.Equal(t, notify.TopicMemberAdded, pub.topics[0])
	e := pub.payloads[0].(notify.ProjectEvent)
	assert.Equal(t, int64(7), e.ProjectID)
	assert.False(t, e.OccurredAt.IsZero())
}

func TestProjectChanged_SwallowsErrors(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}

	assert.NotPanics(t, func() {
		notify.ProjectChanged(context.Background(), pub, notify.TopicProjectDeleted, notify.ProjectEvent{ProjectID: 1})
	})
	notify.ProjectChanged(context.Background(), nil, notify.TopicProjectDeleted, notify.ProjectEvent{ProjectID: 1})
}

func TestNop(t *testing.T) {
	assert.NoError(t, notify.Nop{}.Publish(context.Background(), "anything", struct{}{}))
}

func TestRedisPublisher_Publish(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		addr = "127.0.0.1:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("skipping: redis not reachable at %s: %v", addr, err)
	}

	sub := client.Subscribe(ctx, notify.ChannelPrefix+notify.TopicMemberRemoved)
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	pub := notify.NewRedisPublisher(client)
	err = pub.Publish(ctx, notify.TopicMemberRemoved, notify.ProjectEvent{ProjectID: 9, UserID: 4, ActorID: 2})
	require.NoError(t, err)

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)

	var got notify.ProjectEvent
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
	assert.Equal(t, int64(9), got.ProjectID)
	assert.Equal(t, int64(4), got.UserID)
}

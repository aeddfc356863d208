package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collabdocs/internal/models"
	"collabdocs/internal/utils"
)

// setupTestRedis creates a miniredis instance and a redis client for testing
func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { client.Close() })

	return mr, client
}

func TestRedisPublisherDeliversEvents(t *testing.T) {
	mr, rdb := setupTestRedis(t)
	pub := NewRedisPublisher(rdb, "collab:documents", utils.NopLogger(), 8)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, pub.Ping(ctx))

	sub := redis.NewClient(&redis.Options{Addr: mr.Addr()}).Subscribe(ctx, "collab:documents")
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	go pub.Run(ctx)
	pub.Publish(models.DocumentEvent{Type: "document-edited", DocumentID: "welcome", UserID: "c1", Version: 4})

	select {
	case msg := <-sub.Channel():
		var got models.DocumentEvent
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		assert.Equal(t, "document-edited", got.Type)
		assert.Equal(t, "welcome", got.DocumentID)
		assert.Equal(t, "c1", got.UserID)
		assert.Equal(t, int64(4), got.Version)
		assert.False(t, got.At.IsZero())
	case <-time.After(2 * time.Second):
		t.Fatal("expected event on redis channel")
	}

	cancel()
	select {
	case <-pub.Done():
	case <-time.After(time.Second):
		t.Fatal("expected Run to stop after cancel")
	}
}

func TestRedisPublisherDropsWhenQueueFull(t *testing.T) {
	_, rdb := setupTestRedis(t)
	pub := NewRedisPublisher(rdb, "c", utils.NopLogger(), 1)

	pub.Publish(models.DocumentEvent{Type: "a"})
	pub.Publish(models.DocumentEvent{Type: "b"})

	assert.Len(t, pub.queue, 1)
}

func TestRedisPublisherPingFailure(t *testing.T) {
	mr, rdb := setupTestRedis(t)
	pub := NewRedisPublisher(rdb, "c", utils.NopLogger(), 1)
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.Error(t, pub.Ping(ctx))
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = Nop{}
	p.Publish(models.DocumentEvent{Type: "x"})
}

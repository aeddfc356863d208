package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"collabdocs/internal/models"
	"collabdocs/internal/utils"
)

// Publisher announces document lifecycle events to outside consumers.
type Publisher interface {
	Publish(event models.DocumentEvent)
}

// Nop drops every event. Used when no Redis address is configured.
type Nop struct{}

func (Nop) Publish(models.DocumentEvent) {}

// RedisPublisher queues events and pushes them to a Redis pub/sub channel from its own
// goroutine, so callers never wait on the network. A full queue drops the event.
type RedisPublisher struct {
	rdb     *redis.Client
	channel string
	log     *utils.Logger
	queue   chan models.DocumentEvent
	now     func() time.Time

	stopOnce sync.Once
	done     chan struct{}
}

func NewRedisPublisher(rdb *redis.Client, channel string, log *utils.Logger, queueSize int) *RedisPublisher {
	if queueSize < 1 {
		queueSize = 1024
	}
	return &RedisPublisher{
		rdb:     rdb,
		channel: channel,
		log:     log,
		queue:   make(chan models.DocumentEvent, queueSize),
		now:     time.Now,
		done:    make(chan struct{}),
	}
}

// Ping checks that Redis is reachable.
func (p *RedisPublisher) Ping(ctx context.Context) error {
	if err := p.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func (p *RedisPublisher) Publish(event models.DocumentEvent) {
	if event.At.IsZero() {
		event.At = p.now().UTC()
	}
	select {
	case p.queue <- event:
	default:
		p.log.Warn("event feed queue full, dropping event", "type", event.Type, "documentId", event.DocumentID)
	}
}

// Run drains the queue until ctx is cancelled.
func (p *RedisPublisher) Run(ctx context.Context) {
	defer p.stopOnce.Do(func() { close(p.done) })
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-p.queue:
			if err := p.send(ctx, event); err != nil {
				p.log.Error("failed to publish document event", "type", event.Type, "error", err)
			}
		}
	}
}

// Done is closed once Run has returned.
func (p *RedisPublisher) Done() <-chan struct{} { return p.done }

func (p *RedisPublisher) send(ctx context.Context, event models.DocumentEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal document event: %w", err)
	}
	return p.rdb.Publish(ctx, p.channel, data).Err()
}

func (p *RedisPublisher) Close() error { return p.rdb.Close() }

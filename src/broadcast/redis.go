package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"trading-simulator/src/helpers"
	"trading-simulator/src/logger"
	"trading-simulator/src/models"

	"github.com/redis/go-redis/v9"
)

const publishTimeout = 2 * time.Second

// publisher is the subset of redis.Cmdable used here.
type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// -----------------------------------------------------------------------------
// RedisPublisher mirrors every emitted event on a redis pub/sub channel named
// "<prefix>:<event>" so other instances and services can follow the market.
// -----------------------------------------------------------------------------

type RedisPublisher struct {
	Logger *logger.Logger
	prefix string
	client publisher
	queue  chan *models.MEvent
}

// -----------------------------------------------------------------------------

// NewRedisClient connects to the configured redis and checks it with PING.
func NewRedisClient(ctx context.Context, cfg models.MRedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, helpers.NewNetworkError(fmt.Sprintf("redis ping %s", cfg.Address), err)
	}
	return client, nil
}

// -----------------------------------------------------------------------------

func NewRedisPublisher(client publisher, prefix string, log *logger.Logger) *RedisPublisher {
	return &RedisPublisher{
		Logger: log.Named("RedisPublisher"),
		prefix: prefix,
		client: client,
		queue:  make(chan *models.MEvent, 256),
	}
}

// -----------------------------------------------------------------------------

// Channel returns the pub/sub channel of an event.
func (p *RedisPublisher) Channel(event string) string {
	return p.prefix + ":" + event
}

// -----------------------------------------------------------------------------

// Emit queues the event for publishing. It never blocks.
func (p *RedisPublisher) Emit(event string, payload interface{}) {
	select {
	case p.queue <- &models.MEvent{Event: event, Data: payload}:
	default:
		p.Logger.Warning("Publish queue full, dropping %s", event)
	}
}

// -----------------------------------------------------------------------------

// Run publishes queued events until ctx is done.
func (p *RedisPublisher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-p.queue:
			if err := p.publish(ctx, msg); err != nil {
				p.Logger.Error("Publish %s failed: %v", msg.Event, err)
			}
		}
	}
}

func (p *RedisPublisher) publish(ctx context.Context, msg *models.MEvent) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	return p.client.Publish(ctx, p.Channel(msg.Event), body).Err()
}

package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/zsiec/screenwatch/internal/config"
	"github.com/zsiec/screenwatch/internal/gamestate"
	"github.com/zsiec/screenwatch/internal/logger"
	"github.com/zsiec/screenwatch/internal/metrics"
)

// EventsChannel is the pub/sub channel, under the key prefix, that carries
// every record.
const EventsChannel = "events"

// NewRedisClient builds a client from the redis configuration section.
func NewRedisClient(cfg *config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Addresses[0],
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})
}

// RedisPublisher stores the latest record of each kind under
// <prefix><kind> and publishes every record on <prefix>events.
type RedisPublisher struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger logger.Logger
}

// NewRedisPublisher returns a publisher using client. A zero ttl keeps the
// latest record until it is replaced.
func NewRedisPublisher(client *redis.Client, prefix string, ttl time.Duration, log logger.Logger) *RedisPublisher {
	return &RedisPublisher{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		logger: logger.WithComponent(logger.OrNull(log), "sink"),
	}
}

func (p *RedisPublisher) Name() string { return "redis" }

// Key returns the key holding the latest record of kind.
func (p *RedisPublisher) Key(kind string) string { return p.prefix + kind }

// Channel returns the events channel.
func (p *RedisPublisher) Channel() string { return p.prefix + EventsChannel }

// Publish writes the record and announces it in one transaction.
func (p *RedisPublisher) Publish(ctx context.Context, rec gamestate.StateRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		metrics.RecordSinkPublish(p.Name(), err)
		return fmt.Errorf("failed to marshal %s record: %w", rec.Kind(), err)
	}

	pipe := p.client.TxPipeline()
	pipe.Set(ctx, p.Key(rec.Kind()), data, p.ttl)
	pipe.Publish(ctx, p.Channel(), data)
	_, err = pipe.Exec(ctx)
	metrics.RecordSinkPublish(p.Name(), err)
	if err != nil {
		return fmt.Errorf("failed to publish %s record: %w", rec.Kind(), err)
	}

	p.logger.WithField("kind", rec.Kind()).Debug("State published")
	return nil
}

// Latest returns the stored JSON of the latest record of kind, or nil if
// there is none.
func (p *RedisPublisher) Latest(ctx context.Context, kind string) ([]byte, error) {
	data, err := p.client.Get(ctx, p.Key(kind)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s record: %w", kind, err)
	}
	return data, nil
}

// Close does not close the shared client.
func (p *RedisPublisher) Close() error { return nil }

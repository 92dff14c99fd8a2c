package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"alertrelay/internal/logger"
)

// Config configures the Redis replay consumer.
type Config struct {
	Addr         string
	Password     string
	DB           int
	Key          string
	BlockTimeout time.Duration
	// RetryDelay is the pause after a Redis error.
	RetryDelay time.Duration
}

// Consumer feeds alert payloads pushed onto a Redis list into the relay,
// for replays and for fan-in from another relay instance.
type Consumer struct {
	client       *redis.Client
	key          string
	blockTimeout time.Duration
	retryDelay   time.Duration
}

// NewConsumer creates a Redis consumer for list-based queues.
func NewConsumer(cfg Config) (*Consumer, error) {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:6379"
	}
	if cfg.Key == "" {
		return nil, fmt.Errorf("redis key is required")
	}
	if cfg.BlockTimeout == 0 {
		cfg.BlockTimeout = 5 * time.Second
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &Consumer{
		client:       client,
		key:          cfg.Key,
		blockTimeout: cfg.BlockTimeout,
		retryDelay:   cfg.RetryDelay,
	}, nil
}

// Pop pops one message from the list. It returns nil, nil when the block
// timeout elapses without data.
func (c *Consumer) Pop(ctx context.Context) ([]byte, error) {
	res, err := c.client.BLPop(ctx, c.blockTimeout, c.key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(res) < 2 {
		return nil, nil
	}
	return []byte(res[1]), nil
}

// Run pops payloads and hands them to handle until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context, handle func(payload []byte)) error {
	logger.Infof("Consuming alert payloads from redis list %s", c.key)
	for {
		if ctx.Err() != nil {
			return nil
		}
		payload, err := c.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Warnf("Redis pop failed: %v", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.retryDelay):
			}
			continue
		}
		if payload != nil {
			handle(payload)
		}
	}
}

// Close closes the consumer.
func (c *Consumer) Close() error {
	return c.client.Close()
}

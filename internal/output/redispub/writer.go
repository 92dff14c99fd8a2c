package redispub

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"

	"alertrelay/internal/logger"
	"alertrelay/pkg/models"
)

// Config configures the Redis snapshot sink.
type Config struct {
	Addr     string
	Password string
	DB       int
	// Key holds the latest snapshot. Empty disables the SET.
	Key string
	// Channel receives every snapshot. Empty disables the PUBLISH.
	Channel string
}

// Writer stores the latest snapshot and publishes each one on a channel.
type Writer struct {
	client  *redis.Client
	key     string
	channel string
}

// NewWriter connects to Redis and verifies connectivity.
func NewWriter(cfg Config) (*Writer, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		cfg.Addr = "127.0.0.1:6379"
	}
	if cfg.Key == "" && cfg.Channel == "" {
		cfg.Key = "alertrelay:snapshot"
		cfg.Channel = "alertrelay:snapshots"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis snapshot sink: %w", err)
	}

	logger.Infof("Redis snapshot writer initialized: %s key=%q channel=%q", cfg.Addr, cfg.Key, cfg.Channel)
	return &Writer{client: client, key: cfg.Key, channel: cfg.Channel}, nil
}

// WriteSnapshot stores and publishes one snapshot in a single round trip.
func (w *Writer) WriteSnapshot(ctx context.Context, snap models.Snapshot) error {
	body, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	pipe := w.client.TxPipeline()
	if w.key != "" {
		pipe.Set(ctx, w.key, body, 0)
	}
	if w.channel != "" {
		pipe.Publish(ctx, w.channel, body)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis snapshot write: %w", err)
	}
	return nil
}

// Close closes the Redis client.
func (w *Writer) Close() error {
	return w.client.Close()
}

package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/NordCoder/Farewatch/internal/domain/monitor"
)

type Config struct {
	Addr     string
	Password string
	DB       int
	Timeout  time.Duration
}

func NewClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

var _ monitor.SnapshotSlot = (*SnapshotSlot)(nil)

// SnapshotSlot stores the whole monitor list under a single key with no expiry.
type SnapshotSlot struct {
	client redis.Cmdable
	key    string
}

func NewSnapshotSlot(client redis.Cmdable, key string) *SnapshotSlot {
	return &SnapshotSlot{client: client, key: key}
}

func (s *SnapshotSlot) Load(ctx context.Context) ([]byte, error) {
	body, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %q: %w", s.key, err)
	}
	return body, nil
}

func (s *SnapshotSlot) Save(ctx context.Context, body []byte) error {
	if err := s.client.Set(ctx, s.key, body, 0).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", s.key, err)
	}
	return nil
}

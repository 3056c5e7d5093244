// Package redis persists replay markers in Redis, one JSON value per
// subscription.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	goredis "github.com/redis/go-redis/v9"

	"github.com/goliatone/go-sfstream/core"
	"github.com/goliatone/go-sfstream/replay"
)

const defaultKeyPrefix = "sfstream:replay:"

// Config can be populated from the environment with NewFromEnv.
type Config struct {
	Addr      string        `env:"SFSTREAM_REDIS_ADDR,default=localhost:6379"`
	Password  string        `env:"SFSTREAM_REDIS_PASSWORD"`
	DB        int           `env:"SFSTREAM_REDIS_DB,default=0"`
	KeyPrefix string        `env:"SFSTREAM_REDIS_KEY_PREFIX,default=sfstream:replay:"`
	TTL       time.Duration `env:"SFSTREAM_REDIS_TTL,default=0s"`
}

type Storage struct {
	client    goredis.UniversalClient
	keyPrefix string
	ttl       time.Duration
	owned     bool
}

// NewStorage uses an existing client. A zero ttl keeps markers forever.
func NewStorage(client goredis.UniversalClient, keyPrefix string, ttl time.Duration) (*Storage, error) {
	if client == nil {
		return nil, fmt.Errorf("redis: client is required")
	}
	keyPrefix = strings.TrimSpace(keyPrefix)
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Storage{client: client, keyPrefix: keyPrefix, ttl: ttl}, nil
}

// New dials Redis and verifies the connection.
func New(ctx context.Context, cfg Config) (*Storage, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		addr = "localhost:6379"
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	storage, err := NewStorage(client, cfg.KeyPrefix, cfg.TTL)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	storage.owned = true
	return storage, nil
}

func NewFromEnv(ctx context.Context) (*Storage, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("redis: decode env: %w", err)
	}
	return New(ctx, cfg)
}

// Close closes the client when it was dialed by New.
func (s *Storage) Close() error {
	if s == nil || !s.owned {
		return nil
	}
	return s.client.Close()
}

func (s *Storage) key(subscription string) string {
	return s.keyPrefix + subscription
}

func (s *Storage) GetReplayMarker(ctx context.Context, subscription string) (core.ReplayMarker, bool, error) {
	raw, err := s.client.Get(ctx, s.key(subscription)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return core.ReplayMarker{}, false, nil
	}
	if err != nil {
		return core.ReplayMarker{}, false, fmt.Errorf("redis: get marker %q: %w", subscription, err)
	}
	var marker core.ReplayMarker
	if err := json.Unmarshal(raw, &marker); err != nil {
		return core.ReplayMarker{}, false, fmt.Errorf("redis: decode marker %q: %w", subscription, err)
	}
	return marker, true, nil
}

func (s *Storage) SetReplayMarker(ctx context.Context, subscription string, marker core.ReplayMarker) error {
	raw, err := json.Marshal(marker)
	if err != nil {
		return fmt.Errorf("redis: encode marker %q: %w", subscription, err)
	}
	if err := s.client.Set(ctx, s.key(subscription), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set marker %q: %w", subscription, err)
	}
	return nil
}

var _ replay.Storage = (*Storage)(nil)

package artifactstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"

	simerrors "github.com/o2csim/o2csim/pkg/errors"
)

// RedisConfig configures the Redis artifact store.
type RedisConfig struct {
	// Address and Key locate the artifact. Open fills them from the URI.
	Address string `yaml:"-"`
	Key     string `yaml:"-"`

	// Password for Redis authentication (optional)
	Password string `yaml:"password"`

	// Database number to use (default: 0)
	Database int `yaml:"database"`

	// Timeout for Redis operations
	Timeout time.Duration `yaml:"timeout"`
}

// RedisStore keeps an artifact as a single string value.
type RedisStore struct {
	cfg    RedisConfig
	client *redis.Client
}

// NewRedisStore connects and pings the server.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.Database,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, simerrors.Wrap(err, simerrors.CodeSourceUnavailable, "failed to connect to Redis").
			WithContext("address", cfg.Address)
	}

	return &RedisStore{cfg: cfg, client: client}, nil
}

// Open reads the artifact value.
func (s *RedisStore) Open(ctx context.Context) (io.ReadCloser, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	data, err := s.client.Get(ctx, s.cfg.Key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, simerrors.New(simerrors.CodeSourceUnavailable, "artifact key not found").
			WithContext("uri", s.Name())
	}
	if err != nil {
		return nil, simerrors.Wrap(err, simerrors.CodeSourceUnavailable, "failed to get artifact").
			WithContext("uri", s.Name())
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Put stores data without expiry.
func (s *RedisStore) Put(ctx context.Context, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	if err := s.client.Set(ctx, s.cfg.Key, data, 0).Err(); err != nil {
		return simerrors.Wrap(err, simerrors.CodeSourceUnavailable, "failed to store artifact").
			WithContext("uri", s.Name())
	}
	return nil
}

// Name returns the redis URI.
func (s *RedisStore) Name() string {
	return fmt.Sprintf("redis://%s/%s", s.cfg.Address, s.cfg.Key)
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

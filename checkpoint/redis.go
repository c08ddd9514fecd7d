package checkpoint

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOptions configures the Redis connection.
type RedisOptions struct {
	// URL is the Redis connection string (e.g., "redis://localhost:6379")
	URL string

	// KeyPrefix namespaces every key. Defaults to "bulkload".
	KeyPrefix string

	// TTL, when positive, expires a batch's keys after its last write.
	TTL time.Duration

	// TLS configuration for secure connections
	TLS *tls.Config

	// ConnectTimeout is the maximum time to wait for connection establishment
	ConnectTimeout time.Duration

	// ReadTimeout is the maximum time to wait for read operations
	ReadTimeout time.Duration

	// WriteTimeout is the maximum time to wait for write operations
	WriteTimeout time.Duration
}

// RedisStore implements Store on Redis. The identifier map of a batch is a
// hash at <prefix>:<batch>:ids and the reinserted stash keys a set at
// <prefix>:<batch>:reinserted.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(opts RedisOptions) (*RedisStore, error) {
	if opts.URL == "" {
		opts.URL = "redis://localhost:6379"
	}
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = "bulkload"
	}
	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = 5 * time.Second
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 30 * time.Second
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = 5 * time.Second
	}

	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	redisOpts.TLSConfig = opts.TLS
	redisOpts.DialTimeout = opts.ConnectTimeout
	redisOpts.ReadTimeout = opts.ReadTimeout
	redisOpts.WriteTimeout = opts.WriteTimeout

	client := redis.NewClient(redisOpts)

	ctx, cancel := context.WithTimeout(context.Background(), opts.ConnectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{client: client, prefix: opts.KeyPrefix, ttl: opts.TTL}, nil
}

func (s *RedisStore) idsKey(batch string) string {
	return fmt.Sprintf("%s:%s:ids", s.prefix, batch)
}

func (s *RedisStore) reinsertedKey(batch string) string {
	return fmt.Sprintf("%s:%s:reinserted", s.prefix, batch)
}

func (s *RedisStore) touch(ctx context.Context, key string) error {
	if s.ttl <= 0 {
		return nil
	}
	return s.client.Expire(ctx, key, s.ttl).Err()
}

// Load implements Store.
func (s *RedisStore) Load(ctx context.Context, batch string) (*State, error) {
	ids, err := s.client.HGetAll(ctx, s.idsKey(batch)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load ids of batch %s: %w", batch, err)
	}
	members, err := s.client.SMembers(ctx, s.reinsertedKey(batch)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load reinserted stashes of batch %s: %w", batch, err)
	}

	state := NewState()
	for local, global := range ids {
		state.IDs[local] = global
	}
	for _, m := range members {
		state.Reinserted[m] = struct{}{}
	}
	return state, nil
}

// SaveID implements Store with HSETNX, so a local id is written at most once.
func (s *RedisStore) SaveID(ctx context.Context, batch, localID, globalID string) error {
	key := s.idsKey(batch)
	set, err := s.client.HSetNX(ctx, key, localID, globalID).Result()
	if err != nil {
		return fmt.Errorf("failed to save id of %s: %w", localID, err)
	}
	if !set {
		existing, err := s.client.HGet(ctx, key, localID).Result()
		if err != nil {
			return fmt.Errorf("failed to read id of %s: %w", localID, err)
		}
		if existing != globalID {
			return fmt.Errorf("%w: %s is %s, not %s", ErrConflict, localID, existing, globalID)
		}
	}
	return s.touch(ctx, key)
}

// MarkReinserted implements Store.
func (s *RedisStore) MarkReinserted(ctx context.Context, batch, stashKey string) error {
	key := s.reinsertedKey(batch)
	if err := s.client.SAdd(ctx, key, stashKey).Err(); err != nil {
		return fmt.Errorf("failed to mark %s reinserted: %w", stashKey, err)
	}
	return s.touch(ctx, key)
}

// Clear implements Store.
func (s *RedisStore) Clear(ctx context.Context, batch string) error {
	if err := s.client.Del(ctx, s.idsKey(batch), s.reinsertedKey(batch)).Err(); err != nil {
		return fmt.Errorf("failed to clear batch %s: %w", batch, err)
	}
	return nil
}

// Ping implements Store.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

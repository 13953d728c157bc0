package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mrz1836/depositor/internal/deposit"
	"github.com/mrz1836/depositor/internal/gateway"
)

const (
	// DefaultRedisPrefix namespaces depositor keys in a shared Redis.
	DefaultRedisPrefix = "depositor:address:"

	// defaultRedisTimeout bounds each Redis round trip.
	defaultRedisTimeout = 2 * time.Second

	scanBatch = 100
)

// Compile-time interface check
var _ Store = (*RedisStore)(nil)

// RedisOptions configures a RedisStore.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	Timeout  time.Duration
	OnError  func(error)
}

// RedisStore keeps entries in Redis as JSON strings without a TTL.
// Backend failures are reported through OnError and read as misses.
type RedisStore struct {
	client  *redis.Client
	prefix  string
	timeout time.Duration
	onError func(error)
}

// ConnectRedis opens a RedisStore and checks the connection.
func ConnectRedis(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	s := NewRedisStore(client, opts)
	pingCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", opts.Addr, err)
	}
	return s, nil
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client, opts RedisOptions) *RedisStore {
	s := &RedisStore{
		client:  client,
		prefix:  opts.Prefix,
		timeout: opts.Timeout,
		onError: opts.OnError,
	}
	if s.prefix == "" {
		s.prefix = DefaultRedisPrefix
	}
	if s.timeout <= 0 {
		s.timeout = defaultRedisTimeout
	}
	if s.onError == nil {
		s.onError = func(error) {}
	}
	return s
}

// Close closes the Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) key(gatewayID gateway.ID, account, asset string) string {
	return s.prefix + Key(gatewayID, account, asset)
}

func (s *RedisStore) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}

// Get retrieves a cached target.
func (s *RedisStore) Get(gatewayID gateway.ID, account, asset string) (deposit.Target, bool) {
	ctx, cancel := s.ctx()
	defer cancel()

	val, err := s.client.Get(ctx, s.key(gatewayID, account, asset)).Bytes()
	if errors.Is(err, redis.Nil) {
		return deposit.Target{}, false
	}
	if err != nil {
		s.onError(fmt.Errorf("redis get: %w", err))
		return deposit.Target{}, false
	}

	var e Entry
	if err := json.Unmarshal(val, &e); err != nil {
		s.onError(fmt.Errorf("decoding cached entry: %w", err))
		return deposit.Target{}, false
	}
	return e.Target(), true
}

// Put stores a target. Error targets are ignored.
func (s *RedisStore) Put(gatewayID gateway.ID, account, asset string, target deposit.Target) {
	if !target.Valid() {
		return
	}
	val, err := json.Marshal(NewEntry(gatewayID, account, asset, target))
	if err != nil {
		s.onError(fmt.Errorf("encoding cache entry: %w", err))
		return
	}

	ctx, cancel := s.ctx()
	defer cancel()
	if err := s.client.Set(ctx, s.key(gatewayID, account, asset), val, 0).Err(); err != nil {
		s.onError(fmt.Errorf("redis set: %w", err))
	}
}

// Delete removes a cached target.
func (s *RedisStore) Delete(gatewayID gateway.ID, account, asset string) {
	ctx, cancel := s.ctx()
	defer cancel()
	if err := s.client.Del(ctx, s.key(gatewayID, account, asset)).Err(); err != nil {
		s.onError(fmt.Errorf("redis del: %w", err))
	}
}

// Clear removes every key under the store prefix.
func (s *RedisStore) Clear() {
	keys := s.keys()
	if len(keys) == 0 {
		return
	}
	ctx, cancel := s.ctx()
	defer cancel()
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		s.onError(fmt.Errorf("redis clear: %w", err))
	}
}

// Size returns the number of keys under the store prefix.
func (s *RedisStore) Size() int {
	return len(s.keys())
}

// All returns every entry sorted by key.
func (s *RedisStore) All() []Entry {
	keys := s.keys()
	if len(keys) == 0 {
		return nil
	}
	sort.Strings(keys)

	ctx, cancel := s.ctx()
	defer cancel()
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		s.onError(fmt.Errorf("redis mget: %w", err))
		return nil
	}

	out := make([]Entry, 0, len(vals))
	for _, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var e Entry
		if err := json.Unmarshal([]byte(str), &e); err != nil {
			s.onError(fmt.Errorf("decoding cached entry: %w", err))
			continue
		}
		out = append(out, e)
	}
	return out
}

func (s *RedisStore) keys() []string {
	ctx, cancel := s.ctx()
	defer cancel()

	var keys []string
	iter := s.client.Scan(ctx, 0, s.prefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		s.onError(fmt.Errorf("redis scan: %w", err))
	}
	return keys
}

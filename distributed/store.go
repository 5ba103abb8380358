// Package distributed implements the L3 adapter (spec.md §4.5): circuit
// breaker isolation, replica-failure self-heal, key-change subscription,
// and distributed locking around an external Store collaborator.
//
// Store itself is the external, non-goal collaborator per spec.md §1
// ("the concrete distributed-store client is treated as an external
// Store collaborator"); Redis is shipped here as the one concrete,
// ready-to-use implementation, grounded on the teacher's
// provider/redis.go client-ownership pattern (Config{Client,
// CloseClient}).
package distributed

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Notification is a single key-change event recovered from the store's
// notification channel, already stripped of any store-specific envelope.
type Notification struct {
	Key string
}

// Subscription is a live handle on a store's key-change stream.
type Subscription interface {
	Notifications() <-chan Notification
	Close() error
}

// Store is the minimal distributed-store contract the adapter wraps:
// GET/SET/DELETE/TRY-LOCK plus a key-change notification stream.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error

	// TryLock attempts an atomic take of key with token, expiring after
	// hold. Returns true on success.
	TryLock(ctx context.Context, key, token string, hold time.Duration) (bool, error)
	// Unlock releases key only if it is currently held by token
	// (idempotent: unlocking an already-released or foreign-held lock is
	// not an error).
	Unlock(ctx context.Context, key, token string) error

	// Subscribe opens a notification stream for the given keyspace
	// patterns.
	Subscribe(ctx context.Context, patterns ...string) (Subscription, error)

	// Reconnect tears down and re-establishes the underlying connection,
	// used by the adapter's replica-failure self-heal.
	Reconnect(ctx context.Context) error

	Close() error
}

// ErrNilClient is returned by NewRedisStore when given a nil client.
var ErrNilClient = errors.New("distributed: nil redis client")

const unlockScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`

// RedisStore is the reference Store implementation, backed by go-redis.
type RedisStore struct {
	newClient   func() goredis.UniversalClient
	closeClient bool
	db          int

	mu  sync.RWMutex
	rdb goredis.UniversalClient
}

// RedisConfig configures a RedisStore. NewClient is called on
// construction and again on every Reconnect; it must return a fresh,
// independently-closable client each time.
type RedisConfig struct {
	NewClient   func() goredis.UniversalClient
	CloseClient bool
	DB          int
}

func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	if cfg.NewClient == nil {
		return nil, ErrNilClient
	}
	client := cfg.NewClient()
	if client == nil {
		return nil, ErrNilClient
	}
	return &RedisStore{newClient: cfg.NewClient, rdb: client, closeClient: cfg.CloseClient, db: cfg.DB}, nil
}

func (s *RedisStore) client() goredis.UniversalClient {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rdb
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := s.client().Get(ctx, key).Bytes()
	if err == goredis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return s.client().Set(ctx, key, value, ttl).Err()
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.client().Del(ctx, key).Err()
}

func (s *RedisStore) TryLock(ctx context.Context, key, token string, hold time.Duration) (bool, error) {
	ok, err := s.client().SetNX(ctx, key, token, hold).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}

func (s *RedisStore) Unlock(ctx context.Context, key, token string) error {
	return s.client().Eval(ctx, unlockScript, []string{key}, token).Err()
}

// Subscribe listens on the "__keyspace@<db>__:<pattern>" notification
// channel of each key pattern in this store's DB.
func (s *RedisStore) Subscribe(ctx context.Context, patterns ...string) (Subscription, error) {
	channels := make([]string, len(patterns))
	for i, p := range patterns {
		channels[i] = "__keyspace@" + strconv.Itoa(s.db) + "__:" + p
	}
	ps := s.client().PSubscribe(ctx, channels...)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}
	sub := &redisSubscription{ps: ps, out: make(chan Notification, 256), db: s.db}
	go sub.pump()
	return sub, nil
}

// Reconnect closes the current client (if owned) and builds a fresh one
// via NewClient, used by the adapter's replica-failure self-heal path.
// Callers (the adapter's reconnectMu) are responsible for serializing
// concurrent Reconnect calls; this only protects client() readers from a
// torn swap.
func (s *RedisStore) Reconnect(ctx context.Context) error {
	next := s.newClient()

	s.mu.Lock()
	old := s.rdb
	s.rdb = next
	s.mu.Unlock()

	if s.closeClient && old != nil {
		_ = old.Close()
	}
	return nil
}

func (s *RedisStore) Close() error {
	if s.closeClient {
		return s.client().Close()
	}
	return nil
}

type redisSubscription struct {
	ps  *goredis.PubSub
	out chan Notification
	db  int
}

func (s *redisSubscription) pump() {
	defer close(s.out)
	ch := s.ps.Channel()
	for msg := range ch {
		key := stripKeyspaceEnvelope(msg.Channel)
		s.out <- Notification{Key: key}
	}
}

func (s *redisSubscription) Notifications() <-chan Notification { return s.out }
func (s *redisSubscription) Close() error                       { return s.ps.Close() }

// stripKeyspaceEnvelope recovers the key from a
// "__keyspace@<db>__:<key>" channel name, per spec.md §6. If the channel
// doesn't carry the envelope, it is returned unchanged.
func stripKeyspaceEnvelope(channel string) string {
	if i := indexAfterKeyspacePrefix(channel); i >= 0 {
		return channel[i:]
	}
	return channel
}

func indexAfterKeyspacePrefix(channel string) int {
	const prefix = "__keyspace@"
	if len(channel) < len(prefix) || channel[:len(prefix)] != prefix {
		return -1
	}
	for i := len(prefix); i < len(channel)-2; i++ {
		if channel[i] == '_' && channel[i+1] == '_' && channel[i+2] == ':' {
			return i + 3
		}
	}
	return -1
}

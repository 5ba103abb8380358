package cascache

import (
	"context"
	"time"

	"github.com/layerfault/cascache/distributed"
	"github.com/layerfault/cascache/filecache"
	"github.com/layerfault/cascache/memory"
	"github.com/layerfault/cascache/serializer"
)

// Factory is the caller-supplied loader passed to GetOrCreate. Returning
// found=false means "no value" (null): nothing is written to any tier,
// and the next GetOrCreate invokes the factory again (spec.md §3,
// "a factory returning null writes no tier"). A returned error is never
// cached either; every tier is purged of the key before the error is
// rethrown to all waiters.
type Factory[T any] func(ctx *GetOrCreateContext) (value T, found bool, err error)

// Cache is the public, language-neutral API from spec.md §6.
type Cache[T any] interface {
	// Get checks L1, then L2, then L3 in order; it does not populate
	// upper tiers on a lower-tier hit (Set/GetOrCreate are the
	// promoters).
	Get(ctx context.Context, key string) (value T, found bool, err error)

	// Set serializes once and writes through L1, L2, and L3 (L3 errors
	// are logged and swallowed).
	Set(ctx context.Context, key string, value T, params CacheParameters) error

	// Delete removes key from every tier. L3 deletion errors propagate.
	Delete(ctx context.Context, key string) error

	// GetOrCreate collapses concurrent loads for the same key into a
	// single factory execution. A factory result is written to every
	// tier; an L2 or L3 hit is promoted into L1 only.
	GetOrCreate(ctx context.Context, key string, state any, factory Factory[T]) (value T, found bool, err error)

	// TryAcquireLock takes a distributed lock on key, retrying every
	// ~100ms until timeout elapses (timeout == 0 means a single
	// attempt). Requires a distributed tier; returns an error otherwise.
	TryAcquireLock(ctx context.Context, key string, hold, timeout time.Duration) (*distributed.LockHandle, error)

	// Close unsubscribes from the distributed tier's key-change event
	// and releases any resources this Cache itself owns. It does not
	// close tiers supplied via Options, since those may be shared.
	Close(ctx context.Context) error
}

// Options configures a Cache[T]. Memory is the only required tier; File
// and Distributed may be nil to run with a smaller tier set (spec.md §6:
// an empty file_directory or distributed_endpoint means "null tier").
type Options[T any] struct {
	// KeyPrefix is the first segment of every FormattedKey. An empty
	// KeyPrefix falls back to AppName, so the prefix is empty (keys shared
	// across services) only when AppName is empty too.
	KeyPrefix string
	// AppName is used as the default KeyPrefix.
	AppName string

	Memory      memory.Tier
	File        *filecache.Cache
	Distributed *distributed.Adapter

	// Serializer is required unless T is exactly []byte, in which case
	// serialization is bypassed per spec.md §4.6.
	Serializer serializer.Serializer[T]

	Logger Logger
	Hooks  Hooks

	DefaultDuration time.Duration
	DefaultSize     uint32
}

// New constructs a Cache[T]. It fails if T is an interface type (the
// coordinator needs a concrete type identity to scope FormattedKey), if
// Memory is nil, or if Serializer is nil for a non-[]byte T.
func New[T any](opts Options[T]) (Cache[T], error) {
	return newCache[T](opts)
}

package cascache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/layerfault/cascache/distributed"
	"github.com/layerfault/cascache/filecache"
	"github.com/layerfault/cascache/memory"
	"github.com/layerfault/cascache/serializer"
	"github.com/layerfault/cascache/singleflight"
)

// flushallSentinel is the substring that, when present in a notification
// key, triggers a full local purge rather than a single-key invalidation
// (spec.md §4.1 and §6).
const flushallSentinel = "__flushall__"

// lazyTTL and lazySize are the fixed parameters for the single-flight
// collapser's memory-tier marker (spec.md §4.4).
const (
	lazyTTL  = 5 * time.Minute
	lazySize = 256
)

type cache[T any] struct {
	prefix  string
	typeTag string
	serTag  string

	mem  memory.Tier
	file *filecache.Cache
	dist *distributed.Adapter
	ser  serializer.Serializer[T]

	isBytes bool

	log   Logger
	hooks Hooks

	defaultDuration time.Duration
	defaultSize     uint32

	sf singleflight.Group[cachedValue[T]]
}

// cachedValue distinguishes "no value" (found=false, never cached) from a
// genuine zero-valued T.
type cachedValue[T any] struct {
	value T
	found bool
}

func newCache[T any](opts Options[T]) (*cache[T], error) {
	if err := rejectInterfaceType[T](); err != nil {
		return nil, err
	}
	if opts.Memory == nil {
		return nil, errors.New("cascache: Memory tier is required")
	}

	isBytes := isByteSlice[T]()
	if opts.Serializer == nil && !isBytes {
		return nil, errors.New("cascache: Serializer is required unless T is []byte")
	}

	prefix := opts.KeyPrefix
	if prefix == "" {
		prefix = opts.AppName
	}

	serTag := "raw"
	if opts.Serializer != nil {
		serTag = opts.Serializer.Description()
	}

	c := &cache[T]{
		prefix:          prefix,
		typeTag:         typeFQN[T](),
		mem:             opts.Memory,
		file:            opts.File,
		dist:            opts.Distributed,
		ser:             opts.Serializer,
		isBytes:         isBytes,
		log:             coalesce[Logger](opts.Logger, NopLogger{}),
		hooks:           coalesce[Hooks](opts.Hooks, NopHooks{}),
		defaultDuration: coalesce[time.Duration](opts.DefaultDuration, defaultDuration),
		defaultSize:     coalesce[uint32](opts.DefaultSize, defaultSize),
	}
	c.serTag = serTag

	if c.dist != nil {
		c.dist.OnKeyChange(c.handleKeyChange)
		_ = c.dist.Start(context.Background())
	}

	return c, nil
}

// serTag is kept as a field (not embedded above the struct literal) so
// formatKey doesn't need to re-derive it on every call.
func (c *cache[T]) formatKey(userKey string) string {
	return FormatKey(c.prefix, c.typeTag, c.serTag, userKey)
}

func (c *cache[T]) encode(v T) ([]byte, error) {
	if c.isBytes {
		b, _ := any(v).([]byte)
		return b, nil
	}
	b, err := c.ser.Serialize(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerializeFailed, err)
	}
	return b, nil
}

func (c *cache[T]) decode(b []byte) (T, error) {
	if c.isBytes {
		v, _ := any(b).(T)
		return v, nil
	}
	v, err := c.ser.Deserialize(b)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("%w: %v", ErrDeserializeFailed, err)
	}
	return v, nil
}

func (c *cache[T]) Get(ctx context.Context, key string) (T, bool, error) {
	var zero T
	fk := c.formatKey(key)

	if b, ok, err := c.mem.Get(ctx, fk); err == nil && ok {
		v, decErr := c.decode(b)
		if decErr != nil {
			return zero, false, nil
		}
		return v, true, nil
	}

	if c.file != nil {
		if item, ok, err := c.file.Get(ctx, fk); err == nil && ok {
			v, decErr := c.decode(item.Payload)
			if decErr != nil {
				c.selfHealFileDecode(ctx, fk)
				return zero, false, nil
			}
			return v, true, nil
		}
	}

	if c.dist != nil {
		b, ok, err := c.dist.Get(ctx, fk)
		if err != nil {
			// Breaker-open and transport errors are logged and treated
			// as a miss, not a failure (spec.md §4.1).
			c.log.Warn("distributed get failed", Fields{"key": fk, "err": err})
			return zero, false, nil
		}
		if ok {
			v, decErr := c.decode(b)
			if decErr != nil {
				return zero, false, nil
			}
			return v, true, nil
		}
	}

	return zero, false, nil
}

func (c *cache[T]) Set(ctx context.Context, key string, value T, params CacheParameters) error {
	fk := c.formatKey(key)
	p := params.normalized()
	ttl := jitter(p.Duration)

	raw, err := c.encode(value)
	if err != nil {
		return err
	}

	if _, err := c.mem.Set(ctx, fk, raw, int64(p.Size), ttl); err != nil {
		c.log.Error("memory set failed", Fields{"key": fk, "err": err})
	}

	if c.file != nil {
		if err := c.file.Set(ctx, fk, raw, time.Now().Add(ttl)); err != nil {
			c.log.Error("file set failed", Fields{"key": fk, "err": err})
		}
	}

	if c.dist != nil {
		if err := c.dist.Set(ctx, fk, raw, ttl); err != nil {
			c.log.Error("distributed set failed", Fields{"key": fk, "err": err})
		}
	}

	return nil
}

// Delete removes key from every tier. L3 deletion errors propagate per
// spec.md §7: a failed distributed delete risks resurrecting the key via
// read-through and must not be hidden.
func (c *cache[T]) Delete(ctx context.Context, key string) error {
	fk := c.formatKey(key)
	c.purgeTier(ctx, fk)

	if c.dist != nil {
		if err := c.dist.Delete(ctx, fk); err != nil {
			return &DeleteError{Key: key, DistErr: err}
		}
	}
	return nil
}

// selfHealFileDecode removes an L2 record whose header was readable but
// whose payload failed to deserialise into T, and reports the
// "decode_error" reason documented on Hooks.SelfHealFile. A record in
// this state would otherwise sit on disk and fail the same way on every
// future read.
func (c *cache[T]) selfHealFileDecode(ctx context.Context, fk string) {
	if err := c.file.Remove(ctx, fk); err != nil {
		c.log.Warn("file delete failed", Fields{"key": fk, "err": err})
	}
	c.hooks.SelfHealFile(fk, "decode_error")
}

// purgeTier removes fk from L1 and, if present, L2 only. Errors there
// are logged, not surfaced (spec.md §7's local-swallow discipline).
func (c *cache[T]) purgeTier(ctx context.Context, fk string) {
	if err := c.mem.Del(ctx, fk); err != nil {
		c.log.Warn("memory delete failed", Fields{"key": fk, "err": err})
	}
	if c.file != nil {
		if err := c.file.Remove(ctx, fk); err != nil {
			c.log.Warn("file delete failed", Fields{"key": fk, "err": err})
		}
	}
}

// purgeAll removes fk from every tier, logging (not surfacing) every
// failure. Used on factory/serializer failure inside GetOrCreate, where
// the original error is what gets rethrown.
func (c *cache[T]) purgeAll(ctx context.Context, fk string) {
	c.purgeTier(ctx, fk)
	if c.dist != nil {
		if err := c.dist.Delete(ctx, fk); err != nil {
			c.log.Warn("distributed delete failed during purge", Fields{"key": fk, "err": err})
		}
	}
}

func (c *cache[T]) GetOrCreate(ctx context.Context, key string, state any, factory Factory[T]) (T, bool, error) {
	var zero T
	fk := c.formatKey(key)

	// Fast path (spec.md §4.1.2): an L1 hit skips the collapser entirely.
	if b, ok, err := c.mem.Get(ctx, fk); err == nil && ok {
		v, decErr := c.decode(b)
		if decErr == nil {
			return v, true, nil
		}
	}

	lazy := lazyKey(fk)
	onLeader := func() { _, _ = c.mem.Set(ctx, lazy, nil, lazySize, lazyTTL) }
	onSettle := func() { _ = c.mem.Del(ctx, lazy) }

	result, err, waiters := c.sf.DoWithHooks(ctx, fk, func() (cachedValue[T], error) {
		return c.loadOrCompute(ctx, fk, key, state, factory)
	}, onLeader, onSettle)

	c.hooks.Collapsed(fk, int(waiters))

	if err != nil {
		return zero, false, err
	}
	if !result.found {
		return zero, false, nil
	}
	return result.value, true, nil
}

// loadOrCompute implements spec.md §4.1's get_or_create steps 3a-3d. It
// runs inside the single-flight critical section, so exactly one caller
// per key executes this at a time.
func (c *cache[T]) loadOrCompute(ctx context.Context, fk, userKey string, state any, factory Factory[T]) (cachedValue[T], error) {
	params := CacheParameters{Duration: c.defaultDuration, Size: c.defaultSize}

	// 3a: L2 check. Per spec.md §4.1 step 3a, the context duration is set
	// to the record's remaining TTL (expires − now), not the default, so
	// the L1 copy's lifetime follows the L2 record rather than the
	// 30-minute default. promote jitters that duration like every other
	// write, so for a remaining TTL over one minute the L1 copy can outlive
	// the L2 record.
	if c.file != nil {
		if item, ok, err := c.file.Get(ctx, fk); err == nil && ok {
			v, decErr := c.decode(item.Payload)
			if decErr == nil {
				params.Size = 2 * uint32(len(item.Payload))
				params.Duration = item.Expires.Sub(time.Now())
				c.promote(ctx, fk, item.Payload, params)
				return cachedValue[T]{value: v, found: true}, nil
			}
			c.selfHealFileDecode(ctx, fk)
		}
	}

	// 3b: L3 check via the circuit-breaker adapter.
	if c.dist != nil {
		if b, ok, err := c.dist.Get(ctx, fk); err == nil && ok {
			v, decErr := c.decode(b)
			if decErr == nil {
				params.Size = 2 * uint32(len(b))
				c.promote(ctx, fk, b, params)
				return cachedValue[T]{value: v, found: true}, nil
			}
		}
	}

	// 3c/3d: call the factory.
	goc := newGetOrCreateContext(ctx, userKey, state, params)
	value, found, err := factory(goc)
	if err != nil {
		c.purgeAll(ctx, fk)
		return cachedValue[T]{}, err
	}
	if !found {
		return cachedValue[T]{}, nil
	}

	raw, err := c.encode(value)
	if err != nil {
		c.purgeAll(ctx, fk)
		return cachedValue[T]{}, err
	}

	c.writeAllTiers(ctx, fk, raw, goc.Params)
	return cachedValue[T]{value: value, found: true}, nil
}

// promote writes an L2/L3 hit into L1 only; per spec.md §9's second open
// question, Get never promotes but GetOrCreate always does.
func (c *cache[T]) promote(ctx context.Context, fk string, raw []byte, params CacheParameters) {
	p := params.normalized()
	if _, err := c.mem.Set(ctx, fk, raw, int64(p.Size), jitter(p.Duration)); err != nil {
		c.log.Warn("promote to memory failed", Fields{"key": fk, "err": err})
	}
}

func (c *cache[T]) writeAllTiers(ctx context.Context, fk string, raw []byte, params CacheParameters) {
	p := params.normalized()
	ttl := jitter(p.Duration)

	if _, err := c.mem.Set(ctx, fk, raw, int64(p.Size), ttl); err != nil {
		c.log.Error("memory set failed", Fields{"key": fk, "err": err})
	}
	if c.file != nil {
		if err := c.file.Set(ctx, fk, raw, time.Now().Add(ttl)); err != nil {
			c.log.Error("file set failed", Fields{"key": fk, "err": err})
		}
	}
	if c.dist != nil {
		if err := c.dist.Set(ctx, fk, raw, ttl); err != nil {
			c.log.Error("distributed set failed", Fields{"key": fk, "err": err})
		}
	}
}

func (c *cache[T]) TryAcquireLock(ctx context.Context, key string, hold, timeout time.Duration) (*distributed.LockHandle, error) {
	if c.dist == nil {
		return nil, errors.New("cascache: no distributed tier configured")
	}
	h, err := c.dist.TryAcquireLock(ctx, c.formatKey(key), hold, timeout)
	if errors.Is(err, distributed.ErrLockTimeout) {
		return nil, ErrLockTimeout
	}
	return h, err
}

// handleKeyChange is the coordinator's invalidation handler (spec.md
// §4.1): a "__flushall__" key compacts L1 fully and clears L2; a key
// matching this cache's prefix removes it from L1 and L2; anything else
// is ignored.
func (c *cache[T]) handleKeyChange(rawKey string) {
	if strings.Contains(rawKey, flushallSentinel) {
		c.mem.Compact(1.0)
		if c.file != nil {
			go func() { _ = c.file.Clear(context.Background()) }()
		}
		c.hooks.Invalidated(rawKey, "flushall")
		return
	}

	if c.prefix != "" && strings.HasPrefix(rawKey, c.prefix+":") {
		_ = c.mem.Del(context.Background(), rawKey)
		if c.file != nil {
			_ = c.file.Remove(context.Background(), rawKey)
		}
		c.hooks.Invalidated(rawKey, "invalidate")
		return
	}

	c.hooks.Invalidated(rawKey, "ignored")
}

func (c *cache[T]) Close(ctx context.Context) error {
	if c.dist != nil {
		c.dist.OnKeyChange(nil)
	}
	return nil
}

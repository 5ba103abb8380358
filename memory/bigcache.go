package memory

import (
	"context"
	"time"

	bc "github.com/allegro/bigcache/v3"
)

// BigCache is an alternate Tier backend with a single global LifeWindow
// (no per-entry TTL support), useful when memory fragmentation under GC
// pressure matters more than exact per-key expiry. Grounded on the
// teacher's provider/bigcache adapter.
type BigCache struct {
	c *bc.BigCache
}

type BigCacheConfig struct {
	LifeWindow         time.Duration
	CleanWindow        time.Duration
	MaxEntriesInWindow int
	MaxEntrySize       int
	HardMaxCacheSizeMB int
}

func NewBigCache(cfg BigCacheConfig) (*BigCache, error) {
	conf := bc.DefaultConfig(cfg.LifeWindow)
	if cfg.CleanWindow > 0 {
		conf.CleanWindow = cfg.CleanWindow
	}
	if cfg.MaxEntriesInWindow > 0 {
		conf.MaxEntriesInWindow = cfg.MaxEntriesInWindow
	}
	if cfg.MaxEntrySize > 0 {
		conf.MaxEntrySize = cfg.MaxEntrySize
	}
	if cfg.HardMaxCacheSizeMB > 0 {
		conf.HardMaxCacheSize = cfg.HardMaxCacheSizeMB
	}
	c, err := bc.NewBigCache(conf)
	if err != nil {
		return nil, err
	}
	return &BigCache{c: c}, nil
}

func (b *BigCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, err := b.c.Get(key)
	if err == bc.ErrEntryNotFound {
		return nil, false, nil
	}
	return v, err == nil, err
}

func (b *BigCache) Set(_ context.Context, key string, value []byte, _ int64, _ time.Duration) (bool, error) {
	return true, b.c.Set(key, value)
}

func (b *BigCache) Del(_ context.Context, key string) error {
	return b.c.Delete(key)
}

func (b *BigCache) Compact(ratio float64) {
	if ratio <= 0 {
		return
	}
	b.c.Reset()
}

func (b *BigCache) Close(_ context.Context) error {
	return b.c.Close()
}

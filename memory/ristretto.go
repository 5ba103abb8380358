package memory

import (
	"context"
	"errors"
	"time"

	rc "github.com/dgraph-io/ristretto"
)

// Ristretto is the default Tier backend: a high-throughput in-memory
// cache with cost-based admission and eviction. Grounded on the
// teacher's provider/ristretto adapter, generalized to implement
// Compact via Clear (Ristretto has no partial-compaction API, so any
// ratio > 0 performs a full clear — acceptable since the coordinator
// only ever calls Compact with ratio=1 on the __flushall__ path).
type Ristretto struct {
	c *rc.Cache
}

// Config mirrors the knobs Ristretto needs at construction. MaxCost is
// the L1 size cap, in the cost units passed to Set.
type Config struct {
	NumCounters int64
	MaxCost     int64
	BufferItems int64
	Metrics     bool
}

func NewRistretto(cfg Config) (*Ristretto, error) {
	if cfg.NumCounters <= 0 || cfg.MaxCost <= 0 || cfg.BufferItems <= 0 {
		return nil, errors.New("memory: invalid ristretto config")
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
		Metrics:     cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}
	return &Ristretto{c: c}, nil
}

func (r *Ristretto) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := r.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	b, _ := v.([]byte)
	if b == nil {
		r.c.Del(key)
		return nil, false, nil
	}
	return b, true, nil
}

func (r *Ristretto) Set(_ context.Context, key string, value []byte, cost int64, ttl time.Duration) (bool, error) {
	return r.c.SetWithTTL(key, value, cost, ttl), nil
}

func (r *Ristretto) Del(_ context.Context, key string) error {
	r.c.Del(key)
	return nil
}

func (r *Ristretto) Compact(ratio float64) {
	if ratio <= 0 {
		return
	}
	r.c.Clear()
}

func (r *Ristretto) Close(_ context.Context) error {
	r.c.Wait()
	r.c.Close()
	return nil
}

// Metrics exposes Ristretto's internal metrics for applications that want
// them; not part of the Tier interface.
func (r *Ristretto) Metrics() *rc.Metrics { return r.c.Metrics }

// Package memory defines the in-process L1 tier abstraction (spec.md's
// C7, "Memory Tier"). The tier itself is an external collaborator per the
// spec's non-goals, but concrete implementations are shipped here exactly
// as the teacher ships concrete byte-store providers: Tier is the shape
// the coordinator depends on, and ristretto/bigcache are the two
// ready-to-use backends.
//
// Implementations MUST be byte-for-byte transparent: Get must return
// exactly the bytes previously passed to Set for a key. If a backend
// performs internal transforms (e.g. compression) it must fully reverse
// them before returning.
package memory

import (
	"context"
	"time"
)

// Tier is a minimal bounded byte store with per-entry TTL and cost
// accounting, and a Compact hook used to satisfy the "__flushall__"
// invalidation sentinel (spec.md §4.1): Compact(1.0) clears the tier.
type Tier interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value with the given TTL and cost. cost is the caller's
	// CacheParameters.Size estimate, consumed only by accounting.
	// Returns ok=false when the backend rejected the write (e.g. evicted
	// immediately under pressure); this is not an error.
	Set(ctx context.Context, key string, value []byte, cost int64, ttl time.Duration) (ok bool, err error)

	// Del removes a key (best-effort).
	Del(ctx context.Context, key string) error

	// Compact reclaims space. ratio in (0,1] is a hint at how aggressively
	// to compact; ratio >= 1 means "clear everything" (the __flushall__
	// path).
	Compact(ratio float64)

	// Close releases resources.
	Close(ctx context.Context) error
}

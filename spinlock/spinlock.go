// Package spinlock implements a fixed-size, key-sharded spinlock used to
// serialize access to per-key state without the cost of a full mutex per
// key. Distinct keys that hash to the same slot share a lock (false
// sharing, not a correctness hazard); a default of 512 slots is sized for
// typical contention.
package spinlock

import (
	"hash/maphash"
	"runtime"
	"sync/atomic"
	"time"
)

const defaultSlots = 512

// Map is a fixed array of CAS-guarded slots. The zero value is not ready
// to use; construct with New.
type Map struct {
	slots []int32
	seed  maphash.Seed
}

// New returns a Map with n slots. n <= 0 selects the default of 512.
func New(n int) *Map {
	if n <= 0 {
		n = defaultSlots
	}
	return &Map{slots: make([]int32, n), seed: maphash.MakeSeed()}
}

// Guard releases the slot it was issued for on Unlock. Unlock may be
// called more than once; calls after the first are no-ops.
type Guard struct {
	slot *int32
	done bool
}

// Unlock releases the slot. Always call via defer so the slot is freed on
// every exit path, including panics and early returns.
func (g *Guard) Unlock() {
	if g == nil || g.done {
		return
	}
	g.done = true
	atomic.StoreInt32(g.slot, 0)
}

func (m *Map) index(key string) int {
	if len(m.slots) == 1 {
		return 0
	}
	var h maphash.Hash
	h.SetSeed(m.seed)
	_, _ = h.WriteString(key)
	return int(h.Sum64() % uint64(len(m.slots)))
}

// Lock spins on the slot for key until it is acquired, escalating its
// back-off: attempts 1..9 yield the scheduler, attempts 10..49 sleep
// ~1ms, attempts >=50 sleep ~20ms. The returned Guard's Unlock releases
// the slot.
func (m *Map) Lock(key string) *Guard {
	slot := &m.slots[m.index(key)]
	for attempt := 1; ; attempt++ {
		if atomic.CompareAndSwapInt32(slot, 0, 1) {
			return &Guard{slot: slot}
		}
		backoff(attempt)
	}
}

func backoff(attempt int) {
	switch {
	case attempt < 10:
		runtime.Gosched()
	case attempt < 50:
		time.Sleep(time.Millisecond)
	default:
		time.Sleep(20 * time.Millisecond)
	}
}

// Package asynchook wraps a cascache.Hooks implementation so that any
// I/O the inner implementation does (logging, metrics export) never
// blocks the coordinator's hot path. Events are queued to a bounded
// channel and dropped under backpressure rather than stalling a
// Get/Set/GetOrCreate call.
//
// usage:
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{
//	    SelfHealEvery: 10, // sample logs: ~every 10th self-heal
//	})
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	cache, _ := cascache.New[User](cascache.Options[User]{
//	    AppName:    "app",
//	    Memory:     mem,
//	    Serializer: serializer.JSON[User]{},
//	    Hooks:      hooks,
//	})
package asynchook

import (
	"sync"

	"github.com/layerfault/cascache"
)

type Hooks struct {
	inner cascache.Hooks
	q     chan func()
	wg    sync.WaitGroup
	once  sync.Once
}

var _ cascache.Hooks = (*Hooks)(nil)

func New(inner cascache.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

func (h *Hooks) Close() {
	h.once.Do(func() {
		close(h.q)
		h.wg.Wait()
	})
}

func (h *Hooks) try(f func()) {
	select {
	case h.q <- f:
	default: // drop under backpressure rather than block the caller
	}
}

func (h *Hooks) SelfHealFile(formattedKey, reason string) {
	h.try(func() { h.inner.SelfHealFile(formattedKey, reason) })
}

func (h *Hooks) Collapsed(key string, waiters int) {
	h.try(func() { h.inner.Collapsed(key, waiters) })
}

func (h *Hooks) BreakerStateChanged(state string) {
	h.try(func() { h.inner.BreakerStateChanged(state) })
}

func (h *Hooks) SelfHealReplica(method string, err error) {
	h.try(func() { h.inner.SelfHealReplica(method, err) })
}

func (h *Hooks) ReclaimRun(freed int64, files int) {
	h.try(func() { h.inner.ReclaimRun(freed, files) })
}

func (h *Hooks) Invalidated(rawKey, action string) {
	h.try(func() { h.inner.Invalidated(rawKey, action) })
}

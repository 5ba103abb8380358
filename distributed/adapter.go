package distributed

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

// Hooks are the small set of adapter-level signals the coordinator
// observes; kept separate from cascache.Hooks to avoid an import cycle.
type Hooks interface {
	BreakerStateChanged(state string)
	SelfHealReplica(method string, err error)
}

type nopHooks struct{}

func (nopHooks) BreakerStateChanged(string)    {}
func (nopHooks) SelfHealReplica(string, error) {}

// ErrBreakerOpen is returned when the circuit breaker is open and a call
// fails fast without reaching Store.
var ErrBreakerOpen = errors.New("distributed: circuit breaker open")

const resubscribeSupervisorInterval = 10 * time.Second

// Config configures an Adapter.
type Config struct {
	Store Store
	// KeyPrefix is the first segment of keys this adapter cares about;
	// used to build the subscription patterns "<prefix>:*" and
	// "__flushall__*".
	KeyPrefix string
	Hooks     Hooks
	Now       func() time.Time
}

// Adapter wraps a Store with circuit-breaker isolation, replica-failure
// self-heal, and key-change subscription. Grounded on the teacher's
// provider/redis.go for client ownership, and on
// subculture-collective-reddit-cluster-map's circuitbreaker package for
// the breaker's state machine shape.
type Adapter struct {
	store  Store
	prefix string
	hooks  Hooks
	brk    *breaker

	mu          sync.Mutex
	sub         Subscription
	onKeyChange func(key string)
	closed      bool
	stopCh      chan struct{}
	wg          sync.WaitGroup

	// reconnectMu serializes reconfigure+resubscribe transitions (spec.md
	// §5) so two concurrent replica-failure retries never swap the client
	// or the subscription at the same time. It does not deduplicate them:
	// each failing call reconnects and resubscribes in turn.
	reconnectMu sync.Mutex
}

func NewAdapter(cfg Config) (*Adapter, error) {
	if cfg.Store == nil {
		return nil, errors.New("distributed: Store is required")
	}
	h := cfg.Hooks
	if h == nil {
		h = nopHooks{}
	}
	a := &Adapter{
		store:  cfg.Store,
		prefix: cfg.KeyPrefix,
		hooks:  h,
		stopCh: make(chan struct{}),
	}
	a.brk = newBreaker(cfg.Now, func(s breakerState) { h.BreakerStateChanged(s.String()) })
	return a, nil
}

// OnKeyChange registers the single callback invoked for every recovered
// key-change notification. It must be short and non-blocking (spec.md
// §9's event guidance); schedule heavy work elsewhere.
func (a *Adapter) OnKeyChange(fn func(key string)) {
	a.mu.Lock()
	a.onKeyChange = fn
	a.mu.Unlock()
}

// Start establishes the initial subscription and launches the 10s
// resubscribe supervisor.
func (a *Adapter) Start(ctx context.Context) error {
	if err := a.resubscribe(ctx); err != nil {
		// Subscription failure is non-fatal at startup; the supervisor
		// will keep retrying.
	}
	a.wg.Add(1)
	go a.supervise(ctx)
	return nil
}

func (a *Adapter) supervise(ctx context.Context) {
	defer a.wg.Done()
	ticker := time.NewTicker(resubscribeSupervisorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-a.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.mu.Lock()
			needsResub := a.sub == nil
			a.mu.Unlock()
			if needsResub {
				_ = a.resubscribe(ctx)
			}
		}
	}
}

func (a *Adapter) resubscribe(ctx context.Context) error {
	patterns := []string{a.prefix + ":*", "__flushall__*"}
	sub, err := a.store.Subscribe(ctx, patterns...)
	if err != nil {
		return err
	}

	a.mu.Lock()
	if a.sub != nil {
		_ = a.sub.Close()
	}
	a.sub = sub
	a.mu.Unlock()

	a.wg.Add(1)
	go a.pump(sub)
	return nil
}

func (a *Adapter) pump(sub Subscription) {
	defer a.wg.Done()
	for n := range sub.Notifications() {
		a.mu.Lock()
		fn := a.onKeyChange
		cur := a.sub
		a.mu.Unlock()
		if cur != sub {
			// Stale subscription superseded by a reconnect; drain and exit.
			continue
		}
		if fn != nil {
			fn(n.Key)
		}
	}
	a.mu.Lock()
	if a.sub == sub {
		a.sub = nil
	}
	a.mu.Unlock()
}

// Close stops the supervisor and underlying subscription, then closes
// the store.
func (a *Adapter) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	sub := a.sub
	a.mu.Unlock()

	close(a.stopCh)
	if sub != nil {
		_ = sub.Close()
	}
	a.wg.Wait()
	return a.store.Close()
}

func isReplicaError(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "replica")
}

// withBreaker runs fn through the circuit breaker, applying the
// replica-failure self-heal: on a "replica"-mentioning error, the
// adapter reconnects, re-subscribes, and retries fn exactly once before
// giving up.
func (a *Adapter) withBreaker(ctx context.Context, method string, fn func(context.Context) error) error {
	if !a.brk.allow() {
		return ErrBreakerOpen
	}

	err := fn(ctx)
	if err != nil && isReplicaError(err) {
		a.reconnectMu.Lock()
		reconnErr := a.store.Reconnect(ctx)
		if reconnErr == nil {
			_ = a.resubscribe(ctx)
		}
		a.reconnectMu.Unlock()
		if reconnErr == nil {
			a.hooks.SelfHealReplica(method, err)
			err = fn(ctx)
		}
	}

	if err != nil {
		a.brk.recordFailure()
		return err
	}
	a.brk.recordSuccess()
	return nil
}

func (a *Adapter) Get(ctx context.Context, key string) (val []byte, ok bool, err error) {
	err = a.withBreaker(ctx, "get", func(ctx context.Context) error {
		var innerErr error
		val, ok, innerErr = a.store.Get(ctx, key)
		return innerErr
	})
	if err != nil {
		return nil, false, err
	}
	return val, ok, nil
}

func (a *Adapter) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return a.withBreaker(ctx, "set", func(ctx context.Context) error {
		return a.store.Set(ctx, key, value, ttl)
	})
}

// Delete removes key from the store. Deletion errors are surfaced, not
// swallowed, per spec.md §7: resurrection via read-through must not be
// hidden. The breaker still tracks the call for future fast-fail
// decisions, but a breaker-open Delete is itself surfaced as an error so
// callers don't mistake "couldn't even try" for "succeeded".
func (a *Adapter) Delete(ctx context.Context, key string) error {
	return a.withBreaker(ctx, "delete", func(ctx context.Context) error {
		return a.store.Delete(ctx, key)
	})
}

package distributed

import (
	"sync"
	"time"
)

// breakerState mirrors the Closed/Open/HalfOpen shape of
// subculture-collective-reddit-cluster-map's circuitbreaker package,
// simplified to the spec's rule: opens after 5 consecutive failures,
// re-closes after a single successful probe once the 5s cool-down has
// elapsed.
type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

func (s breakerState) String() string {
	switch s {
	case stateOpen:
		return "open"
	case stateHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

const (
	breakerFailureThreshold = 5
	breakerCooldown         = 5 * time.Second
)

// breaker is a minimal consecutive-failure circuit breaker. It does not
// pull in a policy framework per spec.md §9's design guidance.
type breaker struct {
	mu           sync.Mutex
	state        breakerState
	failures     int
	openedAt     time.Time
	now          func() time.Time
	onTransition func(breakerState)
}

func newBreaker(now func() time.Time, onTransition func(breakerState)) *breaker {
	if now == nil {
		now = time.Now
	}
	return &breaker{state: stateClosed, now: now, onTransition: onTransition}
}

// allow reports whether a call may proceed, transitioning Open->HalfOpen
// once the cool-down has elapsed.
func (b *breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateClosed, stateHalfOpen:
		return true
	case stateOpen:
		if b.now().Sub(b.openedAt) >= breakerCooldown {
			b.setState(stateHalfOpen)
			return true
		}
		return false
	default:
		return false
	}
}

func (b *breaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	if b.state != stateClosed {
		b.setState(stateClosed)
	}
}

func (b *breaker) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == stateHalfOpen {
		b.setState(stateOpen)
		b.openedAt = b.now()
		return
	}

	b.failures++
	if b.failures >= breakerFailureThreshold {
		b.setState(stateOpen)
		b.openedAt = b.now()
	}
}

func (b *breaker) setState(s breakerState) {
	if b.state == s {
		return
	}
	b.state = s
	if s == stateClosed {
		b.failures = 0
	}
	if b.onTransition != nil {
		b.onTransition(s)
	}
}

func (b *breaker) State() breakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

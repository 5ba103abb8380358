package cascache

// Hooks are lightweight callbacks for high-signal events. Implementations
// MUST be cheap and non-blocking; the coordinator calls them on hot paths.
// Wrap a Hooks in hooks/async for a non-blocking dispatcher if your
// implementation does any I/O.
type Hooks interface {
	// A key's file-tier record was deleted by the cache on read.
	// reason ∈ {"corrupt", "expired", "decode_error"}
	SelfHealFile(formattedKey, reason string)

	// The single-flight collapser published a shared computation for key;
	// waiters is the number of callers that observed it (including the
	// leader). waiters == 1 means no collapsing occurred.
	Collapsed(key string, waiters int)

	// The distributed circuit breaker changed state.
	// state ∈ {"open", "half_open", "closed"}
	BreakerStateChanged(state string)

	// A distributed-store call failed with a "replica" error and the
	// adapter reconnected + retried.
	SelfHealReplica(method string, err error)

	// The free-space reclaim loop ran; freed is bytes removed, files is
	// the number of files deleted in the run.
	ReclaimRun(freed int64, files int)

	// A key-change notification was handled.
	// action ∈ {"flushall", "invalidate", "ignored"}
	Invalidated(rawKey, action string)
}

// NopHooks is the default no-op implementation.
type NopHooks struct{}

func (NopHooks) SelfHealFile(string, string)   {}
func (NopHooks) Collapsed(string, int)         {}
func (NopHooks) BreakerStateChanged(string)    {}
func (NopHooks) SelfHealReplica(string, error) {}
func (NopHooks) ReclaimRun(int64, int)         {}
func (NopHooks) Invalidated(string, string)    {}

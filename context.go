package cascache

import (
	"context"
	"time"
)

// GetOrCreateContext is passed to the caller's factory inside GetOrCreate.
// The factory may call SetDuration/SetSize to influence the TTL and size
// recorded for the written value before returning.
type GetOrCreateContext struct {
	Key    string
	State  any
	Params CacheParameters

	ctx context.Context
}

func newGetOrCreateContext(ctx context.Context, key string, state any, params CacheParameters) *GetOrCreateContext {
	return &GetOrCreateContext{Key: key, State: state, Params: params, ctx: ctx}
}

// Context returns the cancellation signal for this call.
func (c *GetOrCreateContext) Context() context.Context { return c.ctx }

// Duration returns the currently recorded TTL.
func (c *GetOrCreateContext) Duration() time.Duration { return c.Params.Duration }

// SetDuration overrides the TTL to be written for this value.
func (c *GetOrCreateContext) SetDuration(d time.Duration) { c.Params.Duration = d }

// Size returns the currently recorded size estimate.
func (c *GetOrCreateContext) Size() uint32 { return c.Params.Size }

// SetSize overrides the size estimate recorded for this value (consumed
// only by the memory tier's accounting).
func (c *GetOrCreateContext) SetSize(sz uint32) { c.Params.Size = sz }

package cascache

import (
	"github.com/layerfault/cascache/distributed"
	"github.com/layerfault/cascache/filecache"
)

// NewFileHooks adapts a cascache.Hooks into the narrower filecache.Hooks
// interface, so a single Hooks implementation can observe file-tier
// events (self-heal, reclaim runs) without filecache importing the root
// package.
func NewFileHooks(h Hooks) filecache.Hooks {
	if h == nil {
		h = NopHooks{}
	}
	return fileHooksBridge{h}
}

type fileHooksBridge struct{ h Hooks }

func (b fileHooksBridge) SelfHeal(formattedKey, reason string) { b.h.SelfHealFile(formattedKey, reason) }
func (b fileHooksBridge) ReclaimRun(freed int64, files int)    { b.h.ReclaimRun(freed, files) }

// NewDistributedHooks adapts a cascache.Hooks into the narrower
// distributed.Hooks interface for the same reason.
func NewDistributedHooks(h Hooks) distributed.Hooks {
	if h == nil {
		h = NopHooks{}
	}
	return distHooksBridge{h}
}

type distHooksBridge struct{ h Hooks }

func (b distHooksBridge) BreakerStateChanged(state string)    { b.h.BreakerStateChanged(state) }
func (b distHooksBridge) SelfHealReplica(method string, err error) {
	b.h.SelfHealReplica(method, err)
}

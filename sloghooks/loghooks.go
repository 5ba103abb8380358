// Package sloghooks implements cascache.Hooks on top of log/slog, with
// sampling for the two highest-volume events (file self-heal and
// single-flight collapses) so a hot key doesn't flood the log.
package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/layerfault/cascache"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	SelfHealEvery  uint64
	CollapsedEvery uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	selfHealCtr  atomic.Uint64
	collapsedCtr atomic.Uint64
}

var _ cascache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) SelfHealFile(formattedKey, reason string) {
	if h.l == nil || !sample(h.opts.SelfHealEvery, &h.selfHealCtr) {
		return
	}
	h.l.Debug("cascache.self_heal_file",
		"key", h.redact(formattedKey),
		"reason", reason)
}

func (h *Hooks) Collapsed(key string, waiters int) {
	if h.l == nil || waiters <= 1 || !sample(h.opts.CollapsedEvery, &h.collapsedCtr) {
		return
	}
	h.l.Info("cascache.collapsed",
		"key", h.redact(key),
		"waiters", waiters)
}

func (h *Hooks) BreakerStateChanged(state string) {
	if h.l == nil {
		return
	}
	h.l.Warn("cascache.breaker_state_changed", "state", state)
}

func (h *Hooks) SelfHealReplica(method string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("cascache.self_heal_replica",
		"method", method,
		"err", err)
}

func (h *Hooks) ReclaimRun(freed int64, files int) {
	if h.l == nil {
		return
	}
	h.l.Debug("cascache.reclaim_run",
		"freed_bytes", freed,
		"files", files)
}

func (h *Hooks) Invalidated(rawKey, action string) {
	if h.l == nil {
		return
	}
	h.l.Debug("cascache.invalidated",
		"key", h.redact(rawKey),
		"action", action)
}

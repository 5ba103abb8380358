// Package filecache implements the local on-disk L2 tier (spec.md §4.2):
// a self-contained, thread-safe, crash-tolerant byte store bounded by TTL
// and free-space pressure, using the compact FileRecord binary format
// from internal/wire.
//
// Grounded on the teacher's provider/bigcache and provider/ristretto
// constructors for the config-struct-to-validated-New shape, and on the
// teacher's internal/wire fixed binary framing for the record codec
// (adapted to the spec's two-field header).
package filecache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/layerfault/cascache/clock"
	"github.com/layerfault/cascache/diskspace"
	"github.com/layerfault/cascache/internal/util"
	"github.com/layerfault/cascache/internal/wire"
	"github.com/layerfault/cascache/spinlock"
)

const (
	tempSentinel          = "%temp%"
	subdirName            = "FileCache"
	defaultFreeSpacePct   = 15.0
	reclaimInterval       = 10 * time.Second
	reclaimYield          = time.Millisecond
	clearRetryInterval    = time.Second
	clearRetryAttempts    = 10
	clearSpinPoll         = time.Millisecond
	defaultSpinlockShards = 512
)

// Hooks are the small set of filecache-level signals the coordinator
// observes; kept separate from cascache.Hooks to avoid an import cycle
// (the root package depends on filecache, not the other way around).
type Hooks interface {
	SelfHeal(formattedKey, reason string)
	ReclaimRun(freed int64, files int)
}

type nopHooks struct{}

func (nopHooks) SelfHeal(string, string) {}
func (nopHooks) ReclaimRun(int64, int)   {}

// Config configures a Cache.
type Config struct {
	// BaseDir is the root directory for cache files, or the literal
	// (case-insensitive) sentinel "%temp%" to use the system temp
	// directory. Empty BaseDir means "no file tier" — callers should
	// simply not construct a Cache in that case.
	BaseDir string

	// AppName namespaces the cache directory: <base>/<app>/FileCache/...
	AppName string

	// FreeSpaceThresholdPct is the percentage of total disk space the
	// reclaim loop tries to keep free. Defaults to 15.
	FreeSpaceThresholdPct float64

	// SpinlockShards overrides the per-key spinlock's slot count.
	// Defaults to 512.
	SpinlockShards int

	// Base64Filenames selects URL-safe base64 filenames instead of hex.
	Base64Filenames bool

	Clock clock.Clock
	Disk  diskspace.Probe
	Hooks Hooks
}

// Cache is the L2 tier.
type Cache struct {
	dir       string
	threshold float64
	base64    bool

	lock  *spinlock.Map
	clock clock.Clock
	disk  diskspace.Probe
	hooks Hooks

	dirLocked atomic.Bool

	closeOnce sync.Once
	stopCh    chan struct{}
	stoppedWG sync.WaitGroup
}

// New validates cfg, creates the cache directory, and starts the
// free-space reclaim loop in the background.
func New(cfg Config) (*Cache, error) {
	if cfg.BaseDir == "" {
		return nil, errors.New("filecache: BaseDir is required")
	}
	if cfg.AppName == "" {
		return nil, errors.New("filecache: AppName is required")
	}

	base := cfg.BaseDir
	if strings.EqualFold(base, tempSentinel) {
		base = os.TempDir()
	}
	if err := validatePathChars(base); err != nil {
		return nil, err
	}

	dir := filepath.Join(base, cfg.AppName, subdirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("filecache: create directory: %w", err)
	}

	threshold := cfg.FreeSpaceThresholdPct
	if threshold <= 0 {
		threshold = defaultFreeSpacePct
	}

	shards := cfg.SpinlockShards
	if shards <= 0 {
		shards = defaultSpinlockShards
	}

	c := &Cache{
		dir:       dir,
		threshold: threshold / 100,
		base64:    cfg.Base64Filenames,
		lock:      spinlock.New(shards),
		clock:     coalesceClock(cfg.Clock),
		disk:      coalesceDisk(cfg.Disk),
		hooks:     coalesceHooks(cfg.Hooks),
		stopCh:    make(chan struct{}),
	}

	c.stoppedWG.Add(1)
	go c.reclaimLoop()

	return c, nil
}

func coalesceClock(c clock.Clock) clock.Clock {
	if c == nil {
		return clock.Real{}
	}
	return c
}

func coalesceDisk(d diskspace.Probe) diskspace.Probe {
	if d == nil {
		return diskspace.Real{}
	}
	return d
}

func coalesceHooks(h Hooks) Hooks {
	if h == nil {
		return nopHooks{}
	}
	return h
}

func validatePathChars(p string) error {
	for _, r := range p {
		switch r {
		case 0, '\n', '\r', '\t':
			return fmt.Errorf("filecache: invalid path character in %q", p)
		}
	}
	return nil
}

func (c *Cache) filename(formattedKey string) string {
	if c.base64 {
		return util.Base64Filename(formattedKey)
	}
	return util.HexFilename(formattedKey)
}

func (c *Cache) path(formattedKey string) string {
	return filepath.Join(c.dir, c.filename(formattedKey))
}

// waitForUnlockedDirectory spins (with a short sleep) while Clear() holds
// the sticky directory-locked flag, so concurrent Get/Set don't race the
// directory being removed and recreated.
func (c *Cache) waitForUnlockedDirectory() {
	for c.dirLocked.Load() {
		time.Sleep(clearSpinPoll)
	}
}

// Item is the materialised result of a Get hit: the decoded payload plus
// its absolute expiry, mirroring spec.md §3's FileCacheItem<T> shape
// (minus the decoded value, which is the byte-oriented file tier's
// caller's concern, not this package's).
type Item struct {
	Expires time.Time
	Payload []byte
}

// Get returns the item stored for formattedKey if present and
// unexpired. Any I/O or framing error results in a best-effort delete of
// the file and a reported miss — corruption is never propagated.
func (c *Cache) Get(ctx context.Context, formattedKey string) (Item, bool, error) {
	c.waitForUnlockedDirectory()

	guard := c.lock.Lock(formattedKey)
	defer guard.Unlock()

	p := c.path(formattedKey)
	b, err := os.ReadFile(p)
	if err != nil {
		if !os.IsNotExist(err) {
			_ = os.Remove(p)
		}
		return Item{}, false, nil
	}

	expires, payload, err := wire.Decode(b)
	if err != nil {
		_ = os.Remove(p)
		c.hooks.SelfHeal(formattedKey, "corrupt")
		return Item{}, false, nil
	}

	if !c.clock.Now().Before(expires) {
		_ = os.Remove(p)
		c.hooks.SelfHeal(formattedKey, "expired")
		return Item{}, false, nil
	}

	out := make([]byte, len(payload))
	copy(out, payload)
	return Item{Expires: expires, Payload: out}, true, nil
}

// Set stores payload under formattedKey with the given absolute expiry,
// truncating any existing file. Writes go to a temp sibling file and are
// renamed into place so a crash mid-write never leaves a half-written
// record behind.
func (c *Cache) Set(ctx context.Context, formattedKey string, payload []byte, expires time.Time) error {
	c.waitForUnlockedDirectory()

	guard := c.lock.Lock(formattedKey)
	defer guard.Unlock()

	p := c.path(formattedKey)
	record := wire.Encode(expires, payload)

	tmp, err := os.CreateTemp(c.dir, ".tmp-*")
	if err != nil {
		return nil // local swallow per spec.md §7: L2 I/O errors are non-fatal
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(record); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return nil
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return nil
	}
	if err := os.Rename(tmpName, p); err != nil {
		os.Remove(tmpName)
		return nil
	}
	return nil
}

// Remove deletes the file for formattedKey if it exists.
func (c *Cache) Remove(ctx context.Context, formattedKey string) error {
	c.waitForUnlockedDirectory()

	guard := c.lock.Lock(formattedKey)
	defer guard.Unlock()

	if err := os.Remove(c.path(formattedKey)); err != nil && !os.IsNotExist(err) {
		return nil
	}
	return nil
}

// Clear sets the sticky directory-locked flag (Get/Set/Remove spin on it
// while set), then removes and recreates the root directory, retrying up
// to 10 times at 1s intervals before giving up. The flag is cleared on
// success or after exhausting retries.
func (c *Cache) Clear(ctx context.Context) error {
	c.dirLocked.Store(true)
	defer c.dirLocked.Store(false)

	var lastErr error
	for attempt := 0; attempt < clearRetryAttempts; attempt++ {
		if err := os.RemoveAll(c.dir); err != nil {
			lastErr = err
		} else if err := os.MkdirAll(c.dir, 0o755); err != nil {
			lastErr = err
		} else {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(clearRetryInterval):
		}
	}
	return fmt.Errorf("filecache: clear failed after %d attempts: %w", clearRetryAttempts, lastErr)
}

// Close stops the background reclaim loop. Safe to call multiple times.
func (c *Cache) Close() {
	c.closeOnce.Do(func() {
		close(c.stopCh)
	})
	c.stoppedWG.Wait()
}

// reclaimLoop runs every 10s: while free space is below threshold, it
// deletes files (oldest-first is not guaranteed — directory iteration
// order is whatever the filesystem gives) until the ratio recovers or
// there are no files left to delete.
func (c *Cache) reclaimLoop() {
	defer c.stoppedWG.Done()

	ticker := time.NewTicker(reclaimInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.reclaimPass()
		}
	}
}

func (c *Cache) reclaimPass() {
	for {
		usage, err := c.disk.Usage(c.dir)
		if err != nil || usage.Total == 0 {
			return
		}
		ratio := float64(usage.Free) / float64(usage.Total)
		if ratio >= c.threshold {
			return
		}

		var available int64
		var freedTotal int64
		var filesDeleted int
		deletedAny := false

		entries, err := os.ReadDir(c.dir)
		if err != nil {
			return
		}

		for _, ent := range entries {
			if ent.IsDir() || strings.HasPrefix(ent.Name(), ".tmp-") {
				continue
			}
			select {
			case <-c.stopCh:
				return
			default:
			}

			fp := filepath.Join(c.dir, ent.Name())
			// Best-effort per-key lock keyed on the filename: callers
			// address files by FormattedKey, but reclaim only knows the
			// hashed name, so lock on that directly — it still shares
			// the slot space with real keys, which is an acceptable
			// false-sharing collision per spinlock's contract.
			guard := c.lock.Lock(ent.Name())
			size, sizeErr := c.disk.Size(fp)
			if sizeErr == nil {
				if rmErr := os.Remove(fp); rmErr == nil {
					available += size
					freedTotal += size
					filesDeleted++
					deletedAny = true
				}
			}
			guard.Unlock()

			if usage.Total > 0 && (float64(usage.Free)+float64(available))/float64(usage.Total) >= c.threshold {
				c.hooks.ReclaimRun(freedTotal, filesDeleted)
				return
			}
			time.Sleep(reclaimYield)
		}

		if !deletedAny {
			c.hooks.ReclaimRun(freedTotal, filesDeleted)
			return
		}
		c.hooks.ReclaimRun(freedTotal, filesDeleted)
	}
}

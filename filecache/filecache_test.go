package filecache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/layerfault/cascache/clock"
	"github.com/layerfault/cascache/diskspace"
)

func newTestCache(t *testing.T, fakeClock *clock.Fake) *Cache {
	t.Helper()
	dir := t.TempDir()
	c, err := New(Config{
		BaseDir: dir,
		AppName: "testapp",
		Clock:   fakeClock,
		Disk:    diskspace.NewFake(diskspace.Usage{Free: 100, Total: 100}),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func TestSetThenGet(t *testing.T) {
	fc := clock.NewFake(time.Time{})
	c := newTestCache(t, fc)
	ctx := context.Background()

	key := "cascache:string:json:hello"
	if err := c.Set(ctx, key, []byte("world"), fc.Now().Add(time.Minute)); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if string(got.Payload) != "world" {
		t.Fatalf("got %q", got.Payload)
	}
	wantExp := fc.Now().Add(time.Minute)
	if !got.Expires.Equal(wantExp) {
		t.Fatalf("expires: got %v want %v", got.Expires, wantExp)
	}
}

func TestGetMissingIsMiss(t *testing.T) {
	fc := clock.NewFake(time.Time{})
	c := newTestCache(t, fc)
	_, ok, err := c.Get(context.Background(), "cascache:string:json:nope")
	if err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}
}

func TestExpiredEntryIsMissAndRemoved(t *testing.T) {
	fc := clock.NewFake(time.Time{})
	c := newTestCache(t, fc)
	ctx := context.Background()
	key := "cascache:string:json:k"

	if err := c.Set(ctx, key, []byte("v"), fc.Now().Add(time.Second)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	fc.Advance(2 * time.Second)

	_, ok, err := c.Get(ctx, key)
	if err != nil || ok {
		t.Fatalf("expected miss after expiry, got ok=%v err=%v", ok, err)
	}

	if _, err := os.Stat(c.path(key)); !os.IsNotExist(err) {
		t.Fatalf("expected file removed, stat err=%v", err)
	}
}

func TestCorruptFileIsRemovedAndMiss(t *testing.T) {
	fc := clock.NewFake(time.Time{})
	c := newTestCache(t, fc)
	ctx := context.Background()
	key := "cascache:string:json:corrupt"

	if err := os.WriteFile(c.path(key), []byte{1, 2, 3}, 0o644); err != nil {
		t.Fatalf("write garbage: %v", err)
	}

	_, ok, err := c.Get(ctx, key)
	if err != nil || ok {
		t.Fatalf("expected miss for corrupt file, got ok=%v err=%v", ok, err)
	}
	if _, err := os.Stat(c.path(key)); !os.IsNotExist(err) {
		t.Fatalf("expected corrupt file removed")
	}
}

func TestRemove(t *testing.T) {
	fc := clock.NewFake(time.Time{})
	c := newTestCache(t, fc)
	ctx := context.Background()
	key := "cascache:string:json:del"

	_ = c.Set(ctx, key, []byte("v"), fc.Now().Add(time.Minute))
	if err := c.Remove(ctx, key); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	_, ok, _ := c.Get(ctx, key)
	if ok {
		t.Fatalf("expected miss after Remove")
	}
}

func TestClearRemovesAllFiles(t *testing.T) {
	fc := clock.NewFake(time.Time{})
	c := newTestCache(t, fc)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_ = c.Set(ctx, "cascache:string:json:"+string(rune('a'+i)), []byte("v"), fc.Now().Add(time.Minute))
	}

	if err := c.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty directory after Clear, got %d entries", len(entries))
	}
}

func TestTempSentinelResolvesToOSTempDir(t *testing.T) {
	fc := clock.NewFake(time.Time{})
	c, err := New(Config{
		BaseDir: "%TEMP%",
		AppName: "sentinel-test",
		Clock:   fc,
		Disk:    diskspace.NewFake(diskspace.Usage{Free: 100, Total: 100}),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	want := filepath.Join(os.TempDir(), "sentinel-test", "FileCache")
	if c.dir != want {
		t.Fatalf("got dir %q want %q", c.dir, want)
	}
}

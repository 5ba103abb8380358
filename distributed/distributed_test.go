package distributed

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeSub struct {
	ch chan Notification
}

func (f *fakeSub) Notifications() <-chan Notification { return f.ch }
func (f *fakeSub) Close() error                        { close(f.ch); return nil }

type fakeStore struct {
	mu         sync.Mutex
	data       map[string][]byte
	locks      map[string]string
	failNext   int
	failReplica bool
	reconnects int
	subs       []*fakeSub
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: map[string][]byte{}, locks: map[string]string{}}
}

func (s *fakeStore) maybeFail() error {
	if s.failNext > 0 {
		s.failNext--
		if s.failReplica {
			return errors.New("READONLY You can't write against a replica")
		}
		return errors.New("boom")
	}
	return nil
}

func (s *fakeStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := s.maybeFail(); err != nil {
		return nil, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *fakeStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.maybeFail(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *fakeStore) Delete(ctx context.Context, key string) error {
	if err := s.maybeFail(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *fakeStore) TryLock(ctx context.Context, key, token string, hold time.Duration) (bool, error) {
	if err := s.maybeFail(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, held := s.locks[key]; held {
		return false, nil
	}
	s.locks[key] = token
	return true, nil
}

func (s *fakeStore) Unlock(ctx context.Context, key, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locks[key] == token {
		delete(s.locks, key)
	}
	return nil
}

func (s *fakeStore) Subscribe(ctx context.Context, patterns ...string) (Subscription, error) {
	sub := &fakeSub{ch: make(chan Notification, 16)}
	s.mu.Lock()
	s.subs = append(s.subs, sub)
	s.mu.Unlock()
	return sub, nil
}

func (s *fakeStore) Reconnect(ctx context.Context) error {
	s.mu.Lock()
	s.reconnects++
	s.mu.Unlock()
	return nil
}

func (s *fakeStore) Close() error { return nil }

func TestAdapterGetSetDelete(t *testing.T) {
	store := newFakeStore()
	a, err := NewAdapter(Config{Store: store, KeyPrefix: "app"})
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}
	ctx := context.Background()

	if err := a.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, ok, err := a.Get(ctx, "k")
	if err != nil || !ok || string(v) != "v" {
		t.Fatalf("Get: v=%q ok=%v err=%v", v, ok, err)
	}
	if err := a.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
}

func TestBreakerOpensAfterFiveFailures(t *testing.T) {
	store := newFakeStore()
	store.failNext = 5
	a, _ := NewAdapter(Config{Store: store, KeyPrefix: "app"})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, _, err := a.Get(ctx, "k"); err == nil {
			t.Fatalf("expected failure %d", i)
		}
	}

	_, _, err := a.Get(ctx, "k")
	if !errors.Is(err, ErrBreakerOpen) {
		t.Fatalf("expected breaker open, got %v", err)
	}
}

func TestReplicaErrorTriggersReconnectAndRetry(t *testing.T) {
	store := newFakeStore()
	store.failNext = 1
	store.failReplica = true
	a, _ := NewAdapter(Config{Store: store, KeyPrefix: "app"})

	if err := a.Set(context.Background(), "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if store.reconnects != 1 {
		t.Fatalf("expected 1 reconnect, got %d", store.reconnects)
	}
}

func TestTryAcquireLockAndRelease(t *testing.T) {
	store := newFakeStore()
	a, _ := NewAdapter(Config{Store: store, KeyPrefix: "app"})
	ctx := context.Background()

	h, err := a.TryAcquireLock(ctx, "resource", time.Second, 0)
	if err != nil {
		t.Fatalf("TryAcquireLock: %v", err)
	}

	_, err = a.TryAcquireLock(ctx, "resource", time.Second, 50*time.Millisecond)
	if !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("expected lock timeout, got %v", err)
	}

	if err := h.Release(ctx); err != nil {
		t.Fatalf("Release: %v", err)
	}

	h2, err := a.TryAcquireLock(ctx, "resource", time.Second, 0)
	if err != nil {
		t.Fatalf("TryAcquireLock after release: %v", err)
	}
	_ = h2.Release(ctx)
}

func TestKeyChangeNotificationInvokesCallback(t *testing.T) {
	store := newFakeStore()
	a, _ := NewAdapter(Config{Store: store, KeyPrefix: "app"})

	received := make(chan string, 1)
	a.OnKeyChange(func(key string) { received <- key })

	ctx := context.Background()
	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer a.Close()

	store.mu.Lock()
	sub := store.subs[0]
	store.mu.Unlock()
	sub.ch <- Notification{Key: "app:string:json:k"}

	select {
	case got := <-received:
		if got != "app:string:json:k" {
			t.Fatalf("unexpected key %q", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for notification")
	}
}

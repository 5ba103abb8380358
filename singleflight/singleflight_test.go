package singleflight

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestCollapsesConcurrentCalls(t *testing.T) {
	var g Group[string]
	var calls int32

	const n = 200
	var wg sync.WaitGroup
	results := make([]string, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err, _ := g.Do(context.Background(), "k", func() (string, error) {
				atomic.AddInt32(&calls, 1)
				time.Sleep(20 * time.Millisecond)
				return "v1", nil
			})
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			results[i] = v
		}(i)
	}
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected factory called once, got %d", got)
	}
	for _, r := range results {
		if r != "v1" {
			t.Fatalf("expected all callers to see v1, got %q", r)
		}
	}
}

func TestErrorSurfacedToAllWaiters(t *testing.T) {
	var g Group[string]
	boom := errors.New("boom")

	var wg sync.WaitGroup
	errs := make([]error, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err, _ := g.Do(context.Background(), "k", func() (string, error) {
				time.Sleep(5 * time.Millisecond)
				return "", boom
			})
			errs[i] = err
		}(i)
	}
	wg.Wait()

	for _, e := range errs {
		if !errors.Is(e, boom) {
			t.Fatalf("expected boom, got %v", e)
		}
	}
}

func TestEntryRemovedAfterSettlement(t *testing.T) {
	var g Group[int]
	_, _, _ = g.Do(context.Background(), "k", func() (int, error) { return 1, nil })

	if g.InFlight("k") {
		t.Fatalf("expected entry to be removed after settlement")
	}
}

func TestCancelledFollowerDoesNotAffectLeader(t *testing.T) {
	var g Group[int]
	leaderDone := make(chan struct{})

	go func() {
		_, _, _ = g.Do(context.Background(), "k", func() (int, error) {
			time.Sleep(50 * time.Millisecond)
			close(leaderDone)
			return 42, nil
		})
	}()
	time.Sleep(5 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err, _ := g.Do(ctx, "k", func() (int, error) { return 0, nil })
	if err == nil {
		t.Fatalf("expected cancellation error")
	}

	<-leaderDone
}

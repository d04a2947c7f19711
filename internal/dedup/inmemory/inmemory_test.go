package inmemory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/po4yka/bite-size-reader-sub001/internal/dedup"
)

func TestAcquireSingleFlight(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	status, err := store.Acquire(ctx, "fp-1", time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != dedup.StatusNew {
		t.Fatalf("first acquire must win, got %s", status)
	}

	status, err = store.Acquire(ctx, "fp-1", time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != dedup.StatusInFlight {
		t.Fatalf("second acquire must see the holder, got %s", status)
	}
}

func TestAcquireConcurrentSingleWinner(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status, err := store.Acquire(ctx, "fp-race", time.Minute)
			if err != nil {
				t.Errorf("acquire failed: %v", err)
				return
			}
			if status == dedup.StatusNew {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if winners != 1 {
		t.Fatalf("expected exactly one winner, got %d", winners)
	}
}

func TestCompleteAndLookup(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	if _, err := store.Acquire(ctx, "fp-2", time.Minute); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if err := store.Complete(ctx, "fp-2", "summary-42", time.Minute); err != nil {
		t.Fatalf("complete: %v", err)
	}

	status, err := store.Acquire(ctx, "fp-2", time.Minute)
	if err != nil {
		t.Fatalf("acquire after complete: %v", err)
	}
	if status != dedup.StatusDone {
		t.Fatalf("completed fingerprint must report done, got %s", status)
	}

	e, found, err := store.Lookup(ctx, "fp-2")
	if err != nil || !found {
		t.Fatalf("lookup failed: found=%t err=%v", found, err)
	}
	if e.SummaryID != "summary-42" {
		t.Fatalf("expected stored summary id, got %q", e.SummaryID)
	}
}

func TestReleaseFreesInFlightOnly(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	if _, err := store.Acquire(ctx, "fp-3", time.Minute); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if err := store.Release(ctx, "fp-3"); err != nil {
		t.Fatalf("release: %v", err)
	}
	status, _ := store.Acquire(ctx, "fp-3", time.Minute)
	if status != dedup.StatusNew {
		t.Fatalf("released fingerprint must be acquirable, got %s", status)
	}

	if err := store.Complete(ctx, "fp-3", "summary-1", time.Minute); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := store.Release(ctx, "fp-3"); err != nil {
		t.Fatalf("release after complete: %v", err)
	}
	status, _ = store.Acquire(ctx, "fp-3", time.Minute)
	if status != dedup.StatusDone {
		t.Fatalf("release must not evict a completed entry, got %s", status)
	}
}

func TestExpiry(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	if _, err := store.Acquire(ctx, "fp-4", 10*time.Millisecond); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	status, err := store.Acquire(ctx, "fp-4", time.Minute)
	if err != nil {
		t.Fatalf("acquire after expiry: %v", err)
	}
	if status != dedup.StatusNew {
		t.Fatalf("expired fingerprint must be acquirable again, got %s", status)
	}
}

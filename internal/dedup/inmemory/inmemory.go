// Package inmemory is the process-local dedup store, used for single-node
// deployments and tests.
package inmemory

import (
	"context"
	"sync"
	"time"

	"github.com/po4yka/bite-size-reader-sub001/internal/dedup"
)

type entry struct {
	dedup.Entry
	expiresAt time.Time
}

type Store struct {
	mu      sync.Mutex
	entries map[string]entry
}

func NewStore() *Store {
	return &Store{entries: make(map[string]entry)}
}

func (s *Store) Acquire(ctx context.Context, fingerprint string, ttl time.Duration) (dedup.Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[fingerprint]; ok && time.Now().Before(e.expiresAt) {
		return e.Status, nil
	}
	s.entries[fingerprint] = entry{
		Entry:     dedup.Entry{Status: dedup.StatusInFlight, UpdatedAt: time.Now()},
		expiresAt: time.Now().Add(ttl),
	}
	return dedup.StatusNew, nil
}

func (s *Store) Complete(ctx context.Context, fingerprint, summaryID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[fingerprint] = entry{
		Entry:     dedup.Entry{Status: dedup.StatusDone, SummaryID: summaryID, UpdatedAt: time.Now()},
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

func (s *Store) Release(ctx context.Context, fingerprint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[fingerprint]; ok && e.Status == dedup.StatusInFlight {
		delete(s.entries, fingerprint)
	}
	return nil
}

func (s *Store) Lookup(ctx context.Context, fingerprint string) (dedup.Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[fingerprint]
	if !ok || time.Now().After(e.expiresAt) {
		return dedup.Entry{}, false, nil
	}
	return e.Entry, true, nil
}

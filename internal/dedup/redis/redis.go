// Package redis is the shared dedup store for multi-instance deployments.
// Acquisition relies on SETNX so exactly one instance wins a fresh
// fingerprint.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/po4yka/bite-size-reader-sub001/internal/dedup"
)

type Store struct {
	client *redis.Client
}

func NewStore(addr, password string, db int) *Store {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &Store{client: rdb}
}

func key(fingerprint string) string {
	return fmt.Sprintf("dedup:%s", fingerprint)
}

func (s *Store) Acquire(ctx context.Context, fingerprint string, ttl time.Duration) (dedup.Status, error) {
	e := dedup.Entry{Status: dedup.StatusInFlight, UpdatedAt: time.Now()}
	data, _ := json.Marshal(e)

	ok, err := s.client.SetNX(ctx, key(fingerprint), data, ttl).Result()
	if err != nil {
		return "", fmt.Errorf("acquiring fingerprint: %w", err)
	}
	if ok {
		return dedup.StatusNew, nil
	}

	existing, found, err := s.Lookup(ctx, fingerprint)
	if err != nil {
		return "", err
	}
	if !found {
		// Expired between SetNX and Get; treat as contended and let the
		// caller retry.
		return dedup.StatusInFlight, nil
	}
	return existing.Status, nil
}

func (s *Store) Complete(ctx context.Context, fingerprint, summaryID string, ttl time.Duration) error {
	e := dedup.Entry{Status: dedup.StatusDone, SummaryID: summaryID, UpdatedAt: time.Now()}
	data, _ := json.Marshal(e)
	if err := s.client.Set(ctx, key(fingerprint), data, ttl).Err(); err != nil {
		return fmt.Errorf("completing fingerprint: %w", err)
	}
	return nil
}

func (s *Store) Release(ctx context.Context, fingerprint string) error {
	existing, found, err := s.Lookup(ctx, fingerprint)
	if err != nil || !found {
		return err
	}
	if existing.Status != dedup.StatusInFlight {
		return nil
	}
	if err := s.client.Del(ctx, key(fingerprint)).Err(); err != nil {
		return fmt.Errorf("releasing fingerprint: %w", err)
	}
	return nil
}

func (s *Store) Lookup(ctx context.Context, fingerprint string) (dedup.Entry, bool, error) {
	val, err := s.client.Get(ctx, key(fingerprint)).Result()
	if err == redis.Nil {
		return dedup.Entry{}, false, nil
	}
	if err != nil {
		return dedup.Entry{}, false, fmt.Errorf("looking up fingerprint: %w", err)
	}
	var e dedup.Entry
	if err := json.Unmarshal([]byte(val), &e); err != nil {
		return dedup.Entry{}, false, fmt.Errorf("decoding fingerprint entry: %w", err)
	}
	return e, true, nil
}

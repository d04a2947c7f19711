// Package dedup fingerprints sources and gates pipeline runs so the same
// article is processed once per TTL window, even under concurrent requests.
package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"
)

// Status of a fingerprint in the store.
type Status string

const (
	// StatusNew means this caller acquired the fingerprint and should run
	// the pipeline.
	StatusNew Status = "new"
	// StatusInFlight means another run holds the fingerprint right now.
	StatusInFlight Status = "in_flight"
	// StatusDone means a completed summary already exists for this source.
	StatusDone Status = "done"
)

// Entry is the stored state behind a fingerprint.
type Entry struct {
	Status    Status    `json:"status"`
	SummaryID string    `json:"summary_id,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store is the single-flight gate. Acquire is atomic: exactly one concurrent
// caller gets StatusNew for a fresh fingerprint.
type Store interface {
	Acquire(ctx context.Context, fingerprint string, ttl time.Duration) (Status, error)
	Complete(ctx context.Context, fingerprint, summaryID string, ttl time.Duration) error
	Release(ctx context.Context, fingerprint string) error
	Lookup(ctx context.Context, fingerprint string) (Entry, bool, error)
}

// trackingParams are stripped before hashing so share links and plain links
// collapse to the same fingerprint.
var trackingParams = map[string]bool{
	"utm_source": true, "utm_medium": true, "utm_campaign": true,
	"utm_term": true, "utm_content": true, "fbclid": true, "gclid": true,
	"ref": true,
}

// FingerprintURL hashes a normalized form of the URL: lowercase scheme and
// host, no fragment, no tracking params, remaining query sorted, trailing
// slash dropped.
func FingerprintURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("parsing url: %w", err)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.Path = strings.TrimSuffix(u.Path, "/")

	q := u.Query()
	kept := url.Values{}
	for k, vs := range q {
		if trackingParams[strings.ToLower(k)] {
			continue
		}
		for _, v := range vs {
			kept.Add(k, v)
		}
	}
	keys := make([]string, 0, len(kept))
	for k := range kept {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var qb strings.Builder
	for _, k := range keys {
		for _, v := range kept[k] {
			if qb.Len() > 0 {
				qb.WriteByte('&')
			}
			qb.WriteString(url.QueryEscape(k))
			qb.WriteByte('=')
			qb.WriteString(url.QueryEscape(v))
		}
	}
	u.RawQuery = qb.String()

	return hash("url:" + u.String()), nil
}

// FingerprintContent hashes forwarded text after whitespace normalization, so
// re-forwards with different wrapping still collapse.
func FingerprintContent(raw string) string {
	normalized := strings.Join(strings.Fields(raw), " ")
	return hash("content:" + normalized)
}

func hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

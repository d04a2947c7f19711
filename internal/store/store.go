// Package store persists extracted articles and accepted summaries in
// postgres. The pipeline itself never touches the store; the caller decides
// what to keep.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/po4yka/bite-size-reader-sub001/internal/contract"
)

// ErrNotFound is returned when a lookup matches nothing.
var ErrNotFound = errors.New("store: not found")

// ErrDuplicate is returned when an insert hits a uniqueness constraint, e.g.
// a second article row for the same fingerprint.
var ErrDuplicate = errors.New("store: duplicate")

type Store struct {
	DB *sql.DB
}

// NewWithDSN opens and pings a postgres connection.
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

func (s *Store) Close() error {
	return s.DB.Close()
}

// Article is an extracted source kept for re-summarization and audit.
type Article struct {
	ID              string
	Fingerprint     string
	SourceKind      string
	URL             string
	Title           string
	SiteName        string
	HTMLHash        string
	ContentMarkdown string
	ContentLength   int
	Metadata        map[string]any
	CreatedAt       time.Time
}

// SummaryRecord is an accepted summary plus its run accounting.
type SummaryRecord struct {
	ID              string
	ArticleID       string
	CorrelationID   string
	ContractVersion string
	Summary         contract.Summary
	AttemptsUsed    int
	TotalTokens     int64
	TotalCost       float64
	TotalLatencyMS  int64
	CreatedAt       time.Time
}

// SaveArticle inserts the article and returns its id. A fingerprint
// collision returns ErrDuplicate with the id of the existing row.
func (s *Store) SaveArticle(ctx context.Context, a Article) (string, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	metaJSON, err := json.Marshal(a.Metadata)
	if err != nil {
		return "", fmt.Errorf("encoding article metadata: %w", err)
	}

	_, err = s.DB.ExecContext(ctx, `
        INSERT INTO articles (id, fingerprint, source_kind, url, title, site_name, html_hash, content_markdown, content_length, metadata, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())`,
		a.ID, a.Fingerprint, a.SourceKind, a.URL, a.Title, a.SiteName, a.HTMLHash,
		a.ContentMarkdown, a.ContentLength, metaJSON)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return "", ErrDuplicate
		}
		return "", fmt.Errorf("inserting article: %w", err)
	}
	return a.ID, nil
}

// SaveSummary inserts an accepted summary and returns its id.
func (s *Store) SaveSummary(ctx context.Context, rec SummaryRecord) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	summaryJSON, err := json.Marshal(rec.Summary)
	if err != nil {
		return "", fmt.Errorf("encoding summary: %w", err)
	}

	_, err = s.DB.ExecContext(ctx, `
        INSERT INTO summaries (id, article_id, correlation_id, contract_version, summary, attempts_used, total_tokens, total_cost, total_latency_ms, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())`,
		rec.ID, rec.ArticleID, rec.CorrelationID, rec.ContractVersion, summaryJSON,
		rec.AttemptsUsed, rec.TotalTokens, rec.TotalCost, rec.TotalLatencyMS)
	if err != nil {
		return "", fmt.Errorf("inserting summary: %w", err)
	}
	return rec.ID, nil
}

// GetArticleByFingerprint looks up a previously extracted source.
func (s *Store) GetArticleByFingerprint(ctx context.Context, fingerprint string) (Article, error) {
	var (
		a        Article
		metaJSON []byte
	)
	err := s.DB.QueryRowContext(ctx, `
        SELECT id, fingerprint, source_kind, url, title, site_name, html_hash, content_markdown, content_length, metadata, created_at
        FROM articles WHERE fingerprint = $1`, fingerprint).Scan(
		&a.ID, &a.Fingerprint, &a.SourceKind, &a.URL, &a.Title, &a.SiteName, &a.HTMLHash,
		&a.ContentMarkdown, &a.ContentLength, &metaJSON, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return Article{}, ErrNotFound
	}
	if err != nil {
		return Article{}, fmt.Errorf("querying article: %w", err)
	}
	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &a.Metadata); err != nil {
			return Article{}, fmt.Errorf("decoding article metadata: %w", err)
		}
	}
	return a, nil
}

// GetSummaryByID loads one summary record.
func (s *Store) GetSummaryByID(ctx context.Context, id string) (SummaryRecord, error) {
	var (
		rec         SummaryRecord
		summaryJSON []byte
	)
	err := s.DB.QueryRowContext(ctx, `
        SELECT id, article_id, correlation_id, contract_version, summary, attempts_used, total_tokens, total_cost, total_latency_ms, created_at
        FROM summaries WHERE id = $1`, id).Scan(
		&rec.ID, &rec.ArticleID, &rec.CorrelationID, &rec.ContractVersion, &summaryJSON,
		&rec.AttemptsUsed, &rec.TotalTokens, &rec.TotalCost, &rec.TotalLatencyMS, &rec.CreatedAt)
	if err == sql.ErrNoRows {
		return SummaryRecord{}, ErrNotFound
	}
	if err != nil {
		return SummaryRecord{}, fmt.Errorf("querying summary: %w", err)
	}
	if err := json.Unmarshal(summaryJSON, &rec.Summary); err != nil {
		return SummaryRecord{}, fmt.Errorf("decoding summary: %w", err)
	}
	return rec, nil
}

// LatestSummaryForArticle returns the most recent summary for an article.
func (s *Store) LatestSummaryForArticle(ctx context.Context, articleID string) (SummaryRecord, error) {
	var id string
	err := s.DB.QueryRowContext(ctx, `
        SELECT id FROM summaries WHERE article_id = $1 ORDER BY created_at DESC LIMIT 1`,
		articleID).Scan(&id)
	if err == sql.ErrNoRows {
		return SummaryRecord{}, ErrNotFound
	}
	if err != nil {
		return SummaryRecord{}, fmt.Errorf("querying latest summary: %w", err)
	}
	return s.GetSummaryByID(ctx, id)
}

package agent

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/po4yka/bite-size-reader-sub001/internal/fetch"
)

// SourceKind tells downstream consumers how the content arrived.
type SourceKind string

const (
	SourceKindURL     SourceKind = "url"
	SourceKindForward SourceKind = "forward"
)

// ExtractionInput names the content to extract. Exactly one of URL and
// RawContent must be set.
type ExtractionInput struct {
	URL           string `json:"url,omitempty"`
	RawContent    string `json:"raw_content,omitempty"`
	CorrelationID string `json:"correlation_id"`
}

// ExtractionOutput is the normalized content handed to summarization.
type ExtractionOutput struct {
	ContentMarkdown    string         `json:"content_markdown"`
	ContentLength      int            `json:"content_length"`
	SourceKind         SourceKind     `json:"source_kind"`
	ExtractionMetadata map[string]any `json:"extraction_metadata,omitempty"`
}

// ContentExtractionAgent turns a source reference into markdown text. It
// issues exactly one fetch per invocation; transient-failure retry belongs to
// the fetch client, not here.
type ContentExtractionAgent struct {
	fetcher fetch.Fetcher
	logger  *log.Logger
}

func NewContentExtractionAgent(fetcher fetch.Fetcher, logger *log.Logger) *ContentExtractionAgent {
	if logger == nil {
		logger = log.New(log.Writer(), "[EXTRACT] ", log.LstdFlags)
	}
	return &ContentExtractionAgent{fetcher: fetcher, logger: logger}
}

func (a *ContentExtractionAgent) Execute(ctx context.Context, in ExtractionInput) Result[ExtractionOutput] {
	meta := map[string]any{MetaCorrelationID: in.CorrelationID}

	hasURL := strings.TrimSpace(in.URL) != ""
	hasRaw := strings.TrimSpace(in.RawContent) != ""
	switch {
	case hasURL && hasRaw:
		return failKind[ExtractionOutput](ErrUnsupportedSource,
			"both url and raw_content set; exactly one is required", meta)
	case !hasURL && !hasRaw:
		return failKind[ExtractionOutput](ErrUnsupportedSource,
			"neither url nor raw_content set", meta)
	}

	if hasURL {
		return a.extractURL(ctx, in, meta)
	}
	return a.extractForward(in, meta)
}

func (a *ContentExtractionAgent) extractURL(ctx context.Context, in ExtractionInput, meta map[string]any) Result[ExtractionOutput] {
	t0 := time.Now()
	res, err := a.fetcher.Fetch(ctx, in.URL)
	latency := time.Since(t0)
	meta[MetaLatencyMS] = latency.Milliseconds()

	if err != nil {
		if ctx.Err() != nil {
			return failKind[ExtractionOutput](ErrCancelled, "extraction cancelled: "+ctx.Err().Error(), meta)
		}
		a.logger.Printf("fetch failed: correlation_id=%s url=%s err=%v", in.CorrelationID, in.URL, err)
		return failKind[ExtractionOutput](ErrExtractionFailed,
			fmt.Sprintf("fetching %s: %v", in.URL, err), meta)
	}
	if strings.TrimSpace(res.Markdown) == "" {
		return failKind[ExtractionOutput](ErrExtractionFailed,
			fmt.Sprintf("source %s yielded empty content", in.URL), meta)
	}

	out := ExtractionOutput{
		ContentMarkdown: res.Markdown,
		ContentLength:   len(res.Markdown),
		SourceKind:      SourceKindURL,
		ExtractionMetadata: map[string]any{
			MetaCorrelationID: in.CorrelationID,
			"url":             res.URL,
			"title":           res.Title,
			"byline":          res.Byline,
			"site_name":       res.SiteName,
			"html_hash":       res.HTMLHash,
			"render_ms":       res.RenderMS,
		},
	}
	a.logger.Printf("extracted: correlation_id=%s url=%s chars=%d in %v",
		in.CorrelationID, in.URL, out.ContentLength, latency)
	return Succeed(out, meta)
}

func (a *ContentExtractionAgent) extractForward(in ExtractionInput, meta map[string]any) Result[ExtractionOutput] {
	t0 := time.Now()
	markdown := fetch.ToMarkdown("", in.RawContent, 0)
	meta[MetaLatencyMS] = time.Since(t0).Milliseconds()

	if markdown == "" {
		return failKind[ExtractionOutput](ErrExtractionFailed,
			"forwarded content yielded empty content", meta)
	}

	out := ExtractionOutput{
		ContentMarkdown: markdown,
		ContentLength:   len(markdown),
		SourceKind:      SourceKindForward,
		ExtractionMetadata: map[string]any{
			MetaCorrelationID: in.CorrelationID,
			"raw_length":      len(in.RawContent),
		},
	}
	return Succeed(out, meta)
}

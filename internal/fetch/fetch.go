// Package fetch is the extraction service client: it retrieves a page and
// reduces it to readable markdown-ish text. The pipeline treats it as an
// opaque call; retry policy for transient network failure lives here or in
// the browser, never in the agents.
package fetch

import (
	"context"
	"fmt"
	"time"
)

const (
	DefaultTimeout  = 15 * time.Second
	MaxCharsDefault = 20000
)

// Result is the normalized payload of one fetch.
type Result struct {
	URL      string `json:"url"`
	Title    string `json:"title"`
	Byline   string `json:"byline"`
	SiteName string `json:"site_name"`
	Markdown string `json:"markdown"`
	HTMLHash string `json:"html_hash"`
	RenderMS int    `json:"render_ms"`
}

type Fetcher interface {
	Fetch(ctx context.Context, url string) (Result, error)
}

type FetcherType string

const (
	ChromedpFetcherType FetcherType = "chromedp"
	HTTPFetcherType     FetcherType = "http"
)

// NewFetcher builds a fetcher of the requested type. The http fetcher is for
// environments without a browser; chromedp renders scripted pages first.
func NewFetcher(fetcherType FetcherType, timeout time.Duration, maxChars int) (Fetcher, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if maxChars <= 0 {
		maxChars = MaxCharsDefault
	}

	switch fetcherType {
	case ChromedpFetcherType:
		return &ChromedpFetcher{Timeout: timeout, MaxChars: maxChars}, nil
	case HTTPFetcherType:
		return &HTTPFetcher{Timeout: timeout, MaxChars: maxChars}, nil
	default:
		return nil, fmt.Errorf("unsupported fetcher type: %s", fetcherType)
	}
}

package agent

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/po4yka/bite-size-reader-sub001/internal/fetch"
	"github.com/po4yka/bite-size-reader-sub001/internal/llm"
)

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// scriptedClient replays canned model responses in order and records every
// prompt it receives.
type scriptedClient struct {
	mu        sync.Mutex
	responses []string
	calls     int
	prompts   []string
	onCall    func(n int)
}

func (c *scriptedClient) Generate(ctx context.Context, req llm.Request) (llm.Generation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.onCall != nil {
		c.onCall(c.calls)
	}
	c.prompts = append(c.prompts, req.Prompt)
	if c.calls > len(c.responses) {
		return llm.Generation{}, fmt.Errorf("no scripted response for call %d", c.calls)
	}
	return llm.Generation{
		Text:         c.responses[c.calls-1],
		Model:        "test-model",
		PromptTokens: 100,
		OutputTokens: 50,
		Cost:         0.01,
		Latency:      5 * time.Millisecond,
	}, nil
}

func (c *scriptedClient) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// stubFetcher returns a fixed result or error.
type stubFetcher struct {
	result fetch.Result
	err    error
	calls  int
}

func (f *stubFetcher) Fetch(ctx context.Context, url string) (fetch.Result, error) {
	f.calls++
	if f.err != nil {
		return fetch.Result{}, f.err
	}
	return f.result, nil
}

func validSummaryJSON() string {
	return `{
		"title": "Go Concurrency Patterns",
		"tldr": "Goroutines and channels make concurrent code straightforward to express.",
		"summary_250": "The article walks through goroutines, channels and select, showing how pipelines compose without shared-memory locks.",
		"key_ideas": ["Goroutines are cheap", "Channels transfer ownership"],
		"topic_tags": ["go", "concurrency"],
		"entities": ["Rob Pike"],
		"language": "en",
		"estimated_reading_time_min": 1
	}`
}

// invalidSummaryJSON parses fine but violates the contract (missing title).
func invalidSummaryJSON() string {
	return `{
		"title": "",
		"tldr": "Goroutines and channels make concurrent code straightforward to express.",
		"summary_250": "The article walks through goroutines, channels and select, showing how pipelines compose without shared-memory locks.",
		"key_ideas": ["Goroutines are cheap"],
		"topic_tags": ["go", "concurrency"],
		"language": "en",
		"estimated_reading_time_min": 1
	}`
}

const testArticle = "Go makes concurrent programming practical. Goroutines multiplex onto OS threads and channels coordinate them."

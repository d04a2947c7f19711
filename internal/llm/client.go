// Package llm is the model-generation client consumed by the summarization
// agent. The agent only sees the Client contract; transport, pricing and the
// concurrency bound all live behind it.
package llm

import (
	"context"
	"time"
)

// Request is a single generation call.
type Request struct {
	System string
	Prompt string
	// Model overrides the client's configured model when non-empty.
	Model string
}

// Generation carries the model output plus the accounting the pipeline
// threads through its metadata.
type Generation struct {
	Text         string        `json:"text"`
	Model        string        `json:"model"`
	PromptTokens int64         `json:"prompt_tokens"`
	OutputTokens int64         `json:"output_tokens"`
	Cost         float64       `json:"cost"`
	Latency      time.Duration `json:"latency"`
}

// TotalTokens is prompt plus completion tokens.
func (g Generation) TotalTokens() int64 {
	return g.PromptTokens + g.OutputTokens
}

type Client interface {
	Generate(ctx context.Context, req Request) (Generation, error)
}

// Pricing holds per-model cost rates in USD.
type Pricing struct {
	CostPer1KInput  float64
	CostPer1KOutput float64
}

// Cost computes the USD cost for a token pair.
func (p Pricing) Cost(inputTokens, outputTokens int64) float64 {
	return float64(inputTokens)/1000.0*p.CostPer1KInput +
		float64(outputTokens)/1000.0*p.CostPer1KOutput
}

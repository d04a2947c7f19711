package agent

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/po4yka/bite-size-reader-sub001/internal/contract"
	"github.com/po4yka/bite-size-reader-sub001/internal/llm"
)

// SummarizationInput carries the extracted content into the drafting loop.
type SummarizationInput struct {
	Content       string `json:"content"`
	CorrelationID string `json:"correlation_id"`
	MaxAttempts   int    `json:"max_attempts"`
}

// SummarizationOutput is the accepted summary plus the loop accounting.
// Invariant: 1 <= AttemptsUsed <= MaxAttempts.
type SummarizationOutput struct {
	Summary            contract.Summary `json:"summary"`
	AttemptsUsed       int              `json:"attempts_used"`
	ValidationAttempts int              `json:"validation_attempts"`
}

// loopState is the explicit state of the self-correction machine. An
// enumerated state with a bounded counter keeps cancellation and metadata
// accumulation straightforward to reason about.
type loopState int

const (
	stateDrafting loopState = iota
	stateValidating
	stateRetrying
	stateAccepted
	stateExhausted
)

const summarizeSystemPrompt = `You are a precise summarization assistant. You read an article and produce a structured summary for later retrieval.`

// SummarizationAgent drives the model to a contract-valid summary,
// regenerating with accumulated violation feedback up to MaxAttempts.
type SummarizationAgent struct {
	llm       llm.Client
	validator *ValidationAgent
	logger    *log.Logger
}

func NewSummarizationAgent(client llm.Client, validator *ValidationAgent, logger *log.Logger) *SummarizationAgent {
	if logger == nil {
		logger = log.New(log.Writer(), "[SUMMARIZE] ", log.LstdFlags)
	}
	return &SummarizationAgent{llm: client, validator: validator, logger: logger}
}

func (a *SummarizationAgent) Execute(ctx context.Context, in SummarizationInput) Result[SummarizationOutput] {
	attempts := []AttemptStats{}
	meta := map[string]any{
		MetaCorrelationID: in.CorrelationID,
		MetaAttempts:      attempts,
	}
	finish := func(r Result[SummarizationOutput]) Result[SummarizationOutput] {
		r.Metadata[MetaAttempts] = attempts
		return r
	}

	// Rejected before any model call; a missing or non-positive bound is a
	// caller error, never an unbounded loop.
	if in.MaxAttempts < 1 {
		return finish(failKind[SummarizationOutput](ErrInvalidConfiguration,
			fmt.Sprintf("max_attempts must be >= 1, got %d", in.MaxAttempts), meta))
	}

	var (
		state       = stateDrafting
		lastRaw     string
		lastOutcome ValidationOutcome
	)

	for {
		switch state {
		case stateDrafting:
			// Cancellation aborts before the next model call, never after a
			// partial success.
			if err := ctx.Err(); err != nil {
				return finish(failKind[SummarizationOutput](ErrCancelled,
					"summarization cancelled: "+err.Error(), meta))
			}

			prompt := a.buildPrompt(in.Content, lastRaw, lastOutcome.Violations)
			gen, err := a.llm.Generate(ctx, llm.Request{System: summarizeSystemPrompt, Prompt: prompt})
			if err != nil {
				if ctx.Err() != nil {
					return finish(failKind[SummarizationOutput](ErrCancelled,
						"summarization cancelled: "+ctx.Err().Error(), meta))
				}
				return finish(failKind[SummarizationOutput](ErrGenerationFailed,
					fmt.Sprintf("model call failed on attempt %d: %v", len(attempts)+1, err), meta))
			}

			attempts = append(attempts, AttemptStats{
				Attempt:   len(attempts) + 1,
				LatencyMS: gen.Latency.Milliseconds(),
				Tokens:    gen.TotalTokens(),
				Cost:      gen.Cost,
			})
			lastRaw = gen.Text
			state = stateValidating

		case stateValidating:
			vres := a.validator.Execute([]byte(lastRaw), len(in.Content))
			if !vres.Success {
				// Unparseable candidate; propagated verbatim, not retried.
				return finish(Fail[SummarizationOutput](vres.Err, mergeMetadata(meta, vres.Metadata)))
			}
			lastOutcome = vres.Output
			attempts[len(attempts)-1].Valid = lastOutcome.Valid

			switch {
			case lastOutcome.Valid:
				state = stateAccepted
			case len(attempts) < in.MaxAttempts:
				state = stateRetrying
			default:
				state = stateExhausted
			}

		case stateRetrying:
			a.logger.Printf("retrying: correlation_id=%s attempt=%d violations=%d",
				in.CorrelationID, len(attempts), len(lastOutcome.Violations))
			state = stateDrafting

		case stateAccepted:
			out := SummarizationOutput{
				Summary:            lastOutcome.Summary,
				AttemptsUsed:       len(attempts),
				ValidationAttempts: len(attempts),
			}
			a.logger.Printf("accepted: correlation_id=%s attempts=%d", in.CorrelationID, out.AttemptsUsed)
			return finish(Succeed(out, meta))

		case stateExhausted:
			detail := &ErrorDetail{
				Kind: ErrValidationExhausted,
				Message: fmt.Sprintf("candidate still invalid after %d attempts (%d violations)",
					in.MaxAttempts, len(lastOutcome.Violations)),
				Violations: lastOutcome.Violations,
			}
			return finish(Fail[SummarizationOutput](detail, meta))
		}
	}
}

// buildPrompt renders the content and, on retries, the prior candidate with
// its violations so the regeneration is error-directed rather than blind.
func (a *SummarizationAgent) buildPrompt(content, priorCandidate string, violations []contract.Violation) string {
	var b strings.Builder
	b.WriteString(contract.Instructions())
	b.WriteString("\n\nARTICLE:\n")
	b.WriteString(content)

	if priorCandidate != "" && len(violations) > 0 {
		b.WriteString("\n\nYOUR PREVIOUS ATTEMPT:\n")
		b.WriteString(priorCandidate)
		b.WriteString("\n\nIT VIOLATED THESE RULES; fix every one of them:\n")
		b.WriteString(renderViolations(violations))
	}
	return b.String()
}

// renderViolations produces the concise structured feedback block included in
// retry prompts: one "field [rule]: message" line per violation.
func renderViolations(violations []contract.Violation) string {
	lines := make([]string, len(violations))
	for i, v := range violations {
		lines[i] = "- " + v.String()
	}
	return strings.Join(lines, "\n")
}

package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/po4yka/bite-size-reader-sub001/internal/fetch"
)

func newOrchestrator(fetcher fetch.Fetcher, client *scriptedClient, maxAttempts int) *Orchestrator {
	extractor := NewContentExtractionAgent(fetcher, testLogger())
	summarizer := newSummarizer(client)
	return NewOrchestrator(extractor, summarizer, maxAttempts, nil, testLogger())
}

func TestOrchestratorHappyPath(t *testing.T) {
	fetcher := &stubFetcher{result: fetch.Result{
		URL:      "https://example.com/post",
		Title:    "A Post",
		Markdown: "# A Post\n\n" + testArticle,
	}}
	client := &scriptedClient{responses: []string{invalidSummaryJSON(), validSummaryJSON()}}
	orch := newOrchestrator(fetcher, client, 3)

	res := orch.Execute(context.Background(), OrchestratorInput{
		Source:        SourceRef{URL: "https://example.com/post"},
		CorrelationID: "corr-20",
	})
	if !res.Success {
		t.Fatalf("unexpected failure: %v", res.Err)
	}
	out := res.Output
	if out.Summarization.AttemptsUsed != 2 {
		t.Fatalf("expected 2 attempts, got %d", out.Summarization.AttemptsUsed)
	}
	if out.Extraction.SourceKind != SourceKindURL {
		t.Fatalf("extraction output not carried through: %+v", out.Extraction)
	}
	// Two scripted generations at 150 tokens and $0.01 each.
	if out.TotalTokens != 300 {
		t.Fatalf("expected 300 total tokens, got %d", out.TotalTokens)
	}
	if out.TotalCost < 0.019 || out.TotalCost > 0.021 {
		t.Fatalf("expected total cost ~0.02, got %f", out.TotalCost)
	}
	if res.Metadata[MetaCorrelationID] != "corr-20" {
		t.Fatalf("correlation id not echoed: %v", res.Metadata)
	}
}

func TestOrchestratorShortCircuitsOnExtractionFailure(t *testing.T) {
	fetcher := &stubFetcher{err: errors.New("dns failure")}
	client := &scriptedClient{responses: []string{validSummaryJSON()}}
	orch := newOrchestrator(fetcher, client, 3)

	res := orch.Execute(context.Background(), OrchestratorInput{
		Source:        SourceRef{URL: "https://example.com/post"},
		CorrelationID: "corr-21",
	})
	if res.Success {
		t.Fatal("expected failure")
	}
	if res.Err.Kind != ErrExtractionFailed {
		t.Fatalf("stage failure must propagate verbatim, got %s", res.Err.Kind)
	}
	if client.callCount() != 0 {
		t.Fatalf("a failed extraction must never reach the model, got %d calls", client.callCount())
	}
	if res.Metadata[MetaCorrelationID] != "corr-21" {
		t.Fatalf("correlation id missing from failure metadata: %v", res.Metadata)
	}
}

func TestOrchestratorPropagatesExhaustion(t *testing.T) {
	fetcher := &stubFetcher{result: fetch.Result{Markdown: testArticle}}
	client := &scriptedClient{responses: []string{invalidSummaryJSON(), invalidSummaryJSON()}}
	orch := newOrchestrator(fetcher, client, 2)

	res := orch.Execute(context.Background(), OrchestratorInput{
		Source:        SourceRef{URL: "https://example.com/post"},
		CorrelationID: "corr-22",
	})
	if res.Success || res.Err.Kind != ErrValidationExhausted {
		t.Fatalf("expected %s, got %+v", ErrValidationExhausted, res)
	}
	if len(res.Err.Violations) == 0 {
		t.Fatal("exhaustion violations must survive orchestration")
	}
	attempts := attemptTrajectory(res.Metadata)
	if len(attempts) != 2 {
		t.Fatalf("failure metadata must carry the trajectory, got %d entries", len(attempts))
	}
}

func TestOrchestratorGeneratesCorrelationID(t *testing.T) {
	fetcher := &stubFetcher{result: fetch.Result{Markdown: testArticle}}
	client := &scriptedClient{responses: []string{validSummaryJSON()}}
	orch := newOrchestrator(fetcher, client, 3)

	res := orch.Execute(context.Background(), OrchestratorInput{
		Source: SourceRef{URL: "https://example.com/post"},
	})
	if !res.Success {
		t.Fatalf("unexpected failure: %v", res.Err)
	}
	id, _ := res.Metadata[MetaCorrelationID].(string)
	if id == "" {
		t.Fatal("expected a generated correlation id")
	}
}

func TestOrchestratorForwardedContent(t *testing.T) {
	client := &scriptedClient{responses: []string{validSummaryJSON()}}
	orch := newOrchestrator(&stubFetcher{}, client, 3)

	res := orch.Execute(context.Background(), OrchestratorInput{
		Source:        SourceRef{RawContent: testArticle},
		CorrelationID: "corr-23",
	})
	if !res.Success {
		t.Fatalf("unexpected failure: %v", res.Err)
	}
	if res.Output.Extraction.SourceKind != SourceKindForward {
		t.Fatalf("expected forwarded source kind, got %s", res.Output.Extraction.SourceKind)
	}
}

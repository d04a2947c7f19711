package agent

import (
	"context"
	"strings"
	"testing"
)

func newSummarizer(client *scriptedClient) *SummarizationAgent {
	return NewSummarizationAgent(client, NewValidationAgent(testLogger()), testLogger())
}

func TestSummarizeFirstAttemptValid(t *testing.T) {
	client := &scriptedClient{responses: []string{validSummaryJSON()}}
	agent := newSummarizer(client)

	res := agent.Execute(context.Background(), SummarizationInput{
		Content:       testArticle,
		CorrelationID: "corr-10",
		MaxAttempts:   3,
	})
	if !res.Success {
		t.Fatalf("unexpected failure: %v", res.Err)
	}
	if res.Output.AttemptsUsed != 1 {
		t.Fatalf("expected 1 attempt, got %d", res.Output.AttemptsUsed)
	}
	attempts := res.Metadata[MetaAttempts].([]AttemptStats)
	if len(attempts) != 1 || !attempts[0].Valid {
		t.Fatalf("expected one valid attempt in trajectory, got %+v", attempts)
	}
}

func TestSummarizeRetriesOnInvalidThenAccepts(t *testing.T) {
	client := &scriptedClient{responses: []string{invalidSummaryJSON(), validSummaryJSON()}}
	agent := newSummarizer(client)

	res := agent.Execute(context.Background(), SummarizationInput{
		Content:       testArticle,
		CorrelationID: "corr-11",
		MaxAttempts:   3,
	})
	if !res.Success {
		t.Fatalf("unexpected failure: %v", res.Err)
	}
	if res.Output.AttemptsUsed != 2 {
		t.Fatalf("expected 2 attempts, got %d", res.Output.AttemptsUsed)
	}

	attempts := res.Metadata[MetaAttempts].([]AttemptStats)
	if len(attempts) != 2 {
		t.Fatalf("expected 2 trajectory entries, got %d", len(attempts))
	}
	if attempts[0].Valid || !attempts[1].Valid {
		t.Fatalf("expected invalid then valid, got %+v", attempts)
	}
	if attempts[0].Attempt != 1 || attempts[1].Attempt != 2 {
		t.Fatalf("trajectory must be ordered by attempt number, got %+v", attempts)
	}

	// The retry prompt must carry the prior candidate and its violations.
	retryPrompt := client.prompts[1]
	if !strings.Contains(retryPrompt, "YOUR PREVIOUS ATTEMPT") {
		t.Fatal("retry prompt missing prior candidate section")
	}
	if !strings.Contains(retryPrompt, "title [required]") {
		t.Fatalf("retry prompt missing violation feedback: %q", retryPrompt)
	}
}

func TestSummarizeAcceptsOnFinalAttempt(t *testing.T) {
	client := &scriptedClient{responses: []string{invalidSummaryJSON(), invalidSummaryJSON(), validSummaryJSON()}}
	agent := newSummarizer(client)

	res := agent.Execute(context.Background(), SummarizationInput{
		Content:       testArticle,
		CorrelationID: "corr-12",
		MaxAttempts:   3,
	})
	if !res.Success {
		t.Fatalf("unexpected failure: %v", res.Err)
	}
	if res.Output.AttemptsUsed != 3 {
		t.Fatalf("expected 3 attempts, got %d", res.Output.AttemptsUsed)
	}
	attempts := res.Metadata[MetaAttempts].([]AttemptStats)
	if len(attempts) != 3 {
		t.Fatalf("expected 3 trajectory entries, got %d", len(attempts))
	}
}

func TestSummarizeExhaustsAttempts(t *testing.T) {
	client := &scriptedClient{responses: []string{invalidSummaryJSON(), invalidSummaryJSON()}}
	agent := newSummarizer(client)

	res := agent.Execute(context.Background(), SummarizationInput{
		Content:       testArticle,
		CorrelationID: "corr-13",
		MaxAttempts:   2,
	})
	if res.Success {
		t.Fatal("expected exhaustion")
	}
	if res.Err.Kind != ErrValidationExhausted {
		t.Fatalf("expected %s, got %s", ErrValidationExhausted, res.Err.Kind)
	}
	if len(res.Err.Violations) == 0 {
		t.Fatal("exhaustion must carry the final validation outcome's violations")
	}
	if res.Err.Violations[0].FieldPath != "title" {
		t.Fatalf("violations must be the last outcome's, unmodified: %+v", res.Err.Violations)
	}
	if client.callCount() != 2 {
		t.Fatalf("expected exactly 2 model calls, got %d", client.callCount())
	}
	attempts := res.Metadata[MetaAttempts].([]AttemptStats)
	if len(attempts) != 2 {
		t.Fatalf("failure must still carry the full trajectory, got %d entries", len(attempts))
	}
}

func TestSummarizeSingleAttemptBound(t *testing.T) {
	client := &scriptedClient{responses: []string{invalidSummaryJSON()}}
	agent := newSummarizer(client)

	res := agent.Execute(context.Background(), SummarizationInput{
		Content:       testArticle,
		CorrelationID: "corr-14",
		MaxAttempts:   1,
	})
	if res.Success || res.Err.Kind != ErrValidationExhausted {
		t.Fatalf("expected exhaustion after single attempt, got %+v", res)
	}
	if client.callCount() != 1 {
		t.Fatalf("max_attempts=1 must allow exactly one model call, got %d", client.callCount())
	}
}

func TestSummarizeRejectsBadMaxAttempts(t *testing.T) {
	client := &scriptedClient{responses: []string{validSummaryJSON()}}
	agent := newSummarizer(client)

	for _, n := range []int{0, -1} {
		res := agent.Execute(context.Background(), SummarizationInput{
			Content:       testArticle,
			CorrelationID: "corr-15",
			MaxAttempts:   n,
		})
		if res.Success || res.Err.Kind != ErrInvalidConfiguration {
			t.Fatalf("max_attempts=%d: expected %s, got %+v", n, ErrInvalidConfiguration, res)
		}
	}
	if client.callCount() != 0 {
		t.Fatalf("invalid configuration must be rejected before any model call, got %d calls", client.callCount())
	}
}

func TestSummarizeCancelledBetweenAttempts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	client := &scriptedClient{
		responses: []string{invalidSummaryJSON(), validSummaryJSON()},
	}
	// Cancel while attempt 1 is in flight; the loop must stop before the
	// attempt-2 model call.
	client.onCall = func(n int) {
		if n == 1 {
			cancel()
		}
	}
	agent := newSummarizer(client)

	res := agent.Execute(ctx, SummarizationInput{
		Content:       testArticle,
		CorrelationID: "corr-16",
		MaxAttempts:   3,
	})
	if res.Success || res.Err.Kind != ErrCancelled {
		t.Fatalf("expected %s, got %+v", ErrCancelled, res)
	}
	if client.callCount() != 1 {
		t.Fatalf("cancellation must prevent the next model call, got %d calls", client.callCount())
	}
	attempts := res.Metadata[MetaAttempts].([]AttemptStats)
	if len(attempts) != 1 {
		t.Fatalf("completed attempts must stay in the trajectory, got %d entries", len(attempts))
	}
}

func TestSummarizeValidationCrashPropagates(t *testing.T) {
	client := &scriptedClient{responses: []string{"definitely not json"}}
	agent := newSummarizer(client)

	res := agent.Execute(context.Background(), SummarizationInput{
		Content:       testArticle,
		CorrelationID: "corr-17",
		MaxAttempts:   3,
	})
	if res.Success {
		t.Fatal("expected failure")
	}
	if res.Err.Kind != ErrValidationCrashed {
		t.Fatalf("crash must propagate verbatim, got %s", res.Err.Kind)
	}
	if client.callCount() != 1 {
		t.Fatalf("a validation crash is not retried, got %d calls", client.callCount())
	}
}

func TestSummarizeGenerationFailure(t *testing.T) {
	client := &scriptedClient{} // no scripted responses: every call errors
	agent := newSummarizer(client)

	res := agent.Execute(context.Background(), SummarizationInput{
		Content:       testArticle,
		CorrelationID: "corr-18",
		MaxAttempts:   3,
	})
	if res.Success || res.Err.Kind != ErrGenerationFailed {
		t.Fatalf("expected %s, got %+v", ErrGenerationFailed, res)
	}
}

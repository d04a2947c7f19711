package agent

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/po4yka/bite-size-reader-sub001/internal/agent/telemetry"
)

// SourceRef is the single input to a pipeline run. Exactly one of URL and
// RawContent must be set; the orchestrator hands the pair to extraction
// unchanged and lets it enforce that.
type SourceRef struct {
	URL        string `json:"url,omitempty"`
	RawContent string `json:"raw_content,omitempty"`
}

// OrchestratorInput starts a pipeline run. A blank CorrelationID is replaced
// with a fresh one so every run is traceable.
type OrchestratorInput struct {
	Source        SourceRef `json:"source"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// OrchestratorOutput aggregates the stage outputs plus run totals.
type OrchestratorOutput struct {
	Extraction     ExtractionOutput    `json:"extraction"`
	Summarization  SummarizationOutput `json:"summarization"`
	TotalLatencyMS int64               `json:"total_latency_ms"`
	TotalTokens    int64               `json:"total_tokens"`
	TotalCost      float64             `json:"total_cost"`
}

// Orchestrator sequences extraction then summarization. Stage failures are
// propagated verbatim; the orchestrator never reclassifies an ErrorDetail,
// it only merges metadata and accounts totals.
type Orchestrator struct {
	extractor   *ContentExtractionAgent
	summarizer  *SummarizationAgent
	maxAttempts int
	telemetry   *telemetry.Telemetry
	logger      *log.Logger
}

func NewOrchestrator(extractor *ContentExtractionAgent, summarizer *SummarizationAgent, maxAttempts int, tel *telemetry.Telemetry, logger *log.Logger) *Orchestrator {
	if logger == nil {
		logger = log.New(log.Writer(), "[ORCHESTRATOR] ", log.LstdFlags)
	}
	return &Orchestrator{
		extractor:   extractor,
		summarizer:  summarizer,
		maxAttempts: maxAttempts,
		telemetry:   tel,
		logger:      logger,
	}
}

func (o *Orchestrator) Execute(ctx context.Context, in OrchestratorInput) Result[OrchestratorOutput] {
	start := time.Now()
	correlationID := in.CorrelationID
	if correlationID == "" {
		correlationID = uuid.New().String()
	}

	tracer := otel.Tracer("bitesize/orchestrator")
	ctx, span := tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("correlation_id", correlationID),
		attribute.Bool("source.is_url", in.Source.URL != ""),
	))
	defer span.End()

	o.logger.Printf("run started: correlation_id=%s", correlationID)

	ctx, extractSpan := tracer.Start(ctx, "pipeline.extract")
	ext := o.extractor.Execute(ctx, ExtractionInput{
		URL:           in.Source.URL,
		RawContent:    in.Source.RawContent,
		CorrelationID: correlationID,
	})
	extractSpan.End()

	meta := map[string]any{MetaCorrelationID: correlationID}
	meta = mergeMetadata(meta, ext.Metadata)

	if !ext.Success {
		return o.finish(ctx, start, correlationID, Fail[OrchestratorOutput](ext.Err, meta))
	}

	ctx, sumSpan := tracer.Start(ctx, "pipeline.summarize")
	sum := o.summarizer.Execute(ctx, SummarizationInput{
		Content:       ext.Output.ContentMarkdown,
		CorrelationID: correlationID,
		MaxAttempts:   o.maxAttempts,
	})
	sumSpan.End()

	meta = mergeMetadata(meta, sum.Metadata)

	if !sum.Success {
		return o.finish(ctx, start, correlationID, Fail[OrchestratorOutput](sum.Err, meta))
	}

	out := OrchestratorOutput{
		Extraction:    ext.Output,
		Summarization: sum.Output,
	}
	out.TotalLatencyMS = time.Since(start).Milliseconds()
	for _, a := range attemptTrajectory(meta) {
		out.TotalTokens += a.Tokens
		out.TotalCost += a.Cost
	}

	return o.finish(ctx, start, correlationID, Succeed(out, meta))
}

// finish records telemetry and logs the outcome. It is the single exit path
// so success and every failure get identical accounting.
func (o *Orchestrator) finish(ctx context.Context, start time.Time, correlationID string, r Result[OrchestratorOutput]) Result[OrchestratorOutput] {
	duration := time.Since(start)

	event := telemetry.PipelineEvent{
		CorrelationID: correlationID,
		Success:       r.Success,
		Duration:      duration,
	}
	trajectory := attemptTrajectory(r.Metadata)
	event.Attempts = len(trajectory)
	for _, a := range trajectory {
		event.Tokens += a.Tokens
		event.Cost += a.Cost
	}
	if !r.Success && r.Err != nil {
		event.ErrorKind = string(r.Err.Kind)
		o.logger.Printf("run failed: correlation_id=%s kind=%s in %v", correlationID, r.Err.Kind, duration)
	} else {
		o.logger.Printf("run finished: correlation_id=%s attempts=%d tokens=%d cost=$%.4f in %v",
			correlationID, event.Attempts, event.Tokens, event.Cost, duration)
	}
	o.telemetry.RecordPipelineEvent(ctx, event)
	return r
}

// attemptTrajectory reads the ordered attempt stats out of merged metadata.
func attemptTrajectory(meta map[string]any) []AttemptStats {
	if meta == nil {
		return nil
	}
	attempts, _ := meta[MetaAttempts].([]AttemptStats)
	return attempts
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/po4yka/bite-size-reader-sub001/config"
	"github.com/po4yka/bite-size-reader-sub001/internal/agent"
	"github.com/po4yka/bite-size-reader-sub001/internal/agent/telemetry"
	"github.com/po4yka/bite-size-reader-sub001/internal/contract"
	"github.com/po4yka/bite-size-reader-sub001/internal/dedup"
	dedupinmemory "github.com/po4yka/bite-size-reader-sub001/internal/dedup/inmemory"
	dedupredis "github.com/po4yka/bite-size-reader-sub001/internal/dedup/redis"
	"github.com/po4yka/bite-size-reader-sub001/internal/fetch"
	"github.com/po4yka/bite-size-reader-sub001/internal/llm"
	"github.com/po4yka/bite-size-reader-sub001/internal/store"
)

func processCMD() *cobra.Command {
	var cfgPath string
	var forwardFile string
	var skipDedup bool

	var process = &cobra.Command{
		Use:   "process [url]",
		Short: "Extract, summarize and store a single article",
		Long: `Process runs the full pipeline for one source: a URL argument, or
forwarded text via --forward (use "-" for stdin).`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)

			var rawURL, rawContent string
			if len(args) == 1 {
				rawURL = args[0]
			}
			if forwardFile != "" {
				data, err := readForward(forwardFile)
				if err != nil {
					return err
				}
				rawContent = data
			}
			if rawURL == "" && rawContent == "" {
				return fmt.Errorf("nothing to process: pass a url argument or --forward")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runPipeline(ctx, cfg, rawURL, rawContent, skipDedup)
		},
	}
	process.Flags().StringVar(&forwardFile, "forward", "", "file with forwarded content, or - for stdin")
	process.Flags().BoolVar(&skipDedup, "force", false, "process even if the source was seen recently")
	process.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return process
}

func readForward(path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading forward file: %w", err)
	}
	return string(data), nil
}

func runPipeline(ctx context.Context, cfg *config.Config, rawURL, rawContent string, skipDedup bool) error {
	logger := log.New(os.Stderr, "[BITESIZE] ", log.LstdFlags)

	fingerprint, err := sourceFingerprint(rawURL, rawContent)
	if err != nil {
		return err
	}

	dedupStore, err := newDedupStore(cfg.Dedup)
	if err != nil {
		return err
	}
	ttl := time.Duration(cfg.Dedup.TTLHours) * time.Hour

	if !skipDedup {
		status, err := dedupStore.Acquire(ctx, fingerprint, ttl)
		if err != nil {
			return fmt.Errorf("dedup check failed: %w", err)
		}
		switch status {
		case dedup.StatusInFlight:
			return fmt.Errorf("this source is being processed right now; try again shortly")
		case dedup.StatusDone:
			if err := printCachedSummary(ctx, cfg, dedupStore, fingerprint, logger); err == nil {
				return nil
			}
			logger.Printf("cached summary unavailable, reprocessing")
			if _, err := dedupStore.Acquire(ctx, fingerprint, ttl); err != nil {
				return fmt.Errorf("dedup check failed: %w", err)
			}
		}
	}

	orch, tel, err := buildOrchestrator(cfg)
	if err != nil {
		_ = dedupStore.Release(ctx, fingerprint)
		return err
	}
	defer tel.Shutdown()

	res := orch.Execute(ctx, agent.OrchestratorInput{
		Source: agent.SourceRef{URL: rawURL, RawContent: rawContent},
	})
	if !res.Success {
		_ = dedupStore.Release(ctx, fingerprint)
		return userError(res.Err)
	}

	summaryID := persist(ctx, cfg, fingerprint, res, logger)
	if err := dedupStore.Complete(ctx, fingerprint, summaryID, ttl); err != nil {
		logger.Printf("failed to mark fingerprint done: %v", err)
	}

	return printResult(res)
}

func sourceFingerprint(rawURL, rawContent string) (string, error) {
	if rawURL != "" {
		fp, err := dedup.FingerprintURL(rawURL)
		if err != nil {
			return "", fmt.Errorf("this does not look like a valid URL: %w", err)
		}
		return fp, nil
	}
	return dedup.FingerprintContent(rawContent), nil
}

func newDedupStore(cfg config.DedupConfig) (dedup.Store, error) {
	switch cfg.Store {
	case "redis":
		addr := fmt.Sprintf("%s:%s", cfg.Redis.Host, cfg.Redis.Port)
		return dedupredis.NewStore(addr, cfg.Redis.Pass, cfg.Redis.DB), nil
	case "inmemory", "":
		return dedupinmemory.NewStore(), nil
	default:
		return nil, fmt.Errorf("unsupported dedup store: %s", cfg.Store)
	}
}

func buildOrchestrator(cfg *config.Config) (*agent.Orchestrator, *telemetry.Telemetry, error) {
	fetcher, err := fetch.NewFetcher(fetch.FetcherType(cfg.Extraction.Fetcher), cfg.Extraction.Timeout, cfg.Extraction.MaxChars)
	if err != nil {
		return nil, nil, err
	}

	if cfg.LLM.APIKey == "" {
		return nil, nil, fmt.Errorf("llm.api_key is not configured (set BITESIZE_LLM_API_KEY)")
	}
	pricing := llm.Pricing{
		CostPer1KInput:  cfg.LLM.CostPer1KInput,
		CostPer1KOutput: cfg.LLM.CostPer1KOutput,
	}
	client := llm.NewLimited(
		llm.NewOpenRouterClient(cfg.LLM.APIKey, cfg.LLM.BaseURL, cfg.LLM.Model,
			cfg.LLM.Temperature, cfg.LLM.MaxTokens, pricing, cfg.LLM.Timeout),
		cfg.LLM.MaxConcurrentCalls)

	tel := telemetry.New(cfg.Telemetry)

	extractor := agent.NewContentExtractionAgent(fetcher, nil)
	validator := agent.NewValidationAgent(nil)
	summarizer := agent.NewSummarizationAgent(client, validator, nil)
	orch := agent.NewOrchestrator(extractor, summarizer, cfg.Summarize.MaxAttempts, tel, nil)
	return orch, tel, nil
}

// persist stores the article and summary when postgres is configured. Runs
// stay usable without a database; persistence failures are logged, not fatal.
func persist(ctx context.Context, cfg *config.Config, fingerprint string, res agent.Result[agent.OrchestratorOutput], logger *log.Logger) string {
	dsn, err := cfg.Storage.Postgres.DSN()
	if err != nil {
		return ""
	}
	st, err := store.NewWithDSN(ctx, dsn)
	if err != nil {
		logger.Printf("postgres unavailable, skipping persistence: %v", err)
		return ""
	}
	defer st.Close()

	out := res.Output
	correlationID, _ := res.Metadata[agent.MetaCorrelationID].(string)

	articleID, err := st.SaveArticle(ctx, store.Article{
		Fingerprint:     fingerprint,
		SourceKind:      string(out.Extraction.SourceKind),
		URL:             stringFromMeta(out.Extraction.ExtractionMetadata, "url"),
		Title:           stringFromMeta(out.Extraction.ExtractionMetadata, "title"),
		SiteName:        stringFromMeta(out.Extraction.ExtractionMetadata, "site_name"),
		HTMLHash:        stringFromMeta(out.Extraction.ExtractionMetadata, "html_hash"),
		ContentMarkdown: out.Extraction.ContentMarkdown,
		ContentLength:   out.Extraction.ContentLength,
		Metadata:        out.Extraction.ExtractionMetadata,
	})
	if err == store.ErrDuplicate {
		existing, lookupErr := st.GetArticleByFingerprint(ctx, fingerprint)
		if lookupErr != nil {
			logger.Printf("article lookup after duplicate failed: %v", lookupErr)
			return ""
		}
		articleID = existing.ID
	} else if err != nil {
		logger.Printf("failed to save article: %v", err)
		return ""
	}

	summaryID, err := st.SaveSummary(ctx, store.SummaryRecord{
		ArticleID:       articleID,
		CorrelationID:   correlationID,
		ContractVersion: contract.Version,
		Summary:         out.Summarization.Summary,
		AttemptsUsed:    out.Summarization.AttemptsUsed,
		TotalTokens:     out.TotalTokens,
		TotalCost:       out.TotalCost,
		TotalLatencyMS:  out.TotalLatencyMS,
	})
	if err != nil {
		logger.Printf("failed to save summary: %v", err)
		return ""
	}
	return summaryID
}

func printCachedSummary(ctx context.Context, cfg *config.Config, dedupStore dedup.Store, fingerprint string, logger *log.Logger) error {
	entry, found, err := dedupStore.Lookup(ctx, fingerprint)
	if err != nil || !found || entry.SummaryID == "" {
		return fmt.Errorf("no cached summary")
	}
	dsn, err := cfg.Storage.Postgres.DSN()
	if err != nil {
		return err
	}
	st, err := store.NewWithDSN(ctx, dsn)
	if err != nil {
		return err
	}
	defer st.Close()

	rec, err := st.GetSummaryByID(ctx, entry.SummaryID)
	if err != nil {
		return err
	}
	logger.Printf("returning cached summary from %s", rec.CreatedAt.Format(time.RFC3339))
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(rec.Summary)
}

func printResult(res agent.Result[agent.OrchestratorOutput]) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res.Output.Summarization.Summary)
}

// userError maps the pipeline error taxonomy to messages a person pasting a
// link can act on.
func userError(detail *agent.ErrorDetail) error {
	switch detail.Kind {
	case agent.ErrUnsupportedSource:
		return fmt.Errorf("unsupported source: %s", detail.Message)
	case agent.ErrExtractionFailed:
		return fmt.Errorf("could not read the article; the page may be paywalled or unreachable (%s)", detail.Message)
	case agent.ErrInvalidConfiguration:
		return fmt.Errorf("configuration error: %s", detail.Message)
	case agent.ErrGenerationFailed:
		return fmt.Errorf("the model call failed; check connectivity and api key (%s)", detail.Message)
	case agent.ErrValidationCrashed:
		return fmt.Errorf("the model returned an unreadable response: %s", detail.Message)
	case agent.ErrValidationExhausted:
		return fmt.Errorf("could not produce a summary meeting quality rules after retries (%d unresolved issues)", len(detail.Violations))
	case agent.ErrCancelled:
		return fmt.Errorf("cancelled")
	default:
		return fmt.Errorf("%s: %s", detail.Kind, detail.Message)
	}
}

func stringFromMeta(meta map[string]any, key string) string {
	v, _ := meta[key].(string)
	return v
}

// Package telemetry provides monitoring and cost tracking for pipeline runs.
package telemetry

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/po4yka/bite-size-reader-sub001/config"
)

// Telemetry aggregates pipeline metrics and costs.
type Telemetry struct {
	config   config.TelemetryConfig
	logger   *log.Logger
	registry *prometheus.Registry

	runsTotal     *prometheus.CounterVec
	tokensTotal   prometheus.Counter
	costTotal     prometheus.Counter
	attemptsCount prometheus.Histogram
	runLatency    prometheus.Histogram

	mu sync.RWMutex
	// Running totals kept alongside prometheus for log reports.
	totalRuns      int64
	successfulRuns int64
	failedRuns     int64
	totalTokens    int64
	totalCost      float64
}

// PipelineEvent records one orchestrator run end to end.
type PipelineEvent struct {
	CorrelationID string
	Success       bool
	ErrorKind     string
	Duration      time.Duration
	Tokens        int64
	Cost          float64
	Attempts      int
}

// New creates a telemetry instance with its own prometheus registry; when
// enabled and a metrics port is configured it serves /metrics in the
// background.
func New(cfg config.TelemetryConfig) *Telemetry {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	t := &Telemetry{
		config:   cfg,
		logger:   log.New(log.Writer(), "[TELEMETRY] ", log.LstdFlags),
		registry: registry,
		runsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bitesize_pipeline_runs_total",
			Help: "Pipeline runs by outcome.",
		}, []string{"outcome"}),
		tokensTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "bitesize_tokens_total",
			Help: "Total model tokens consumed.",
		}),
		costTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "bitesize_cost_usd_total",
			Help: "Total estimated model cost in USD.",
		}),
		attemptsCount: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "bitesize_summarize_attempts",
			Help:    "Drafting attempts per run.",
			Buckets: []float64{1, 2, 3, 4, 5},
		}),
		runLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "bitesize_pipeline_duration_seconds",
			Help:    "End-to-end pipeline latency.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	if cfg.Enabled && cfg.MetricsPort > 0 {
		go t.serveMetrics()
	}

	return t
}

// RecordPipelineEvent records a complete pipeline run.
func (t *Telemetry) RecordPipelineEvent(ctx context.Context, event PipelineEvent) {
	if t == nil || !t.config.Enabled {
		return
	}

	outcome := "success"
	if !event.Success {
		outcome = event.ErrorKind
		if outcome == "" {
			outcome = "failure"
		}
	}
	t.runsTotal.WithLabelValues(outcome).Inc()
	t.tokensTotal.Add(float64(event.Tokens))
	t.costTotal.Add(event.Cost)
	if event.Attempts > 0 {
		t.attemptsCount.Observe(float64(event.Attempts))
	}
	t.runLatency.Observe(event.Duration.Seconds())

	t.mu.Lock()
	t.totalRuns++
	if event.Success {
		t.successfulRuns++
	} else {
		t.failedRuns++
	}
	t.totalTokens += event.Tokens
	t.totalCost += event.Cost
	t.mu.Unlock()

	t.logger.Printf("Pipeline Event: ID=%s, Success=%t, Duration=%v, Cost=$%.4f, Tokens=%d, Attempts=%d",
		event.CorrelationID, event.Success, event.Duration, event.Cost, event.Tokens, event.Attempts)
}

// CostSummary provides a snapshot of accumulated usage.
type CostSummary struct {
	TotalRuns      int64
	SuccessfulRuns int64
	FailedRuns     int64
	TotalTokens    int64
	TotalCost      float64
}

// GetCostSummary returns current totals.
func (t *Telemetry) GetCostSummary() CostSummary {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return CostSummary{
		TotalRuns:      t.totalRuns,
		SuccessfulRuns: t.successfulRuns,
		FailedRuns:     t.failedRuns,
		TotalTokens:    t.totalTokens,
		TotalCost:      t.totalCost,
	}
}

// Handler exposes the metrics endpoint, mainly for embedding and tests.
func (t *Telemetry) Handler() http.Handler {
	return promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{})
}

func (t *Telemetry) serveMetrics() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", t.Handler())
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", t.config.MetricsPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		t.logger.Printf("metrics server error: %v", err)
	}
}

// Shutdown emits the final usage report.
func (t *Telemetry) Shutdown() {
	if t == nil || !t.config.Enabled {
		return
	}
	s := t.GetCostSummary()
	t.logger.Printf("Final Report: Runs=%d/%d successful, Tokens=%d, Cost=$%.4f",
		s.SuccessfulRuns, s.TotalRuns, s.TotalTokens, s.TotalCost)
}

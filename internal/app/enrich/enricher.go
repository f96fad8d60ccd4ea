// Package enrich is the one place permitted to call the generative
// model. It runs exactly once per scan, at scan-creation time; every
// read path works from the stored output. Only the scan-creation
// service holds an Enricher.
package enrich

import (
	"context"
	"time"

	"github.com/vibescan/api/internal/app/report"
	"github.com/vibescan/api/internal/config"
	"github.com/vibescan/api/internal/infra/llm"
	"github.com/vibescan/api/internal/metrics"
	"github.com/vibescan/api/pkg/domain/finding"
	"github.com/vibescan/api/pkg/logger"
)

// Enricher augments normalized findings with summaries, fix prompts,
// and false-positive classification. Rule coverage first, then one
// batched model call per chunk, then the fallback floor.
type Enricher struct {
	provider    llm.Provider // nil when no model is configured
	log         *logger.Logger
	maxBatch    int
	callTimeout time.Duration
	maxTokens   int
	temperature float64
}

// New creates an Enricher. provider may be nil; enrichment then relies
// on rules and the fallback summary only.
func New(provider llm.Provider, cfg config.EnrichmentConfig, log *logger.Logger) *Enricher {
	maxBatch := cfg.MaxBatchSize
	if maxBatch < 1 {
		maxBatch = 25
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Enricher{
		provider:    provider,
		log:         log.With("service", "enrich"),
		maxBatch:    maxBatch,
		callTimeout: timeout,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}
}

// EnrichOnce enriches all findings of one scan. Output preserves input
// length and order, and every element ends with non-empty SummaryText
// and GeneratedBy regardless of model availability.
func (e *Enricher) EnrichOnce(ctx context.Context, findings []finding.Finding, patterns []finding.FalsePositivePattern) []finding.Stored {
	started := time.Now()
	defer func() {
		metrics.EnrichmentDuration.Observe(time.Since(started).Seconds())
	}()

	generatedAt := time.Now().UTC()
	if len(findings) == 0 {
		return []finding.Stored{}
	}

	platform := InferHostingPlatform(findings)

	var needModel []int
	stored := make([]finding.Stored, len(findings))
	for i, f := range findings {
		row := finding.Stored{
			Finding:     f,
			DetailsText: f.Explanation,
			GeneratedAt: generatedAt,
		}

		switch {
		case f.Scanner == finding.ScannerGitleaks:
			// Secrets: fixed summary, platform-aware fix prompt, no model.
			row.SummaryText = GitleaksSummary
			row.FixPrompt = SecretsFixPrompt(platform, f.File, f.Line)
			row.GeneratedBy = finding.GeneratedByRules
		default:
			if curated := report.CuratedSummary(f.CheckID); curated != "" {
				row.SummaryText = curated
				row.GeneratedBy = finding.GeneratedByRules
			} else {
				needModel = append(needModel, i)
			}
		}

		stored[i] = row
	}

	// Pattern pass: first matching pattern wins and beats any later
	// model-derived classification.
	for i := range stored {
		for _, pattern := range patterns {
			if pattern.Matches(findings[i]) {
				likelihood := pattern.Likelihood()
				stored[i].FalsePositiveLikelihood = &likelihood
				if reason := pattern.Explanation; reason != "" {
					stored[i].FalsePositiveReason = &reason
				}
				break
			}
		}
	}

	// Chunked model pass: one request per chunk, sequential, each
	// chunk independently subject to the success/fallback contract.
	for start := 0; start < len(needModel); start += e.maxBatch {
		end := min(start+e.maxBatch, len(needModel))
		chunk := needModel[start:end]

		results, ok := e.callModel(ctx, findings, chunk)
		if !ok {
			continue
		}
		for _, r := range results {
			row := &stored[r.Index]
			row.SummaryText = r.SummaryText
			if r.FixPrompt != "" {
				row.FixPrompt = r.FixPrompt
			}
			row.GeneratedBy = finding.GeneratedByLLM
			if row.FalsePositiveLikelihood == nil {
				likelihood := r.FalsePositiveLikelihood
				row.FalsePositiveLikelihood = &likelihood
				row.FalsePositiveReason = r.FalsePositiveReason
			}
		}
	}

	// Fallback floor: the scan must complete with a usable report even
	// with zero external-service availability.
	for i := range stored {
		if stored[i].SummaryText == "" || stored[i].GeneratedBy == "" {
			stored[i].SummaryText = FallbackSummary
			stored[i].GeneratedBy = finding.GeneratedByFallback
		}
		metrics.FindingsEnriched.WithLabelValues(string(stored[i].GeneratedBy)).Inc()
	}

	return stored
}

// callModel issues one batched request for the chunk. Any failure of
// any kind returns ok=false; the caller falls through to the fallback.
func (e *Enricher) callModel(ctx context.Context, findings []finding.Finding, indices []int) ([]batchResult, bool) {
	if e.provider == nil || len(indices) == 0 {
		return nil, false
	}

	callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()

	resp, err := e.provider.Complete(callCtx, llm.CompletionRequest{
		UserPrompt:  buildBatchPrompt(findings, indices),
		MaxTokens:   e.maxTokens,
		Temperature: e.temperature,
	})
	if err != nil {
		metrics.ModelCalls.WithLabelValues("error").Inc()
		e.log.WithContext(ctx).WithError(err).Warn("model enrichment call failed",
			"provider", e.provider.Name(),
			"batch_size", len(indices))
		return nil, false
	}

	results, ok := parseBatchResults(resp.Content, indices)
	if !ok {
		metrics.ModelCalls.WithLabelValues("malformed").Inc()
		e.log.WithContext(ctx).Warn("model returned malformed enrichment batch",
			"provider", e.provider.Name(),
			"batch_size", len(indices))
		return nil, false
	}

	metrics.ModelCalls.WithLabelValues("success").Inc()
	return results, true
}

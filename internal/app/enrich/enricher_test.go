package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vibescan/api/internal/config"
	"github.com/vibescan/api/internal/infra/llm"
	"github.com/vibescan/api/pkg/domain/finding"
	"github.com/vibescan/api/pkg/logger"
)

// fakeProvider counts calls and replies from a script, one entry per
// call. A nil respond function fails the call.
type fakeProvider struct {
	calls   int
	prompts []string
	respond func(call int, req llm.CompletionRequest) (*llm.CompletionResponse, error)
}

func (p *fakeProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.calls++
	p.prompts = append(p.prompts, req.UserPrompt)
	if p.respond == nil {
		return nil, errors.New("provider unavailable")
	}
	return p.respond(p.calls, req)
}

func (p *fakeProvider) Name() string    { return "fake" }
func (p *fakeProvider) Model() string   { return "fake-model" }
func (p *fakeProvider) Validate() error { return nil }

// promptIndexRe extracts the finding indices embedded in a batch prompt.
var promptIndexRe = regexp.MustCompile(`\[(\d+)\] rule_id:`)

// replyForPrompt builds a well-formed JSON reply covering exactly the
// indices the prompt asked about.
func replyForPrompt(prompt string) string {
	var items []map[string]any
	for _, m := range promptIndexRe.FindAllStringSubmatch(prompt, -1) {
		items = append(items, map[string]any{
			"index":                   mustAtoi(m[1]),
			"summaryText":             "Model summary for " + m[1],
			"fixPrompt":               "Model fix prompt for " + m[1],
			"falsePositiveLikelihood": "confirmed_issue",
			"falsePositiveReason":     nil,
		})
	}
	out, _ := json.Marshal(items)
	return string(out)
}

func mustAtoi(s string) int {
	var n int
	fmt.Sscanf(s, "%d", &n)
	return n
}

func newTestEnricher(p llm.Provider, maxBatch int) *Enricher {
	return New(p, config.EnrichmentConfig{
		Timeout:      time.Second,
		MaxBatchSize: maxBatch,
	}, logger.NewNop())
}

func unknownFinding(n int) finding.Finding {
	return finding.Finding{
		CheckID:     fmt.Sprintf("custom.rule-%d", n),
		Title:       fmt.Sprintf("Rule %d", n),
		Explanation: "Something odd was detected.",
		File:        fmt.Sprintf("src/file%d.js", n),
		Severity:    finding.SeverityMedium,
		Scanner:     finding.ScannerSemgrep,
	}
}

func TestEnrichOnceEmptyInput(t *testing.T) {
	e := newTestEnricher(&fakeProvider{}, 0)
	out := e.EnrichOnce(context.Background(), nil, nil)
	assert.Empty(t, out)
}

func TestEnrichOnceCuratedBeatsModel(t *testing.T) {
	p := &fakeProvider{}
	e := newTestEnricher(p, 0)

	findings := []finding.Finding{{
		CheckID:     "rules.sql-injection",
		Title:       "Sql Injection",
		Explanation: "Query built from input.",
		File:        "db.py",
		Severity:    finding.SeverityHigh,
		Scanner:     finding.ScannerSemgrep,
	}}

	out := e.EnrichOnce(context.Background(), findings, nil)
	require.Len(t, out, 1)
	assert.Equal(t, finding.GeneratedByRules, out[0].GeneratedBy)
	assert.NotEmpty(t, out[0].SummaryText)
	// Curated coverage never reaches the model.
	assert.Zero(t, p.calls)
}

func TestEnrichOnceGitleaksNeverCallsModel(t *testing.T) {
	p := &fakeProvider{}
	e := newTestEnricher(p, 0)

	line := 3
	findings := []finding.Finding{{
		CheckID:  "aws-access-key",
		Title:    "AWS access key",
		File:     "vercel.json",
		Line:     &line,
		Severity: finding.SeverityHigh,
		Scanner:  finding.ScannerGitleaks,
	}}

	out := e.EnrichOnce(context.Background(), findings, nil)
	require.Len(t, out, 1)
	assert.Equal(t, GitleaksSummary, out[0].SummaryText)
	assert.Equal(t, finding.GeneratedByRules, out[0].GeneratedBy)
	// Platform inferred from the flagged file steers the fix prompt.
	assert.Contains(t, out[0].FixPrompt, "Vercel")
	assert.Zero(t, p.calls)
}

func TestEnrichOnceSingleBatchedCall(t *testing.T) {
	p := &fakeProvider{}
	p.respond = func(_ int, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		return &llm.CompletionResponse{Content: replyForPrompt(req.UserPrompt)}, nil
	}
	e := newTestEnricher(p, 0)

	findings := make([]finding.Finding, 5)
	for i := range findings {
		findings[i] = unknownFinding(i)
	}

	out := e.EnrichOnce(context.Background(), findings, nil)
	require.Len(t, out, 5)
	// All uncovered findings ride one request.
	assert.Equal(t, 1, p.calls)
	for i, row := range out {
		assert.Equal(t, finding.GeneratedByLLM, row.GeneratedBy, i)
		assert.Equal(t, fmt.Sprintf("Model summary for %d", i), row.SummaryText)
		assert.Equal(t, fmt.Sprintf("Model fix prompt for %d", i), row.FixPrompt)
	}
}

func TestEnrichOnceChunksLargeScans(t *testing.T) {
	p := &fakeProvider{}
	p.respond = func(_ int, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		return &llm.CompletionResponse{Content: replyForPrompt(req.UserPrompt)}, nil
	}
	e := newTestEnricher(p, 10)

	findings := make([]finding.Finding, 23)
	for i := range findings {
		findings[i] = unknownFinding(i)
	}

	out := e.EnrichOnce(context.Background(), findings, nil)
	require.Len(t, out, 23)
	// ceil(23/10) chunks, sequential.
	assert.Equal(t, 3, p.calls)
	for _, row := range out {
		assert.Equal(t, finding.GeneratedByLLM, row.GeneratedBy)
	}
}

func TestEnrichOnceChunkFailureIsIndependent(t *testing.T) {
	p := &fakeProvider{}
	p.respond = func(call int, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		if call == 2 {
			return nil, errors.New("rate limited")
		}
		return &llm.CompletionResponse{Content: replyForPrompt(req.UserPrompt)}, nil
	}
	e := newTestEnricher(p, 5)

	findings := make([]finding.Finding, 15)
	for i := range findings {
		findings[i] = unknownFinding(i)
	}

	out := e.EnrichOnce(context.Background(), findings, nil)
	require.Len(t, out, 15)
	assert.Equal(t, 3, p.calls)

	for i, row := range out {
		if i >= 5 && i < 10 {
			assert.Equal(t, finding.GeneratedByFallback, row.GeneratedBy, i)
			assert.Equal(t, FallbackSummary, row.SummaryText, i)
		} else {
			assert.Equal(t, finding.GeneratedByLLM, row.GeneratedBy, i)
		}
	}
}

func TestEnrichOnceNilProviderFallsBack(t *testing.T) {
	e := newTestEnricher(nil, 0)

	out := e.EnrichOnce(context.Background(), []finding.Finding{unknownFinding(0)}, nil)
	require.Len(t, out, 1)
	assert.Equal(t, FallbackSummary, out[0].SummaryText)
	assert.Equal(t, finding.GeneratedByFallback, out[0].GeneratedBy)
	// DetailsText and GeneratedAt are set even with no model.
	assert.Equal(t, "Something odd was detected.", out[0].DetailsText)
	assert.False(t, out[0].GeneratedAt.IsZero())
}

func TestEnrichOnceMalformedReplyFallsBack(t *testing.T) {
	p := &fakeProvider{}
	p.respond = func(int, llm.CompletionRequest) (*llm.CompletionResponse, error) {
		return &llm.CompletionResponse{Content: "Sure! Here are the findings explained in prose."}, nil
	}
	e := newTestEnricher(p, 0)

	out := e.EnrichOnce(context.Background(), []finding.Finding{unknownFinding(0)}, nil)
	require.Len(t, out, 1)
	assert.Equal(t, 1, p.calls)
	assert.Equal(t, finding.GeneratedByFallback, out[0].GeneratedBy)
}

func TestEnrichOncePatternBeatsModelClassification(t *testing.T) {
	p := &fakeProvider{}
	p.respond = func(_ int, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		// Model says likely_fp for everything; the pattern verdict must
		// survive anyway.
		var items []map[string]any
		for _, m := range promptIndexRe.FindAllStringSubmatch(req.UserPrompt, -1) {
			items = append(items, map[string]any{
				"index":                   mustAtoi(m[1]),
				"summaryText":             "s",
				"fixPrompt":               "f",
				"falsePositiveLikelihood": "likely_fp",
				"falsePositiveReason":     "model reason",
			})
		}
		out, _ := json.Marshal(items)
		return &llm.CompletionResponse{Content: string(out)}, nil
	}
	e := newTestEnricher(p, 0)

	f := unknownFinding(0)
	f.File = "src/__tests__/helper.js"
	patterns := []finding.FalsePositivePattern{
		{RuleID: f.CheckID, ContextClue: "__tests__", Explanation: "test fixture", Confidence: "possible"},
		{RuleID: f.CheckID, Explanation: "later pattern must not win", Confidence: "high"},
	}

	out := e.EnrichOnce(context.Background(), []finding.Finding{f}, patterns)
	require.Len(t, out, 1)

	require.NotNil(t, out[0].FalsePositiveLikelihood)
	// First matching pattern wins; model classification is ignored.
	assert.Equal(t, finding.LikelihoodPossibleFP, *out[0].FalsePositiveLikelihood)
	require.NotNil(t, out[0].FalsePositiveReason)
	assert.Equal(t, "test fixture", *out[0].FalsePositiveReason)
	// Model text is still applied.
	assert.Equal(t, "s", out[0].SummaryText)
}

func TestEnrichOncePatternAppliesWithoutModel(t *testing.T) {
	e := newTestEnricher(nil, 0)

	f := unknownFinding(0)
	f.File = "examples/demo.js"
	patterns := []finding.FalsePositivePattern{
		{ContextClue: "examples/", Explanation: "example code", Confidence: "high"},
	}

	out := e.EnrichOnce(context.Background(), []finding.Finding{f}, patterns)
	require.Len(t, out, 1)
	require.NotNil(t, out[0].FalsePositiveLikelihood)
	assert.Equal(t, finding.LikelihoodLikelyFP, *out[0].FalsePositiveLikelihood)
	assert.Equal(t, finding.GeneratedByFallback, out[0].GeneratedBy)
}

func TestParseBatchResults(t *testing.T) {
	indices := []int{2, 5}

	good := `[
		{"index":2,"summaryText":"a","fixPrompt":"b","falsePositiveLikelihood":"confirmed_issue","falsePositiveReason":null},
		{"index":5,"summaryText":"c","fixPrompt":"d","falsePositiveLikelihood":"possible_fp","falsePositiveReason":"  test file  "}
	]`

	t.Run("valid", func(t *testing.T) {
		results, ok := parseBatchResults(good, indices)
		require.True(t, ok)
		require.Len(t, results, 2)
		assert.Equal(t, 2, results[0].Index)
		require.NotNil(t, results[1].FalsePositiveReason)
		assert.Equal(t, "test file", *results[1].FalsePositiveReason)
	})

	t.Run("surrounding prose tolerated", func(t *testing.T) {
		_, ok := parseBatchResults("Here you go:\n"+good+"\nHope that helps!", indices)
		assert.True(t, ok)
	})

	t.Run("unknown likelihood coerced", func(t *testing.T) {
		results, ok := parseBatchResults(
			`[{"index":2,"summaryText":"a","fixPrompt":"b","falsePositiveLikelihood":"maybe","falsePositiveReason":null}]`,
			[]int{2})
		require.True(t, ok)
		assert.Equal(t, finding.LikelihoodConfirmedIssue, results[0].FalsePositiveLikelihood)
	})

	failures := []struct {
		name string
		text string
		idx  []int
	}{
		{"not json", "no array here", indices},
		{"length mismatch", `[{"index":2,"summaryText":"a","fixPrompt":"b","falsePositiveLikelihood":"confirmed_issue"}]`, indices},
		{"unknown index", `[{"index":9,"summaryText":"a","fixPrompt":"b","falsePositiveLikelihood":"confirmed_issue"}]`, []int{2}},
		{"missing summaryText", `[{"index":2,"fixPrompt":"b","falsePositiveLikelihood":"confirmed_issue"}]`, []int{2}},
		{"missing fixPrompt", `[{"index":2,"summaryText":"a","falsePositiveLikelihood":"confirmed_issue"}]`, []int{2}},
		{"missing index", `[{"summaryText":"a","fixPrompt":"b","falsePositiveLikelihood":"confirmed_issue"}]`, []int{2}},
		{"oversize", "[" + strings.Repeat(" ", maxResponseLength) + "]", []int{2}},
	}
	for _, tt := range failures {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := parseBatchResults(tt.text, tt.idx)
			assert.False(t, ok)
		})
	}
}

func TestInferHostingPlatform(t *testing.T) {
	mk := func(paths ...string) []finding.Finding {
		out := make([]finding.Finding, len(paths))
		for i, p := range paths {
			out[i] = finding.Finding{File: p}
		}
		return out
	}

	assert.Equal(t, PlatformVercel, InferHostingPlatform(mk("src/app.js", "vercel.json")))
	assert.Equal(t, PlatformRailway, InferHostingPlatform(mk("railway.toml")))
	assert.Equal(t, PlatformSupabase, InferHostingPlatform(mk("supabase/functions/hello.ts")))
	assert.Equal(t, Platform(""), InferHostingPlatform(mk("src/app.js")))
}

func TestSanitizeForPrompt(t *testing.T) {
	// Zero-width and directional-override characters are stripped.
	assert.Equal(t, "secret", sanitizeForPrompt("sec​ret"))
	assert.Equal(t, "abc", sanitizeForPrompt("a‮b‬c"))
	// Newlines and tabs survive.
	assert.Equal(t, "a\n\tb", sanitizeForPrompt("a\n\tb"))

	long := strings.Repeat("x", maxPromptFieldLength+10)
	got := sanitizeForPrompt(long)
	assert.True(t, strings.HasSuffix(got, "[TRUNCATED]"))
}

func TestSanitizeForPromptTruncatesOnRuneBoundary(t *testing.T) {
	// A multibyte character straddling the cap must not be split.
	long := strings.Repeat("x", maxPromptFieldLength-1) + "質質"
	got := sanitizeForPrompt(long)
	assert.True(t, utf8.ValidString(got))
	assert.True(t, strings.HasSuffix(got, "[TRUNCATED]"))
}

package enrich

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vibescan/api/pkg/domain/finding"
)

// maxResponseLength caps the model response text considered for
// parsing. Anything longer is malformed by definition.
const maxResponseLength = 1 << 20

// batchResult is one validated entry of the model's JSON array reply.
type batchResult struct {
	Index                   int
	SummaryText             string
	FixPrompt               string
	FalsePositiveLikelihood finding.FalsePositiveLikelihood
	FalsePositiveReason     *string
}

// buildBatchPrompt serializes the pending findings into the one
// batched enrichment request.
func buildBatchPrompt(findings []finding.Finding, indices []int) string {
	var list strings.Builder
	for n, i := range indices {
		if n > 0 {
			list.WriteString("\n\n")
		}
		f := findings[i]
		ruleID := f.CheckID
		if ruleID == "" {
			ruleID = "n/a"
		}
		line := "n/a"
		if f.Line != nil {
			line = fmt.Sprintf("%d", *f.Line)
		}
		scanner := string(f.Scanner)
		if scanner == "" {
			scanner = string(finding.ScannerSemgrep)
		}
		fmt.Fprintf(&list, "[%d] rule_id: %s, scanner: %s, title: %s, file: %s, line: %s\nexplanation: %s\nwhyItMatters: %s\nfixSuggestion: %s",
			i,
			sanitizeForPrompt(ruleID),
			scanner,
			sanitizeForPrompt(f.Title),
			sanitizeForPrompt(f.File),
			line,
			sanitizeForPrompt(f.Explanation),
			sanitizeForPrompt(f.WhyItMatters),
			sanitizeForPrompt(f.FixSuggestion),
		)
	}

	return fmt.Sprintf(`You are helping developers understand and address security issues in a collaborative way. For each finding below, provide:
1) A short plain-English summary (1-2 sentences, no jargon) for "summaryText".
2) A "fixPrompt" that the developer will paste into an AI coding tool. The fixPrompt must be advisory, not prescriptive. Use this exact structure (plain English):

- Opening: "I'm reviewing a security finding in my codebase and would like your help understanding my options."
- What was found: plain English description of the issue
- File and location: file name and line number
- Security context: what attack or risk this enables, written from a security expert perspective
- What a secure solution should achieve: the outcome (what should be true after a fix), not specific code
- Close with these instructions to the AI: "Before making any changes, please: 1) Explain what you think is causing this issue in my specific code, 2) Suggest 2-3 possible approaches to fix it, 3) Tell me if any approach might affect other parts of my app, 4) Wait for my confirmation before making any changes."

3) A false positive assessment: given the rule_id, file path, scanner, and explanation, assess whether this finding might be a false positive (e.g. test code, example, known safe pattern). Use:
- "falsePositiveLikelihood": one of "confirmed_issue" (real issue, not a false positive), "possible_fp" (might be a false positive), "likely_fp" (likely a false positive).
- "falsePositiveReason": if possible_fp or likely_fp, a brief reason (one sentence); otherwise null.

Findings (index is the number in brackets):

%s

Respond with ONLY a valid JSON array. One object per finding, in the same order as above. Each object must have:
- "index" (number): the finding index from the list
- "summaryText" (string): short plain-English summary for the card
- "fixPrompt" (string): the advisory prompt in the structure above
- "falsePositiveLikelihood" (string): "confirmed_issue" or "possible_fp" or "likely_fp"
- "falsePositiveReason" (string or null): brief reason if possible_fp/likely_fp, else null

Example: [{"index":0,"summaryText":"...","fixPrompt":"...","falsePositiveLikelihood":"confirmed_issue","falsePositiveReason":null}]
No markdown, no explanation.`, list.String())
}

// rawBatchItem is the strict decode target for one reply entry.
// Pointer fields distinguish missing from empty; a missing required
// field fails the whole batch.
type rawBatchItem struct {
	Index                   *int    `json:"index"`
	SummaryText             *string `json:"summaryText"`
	FixPrompt               *string `json:"fixPrompt"`
	FalsePositiveLikelihood string  `json:"falsePositiveLikelihood"`
	FalsePositiveReason     *string `json:"falsePositiveReason"`
}

// parseBatchResults validates the model reply against the request
// index set. The JSON array must sit between the first '[' and the
// last ']' of the text, match the chunk length exactly, and reference
// only known indices with all required string fields present. Any
// deviation fails the entire batch; there is no partial acceptance.
func parseBatchResults(text string, indices []int) ([]batchResult, bool) {
	if len(text) > maxResponseLength {
		return nil, false
	}
	trimmed := strings.TrimSpace(text)
	first := strings.Index(trimmed, "[")
	last := strings.LastIndex(trimmed, "]")
	if first == -1 || last == -1 || last <= first {
		return nil, false
	}

	var items []rawBatchItem
	if err := json.Unmarshal([]byte(trimmed[first:last+1]), &items); err != nil {
		return nil, false
	}
	if len(items) != len(indices) {
		return nil, false
	}

	known := make(map[int]bool, len(indices))
	for _, i := range indices {
		known[i] = true
	}

	results := make([]batchResult, 0, len(items))
	for _, item := range items {
		if item.Index == nil || item.SummaryText == nil || item.FixPrompt == nil {
			return nil, false
		}
		if !known[*item.Index] {
			return nil, false
		}

		likelihood := finding.FalsePositiveLikelihood(item.FalsePositiveLikelihood)
		if !finding.ValidLikelihood(string(likelihood)) {
			likelihood = finding.LikelihoodConfirmedIssue
		}

		var reason *string
		if item.FalsePositiveReason != nil {
			if r := strings.TrimSpace(*item.FalsePositiveReason); r != "" {
				reason = &r
			}
		}

		results = append(results, batchResult{
			Index:                   *item.Index,
			SummaryText:             *item.SummaryText,
			FixPrompt:               *item.FixPrompt,
			FalsePositiveLikelihood: likelihood,
			FalsePositiveReason:     reason,
		})
	}
	return results, true
}

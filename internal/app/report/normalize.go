package report

import (
	"fmt"
	"strings"

	"github.com/vibescan/api/pkg/domain/finding"
)

// Normalized is the finding shape served to dashboard and report
// consumers. Read-only: built from stored fields, never from a model
// call.
type Normalized struct {
	ID                string   `json:"id"`
	Scanner           string   `json:"scanner"`
	Severity          string   `json:"severity"`
	Title             string   `json:"title"`
	SummaryText       string   `json:"summaryText"`
	DetailsText       string   `json:"detailsText"`
	FilePath          string   `json:"filePath"`
	Line              *int     `json:"line"`
	RuleID            *string  `json:"ruleId"`
	QuickFixAvailable bool     `json:"quickFixAvailable"`
	FixPrompt         string   `json:"fixPrompt"`
	DetailsURL        string   `json:"detailsUrl"`
	WhyItMatters      string   `json:"whyItMatters,omitempty"`
	FixSuggestion     string   `json:"fixSuggestion,omitempty"`
	FalsePositive     *string  `json:"falsePositiveLikelihood,omitempty"`
	FalsePositiveWhy  *string  `json:"falsePositiveReason,omitempty"`
}

// ToNormalized maps stored findings to the dashboard shape. Severity
// is bucketed (info folds into low), missing fix prompts get the
// synthesized default, and missing summaries fall back to the curated
// or heuristic summary. ids, when provided, supply stable row ids;
// otherwise a deterministic per-scan id is derived.
func ToNormalized(scanID, detailsURL string, stored []finding.Stored, ids []string) []Normalized {
	out := make([]Normalized, 0, len(stored))
	for idx, f := range stored {
		severity := f.Severity.BucketForDashboard()

		fixPrompt := strings.TrimSpace(f.FixPrompt)
		quickFix := fixPrompt != ""
		if fixPrompt == "" {
			fixPrompt = DefaultFixPrompt(f.Title, f.File, f.Line, string(severity))
		}

		detailsText := f.DetailsText
		if detailsText == "" {
			detailsText = f.Explanation
		}
		summaryText := f.SummaryText
		if summaryText == "" {
			summaryText = SummaryText(f.CheckID, detailsText)
		}

		scanner := string(f.Scanner)
		if scanner == "" {
			scanner = string(finding.ScannerSemgrep)
		}

		id := fmt.Sprintf("%s-%s-%d", scanner, scanID, idx)
		if idx < len(ids) && ids[idx] != "" {
			id = ids[idx]
		}

		var ruleID *string
		if f.CheckID != "" {
			rid := f.CheckID
			ruleID = &rid
		}
		var fpLikelihood *string
		if f.FalsePositiveLikelihood != nil {
			v := string(*f.FalsePositiveLikelihood)
			fpLikelihood = &v
		}

		out = append(out, Normalized{
			ID:                id,
			Scanner:           scanner,
			Severity:          string(severity),
			Title:             f.Title,
			SummaryText:       summaryText,
			DetailsText:       detailsText,
			FilePath:          f.File,
			Line:              f.Line,
			RuleID:            ruleID,
			QuickFixAvailable: quickFix,
			FixPrompt:         fixPrompt,
			DetailsURL:        detailsURL,
			WhyItMatters:      f.WhyItMatters,
			FixSuggestion:     f.FixSuggestion,
			FalsePositive:     fpLikelihood,
			FalsePositiveWhy:  f.FalsePositiveReason,
		})
	}
	return out
}

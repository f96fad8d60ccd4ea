// Package finding defines the canonical finding model produced by the
// scan pipeline: normalized findings, enriched stored findings, and the
// false-positive pattern table used during enrichment.
package finding

import (
	"fmt"
	"strings"
	"time"

	"github.com/vibescan/api/pkg/domain/shared"
)

// Scanner identifies which tool produced a finding.
type Scanner string

// Known scanners.
const (
	ScannerSemgrep  Scanner = "semgrep"
	ScannerGitleaks Scanner = "gitleaks"
)

// ParseScanner maps a raw scanner tag to a known Scanner.
// Unknown or empty tags default to semgrep, matching the wire contract.
func ParseScanner(s string) Scanner {
	if strings.ToLower(strings.TrimSpace(s)) == string(ScannerGitleaks) {
		return ScannerGitleaks
	}
	return ScannerSemgrep
}

// Finding is one normalized report entry. All text fields are derived
// and never empty except CheckID, which is empty when the scanner did
// not report a rule id.
type Finding struct {
	CheckID       string   `json:"checkId"`
	Title         string   `json:"title"`
	Explanation   string   `json:"explanation"`
	WhyItMatters  string   `json:"whyItMatters"`
	FixSuggestion string   `json:"fixSuggestion"`
	FixPrompt     string   `json:"fixPrompt"`
	File          string   `json:"file"`
	Line          *int     `json:"line"`
	Severity      Severity `json:"severity"`
	Scanner       Scanner  `json:"scanner"`
}

// GeneratedBy records the provenance of enrichment text.
type GeneratedBy string

// Enrichment provenance values.
const (
	GeneratedByRules    GeneratedBy = "rules"
	GeneratedByLLM      GeneratedBy = "llm"
	GeneratedByFallback GeneratedBy = "rules_fallback"
)

// FalsePositiveLikelihood classifies how likely a finding is noise.
type FalsePositiveLikelihood string

// Likelihood values.
const (
	LikelihoodConfirmedIssue FalsePositiveLikelihood = "confirmed_issue"
	LikelihoodPossibleFP     FalsePositiveLikelihood = "possible_fp"
	LikelihoodLikelyFP       FalsePositiveLikelihood = "likely_fp"
)

// ValidLikelihood reports whether s is a known likelihood value.
func ValidLikelihood(s string) bool {
	switch FalsePositiveLikelihood(s) {
	case LikelihoodConfirmedIssue, LikelihoodPossibleFP, LikelihoodLikelyFP:
		return true
	}
	return false
}

// Stored is an enriched finding as persisted after the one-shot
// enrichment pass. SummaryText and GeneratedBy are always set once
// enrichment completes, even under total model failure.
type Stored struct {
	Finding

	SummaryText string      `json:"summaryText"`
	DetailsText string      `json:"detailsText"`
	GeneratedBy GeneratedBy `json:"generatedBy"`
	GeneratedAt time.Time   `json:"generatedAt"`

	FalsePositiveLikelihood *FalsePositiveLikelihood `json:"false_positive_likelihood,omitempty"`
	FalsePositiveReason     *string                  `json:"false_positive_reason,omitempty"`
}

// Status is the per-finding workflow state. It is a client-owned
// overlay and never touched by the enrichment pipeline.
type Status string

// Workflow states.
const (
	StatusOpen          Status = "open"
	StatusFixed         Status = "fixed"
	StatusIgnored       Status = "ignored"
	StatusFalsePositive Status = "false_positive"
	StatusOther         Status = "other"
)

// FalsePositivePattern is one active row of the pattern table consulted
// during enrichment. An empty RuleID acts as a wildcard; ContextClue,
// when set, must appear in the finding's file path (case-insensitive).
type FalsePositivePattern struct {
	RuleID      string
	ContextClue string
	Explanation string
	Confidence  string
}

// Matches reports whether the pattern applies to the finding.
func (p FalsePositivePattern) Matches(f Finding) bool {
	ruleID := strings.TrimSpace(f.CheckID)
	patternRule := strings.TrimSpace(p.RuleID)
	if patternRule != "" && patternRule != ruleID {
		return false
	}
	clue := strings.TrimSpace(p.ContextClue)
	if clue == "" {
		return true
	}
	return strings.Contains(strings.ToLower(f.File), strings.ToLower(clue))
}

// Likelihood maps the pattern's confidence to a likelihood value.
// Anything that is not "possible" is treated as likely.
func (p FalsePositivePattern) Likelihood() FalsePositiveLikelihood {
	switch strings.ToLower(strings.TrimSpace(p.Confidence)) {
	case "possible", "possible_fp":
		return LikelihoodPossibleFP
	default:
		return LikelihoodLikelyFP
	}
}

// FeedbackVerdict is a user's verdict on a false-positive classification.
type FeedbackVerdict string

// Verdicts.
const (
	VerdictConfirmedFP FeedbackVerdict = "confirmed_fp"
	VerdictNotFP       FeedbackVerdict = "not_fp"
)

// ParseFeedbackVerdict validates a raw verdict string.
func ParseFeedbackVerdict(s string) (FeedbackVerdict, error) {
	switch FeedbackVerdict(s) {
	case VerdictConfirmedFP, VerdictNotFP:
		return FeedbackVerdict(s), nil
	}
	return "", fmt.Errorf("%w: invalid feedback verdict %q", shared.ErrValidation, s)
}

// Feedback is one user-submitted false-positive verdict for a finding.
type Feedback struct {
	ID        shared.ID
	FindingID shared.ID
	UserID    shared.ID
	Verdict   FeedbackVerdict
	Note      string
	CreatedAt time.Time
}

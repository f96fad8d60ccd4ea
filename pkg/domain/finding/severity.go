package finding

import "strings"

// Severity is the uniform five-level severity scale. Both the unified
// and the legacy normalization paths use the same scale; critical is a
// distinct top tier everywhere.
type Severity string

// Severity levels, most severe first.
const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// severityRank orders severities for report sorting. Unknown values
// sort last.
var severityRank = map[Severity]int{
	SeverityCritical: 0,
	SeverityHigh:     1,
	SeverityMedium:   2,
	SeverityLow:      3,
	SeverityInfo:     4,
}

// Rank returns the sort rank of the severity (critical=0 .. info=4).
func (s Severity) Rank() int {
	if r, ok := severityRank[s]; ok {
		return r
	}
	return 99
}

// Valid reports whether s is a known severity level.
func (s Severity) Valid() bool {
	_, ok := severityRank[s]
	return ok
}

// NormalizeSeverity maps raw scanner severities onto the uniform scale.
// Semgrep reports ERROR/WARNING/INFO; other scanners report the levels
// directly. Unknown or missing values map to info.
func NormalizeSeverity(raw string) Severity {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "critical":
		return SeverityCritical
	case "error", "high":
		return SeverityHigh
	case "warning", "medium":
		return SeverityMedium
	case "info", "low":
		return SeverityLow
	default:
		return SeverityInfo
	}
}

// BucketForDashboard collapses the five-level scale to the four
// severity buckets the dashboard renders (info folds into low).
func (s Severity) BucketForDashboard() Severity {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
		return s
	default:
		return SeverityLow
	}
}

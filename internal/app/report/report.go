// Package report turns raw scanner output into the plain-English,
// severity-ranked finding list shown to users. Everything here is pure;
// no I/O and no model calls.
package report

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/vibescan/api/pkg/domain/finding"
)

// SemgrepMetadata is the metadata block semgrep attaches to a result.
type SemgrepMetadata struct {
	Category    string `json:"category"`
	Subcategory string `json:"subcategory"`
	Impact      string `json:"impact"`
	Likelihood  string `json:"likelihood"`
	Confidence  string `json:"confidence"`
}

// SemgrepExtra is the extra block of one semgrep result.
type SemgrepExtra struct {
	Message  string           `json:"message"`
	Severity string           `json:"severity"`
	Fix      string           `json:"fix"`
	Metadata *SemgrepMetadata `json:"metadata"`
}

// Position is a line position in a scanned file.
type Position struct {
	Line *int `json:"line"`
}

// SemgrepResult is one entry of the legacy semgrep.results array.
type SemgrepResult struct {
	CheckID string        `json:"check_id"`
	Path    string        `json:"path"`
	Start   *Position     `json:"start"`
	Extra   *SemgrepExtra `json:"extra"`
}

// SemgrepOutput is the legacy single-tool output shape.
type SemgrepOutput struct {
	Results []SemgrepResult `json:"results"`
}

// UnifiedFinding is one entry of the unified multi-scanner findings
// array produced by the scan service.
type UnifiedFinding struct {
	Scanner string        `json:"scanner"`
	CheckID string        `json:"check_id"`
	Path    string        `json:"path"`
	Start   *Position     `json:"start"`
	Extra   *SemgrepExtra `json:"extra"`
}

// RawScanResult is the document the pipeline receives from a scanner
// invocation: either a unified findings array or the legacy semgrep
// shape. Unknown fields are ignored.
type RawScanResult struct {
	Findings []UnifiedFinding `json:"findings"`
	Semgrep  *SemgrepOutput   `json:"semgrep"`
}

// ParseRaw decodes raw scanner JSON. Malformed input yields an empty
// result, never an error; the normalizer's contract is best effort.
// The unified and legacy branches decode independently, so a mistyped
// findings field does not drop a well-formed semgrep block.
func ParseRaw(data []byte) RawScanResult {
	var doc struct {
		Findings json.RawMessage `json:"findings"`
		Semgrep  json.RawMessage `json:"semgrep"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return RawScanResult{}
	}

	var raw RawScanResult
	if len(doc.Findings) > 0 {
		var items []UnifiedFinding
		if err := json.Unmarshal(doc.Findings, &items); err == nil {
			raw.Findings = items
		}
	}
	if len(doc.Semgrep) > 0 && string(doc.Semgrep) != "null" {
		var semgrep SemgrepOutput
		if err := json.Unmarshal(doc.Semgrep, &semgrep); err == nil {
			raw.Semgrep = &semgrep
		}
	}
	return raw
}

// workDirPattern matches the scan working directory prefix so reports
// only show project-relative paths.
var workDirPattern = regexp.MustCompile(`^/tmp/vibescan-[^/]+/(.*)$`)

// StripWorkDirPrefix removes the scan workdir prefix from a path.
// Paths without the prefix pass through unchanged.
func StripWorkDirPrefix(path string) string {
	if m := workDirPattern.FindStringSubmatch(path); m != nil {
		return m[1]
	}
	return path
}

var titleCaser = cases.Title(language.English)

// toTitle turns a technical rule id into a short, readable title. A
// scanner message under 80 characters is used verbatim.
func toTitle(checkID, message string) string {
	if message != "" && len(message) < 80 {
		return message
	}
	segment := checkID
	if idx := strings.LastIndex(checkID, "."); idx >= 0 {
		segment = checkID[idx+1:]
	}
	words := strings.FieldsFunc(segment, func(r rune) bool {
		return r == '-' || r == '_'
	})
	if len(words) == 0 {
		return titleCaser.String(segment)
	}
	for i, w := range words {
		words[i] = titleCaser.String(strings.ToLower(w))
	}
	return strings.Join(words, " ")
}

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	codeSpanRe   = regexp.MustCompile("`[^`]+`")
)

// truncateBytes cuts s to at most n bytes without splitting a rune.
func truncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// toExplanation turns the rule's message into a plain-English
// explanation with no code and simple words.
func toExplanation(message, checkID string) string {
	if message == "" {
		return fmt.Sprintf("The scanner found a potential issue (%s).", toTitle(checkID, ""))
	}
	text := whitespaceRe.ReplaceAllString(message, " ")
	text = codeSpanRe.ReplaceAllString(text, "this code")
	text = strings.TrimSpace(text)
	if len(text) > 300 {
		text = truncateBytes(text, 297) + "..."
	}
	return text
}

// toWhyItMatters picks one plain-English sentence on why the finding
// matters. Metadata impact and category outrank the raw severity.
func toWhyItMatters(severity string, metadata *SemgrepMetadata) string {
	var impact, category string
	if metadata != nil {
		impact = strings.ToLower(metadata.Impact)
		category = strings.ToLower(metadata.Category)
		if category == "" {
			category = strings.ToLower(metadata.Subcategory)
		}
	}

	if impact != "" || category != "" {
		switch {
		case impact == "high" || strings.Contains(category, "injection") || strings.Contains(category, "xss"):
			return "This could let someone access or change your app’s data, or harm your users."
		case impact == "medium" || strings.Contains(category, "auth") || strings.Contains(category, "secret"):
			return "This could make it easier for someone to break in or misuse your app."
		case strings.Contains(category, "best-practice") || strings.Contains(category, "maintainability"):
			return "Fixing this makes your app safer and easier to maintain."
		}
	}

	switch strings.ToLower(severity) {
	case "error", "high", "critical":
		return "This could put your app or your users’ data at risk."
	case "warning", "medium":
		return "Addressing this reduces risk and keeps your app in good shape."
	default:
		return "Fixing this is a good idea for security and clarity."
	}
}

// toFixSuggestion suggests a fix in plain English.
func toFixSuggestion(extra *SemgrepExtra) string {
	if extra != nil && strings.TrimSpace(extra.Fix) != "" {
		return "A developer can apply this change: remove or replace the flagged code with a safer approach. If you use an AI coding tool, you can paste the file name and line number and ask it to fix this finding."
	}
	return "Ask a developer (or your AI coding tool) to fix this. Share the file name and line number above so they know where to look."
}

// Gitleaks findings get dedicated sentences about credential exposure
// instead of the generic templates.
const (
	gitleaksWhyItMatters  = "Exposed secrets can be used to access your accounts, APIs, or data. Remove them immediately and rotate any real credentials."
	gitleaksFixSuggestion = "Remove the secret from the code immediately. Store it in environment variables or a secrets manager and rotate the credential if it was ever committed."
)

func fromUnified(u UnifiedFinding) finding.Finding {
	extra := u.Extra
	var message, severity string
	if extra != nil {
		message = extra.Message
		severity = extra.Severity
	}
	scanner := finding.ParseScanner(u.Scanner)

	whyItMatters := ""
	fixSuggestion := ""
	if scanner == finding.ScannerGitleaks {
		whyItMatters = gitleaksWhyItMatters
		fixSuggestion = gitleaksFixSuggestion
	} else {
		var metadata *SemgrepMetadata
		if extra != nil {
			metadata = extra.Metadata
		}
		whyItMatters = toWhyItMatters(severity, metadata)
		fixSuggestion = toFixSuggestion(extra)
	}

	var line *int
	if u.Start != nil {
		line = u.Start.Line
	}

	f := finding.Finding{
		CheckID:       u.CheckID,
		Title:         toTitle(u.CheckID, message),
		Explanation:   toExplanation(message, u.CheckID),
		WhyItMatters:  whyItMatters,
		FixSuggestion: fixSuggestion,
		File:          StripWorkDirPrefix(u.Path),
		Line:          line,
		Severity:      finding.NormalizeSeverity(severity),
		Scanner:       scanner,
	}
	f.FixPrompt = BuildFixPrompt(f)
	return f
}

func fromSemgrep(r SemgrepResult) finding.Finding {
	extra := r.Extra
	var message, severity string
	if extra != nil {
		message = extra.Message
		severity = extra.Severity
	}
	var metadata *SemgrepMetadata
	if extra != nil {
		metadata = extra.Metadata
	}
	var line *int
	if r.Start != nil {
		line = r.Start.Line
	}

	f := finding.Finding{
		CheckID:       r.CheckID,
		Title:         toTitle(r.CheckID, message),
		Explanation:   toExplanation(message, r.CheckID),
		WhyItMatters:  toWhyItMatters(severity, metadata),
		FixSuggestion: toFixSuggestion(extra),
		File:          StripWorkDirPrefix(r.Path),
		Line:          line,
		Severity:      finding.NormalizeSeverity(severity),
		Scanner:       finding.ScannerSemgrep,
	}
	f.FixPrompt = BuildFixPrompt(f)
	return f
}

// Build converts a raw scan result into the plain-English report.
// It reads the unified findings array when present, otherwise the
// legacy semgrep results, and sorts ascending by severity rank with a
// stable sort so equal severities keep their scanner order.
func Build(raw RawScanResult) []finding.Finding {
	var list []finding.Finding

	switch {
	case raw.Findings != nil:
		list = make([]finding.Finding, 0, len(raw.Findings))
		for _, u := range raw.Findings {
			list = append(list, fromUnified(u))
		}
	case raw.Semgrep != nil && raw.Semgrep.Results != nil:
		list = make([]finding.Finding, 0, len(raw.Semgrep.Results))
		for _, r := range raw.Semgrep.Results {
			list = append(list, fromSemgrep(r))
		}
	default:
		return []finding.Finding{}
	}

	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Severity.Rank() < list[j].Severity.Rank()
	})
	return list
}

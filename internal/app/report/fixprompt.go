package report

import (
	"fmt"
	"strings"

	"github.com/vibescan/api/pkg/domain/finding"
)

// fixPromptClosing is the instruction block every advisory fix prompt
// ends with. The assistant must explain before it edits.
const fixPromptClosing = "Before making any changes, please: 1) Explain what you think is causing this issue in my specific code, 2) Suggest 2-3 possible approaches to fix it, 3) Tell me if any approach might affect other parts of my app, 4) Wait for my confirmation before making any changes."

// BuildFixPrompt builds an advisory prompt for pasting into an AI
// coding tool. Collaborative, not prescriptive.
func BuildFixPrompt(f finding.Finding) string {
	location := f.File + " (see report for location)"
	if f.Line != nil {
		location = fmt.Sprintf("%s at line %d", f.File, *f.Line)
	}
	explanation := f.Explanation
	if len(explanation) > 400 {
		explanation = truncateBytes(explanation, 397) + "..."
	}
	return fmt.Sprintf(`I'm reviewing a security finding in my codebase and would like your help understanding my options.

What was found: %s

File and location: %s

Security context: %s

What a secure solution should achieve: %s

%s`, explanation, location, f.WhyItMatters, f.FixSuggestion, fixPromptClosing)
}

// DefaultFixPrompt synthesizes a minimal prompt for stored findings
// that never got one (legacy rows). Used by the read path only.
func DefaultFixPrompt(title, filePath string, line *int, severity string) string {
	loc := filePath
	if line != nil {
		loc = fmt.Sprintf("%s:%d", filePath, *line)
	}
	return fmt.Sprintf(`Fix the following issue:

[%s]
Severity: %s
File: %s

Explain the issue and provide a secure fix.
Apply the fix directly in code.`, title, severity, loc)
}

// BuildFixWithAIPrompt builds the universal tool-agnostic prompt for
// the "Fix with AI" action: persona, issue context, code-only reply.
func BuildFixWithAIPrompt(title, detailsText, filePath string, line *int, ruleID, fixPrompt string) string {
	loc := filePath
	if line != nil {
		loc = fmt.Sprintf("%s:%d", filePath, *line)
	}
	instructions := strings.TrimSpace(fixPrompt)
	if instructions == "" {
		instructions = "Explain the issue and provide a secure fix. Apply the fix directly in code."
	}
	rule := ""
	if ruleID != "" {
		rule = fmt.Sprintf("Rule: %s\n", ruleID)
	}
	return fmt.Sprintf(`You are a senior security engineer.
Fix the following issue. Return code only.

---
Title: %s
File: %s
%s
Description:
%s

Instructions:
%s
---`, title, loc, rule, detailsText, instructions)
}

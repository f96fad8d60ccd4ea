package report

import (
	"regexp"
	"strings"
)

// summaryByRule maps rule ids (full or last segment) to curated
// plain-English summaries. Curated text beats anything generated.
var summaryByRule = map[string]string{
	"insecure-transport":                 "Your app may be sending or receiving data over an unencrypted connection. Use HTTPS to keep data private.",
	"insecure-transport.insecure-transport": "Your app may be sending or receiving data over an unencrypted connection. Use HTTPS to keep data private.",
	"hardcoded-secret":                   "A secret (like a password or API key) is stored directly in the code. Move it to environment variables or a secrets manager.",
	"hardcoded-secret.hardcoded-secret":  "A secret (like a password or API key) is stored directly in the code. Move it to environment variables or a secrets manager.",
	"sql-injection":                      "User input might be used in a database query without proper checks, which could let someone access or change data they shouldn't.",
	"xss":                                "User-provided content might be shown on a page without being made safe first, which could allow malicious scripts to run in other users' browsers.",
	"cross-site-scripting":               "User-provided content might be shown on a page without being made safe first, which could allow malicious scripts to run in other users' browsers.",
	"path-traversal":                     "File paths built from user input could allow access to files outside the intended folder. Validate and restrict paths.",
	"command-injection":                  "User input might be passed into a system command. This could let someone run unexpected commands on the server.",
	"eval":                               "Code is being run dynamically (e.g. via eval), which can be dangerous if it includes user input. Use a safer approach.",
	"weak-crypto":                        "Weak or outdated encryption is used. Use current, strong methods to protect sensitive data.",
	"weak-cryptographic-algorithm":       "Weak or outdated encryption is used. Use current, strong methods to protect sensitive data.",
	"no-default-export":                  "This module is exported in a way that can make it harder to track and secure. Prefer named exports.",
	"audit":                              "The scanner flagged this for a security review. Check the details and fix or document the decision.",
	"insecure-temporary-file":            "Temporary files might be created in a way that other users on the system can read or modify. Use secure APIs and permissions.",
	"open-redirect":                      "A redirect URL might be controlled by user input, which could send users to a malicious site. Validate redirect targets.",
	"mass-assignment":                    "User input might be used to set object properties without checks, which could change data you didn't intend to expose.",
	"no-log":                             "Sensitive data might be written to logs. Avoid logging secrets or personal information.",
	"leaked-credentials":                 "Credentials or secrets might be exposed (e.g. in logs or error messages). Keep them out of logs and client-side code.",
}

// CuratedSummary looks up a curated summary by rule id. Tries the full
// id, then the last dot segment, then substring containment. Returns
// "" when the rule has no curated coverage.
func CuratedSummary(checkID string) string {
	normalized := strings.ToLower(strings.TrimSpace(checkID))
	if normalized == "" {
		return ""
	}
	if s, ok := summaryByRule[normalized]; ok {
		return s
	}
	suffix := normalized
	if idx := strings.LastIndex(normalized, "."); idx >= 0 {
		suffix = normalized[idx+1:]
	}
	if s, ok := summaryByRule[suffix]; ok {
		return s
	}
	for key, s := range summaryByRule {
		if strings.Contains(normalized, key) || strings.Contains(suffix, key) {
			return s
		}
	}
	return ""
}

var sentenceEndRe = regexp.MustCompile(`[.!?]\s`)

// heuristicSummary takes the first sentence (or first ~120 chars) of
// the explanation as a lightweight summary.
func heuristicSummary(explanation string) string {
	text := strings.TrimSpace(explanation)
	if text == "" {
		return "The scanner found an issue that may need your attention. Open the details for more."
	}
	text = whitespaceRe.ReplaceAllString(text, " ")
	first := text
	if loc := sentenceEndRe.FindStringIndex(text); loc != nil {
		first = strings.TrimSpace(text[:loc[0]+1])
	} else if len(text) > 120 {
		first = strings.TrimSpace(truncateBytes(text, 120))
	}
	if len(first) >= 120 && !regexp.MustCompile(`[.!?]$`).MatchString(first) {
		cut := first
		if lastSpace := strings.LastIndex(first, " "); lastSpace > 80 {
			cut = first[:lastSpace]
		}
		if len(cut) < len(text) {
			return cut + "…"
		}
		return cut
	}
	return first
}

// SummaryText returns a short, novice-friendly summary: curated
// mapping by rule id when available, otherwise the heuristic. The read
// path uses this for legacy rows without stored summaries.
func SummaryText(checkID, detailsText string) string {
	if curated := CuratedSummary(checkID); curated != "" {
		return curated
	}
	return heuristicSummary(detailsText)
}

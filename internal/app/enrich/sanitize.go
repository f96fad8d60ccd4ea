package enrich

import (
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// maxPromptFieldLength caps any single finding field embedded in the
// model prompt.
const maxPromptFieldLength = 2000

// promptTransformer applies NFKC normalization and strips invisible
// and control characters. Scanner output is attacker-influenced (it
// quotes the scanned code), so homoglyphs and zero-width characters
// must not reach the prompt unmodified.
var promptTransformer = transform.Chain(
	norm.NFKC,
	runes.Remove(runes.Predicate(func(r rune) bool {
		if r == '\n' || r == '\r' || r == '\t' {
			return false
		}
		if unicode.IsControl(r) {
			return true
		}
		// Zero-width characters
		if r == '\u200b' || r == '\u200c' || r == '\u200d' || r == '\ufeff' {
			return true
		}
		// Directional overrides
		if r >= '\u202a' && r <= '\u202e' {
			return true
		}
		return false
	})),
)

// sanitizeForPrompt normalizes and caps a field before it is embedded
// in the model prompt.
func sanitizeForPrompt(text string) string {
	if text == "" {
		return ""
	}
	result, _, err := transform.String(promptTransformer, text)
	if err != nil {
		result = text
	}
	if len(result) > maxPromptFieldLength {
		cut := maxPromptFieldLength
		for cut > 0 && !utf8.RuneStart(result[cut]) {
			cut--
		}
		result = result[:cut] + " [TRUNCATED]"
	}
	return result
}

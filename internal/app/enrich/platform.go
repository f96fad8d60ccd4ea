package enrich

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/vibescan/api/pkg/domain/finding"
)

// Platform is a hosting platform inferred from scanned file paths,
// used to point secrets fixes at the right place to store env vars.
type Platform string

// Known platforms.
const (
	PlatformVercel   Platform = "vercel"
	PlatformRailway  Platform = "railway"
	PlatformSupabase Platform = "supabase"
	PlatformLovable  Platform = "lovable"
)

var (
	vercelRe   = regexp.MustCompile(`(?i)vercel\.json|\.vercel\b|vc/config`)
	railwayRe  = regexp.MustCompile(`(?i)railway\.(toml|json)|railway\.config`)
	supabaseRe = regexp.MustCompile(`(?i)supabase/|supabase\.config|@supabase`)
	lovableRe  = regexp.MustCompile(`(?i)lovable|bolt\.config|\.bolt\b`)
)

// InferHostingPlatform scans all findings' file paths for
// platform-identifying substrings. Returns "" when nothing matches.
func InferHostingPlatform(findings []finding.Finding) Platform {
	var sb strings.Builder
	for i, f := range findings {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(strings.ToLower(f.File))
	}
	paths := sb.String()

	switch {
	case vercelRe.MatchString(paths):
		return PlatformVercel
	case railwayRe.MatchString(paths):
		return PlatformRailway
	case supabaseRe.MatchString(paths):
		return PlatformSupabase
	case lovableRe.MatchString(paths):
		return PlatformLovable
	}
	return ""
}

// platformSecretInstructions tells the user where to store secrets on
// each platform.
var platformSecretInstructions = map[Platform]string{
	PlatformVercel:   "Store the secret in Vercel: Project Settings → Environment Variables. Use the dashboard or Vercel CLI (vercel env add). Never commit .env to git.",
	PlatformRailway:  "Store the secret in Railway: Project → Variables tab, or use the Railway CLI. Never commit .env to git.",
	PlatformSupabase: "Store the secret in Supabase: Project Settings → API or use Supabase Vault for sensitive values. In app code use environment variables loaded at runtime.",
	PlatformLovable:  "Store the secret in your hosting platform's environment variables (e.g. Vercel, Railway, or Lovable's env settings). Never commit .env or hardcode secrets.",
}

// GitleaksSummary is the fixed summary for secrets findings.
const GitleaksSummary = "A secret (e.g. API key, password, or token) was found in your code. Remove it immediately, store it in environment variables or a secrets manager, and rotate the credential if it was ever exposed."

// FallbackSummary is the safe fallback when the model is unavailable.
// The scan still completes.
const FallbackSummary = "This finding may indicate a security issue. Review the details and consider applying the recommended fix."

// SecretsFixPrompt builds the fix prompt for a secrets finding: remove
// the secret, rotate if needed, store it in the platform-specific
// place. With no detected platform, combines multi-platform guidance.
func SecretsFixPrompt(platform Platform, file string, line *int) string {
	location := file
	if line != nil {
		location = fmt.Sprintf("%s at line %d", file, *line)
	}

	instructions, ok := platformSecretInstructions[platform]
	if !ok {
		instructions = strings.Join([]string{
			platformSecretInstructions[PlatformVercel],
			platformSecretInstructions[PlatformRailway],
			platformSecretInstructions[PlatformLovable],
		}, " Alternatively: ")
	}

	return fmt.Sprintf(`A secret (password, API key, or token) was detected in %s. This is a critical security issue.

1. Remove the secret from the code immediately. Do not commit it again.
2. If this credential was ever deployed or shared, rotate it now (revoke and create a new one in the service's dashboard).
3. Store the secret securely: %s

After moving the value to environment variables, load it at runtime (e.g. process.env.SECRET_NAME or your framework's env API) and use that variable in code.`, location, instructions)
}

package security

import (
	"regexp"
	"strings"
)

// Tokens travel in query strings and JSON bodies, so transport errors that
// echo the URL would otherwise carry them into logs.
var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)((?:access_)?token=)([^&\s"']+)`),
	regexp.MustCompile(`(?i)("(?:access_token|token|password)"\s*:\s*")([^"]*)(")`),
	regexp.MustCompile(`(?i)(bearer\s+)([A-Za-z0-9._\-]+)`),
}

// RedactSecrets masks token and password values found in s.
func RedactSecrets(s string) string {
	if s == "" {
		return s
	}
	for _, p := range secretPatterns {
		s = p.ReplaceAllStringFunc(s, func(match string) string {
			sub := p.FindStringSubmatch(match)
			out := sub[1] + MaskCredential(sub[2])
			if len(sub) > 3 {
				out += sub[3]
			}
			return out
		})
	}
	return s
}

// MaskCredential masks a credential, keeping a short prefix and suffix for
// long values.
func MaskCredential(value string) string {
	if len(value) == 0 {
		return ""
	}
	if len(value) <= 4 {
		return strings.Repeat("*", len(value))
	}
	if len(value) <= 8 {
		return value[:2] + strings.Repeat("*", len(value)-2)
	}
	return value[:4] + strings.Repeat("*", len(value)-8) + value[len(value)-4:]
}

package utils

import "regexp"

// Secret-bearing query parameters and headers that may leak into error text
// when an HTTP client stringifies a failed request URL.
var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(api_key=)[^&\s]+`),
	regexp.MustCompile(`(?i)(apikey=)[^&\s]+`),
	regexp.MustCompile(`(?i)(key=)[^&\s]+`),
	regexp.MustCompile(`(?i)(token=)[^&\s]+`),
	regexp.MustCompile(`(?i)(client_secret=)[^&\s]+`),
	regexp.MustCompile(`(?i)(Authorization: Bearer )\S+`),
}

// RedactSecrets strips credential values from free text before it reaches
// logs or user-visible status messages. Provider error strings often embed
// the full request URL, including key parameters.
func RedactSecrets(text string) string {
	if text == "" {
		return text
	}
	out := text
	for _, pattern := range secretPatterns {
		out = pattern.ReplaceAllString(out, "${1}[REDACTED]")
	}
	return out
}

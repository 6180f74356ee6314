package util

import (
	"regexp"
	"strings"
)

var (
	scriptTagPattern    = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	htmlTagPattern      = regexp.MustCompile(`<[^>]+>`)
	protocolPattern     = regexp.MustCompile(`(?i)(javascript|vbscript|data):`)
	eventHandlerPattern = regexp.MustCompile(`(?i)\bon\w+\s*=`)
)

// SanitizeInput strips script tags, markup, dangerous URL protocols and
// inline event handlers from user-supplied text, then trims whitespace.
// It is lossy on purpose; moderation stores what reviewers will read.
func SanitizeInput(s string) string {
	s = scriptTagPattern.ReplaceAllString(s, "")
	s = htmlTagPattern.ReplaceAllString(s, "")
	s = protocolPattern.ReplaceAllString(s, "")
	s = eventHandlerPattern.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// ContainsSuspicious reports whether the string still carries markup or
// template metacharacters after sanitization.
func ContainsSuspicious(s string) bool {
	lower := strings.ToLower(s)
	for _, c := range []string{"<", ">", "${", "script", "onerror", "onload"} {
		if strings.Contains(lower, c) {
			return true
		}
	}
	return false
}

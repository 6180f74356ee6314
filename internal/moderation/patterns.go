// Package moderation implements the rule-based content classifier and the
// decision engine that turns classifier flags into a moderation verdict.
// Classification is pure: the same input always yields the same flags.
package moderation

import "regexp"

// profanityWords is the baseline blocklist. Matching is case-insensitive
// substring, so plurals and compounds are caught without separate entries.
var profanityWords = []string{
	"damn", "hell", "shit", "fuck", "bitch", "bastard", "crap",
	"asshole", "dickhead", "motherfucker", "bullshit", "cunt",
	"whore", "slut", "wanker", "prick",
}

// obfuscationPatterns catch blocklisted words padded with *, - or _
// (f*u*c*k, s-h-i-t). Each pattern maps to the plain word it disguises so
// a plain match is not counted twice.
var obfuscationPatterns = []struct {
	re    *regexp.Regexp
	plain string
}{
	{regexp.MustCompile(`(?i)f[*\-_]?u[*\-_]?c[*\-_]?k`), "fuck"},
	{regexp.MustCompile(`(?i)s[*\-_]?h[*\-_]?i[*\-_]?t`), "shit"},
	{regexp.MustCompile(`(?i)b[*\-_]?i[*\-_]?t[*\-_]?c[*\-_]?h`), "bitch"},
	{regexp.MustCompile(`(?i)c[*\-_]?u[*\-_]?n[*\-_]?t`), "cunt"},
}

var spamKeywordPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(buy now|click here|limited time|act now|free money|make money fast|get rich quick|work from home)\b`),
	regexp.MustCompile(`(?i)\b(viagra|cialis|pharmacy|casino|lottery)\b`),
	regexp.MustCompile(`(?i)\b(congratulations|you have won|claim your prize|selected|winner)\b`),
	regexp.MustCompile(`(?i)\$\d+|\d+\$|USD\d+|\d+USD`),
}

var punctuationRunPattern = regexp.MustCompile(`[!?]{2,}`)

var emojiPattern = regexp.MustCompile(`[\x{1F600}-\x{1F64F}\x{1F300}-\x{1F5FF}\x{1F680}-\x{1F6FF}\x{1F1E0}-\x{1F1FF}]`)

// Keyword families for the inappropriate-content check. The first hit in
// each family contributes a fixed increment; families are independent.
var (
	suspiciousKeywordPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(fake|replica|stolen|illegal|drugs|weapon)\b`),
		regexp.MustCompile(`(?i)\b(meet me|private message|contact me outside)\b`),
		regexp.MustCompile(`(?i)\b(bitcoin|crypto|investment scheme|forex)\b`),
	}

	adultPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(sex|porn|nude|naked|xxx)\b`),
		regexp.MustCompile(`(?i)\b(escort|hookup)\b`),
	}

	violencePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(kill|murder|violence|weapon|gun|knife)\b`),
		regexp.MustCompile(`(?i)\b(hurt|harm|attack|beat up)\b`),
	}
)

// Personal-information detectors.
var (
	phonePattern      = regexp.MustCompile(`(\+?\d{1,4}[\s\-]?)?\(?\d{3}\)?[\s\-]?\d{3}[\s\-]?\d{4}`)
	emailPattern      = regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`)
	creditCardPattern = regexp.MustCompile(`\b\d{4}[\s\-]?\d{4}[\s\-]?\d{4}[\s\-]?\d{4}\b`)
	ssnPattern        = regexp.MustCompile(`\b\d{3}[\s\-]\d{2}[\s\-]\d{4}\b`)
	addressPattern    = regexp.MustCompile(`(?i)\b\d+\s+[A-Za-z\s]+(street|st|avenue|ave|road|rd|drive|dr|lane|ln|boulevard|blvd)\b`)
)

// Link extraction and the shortener/suspicious domain list.
var (
	urlPattern = regexp.MustCompile(`https?://[^\s]+`)

	suspiciousDomains = []string{
		"bit.ly", "tinyurl.com", "short.link", "t.co", "goo.gl",
	}
)

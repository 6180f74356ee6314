package moderation

import (
	"fmt"
	"strings"
	"unicode"

	"trust-service/internal/models"
)

// Classifier runs every sub-check against a content item and returns the
// concatenated flags. Checks never short-circuit each other; one item can
// carry several flags at once.
type Classifier struct{}

func NewClassifier() *Classifier {
	return &Classifier{}
}

// Classify inspects the item's text and images. It is a pure function of
// its input and safe for concurrent use.
func (c *Classifier) Classify(item *models.ContentItem) []models.ModerationFlag {
	var flags []models.ModerationFlag

	if flag, ok := c.detectProfanity(item.Content); ok {
		flags = append(flags, flag)
	}
	if flag, ok := c.detectSpam(item.Content); ok {
		flags = append(flags, flag)
	}
	if flag, ok := c.detectInappropriate(item.Content); ok {
		flags = append(flags, flag)
	}
	if flag, ok := c.detectPersonalInfo(item.Content); ok {
		flags = append(flags, flag)
	}
	if flag, ok := c.detectSuspiciousLinks(item.Content); ok {
		flags = append(flags, flag)
	}
	if flag, ok := c.checkImages(item.Images); ok {
		flags = append(flags, flag)
	}

	return flags
}

func (c *Classifier) detectProfanity(content string) (models.ModerationFlag, bool) {
	lower := strings.ToLower(content)

	var found []string
	for _, word := range profanityWords {
		if strings.Contains(lower, word) {
			found = append(found, word)
		}
	}

	// Obfuscated spellings count only when the plain word was not already
	// caught above.
	for _, p := range obfuscationPatterns {
		if !strings.Contains(lower, p.plain) && p.re.MatchString(content) {
			found = append(found, p.plain+" (obfuscated)")
		}
	}

	if len(found) == 0 {
		return models.ModerationFlag{}, false
	}

	severity := models.SeverityLow
	switch {
	case len(found) > 3:
		severity = models.SeverityHigh
	case len(found) > 1:
		severity = models.SeverityMedium
	}

	return models.ModerationFlag{
		Type:       models.FlagProfanity,
		Severity:   severity,
		Confidence: capConfidence(float64(len(found)) * 0.3),
		Details:    "Contains profanity: " + strings.Join(found, ", "),
	}, true
}

func (c *Classifier) detectSpam(content string) (models.ModerationFlag, bool) {
	var reasons []string
	var confidence float64

	for _, pattern := range spamKeywordPatterns {
		if pattern.MatchString(content) {
			reasons = append(reasons, "Contains spam keywords")
			confidence += 0.3
			break
		}
	}

	runes := []rune(content)
	if len(runes) > 20 {
		var caps int
		for _, r := range runes {
			if unicode.IsUpper(r) {
				caps++
			}
		}
		if float64(caps)/float64(len(runes)) > 0.5 {
			reasons = append(reasons, "Excessive capitalization")
			confidence += 0.2
		}
	}

	if len(punctuationRunPattern.FindAllString(content, -1)) > 3 {
		reasons = append(reasons, "Excessive punctuation")
		confidence += 0.2
	}

	if maxWordRepeats(content) > 5 {
		reasons = append(reasons, "Repeated words")
		confidence += 0.3
	}

	if len(runes) > 0 {
		emojis := len(emojiPattern.FindAllString(content, -1))
		if float64(emojis) > float64(len(runes))*0.1 {
			reasons = append(reasons, "Excessive emojis")
			confidence += 0.2
		}
	}

	if len(reasons) == 0 {
		return models.ModerationFlag{}, false
	}

	confidence = capConfidence(confidence)
	severity := models.SeverityLow
	switch {
	case confidence > 0.7:
		severity = models.SeverityHigh
	case confidence > 0.4:
		severity = models.SeverityMedium
	}

	return models.ModerationFlag{
		Type:       models.FlagSpam,
		Severity:   severity,
		Confidence: confidence,
		Details:    strings.Join(reasons, ", "),
	}, true
}

func (c *Classifier) detectInappropriate(content string) (models.ModerationFlag, bool) {
	var reasons []string
	var confidence float64

	for _, pattern := range suspiciousKeywordPatterns {
		if pattern.MatchString(content) {
			reasons = append(reasons, "Contains inappropriate keywords")
			confidence += 0.4
			break
		}
	}

	for _, pattern := range adultPatterns {
		if pattern.MatchString(content) {
			reasons = append(reasons, "Adult content detected")
			confidence += 0.6
			break
		}
	}

	for _, pattern := range violencePatterns {
		if pattern.MatchString(content) {
			reasons = append(reasons, "Violence-related content")
			confidence += 0.5
			break
		}
	}

	if len(reasons) == 0 {
		return models.ModerationFlag{}, false
	}

	confidence = capConfidence(confidence)
	severity := models.SeverityMedium
	if confidence > 0.7 {
		severity = models.SeverityHigh
	}

	return models.ModerationFlag{
		Type:       models.FlagInappropriate,
		Severity:   severity,
		Confidence: confidence,
		Details:    strings.Join(reasons, ", "),
	}, true
}

func (c *Classifier) detectPersonalInfo(content string) (models.ModerationFlag, bool) {
	var kinds []string
	var confidence float64

	if phonePattern.MatchString(content) {
		kinds = append(kinds, "Phone number")
		confidence += 0.8
	}
	if emailPattern.MatchString(content) {
		kinds = append(kinds, "Email address")
		confidence += 0.7
	}
	if creditCardPattern.MatchString(content) {
		kinds = append(kinds, "Credit card number")
		confidence += 0.9
	}
	if ssnPattern.MatchString(content) {
		kinds = append(kinds, "Social security number")
		confidence += 0.9
	}
	if addressPattern.MatchString(content) {
		kinds = append(kinds, "Street address")
		confidence += 0.6
	}

	if len(kinds) == 0 {
		return models.ModerationFlag{}, false
	}

	return models.ModerationFlag{
		Type:       models.FlagPersonalInfo,
		Severity:   models.SeverityMedium,
		Confidence: capConfidence(confidence),
		Details:    strings.Join(kinds, ", "),
	}, true
}

func (c *Classifier) detectSuspiciousLinks(content string) (models.ModerationFlag, bool) {
	var links []string
	var confidence float64

	for _, url := range urlPattern.FindAllString(content, -1) {
		domain := strings.SplitN(strings.TrimPrefix(strings.TrimPrefix(url, "https://"), "http://"), "/", 2)[0]

		var suspicious bool
		for _, bad := range suspiciousDomains {
			if strings.Contains(domain, bad) {
				suspicious = true
				break
			}
		}

		switch {
		case suspicious:
			links = append(links, url)
			confidence += 0.7
		case len(url) < 30 && (strings.Contains(url, "bit.ly") || strings.Contains(url, "tinyurl")):
			// Shortened URLs can hide the real destination.
			links = append(links, url)
			confidence += 0.5
		}
	}

	if len(links) == 0 {
		return models.ModerationFlag{}, false
	}

	return models.ModerationFlag{
		Type:       models.FlagSuspiciousLinks,
		Severity:   models.SeverityHigh,
		Confidence: capConfidence(confidence),
		Details:    "Suspicious links: " + strings.Join(links, ", "),
	}, true
}

// checkImages is the integration point for an external image-classification
// service. Until one is wired in it never flags.
func (c *Classifier) checkImages(images []string) (models.ModerationFlag, bool) {
	_ = images
	return models.ModerationFlag{}, false
}

func maxWordRepeats(content string) int {
	counts := make(map[string]int)
	max := 0
	for _, word := range strings.Fields(strings.ToLower(content)) {
		if len(word) > 3 {
			counts[word]++
			if counts[word] > max {
				max = counts[word]
			}
		}
	}
	return max
}

func capConfidence(c float64) float64 {
	if c > 0.9 {
		return 0.9
	}
	return c
}

// DescribeFlags renders a short reviewer-facing summary of a flag set.
func DescribeFlags(flags []models.ModerationFlag) string {
	if len(flags) == 0 {
		return "no flags"
	}
	parts := make([]string, 0, len(flags))
	for _, f := range flags {
		parts = append(parts, fmt.Sprintf("%s(%s %.2f)", f.Type, f.Severity, f.Confidence))
	}
	return strings.Join(parts, ", ")
}

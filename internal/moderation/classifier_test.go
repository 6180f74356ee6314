package moderation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trust-service/internal/models"
)

func classifyText(t *testing.T, text string) []models.ModerationFlag {
	t.Helper()
	c := NewClassifier()
	return c.Classify(&models.ContentItem{
		ID:      "content-1",
		Type:    models.ContentTypeListing,
		Content: text,
		UserID:  "user-1",
	})
}

func findFlag(flags []models.ModerationFlag, ft models.FlagType) (models.ModerationFlag, bool) {
	for _, f := range flags {
		if f.Type == ft {
			return f, true
		}
	}
	return models.ModerationFlag{}, false
}

func TestClassify_CleanContent(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"plain listing", "Great product, works well!"},
		{"normal description", "Selling a barely used coffee table, pickup only."},
		{"empty", ""},
		{"question", "Is this still available next week?"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flags := classifyText(t, tt.text)
			assert.Empty(t, flags)
		})
	}
}

func TestDetectProfanity(t *testing.T) {
	tests := []struct {
		name         string
		text         string
		wantSeverity models.Severity
		wantMinConf  float64
	}{
		{"single word", "what the hell is this", models.SeverityLow, 0.3},
		{"two words", "damn this shit", models.SeverityMedium, 0.6},
		{"four distinct words", "damn hell shit fuck", models.SeverityHigh, 0.9},
		{"obfuscated", "f*u*c*k this", models.SeverityLow, 0.3},
		{"case insensitive", "SHIT happens", models.SeverityLow, 0.3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flags := classifyText(t, tt.text)
			flag, ok := findFlag(flags, models.FlagProfanity)
			require.True(t, ok, "expected a profanity flag")
			assert.Equal(t, tt.wantSeverity, flag.Severity)
			assert.GreaterOrEqual(t, flag.Confidence, tt.wantMinConf)
			assert.LessOrEqual(t, flag.Confidence, 0.9)
		})
	}
}

func TestDetectProfanity_HighSeverityAtFourDistinctWords(t *testing.T) {
	// Any text with at least four distinct blocklisted words must come back
	// high severity.
	texts := []string{
		"damn hell shit fuck",
		"you bastard, this crap is damn awful, what the hell",
		"bitch bastard whore slut",
	}

	for _, text := range texts {
		flags := classifyText(t, text)
		flag, ok := findFlag(flags, models.FlagProfanity)
		require.True(t, ok, "expected profanity flag for %q", text)
		assert.Equal(t, models.SeverityHigh, flag.Severity, "text %q", text)
	}
}

func TestDetectSpam(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		wantReason string
	}{
		{
			"keywords",
			"free money for everyone, no strings attached",
			"Contains spam keywords",
		},
		{
			"excessive caps",
			"THIS IS AN AMAZING DEAL FOR YOU TODAY",
			"Excessive capitalization",
		},
		{
			"punctuation runs",
			"wow!! really?? no way!! stop!! seriously??",
			"Excessive punctuation",
		},
		{
			"repeated words",
			"cheap cheap cheap cheap cheap cheap phones",
			"Repeated words",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flags := classifyText(t, tt.text)
			flag, ok := findFlag(flags, models.FlagSpam)
			require.True(t, ok, "expected a spam flag")
			assert.Contains(t, flag.Details, tt.wantReason)
		})
	}
}

func TestDetectSpam_CapsRatioBoundary(t *testing.T) {
	// Caps check applies only to strings longer than 20 characters.
	flags := classifyText(t, "SHORT CAPS TEXT")
	_, ok := findFlag(flags, models.FlagSpam)
	assert.False(t, ok)

	flags = classifyText(t, "LONG ALL CAPS TEXT THAT KEEPS GOING AND GOING")
	flag, ok := findFlag(flags, models.FlagSpam)
	require.True(t, ok)
	assert.Contains(t, flag.Details, "Excessive capitalization")
}

func TestDetectInappropriate(t *testing.T) {
	tests := []struct {
		name         string
		text         string
		wantSeverity models.Severity
	}{
		{"generic suspicious", "selling a replica watch", models.SeverityMedium},
		{"adult", "xxx content available", models.SeverityMedium},
		{"violence", "I will attack anyone who outbids me", models.SeverityMedium},
		{"adult plus violence", "porn and gun for sale", models.SeverityHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flags := classifyText(t, tt.text)
			flag, ok := findFlag(flags, models.FlagInappropriate)
			require.True(t, ok, "expected an inappropriate flag")
			assert.Equal(t, tt.wantSeverity, flag.Severity)
		})
	}
}

func TestDetectPersonalInfo(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		wantKind string
	}{
		{"phone", "call me at 555-123-4567 anytime", "Phone number"},
		{"email", "reach me at seller@example.com", "Email address"},
		{"credit card", "card 4111 1111 1111 1111 accepted", "Credit card number"},
		{"ssn", "my ssn is 123-45-6789", "Social security number"},
		{"address", "pickup at 42 Baker Street", "Street address"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flags := classifyText(t, tt.text)
			flag, ok := findFlag(flags, models.FlagPersonalInfo)
			require.True(t, ok, "expected a personal_info flag")
			assert.Equal(t, models.SeverityMedium, flag.Severity)
			assert.Contains(t, flag.Details, tt.wantKind)
			assert.LessOrEqual(t, flag.Confidence, 0.9)
		})
	}
}

func TestDetectSuspiciousLinks(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{"shortener", "check https://bit.ly/abc123", true},
		{"tinyurl", "see https://tinyurl.com/xyz", true},
		{"normal link", "photos at https://example.com/listing/42", false},
		{"no link", "no links here at all", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flags := classifyText(t, tt.text)
			flag, ok := findFlag(flags, models.FlagSuspiciousLinks)
			assert.Equal(t, tt.want, ok)
			if ok {
				assert.Equal(t, models.SeverityHigh, flag.Severity)
			}
		})
	}
}

func TestClassify_MultipleSimultaneousFlags(t *testing.T) {
	text := "FUCK THIS FREE MONEY DEAL CALL 555-123-4567 NOW AT https://bit.ly/scam"
	flags := classifyText(t, text)

	for _, ft := range []models.FlagType{
		models.FlagProfanity,
		models.FlagSpam,
		models.FlagPersonalInfo,
		models.FlagSuspiciousLinks,
	} {
		_, ok := findFlag(flags, ft)
		assert.True(t, ok, "expected %s flag", ft)
	}
}

func TestClassify_Idempotent(t *testing.T) {
	texts := []string{
		"damn hell shit fuck",
		"BUY NOW!!! FREE MONEY",
		"Great product, works well!",
		"call 555-123-4567 or https://bit.ly/x",
	}

	c := NewClassifier()
	for _, text := range texts {
		item := &models.ContentItem{ID: "c", Type: models.ContentTypePost, Content: text, UserID: "u"}
		first := c.Classify(item)
		second := c.Classify(item)
		assert.Equal(t, first, second, "classification must be deterministic for %q", text)
	}
}

func TestClassify_ImagesNeverFlag(t *testing.T) {
	c := NewClassifier()
	flags := c.Classify(&models.ContentItem{
		ID:      "c",
		Type:    models.ContentTypeListing,
		Content: "clean text",
		Images:  []string{"https://cdn.example.com/a.jpg", "https://cdn.example.com/b.jpg"},
		UserID:  "u",
	})
	assert.Empty(t, flags)
}

func TestMaxWordRepeats(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"one two three", 1},
		{"spam spam spam spam", 4},
		{"a a a a a a a", 0}, // short words ignored
		{strings.Repeat("hello ", 6), 6},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, maxWordRepeats(tt.text), "text %q", tt.text)
	}
}

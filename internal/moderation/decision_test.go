package moderation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trust-service/internal/models"
)

func flag(ft models.FlagType, sev models.Severity, conf float64) models.ModerationFlag {
	return models.ModerationFlag{Type: ft, Severity: sev, Confidence: conf}
}

func TestDecide_NoFlagsApproves(t *testing.T) {
	engine := NewEngine(DefaultThresholds())

	for _, flags := range [][]models.ModerationFlag{nil, {}} {
		result := engine.Decide(flags)
		assert.True(t, result.IsApproved)
		assert.Equal(t, models.ActionApprove, result.Action)
		assert.False(t, result.RequiresManualReview)
		assert.Zero(t, result.Confidence)
	}
}

func TestDecide_Actions(t *testing.T) {
	engine := NewEngine(DefaultThresholds())

	tests := []struct {
		name       string
		flags      []models.ModerationFlag
		wantAction models.ModerationAction
		wantManual bool
	}{
		{
			"low confidence approves",
			[]models.ModerationFlag{flag(models.FlagSpam, models.SeverityLow, 0.3)},
			models.ActionApprove,
			false,
		},
		{
			"mid confidence flags",
			[]models.ModerationFlag{flag(models.FlagSpam, models.SeverityMedium, 0.6)},
			models.ActionFlag,
			false,
		},
		{
			"high severity reviews even at low confidence",
			[]models.ModerationFlag{flag(models.FlagProfanity, models.SeverityHigh, 0.2)},
			models.ActionReview,
			true,
		},
		{
			"critical severity reviews",
			[]models.ModerationFlag{flag(models.FlagInappropriate, models.SeverityCritical, 0.3)},
			models.ActionReview,
			true,
		},
		{
			"confidence above review threshold reviews",
			[]models.ModerationFlag{flag(models.FlagSpam, models.SeverityMedium, 0.75)},
			models.ActionReview,
			true,
		},
		{
			"confidence above reject threshold still reviews",
			[]models.ModerationFlag{flag(models.FlagPersonalInfo, models.SeverityMedium, 0.95)},
			models.ActionReview,
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := engine.Decide(tt.flags)
			assert.Equal(t, tt.wantAction, result.Action)
			assert.Equal(t, tt.wantManual, result.RequiresManualReview)
			assert.Equal(t, tt.wantAction == models.ActionApprove, result.IsApproved)
		})
	}
}

func TestDecide_SuspiciousLinksForceManualReview(t *testing.T) {
	engine := NewEngine(DefaultThresholds())

	// Even a barely-confident link flag must route to a human.
	result := engine.Decide([]models.ModerationFlag{
		flag(models.FlagSuspiciousLinks, models.SeverityLow, 0.1),
	})

	assert.True(t, result.RequiresManualReview)
	assert.Equal(t, models.ActionReview, result.Action)
	assert.False(t, result.IsApproved)
}

func TestDecide_ConfidenceIsMean(t *testing.T) {
	engine := NewEngine(DefaultThresholds())

	result := engine.Decide([]models.ModerationFlag{
		flag(models.FlagSpam, models.SeverityLow, 0.2),
		flag(models.FlagProfanity, models.SeverityLow, 0.4),
		flag(models.FlagPersonalInfo, models.SeverityMedium, 0.6),
	})

	assert.InDelta(t, 0.4, result.Confidence, 1e-9)
}

func TestDecide_RejectOnlyWithoutManualTriggers(t *testing.T) {
	// Reject is unreachable with the default thresholds because the review
	// cut point sits below the reject cut point. Raise review above reject
	// to verify the ordering.
	engine := NewEngine(Thresholds{Flag: 0.5, Review: 0.95, Reject: 0.8})

	result := engine.Decide([]models.ModerationFlag{
		flag(models.FlagSpam, models.SeverityMedium, 0.85),
	})

	assert.Equal(t, models.ActionReject, result.Action)
	assert.False(t, result.IsApproved)
	assert.False(t, result.RequiresManualReview)
}

func TestPriorityFromFlags(t *testing.T) {
	tests := []struct {
		name  string
		flags []models.ModerationFlag
		want  int
	}{
		{"no flags", nil, 1},
		{"one low flag", []models.ModerationFlag{flag(models.FlagSpam, models.SeverityLow, 0.3)}, 1},
		{
			"two medium flags",
			[]models.ModerationFlag{
				flag(models.FlagSpam, models.SeverityMedium, 0.5),
				flag(models.FlagPersonalInfo, models.SeverityMedium, 0.6),
			},
			1,
		},
		{
			"three low flags",
			[]models.ModerationFlag{
				flag(models.FlagSpam, models.SeverityLow, 0.2),
				flag(models.FlagProfanity, models.SeverityLow, 0.3),
				flag(models.FlagInappropriate, models.SeverityLow, 0.4),
			},
			3,
		},
		{
			"high severity wins over count",
			[]models.ModerationFlag{flag(models.FlagProfanity, models.SeverityHigh, 0.9)},
			5,
		},
		{
			"critical severity",
			[]models.ModerationFlag{flag(models.FlagInappropriate, models.SeverityCritical, 0.9)},
			5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PriorityFromFlags(tt.flags))
		})
	}
}

func TestPriorityFromFlags_MonotoneInSeverity(t *testing.T) {
	// Upgrading any flag's severity never lowers the priority.
	base := []models.ModerationFlag{
		flag(models.FlagSpam, models.SeverityLow, 0.3),
		flag(models.FlagPersonalInfo, models.SeverityMedium, 0.6),
		flag(models.FlagProfanity, models.SeverityLow, 0.2),
	}
	before := PriorityFromFlags(base)

	upgraded := make([]models.ModerationFlag, len(base))
	copy(upgraded, base)
	upgraded[1].Severity = models.SeverityHigh
	after := PriorityFromFlags(upgraded)

	assert.GreaterOrEqual(t, after, before)
	assert.Equal(t, 5, after)
}

func TestSafestResult(t *testing.T) {
	result := SafestResult()

	assert.False(t, result.IsApproved)
	assert.True(t, result.RequiresManualReview)
	assert.Equal(t, models.ActionReview, result.Action)
	assert.Empty(t, result.Flags)
	assert.Zero(t, result.Confidence)
}

func TestClassifyAndDecide_EndToEnd(t *testing.T) {
	c := NewClassifier()
	engine := NewEngine(DefaultThresholds())

	t.Run("obvious spam is never silently approved", func(t *testing.T) {
		item := &models.ContentItem{
			ID:      "c1",
			Type:    models.ContentTypeListing,
			Content: "BUY NOW!!! FREE MONEY CLICK HERE CLICK HERE CLICK HERE CLICK HERE CLICK HERE CLICK HERE",
			UserID:  "u1",
		}
		flags := c.Classify(item)
		spam, ok := findFlag(flags, models.FlagSpam)
		require.True(t, ok)
		assert.GreaterOrEqual(t, spam.Confidence, 0.5)

		result := engine.Decide(flags)
		assert.False(t, result.IsApproved)
		assert.Contains(t, []models.ModerationAction{models.ActionFlag, models.ActionReview}, result.Action)
	})

	t.Run("benign content is approved", func(t *testing.T) {
		item := &models.ContentItem{
			ID:      "c2",
			Type:    models.ContentTypeComment,
			Content: "Great product, works well!",
			UserID:  "u2",
		}
		flags := c.Classify(item)
		require.Empty(t, flags)

		result := engine.Decide(flags)
		assert.True(t, result.IsApproved)
		assert.Equal(t, models.ActionApprove, result.Action)
	})
}

package moderation

import "trust-service/internal/models"

// Thresholds are the decision engine's confidence cut points. They are
// tunable configuration, not classifier constants.
type Thresholds struct {
	Flag   float64 // above this, unreviewed content is flagged
	Review float64 // above this, a human must review
	Reject float64 // above this, content is rejected outright
}

// DefaultThresholds returns the production cut points.
func DefaultThresholds() Thresholds {
	return Thresholds{Flag: 0.5, Review: 0.7, Reject: 0.8}
}

// Engine maps a flag set onto a moderation verdict.
type Engine struct {
	thresholds Thresholds
}

func NewEngine(t Thresholds) *Engine {
	return &Engine{thresholds: t}
}

// Decide computes the aggregate verdict. Confidence is the arithmetic mean
// of flag confidences. A manual-review requirement always wins over
// reject/flag, even at very high confidence: escalation over automation.
func (e *Engine) Decide(flags []models.ModerationFlag) models.ModerationResult {
	var sum float64
	manual := false
	for _, f := range flags {
		sum += f.Confidence
		if f.Severity.IsActionable() {
			manual = true
		}
		// Any suspicious link forces human eyes regardless of confidence.
		if f.Type == models.FlagSuspiciousLinks {
			manual = true
		}
	}

	confidence := 0.0
	if len(flags) > 0 {
		confidence = sum / float64(len(flags))
	}
	if confidence > e.thresholds.Review {
		manual = true
	}

	action := models.ActionApprove
	switch {
	case len(flags) == 0:
		action = models.ActionApprove
	case manual:
		action = models.ActionReview
	case confidence > e.thresholds.Reject:
		action = models.ActionReject
	case confidence > e.thresholds.Flag:
		action = models.ActionFlag
	}

	return models.ModerationResult{
		IsApproved:           action == models.ActionApprove,
		Flags:                flags,
		Confidence:           confidence,
		Action:               action,
		RequiresManualReview: manual,
	}
}

// PriorityFromFlags is the single severity-to-priority mapping shared by the
// decision engine and the queue workflow.
func PriorityFromFlags(flags []models.ModerationFlag) int {
	for _, f := range flags {
		if f.Severity.IsActionable() {
			return 5
		}
	}
	if len(flags) > 2 {
		return 3
	}
	return 1
}

// SafestResult is the verdict used when classification itself fails: not
// approved, human review required. A fault in the classifier must never
// silently approve content.
func SafestResult() models.ModerationResult {
	return models.ModerationResult{
		IsApproved:           false,
		Flags:                nil,
		Confidence:           0,
		Action:               models.ActionReview,
		RequiresManualReview: true,
	}
}

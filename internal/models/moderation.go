package models

import "time"

// FlagType is the category a classifier check reports.
type FlagType string

const (
	FlagProfanity       FlagType = "profanity"
	FlagSpam            FlagType = "spam"
	FlagInappropriate   FlagType = "inappropriate"
	FlagPersonalInfo    FlagType = "personal_info"
	FlagSuspiciousLinks FlagType = "suspicious_links"
	FlagCopyright       FlagType = "copyright"
	FlagHarassment      FlagType = "harassment"
	FlagFake            FlagType = "fake"
)

// Severity grades how bad a single flag is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// IsActionable reports whether the severity alone forces human review.
func (s Severity) IsActionable() bool {
	return s == SeverityHigh || s == SeverityCritical
}

// ModerationAction is the verdict the decision engine settles on.
type ModerationAction string

const (
	ActionApprove ModerationAction = "approve"
	ActionFlag    ModerationAction = "flag"
	ActionReject  ModerationAction = "reject"
	ActionReview  ModerationAction = "review"
)

// ModerationFlag is one finding from one classifier check. Confidence is in
// [0,1]; Details is human-readable and shown to reviewers.
type ModerationFlag struct {
	Type       FlagType `json:"type"`
	Severity   Severity `json:"severity"`
	Confidence float64  `json:"confidence"`
	Details    string   `json:"details"`
}

// ModerationResult is the aggregate verdict for one content item.
type ModerationResult struct {
	IsApproved           bool             `json:"is_approved"`
	Flags                []ModerationFlag `json:"flags"`
	Confidence           float64          `json:"confidence"`
	Action               ModerationAction `json:"action"`
	RequiresManualReview bool             `json:"requires_manual_review"`
}

// QueueStatus tracks a queue item through the review workflow. Pending is the
// only non-terminal state.
type QueueStatus string

const (
	QueuePending   QueueStatus = "pending"
	QueueApproved  QueueStatus = "approved"
	QueueRejected  QueueStatus = "rejected"
	QueueEscalated QueueStatus = "escalated"
)

// ReviewDecision is what a human reviewer can do with a pending item.
type ReviewDecision string

const (
	DecisionApprove  ReviewDecision = "approve"
	DecisionReject   ReviewDecision = "reject"
	DecisionEscalate ReviewDecision = "escalate"
)

// Status maps a reviewer decision onto the resulting queue status.
func (d ReviewDecision) Status() (QueueStatus, bool) {
	switch d {
	case DecisionApprove:
		return QueueApproved, true
	case DecisionReject:
		return QueueRejected, true
	case DecisionEscalate:
		return QueueEscalated, true
	}
	return "", false
}

// ModerationQueueItem is a row in the human review queue. Content is a
// snapshot taken at flag time so reviewers see what the classifier saw.
type ModerationQueueItem struct {
	ID                   string           `json:"id"`
	ContentID            string           `json:"content_id"`
	ContentType          ContentType      `json:"content_type"`
	Content              string           `json:"content"`
	Images               []string         `json:"images,omitempty"`
	UserID               string           `json:"user_id"`
	Priority             int              `json:"priority"`
	Status               QueueStatus      `json:"status"`
	Flags                []ModerationFlag `json:"flags"`
	AutoFlagged          bool             `json:"auto_flagged"`
	ManualReviewRequired bool             `json:"manual_review_required"`
	CreatedAt            time.Time        `json:"created_at"`
	ReviewedAt           *time.Time       `json:"reviewed_at,omitempty"`
	ReviewedBy           string           `json:"reviewed_by,omitempty"`
	Notes                string           `json:"notes,omitempty"`
}

// QueueFilters narrows GetModerationQueue results.
type QueueFilters struct {
	Status      QueueStatus
	ContentType ContentType
	Limit       int
	Offset      int
}

// ModerationStats is the aggregate view for a moderation dashboard window.
type ModerationStats struct {
	Total          int              `json:"total"`
	Pending        int              `json:"pending"`
	Approved       int              `json:"approved"`
	Rejected       int              `json:"rejected"`
	FlaggedToday   int              `json:"flagged_today"`
	AvgReviewTime  time.Duration    `json:"avg_review_time"`
	FlagsByType    map[FlagType]int `json:"flags_by_type"`
	TimeframeStart time.Time        `json:"timeframe_start"`
	TimeframeEnd   time.Time        `json:"timeframe_end"`
}

// ContentFlagRecord is the audit row written for every flag raised, whether
// or not the item reached the queue.
type ContentFlagRecord struct {
	ID          string      `json:"id"`
	ContentID   string      `json:"content_id"`
	ContentType ContentType `json:"content_type"`
	UserID      string      `json:"user_id"`
	FlagType    FlagType    `json:"flag_type"`
	Severity    Severity    `json:"severity"`
	Confidence  float64     `json:"confidence"`
	Details     string      `json:"details"`
	CreatedAt   time.Time   `json:"created_at"`
}

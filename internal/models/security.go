package models

import "time"

// SecurityEventType enumerates the account activity log entries.
type SecurityEventType string

const (
	EventLogin              SecurityEventType = "login"
	EventLogout             SecurityEventType = "logout"
	EventFailedLogin        SecurityEventType = "failed_login"
	EventPasswordChange     SecurityEventType = "password_change"
	EventSuspiciousActivity SecurityEventType = "suspicious_activity"
	EventDeviceChange       SecurityEventType = "device_change"
)

// SecurityEvent is an append-only row in the account activity log.
// EventBucket and EventDate exist only for partitioning; they are derived
// from UserID and EventTime at write time.
type SecurityEvent struct {
	EventBucket       int               `db:"event_bucket" json:"-"`
	EventDate         string            `db:"event_date" json:"-"`
	EventTime         time.Time         `db:"event_time" json:"timestamp"`
	EventType         SecurityEventType `db:"event_type" json:"event_type"`
	UserID            string            `db:"user_id" json:"user_id"`
	DeviceFingerprint string            `db:"device_fingerprint" json:"device_fingerprint"`
	IPAddress         string            `db:"ip_address" json:"ip_address,omitempty"`
	UserAgent         string            `db:"user_agent" json:"user_agent,omitempty"`
	SessionID         string            `db:"session_id" json:"session_id,omitempty"`
	Details           string            `db:"details" json:"details,omitempty"`
}

// DeviceInfo is a device a user has logged in from.
type DeviceInfo struct {
	Fingerprint string    `json:"fingerprint"`
	UserID      string    `json:"user_id"`
	Platform    string    `json:"platform"`
	Model       string    `json:"model,omitempty"`
	OSVersion   string    `json:"os_version,omitempty"`
	AppVersion  string    `json:"app_version,omitempty"`
	IsTrusted   bool      `json:"is_trusted"`
	FirstSeen   time.Time `json:"first_seen"`
	LastSeen    time.Time `json:"last_seen"`
}

// SessionInfo is the session blob stored under the session ID. The store's
// key TTL is authoritative for expiry; ExpiresAt is kept for fingerprint and
// audit checks.
type SessionInfo struct {
	SessionID         string    `json:"session_id"`
	UserID            string    `json:"user_id"`
	DeviceFingerprint string    `json:"device_fingerprint"`
	CreatedAt         time.Time `json:"created_at"`
	ExpiresAt         time.Time `json:"expires_at"`
	LastActivity      time.Time `json:"last_activity"`
	RememberDevice    bool      `json:"remember_device"`
}

// Expired reports whether the session is past its expiry at the given time.
func (s *SessionInfo) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
